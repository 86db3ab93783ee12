package delivery

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoBaseURL happens when the target has no base URL configured.
	ErrNoBaseURL = errors.New("delivery target base URL is missing")
	// ErrNonPositiveMaxAttempts happens when the configured attempt budget is below 1.
	ErrNonPositiveMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrNegativeRetryDelay happens when the configured retry delay is negative.
	ErrNegativeRetryDelay = errors.New("retry delay cannot be negative")
)

// Target describes one downstream HTTP sink.
//
// A Target is constructed once, at pipeline build time, and reused for every
// message.
type Target struct {
	// BaseURL of the sink, for example "http://localhost:12321".
	BaseURL string

	// Path appended to BaseURL.
	Path string

	// Method used for the request. Defaults to PUT.
	Method string

	// Headers set on every request.
	Headers map[string]string

	// Timeout of a single delivery attempt.
	Timeout time.Duration

	// MaxAttempts is the attempt budget, including the first attempt.
	// Must be at least 1. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the pause between attempts. There is no delay after the
	// last attempt.
	RetryDelay time.Duration
}

func (t *Target) setDefaults() {
	if t.Method == "" {
		t.Method = "PUT"
	}
	if t.Timeout == 0 {
		t.Timeout = time.Second * 10
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 3
	}
}

func (t Target) validate() error {
	if t.BaseURL == "" {
		return ErrNoBaseURL
	}
	if t.MaxAttempts < 1 {
		return ErrNonPositiveMaxAttempts
	}
	if t.RetryDelay < 0 {
		return ErrNegativeRetryDelay
	}

	return nil
}

// URL returns the full sink URL.
func (t Target) URL() string {
	if t.Path == "" {
		return t.BaseURL
	}

	return strings.TrimSuffix(t.BaseURL, "/") + "/" + strings.TrimPrefix(t.Path, "/")
}
