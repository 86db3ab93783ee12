package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	bridge "github.com/nisfeb/mqtt-rest-bridge"
)

// Outcome classifies a finished delivery.
type Outcome int

const (
	// OutcomeSuccess means the sink answered with a 2xx status.
	OutcomeSuccess Outcome = iota

	// OutcomeRejected means the sink answered with a non-2xx status.
	// The endpoint actively refused the content, so the attempt is not retried.
	OutcomeRejected

	// OutcomeExhausted means every attempt in the budget failed at the
	// transport level (connection error or timeout).
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeExhausted:
		return "exhausted_retries"
	}

	return "unknown"
}

// ErrRejected happens when the sink responds with a non-2xx status.
var ErrRejected = errors.New("server rejected the payload")

// maxLoggedResponse limits how much of a rejecting response body lands in the logs.
const maxLoggedResponse = 1024

// Publisher transmits payloads to a single Target with bounded retry.
//
// The underlying HTTP client is created once and shared by all deliveries,
// so connections are reused across messages.
type Publisher struct {
	target Target
	client *http.Client
	logger bridge.LoggerAdapter
}

// NewPublisher creates a Publisher for the given target.
// Malformed targets are reported here, at build time, not per message.
func NewPublisher(target Target, logger bridge.LoggerAdapter) (*Publisher, error) {
	target.setDefaults()
	if err := target.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid delivery target")
	}

	if logger == nil {
		logger = bridge.NopLogger{}
	}

	return &Publisher{
		target: target,
		client: &http.Client{Timeout: target.Timeout},
		logger: logger.With(bridge.LogFields{"url": target.URL()}),
	}, nil
}

// Target returns the configured target.
func (p *Publisher) Target() Target {
	return p.target
}

// Deliver transmits the body to the target.
//
// Transport failures are retried up to the target's attempt budget, with the
// configured delay between attempts; a non-2xx response is never retried.
// Deliver never returns an error: every terminal outcome is logged and
// reported in the return value. Each attempt is a fresh, complete
// transmission of the same body.
func (p *Publisher) Deliver(ctx context.Context, body []byte, logFields bridge.LogFields) Outcome {
	logger := p.logger.With(logFields)

	attempt := 0
	send := func() error {
		attempt++

		attemptFields := bridge.LogFields{
			"attempt":      attempt,
			"max_attempts": p.target.MaxAttempts,
		}
		logger.Info("Sending payload to endpoint", attemptFields)

		req, err := http.NewRequestWithContext(ctx, p.target.Method, p.target.URL(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "cannot create request"))
		}
		for key, value := range p.target.Headers {
			req.Header.Set(key, value)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			logger.Error("Transport failure", err, attemptFields)
			return errors.Wrap(err, "transport failure")
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			logger.Info("Successfully sent payload", attemptFields)
			return nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponse))
		logger.Info("Payload rejected by endpoint", attemptFields.Add(bridge.LogFields{
			"http_status":   resp.StatusCode,
			"http_response": string(respBody),
		}))

		return backoff.Permanent(errors.Wrapf(ErrRejected, "status %s", resp.Status))
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(p.target.RetryDelay),
		uint64(p.target.MaxAttempts-1),
	)

	err := backoff.Retry(send, backoff.WithContext(policy, ctx))
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, ErrRejected) {
		return OutcomeRejected
	}

	logger.Error("Failed to deliver payload, retries exhausted", err, bridge.LogFields{
		"attempts": attempt,
	})

	return OutcomeExhausted
}
