package pipeline

import (
	"github.com/nisfeb/mqtt-rest-bridge/message"
)

// Result is the terminal outcome of a message's trip through the chain.
type Result int

const (
	// ResultDelivered means the chain ran to completion.
	ResultDelivered Result = iota

	// ResultDropped means a stage short-circuited the chain and the message
	// was discarded. One dropped message never stops the pipeline from
	// accepting the next one.
	ResultDropped
)

func (r Result) String() string {
	switch r {
	case ResultDelivered:
		return "delivered"
	case ResultDropped:
		return "dropped"
	}

	return "unknown"
}

// HandlerFunc is a single link of the processing chain.
//
// A handler must either produce a transformed message and call the next
// handler, returning its result, or short-circuit by returning without
// calling next. Expected failures (malformed payload, unmapped topic) are
// logged by the stage and reported as (ResultDropped, nil); an error return
// is converted to ResultDropped at the pipeline boundary, so no error ever
// propagates past it.
type HandlerFunc func(ctx *Context, msg *message.Message) (Result, error)

// Middleware wraps a handler with a new one, which will be the next in the chain.
type Middleware func(next HandlerFunc) HandlerFunc

// PassThrough is the default core handler sitting at the center of the
// chain. It accepts whatever reached it and reports the chain as complete.
func PassThrough(ctx *Context, msg *message.Message) (Result, error) {
	return ResultDelivered, nil
}
