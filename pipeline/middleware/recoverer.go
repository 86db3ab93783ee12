package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/nisfeb/mqtt-rest-bridge/message"
	"github.com/nisfeb/mqtt-rest-bridge/pipeline"
)

// RecoveredPanicError holds the recovered panic's error along with the stacktrace.
type RecoveredPanicError struct {
	V          interface{}
	Stacktrace string
}

func (p RecoveredPanicError) Error() string {
	return fmt.Sprintf("panic occurred: %#v, stacktrace: \n%s", p.V, p.Stacktrace)
}

// Recoverer recovers from any panic in the wrapped chain and turns it into
// an error return, so a panicking stage drops one message instead of killing
// the process. It should be the first stage added to a pipeline.
func Recoverer(h pipeline.HandlerFunc) pipeline.HandlerFunc {
	return func(ctx *pipeline.Context, msg *message.Message) (result pipeline.Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				panicErr := errors.WithStack(RecoveredPanicError{V: r, Stacktrace: string(debug.Stack())})
				err = multierror.Append(err, panicErr)
				result = pipeline.ResultDropped
			}
		}()

		return h(ctx, msg)
	}
}
