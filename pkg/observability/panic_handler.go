package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic in a deferred call and logs it with the
// full stack trace. Meant for scheduled jobs where a single bad account
// must not take down the whole run:
//
//	defer observability.RecoverPanic(logger, "usage report")
//
// The panic is swallowed after logging.
func RecoverPanic(logger *Logger, job string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("job", job).
			Error("PANIC recovered")
	}
}
