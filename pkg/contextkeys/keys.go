// Package contextkeys defines the context keys shared across middleware and
// handlers, with typed accessors so call sites never touch raw keys.
package contextkeys

import "context"

// Key is a private key type so values set here cannot collide with keys from
// other packages.
type Key string

const (
	// AccountIDKey carries the account ID resolved by AccountMiddleware.
	// Every account-scoped handler and the feature gate read it.
	AccountIDKey Key = "account_id"

	// RequestIDKey carries the request UUID assigned by RequestIDMiddleware,
	// for log correlation.
	RequestIDKey Key = "request_id"
)

// WithAccountID stores the account ID on the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// GetAccountID returns the account ID, or "" when the request is
// account-agnostic (health, webhook).
func GetAccountID(ctx context.Context) string {
	accountID, _ := ctx.Value(AccountIDKey).(string)
	return accountID
}

// WithRequestID stores the request ID on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request ID, or "" when none was assigned.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}
