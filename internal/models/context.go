package models

import (
	"context"
)

type callerContextKey struct{}

// Caller identifies the authenticated user behind a request
type Caller struct {
	UserId    string
	RequestId string
}

// WithCaller attaches the authenticated caller to a context.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// GetCaller retrieves the caller from context, or nil if absent.
func GetCaller(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerContextKey{}).(*Caller)
	return c
}
