// Package context carries per-request values across layer boundaries
// without leaking transport types into the domain.
package context

import "context"

type requestIDKey struct{}

// WithRequestID stores the id the HTTP middleware assigned to this request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the stored request id, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
