// Package requestid generates and carries the correlation id attached to every
// invocation, log line and audit event.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const Header = "X-Request-Id"

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok && v != ""
}

// Ensure returns the id carried by ctx, or attaches a fresh one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := New()
	return WithContext(ctx, id), id
}

// Sanitize accepts a caller-supplied id if it is short printable ASCII.
func Sanitize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 128 {
		return "", false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return "", false
		}
	}
	return id, true
}
