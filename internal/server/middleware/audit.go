package middleware

import (
	"context"
	"net/http"
)

// AuditAttacher marks a request context so post-commit audit work can be
// scheduled against it. *activity.Hook satisfies this interface.
type AuditAttacher interface {
	Attach(ctx context.Context) context.Context
}

// Audit attaches per-request audit state before the handler runs.
func Audit(hook AuditAttacher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(hook.Attach(r.Context())))
		})
	}
}
