package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hecoverseer/backend/internal/auth"
)

type contextKey string

const ctxOperatorKey contextKey = "operator"

// TokenValidator is the interface used by operator auth middleware.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (subject, role string, err error)
}

// OperatorAuth admits requests carrying a valid operator Bearer JWT and puts
// the operator name into the request context. A nil validator disables the
// check and every request passes.
func OperatorAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			sub, role, err := validator.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if role != auth.RoleOperator {
				http.Error(w, `{"error":"operator role required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), sub)))
		})
	}
}

// OperatorFromCtx returns the authenticated operator name, or "".
func OperatorFromCtx(ctx context.Context) string {
	op, _ := ctx.Value(ctxOperatorKey).(string)
	return op
}

// WithOperator returns a context carrying the given operator name.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxOperatorKey, name)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
