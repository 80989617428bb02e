package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gavel/pkg/domain"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims carries the authenticated caller identity.
type TokenClaims struct {
	Address domain.Address
}

type contextKeyCaller struct{}

// ContextKeyCaller is exported for tests that inject an authenticated caller.
var ContextKeyCaller = contextKeyCaller{}

// GetCaller retrieves the authenticated caller address from the context.
func GetCaller(ctx context.Context) domain.Address {
	addr, ok := ctx.Value(ContextKeyCaller).(domain.Address)
	if !ok {
		return domain.AddressNone
	}
	return addr
}

// WithCaller injects a caller address, for tests and internal invocation.
func WithCaller(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, addr)
}

// RequireAuth validates the Bearer token and stores the caller address in
// the request context. Authority for privileged operations is still checked
// by the service; this middleware only establishes identity.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, r, logger, "missing token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claims.Address)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.WarnContext(r.Context(), "unauthorized access",
		"reason", reason,
		"request_id", GetRequestID(r.Context()),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
