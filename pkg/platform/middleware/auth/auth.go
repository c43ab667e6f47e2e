// Package auth provides the HTTP middleware that authenticates the acting
// identity. The verified actor key is placed in the request context; the
// core never reads ambient session state, so handlers pull the key out and
// pass it to every service call as an explicit parameter.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"custos/pkg/domain"
)

// TokenValidator verifies a bearer token and returns the actor key it
// carries.
type TokenValidator interface {
	Validate(tokenString string) (domain.ActorKey, error)
}

type contextKeyActorKey struct{}

// ContextKeyActorKey is exported for tests that build authenticated
// requests without the middleware.
var ContextKeyActorKey = contextKeyActorKey{}

// GetActorKey retrieves the authenticated actor key from the context.
func GetActorKey(ctx context.Context) domain.ActorKey {
	key, ok := ctx.Value(ContextKeyActorKey).(domain.ActorKey)
	if !ok {
		return ""
	}
	return key
}

// WithActorKey returns a context carrying an actor key.
func WithActorKey(ctx context.Context, key domain.ActorKey) context.Context {
	return context.WithValue(ctx, ContextKeyActorKey, key)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireActor rejects requests without a valid bearer token and stores the
// verified actor key in the request context.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeJSONError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
				return
			}
			actorKey, err := validator.Validate(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				if logger != nil {
					logger.DebugContext(r.Context(), "actor token rejected", "error", err)
				}
				writeJSONError(w, http.StatusUnauthorized, "invalid_token", "actor token rejected")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActorKey(r.Context(), actorKey)))
		})
	}
}

// RequireAdminToken guards administrative endpoints (partner registration)
// with a static token header. The configuration carries only the bcrypt
// hash of the token, so a leaked config file does not leak the credential.
func RequireAdminToken(adminTokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Admin-Token")
			if adminTokenHash == "" || presented == "" ||
				bcrypt.CompareHashAndPassword([]byte(adminTokenHash), []byte(presented)) != nil {
				writeJSONError(w, http.StatusForbidden, "admin_token_required", "missing or invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
