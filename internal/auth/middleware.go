package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

type ctxKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// UserIDFromContext returns the id set by RequireBearer.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok && id > 0
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// access token and puts the token's user id on the request context.
func RequireBearer(svc *TokenService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
				utilities.WriteError(w, http.StatusUnauthorized, "missing_token", "missing bearer token")
				return
			}
			id, err := svc.Verify(strings.TrimSpace(h[len("bearer "):]))
			if err != nil {
				logger.Debugw("rejected bearer token", "err", err)
				utilities.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}
