package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vaughan-dsouza/postagg/internal/utils"
)

// AuthMiddleware requires a Bearer token signed with secret and stores its
// subject in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			auth := r.Header.Get("Authorization")
			if auth == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				utils.JSONError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			token := strings.TrimSpace(parts[1])
			if token == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := utils.VerifyToken(token, secret)
			if err != nil {
				utils.JSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// push subject into context
			ctx := context.WithValue(r.Context(), utils.CtxSubjectKey, claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
