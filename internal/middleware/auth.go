package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/invoice-pay/internal/auth"
	"github.com/josh-kwaku/invoice-pay/internal/handler"
	"github.com/josh-kwaku/invoice-pay/internal/logging"
)

// Auth validates the bearer token and requires the admin role.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			if !claims.IsAdmin() {
				handler.RespondAppError(w, handler.ErrForbidden, nil)
				return
			}

			ctx, _ := logging.With(auth.ContextWithClaims(r.Context(), claims), "subject", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
