package middleware

import (
	"net/http"
	"strings"

	"github.com/pinielabera/thriftndrift-backend/api/responses"
	pkgauth "github.com/pinielabera/thriftndrift-backend/pkg/auth"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// caller identity. It authenticates only; the moderation endpoints
// re-check the admins collection on every call so a revocation takes
// effect immediately even for holders of still-valid tokens.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeUnauthorized, "missing credentials"))
				return
			}

			identity, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithUserID(ctx, identity.ID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
