package rankinghttp

import (
	"context"
	"net/http"
	"strings"

	rankingjwt "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/jwt"
)

type claimsKey struct{}

// ClaimsFrom returns the bearer claims BearerAuth stored on the request context.
func ClaimsFrom(ctx context.Context) (*rankingjwt.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*rankingjwt.Claims)
	return c, ok
}

// BearerAuth rejects requests without a valid bearer token carrying role.
func BearerAuth(tokens rankingjwt.Provider, role rankingjwt.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.ValidateToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
