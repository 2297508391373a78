package middleware

import (
	"context"
	"net/http"

	"helixdesk/internal/model"
)

// Session cookie names shared with the frontend.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type accessTokenParser interface {
	ParseAccessToken(raw string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	parser accessTokenParser
}

func NewAuthMiddleware(parser accessTokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

// RequireAuth admits requests carrying a valid access token cookie. Expired
// and missing tokens both answer 401 so clients run their refresh path.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AccessTokenCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Session expired. Please login.")
			return
		}

		claims, err := m.parser.ParseAccessToken(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "INVALID_SESSION", "Invalid session")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRoles must run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	roleSet := make(map[model.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Session expired. Please login.")
				return
			}

			if _, permitted := roleSet[claims.Role]; !permitted {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok && claims != nil
}
