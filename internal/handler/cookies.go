package handler

import (
	"net/http"
	"time"

	"helixdesk/internal/middleware"
)

// sessionCookies writes the access and refresh cookies. Secure is off only
// in development where the frontend runs over plain http.
type sessionCookies struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (c sessionCookies) set(w http.ResponseWriter, name string, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (c sessionCookies) setAccess(w http.ResponseWriter, token string) {
	c.set(w, middleware.AccessTokenCookie, token, c.accessTTL)
}

func (c sessionCookies) setRefresh(w http.ResponseWriter, token string) {
	c.set(w, middleware.RefreshTokenCookie, token, c.refreshTTL)
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
