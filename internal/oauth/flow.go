package oauth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	stateCookieName    = "oauth_state"
	verifierCookieName = "oauth_pkce"
	flowTTL            = 5 * time.Minute
	flowCookiePath     = "/api/auth/google"
)

var (
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrMissingVerifier = errors.New("missing pkce verifier")
)

// Flow is the per-login secret pair that must survive the provider redirect.
type Flow struct {
	State    string
	Verifier string
}

func NewFlow() Flow {
	return Flow{
		State:    oauth2.GenerateVerifier(),
		Verifier: oauth2.GenerateVerifier(),
	}
}

// SetCookies stores the flow in short-lived HTTP-only cookies scoped to the
// Google auth routes.
func (f Flow) SetCookies(w http.ResponseWriter, secure bool) {
	for name, value := range map[string]string{stateCookieName: f.State, verifierCookieName: f.Verifier} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     flowCookiePath,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(flowTTL.Seconds()),
		})
	}
}

// ReadFlow validates the callback's state against the cookie and returns the
// stored PKCE verifier.
func ReadFlow(r *http.Request) (string, error) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if state == "" || err != nil || subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) != 1 {
		return "", ErrStateMismatch
	}

	verifier, err := r.Cookie(verifierCookieName)
	if err != nil || verifier.Value == "" {
		return "", ErrMissingVerifier
	}
	return verifier.Value, nil
}

func ClearFlowCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{stateCookieName, verifierCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     flowCookiePath,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
