package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"helixdesk/internal/middleware"
	"helixdesk/internal/model"
	"helixdesk/internal/oauth"
	"helixdesk/internal/service"
)

const (
	loginErrorOAuth = "oauth_failed"
	loginErrorOTP   = "otp_failed"
)

type AuthConfig struct {
	FrontendURL  string
	SecureCookie bool
}

type AuthHandler struct {
	identity *service.IdentityService
	otp      *service.OTPService
	sessions *service.SessionService
	provider oauth.Provider
	cookies  sessionCookies
	frontend string
}

func NewAuthHandler(
	identity *service.IdentityService,
	otp *service.OTPService,
	sessions *service.SessionService,
	tokens *service.TokenService,
	provider oauth.Provider,
	cfg AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		otp:      otp,
		sessions: sessions,
		provider: provider,
		cookies: sessionCookies{
			secure:     cfg.SecureCookie,
			accessTTL:  tokens.AccessTTL(),
			refreshTTL: tokens.RefreshTTL(),
		},
		frontend: cfg.FrontendURL,
	}
}

// GoogleLogin starts the authorization code flow with state and PKCE. Without
// a configured provider the browser is sent back to the login page.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.redirectLoginError(w, r, loginErrorOAuth)
		return
	}

	flow := oauth.NewFlow()
	flow.SetCookies(w, h.cookies.secure)
	http.Redirect(w, r, h.provider.AuthCodeURL(flow.State, flow.Verifier), http.StatusFound)
}

// GoogleCallback finishes the provider round trip and hands the identity to
// the OTP step. It never sets session cookies; the browser always lands on a
// frontend page.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	verifier, err := oauth.ReadFlow(r)
	oauth.ClearFlowCookies(w, h.cookies.secure)
	if h.provider == nil {
		h.redirectLoginError(w, r, loginErrorOAuth)
		return
	}
	if err != nil {
		slog.Warn("oauth callback rejected", "error", err)
		h.redirectLoginError(w, r, loginErrorOAuth)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" || query.Get("code") == "" {
		slog.Warn("oauth provider returned no code", "provider_error", providerErr)
		h.redirectLoginError(w, r, loginErrorOAuth)
		return
	}

	profile, err := h.provider.Exchange(r.Context(), query.Get("code"), verifier)
	if err != nil {
		slog.Error("oauth exchange failed", "error", err)
		h.redirectLoginError(w, r, loginErrorOAuth)
		return
	}

	user, err := h.identity.SignInExternal(r.Context(), profile)
	if err != nil {
		reason := loginErrorOAuth
		if user.ID != 0 {
			reason = loginErrorOTP
		}
		slog.Error("external sign-in failed", "reason", reason, "error", err)
		h.redirectLoginError(w, r, reason)
		return
	}

	http.Redirect(w, r, h.frontend+"/verify-otp?email="+url.QueryEscape(user.Email), http.StatusFound)
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontend+"/login?error="+reason, http.StatusFound)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	email, err := h.identity.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]string{"email": email})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload model.VerifyOTPRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.otp.Verify(r.Context(), payload.Email, payload.OTP)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.setAccess(w, tokens.AccessToken)
	h.cookies.setRefresh(w, tokens.RefreshToken)
	writeSuccess(w, http.StatusOK, model.RoleResponse{Role: tokens.Role})
}

// RefreshToken answers 401 without a refresh cookie and 403 when the cookie
// is no longer honoured.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.sessions.Refresh(r.Context(), cookieValue(r, middleware.RefreshTokenCookie))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.setAccess(w, tokens.AccessToken)
	writeSuccess(w, http.StatusOK, model.RoleResponse{Role: tokens.Role})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.identity.Profile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile)
}

// Logout clears both cookies even when the stored session could not be
// revoked, so the browser is always signed out locally.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Logout(r.Context(),
		cookieValue(r, middleware.AccessTokenCookie),
		cookieValue(r, middleware.RefreshTokenCookie),
	)
	h.cookies.clear(w)
	if err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Logged out successfully")
}
