package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackRequest(state string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=c&state="+state, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestFlowRoundTrip(t *testing.T) {
	flow := NewFlow()
	require.NotEmpty(t, flow.State)
	require.NotEqual(t, flow.State, flow.Verifier)

	rec := httptest.NewRecorder()
	flow.SetCookies(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, 300, c.MaxAge)
		assert.Equal(t, "/api/auth/google", c.Path)
	}

	verifier, err := ReadFlow(callbackRequest(flow.State, cookies))
	require.NoError(t, err)
	assert.Equal(t, flow.Verifier, verifier)
}

func TestReadFlowRejectsStateMismatch(t *testing.T) {
	flow := NewFlow()
	rec := httptest.NewRecorder()
	flow.SetCookies(rec, false)

	_, err := ReadFlow(callbackRequest("forged", rec.Result().Cookies()))
	require.ErrorIs(t, err, ErrStateMismatch)

	_, err = ReadFlow(callbackRequest(flow.State, nil))
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestReadFlowRequiresVerifier(t *testing.T) {
	flow := NewFlow()
	state := &http.Cookie{Name: stateCookieName, Value: flow.State}

	_, err := ReadFlow(callbackRequest(flow.State, []*http.Cookie{state}))
	require.ErrorIs(t, err, ErrMissingVerifier)
}

func TestClearFlowCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearFlowCookies(rec, false)

	for _, c := range rec.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}
