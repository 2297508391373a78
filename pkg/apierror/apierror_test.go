package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Parallel()

	t.Run("formats code message and details", func(t *testing.T) {
		err := BadRequest("invalid role", "role")
		require.Equal(t, "BAD_REQUEST: invalid role (role)", err.Error())
		require.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("smtp: connection refused")
		err := Wrap(cause, "UPSTREAM_DISPATCH_FAILURE", "could not send code", http.StatusBadGateway)

		require.ErrorIs(t, err, cause)
		require.NotContains(t, err.Error(), "connection refused")

		var apiErr *APIError
		require.ErrorAs(t, error(err), &apiErr)
		require.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
	})

	t.Run("nil receiver is safe", func(t *testing.T) {
		var err *APIError
		require.Equal(t, "", err.Error())
		require.NoError(t, err.Unwrap())
	})
}
