package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"helixdesk/internal/middleware"
	"helixdesk/internal/model"
	"helixdesk/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
	})
}

// writeError maps domain errors onto the API error envelope. Messages are
// fixed per class so responses never reveal whether an email exists.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrUnauthenticated):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHENTICATED"
		body.Message = "Session expired. Please login."
	case errors.Is(err, model.ErrInvalidSession):
		status = http.StatusUnauthorized
		body.Code = "INVALID_SESSION"
		body.Message = "Invalid session"
	case errors.Is(err, model.ErrSessionRejected):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Session is no longer valid"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	case errors.Is(err, model.ErrInvalidOrExpiredCode):
		status = http.StatusBadRequest
		body.Code = "INVALID_OR_EXPIRED_CODE"
		body.Message = "Invalid or expired code"
	case errors.Is(err, model.ErrTooManyAttempts):
		status = http.StatusTooManyRequests
		body.Code = "TOO_MANY_ATTEMPTS"
		body.Message = "Too many attempts. Try again later."
	case errors.Is(err, model.ErrUpstreamDispatch):
		status = http.StatusBadGateway
		body.Code = "UPSTREAM_DISPATCH_FAILURE"
		body.Message = "Could not send the verification code"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	case errors.Is(err, model.ErrTicketNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Ticket not found"
	case errors.Is(err, model.ErrUserAlreadyExists):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "An account with this email already exists"
	case errors.Is(err, model.ErrInvalidRole):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid role"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = strings.TrimPrefix(err.Error(), model.ErrInvalidInput.Error()+": ")
	default:
		slog.Error("unhandled error in writeError", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func badRequest(message string, details string) error {
	return apierror.BadRequest(message, details)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return badRequest("invalid JSON body", "")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name+" must be a positive integer", name)
	}
	return id, nil
}

// claimsFrom returns the caller set by RequireAuth. Routes using it are
// always mounted behind that middleware.
func claimsFrom(r *http.Request) (model.AuthClaims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return model.AuthClaims{}, model.ErrUnauthenticated
	}
	return *claims, nil
}
