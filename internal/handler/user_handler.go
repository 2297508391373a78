package handler

import (
	"net/http"

	"helixdesk/internal/model"
	"helixdesk/internal/service"
)

// UserHandler serves admin identity management.
type UserHandler struct {
	identity *service.IdentityService
}

func NewUserHandler(identity *service.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateRoleRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.identity.UpdateRole(r.Context(), actor.UserID, targetID, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated)
}

func (h *UserHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	actor, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.identity.RevokeSessions(r.Context(), actor.UserID, targetID); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Sessions revoked")
}
