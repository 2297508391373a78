package handler

import (
	"log/slog"
	"net/http"

	gws "github.com/gorilla/websocket"

	"helixdesk/internal/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader *gws.Upgrader
}

func NewWSHandler(hub *websocket.Hub, upgrader *gws.Upgrader) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	viewer, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// A failed upgrade has already written its response.
	if err := h.hub.Serve(h.upgrader, w, r, viewer); err != nil {
		slog.Warn("websocket upgrade failed", "user_id", viewer.UserID, "error", err)
	}
}
