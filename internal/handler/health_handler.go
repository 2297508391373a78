package handler

import (
	"context"
	"net/http"
	"time"

	"helixdesk/pkg/apierror"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db healthChecker
}

func NewHealthHandler(db healthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		writeError(w, apierror.New("UNAVAILABLE", "database unreachable", "", http.StatusServiceUnavailable))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
