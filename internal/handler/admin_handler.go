package handler

import (
	"net/http"
	"strconv"
	"strings"

	"helixdesk/internal/model"
	"helixdesk/internal/service"
)

type AdminHandler struct {
	stats *service.AdminService
	audit *service.AuditService
}

func NewAdminHandler(stats *service.AdminService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{stats: stats, audit: audit}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

// Logs lists recent audit entries, optionally filtered by event_type,
// status and user_id.
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.AuditQuery{
		EventType: strings.ToUpper(strings.TrimSpace(query.Get("event_type"))),
		Status:    strings.ToUpper(strings.TrimSpace(query.Get("status"))),
		Limit:     parseIntOrDefault(query.Get("limit"), 50),
	}
	if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, badRequest("user_id must be an integer", "user_id"))
			return
		}
		filter.UserID = &id
	}

	items, err := h.audit.Recent(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.AuditEntry{}
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items})
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
