package handler

import (
	"errors"
	"net/http"

	"helixdesk/internal/model"
	"helixdesk/internal/service"
	"helixdesk/pkg/apierror"
)

const multipartMemory = 1 << 20

type TicketHandler struct {
	tickets       *service.TicketService
	maxUploadSize int64
}

func NewTicketHandler(tickets *service.TicketService, maxUploadSize int64) *TicketHandler {
	return &TicketHandler{tickets: tickets, maxUploadSize: maxUploadSize}
}

// Create accepts a multipart form with an optional "attachment" file part.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apierror.New("FILE_TOO_LARGE", "attachment exceeds the maximum size", "", http.StatusRequestEntityTooLarge))
			return
		}
		writeError(w, badRequest("invalid multipart form", ""))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	input := model.CreateTicketInput{
		Subject:     r.FormValue("subject"),
		Description: r.FormValue("description"),
		Priority:    r.FormValue("priority"),
		Department:  r.FormValue("department"),
		Category:    r.FormValue("category"),
	}

	var upload *model.Upload
	file, header, err := r.FormFile("attachment")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, badRequest("invalid attachment", ""))
		return
	default:
		defer file.Close()
		upload = &model.Upload{Filename: header.Filename, Reader: file}
	}

	ticket, err := h.tickets.Create(r.Context(), requester, input, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) MyTickets(w http.ResponseWriter, r *http.Request) {
	requester, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.tickets.MyTickets(r.Context(), requester.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list)
}

func (h *TicketHandler) Queue(w http.ResponseWriter, r *http.Request) {
	list, err := h.tickets.Queue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := h.tickets.Details(r.Context(), viewer, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, details)
}

func (h *TicketHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	sender, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.AddMessageRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	message, err := h.tickets.AddMessage(r.Context(), sender, id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, message)
}

func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := claimsFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateStatusRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	ticket, err := h.tickets.UpdateStatus(r.Context(), actor, id, payload.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, ticket)
}
