package handler

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"helixdesk/internal/storage"
)

// uuid plus separating dash
const storedNamePrefixLen = 37

type UploadHandler struct {
	store *storage.AttachmentStore
}

func NewUploadHandler(store *storage.AttachmentStore) *UploadHandler {
	return &UploadHandler{store: store}
}

const attachmentCSP = "default-src 'none'; sandbox"

// Download streams a stored attachment to any signed-in user. The download
// name drops the uniqueness prefix added at upload time.
func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	w.Header().Set("Content-Security-Policy", attachmentCSP)

	file, info, err := h.store.Open(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	filename := name
	if len(name) > storedNamePrefixLen && name[storedNamePrefixLen-1] == '-' {
		filename = name[storedNamePrefixLen:]
	}

	disposition := "attachment"
	contentType := storage.ContentType(name)
	if storage.Inline(contentType) {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, info.ModTime(), file)
}
