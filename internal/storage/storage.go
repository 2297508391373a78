// Package storage keeps ticket attachments on the local filesystem.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"helixdesk/internal/model"
	"helixdesk/pkg/apierror"
)

// URLPrefix is where stored attachments are served from.
const URLPrefix = "/uploads/"

var ErrAttachmentNotFound = apierror.NotFound("attachment not found", "")

// storedExtensions maps sniffed MIME types to the extension an attachment is
// stored under. The client's own extension is never kept.
var storedExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"text/plain":      ".txt",
}

const fallbackExtension = ".bin"

// servedTypes is the reverse of storedExtensions for downloads.
var servedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".txt":  "text/plain; charset=utf-8",
}

// Types a browser may render inline. Everything else downloads.
var inlineTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
}

type Options struct {
	Dir          string
	MaxSize      int64
	AllowedTypes []string
}

type AttachmentStore struct {
	validator *PathValidator
	maxSize   int64
	allowed   map[string]struct{}
}

func New(opts Options) (*AttachmentStore, error) {
	validator, err := NewPathValidator(opts.Dir)
	if err != nil {
		return nil, err
	}
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("max attachment size must be positive")
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[normalizeMIME(t)] = struct{}{}
	}

	return &AttachmentStore{validator: validator, maxSize: opts.MaxSize, allowed: allowed}, nil
}

func (s *AttachmentStore) Dir() string {
	return s.validator.RootAbs()
}

// Save sniffs the content type, enforces the allow-list and size limit and
// writes the upload under a unique sanitized name whose extension follows the
// sniffed type. Partial files never become visible under the final name.
func (s *AttachmentStore) Save(ctx context.Context, upload model.Upload) (model.StoredAttachment, error) {
	if err := ctx.Err(); err != nil {
		return model.StoredAttachment{}, err
	}
	if upload.Reader == nil {
		return model.StoredAttachment{}, apierror.BadRequest("attachment is empty", "")
	}

	original, err := SanitizeFilename(upload.Filename)
	if err != nil {
		return model.StoredAttachment{}, err
	}

	reader := bufio.NewReaderSize(upload.Reader, 512)
	head, err := reader.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return model.StoredAttachment{}, fmt.Errorf("read attachment: %w", err)
	}
	if len(head) == 0 {
		return model.StoredAttachment{}, apierror.BadRequest("attachment is empty", "")
	}

	mimeType := normalizeMIME(http.DetectContentType(head))
	if _, ok := s.allowed[mimeType]; !ok {
		return model.StoredAttachment{}, apierror.New("UNSUPPORTED_MEDIA_TYPE", "attachment type is not allowed", mimeType, http.StatusUnsupportedMediaType)
	}

	tmp, err := os.CreateTemp(s.validator.RootAbs(), ".upload-*")
	if err != nil {
		return model.StoredAttachment{}, fmt.Errorf("create temp attachment: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	written, err := io.Copy(tmp, io.LimitReader(reader, s.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return model.StoredAttachment{}, fmt.Errorf("write attachment: %w", err)
	}
	if closeErr != nil {
		return model.StoredAttachment{}, fmt.Errorf("close attachment: %w", closeErr)
	}
	if written > s.maxSize {
		return model.StoredAttachment{}, apierror.New("FILE_TOO_LARGE", "attachment exceeds the maximum size", fmt.Sprintf("max %d bytes", s.maxSize), http.StatusRequestEntityTooLarge)
	}

	name := uuid.NewString() + "-" + storedFilename(original, mimeType)
	finalPath, err := s.validator.ResolveName(name)
	if err != nil {
		return model.StoredAttachment{}, err
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		return model.StoredAttachment{}, fmt.Errorf("store attachment: %w", err)
	}

	return model.StoredAttachment{
		Name:     name,
		URL:      URLPrefix + name,
		Size:     written,
		MimeType: mimeType,
	}, nil
}

func (s *AttachmentStore) Remove(name string) error {
	resolved, err := s.validator.ResolveName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove attachment %q: %w", name, err)
	}
	return nil
}

// Open returns the stored attachment for download. Callers close the file.
func (s *AttachmentStore) Open(name string) (*os.File, fs.FileInfo, error) {
	if strings.HasPrefix(name, ".") {
		return nil, nil, ErrAttachmentNotFound
	}

	resolved, err := s.validator.ResolveName(name)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, nil, ErrAttachmentNotFound
	}

	return file, info, nil
}

// ContentType returns the MIME type for a stored name. Only extensions Save
// produces are recognised; anything else is served as opaque binary.
func ContentType(name string) string {
	if t, ok := servedTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// Inline reports whether a served content type may be displayed in the
// browser rather than downloaded.
func Inline(contentType string) bool {
	_, ok := inlineTypes[normalizeMIME(contentType)]
	return ok
}

func storedFilename(original string, mimeType string) string {
	ext, ok := storedExtensions[mimeType]
	if !ok {
		ext = fallbackExtension
	}

	stem := strings.TrimSuffix(original, filepath.Ext(original))
	if stem == "" {
		stem = "attachment"
	}
	return stem + ext
}

func normalizeMIME(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}
