package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/session"
	"github.com/dvloznov/statement-converter/internal/source"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	session        Session
	maxUploadBytes int64
}

// NewDocumentsHandler creates a new documents handler. Files larger than
// maxUploadBytes are still read far enough to be reported as rejected. A
// non-positive limit means session.DefaultMaxUploadBytes, the session's own default.
func NewDocumentsHandler(sess Session, maxUploadBytes int64) *DocumentsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = session.DefaultMaxUploadBytes
	}
	return &DocumentsHandler{
		session:        sess,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadDocuments handles POST /api/documents (multipart field "files", optional "context").
func (h *DocumentsHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	files := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := h.readPart(fh)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("file_name", fh.Filename).Msg("Failed to read uploaded file")
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		files = append(files, upload)
	}

	result, err := h.session.Upload(r.Context(), files, r.FormValue("context"))
	if err != nil {
		var validation *domain.ErrValidation
		if errors.As(err, &validation) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":    validation.Message,
				"rejected": result.Rejected,
				"notice":   result.Notice,
			})
			return
		}
		writeDomainError(w, r, err, "Failed to upload documents")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, result)
}

// readPart reads at most one byte past the size limit so oversize files can be rejected by size.
func (h *DocumentsHandler) readPart(fh *multipart.FileHeader) (domain.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("open part: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read part: %w", err)
	}

	return domain.Upload{
		FileName: fh.Filename,
		MIMEType: declaredType(fh),
		Data:     data,
	}, nil
}

// declaredType is the part's Content-Type, or a guess from the file name when the client sent none.
func declaredType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	return source.TypeByName(fh.Filename)
}

// ListDocuments handles GET /api/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents := h.session.Documents(r.Context())

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.session.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "Failed to get document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}?confirm=true
func (h *DocumentsHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	if err := h.session.DeleteDocument(r.Context(), chi.URLParam(r, "id"), confirmed); err != nil {
		writeDomainError(w, r, err, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
