package handlers

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/view"
)

// ViewHandler serves the derived view, the selector, the export and the notice.
type ViewHandler struct {
	session Session
}

// NewViewHandler creates a new view handler.
func NewViewHandler(sess Session) *ViewHandler {
	return &ViewHandler{session: sess}
}

// GetView handles GET /api/view[?sort=date&dir=asc]
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	key, dir, err := view.ParseSort(r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))
	if err != nil {
		writeDomainError(w, r, err, "Failed to build view")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.session.View(r.Context(), key, dir))
}

// Select handles PUT /api/view with {"selector": "ALL" | "<document id>"}.
func (h *ViewHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selector string `json:"selector"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Selector == "" {
		middleware.WriteError(w, http.StatusBadRequest, "selector is required")
		return
	}

	if err := h.session.Select(r.Context(), req.Selector); err != nil {
		writeDomainError(w, r, err, "Failed to select view")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.session.View(r.Context(), view.SortNone, view.Asc))
}

// Export handles GET /api/export. Nothing displayed means 204 and no file.
func (h *ViewHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	filename, ok, err := h.session.Export(r.Context(), &buf)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to export workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export workbook")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to write workbook")
	}
}

// ClearNotice handles DELETE /api/notice
func (h *ViewHandler) ClearNotice(w http.ResponseWriter, r *http.Request) {
	h.session.ClearNotice()
	w.WriteHeader(http.StatusNoContent)
}
