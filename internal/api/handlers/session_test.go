package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLogged bool
	}{
		{
			name:       "not found",
			err:        &domain.ErrNotFound{Resource: "document", ID: "doc-1"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "validation",
			err:        &domain.ErrValidation{Field: "date", Message: "invalid"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "confirmation",
			err:        &domain.ErrConfirmationRequired{Action: "delete document"},
			wantStatus: http.StatusPreconditionRequired,
		},
		{
			name:       "unexpected",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
			req = req.WithContext(logger.WithContext(req.Context(), logger.NewWithWriter(buf)))
			rec := httptest.NewRecorder()

			writeDomainError(rec, req, tt.err, "Failed to build view")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLogged {
				assert.Contains(t, buf.String(), "disk on fire")
				assert.Contains(t, rec.Body.String(), "Failed to build view")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
