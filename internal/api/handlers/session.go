package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/session"
	"github.com/dvloznov/statement-converter/internal/view"
)

// Session is the part of session.Session the HTTP layer drives.
type Session interface {
	Upload(ctx context.Context, files []domain.Upload, contextHint string) (session.UploadResult, error)
	Documents(ctx context.Context) []domain.Document
	Document(ctx context.Context, id string) (domain.Document, error)
	DeleteDocument(ctx context.Context, id string, confirmed bool) error
	UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string)
	View(ctx context.Context, key view.SortKey, dir view.Direction) session.Snapshot
	Select(ctx context.Context, selector string) error
	Export(ctx context.Context, w io.Writer) (filename string, ok bool, err error)
	ClearNotice()
}

var _ Session = (*session.Session)(nil)

// writeDomainError maps typed domain errors to status codes. Anything else is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		notFound   *domain.ErrNotFound
		validation *domain.ErrValidation
		confirm    *domain.ErrConfirmationRequired
	)

	switch {
	case errors.As(err, &notFound):
		middleware.WriteError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		middleware.WriteError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &confirm):
		middleware.WriteError(w, http.StatusPreconditionRequired, confirm.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
