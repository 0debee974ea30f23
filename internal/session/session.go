// Package session holds the state of the single user session: uploaded documents,
// the current view selector and the global notice, and runs extractions.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/extraction"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/metrics"
	"github.com/dvloznov/statement-converter/internal/pdfinfo"
	"github.com/dvloznov/statement-converter/internal/store"
	"github.com/dvloznov/statement-converter/internal/view"
	"github.com/rs/zerolog"
)

// DefaultMaxUploadBytes caps a single uploaded file.
const DefaultMaxUploadBytes = 10 << 20

// Extractor turns one uploaded PDF into transactions.
type Extractor interface {
	Extract(ctx context.Context, file domain.Upload, contextHint string) ([]domain.Transaction, error)
}

// Config tunes a Session.
type Config struct {
	MaxUploadBytes int64
	ContextHint    string // used when an upload carries no hint of its own
}

// Session is safe for concurrent use.
type Session struct {
	store     store.DocumentStore
	extractor Extractor
	publisher jobs.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	cfg       Config

	now       func() time.Time
	pageCount func([]byte) (int, error)

	mu       sync.Mutex
	selector string
	notice   string
	changed  chan struct{} // closed and replaced whenever a document settles or goes away
}

// New creates a session viewing ALL with no notice.
func New(st store.DocumentStore, ex Extractor, pub jobs.Publisher, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Session {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Session{
		store:     st,
		extractor: ex,
		publisher: pub,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		pageCount: pdfinfo.PageCount,
		selector:  view.All,
		changed:   make(chan struct{}),
	}
}

// Rejection is a file turned away by the acceptance filter.
type Rejection struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// UploadResult reports what an upload batch did.
type UploadResult struct {
	Documents []domain.Document `json:"documents"`
	Rejected  []Rejection       `json:"rejected"`
	Notice    string            `json:"notice,omitempty"`
}

// Upload filters a batch, creates one processing document per accepted PDF and
// queues its extraction. Any rejected file sets the global notice. A batch with
// nothing accepted creates nothing and returns an ErrValidation.
func (s *Session) Upload(ctx context.Context, files []domain.Upload, contextHint string) (UploadResult, error) {
	result := UploadResult{Documents: []domain.Document{}, Rejected: []Rejection{}}

	accepted := make([]domain.Upload, 0, len(files))
	for _, f := range files {
		if reason := s.rejectReason(f); reason != "" {
			result.Rejected = append(result.Rejected, Rejection{FileName: f.FileName, Reason: reason})
			continue
		}
		accepted = append(accepted, f)
	}

	if len(result.Rejected) > 0 {
		result.Notice = s.rejectionNotice(result.Rejected)
		s.setNotice(result.Notice)
	}

	s.metrics.RecordUpload(len(accepted), len(result.Rejected))

	if len(accepted) == 0 {
		msg := result.Notice
		if msg == "" {
			msg = "Aucun fichier reçu."
		}
		return result, &domain.ErrValidation{Field: "files", Message: msg}
	}

	for i := range accepted {
		n, err := s.pageCount(accepted[i].Data)
		if err != nil {
			s.log.Warn().Err(err).Str("file_name", accepted[i].FileName).Msg("Could not read page count")
			continue
		}
		accepted[i].PageCount = n
	}

	if contextHint == "" {
		contextHint = s.cfg.ContextHint
	}

	docs := s.store.AddDocuments(ctx, accepted)
	for i, doc := range docs {
		job := &jobs.ExtractJob{
			DocumentID:  doc.ID,
			File:        accepted[i],
			ContextHint: contextHint,
		}
		if err := s.publisher.PublishExtract(ctx, job); err != nil {
			log := logger.WithDocument(s.log, doc.ID, doc.FileName)
			log.Error().Err(err).Msg("Failed to queue extraction")
			s.store.FailDocument(ctx, doc.ID, extraction.FallbackMessage)
			s.notify()
			continue
		}
		s.log.Info().
			Str("document_id", doc.ID).
			Str("job_id", job.JobID).
			Str("file_name", doc.FileName).
			Int("pages", doc.PageCount).
			Msg("Queued extraction")
	}

	if len(docs) == 1 {
		s.mu.Lock()
		s.selector = docs[0].ID
		s.mu.Unlock()
	}

	for _, doc := range docs {
		current, err := s.store.GetDocument(ctx, doc.ID)
		if err != nil {
			continue
		}
		result.Documents = append(result.Documents, current)
	}

	return result, nil
}

// Rejection reasons.
const (
	ReasonNotPDF   = "not_pdf"
	ReasonTooLarge = "too_large"
)

func (s *Session) rejectReason(f domain.Upload) string {
	switch {
	case !f.IsPDF():
		return ReasonNotPDF
	case int64(len(f.Data)) > s.cfg.MaxUploadBytes:
		return ReasonTooLarge
	}
	return ""
}

func (s *Session) rejectionNotice(rejected []Rejection) string {
	var notPDF, tooLarge []string
	for _, r := range rejected {
		if r.Reason == ReasonTooLarge {
			tooLarge = append(tooLarge, r.FileName)
		} else {
			notPDF = append(notPDF, r.FileName)
		}
	}

	var parts []string
	if len(notPDF) > 0 {
		parts = append(parts, "Seuls les fichiers PDF sont acceptés. Fichiers ignorés : "+strings.Join(notPDF, ", ")+".")
	}
	if len(tooLarge) > 0 {
		limit := float64(s.cfg.MaxUploadBytes) / (1 << 20)
		parts = append(parts, fmt.Sprintf("Fichiers trop volumineux (%g Mo maximum) : %s.", limit, strings.Join(tooLarge, ", ")))
	}
	return strings.Join(parts, " ")
}

// HandleJob runs one extraction and settles its document. A result for a document
// deleted in the meantime is dropped. The returned error only reports the job outcome.
func (s *Session) HandleJob(ctx context.Context, job *jobs.ExtractJob) error {
	log := logger.WithDocument(s.log, job.DocumentID, job.File.FileName).
		With().Str("job_id", job.JobID).Logger()

	started := s.now()
	txs, err := s.extractor.Extract(ctx, job.File, job.ContextHint)
	elapsed := s.now().Sub(started)

	defer s.notify()

	if err != nil {
		msg := extraction.UserMessage(err)
		if !s.store.FailDocument(ctx, job.DocumentID, msg) {
			s.metrics.RecordExtraction(metrics.OutcomeDropped, elapsed, 0)
			log.Info().Err(err).Msg("Dropped failed extraction for removed document")
			return err
		}
		s.metrics.RecordExtraction(metrics.OutcomeError, elapsed, 0)
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("Extraction failed")
		return err
	}

	if !s.store.CompleteDocument(ctx, job.DocumentID, txs) {
		s.metrics.RecordExtraction(metrics.OutcomeDropped, elapsed, 0)
		log.Info().Msg("Dropped extraction result for removed document")
		return nil
	}

	s.metrics.RecordExtraction(metrics.OutcomeReady, elapsed, len(txs))
	log.Info().Int("transactions", len(txs)).Dur("elapsed", elapsed).Msg("Extraction completed")
	return nil
}

// Documents lists every document in upload order.
func (s *Session) Documents(ctx context.Context) []domain.Document {
	return s.store.ListDocuments(ctx)
}

// Document returns one document.
func (s *Session) Document(ctx context.Context, id string) (domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Selector returns the current view selector.
func (s *Session) Selector() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector
}

// Select switches the view to ALL or to an existing document.
func (s *Session) Select(ctx context.Context, selector string) error {
	if selector != view.All {
		if _, err := s.store.GetDocument(ctx, selector); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.selector = selector
	s.mu.Unlock()
	return nil
}

// DeleteDocument removes a document once the user confirmed. Deleting the
// selected document moves the view back to ALL.
func (s *Session) DeleteDocument(ctx context.Context, id string, confirmed bool) error {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return err
	}
	if !confirmed {
		return &domain.ErrConfirmationRequired{Action: "delete document " + id}
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selector == id {
		s.selector = view.All
	}
	s.mu.Unlock()

	s.notify()
	s.log.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}

// DeleteTransaction removes a transaction. Unknown ids are ignored.
func (s *Session) DeleteTransaction(ctx context.Context, id string) {
	s.store.DeleteTransaction(ctx, id)
}

// UpdateTransaction edits one field of one transaction.
func (s *Session) UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error) {
	return s.store.UpdateTransaction(ctx, id, update)
}

// Notice returns the global notice, empty when there is none.
func (s *Session) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// ClearNotice dismisses the global notice.
func (s *Session) ClearNotice() {
	s.setNotice("")
}

func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Wait blocks until no document is processing or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if !s.anyProcessing(ctx) {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) anyProcessing(ctx context.Context) bool {
	for _, doc := range s.store.ListDocuments(ctx) {
		if doc.Status == domain.StatusProcessing {
			return true
		}
	}
	return false
}
