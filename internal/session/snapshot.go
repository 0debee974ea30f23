package session

import (
	"context"
	"fmt"
	"io"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/view"
)

// Tab summarizes one document for the document switcher.
type Tab struct {
	ID               string        `json:"id"`
	FileName         string        `json:"fileName"`
	Status           domain.Status `json:"status"`
	Error            string        `json:"error,omitempty"`
	TransactionCount int           `json:"transactionCount"`
}

// Snapshot is everything the user sees at one instant.
type Snapshot struct {
	Selector     string               `json:"selector"`
	Document     *domain.Document     `json:"document,omitempty"` // nil when viewing ALL
	Tabs         []Tab                `json:"tabs"`
	Transactions []domain.Transaction `json:"transactions"`
	Stats        domain.Stats         `json:"stats"`
	Processing   bool                 `json:"processing"` // some document is still being extracted
	Notice       string               `json:"notice,omitempty"`
}

// View derives the current snapshot. A non-empty sort key orders the displayed
// transactions for this snapshot only.
func (s *Session) View(ctx context.Context, key view.SortKey, dir view.Direction) Snapshot {
	docs := s.store.ListDocuments(ctx)

	s.mu.Lock()
	selector := s.selector
	notice := s.notice
	s.mu.Unlock()

	snap := Snapshot{
		Selector: view.All,
		Tabs:     make([]Tab, 0, len(docs)),
		Notice:   notice,
	}

	for i := range docs {
		doc := docs[i]
		snap.Tabs = append(snap.Tabs, Tab{
			ID:               doc.ID,
			FileName:         doc.FileName,
			Status:           doc.Status,
			Error:            doc.Error,
			TransactionCount: len(doc.Transactions),
		})
		if doc.Status == domain.StatusProcessing {
			snap.Processing = true
		}
		if doc.ID == selector {
			snap.Selector = selector
			snap.Document = &doc
		}
	}

	txs := view.Displayed(docs, snap.Selector)
	snap.Stats = view.ComputeStats(txs)
	snap.Transactions = view.Sort(txs, key, dir)
	return snap
}

// Export writes the displayed transactions as a workbook and returns its file name.
// When nothing is displayed no workbook is written and ok is false.
func (s *Session) Export(ctx context.Context, w io.Writer) (filename string, ok bool, err error) {
	snap := s.View(ctx, view.SortNone, view.Asc)
	if len(snap.Transactions) == 0 {
		return "", false, nil
	}

	if err := export.WriteXLSX(w, snap.Transactions); err != nil {
		return "", false, fmt.Errorf("Export: %w", err)
	}

	scope := "all"
	if snap.Document != nil {
		scope = "document"
	}
	s.metrics.RecordExport(scope)

	return export.Filename(snap.Document, s.now()) + export.Extension, true, nil
}
