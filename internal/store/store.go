package store

import (
	"context"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// DocumentStore is the source of truth for uploaded documents and their transactions.
// Every mutation is keyed by id so concurrent settlements of different documents commute.
type DocumentStore interface {
	// AddDocuments creates one processing document per upload, in order, and returns them
	// so the caller can correlate asynchronous results back to ids.
	AddDocuments(ctx context.Context, uploads []domain.Upload) []domain.Document

	// CompleteDocument moves a processing document to ready with the given transactions.
	// It reports false when the document no longer exists or has already settled.
	CompleteDocument(ctx context.Context, id string, txs []domain.Transaction) bool

	// FailDocument moves a processing document to error with the given message.
	// It reports false when the document no longer exists or has already settled.
	FailDocument(ctx context.Context, id string, message string) bool

	// DeleteDocument removes a document and all its transactions.
	DeleteDocument(ctx context.Context, id string) error

	// DeleteTransaction removes a transaction from whichever document holds it.
	// Unknown ids are ignored.
	DeleteTransaction(ctx context.Context, id string)

	// UpdateTransaction applies a single-field edit to exactly one transaction.
	UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error)

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id string) (domain.Document, error)

	// ListDocuments returns all documents in upload order.
	ListDocuments(ctx context.Context) []domain.Document
}
