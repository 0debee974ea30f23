package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/store"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of store.DocumentStore, safe for concurrent use.
// Documents are replaced as a whole on every mutation and handed out as copies,
// so readers never observe a partially applied edit.
// Data lives for the lifetime of the process only.
type Store struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]*domain.Document
	owner map[string]string // transaction id -> document id

	newID func() string
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides uuid-based document ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock overrides time.Now for upload timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore creates an empty in-memory document store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]*domain.Document),
		owner: make(map[string]string),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDocuments implements the DocumentStore interface.
func (s *Store) AddDocuments(ctx context.Context, uploads []domain.Upload) []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]domain.Document, 0, len(uploads))
	for _, u := range uploads {
		doc := &domain.Document{
			ID:           s.newID(),
			FileName:     u.FileName,
			MIMEType:     u.MIMEType,
			Size:         int64(len(u.Data)),
			PageCount:    u.PageCount,
			Transactions: []domain.Transaction{},
			Status:       domain.StatusProcessing,
			UploadDate:   s.now(),
		}
		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
		created = append(created, doc.Clone())
	}

	return created
}

// CompleteDocument implements the DocumentStore interface.
func (s *Store) CompleteDocument(ctx context.Context, id string, txs []domain.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.docs[id]
	if !exists || doc.Status != domain.StatusProcessing {
		return false
	}

	next := *doc
	next.Transactions = make([]domain.Transaction, len(txs))
	copy(next.Transactions, txs)
	next.Status = domain.StatusReady
	next.Error = ""
	s.docs[id] = &next

	for _, tx := range next.Transactions {
		s.owner[tx.ID] = id
	}

	return true
}

// FailDocument implements the DocumentStore interface.
func (s *Store) FailDocument(ctx context.Context, id string, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.docs[id]
	if !exists || doc.Status != domain.StatusProcessing {
		return false
	}

	next := *doc
	next.Status = domain.StatusError
	next.Error = message
	s.docs[id] = &next

	return true
}

// DeleteDocument implements the DocumentStore interface.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.docs[id]
	if !exists {
		return &domain.ErrNotFound{Resource: "document", ID: id}
	}

	for _, tx := range doc.Transactions {
		delete(s.owner, tx.ID)
	}
	delete(s.docs, id)

	for i, docID := range s.order {
		if docID == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

// DeleteTransaction implements the DocumentStore interface.
func (s *Store) DeleteTransaction(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, idx := s.locate(id)
	if doc == nil {
		return
	}

	next := *doc
	next.Transactions = make([]domain.Transaction, 0, len(doc.Transactions)-1)
	next.Transactions = append(next.Transactions, doc.Transactions[:idx]...)
	next.Transactions = append(next.Transactions, doc.Transactions[idx+1:]...)
	s.docs[doc.ID] = &next
	delete(s.owner, id)
}

// UpdateTransaction implements the DocumentStore interface.
func (s *Store) UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, idx := s.locate(id)
	if doc == nil {
		return domain.Transaction{}, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	updated, err := doc.Transactions[idx].Apply(update)
	if err != nil {
		return domain.Transaction{}, err
	}

	next := doc.Clone()
	next.Transactions[idx] = updated
	s.docs[doc.ID] = &next

	return updated, nil
}

// GetDocument implements the DocumentStore interface.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[id]
	if !exists {
		return domain.Document{}, &domain.ErrNotFound{Resource: "document", ID: id}
	}

	return doc.Clone(), nil
}

// ListDocuments implements the DocumentStore interface.
func (s *Store) ListDocuments(ctx context.Context) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.docs[id].Clone())
	}

	return result
}

// locate finds the document owning a transaction and the transaction's index in it.
// Callers must hold the lock.
func (s *Store) locate(txID string) (*domain.Document, int) {
	docID, ok := s.owner[txID]
	if !ok {
		return nil, -1
	}
	doc := s.docs[docID]
	if doc == nil {
		return nil, -1
	}
	for i, tx := range doc.Transactions {
		if tx.ID == txID {
			return doc, i
		}
	}
	return nil, -1
}

// Ensure Store implements the DocumentStore interface.
var _ store.DocumentStore = (*Store)(nil)
