// Package view derives what the user sees from the stored documents: the selected
// transactions, their statistics and an optional display order. Nothing here is stored.
package view

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/shopspring/decimal"
)

// All selects the merged view of every ready document.
const All = "ALL"

// Displayed returns the transactions shown for a selector. ALL concatenates ready documents
// in upload order; a document id yields that document's transactions once it is ready.
func Displayed(docs []domain.Document, selector string) []domain.Transaction {
	result := []domain.Transaction{}

	if selector == All {
		for _, doc := range docs {
			if doc.Status == domain.StatusReady {
				result = append(result, doc.Transactions...)
			}
		}
		return result
	}

	for _, doc := range docs {
		if doc.ID == selector {
			if doc.Status == domain.StatusReady {
				result = append(result, doc.Transactions...)
			}
			break
		}
	}
	return result
}

// ComputeStats totals a displayed set. Absent amounts count as zero.
func ComputeStats(txs []domain.Transaction) domain.Stats {
	stats := domain.Stats{
		TotalTransactions: len(txs),
		TotalDebit:        decimal.Zero,
		TotalCredit:       decimal.Zero,
	}
	for _, tx := range txs {
		if tx.Debit != nil {
			stats.TotalDebit = stats.TotalDebit.Add(*tx.Debit)
		}
		if tx.Credit != nil {
			stats.TotalCredit = stats.TotalCredit.Add(*tx.Credit)
		}
	}
	stats.Balance = stats.TotalCredit.Sub(stats.TotalDebit)
	return stats
}

// SortKey names a sortable column.
type SortKey string

const (
	SortNone   SortKey = ""
	SortDate   SortKey = "date"
	SortLabel  SortKey = "label"
	SortDebit  SortKey = "debit"
	SortCredit SortKey = "credit"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSort validates query values. An empty key means no sorting.
func ParseSort(key, dir string) (SortKey, Direction, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(key)))
	switch k {
	case SortNone, SortDate, SortLabel, SortDebit, SortCredit:
	default:
		return "", "", &domain.ErrValidation{Field: "sort", Message: "unknown sort key " + key}
	}

	d := Direction(strings.ToLower(strings.TrimSpace(dir)))
	switch d {
	case "":
		d = Asc
	case Asc, Desc:
	default:
		return "", "", &domain.ErrValidation{Field: "dir", Message: "direction must be asc or desc"}
	}

	return k, d, nil
}

// Sort returns a sorted copy of txs. Values that are absent or, for dates, not
// DD/MM/YYYY go last in either direction. The sort is stable.
func Sort(txs []domain.Transaction, key SortKey, dir Direction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	if key == SortNone {
		return out
	}

	cmp := comparator(key)
	sort.SliceStable(out, func(i, j int) bool {
		c, ok := cmp(out[i], out[j])
		if !ok {
			return c < 0
		}
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// comparator returns a three-way compare. ok is false when at least one side is
// missing, in which case c already orders the missing side last.
func comparator(key SortKey) func(a, b domain.Transaction) (c int, ok bool) {
	switch key {
	case SortDate:
		return func(a, b domain.Transaction) (int, bool) {
			da, okA := parseDate(a.Date)
			db, okB := parseDate(b.Date)
			if c, done := missingLast(okA, okB); done {
				return c, false
			}
			switch {
			case da.Before(db):
				return -1, true
			case da.After(db):
				return 1, true
			}
			return 0, true
		}
	case SortLabel:
		return func(a, b domain.Transaction) (int, bool) {
			return strings.Compare(strings.ToLower(a.Label), strings.ToLower(b.Label)), true
		}
	case SortDebit:
		return func(a, b domain.Transaction) (int, bool) { return compareAmounts(a.Debit, b.Debit) }
	default:
		return func(a, b domain.Transaction) (int, bool) { return compareAmounts(a.Credit, b.Credit) }
	}
}

func compareAmounts(a, b *decimal.Decimal) (int, bool) {
	if c, done := missingLast(a != nil, b != nil); done {
		return c, false
	}
	return a.Cmp(*b), true
}

// missingLast orders present values before absent ones. done is false when both are present.
func missingLast(aPresent, bPresent bool) (int, bool) {
	switch {
	case aPresent && bPresent:
		return 0, false
	case aPresent:
		return -1, true
	case bPresent:
		return 1, true
	}
	return 0, true
}

// parseDate reads DD/MM/YYYY as a calendar date. Shape-valid but impossible dates fail.
func parseDate(s string) (civil.Date, bool) {
	if !domain.IsValidDate(s) {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(s[6:10] + "-" + s[3:5] + "-" + s[0:2])
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}
