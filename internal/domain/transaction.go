package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// datePattern is the only date check performed on extracted data: shape, not calendar validity.
var datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// IsValidDate reports whether s looks like DD/MM/YYYY. "31/02/2024" passes.
func IsValidDate(s string) bool {
	return datePattern.MatchString(s)
}

// Transaction is one statement line as extracted by the model and edited by the user.
// Debit and Credit are positive amounts; nil means absent, not zero.
type Transaction struct {
	ID      string           `json:"id"`
	Date    string           `json:"date"`  // DD/MM/YYYY, validity tracked by IsValid
	Label   string           `json:"label"` // free text description
	Debit   *decimal.Decimal `json:"debit"`
	Credit  *decimal.Decimal `json:"credit"`
	IsValid bool             `json:"isValid"`
}

// Field names an editable transaction column.
type Field string

const (
	FieldDate   Field = "date"
	FieldLabel  Field = "label"
	FieldDebit  Field = "debit"
	FieldCredit Field = "credit"
)

// TransactionUpdate is a single-field edit. Text carries date and label values,
// Amount carries debit and credit values (nil clears the amount).
type TransactionUpdate struct {
	Field  Field
	Text   string
	Amount *decimal.Decimal
}

// Apply returns a copy of t with the update applied. Setting a positive debit clears
// the credit and vice versa; editing the date recomputes IsValid.
func (t Transaction) Apply(u TransactionUpdate) (Transaction, error) {
	switch u.Field {
	case FieldDate:
		t.Date = u.Text
		t.IsValid = IsValidDate(u.Text)
	case FieldLabel:
		t.Label = u.Text
	case FieldDebit:
		t.Debit = copyAmount(u.Amount)
		if u.Amount != nil && u.Amount.IsPositive() {
			t.Credit = nil
		}
	case FieldCredit:
		t.Credit = copyAmount(u.Amount)
		if u.Amount != nil && u.Amount.IsPositive() {
			t.Debit = nil
		}
	default:
		return t, &ErrValidation{Field: "field", Message: "unknown field " + string(u.Field)}
	}
	return t, nil
}

func copyAmount(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Stats aggregates a displayed set of transactions. It is always derived, never stored.
type Stats struct {
	TotalTransactions int             `json:"totalTransactions"`
	TotalDebit        decimal.Decimal `json:"totalDebit"`
	TotalCredit       decimal.Decimal `json:"totalCredit"`
	Balance           decimal.Decimal `json:"balance"`
}
