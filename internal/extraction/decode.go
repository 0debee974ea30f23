package extraction

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnknownLabel replaces a missing or blank label.
const UnknownLabel = "Inconnu"

var fencePattern = regexp.MustCompile("(?m)^```(?:json)?")

var errTrailingData = errors.New("unexpected data after JSON value")

// Decode turns raw model text into transactions with fresh ids.
func Decode(raw string) ([]domain.Transaction, error) {
	return decode(raw, uuid.NewString)
}

func decode(raw string, newID func() string) ([]domain.Transaction, error) {
	if strings.TrimSpace(raw) == "" {
		return []domain.Transaction{}, nil
	}

	text := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))

	parsed, err := parseJSON(text)
	if err != nil {
		parsed, err = repair(text)
		if err != nil {
			return nil, err
		}
	}

	items, ok := parsed.([]any)
	if !ok {
		return nil, ErrInvalidStructure
	}

	txs := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		txs = append(txs, toTransaction(record, newID()))
	}

	return txs, nil
}

// repair salvages a truncated array by cutting after the last complete object.
func repair(text string) (any, error) {
	end := strings.LastIndex(text, "}")
	if end == -1 {
		return nil, ErrInvalidStructure
	}

	parsed, err := parseJSON(text[:end+1] + "]")
	if err != nil {
		return nil, ErrTruncated
	}
	return parsed, nil
}

// parseJSON decodes exactly one JSON value, keeping numbers as json.Number.
func parseJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func toTransaction(record map[string]any, id string) domain.Transaction {
	date, _ := record["date"].(string)

	label, _ := record["label"].(string)
	if strings.TrimSpace(label) == "" {
		label = UnknownLabel
	}

	return domain.Transaction{
		ID:      id,
		Date:    date,
		Label:   label,
		Debit:   numeric(record["debit"]),
		Credit:  numeric(record["credit"]),
		IsValid: domain.IsValidDate(date),
	}
}

// numeric keeps JSON numbers only; strings, null and anything else mean absent.
func numeric(v any) *decimal.Decimal {
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil
	}
	return &d
}
