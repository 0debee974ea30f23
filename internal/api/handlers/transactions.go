package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// TransactionsHandler handles transaction edits.
type TransactionsHandler struct {
	session Session
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(sess Session) *TransactionsHandler {
	return &TransactionsHandler{session: sess}
}

type updateRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// UpdateTransaction handles PATCH /api/transactions/{id} with {"field": ..., "value": ...}.
// Amounts accept a number, a numeric string (comma or dot decimals), or null / "" to clear.
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update, err := parseUpdate(req)
	if err != nil {
		writeDomainError(w, r, err, "Failed to update transaction")
		return
	}

	tx, err := h.session.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		writeDomainError(w, r, err, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	h.session.DeleteTransaction(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func parseUpdate(req updateRequest) (domain.TransactionUpdate, error) {
	field := domain.Field(req.Field)
	update := domain.TransactionUpdate{Field: field}

	switch field {
	case domain.FieldDate, domain.FieldLabel:
		if err := json.Unmarshal(req.Value, &update.Text); err != nil {
			return update, &domain.ErrValidation{Field: req.Field, Message: "value must be a string"}
		}
	case domain.FieldDebit, domain.FieldCredit:
		amount, err := parseAmount(req.Value)
		if err != nil {
			return update, &domain.ErrValidation{Field: req.Field, Message: "value must be a number"}
		}
		update.Amount = amount
	default:
		return update, &domain.ErrValidation{Field: "field", Message: "unknown field " + req.Field}
	}

	return update, nil
}

func parseAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}

	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		text = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if text == "" {
			return nil, nil
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
