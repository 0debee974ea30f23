package domain

import "fmt"

// ErrNotFound indicates a document or transaction does not exist (or no longer exists).
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates bad input, including uploads rejected by the acceptance filter.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConfirmationRequired is returned when an irreversible action was not confirmed.
type ErrConfirmationRequired struct {
	Action string
}

func (e *ErrConfirmationRequired) Error() string {
	return fmt.Sprintf("confirmation required: %s", e.Action)
}
