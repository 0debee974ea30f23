package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackMessage is shown when a failure carries no usable text of its own.
const FallbackMessage = "Échec de l'extraction des données. Veuillez réessayer."

// ErrUnrecoverable marks model output that could not be turned into transactions.
var ErrUnrecoverable = errors.New("unrecoverable model output")

var (
	// ErrInvalidStructure is returned when the output is not JSON and holds no object to salvage.
	ErrInvalidStructure = fmt.Errorf("%w: Structure de données invalide reçue de l'IA.", ErrUnrecoverable)

	// ErrTruncated is returned when the output was cut off and the repair pass failed too.
	ErrTruncated = fmt.Errorf("%w: La réponse de l'IA a été coupée et n'a pas pu être récupérée. Le fichier est peut-être trop volumineux.", ErrUnrecoverable)
)

// ErrUnsupportedType is returned for files that are not PDFs.
type ErrUnsupportedType struct {
	MIMEType string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("Type de fichier non pris en charge : %s", e.MIMEType)
}

// ErrService wraps a failure reported by the model service or its transport.
type ErrService struct {
	Err error
}

func (e *ErrService) Error() string {
	return e.Err.Error()
}

func (e *ErrService) Unwrap() error {
	return e.Err
}

// UserMessage returns the single message shown to the user for a failed extraction.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTruncated):
		return userText(ErrTruncated)
	case errors.Is(err, ErrInvalidStructure):
		return userText(ErrInvalidStructure)
	}

	var unsupported *ErrUnsupportedType
	if errors.As(err, &unsupported) {
		return unsupported.Error()
	}

	var service *ErrService
	if errors.As(err, &service) && service.Err != nil && service.Err.Error() != "" {
		return service.Err.Error()
	}

	return FallbackMessage
}

// userText drops the ErrUnrecoverable prefix from a sentinel's text.
func userText(err error) string {
	return strings.TrimPrefix(err.Error(), ErrUnrecoverable.Error()+": ")
}
