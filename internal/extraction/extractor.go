package extraction

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// Extractor turns an uploaded PDF into transactions.
type Extractor struct {
	gen         Generator
	defaultHint string
}

// NewExtractor creates an Extractor. defaultHint is used when a call passes no context.
func NewExtractor(gen Generator, defaultHint string) *Extractor {
	if defaultHint == "" {
		defaultHint = DefaultContextHint
	}
	return &Extractor{gen: gen, defaultHint: defaultHint}
}

// Extract sends one PDF to the model and decodes the reply.
// Only PDFs are accepted; nothing is sent for any other type.
func (e *Extractor) Extract(ctx context.Context, file domain.Upload, contextHint string) ([]domain.Transaction, error) {
	if !file.IsPDF() {
		return nil, &ErrUnsupportedType{MIMEType: file.MIMEType}
	}

	if contextHint == "" {
		contextHint = e.defaultHint
	}

	raw, err := e.gen.Generate(ctx, Request{
		Data:     file.Data,
		MIMEType: file.MIMEType,
		Prompt:   buildPrompt(contextHint),
	})
	if err != nil {
		return nil, fmt.Errorf("Extract %s: %w", file.FileName, err)
	}

	txs, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("Extract %s: decode: %w", file.FileName, err)
	}

	return txs, nil
}
