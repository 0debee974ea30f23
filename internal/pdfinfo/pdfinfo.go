// Package pdfinfo reads structural facts from uploaded PDFs. Results are informational only.
package pdfinfo

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PageCount returns the number of pages of an in-memory PDF.
// pdfcpu runs with its built-in defaults and never touches a user config directory.
func PageCount(data []byte) (n int, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	// malformed input can panic inside pdfcpu
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("PageCount: %v", r)
		}
	}()

	if len(data) == 0 {
		return 0, fmt.Errorf("PageCount: empty document")
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	n, err = api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, fmt.Errorf("PageCount: %w", err)
	}
	return n, nil
}
