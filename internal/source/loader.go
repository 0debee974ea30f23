// Package source loads CLI inputs, local files or Cloud Storage objects, as uploads.
package source

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// ErrNoObjectFetcher is returned for gs:// inputs when the loader has no fetcher.
var ErrNoObjectFetcher = errors.New("no Cloud Storage client configured")

// Loader reads inputs into uploads with a declared MIME type.
type Loader struct {
	objects ObjectFetcher
}

// NewLoader creates a Loader. objects may be nil when no input is a gs:// URI.
func NewLoader(objects ObjectFetcher) *Loader {
	return &Loader{objects: objects}
}

// Load reads one input. The declared type comes from the stored content type for
// Cloud Storage objects and from the file extension otherwise.
func (l *Loader) Load(ctx context.Context, ref string) (domain.Upload, error) {
	if IsGCSURI(ref) {
		return l.loadObject(ctx, ref)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("Load: read %q: %w", ref, err)
	}

	name := filepath.Base(ref)
	return domain.Upload{
		FileName: name,
		MIMEType: TypeByName(name),
		Data:     data,
	}, nil
}

func (l *Loader) loadObject(ctx context.Context, uri string) (domain.Upload, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return domain.Upload{}, err
	}
	if l.objects == nil {
		return domain.Upload{}, fmt.Errorf("Load %s: %w", uri, ErrNoObjectFetcher)
	}

	data, contentType, err := l.objects.Fetch(ctx, bucket, object)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("Load %s: %w", uri, err)
	}

	name := path.Base(object)
	mimeType := baseType(contentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = TypeByName(name)
	}

	return domain.Upload{
		FileName: name,
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

// TypeByName guesses a MIME type from a file name's extension, without parameters.
func TypeByName(name string) string {
	return baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaType
}
