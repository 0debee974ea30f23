package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sink writes output files to a local directory or under a gs://bucket/prefix.
type Sink struct {
	dir     string
	bucket  string
	prefix  string
	objects ObjectWriter
}

// NewSink creates a Sink for dest. objects is only required when dest is a gs:// URI.
func NewSink(dest string, objects ObjectWriter) (*Sink, error) {
	if !IsGCSURI(dest) {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return nil, fmt.Errorf("NewSink: create %q: %w", dest, err)
		}
		return &Sink{dir: dest}, nil
	}

	if objects == nil {
		return nil, fmt.Errorf("NewSink %s: %w", dest, ErrNoObjectFetcher)
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(dest, gcsScheme), "/")
	if bucket == "" {
		return nil, fmt.Errorf("invalid GCS URI (no bucket): %s", dest)
	}
	return &Sink{bucket: bucket, prefix: strings.Trim(prefix, "/"), objects: objects}, nil
}

// Write stores data under name and returns where it went.
func (s *Sink) Write(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s.objects == nil {
		p := filepath.Join(s.dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", p, err)
		}
		return p, nil
	}

	object := path.Join(s.prefix, name)
	if err := s.objects.Put(ctx, s.bucket, object, contentType, data); err != nil {
		return "", err
	}
	return gcsScheme + s.bucket + "/" + object, nil
}
