package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectFetcher downloads one object and reports its stored content type.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, object string) (data []byte, contentType string, err error)
}

// ObjectWriter stores one object.
type ObjectWriter interface {
	Put(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// uploadTimeout bounds a single Put.
const uploadTimeout = 2 * time.Minute

// GCSClient implements ObjectFetcher and ObjectWriter with Google Cloud Storage.
type GCSClient struct {
	client *storage.Client
}

// NewGCSClient creates a storage client. An empty credentialsFile falls back to
// Application Default Credentials.
func NewGCSClient(ctx context.Context, credentialsFile string) (*GCSClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSClient: create storage client: %w", err)
	}
	return &GCSClient{client: client}, nil
}

// Fetch implements ObjectFetcher.
func (f *GCSClient) Fetch(ctx context.Context, bucket, object string) ([]byte, string, error) {
	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read GCS object: %w", err)
	}

	return data, r.Attrs.ContentType, nil
}

// Put implements ObjectWriter.
func (f *GCSClient) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := f.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %s/%s: %w", bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize GCS upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close releases the storage client.
func (f *GCSClient) Close() error {
	return f.client.Close()
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

const gcsScheme = "gs://"

// IsGCSURI reports whether ref names a Cloud Storage object.
func IsGCSURI(ref string) bool {
	return strings.HasPrefix(ref, gcsScheme)
}
