package backup

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Storage is the object store backups are written to.
type Storage interface {
	// Upload writes r to bucket/object.
	Upload(ctx context.Context, bucket, object string, r io.Reader) error

	// Download opens bucket/object for reading.
	Download(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// GCSStorage implements Storage on Google Cloud Storage using Application
// Default Credentials.
type GCSStorage struct {
	client *storage.Client
}

// NewGCSStorage creates a GCS-backed Storage.
func NewGCSStorage(ctx context.Context) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorage: create storage client: %w", err)
	}
	return &GCSStorage{client: client}, nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv; charset=utf-8"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: copy to gs://%s/%s: %w", bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (s *GCSStorage) Download(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: open gs://%s/%s: %w", bucket, object, err)
	}
	return rc, nil
}

// ParseURI splits "gs://bucket/path/to/object".
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return bucket, object, nil
}

// URI formats bucket and object as a gs:// URI.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// Filename returns the last path element of a gs:// URI or object name.
func Filename(uri string) string {
	return path.Base(strings.TrimPrefix(uri, "gs://"))
}

var _ Storage = (*GCSStorage)(nil)
