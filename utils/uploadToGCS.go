package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GCSBlobStore implements BlobStore on Google Cloud Storage.
type GCSBlobStore struct {
	Bucket string
}

func NewGCSBlobStore() (*GCSBlobStore, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return &GCSBlobStore{Bucket: bucket}, nil
}

func (s *GCSBlobStore) Save(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	w := client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, objectName), nil
}

// LocalBlobStore writes uploads to a directory. Dev/test fallback when GCS is
// not configured (STORAGE_PROVIDER=local).
type LocalBlobStore struct {
	Dir string
}

func NewLocalBlobStore() *LocalBlobStore {
	dir := os.Getenv("LOCAL_UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return &LocalBlobStore{Dir: dir}
}

func (s *LocalBlobStore) Save(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	// flatten path separators from caller-provided names
	safe := strings.ReplaceAll(objectName, "/", "_")
	path := s.Dir + string(os.PathSeparator) + safe
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return path, nil
}

// NewBlobStore picks the provider from env.
func NewBlobStore() (BlobStore, error) {
	switch GetStorageProvider() {
	case StorageProviderLocal:
		return NewLocalBlobStore(), nil
	default:
		return NewGCSBlobStore()
	}
}
