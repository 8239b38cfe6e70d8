package utils

import (
	"context"
	"io"
	"os"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

// BlobStore is the narrow contract the core needs from file storage: save
// bytes, get back a stable reference. Everything else (signed URLs, CDNs)
// belongs to the provider implementation.
type BlobStore interface {
	Save(ctx context.Context, objectName string, contentType string, r io.Reader) (ref string, err error)
}

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}
