package minio

import (
	"context"
	"io"
)

// Client defines the interface for MinIO operations
type Client interface {
	UploadObject(ctx context.Context, reader io.Reader, size int64, objectName string, contentType string) error

	// Close closes the MinIO client connection
	Close() error
}
