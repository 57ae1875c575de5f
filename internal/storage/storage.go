// Package storage wraps an S3-compatible object-storage client behind a small
// interface. Every method is a single pass-through to the vendor SDK: results
// and errors come back exactly as the SDK produced them.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Supported backends.
const (
	BackendMinio = "minio"
	BackendS3    = "s3"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// Store is the data-store wrapper used by the rest of the service.
type Store interface {
	// CreateBucket creates the configured bucket.
	CreateBucket(ctx context.Context) error
	// ListObjects lists objects in the configured bucket under prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// GetObject returns the full contents of the object at key.
	GetObject(ctx context.Context, key string) ([]byte, error)
	// WriteObject stores data under key with the given content type.
	WriteObject(ctx context.Context, data []byte, contentType, key string) error
	// Bucket is the name of the bucket every call targets.
	Bucket() string
}

// Options selects and configures a backend. Two equal Options values
// produce interchangeable stores.
type Options struct {
	Backend   string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PathStyle bool
}

// New builds a Store for the backend named in opts.
func New(ctx context.Context, opts Options) (Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}
	switch opts.Backend {
	case BackendMinio, "":
		return NewMinioStore(opts)
	case BackendS3:
		return NewS3Store(ctx, opts)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
