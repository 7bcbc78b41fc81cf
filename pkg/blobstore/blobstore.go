// Package blobstore defines the image storage interface used by the
// photo submission pipeline. The GCS implementation lives in the gcs
// subpackage; the memory store backs tests.
package blobstore

import (
	"context"
	"io"
)

// Object describes one stored blob.
type Object struct {
	Path        string
	Size        int64
	ContentType string
	// Metadata carries user-defined key/value pairs, including the
	// content hash stamped on every uploaded photo.
	Metadata map[string]string
}

// Store is the blob persistence contract. Paths are slash-separated
// keys relative to the store's bucket or root.
type Store interface {
	Put(ctx context.Context, path string, contentType string, metadata map[string]string, body io.Reader) (Object, error)
	Get(ctx context.Context, path string) (Object, io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	// MetadataExists reports whether any object under prefix carries
	// the metadata key/value pair. Duplicate photo detection runs on
	// this without downloading image bytes.
	MetadataExists(ctx context.Context, prefix, key, value string) (bool, error)
	// URL returns the public download URL for a stored object.
	URL(path string) string
}
