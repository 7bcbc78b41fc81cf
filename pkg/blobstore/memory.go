package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// MemoryStore is a goroutine-safe in-memory Store for tests and local
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	host    string
}

type memoryObject struct {
	meta Object
	data []byte
}

// NewMemoryStore builds an empty MemoryStore serving URLs under host.
func NewMemoryStore(host string) *MemoryStore {
	if host == "" {
		host = "memory://blobs"
	}
	return &MemoryStore{
		objects: map[string]memoryObject{},
		host:    host,
	}
}

func (m *MemoryStore) Put(ctx context.Context, path, contentType string, metadata map[string]string, body io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return Object{}, apperrors.Wrap(apperrors.CodeUploadFailed, err, "reading blob body")
	}

	metaCopy := make(map[string]string, len(metadata))
	for k, v := range metadata {
		metaCopy[k] = v
	}

	obj := Object{
		Path:        path,
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    metaCopy,
	}

	m.mu.Lock()
	m.objects[path] = memoryObject{meta: obj, data: data}
	m.mu.Unlock()

	return obj, nil
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Object, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, nil, err
	}

	m.mu.RLock()
	stored, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return Object{}, nil, apperrors.New(apperrors.CodeNotFound, "blob "+path+" not found")
	}
	return stored.meta, io.NopCloser(bytes.NewReader(stored.data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.objects, path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Object
	for path, stored := range m.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, stored.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) MetadataExists(ctx context.Context, prefix, key, value string) (bool, error) {
	objects, err := m.List(ctx, prefix)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Metadata[key] == value {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) URL(path string) string {
	return m.host + "/" + path
}
