package submissions

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// metadataHashKey is the object-metadata key carrying the content hash
// stamped at upload time.
const metadataHashKey = "contentHash"

func storePrefix(storeID string) string {
	return "stores/" + storeID + "/"
}

func pendingDir(storeID string) string {
	return storePrefix(storeID) + "pending/"
}

func photoDir(storeID string) string {
	return storePrefix(storeID) + "photos/"
}

func hashBytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// pathFromURL inverts blobs.URL for objects served by our store.
func (s *service) pathFromURL(url string) (string, bool) {
	path, ok := strings.CutPrefix(url, s.blobs.URL(""))
	return path, ok && path != ""
}

// storeHashes derives the content hash of every blob under the store's
// prefix, keyed by path. Hashes stamped into object metadata are
// trusted; blobs without one are downloaded and hashed from scratch.
func (s *service) storeHashes(ctx context.Context, storeID string) (map[string]string, error) {
	objects, err := s.blobs.List(ctx, storePrefix(storeID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list store blobs")
	}

	hashes := make(map[string]string, len(objects))
	for _, object := range objects {
		if hash := object.Metadata[metadataHashKey]; hash != "" {
			hashes[object.Path] = hash
			continue
		}
		hash, err := s.hashBlob(ctx, object.Path)
		if err != nil {
			s.logg.Warn(s.logg.WithStoreID(ctx, storeID), "hashing blob "+object.Path+" failed")
			continue
		}
		hashes[object.Path] = hash
	}
	return hashes, nil
}

func (s *service) hashBlob(ctx context.Context, path string) (string, error) {
	_, body, err := s.blobs.Get(ctx, path)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

// isDuplicate reports whether the hash already exists under the store's
// prefix. The metadata index answers without downloading; legacy blobs
// lacking the metadata key are covered by the pre-derived set.
func (s *service) isDuplicate(ctx context.Context, storeID, hash string, legacy map[string]bool) (bool, error) {
	if legacy[hash] {
		return true, nil
	}
	return s.blobs.MetadataExists(ctx, storePrefix(storeID), metadataHashKey, hash)
}

// legacyHashes hashes the store blobs that carry no metadata hash.
func (s *service) legacyHashes(ctx context.Context, storeID string) (map[string]bool, error) {
	objects, err := s.blobs.List(ctx, storePrefix(storeID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list store blobs")
	}
	out := make(map[string]bool)
	for _, object := range objects {
		if object.Metadata[metadataHashKey] != "" {
			continue
		}
		hash, err := s.hashBlob(ctx, object.Path)
		if err != nil {
			s.logg.Warn(s.logg.WithStoreID(ctx, storeID), "hashing blob "+object.Path+" failed")
			continue
		}
		out[hash] = true
	}
	return out, nil
}
