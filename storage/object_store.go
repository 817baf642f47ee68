package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalImageStore writes gated image bytes to a directory and returns
// the file name as the storage key. In deployment the same interface
// is backed by object storage; the pipeline only depends on Put.
type LocalImageStore struct {
	dir string
}

// NewLocalImageStore creates the store directory if needed.
func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("image store: create dir %q: %w", dir, err)
	}
	return &LocalImageStore{dir: dir}, nil
}

// Put persists data under a key derived from the source URL, so
// re-gating the same image overwrites rather than accumulating copies.
func (s *LocalImageStore) Put(ctx context.Context, sourceURL string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := imageKey(sourceURL)
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("image store: write %q: %w", key, err)
	}
	return key, nil
}

var _ ImageStore = (*LocalImageStore)(nil)

func imageKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	ext := strings.ToLower(filepath.Ext(strings.SplitN(sourceURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		ext = ".jpg"
	}
	return hex.EncodeToString(sum[:])[:20] + ext
}

// ProxyImageURL turns a storage key into the client-facing URL served
// by the web layer's image proxy endpoint.
func ProxyImageURL(storageKey string) string {
	return "/api/proxy/image?url=" + url.QueryEscape(storageKey)
}
