// Package local is a news.ObjectStorage on the local filesystem. Objects land
// in <Root>/<bucket>/<key> and the site serves Root under its uploads path.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/quilpalta/alpalo/news"
)

// ErrInvalidKey is returned for keys that would escape the bucket directory.
var ErrInvalidKey = errors.New("local: invalid object key")

// Storage implements news.ObjectStorage.
type Storage struct {
	root    string
	baseURL string
}

// New stores objects under root; baseURL is the absolute URL root is served at
// (for example "https://directoalpalo.com/uploads").
func New(root, baseURL string) *Storage {
	return &Storage{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Root is the directory objects are written to.
func (s *Storage) Root() string {
	return s.root
}

func (s *Storage) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" || strings.Contains(bucket, "..") || strings.Contains(key, "..") ||
		strings.ContainsAny(bucket, `/\`) || strings.Contains(key, `\`) || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidKey, bucket, key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(key)), nil
}

// Upload implements news.ObjectStorage. Existing files are never replaced.
func (s *Storage) Upload(ctx context.Context, bucket, key string, data []byte, opts news.UploadOptions) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("local: create bucket dir: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("local: object %s/%s already exists", bucket, key)
		}
		return fmt.Errorf("local: create object: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("local: write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("local: close object: %w", err)
	}
	return nil
}

// PublicURL implements news.ObjectStorage.
func (s *Storage) PublicURL(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}
