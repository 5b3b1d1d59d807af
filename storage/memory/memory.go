// Package memory is an in-process backend implementing both news.ObjectStorage
// and news.RecordStore. It backs local development without any service and is
// the substitutable fake used by the tests.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quilpalta/alpalo/news"
)

// ErrObjectExists is returned when uploading to a key that is already taken.
var ErrObjectExists = errors.New("memory: object already exists")

// Object is one stored upload.
type Object struct {
	Data        []byte
	ContentType string
}

// Backend keeps rows and objects in maps guarded by a mutex.
type Backend struct {
	// BaseURL prefixes public object URLs (default "http://localhost:3000/uploads").
	BaseURL string
	// Now stamps created_at; defaults to time.Now.
	Now func() time.Time

	// UploadErr and InsertErr, when set, make the matching operation fail.
	UploadErr error
	InsertErr error
	ListErr   error
	// BeforeUpload runs at the start of every Upload; tests use it to hold a
	// publish in flight.
	BeforeUpload func(ctx context.Context)

	mu      sync.Mutex
	nextID  int64
	rows    []news.Item
	objects map[string]Object
	uploads int
	inserts int
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{objects: make(map[string]Object)}
}

func (b *Backend) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Upload implements news.ObjectStorage.
func (b *Backend) Upload(ctx context.Context, bucket, key string, data []byte, opts news.UploadOptions) error {
	if b.BeforeUpload != nil {
		b.BeforeUpload(ctx)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.UploadErr != nil {
		return b.UploadErr
	}
	path := bucket + "/" + key
	if _, ok := b.objects[path]; ok {
		return fmt.Errorf("%w: %s", ErrObjectExists, path)
	}
	b.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: opts.ContentType}
	return nil
}

// PublicURL implements news.ObjectStorage.
func (b *Backend) PublicURL(bucket, key string) string {
	base := b.BaseURL
	if base == "" {
		base = "http://localhost:3000/uploads"
	}
	return base + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}

// ServeHTTP serves stored objects at /<bucket>/<key>, the paths PublicURL
// points to once its base prefix is stripped.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	o, ok := b.objects[strings.TrimPrefix(r.URL.Path, "/")]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if o.ContentType != "" {
		w.Header().Set("Content-Type", o.ContentType)
	}
	http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(o.Data))
}

// Insert implements news.RecordStore.
func (b *Backend) Insert(ctx context.Context, d news.Draft) (news.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inserts++
	if b.InsertErr != nil {
		return news.Item{}, b.InsertErr
	}
	b.nextID++
	it := news.Item{
		ID:        strconv.FormatInt(b.nextID, 10),
		Title:     d.Title,
		Category:  d.Category,
		Body:      d.Body,
		Author:    d.Author,
		ImageURL:  d.ImageURL,
		CreatedAt: b.now().UTC(),
	}
	b.rows = append(b.rows, it)
	return it, nil
}

// ListNews implements news.RecordStore.
func (b *Backend) ListNews(ctx context.Context) ([]news.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	out := make([]news.Item, len(b.rows))
	copy(out, b.rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return idLess(out[j].ID, out[i].ID)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetNews implements news.RecordStore.
func (b *Backend) GetNews(ctx context.Context, id string) (news.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.rows {
		if it.ID == id {
			return it, nil
		}
	}
	return news.Item{}, news.ErrNotFound
}

// Object returns a stored upload.
func (b *Backend) Object(bucket, key string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[bucket+"/"+key]
	return o, ok
}

// ObjectCount returns how many uploads are stored across buckets.
func (b *Backend) ObjectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// Calls returns how many Upload and Insert calls were made, failed ones included.
func (b *Backend) Calls() (uploads, inserts int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploads, b.inserts
}

func idLess(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
