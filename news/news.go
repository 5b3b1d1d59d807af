// Package news holds the NewsItem domain types and the two backend contracts
// the site depends on: an object storage for cover images and a record store
// for the "noticias" table.
package news

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// Table is the record store table holding published news.
const Table = "noticias"

// ErrNotFound is returned by RecordStore.GetNews when no row matches the id.
var ErrNotFound = errors.New("news: not found")

// Item is a published news row. ID and CreatedAt are assigned by the store.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"titulo"`
	Category  Category  `json:"categoria"`
	Body      string    `json:"cuerpo"`
	Author    string    `json:"autor"`
	ImageURL  string    `json:"imagen_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft is the insert payload: an Item before the store has keyed and stamped it.
type Draft struct {
	Title    string   `json:"titulo"`
	Category Category `json:"categoria"`
	Body     string   `json:"cuerpo"`
	Author   string   `json:"autor"`
	ImageURL string   `json:"imagen_url"`
}

// Link returns the site-relative path of the item's detail page.
func (i Item) Link() string {
	return "/noticia/" + url.PathEscape(i.ID) + "/"
}

// HasImage reports whether the item points at a stored cover image.
func (i Item) HasImage() bool {
	return i.ImageURL != ""
}

// UploadOptions carries per-object metadata for ObjectStorage.Upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string
}

// ObjectStorage is the file storage side of the backend.
type ObjectStorage interface {
	// Upload stores data under key in bucket. Existing keys are not overwritten.
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	// PublicURL resolves a key to a publicly retrievable absolute URL. It does
	// not check that the object exists.
	PublicURL(bucket, key string) string
}

// RecordStore is the table side of the backend.
type RecordStore interface {
	// Insert persists d and returns the stored row with its id and created_at.
	Insert(ctx context.Context, d Draft) (Item, error)
	// ListNews returns every row ordered by created_at descending.
	ListNews(ctx context.Context) ([]Item, error)
	// GetNews returns the row with the given id or ErrNotFound.
	GetNews(ctx context.Context, id string) (Item, error)
}
