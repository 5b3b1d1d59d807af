package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quilpalta/alpalo/news"
)

// Records is the news.RecordStore view of a Client.
type Records struct {
	c     *Client
	table string
}

// Records returns the record store for the noticias table.
func (c *Client) Records() *Records {
	return &Records{c: c, table: news.Table}
}

// rowID is the opaque primary key. Tables keyed by bigint send a JSON
// number, tables keyed by uuid a JSON string.
type rowID string

func (id *rowID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("supabase: id %s is neither a number nor a string", data)
	}
	*id = rowID(n.String())
	return nil
}

type row struct {
	ID        rowID     `json:"id"`
	Title     string    `json:"titulo"`
	Category  string    `json:"categoria"`
	Body      *string   `json:"cuerpo"`
	Author    string    `json:"autor"`
	ImageURL  *string   `json:"imagen_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (r row) item() news.Item {
	it := news.Item{
		ID:        string(r.ID),
		Title:     r.Title,
		Category:  news.Category(r.Category),
		Author:    r.Author,
		CreatedAt: r.CreatedAt,
	}
	if r.Body != nil {
		it.Body = *r.Body
	}
	if r.ImageURL != nil {
		it.ImageURL = *r.ImageURL
	}
	return it
}

func (r *Records) path() string {
	return "/rest/v1/" + url.PathEscape(r.table)
}

// Insert implements news.RecordStore. The row is sent as a one-element array
// and the stored representation is read back.
func (r *Records) Insert(ctx context.Context, d news.Draft) (news.Item, error) {
	body, err := jsonBody([]news.Draft{d})
	if err != nil {
		return news.Item{}, fmt.Errorf("supabase: encode row: %w", err)
	}
	req, err := r.c.newRequest(ctx, http.MethodPost, r.path(), nil, body)
	if err != nil {
		return news.Item{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []row
	if err := r.c.do(req, &rows); err != nil {
		return news.Item{}, err
	}
	if len(rows) == 0 {
		return news.Item{}, fmt.Errorf("supabase: insert into %s returned no row", r.table)
	}
	return rows[0].item(), nil
}

// ListNews implements news.RecordStore.
func (r *Records) ListNews(ctx context.Context) ([]news.Item, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc,id.desc")
	return r.selectRows(ctx, q)
}

// GetNews implements news.RecordStore.
func (r *Records) GetNews(ctx context.Context, id string) (news.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return news.Item{}, news.ErrNotFound
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	q.Set("limit", "1")
	items, err := r.selectRows(ctx, q)
	if err != nil {
		return news.Item{}, err
	}
	if len(items) == 0 {
		return news.Item{}, news.ErrNotFound
	}
	return items[0], nil
}

func (r *Records) selectRows(ctx context.Context, q url.Values) ([]news.Item, error) {
	req, err := r.c.newRequest(ctx, http.MethodGet, r.path(), q, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	var rows []row
	if err := r.c.do(req, &rows); err != nil {
		return nil, err
	}
	items := make([]news.Item, 0, len(rows))
	for _, rw := range rows {
		items = append(items, rw.item())
	}
	return items, nil
}
