package memory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilpalta/alpalo/news"
)

func TestListNewsNewestFirst(t *testing.T) {
	b := New()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	b.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	ctx := context.Background()
	for _, title := range []string{"t1", "t2", "t3"} {
		_, err := b.Insert(ctx, news.Draft{Title: title, Category: news.CategoryTennis, Author: "a"})
		require.NoError(t, err)
	}

	items, err := b.ListNews(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "t3", items[0].Title)
	assert.Equal(t, "t2", items[1].Title)
	assert.Equal(t, "t1", items[2].Title)
}

func TestListNewsTiesBreakOnID(t *testing.T) {
	b := New()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Now = func() time.Time { return fixed }
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		_, err := b.Insert(ctx, news.Draft{Title: "x"})
		require.NoError(t, err)
	}
	items, err := b.ListNews(ctx)
	require.NoError(t, err)
	assert.Equal(t, "11", items[0].ID)
	assert.Equal(t, "1", items[10].ID)
}

func TestGetNewsNotFound(t *testing.T) {
	_, err := New().GetNews(context.Background(), "99")
	assert.ErrorIs(t, err, news.ErrNotFound)
}

func TestUploadRejectsTakenKey(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Upload(ctx, "bucket", "k.jpg", []byte("a"), news.UploadOptions{ContentType: "image/jpeg"}))
	err := b.Upload(ctx, "bucket", "k.jpg", []byte("b"), news.UploadOptions{})
	assert.True(t, errors.Is(err, ErrObjectExists))

	obj, ok := b.Object("bucket", "k.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("a"), obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, 1, b.ObjectCount())
	uploads, inserts := b.Calls()
	assert.Equal(t, 2, uploads)
	assert.Equal(t, 0, inserts)
}

func TestPublicURL(t *testing.T) {
	b := New()
	b.BaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/imagenes-noticias/1700000000000-gol.jpg",
		b.PublicURL("imagenes-noticias", "1700000000000-gol.jpg"))
}

func TestServeHTTPStoredObject(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Upload(ctx, "imagenes-noticias", "1-gol.jpg", []byte("jpeg"), news.UploadOptions{ContentType: "image/jpeg"}))

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imagenes-noticias/1-gol.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imagenes-noticias/otro.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
