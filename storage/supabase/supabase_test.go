package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilpalta/alpalo/news"
)

const testKey = "anon-key"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", testKey)
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, testKey, r.Header.Get("apikey"))
	assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
}

func TestInsert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/noticias", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var got []map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "Nadal vuelve", got[0]["titulo"])
		assert.Equal(t, "Tenis", got[0]["categoria"])
		assert.Equal(t, "", got[0]["imagen_url"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `[{"id":12,"titulo":"Nadal vuelve","categoria":"Tenis","cuerpo":"c","autor":"Luis","imagen_url":"","created_at":"2025-06-02T18:30:00.123456+00:00"}]`)
	})

	it, err := c.Records().Insert(context.Background(), news.Draft{
		Title:    "Nadal vuelve",
		Category: news.CategoryTennis,
		Body:     "c",
		Author:   "Luis",
	})
	require.NoError(t, err)
	assert.Equal(t, "12", it.ID)
	assert.Equal(t, 2025, it.CreatedAt.Year())
	assert.Equal(t, "Luis", it.Author)
}

func TestInsertServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":"42501","details":null,"hint":null,"message":"new row violates row-level security policy for table \"noticias\""}`)
	})

	_, err := c.Records().Insert(context.Background(), news.Draft{Title: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "42501", apiErr.Code)
	assert.Contains(t, apiErr.ServiceMessage(), "row-level security")
}

func TestListNews(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		assert.Equal(t, "/rest/v1/noticias", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "created_at.desc,id.desc", r.URL.Query().Get("order"))
		io.WriteString(w, `[
			{"id":3,"titulo":"t3","categoria":"WWE","cuerpo":null,"autor":"a","imagen_url":null,"created_at":"2025-06-03T00:00:00+00:00"},
			{"id":2,"titulo":"t2","categoria":"Futbol","cuerpo":"b","autor":"a","imagen_url":"https://x/2.jpg","created_at":"2025-06-02T00:00:00+00:00"}
		]`)
	})

	items, err := c.Records().ListNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "3", items[0].ID)
	assert.Equal(t, "", items[0].Body)
	assert.Equal(t, "", items[0].ImageURL)
	assert.Equal(t, "https://x/2.jpg", items[1].ImageURL)
}

func TestGetNews(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "eq.2":
			io.WriteString(w, `[{"id":2,"titulo":"t2","categoria":"Futbol","cuerpo":"b","autor":"a","imagen_url":"","created_at":"2025-06-02T00:00:00+00:00"}]`)
		default:
			io.WriteString(w, `[]`)
		}
	})

	it, err := c.Records().GetNews(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "t2", it.Title)

	_, err = c.Records().GetNews(context.Background(), "9")
	assert.ErrorIs(t, err, news.ErrNotFound)

	_, err = c.Records().GetNews(context.Background(), "2;drop")
	assert.ErrorIs(t, err, news.ErrNotFound)
}

func TestUUIDKeyedTable(t *testing.T) {
	const id = "3f1c2a9e-5b7d-4c1e-9a2f-8d6e0b4c7a11"
	rowJSON := `{"id":"` + id + `","titulo":"Derbi","categoria":"Futbol","cuerpo":"b","autor":"a","imagen_url":"","created_at":"2025-06-02T00:00:00+00:00"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "":
			io.WriteString(w, `[`+rowJSON+`]`)
		case "eq." + id:
			io.WriteString(w, `[`+rowJSON+`]`)
		default:
			io.WriteString(w, `[]`)
		}
	})

	items, err := c.Records().ListNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "/noticia/"+id+"/", items[0].Link())

	it, err := c.Records().GetNews(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Derbi", it.Title)

	_, err = c.Records().GetNews(context.Background(), "otro")
	assert.ErrorIs(t, err, news.ErrNotFound)
}

func TestGetNewsEscapesID(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		io.WriteString(w, `[]`)
	})

	_, err := c.Records().GetNews(context.Background(), "a&b=c")
	assert.ErrorIs(t, err, news.ErrNotFound)
	assert.Contains(t, rawQuery, "id=eq.a%26b%3Dc")

	_, err = c.Records().GetNews(context.Background(), "  ")
	assert.ErrorIs(t, err, news.ErrNotFound)
}

func TestRowIDRejectsObjects(t *testing.T) {
	var rw row
	err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &rw)
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/imagenes-noticias/1700000000000-gol.jpg", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "false", r.Header.Get("x-upsert"))
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, "jpegbytes", string(b))
		io.WriteString(w, `{"Key":"imagenes-noticias/1700000000000-gol.jpg"}`)
	})

	err := c.Objects().Upload(context.Background(), "imagenes-noticias", "1700000000000-gol.jpg", []byte("jpegbytes"),
		news.UploadOptions{ContentType: "image/jpeg"})
	require.NoError(t, err)
}

func TestUploadDuplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`)
	})

	err := c.Objects().Upload(context.Background(), "b", "k.png", []byte("x"), news.UploadOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "The resource already exists", apiErr.ServiceMessage())
	assert.Equal(t, "409", apiErr.Code)
}

func TestPublicURL(t *testing.T) {
	c := New("https://abc.supabase.co/", testKey)
	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/imagenes-noticias/1700000000000-mi%20foto.png",
		c.Objects().PublicURL("imagenes-noticias", "1700000000000-mi foto.png"))
}

func TestUnconfiguredClientFailsOnUse(t *testing.T) {
	c := New("", "")
	_, err := c.Records().ListNews(context.Background())
	assert.Error(t, err)
}
