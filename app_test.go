package alpalo

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quilpalta/alpalo/news"
	"github.com/quilpalta/alpalo/publish"
	"github.com/quilpalta/alpalo/storage/memory"
)

type testClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newTestApp(t *testing.T, cfg SiteConfig, be *memory.Backend, opts ...Option) *testClient {
	t.Helper()
	cfg.SessionSecret = "test-secret"
	app, err := New(cfg, Deps{Records: be, Objects: be, Logger: zaptest.NewLogger(t)}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.loginLimiter.Stop()
		app.publishLimiter.Stop()
	})
	return &testClient{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if tok, ok := c.cookies["_csrf"]; ok && req.Method == http.MethodPost {
		req.Header.Set("X-CSRF-Token", tok.Value)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *testClient) get(path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return c.do(req)
}

type upload struct {
	name string
	data []byte
}

func (c *testClient) postForm(path string, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("imagen", file.name)
		require.NoError(c.t, err)
		_, err = fw.Write(file.data)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func pngUpload(t *testing.T, name string) *upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return &upload{name: name, data: buf.Bytes()}
}

func validFields(formID string) map[string]string {
	return map[string]string{
		"form_id":   formID,
		"titulo":    "Golazo en el clásico",
		"autor":     "Ana Pérez",
		"categoria": "Futbol",
		"cuerpo":    "Un zurdazo al ángulo en el último minuto.",
	}
}

func TestListingOrderNewestFirst(t *testing.T) {
	be := memory.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	be.Now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Hour) }
	for _, title := range []string{"Primera", "Segunda", "Tercera"} {
		_, err := be.Insert(context.Background(), news.Draft{Title: title, Author: "A", Category: news.CategoryFootball, Body: "B"})
		require.NoError(t, err)
	}
	c := newTestApp(t, SiteConfig{}, be)

	rec := c.get("/noticias/", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "<html", "fragment only")
	i3, i2, i1 := strings.Index(body, "Tercera"), strings.Index(body, "Segunda"), strings.Index(body, "Primera")
	require.True(t, i3 >= 0 && i2 >= 0 && i1 >= 0)
	assert.Less(t, i3, i2)
	assert.Less(t, i2, i1)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestListingFullPageAndCategoryFilter(t *testing.T) {
	be := memory.New()
	ctx := context.Background()
	_, _ = be.Insert(ctx, news.Draft{Title: "Nota de tenis", Author: "A", Category: news.CategoryTennis, Body: "B"})
	_, _ = be.Insert(ctx, news.Draft{Title: "Nota de lucha", Author: "A", Category: news.CategoryWrestling, Body: "B"})
	c := newTestApp(t, SiteConfig{}, be)

	rec := c.get("/noticias/?categoria=tenis")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html")
	assert.Contains(t, rec.Body.String(), "Nota de tenis")
	assert.NotContains(t, rec.Body.String(), "Nota de lucha")
}

func TestListingEmptyState(t *testing.T) {
	c := newTestApp(t, SiteConfig{}, memory.New())
	rec := c.get("/noticias/", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No hay noticias publicadas todavía.")
}

func TestListingErrorShowsEmptyState(t *testing.T) {
	be := memory.New()
	be.ListErr = errors.New("connection refused")
	c := newTestApp(t, SiteConfig{}, be)

	rec := c.get("/noticias/", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No hay noticias publicadas todavía.")
}

func TestHomeShell(t *testing.T) {
	c := newTestApp(t, SiteConfig{}, memory.New())
	rec := c.get("/?categoria=WWE")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="spinner"`)
	assert.Contains(t, body, `/noticias/?categoria=WWE`)
}

func TestDetail(t *testing.T) {
	be := memory.New()
	it, err := be.Insert(context.Background(), news.Draft{Title: "La final", Author: "Ana", Category: news.CategoryTennis, Body: "Partidazo"})
	require.NoError(t, err)
	c := newTestApp(t, SiteConfig{}, be)

	rec := c.get("/noticia/" + it.ID + "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>La final | Directo Al Palo</title>")
	assert.Contains(t, rec.Body.String(), "Partidazo")
}

func TestDetailUnknownIDIsNotFound(t *testing.T) {
	c := newTestApp(t, SiteConfig{}, memory.New())
	for _, path := range []string{"/noticia/999/", "/noticia/abc/"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "La noticia no existe o fue eliminada.")
		assert.Contains(t, rec.Body.String(), "Volver al inicio")
	}
}

func TestTrailingSlashRedirect(t *testing.T) {
	c := newTestApp(t, SiteConfig{}, memory.New())
	rec := c.get("/noticias")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/noticias/", rec.Header().Get("Location"))
}

func TestPublishSuccess(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{}, be)
	submit := time.Now().UTC()

	rec := c.get("/colaboradores/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, "_csrf")

	rec = c.postForm("/colaboradores/", validFields(publish.NewFormID()), pngUpload(t, "Gol.PNG"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/colaboradores/", rec.Header().Get("Location"))

	rec = c.get("/colaboradores/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, publish.SuccessMessage)
	assert.Contains(t, body, `name="titulo" value=""`, "form is cleared")
	assert.Contains(t, body, `<option value="Futbol" selected>`)

	items, err := be.ListNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Golazo en el clásico", items[0].Title)
	assert.NotEmpty(t, items[0].ImageURL)
	assert.False(t, items[0].CreatedAt.Before(submit.Truncate(time.Second)))

	rec = c.get("/noticias/", "HX-Request", "true")
	assert.Contains(t, rec.Body.String(), "Golazo en el clásico")
	assert.Contains(t, rec.Body.String(), items[0].ImageURL)

	rec = c.get("/colaboradores/")
	assert.NotContains(t, rec.Body.String(), publish.SuccessMessage, "flash is shown once")
}

func TestPublishedImageIsServedFromMemory(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{}, be, WithUploadsHandler(be))

	c.get("/colaboradores/")
	rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), pngUpload(t, "Gol.PNG"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	items, err := be.ListNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	u, err := url.Parse(items[0].ImageURL)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u.Path, "/uploads/"+publish.DefaultBucket+"/"), u.Path)

	key := strings.TrimPrefix(u.Path, "/uploads/"+publish.DefaultBucket+"/")
	obj, ok := be.Object(publish.DefaultBucket, key)
	require.True(t, ok)

	rec = c.get(u.Path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, obj.Data, rec.Body.Bytes())
	assert.Equal(t, obj.ContentType, rec.Header().Get("Content-Type"))

	rec = c.get("/uploads/" + publish.DefaultBucket + "/no-existe.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishInsertFailurePreservesForm(t *testing.T) {
	be := memory.New()
	be.InsertErr = errors.New("insert failed")
	c := newTestApp(t, SiteConfig{}, be)
	c.get("/colaboradores/")

	id := publish.NewFormID()
	rec := c.postForm("/colaboradores/", validFields(id), pngUpload(t, "foto.png"))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, publish.GenericMessage)
	assert.Contains(t, body, `value="Golazo en el clásico"`)
	assert.Contains(t, body, `name="form_id" value="`+id+`"`)

	items, _ := be.ListNews(context.Background())
	assert.Empty(t, items)
	assert.Equal(t, 1, be.ObjectCount(), "uploaded image is left orphaned")
}

func TestPublishUploadFailureSkipsInsert(t *testing.T) {
	be := memory.New()
	be.UploadErr = errors.New("storage down")
	c := newTestApp(t, SiteConfig{}, be)
	c.get("/colaboradores/")

	rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), pngUpload(t, "foto.png"))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	_, inserts := be.Calls()
	assert.Zero(t, inserts)
}

func TestPublishWithoutImageWhenOptional(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{ImageOptional: true}, be)
	c.get("/colaboradores/")

	for i := 0; i < 2; i++ {
		rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	items, _ := be.ListNews(context.Background())
	require.Len(t, items, 2)
	assert.Empty(t, items[0].ImageURL)
	assert.Empty(t, items[1].ImageURL)
}

func TestPublishValidation(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{}, be)
	c.get("/colaboradores/")

	fields := validFields(publish.NewFormID())
	fields["titulo"] = "  "
	rec := c.postForm("/colaboradores/", fields, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Este campo es obligatorio.")
	assert.Contains(t, body, "Seleccioná una imagen de portada.")
	assert.Contains(t, body, `value="Ana Pérez"`)

	uploads, inserts := be.Calls()
	assert.Zero(t, uploads)
	assert.Zero(t, inserts)
}

func TestPublishWhileInFlightIsNoop(t *testing.T) {
	be := memory.New()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	be.BeforeUpload = func(ctx context.Context) {
		once.Do(func() { close(entered) })
		<-release
	}
	c := newTestApp(t, SiteConfig{}, be)
	c.get("/colaboradores/")

	id := publish.NewFormID()
	one, two := pngUpload(t, "uno.png"), pngUpload(t, "dos.png")
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- c.postFormNoJar("/colaboradores/", validFields(id), one)
	}()
	<-entered

	rec := c.postFormNoJar("/colaboradores/", validFields(id), two)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled>Subiendo datos...</button>")

	close(release)
	assert.Equal(t, http.StatusSeeOther, (<-first).Code)

	uploads, inserts := be.Calls()
	assert.Equal(t, 1, uploads, "second submission reached no backend")
	assert.Equal(t, 1, inserts)
}

// postFormNoJar is postForm without touching the shared cookie map, for use
// from several goroutines.
func (c *testClient) postFormNoJar(path string, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile("imagen", file.name)
	_, _ = fw.Write(file.data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	csrf := c.cookies["_csrf"]
	req.AddCookie(csrf)
	req.Header.Set("X-CSRF-Token", csrf.Value)
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPublishRateLimited(t *testing.T) {
	c := newTestApp(t, SiteConfig{ImageOptional: true, PublishLimit: 1}, memory.New())
	c.get("/colaboradores/")

	rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPublishTooLarge(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{MaxUploadSize: 64}, be)
	c.get("/colaboradores/")

	big := &upload{name: "grande.png", data: bytes.Repeat([]byte{0x89}, 256)}
	rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	uploads, _ := be.Calls()
	assert.Zero(t, uploads)
}

func TestPublishRequiresCSRF(t *testing.T) {
	c := newTestApp(t, SiteConfig{ImageOptional: true}, memory.New())
	rec := c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCollaboratorLogin(t *testing.T) {
	be := memory.New()
	c := newTestApp(t, SiteConfig{CollaboratorPassword: "palo", ImageOptional: true}, be)

	rec := c.get("/colaboradores/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)

	rec = c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, inserts := be.Calls()
	assert.Zero(t, inserts, "publishing needs a login")

	rec = c.postForm("/colaboradores/ingresar/", map[string]string{"password": "mal"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Contraseña incorrecta.")

	rec = c.postForm("/colaboradores/ingresar/", map[string]string{"password": "palo"}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = c.get("/colaboradores/")
	assert.Contains(t, rec.Body.String(), `name="form_id"`)

	rec = c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, inserts = be.Calls()
	assert.Equal(t, 1, inserts)

	rec = c.postForm("/colaboradores/salir/", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = c.get("/colaboradores/")
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestFeedAndSitemap(t *testing.T) {
	be := memory.New()
	it, _ := be.Insert(context.Background(), news.Draft{Title: "River & Boca", Author: "A", Category: news.CategoryFootball, Body: "B"})
	c := newTestApp(t, SiteConfig{URL: "https://directoalpalo.com"}, be)

	rec := c.get("/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<rss")
	assert.Contains(t, rec.Body.String(), "River &amp; Boca")
	assert.Contains(t, rec.Body.String(), "https://directoalpalo.com/noticia/"+it.ID+"/")

	rec = c.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://directoalpalo.com/noticia/"+it.ID+"/</loc>")

	rec = c.get("/robots.txt")
	assert.Contains(t, rec.Body.String(), "Sitemap: https://directoalpalo.com/sitemap.xml")
}

func TestAmbientEndpoints(t *testing.T) {
	c := newTestApp(t, SiteConfig{ImageOptional: true}, memory.New())

	assert.Equal(t, http.StatusOK, c.get("/healthz").Code)
	assert.Equal(t, http.StatusOK, c.get("/favicon.svg").Code)
	assert.Equal(t, http.StatusOK, c.get("/public/site.css").Code)

	c.get("/colaboradores/")
	c.postForm("/colaboradores/", validFields(publish.NewFormID()), nil)
	rec := c.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `alpalo_publish_total{result="ok"} 1`)
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	c := newTestApp(t, SiteConfig{}, memory.New())
	rec := c.get("/no/existe/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Volver al inicio")
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(SiteConfig{}, Deps{})
	assert.Error(t, err)
}
