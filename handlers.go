package alpalo

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/news"
)

// activeCategory reads ?categoria=; unknown values show every section.
func activeCategory(c echo.Context) news.Category {
	cat, _ := news.ParseCategory(c.QueryParam("categoria"))
	return cat
}

// listNews returns the listing filtered by active. Failures are logged and
// counted, and the reader sees the empty state.
func (a *App) listNews(ctx context.Context, active news.Category) []news.Item {
	items, err := a.records.ListNews(ctx)
	if err != nil {
		a.logger.Error("news listing failed", zap.Error(err))
		a.metrics.ListFailed()
		return nil
	}
	if active == "" {
		return items
	}
	filtered := make([]news.Item, 0, len(items))
	for _, it := range items {
		if it.Category == active {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

func (a *App) handleHome(c echo.Context) error {
	active := activeCategory(c)
	gridURL := "/noticias/"
	if active != "" {
		gridURL += "?categoria=" + url.QueryEscape(string(active))
	}
	return Render(c, a.Views.Home(active, gridURL))
}

func (a *App) handleListing(c echo.Context) error {
	active := activeCategory(c)
	items := a.listNews(c.Request().Context(), active)
	if isFragment(c) {
		return Render(c, a.Views.Grid(items, active))
	}
	return Render(c, a.Views.Listing(items, active))
}

func (a *App) handleDetail(c echo.Context) error {
	id := c.Param("id")
	it, err := a.records.GetNews(c.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, news.ErrNotFound) {
			a.logger.Error("news detail failed", zap.String("id", id), zap.Error(err))
		}
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	return Render(c, a.Views.Detail(it))
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.listNews(c.Request().Context(), ""))
}

func (a *App) handleFeed(c echo.Context) error {
	return a.renderRSS(c, a.listNews(c.Request().Context(), ""))
}

func (a *App) handleFavicon(c echo.Context) error {
	data, err := EmbeddedAssets.ReadFile("embedded/logo.svg")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/svg+xml", data)
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nDisallow: /colaboradores/\n\nSitemap: " + a.absURL("/sitemap.xml") + "\n"
	return c.String(http.StatusOK, body)
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.logger.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
