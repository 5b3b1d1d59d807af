package alpalo

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/quilpalta/alpalo/news"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) renderSitemap(c echo.Context, items []news.Item) error {
	urls := []sitemapURL{
		{Loc: BuildURL(a.Config.URL)},
		{Loc: a.absURL("/noticias/")},
	}
	for _, cat := range news.Categories() {
		urls = append(urls, sitemapURL{Loc: a.absURL("/?categoria=" + string(cat))})
	}
	for _, it := range items {
		urls = append(urls, sitemapURL{
			Loc:     a.absURL(it.Link()),
			LastMod: it.CreatedAt.UTC().Format("2006-01-02"),
		})
	}
	return writeXML(c, "application/xml; charset=utf-8", sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	})
}
