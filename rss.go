package alpalo

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quilpalta/alpalo/news"
	"github.com/quilpalta/alpalo/views"
)

const feedSize = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category,omitempty"`
	PubDate     string        `xml:"pubDate"`
	GUID        string        `xml:"guid"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int    `xml:"length,attr"`
}

func (a *App) renderRSS(c echo.Context, items []news.Item) error {
	if len(items) > feedSize {
		items = items[:feedSize]
	}
	entries := make([]rssItem, 0, len(items))
	for _, it := range items {
		link := a.absURL(it.Link())
		entry := rssItem{
			Title:       it.Title,
			Link:        link,
			Description: views.Excerpt(it.Body),
			Category:    it.Category.Label(),
			PubDate:     it.CreatedAt.UTC().Format(time.RFC1123Z),
			GUID:        link,
		}
		if it.HasImage() {
			entry.Enclosure = &rssEnclosure{URL: it.ImageURL, Type: "image/jpeg"}
		}
		entries = append(entries, entry)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(a.Config.URL),
			Description: a.Config.Description,
			Language:    "es",
			Items:       entries,
		},
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", feed)
}

func writeXML(c echo.Context, contentType string, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}
