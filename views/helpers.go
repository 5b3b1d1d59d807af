package views

import (
	"encoding/json"
	"html/template"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/quilpalta/alpalo/news"
)

const excerptRunes = 100

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// Excerpt returns the first 100 characters of body followed by "...".
func Excerpt(body string) string {
	if utf8.RuneCountInString(body) > excerptRunes {
		body = string([]rune(body)[:excerptRunes])
	}
	return body + "..."
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// LongDate formats t as "09 de marzo de 2024".
func LongDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	t = inZone(t, loc)
	return t.Format("02") + " de " + spanishMonths[t.Month()-1] + " de " + t.Format("2006")
}

// ShortDate formats t as "9/3/2024".
func ShortDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return inZone(t, loc).Format("2/1/2006")
}

func inZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// CategoryURL returns the listing filtered by c ("/" for the zero category).
func CategoryURL(c news.Category) string {
	if c == "" {
		return "/"
	}
	return "/?categoria=" + url.QueryEscape(string(c))
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) template.JS {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	return marshalJS(data)
}

// NewsArticleJsonLD produces a Schema.org NewsArticle JSON-LD block for it.
func NewsArticleJsonLD(cfg SiteConfig, it news.Item) template.JS {
	itemURL := buildURL(cfg.URL, "noticia", it.ID)
	data := map[string]interface{}{
		"@context":       "https://schema.org",
		"@type":          "NewsArticle",
		"headline":       it.Title,
		"articleSection": it.Category.Label(),
		"datePublished":  it.CreatedAt.UTC().Format(time.RFC3339),
		"url":            itemURL,
		"author": map[string]string{
			"@type": "Person",
			"name":  it.Author,
		},
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   itemURL,
		},
	}
	if it.HasImage() {
		data["image"] = it.ImageURL
	}
	return marshalJS(data)
}

// json.Marshal escapes <, > and &, so the result is safe inside <script>.
func marshalJS(v interface{}) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return template.JS(b)
}
