// Package views renders the site's pages. Each page is a templ.Component
// backed by an embedded html/template file.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/quilpalta/alpalo/news"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views renders pages for one site.
type Views struct {
	site SiteConfig
	tmpl *template.Template
}

// New parses the page templates.
func New(site SiteConfig) (*Views, error) {
	if site.Location == nil {
		site.Location = time.UTC
	}
	loc := site.Location
	funcs := template.FuncMap{
		"excerpt":     Excerpt,
		"label":       func(c news.Category) string { return c.Label() },
		"categoryURL": CategoryURL,
		"longDate":    func(t time.Time) string { return LongDate(t, loc) },
		"shortDate":   func(t time.Time) string { return ShortDate(t, loc) },
	}
	tmpl, err := template.New("views").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Views{site: site, tmpl: tmpl}, nil
}

// Site returns the site settings pages are rendered with.
func (v *Views) Site() SiteConfig { return v.site }

func (v *Views) component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return v.tmpl.ExecuteTemplate(w, name, data)
	})
}

func (v *Views) page(title, path, ogType string, active news.Category) Page {
	full := v.site.Name
	if title != "" {
		full = title + " | " + v.site.Name
	}
	return Page{
		Site: v.site,
		Meta: PageMeta{
			Title:       full,
			Description: v.site.Description,
			URL:         buildURL(v.site.URL, path),
			OGType:      ogType,
		},
		Active:     active,
		Categories: news.Categories(),
		JSONLD:     WebsiteJsonLD(v.site),
	}
}

// Home is the listing shell: header, loading indicator and a script that
// swaps in the grid fragment from gridURL.
func (v *Views) Home(active news.Category, gridURL string) templ.Component {
	title := ""
	if active != "" {
		title = active.Label()
	}
	return v.component("home", HomePage{
		Page:    v.page(title, "", "website", active),
		GridURL: gridURL,
	})
}

// Listing is the full listing page.
func (v *Views) Listing(items []news.Item, active news.Category) templ.Component {
	title := "Noticias"
	if active != "" {
		title = active.Label()
	}
	return v.component("listing", ListingPage{
		Page:  v.page(title, "noticias", "website", active),
		Items: items,
	})
}

// Grid is the listing fragment: the cards or the empty state.
func (v *Views) Grid(items []news.Item, active news.Category) templ.Component {
	return v.component("grid", ListingPage{
		Page:  Page{Site: v.site, Active: active},
		Items: items,
	})
}

// Detail is the full page of one news item.
func (v *Views) Detail(it news.Item) templ.Component {
	p := v.page(it.Title, "noticia/"+it.ID, "article", it.Category)
	p.Meta.Description = Excerpt(it.Body)
	p.Meta.Image = it.ImageURL
	p.JSONLD = NewsArticleJsonLD(v.site, it)
	return v.component("detail", DetailPage{Page: p, Item: it})
}

// NotFound is the not-found page with a link back to the listing.
func (v *Views) NotFound() templ.Component {
	return v.component("notfound", v.page("404", "", "website", ""))
}

// ServerError is shown for unexpected failures.
func (v *Views) ServerError() templ.Component {
	return v.component("error", v.page("Error", "", "website", ""))
}

// Publish is the collaborator form.
func (v *Views) Publish(p PublishPage) templ.Component {
	p.Page = v.page("Redacción", "colaboradores", "website", "")
	return v.component("publish", p)
}

// Login is the collaborator login form.
func (v *Views) Login(p LoginPage) templ.Component {
	p.Page = v.page("Redacción", "colaboradores", "website", "")
	return v.component("login", p)
}
