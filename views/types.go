package views

import (
	"html/template"
	"time"

	"github.com/quilpalta/alpalo/news"
	"github.com/quilpalta/alpalo/publish"
)

// SiteConfig holds site-wide settings every page renders with.
type SiteConfig struct {
	Name        string // default "Directo Al Palo"
	URL         string // canonical base URL
	Description string
	Footer      string
	Location    *time.Location // dates are shown in this zone (default UTC)
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

// Page is the data shared by every full page.
type Page struct {
	Site       SiteConfig
	Meta       PageMeta
	Active     news.Category
	Categories []news.Category
	JSONLD     template.JS
}

// ListingPage renders the news grid, standalone or as a full page.
type ListingPage struct {
	Page
	Items []news.Item
}

// HomePage is the shell that loads the grid after first paint.
type HomePage struct {
	Page
	GridURL string
}

// DetailPage renders one news item.
type DetailPage struct {
	Page
	Item news.Item
}

// PublishPage renders the collaborator form.
type PublishPage struct {
	Page
	Form         publish.Form
	CSRF         string
	Success      string
	Alert        string
	Errors       map[string]string
	Busy         bool
	RequireImage bool
	MaxUploadMB  int64
	CanLogout    bool
}

// LoginPage renders the collaborator login.
type LoginPage struct {
	Page
	CSRF      string
	ShowError bool
	Limited   bool
}
