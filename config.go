package alpalo

import (
	"net/http"
	"time"

	"github.com/quilpalta/alpalo/publish"
)

// SiteConfig holds all configuration for the news site.
type SiteConfig struct {
	Name        string // Site name (default "Directo Al Palo")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Footer      string // Footer line (default "Directo Al Palo © 2025 | Quilpalta.online")

	Addr     string         // Listen address (default ":3000")
	Location *time.Location // Zone dates are shown in (default UTC)

	Bucket        string // Cover image bucket (default "imagenes-noticias")
	ImageOptional bool   // Accept publishes without a cover image
	MaxUploadSize int64  // Cover image byte limit (default 10MB)
	ImageMaxWidth int    // Re-encode covers no wider than this; 0 keeps them as sent

	CollaboratorPassword string // Puts the publish form behind a login when set
	SessionSecret        string // Cookie signing secret; random per process when empty
	CookieSecure         bool   // Set true for HTTPS

	PublishLimit int // Publishes per IP per minute (default 10)
	LoginLimit   int // Failed logins per IP per minute (default 5)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Directo Al Palo"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Description == "" {
		c.Description = "Fútbol, WWE, tenis y más. Directo al palo."
	}
	if c.Footer == "" {
		c.Footer = "Directo Al Palo © 2025 | Quilpalta.online"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Bucket == "" {
		c.Bucket = publish.DefaultBucket
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 10 << 20
	}
	if c.PublishLimit == 0 {
		c.PublishLimit = 10
	}
	if c.LoginLimit == 0 {
		c.LoginLimit = 5
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithUploadsDir serves files under dir at /uploads/. Use it with the local
// disk object storage.
func WithUploadsDir(dir string) Option {
	return func(a *App) {
		a.uploadsDir = dir
	}
}

// WithUploadsHandler serves /uploads/ from h with the prefix stripped. Use it
// with the in-memory object storage. WithUploadsDir wins when both are set.
func WithUploadsHandler(h http.Handler) Option {
	return func(a *App) {
		a.uploadsServer = h
	}
}
