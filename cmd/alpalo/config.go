package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/quilpalta/alpalo"
	"github.com/quilpalta/alpalo/publish"
)

// Config is everything the binary reads from alpalo.yaml, the environment
// and .env.
type Config struct {
	Site     SiteSection     `mapstructure:"site"`
	Server   ServerSection   `mapstructure:"server"`
	Upload   UploadSection   `mapstructure:"upload"`
	Records  RecordsSection  `mapstructure:"records"`
	Objects  ObjectsSection  `mapstructure:"objects"`
	Supabase SupabaseSection `mapstructure:"supabase"`
	Cache    CacheSection    `mapstructure:"cache"`
	NATS     NATSSection     `mapstructure:"nats"`
	Log      LogSection      `mapstructure:"log"`
}

type SiteSection struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Description string `mapstructure:"description"`
	Footer      string `mapstructure:"footer"`
	Timezone    string `mapstructure:"timezone"`
}

type ServerSection struct {
	Addr                 string        `mapstructure:"addr"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
	SessionSecret        string        `mapstructure:"session_secret"`
	CollaboratorPassword string        `mapstructure:"collaborator_password"`
	PublishLimit         int           `mapstructure:"publish_limit"`
	LoginLimit           int           `mapstructure:"login_limit"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadSection struct {
	Bucket   string `mapstructure:"bucket"`
	MaxSize  int64  `mapstructure:"max_size"`
	Optional bool   `mapstructure:"optional"`
	MaxWidth int    `mapstructure:"max_width"`
}

// RecordsSection picks the record store: supabase, postgres, sqlite or memory.
type RecordsSection struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ObjectsSection picks the object storage: supabase, s3, local or memory.
type ObjectsSection struct {
	Driver   string    `mapstructure:"driver"`
	LocalDir string    `mapstructure:"local_dir"`
	S3       S3Section `mapstructure:"s3"`
}

type S3Section struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

type SupabaseSection struct {
	URL     string `mapstructure:"url"`
	AnonKey string `mapstructure:"anon_key"`
}

// CacheSection enables the listing cache: "" (off), memory or redis.
type CacheSection struct {
	Driver   string        `mapstructure:"driver"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
	RedisKey string        `mapstructure:"redis_key"`
}

type NATSSection struct {
	URL string `mapstructure:"url"`
}

type LogSection struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envAliases are accepted next to the ALPALO_ names. The Supabase ones are
// the names the hosted frontend used.
var envAliases = map[string][]string{
	"supabase.url":                 {"SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"},
	"supabase.anon_key":            {"SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"},
	"server.collaborator_password": {"COLLABORATOR_PASSWORD"},
	"server.session_secret":        {"SESSION_SECRET"},
	"upload.max_size":              {"MAX_UPLOAD_SIZE"},
	"server.addr":                  {"ADDR"},
	"site.url":                     {"SITE_URL"},
	"records.postgres_dsn":         {"DATABASE_URL"},
	"cache.redis_url":              {"REDIS_URL"},
	"nats.url":                     {"NATS_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.name", "Directo Al Palo")
	v.SetDefault("site.url", "http://localhost:3000")
	v.SetDefault("site.description", "")
	v.SetDefault("site.footer", "")
	v.SetDefault("site.timezone", "America/Argentina/Buenos_Aires")

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.collaborator_password", "")
	v.SetDefault("server.publish_limit", 10)
	v.SetDefault("server.login_limit", 5)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("upload.bucket", publish.DefaultBucket)
	v.SetDefault("upload.max_size", 10<<20)
	v.SetDefault("upload.optional", false)
	v.SetDefault("upload.max_width", 0)

	v.SetDefault("records.driver", "supabase")
	v.SetDefault("records.sqlite_path", "data/noticias.db")
	v.SetDefault("records.postgres_dsn", "")

	v.SetDefault("objects.driver", "supabase")
	v.SetDefault("objects.local_dir", "data/uploads")
	v.SetDefault("objects.s3.endpoint", "localhost:9000")
	v.SetDefault("objects.s3.access_key", "")
	v.SetDefault("objects.s3.secret_key", "")
	v.SetDefault("objects.s3.region", "")
	v.SetDefault("objects.s3.use_ssl", false)
	v.SetDefault("objects.s3.public_url", "")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")

	v.SetDefault("cache.driver", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.redis_key", "")

	v.SetDefault("nats.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// loadConfig reads .env (when present), then cfgFile or ./alpalo.yaml, then
// the environment. Later sources win.
func loadConfig(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("alpalo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/alpalo")
	}

	v.SetEnvPrefix("ALPALO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, names := range envAliases {
		prefixed := "ALPALO_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Records.Driver {
	case "supabase", "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown records driver %q", c.Records.Driver)
	}
	switch c.Objects.Driver {
	case "supabase", "s3", "local", "memory":
	default:
		return fmt.Errorf("unknown objects driver %q", c.Objects.Driver)
	}
	switch c.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Records.Driver == "postgres" && c.Records.PostgresDSN == "" {
		return errors.New("records.postgres_dsn is required for the postgres driver")
	}
	return nil
}

// siteConfig maps the file/env settings onto the App configuration.
func (c *Config) siteConfig() (alpalo.SiteConfig, error) {
	loc := time.UTC
	if c.Site.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(c.Site.Timezone); err != nil {
			return alpalo.SiteConfig{}, fmt.Errorf("site.timezone: %w", err)
		}
	}
	return alpalo.SiteConfig{
		Name:                 c.Site.Name,
		URL:                  c.Site.URL,
		Description:          c.Site.Description,
		Footer:               c.Site.Footer,
		Addr:                 c.Server.Addr,
		Location:             loc,
		Bucket:               c.Upload.Bucket,
		ImageOptional:        c.Upload.Optional,
		MaxUploadSize:        c.Upload.MaxSize,
		ImageMaxWidth:        c.Upload.MaxWidth,
		CollaboratorPassword: c.Server.CollaboratorPassword,
		SessionSecret:        c.Server.SessionSecret,
		CookieSecure:         c.Server.CookieSecure,
		PublishLimit:         c.Server.PublishLimit,
		LoginLimit:           c.Server.LoginLimit,
	}, nil
}
