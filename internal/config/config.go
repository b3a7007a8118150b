package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

// PaperSize holds paper dimensions in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig describes the optional conversion journal database.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a journal database was configured.
func (p PostgresConfig) Enabled() bool { return p.Host != "" }

// Runtime holds the deployment flags resolved once at startup.
type Runtime struct {
	// Development selects the locally installed browser with a visible window.
	Development bool `yaml:"development"`
	// Serverless selects https for the self-referential render target and
	// disables the sample rendering on GET.
	Serverless bool `yaml:"serverless"`
}

// Config is the whole service configuration.
type Config struct {
	Server struct {
		Host            string        `yaml:"host"`
		Port            string        `yaml:"port"`
		Prefork         bool          `yaml:"prefork"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Limits struct {
		MaxPayloadBytes int `yaml:"max_payload_bytes"`
		MaxPDFBytes     int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Runtime Runtime `yaml:"runtime"`

	Browser struct {
		// Executables maps a platform (linux, windows, darwin) to the local
		// browser used in development.
		Executables map[string]string `yaml:"executables"`
		// BundledPath pins the production browser binary. When empty a
		// Chromium build is downloaded into BundleDir on first use.
		BundledPath    string   `yaml:"bundled_path"`
		BundleDir      string   `yaml:"bundle_dir"`
		ServerlessArgs []string `yaml:"serverless_args"`
		UserDataDir    string   `yaml:"user_data_dir"`
	} `yaml:"browser"`

	Render struct {
		TargetPath        string        `yaml:"target_path"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout"`
		ScrollStep        int           `yaml:"scroll_step"`
		ScrollInterval    time.Duration `yaml:"scroll_interval"`
		LogoBaseURL       string        `yaml:"logo_base_url"`
	} `yaml:"render"`

	PDF struct {
		DefaultPaper string               `yaml:"default_paper"`
		PaperSizes   map[string]PaperSize `yaml:"paper_sizes"`
		MarginPx     float64              `yaml:"margin_px"`
		Scale        float64              `yaml:"scale"`
	} `yaml:"pdf"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	Journal struct {
		Postgres PostgresConfig `yaml:"postgres"`
	} `yaml:"journal"`

	Sentry struct {
		DSN         string  `yaml:"dsn"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"sentry"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":3000"
	cfg.Server.ShutdownTimeout = 5 * time.Second

	cfg.Limits.MaxPayloadBytes = 10 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 20 * 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14

	cfg.Browser.Executables = map[string]string{
		"linux":   "/usr/bin/chromium-browser",
		"windows": `C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		"darwin":  "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	cfg.Browser.ServerlessArgs = []string{
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--disable-gpu-compositing",
		"--use-gl=swiftshader",
		"--no-zygote",
		"--hide-scrollbars",
		"--mute-audio",
	}

	cfg.Render.TargetPath = "/"
	cfg.Render.RequestTimeout = 30 * time.Second
	cfg.Render.NavigationTimeout = 30 * time.Second
	cfg.Render.ScrollStep = 100
	cfg.Render.ScrollInterval = 5 * time.Millisecond
	cfg.Render.LogoBaseURL = "https://cdn.tfgmedia.co.za/Communication/BrandFormat"

	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"A4":     {Width: 8.27, Height: 11.69},
		"LETTER": {Width: 8.5, Height: 11},
	}
	cfg.PDF.MarginPx = 25
	cfg.PDF.Scale = 0.95

	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.Cache.PDFCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute

	cfg.Sentry.SampleRate = 1.0
	return cfg
}

// Load reads the configuration from CONFIG_PATH, falling back to
// DefaultPath. A missing default file yields the built-in defaults.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg := Default()
			applyEnv(&cfg)
			validate(cfg)
			return cfg
		}
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path over the defaults and applies the
// environment overrides. It panics on unreadable files or invalid values.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: cannot read %s: %v", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: cannot parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	validate(cfg)
	return cfg
}

// applyEnv folds the deployment environment into the configuration.
func applyEnv(cfg *Config) {
	switch os.Getenv("APP_ENV") {
	case "development":
		cfg.Runtime.Development = true
	case "production":
		cfg.Runtime.Development = false
	}
	if os.Getenv("VERCEL") != "" || os.Getenv("SERVERLESS") != "" {
		cfg.Runtime.Serverless = true
	}
	// Common container env var for a preinstalled browser.
	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.Browser.BundledPath == "" {
		cfg.Browser.BundledPath = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
	if cfg.Sentry.Environment == "" {
		if cfg.Runtime.Development {
			cfg.Sentry.Environment = "development"
		} else {
			cfg.Sentry.Environment = "production"
		}
	}
}

func validate(cfg Config) {
	if cfg.Render.RequestTimeout <= 0 {
		panic("config: render.request_timeout must be positive")
	}
	if cfg.Render.NavigationTimeout <= 0 {
		panic("config: render.navigation_timeout must be positive")
	}
	if cfg.Render.ScrollStep <= 0 || cfg.Render.ScrollInterval <= 0 {
		panic("config: render.scroll_step and render.scroll_interval must be positive")
	}
	if cfg.Render.TargetPath == "" || cfg.Render.TargetPath[0] != '/' {
		panic("config: render.target_path must start with /")
	}
	if _, ok := cfg.PDF.PaperSizes[cfg.PDF.DefaultPaper]; !ok {
		panic(fmt.Sprintf("config: default paper %q is not configured", cfg.PDF.DefaultPaper))
	}
	if cfg.PDF.Scale < 0.1 || cfg.PDF.Scale > 2.0 {
		panic("config: pdf.scale must be between 0.1 and 2.0")
	}
	if cfg.PDF.MarginPx < 0 {
		panic("config: pdf.margin_px must not be negative")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		panic("config: rate_limiter.user_limit must not be negative")
	}
	if cfg.RateLimiter.UserLimit > 0 && cfg.RateLimiter.Interval <= 0 {
		panic("config: rate_limiter.interval must be positive")
	}
	if cfg.Cache.PDFCacheEnabled && cfg.Cache.RedisHost == "" {
		panic("config: cache.redis_host is required when the pdf cache is enabled")
	}
}

// Paper returns the default paper size.
func (c Config) Paper() PaperSize {
	return c.PDF.PaperSizes[c.PDF.DefaultPaper]
}
