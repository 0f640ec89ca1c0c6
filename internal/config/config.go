// Package config loads the bot configuration from environment variables
// (optionally seeded from a .env file), applies defaults and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file
	DSN    string // Postgres DSN
}

// DiscordConfig holds the chat platform credentials and pacing.
type DiscordConfig struct {
	Token string
	RPS   int // outbound REST calls per second, 0 = unpaced
}

// ScheduleConfig holds the daily timetable.
type ScheduleConfig struct {
	PostTime    string // HH:MM
	Timezone    string
	CloseOffset time.Duration // close runs at PostTime - CloseOffset
}

// Location resolves Timezone; validation guarantees it loads.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceConfig configures the comic scraper.
type SourceConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// PublishConfig configures fan-out and rendering.
type PublishConfig struct {
	DeliveryTimeout    time.Duration
	Concurrency        int
	Title              string
	Locale             string
	ScrapeFailedNotice string
}

// Tag parses Locale; validation guarantees it parses.
func (p PublishConfig) Tag() language.Tag {
	tag, err := language.Parse(p.Locale)
	if err != nil {
		return language.Finnish
	}
	return tag
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test
	APIBasePath       string

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool

	// Storage
	DB       DBConfig
	ImageDir string

	// Bot
	Discord    DiscordConfig
	Schedule   ScheduleConfig
	Source     SourceConfig
	Publish    PublishConfig
	GuildsFile string // optional YAML seed

	// API
	AdminToken  string
	RecentLimit int
	RateRPS     float64
	RateBurst   int
	CORS        CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads .env (if present, without overriding the real environment),
// then the environment, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "comicbot.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		ImageDir: getenv("IMAGE_DIR", "images"),

		Discord: DiscordConfig{
			Token: getenv("DISCORD_TOKEN", ""),
			RPS:   getint("GATEWAY_RPS", 5),
		},
		Schedule: ScheduleConfig{
			PostTime:    getenv("POST_TIME", "03:00"),
			Timezone:    getenv("TIMEZONE", "Europe/Helsinki"),
			CloseOffset: getdur("CLOSE_OFFSET", 15*time.Minute),
		},
		Source: SourceConfig{
			URL:       getenv("SOURCE_URL", "https://www.hs.fi/sarjakuvat/fingerpori/"),
			UserAgent: getenv("SOURCE_USER_AGENT", ""),
			Timeout:   getdur("SCRAPE_TIMEOUT", 30*time.Second),
		},
		Publish: PublishConfig{
			DeliveryTimeout:    getdur("DELIVERY_TIMEOUT", 30*time.Second),
			Concurrency:        getint("FANOUT_CONCURRENCY", 8),
			Title:              getenv("POST_TITLE", "Päivän Fingerpori"),
			Locale:             getenv("LOCALE", "fi"),
			ScrapeFailedNotice: getenv("SCRAPE_FAILED_NOTICE", "botti rikki :/"),
		},
		GuildsFile: getenv("GUILDS_FILE", ""),

		AdminToken:  getenv("ADMIN_TOKEN", ""),
		RecentLimit: getint("RECENT_LIMIT", 30),
		RateRPS:     getfloat("RATE_RPS", 5.0),
		RateBurst:   getint("RATE_BURST", 10),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "comicbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if strings.TrimSpace(cfg.ImageDir) == "" {
		return errors.New("IMAGE_DIR must not be empty")
	}

	if cfg.Discord.RPS < 0 {
		return errors.New("GATEWAY_RPS must be >= 0")
	}
	if _, _, err := ParseClock(cfg.Schedule.PostTime); err != nil {
		return fmt.Errorf("POST_TIME: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.Schedule.CloseOffset < 0 || cfg.Schedule.CloseOffset >= 24*time.Hour {
		return errors.New("CLOSE_OFFSET must be in [0, 24h)")
	}
	if cfg.Source.Timeout <= 0 {
		return errors.New("SCRAPE_TIMEOUT must be > 0")
	}
	if cfg.Publish.DeliveryTimeout <= 0 {
		return errors.New("DELIVERY_TIMEOUT must be > 0")
	}
	if cfg.Publish.Concurrency < 1 {
		return errors.New("FANOUT_CONCURRENCY must be >= 1")
	}
	if _, err := language.Parse(cfg.Publish.Locale); err != nil {
		return fmt.Errorf("LOCALE: %w", err)
	}

	if cfg.RecentLimit < 1 {
		return errors.New("RECENT_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// RequireBot reports the settings the long-running bot needs but one-shot
// commands like migrate do not.
func (cfg Config) RequireBot() error {
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return errors.New("DISCORD_TOKEN must be set")
	}
	return nil
}

// ParseClock parses a 24h "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
