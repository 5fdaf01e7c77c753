package config

import (
	"strings"
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/domain"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables (and bound CLI flags) with
// sensible defaults.
type Config struct {
	// Server (serve mode)
	Port     int
	LogLevel string

	// Remote API
	APIBaseURL  string
	APIVariant  domain.APIVariant
	Credentials domain.Credentials

	// HTTP client
	HTTPTimeout time.Duration

	// Aggregation
	MaxPages       int // 0 = unbounded
	MaxConcurrency int // 0 = every account at once

	// Serve mode
	CacheTTL        time.Duration
	RefreshSchedule string // cron schedule; empty disables background refresh
	CORSOrigins     []string

	// Observability
	OTLPEndpoint string
}

// Keys shared by Load and the CLI flag bindings.
const (
	KeyPort           = "PORT"
	KeyLogLevel       = "LOG_LEVEL"
	KeyAPIBaseURL     = "API_BASE_URL"
	KeyAPIVariant     = "API_VARIANT"
	KeyClientID       = "CLIENT_ID"
	KeyClientSecret   = "CLIENT_SECRET"
	KeyUserLogin      = "USER_LOGIN"
	KeyUserPassword   = "USER_PASSWORD"
	KeyHTTPTimeout    = "HTTP_TIMEOUT"
	KeyMaxPages       = "MAX_PAGES"
	KeyMaxConcurrency = "MAX_CONCURRENCY"
	KeyCacheTTL       = "CACHE_TTL"
	KeyRefresh        = "REFRESH_SCHEDULE"
	KeyCORSOrigins    = "CORS_ALLOWED_ORIGINS"
	KeyOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Load reads configuration from v, falling back to defaults.
func Load(v *viper.Viper) *Config {
	v.AutomaticEnv()

	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAPIBaseURL, "http://localhost:3000")
	v.SetDefault(KeyAPIVariant, string(domain.VariantCamel))
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyMaxPages, 0)
	v.SetDefault(KeyMaxConcurrency, 0)
	v.SetDefault(KeyCacheTTL, 30*time.Second)
	v.SetDefault(KeyRefresh, "")
	v.SetDefault(KeyCORSOrigins, "*")
	v.SetDefault(KeyOTLPEndpoint, "")

	return &Config{
		Port:     v.GetInt(KeyPort),
		LogLevel: v.GetString(KeyLogLevel),

		APIBaseURL: strings.TrimRight(v.GetString(KeyAPIBaseURL), "/"),
		APIVariant: domain.APIVariant(strings.ToLower(v.GetString(KeyAPIVariant))),
		Credentials: domain.Credentials{
			ClientID:     v.GetString(KeyClientID),
			ClientSecret: v.GetString(KeyClientSecret),
			UserLogin:    v.GetString(KeyUserLogin),
			UserPassword: v.GetString(KeyUserPassword),
		},

		HTTPTimeout: v.GetDuration(KeyHTTPTimeout),

		MaxPages:       v.GetInt(KeyMaxPages),
		MaxConcurrency: v.GetInt(KeyMaxConcurrency),

		CacheTTL:        v.GetDuration(KeyCacheTTL),
		RefreshSchedule: strings.TrimSpace(v.GetString(KeyRefresh)),
		CORSOrigins:     splitList(v.GetString(KeyCORSOrigins)),

		OTLPEndpoint: v.GetString(KeyOTLPEndpoint),
	}
}

// Validate ensures the remote API can be reached with the loaded values.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyAPIBaseURL, c.APIBaseURL},
		{KeyClientID, c.Credentials.ClientID},
		{KeyClientSecret, c.Credentials.ClientSecret},
		{KeyUserLogin, c.Credentials.UserLogin},
		{KeyUserPassword, c.Credentials.UserPassword},
	}
	for _, r := range required {
		if r.value == "" {
			return &domain.ErrValidation{Field: r.key, Message: "is required"}
		}
	}

	if _, err := domain.FieldMapFor(c.APIVariant); err != nil {
		return err
	}
	if c.MaxPages < 0 {
		return &domain.ErrValidation{Field: KeyMaxPages, Message: "must not be negative"}
	}
	if c.MaxConcurrency < 0 {
		return &domain.ErrValidation{Field: KeyMaxConcurrency, Message: "must not be negative"}
	}
	if c.RefreshSchedule != "" && c.CacheTTL <= 0 {
		return &domain.ErrValidation{Field: KeyRefresh, Message: "needs a positive " + KeyCacheTTL}
	}
	return nil
}

// Fields returns the wire field mapping for the configured API variant.
func (c *Config) Fields() domain.FieldMap {
	fields, err := domain.FieldMapFor(c.APIVariant)
	if err != nil {
		return domain.CamelCaseFields
	}
	return fields
}

// splitList parses a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
