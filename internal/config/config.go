// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP listener and edge middleware.
type ServerConfig struct {
	Host           string `env:"SERVER_HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int    `env:"RATE_LIMIT_BURST,default=40"`
}

// Origins splits AllowedOrigins on commas.
func (c ServerConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver             string `env:"RECORD_STORE,default=supabase"`
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	DatabaseURL        string `env:"DATABASE_URL"`
}

// SupabaseKey prefers the service key over the anon key.
func (c StoreConfig) SupabaseKey() string {
	if c.SupabaseServiceKey != "" {
		return c.SupabaseServiceKey
	}
	return c.SupabaseAnonKey
}

// FilesConfig selects the object storage backend.
type FilesConfig struct {
	Driver          string `env:"FILE_STORE,default=supabase"`
	Bucket          string `env:"FILE_BUCKET,default=project-files"`
	S3Region        string `env:"S3_REGION"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3PathStyle     bool   `env:"S3_PATH_STYLE,default=false"`
}

// IdentityConfig selects the identity provider and the admin address.
type IdentityConfig struct {
	Provider          string        `env:"IDENTITY_PROVIDER,default=firebase"`
	FirebaseAPIKey    string        `env:"FIREBASE_API_KEY"`
	SupabaseJWTSecret string        `env:"SUPABASE_JWT_SECRET"`
	AdminEmail        string        `env:"ADMIN_EMAIL"`
	RefreshMargin     time.Duration `env:"SESSION_REFRESH_MARGIN,default=5m"`
}

// MailConfig configures the outbound relay. Credentials are checked on first send.
type MailConfig struct {
	Host           string `env:"SMTP_HOST,default=smtp.gmail.com"`
	Port           int    `env:"SMTP_PORT,default=587"`
	User           string `env:"EMAIL_USER"`
	Password       string `env:"EMAIL_PASSWORD"`
	To             string `env:"EMAIL_TO"`
	NotifyOnCreate bool   `env:"NOTIFY_ON_CREATE,default=false"`
}

// ExportConfig controls PDF rendering and local time.
type ExportConfig struct {
	FontPath string `env:"PDF_FONT_PATH"`
	TimeZone string `env:"APP_TIMEZONE,default=Asia/Tokyo"`
}

// Config is the complete process configuration.
type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	Store       StoreConfig
	Files       FilesConfig
	Identity    IdentityConfig
	Mail        MailConfig
	Export      ExportConfig
	OptionsFile string        `env:"OPTIONS_FILE"`
	DraftTTL    time.Duration `env:"DRAFT_TTL,default=2h"`
}

// Load reads .env (if present) and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings needed to start serving. Mail settings are
// deliberately left to the mailer.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "supabase":
		if c.Store.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase record store")
		}
		if c.Store.SupabaseKey() == "" {
			return fmt.Errorf("SUPABASE_ANON_KEY or SUPABASE_SERVICE_KEY is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres record store")
		}
	default:
		return fmt.Errorf("unknown RECORD_STORE %q", c.Store.Driver)
	}

	switch strings.ToLower(c.Identity.Provider) {
	case "memory":
	case "firebase":
		if c.Identity.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for the firebase identity provider")
		}
	case "gotrue", "supabase":
		if c.Store.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the gotrue identity provider")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.Identity.Provider)
	}

	switch strings.ToLower(c.Files.Driver) {
	case "memory", "supabase":
	case "s3":
		if c.Files.Bucket == "" {
			return fmt.Errorf("FILE_BUCKET is required for the s3 file store")
		}
	default:
		return fmt.Errorf("unknown FILE_STORE %q", c.Files.Driver)
	}
	return nil
}

// Location resolves the configured time zone, falling back to JST.
func (c ExportConfig) Location() *time.Location {
	if c.TimeZone != "" {
		if loc, err := time.LoadLocation(c.TimeZone); err == nil {
			return loc
		}
	}
	return time.FixedZone("JST", 9*60*60)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
