// Package config gathers the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sprintboard/internal/storage/sqlstore"
	"sprintboard/internal/util"
)

// Config holds everything the serve command needs.
type Config struct {
	Environment string
	Addr        string
	LogLevel    slog.Level

	DBDriver string
	DBDSN    string

	StaticDir string
	BlobDir   string
	BlobURL   string

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins []string
	LoginRate   float64
	LoginBurst  int
	RedisAddr   string

	OTelEndpoint string
	ServiceName  string
}

// LoadDotEnv reads .env files into the process environment. A missing file is
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from environment variables and defaults.
func Load() (*Config, error) {
	level, err := ParseLevel(util.EnvOrDefault("SPRINTBOARD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	return &Config{
		Environment:  util.EnvOrDefault("SPRINTBOARD_ENV", "development"),
		Addr:         util.EnvOrDefault("SPRINTBOARD_ADDR", ":8080"),
		LogLevel:     level,
		DBDriver:     util.EnvOrDefault("SPRINTBOARD_DB_DRIVER", sqlstore.DriverSQLite),
		DBDSN:        util.EnvOrDefault("SPRINTBOARD_DB_DSN", "data/sprintboard.db"),
		StaticDir:    util.EnvOrDefault("SPRINTBOARD_STATIC_DIR", "web/dist"),
		BlobDir:      util.EnvOrDefault("SPRINTBOARD_BLOB_DIR", "data/blobs"),
		BlobURL:      util.EnvOrDefault("SPRINTBOARD_BLOB_URL", "/blobs"),
		JWTSecret:    util.EnvOrDefault("SPRINTBOARD_JWT_SECRET", ""),
		TokenTTL:     util.EnvDuration("SPRINTBOARD_TOKEN_TTL", 24*time.Hour),
		CORSOrigins:  util.EnvList("SPRINTBOARD_CORS_ORIGINS", []string{"http://localhost:5173"}),
		LoginRate:    util.EnvFloat("SPRINTBOARD_LOGIN_RATE", 1),
		LoginBurst:   util.EnvInt("SPRINTBOARD_LOGIN_BURST", 5),
		RedisAddr:    util.EnvOrDefault("SPRINTBOARD_REDIS_ADDR", ""),
		OTelEndpoint: util.EnvOrDefault("SPRINTBOARD_OTEL_ENDPOINT", ""),
		ServiceName:  util.EnvOrDefault("SPRINTBOARD_SERVICE_NAME", "sprintboard"),
	}, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("SPRINTBOARD_JWT_SECRET is required outside development"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token TTL must be positive"))
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		errs = append(errs, errors.New("login rate and burst must be positive"))
	}
	if c.BlobDir == "" {
		errs = append(errs, errors.New("blob directory is required"))
	}
	return errors.Join(errs...)
}

// Secret returns the token signing secret, falling back to a fixed
// development value.
func (c *Config) Secret() string {
	if c.JWTSecret == "" && c.IsDevelopment() {
		return "sprintboard-development-secret"
	}
	return c.JWTSecret
}

// ParseLevel maps debug|info|warn|error onto slog levels.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}
