// Package config loads server configuration from flags, environment variables and a .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contiapp/conti-server/internal/logger"
)

// Database drivers for the sheet library.
const (
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Metadata  MetadataConfig
	Server    ServerConfig
	Auth      AuthConfig
	Kakao     KakaoConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Resolver  ResolverConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for auto-detect
}

// MetadataConfig holds the base directory for all local state.
type MetadataConfig struct {
	BasePath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	PublicURL    string // Base URL used when building file links; empty means relative links
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key, set by auth.LoadOrGenerateKey at startup.
	AccessTokenKey       []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// KakaoConfig holds Kakao OAuth client settings.
type KakaoConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Kakao login is configured.
func (k KakaoConfig) Enabled() bool {
	return k.ClientID != "" && k.RedirectURL != ""
}

// StorageConfig holds uploaded page image settings.
type StorageConfig struct {
	UploadPath     string // defaults to {metadata}/uploads
	MaxUploadBytes int64
	ThumbnailWidth int
}

// DatabaseConfig selects the sheet library backend.
type DatabaseConfig struct {
	Driver       string
	MongoURI     string
	MongoDB      string
	QueryTimeout time.Duration
}

// ResolverConfig holds song identity resolution policy.
type ResolverConfig struct {
	// StrictIdentity rejects new arrangements whose category, bpm or
	// language disagree with other versions of the same song.
	StrictIdentity bool
}

// RateLimitConfig holds per-IP limits for authentication endpoints.
type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

// LoadConfig loads configuration with precedence flags > environment > .env file > defaults.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("conti", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	metadataPath := fs.String("metadata-path", "", "Base path for local state")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	port := fs.String("port", "", "Server port (default: 8080)")
	publicURL := fs.String("public-url", "", "Public base URL of this server")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed CORS origins")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 30s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 1h)")
	refreshTokenDuration := fs.String("refresh-token-duration", "", "Refresh token lifetime (default: 720h)")

	uploadPath := fs.String("upload-path", "", "Directory for uploaded sheet pages")
	maxUpload := fs.String("max-upload-bytes", "", "Maximum page upload size in bytes")

	dbDriver := fs.String("db-driver", "", "Sheet library backend (badger, mongo)")
	mongoURI := fs.String("mongo-uri", "", "MongoDB connection string")
	mongoDB := fs.String("mongo-db", "", "MongoDB database name")

	strictIdentity := fs.String("strict-identity", "", "Reject new arrangements that disagree with sibling versions")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			PublicURL:   strings.TrimRight(getConfigValue(*publicURL, "PUBLIC_URL", ""), "/"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Kakao: KakaoConfig{
			ClientID:     getConfigValue("", "KAKAO_CLIENT_ID", ""),
			ClientSecret: getConfigValue("", "KAKAO_CLIENT_SECRET", ""),
			RedirectURL:  getConfigValue("", "KAKAO_REDIRECT_URI", ""),
		},
		Storage: StorageConfig{
			UploadPath:     getConfigValue(*uploadPath, "UPLOAD_PATH", ""),
			MaxUploadBytes: int64(getIntConfigValue(*maxUpload, "MAX_UPLOAD_BYTES", 20<<20)),
			ThumbnailWidth: getIntConfigValue("", "THUMBNAIL_WIDTH", 320),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getConfigValue(*dbDriver, "DB_DRIVER", DriverBadger)),
			MongoURI: getConfigValue(*mongoURI, "MONGO_URI", ""),
			MongoDB:  getConfigValue(*mongoDB, "MONGO_DB", "conti"),
		},
		Resolver: ResolverConfig{
			StrictIdentity: getBoolConfigValue(*strictIdentity, "STRICT_IDENTITY", false),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getIntConfigValue("", "AUTH_RATE_PER_MINUTE", 20),
			AuthBurst:     getIntConfigValue("", "AUTH_RATE_BURST", 5),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Auth.AccessTokenDuration, *accessTokenDuration, "ACCESS_TOKEN_DURATION", "1h"},
		{&cfg.Auth.RefreshTokenDuration, *refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "30s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Database.QueryTimeout, "", "DB_QUERY_TIMEOUT", "10s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that values are present and mutually consistent.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	if !logger.ValidLevel(c.Logger.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", logger.FormatJSON, logger.FormatPretty:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	switch c.Database.Driver {
	case DriverBadger:
	case DriverMongo:
		if c.Database.MongoURI == "" {
			return errors.New("MONGO_URI is required when DB_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be badger or mongo)", c.Database.Driver)
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Storage.ThumbnailWidth <= 0 {
		return errors.New("THUMBNAIL_WIDTH must be positive")
	}
	if c.RateLimit.AuthPerMinute <= 0 || c.RateLimit.AuthBurst <= 0 {
		return errors.New("auth rate limit values must be positive")
	}
	return nil
}

// DatabasePath is the badger directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Metadata.BasePath, "db")
}

// SearchIndexPath is the bleve index directory.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Metadata.BasePath, "search", "sheets.bleve")
}

// KeyPath is the PASETO key file.
func (c *Config) KeyPath() string {
	return filepath.Join(c.Metadata.BasePath, "keys", "access.key")
}

func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Metadata.BasePath, filepath.Join(home, "Conti", "data"))
	if err != nil {
		return fmt.Errorf("invalid metadata path: %w", err)
	}
	c.Metadata.BasePath = base

	uploads, err := expandPath(c.Storage.UploadPath, filepath.Join(base, "uploads"))
	if err != nil {
		return fmt.Errorf("invalid upload path: %w", err)
	}
	c.Storage.UploadPath = uploads
	return nil
}

// expandPath expands ~ and makes path absolute, using defaultPath when path is empty.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// getConfigValue returns the flag value, else the env var, else the default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path without overriding the environment.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- operator-supplied config path
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
