// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"whispr/internal/observability"
)

// Config holds client configuration values loaded from file or environment variables.
type Config struct {
	Env                string  `mapstructure:"APP_ENV"`
	APIBaseURL         string  `mapstructure:"API_BASE_URL"`
	HTTPTimeoutSeconds int     `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	RateLimitRPS       float64 `mapstructure:"API_RATE_LIMIT_RPS"`
	RateLimitBurst     int     `mapstructure:"API_RATE_LIMIT_BURST"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	StorageDir    string `mapstructure:"STORAGE_DIR"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	SQLDialect    string `mapstructure:"SQL_DIALECT"`
	SQLDSN        string `mapstructure:"SQL_DSN"`
	BadgerDir     string `mapstructure:"BADGER_DIR"`
	SessionKey    string `mapstructure:"SESSION_KEY"`
	CookieKey     string `mapstructure:"COOKIE_KEY"`

	CDNCloudName     string `mapstructure:"CDN_CLOUD_NAME"`
	CDNUploadPreset  string `mapstructure:"CDN_UPLOAD_PRESET"`
	CDNUploadURL     string `mapstructure:"CDN_UPLOAD_URL"`
	CDNProfileFolder string `mapstructure:"CDN_PROFILE_FOLDER"`
	ImageMaxUploadMB int    `mapstructure:"IMAGE_MAX_UPLOAD_MB"`
	PostMaxChars     int    `mapstructure:"POST_MAX_CHARS"`

	LogLevel            string  `mapstructure:"LOG_LEVEL"`
	LogFormat           string  `mapstructure:"LOG_FORMAT"`
	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	MetricsEnabled      bool    `mapstructure:"METRICS_ENABLED"`
}

// Storage drivers accepted by STORAGE_DRIVER.
var storageDrivers = map[string]bool{
	"file":   true,
	"redis":  true,
	"sql":    true,
	"badger": true,
	"memory": true,
}

// LoadConfig loads configuration from .env, whispr.yml and the
// environment. configFile, when non-empty, replaces the search path.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	if err := load(v, configFile); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func load(v *viper.Viper, configFile string) error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	explicit := configFile != ""
	if !explicit {
		configFile = findConfig("whispr")
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	env := v.GetString("APP_ENV")
	if env != "" && env != "development" && !explicit {
		profile := findConfig("whispr." + env)
		if profile == "" {
			return fmt.Errorf("required profile-specific config 'whispr.%s.yml' not found", env)
		}
		v.SetConfigFile(profile)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("error reading profile config %s: %w", profile, err)
		}
		observability.GlobalLogger.Info("loaded profile-specific configuration", "file", profile)
	}

	setDefaults(v)
	return nil
}

// configDirs lists where an unnamed config file is looked up, in order.
func configDirs() []string {
	dirs := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "whispr"))
	}
	return dirs
}

// findConfig returns the first base.yml or base.yaml in configDirs, or "".
// Only names with an extension match, so a built binary called whispr in
// the working directory is never read as config.
func findConfig(base string) string {
	for _, dir := range configDirs() {
		if path := findConfigIn(dir, base); path != "" {
			return path
		}
	}
	return ""
}

func findConfigIn(dir, base string) string {
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(dir, base+ext)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 0)
	v.SetDefault("API_RATE_LIMIT_RPS", 0)
	v.SetDefault("API_RATE_LIMIT_BURST", 1)
	v.SetDefault("STORAGE_DRIVER", "file")
	v.SetDefault("STORAGE_DIR", defaultStorageDir())
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SQL_DIALECT", "sqlite")
	v.SetDefault("SQL_DSN", "")
	v.SetDefault("BADGER_DIR", "")
	v.SetDefault("SESSION_KEY", "whispr-user")
	v.SetDefault("COOKIE_KEY", "whispr-cookies")
	v.SetDefault("CDN_CLOUD_NAME", "dyawamarj")
	v.SetDefault("CDN_UPLOAD_PRESET", "whispr")
	v.SetDefault("CDN_UPLOAD_URL", "")
	v.SetDefault("CDN_PROFILE_FOLDER", "whispr-profiles")
	v.SetDefault("IMAGE_MAX_UPLOAD_MB", 5)
	v.SetDefault("POST_MAX_CHARS", 500)
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	v.SetDefault("METRICS_ENABLED", false)
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "whispr")
	}
	return ".whispr"
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if !storageDrivers[c.StorageDriver] {
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.StorageDriver)
	}
	switch c.StorageDriver {
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis storage driver")
		}
	case "sql":
		if c.SQLDialect != "sqlite" && c.SQLDialect != "postgres" {
			return fmt.Errorf("SQL_DIALECT %q is not supported", c.SQLDialect)
		}
		if c.SQLDSN == "" {
			return errors.New("SQL_DSN is required for the sql storage driver")
		}
	case "file":
		if c.StorageDir == "" {
			return errors.New("STORAGE_DIR is required for the file storage driver")
		}
	}
	if c.SessionKey == "" || c.CookieKey == "" {
		return errors.New("SESSION_KEY and COOKIE_KEY are required")
	}
	if c.ImageMaxUploadMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_MB must be positive")
	}
	if c.PostMaxChars <= 0 {
		return errors.New("POST_MAX_CHARS must be positive")
	}
	if c.HTTPTimeoutSeconds < 0 {
		return errors.New("HTTP_TIMEOUT_SECONDS must not be negative")
	}

	if c.IsProduction() {
		if u.Scheme != "https" {
			return errors.New("API_BASE_URL must use https in production")
		}
		if c.StorageDriver == "memory" {
			observability.GlobalLogger.Warn("STORAGE_DRIVER is 'memory' in production; sessions will not survive restarts")
		}
		if c.TracingEnabled && c.TracingExporter == "stdout" {
			observability.GlobalLogger.Warn("TRACING_EXPORTER is 'stdout' in production")
		}
	}

	return nil
}

// IsProduction reports whether APP_ENV names a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// HTTPTimeout is the http.Client timeout; zero means none.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ImageMaxBytes is the upload limit in bytes.
func (c *Config) ImageMaxBytes() int64 {
	return int64(c.ImageMaxUploadMB) << 20
}

// UploadEndpoint is the CDN upload URL, derived from the cloud name
// unless CDN_UPLOAD_URL overrides it.
func (c *Config) UploadEndpoint() string {
	if c.CDNUploadURL != "" {
		return c.CDNUploadURL
	}
	return "https://api.cloudinary.com/v1_1/" + c.CDNCloudName + "/image/upload"
}

// TracingConfig maps the tracing keys onto observability.TracingConfig.
func (c *Config) TracingConfig(version string) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    "whispr-client",
		ServiceVersion: version,
		Environment:    c.Env,
		Enabled:        c.TracingEnabled,
		Exporter:       strings.ToLower(c.TracingExporter),
		OTLPEndpoint:   c.OTLPEndpoint,
		SamplerRatio:   c.TracingSamplerRatio,
	}
}
