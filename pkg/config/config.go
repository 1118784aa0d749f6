package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for igsync
type Config struct {
	Account  AccountConfig  `yaml:"account" json:"account"`
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Pacing   PacingConfig   `yaml:"pacing" json:"pacing"`
	Staging  StagingConfig  `yaml:"staging" json:"staging"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Batch    BatchConfig    `yaml:"batch" json:"batch"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// AccountConfig identifies the provider account whose session is reused.
type AccountConfig struct {
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
	SessionDir  string `yaml:"session_dir" json:"session_dir"`
	CookiesFile string `yaml:"cookies_file,omitempty" json:"cookies_file,omitempty"`
}

// ProviderConfig holds HTTP settings for the remote profile provider
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	AppID     string        `yaml:"app_id" json:"app_id"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig controls the retry executor
type RetryConfig struct {
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay          time.Duration `yaml:"base_delay" json:"base_delay"`
	RateLimitBaseDelay time.Duration `yaml:"rate_limit_base_delay" json:"rate_limit_base_delay"`
	JitterMin          time.Duration `yaml:"jitter_min" json:"jitter_min"`
	JitterMax          time.Duration `yaml:"jitter_max" json:"jitter_max"`
}

// PacingConfig controls delays inserted before provider calls
type PacingConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Policy            string        `yaml:"policy" json:"policy"`
	MinDelay          time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	Jitter            time.Duration `yaml:"jitter" json:"jitter"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
}

// StagingConfig holds local staging directory settings
type StagingConfig struct {
	Root string `yaml:"root" json:"root"`
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	UploadEnabled  bool   `yaml:"upload_enabled" json:"upload_enabled"`
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
	Region         string `yaml:"region" json:"region"`
	AccessKey      string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey      string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`
	Bucket         string `yaml:"bucket" json:"bucket"`
	ForcePathStyle bool   `yaml:"force_path_style" json:"force_path_style"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	Mode string `yaml:"mode" json:"mode"`
}

// BatchConfig controls concurrent runs over several entities
type BatchConfig struct {
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	JournalDir  string `yaml:"journal_dir" json:"journal_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Pacing policy names
const (
	PacingRandom        = "random"
	PacingTokenBucket   = "token_bucket"
	PacingSlidingWindow = "sliding_window"
	PacingAdaptive      = "adaptive"
	PacingDisabled      = "disabled"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			SessionDir: ".",
		},
		Provider: ProviderConfig{
			BaseURL:   "https://www.instagram.com",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			AppID:     "936619743392459",
			Timeout:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:         3,
			BaseDelay:          5 * time.Second,
			RateLimitBaseDelay: 30 * time.Second,
			JitterMin:          1 * time.Second,
			JitterMax:          3 * time.Second,
		},
		Pacing: PacingConfig{
			Enabled:           true,
			Policy:            PacingRandom,
			MinDelay:          2 * time.Second,
			MaxDelay:          7 * time.Second,
			Jitter:            time.Second,
			RequestsPerMinute: 10,
			BurstSize:         2,
		},
		Staging: StagingConfig{
			Root: "dados",
		},
		Storage: StorageConfig{
			UploadEnabled:  true,
			Region:         "us-east-1",
			Bucket:         "instagram-profiles",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Addr: ":8000",
			Mode: "release",
		},
		Batch: BatchConfig{
			Concurrency: 1,
			JournalDir:  "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := firstEnv("IGSYNC_USERNAME", "INSTAGRAM_USERNAME", "IG_USERNAME"); v != "" {
		c.Account.Username = v
	}
	if v := firstEnv("IGSYNC_PASSWORD", "INSTAGRAM_PASSWORD", "IG_PASSWORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("IGSYNC_SESSION_DIR"); v != "" {
		c.Account.SessionDir = v
	}
	if v := os.Getenv("IGSYNC_COOKIES_FILE"); v != "" {
		c.Account.CookiesFile = v
	}
	if v := os.Getenv("IGSYNC_USER_AGENT"); v != "" {
		c.Provider.UserAgent = v
	}

	if v := os.Getenv("IGSYNC_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGSYNC_MAX_RETRIES: %w", err))
		} else {
			c.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("IGSYNC_BASE_DELAY"); v != "" {
		d, err := parseDelay(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGSYNC_BASE_DELAY: %w", err))
		} else {
			c.Retry.BaseDelay = d
		}
	}
	if v := firstEnv("IGSYNC_PACING_ENABLED", "IGSYNC_USE_DELAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGSYNC_PACING_ENABLED: %w", err))
		} else {
			c.Pacing.Enabled = b
		}
	}
	if v := os.Getenv("IGSYNC_PACING_POLICY"); v != "" {
		c.Pacing.Policy = strings.ToLower(v)
	}

	if v := os.Getenv("IGSYNC_STAGING_ROOT"); v != "" {
		c.Staging.Root = v
	}

	if v := firstEnv("IGSYNC_UPLOAD_ENABLED", "IGSYNC_UPLOAD_TO_S3"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGSYNC_UPLOAD_ENABLED: %w", err))
		} else {
			c.Storage.UploadEnabled = b
		}
	}
	if v := firstEnv("IGSYNC_S3_ENDPOINT", "S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := firstEnv("IGSYNC_S3_REGION", "AWS_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := firstEnv("IGSYNC_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := firstEnv("IGSYNC_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := firstEnv("IGSYNC_BUCKET", "BUCKET_NAME"); v != "" {
		c.Storage.Bucket = v
	}

	if v := os.Getenv("IGSYNC_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("IGSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGSYNC_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// parseDelay accepts either a Go duration ("5s") or a bare number of seconds ("5").
func parseDelay(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"igsync.yaml",
		".igsync.yaml",
		".igsync.yml",
		filepath.Join(home, ".config", "igsync", "config.yaml"),
		filepath.Join(home, ".config", "igsync", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultPath is where `config init` writes a new file.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "igsync", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Account.SessionDir == "" {
		errs = append(errs, errors.New("session directory is required"))
	}

	if c.Retry.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("base delay cannot be negative"))
	}
	if c.Retry.JitterMax < c.Retry.JitterMin {
		errs = append(errs, errors.New("retry jitter max must not be below jitter min"))
	}

	switch strings.ToLower(c.Pacing.Policy) {
	case PacingRandom, PacingAdaptive:
		if c.Pacing.MinDelay < 0 || c.Pacing.MaxDelay < c.Pacing.MinDelay {
			errs = append(errs, errors.New("pacing delay range is invalid"))
		}
	case PacingTokenBucket, PacingSlidingWindow:
		if c.Pacing.RequestsPerMinute <= 0 {
			errs = append(errs, errors.New("pacing requests per minute must be positive"))
		}
	case PacingDisabled:
	default:
		errs = append(errs, fmt.Errorf("unknown pacing policy %q", c.Pacing.Policy))
	}

	if c.Staging.Root == "" {
		errs = append(errs, errors.New("staging root is required"))
	}

	if c.Storage.UploadEnabled {
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("bucket name is required when upload is enabled"))
		}
		if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
			errs = append(errs, errors.New("object store access key and secret key must be set together"))
		}
	}

	if c.Batch.Concurrency <= 0 {
		errs = append(errs, errors.New("batch concurrency must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy with secrets replaced, suitable for display.
func (c *Config) Masked() *Config {
	cp := *c
	if cp.Account.Password != "" {
		cp.Account.Password = "********"
	}
	if cp.Storage.SecretKey != "" {
		cp.Storage.SecretKey = "********"
	}
	if len(cp.Storage.AccessKey) > 4 {
		cp.Storage.AccessKey = cp.Storage.AccessKey[:4] + "****"
	}
	return &cp
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Account.Username = v
	}
	if v, ok := flags["password"].(string); ok && v != "" {
		c.Account.Password = v
	}
	if v, ok := flags["session-dir"].(string); ok && v != "" {
		c.Account.SessionDir = v
	}
	if v, ok := flags["staging-root"].(string); ok && v != "" {
		c.Staging.Root = v
	}
	if v, ok := flags["bucket"].(string); ok && v != "" {
		c.Storage.Bucket = v
	}
	if v, ok := flags["endpoint"].(string); ok && v != "" {
		c.Storage.Endpoint = v
	}
	if v, ok := flags["upload"].(bool); ok {
		c.Storage.UploadEnabled = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxRetries = v
	}
	if v, ok := flags["base-delay"].(time.Duration); ok && v >= 0 {
		c.Retry.BaseDelay = v
	}
	if v, ok := flags["pacing"].(bool); ok {
		c.Pacing.Enabled = v
	}
	if v, ok := flags["pacing-policy"].(string); ok && v != "" {
		c.Pacing.Policy = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Batch.Concurrency = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igsync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
