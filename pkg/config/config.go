package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the downloader.
type Config struct {
	// Platform selects the extractor and carries its credentials
	Platform PlatformConfig `yaml:"platform" json:"platform"`

	// Rate limiting for timeline API requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Content filtering
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Resume state location
	State StateConfig `yaml:"state" json:"state"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PlatformConfig holds the platform selection and credentials.
type PlatformConfig struct {
	Name       string `yaml:"name" json:"name"`
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`
	Cookie     string `yaml:"cookie" json:"cookie"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// OutputConfig holds output directory and path template configuration.
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	PathTemplate string `yaml:"path_template" json:"path_template"`
	// Sanitize selects the path sanitization policy: "safe" replaces
	// filesystem-hostile characters, "strict" rejects them, "off" renders
	// templates verbatim.
	Sanitize string `yaml:"sanitize" json:"sanitize"`
}

// DownloadConfig holds download-stage configuration.
type DownloadConfig struct {
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts   int           `yaml:"retry_attempts" json:"retry_attempts"`
	MediaTypes      []string      `yaml:"media_types" json:"media_types"`
}

// FilterConfig holds content filter configuration. Dates accept RFC3339 or
// plain "2006-01-02"; empty bounds are open-ended.
type FilterConfig struct {
	StartDate    string   `yaml:"start_date" json:"start_date"`
	EndDate      string   `yaml:"end_date" json:"end_date"`
	BlockedWords []string `yaml:"blocked_words" json:"blocked_words"`
}

// StateConfig holds the resume-state file location.
type StateConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:      "x",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Output: OutputConfig{
			Directory: "./downloads",
			Sanitize:  "safe",
		},
		Download: DownloadConfig{
			Concurrency:     3,
			DownloadTimeout: 60 * time.Second,
			RetryAttempts:   5,
			MediaTypes:      []string{"image", "video", "gif"},
		},
		State: StateConfig{
			Directory: "./state",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from MEDIAGRAB_* environment variables.
func (c *Config) LoadFromEnv() error {
	if name := os.Getenv("MEDIAGRAB_PLATFORM"); name != "" {
		c.Platform.Name = name
	}
	if cookieFile := os.Getenv("MEDIAGRAB_COOKIE_FILE"); cookieFile != "" {
		c.Platform.CookieFile = cookieFile
	}
	if cookie := os.Getenv("MEDIAGRAB_COOKIE"); cookie != "" {
		c.Platform.Cookie = cookie
	}
	if userAgent := os.Getenv("MEDIAGRAB_USER_AGENT"); userAgent != "" {
		c.Platform.UserAgent = userAgent
	}
	if rpm := os.Getenv("MEDIAGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if outputDir := os.Getenv("MEDIAGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if tmpl := os.Getenv("MEDIAGRAB_PATH_TEMPLATE"); tmpl != "" {
		c.Output.PathTemplate = tmpl
	}
	if concurrent := os.Getenv("MEDIAGRAB_CONCURRENCY"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.Concurrency = val
		}
	}
	if stateDir := os.Getenv("MEDIAGRAB_STATE_DIR"); stateDir != "" {
		c.State.Directory = stateDir
	}
	if logLevel := os.Getenv("MEDIAGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".mediagrab.yaml",
		".mediagrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "mediagrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".mediagrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.Platform.Name {
	case "x", "justforfans":
	default:
		errs = append(errs, fmt.Errorf("unknown platform: %q", c.Platform.Name))
	}
	if c.Platform.Cookie == "" && c.Platform.CookieFile == "" {
		errs = append(errs, errors.New("a cookie or cookie file is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("download concurrency must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}
	for _, t := range c.Download.MediaTypes {
		switch t {
		case "image", "video", "gif":
		default:
			errs = append(errs, fmt.Errorf("unknown media type: %q", t))
		}
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch strings.ToLower(c.Output.Sanitize) {
	case "safe", "strict", "off", "":
	default:
		errs = append(errs, fmt.Errorf("unknown sanitize mode: %q", c.Output.Sanitize))
	}

	for _, bound := range []string{c.Filter.StartDate, c.Filter.EndDate} {
		if bound == "" {
			continue
		}
		if _, err := ParseFilterDate(bound); err != nil {
			errs = append(errs, fmt.Errorf("invalid filter date %q: %w", bound, err))
		}
	}

	if c.State.Directory == "" {
		errs = append(errs, errors.New("state directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ParseFilterDate parses a filter bound as RFC3339 or plain date.
func ParseFilterDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CookieHeader returns the effective cookie header, reading the cookie file
// when no inline value is set.
func (c *Config) CookieHeader() (string, error) {
	if c.Platform.Cookie != "" {
		return strings.TrimSpace(c.Platform.Cookie), nil
	}
	data, err := os.ReadFile(c.Platform.CookieFile)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if name, ok := flags["platform"].(string); ok && name != "" {
		c.Platform.Name = name
	}
	if cookieFile, ok := flags["cookie-file"].(string); ok && cookieFile != "" {
		c.Platform.CookieFile = cookieFile
	}
	if cookie, ok := flags["cookie"].(string); ok && cookie != "" {
		c.Platform.Cookie = cookie
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if tmpl, ok := flags["template"].(string); ok && tmpl != "" {
		c.Output.PathTemplate = tmpl
	}
	if concurrent, ok := flags["concurrency"].(int); ok && concurrent > 0 {
		c.Download.Concurrency = concurrent
	}
	if types, ok := flags["media-types"].([]string); ok && len(types) > 0 {
		c.Download.MediaTypes = types
	}
	if start, ok := flags["start-date"].(string); ok && start != "" {
		c.Filter.StartDate = start
	}
	if end, ok := flags["end-date"].(string); ok && end != "" {
		c.Filter.EndDate = end
	}
	if blocked, ok := flags["blocked-words"].([]string); ok && len(blocked) > 0 {
		c.Filter.BlockedWords = blocked
	}
	if stateDir, ok := flags["state-dir"].(string); ok && stateDir != "" {
		c.State.Directory = stateDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mediagrab.env"))

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
