package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Auth modes select the credential transport used against the backend.
const (
	ModeToken   = "token"
	ModeSession = "session"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Export   ExportConfig   `toml:"export"`
	Preview  PreviewConfig  `toml:"preview"`
}

// APIConfig describes the snippet backend.
type APIConfig struct {
	BaseURL     string        `toml:"base_url"`
	FrontendURL string        `toml:"frontend_url"`
	Mode        string        `toml:"mode"`
	Timeout     time.Duration `toml:"timeout"`
	UserAgent   string        `toml:"user_agent"`
	Paths       PathsConfig   `toml:"paths"`
}

// PathsConfig holds the backend endpoint paths, relative to BaseURL.
type PathsConfig struct {
	Login         string `toml:"login"`
	SessionLogin  string `toml:"session_login"`
	Logout        string `toml:"logout"`
	SessionLogout string `toml:"session_logout"`
	Register      string `toml:"register"`
	CurrentUser   string `toml:"current_user"`
	Users         string `toml:"users"`
	Snippets      string `toml:"snippets"`
	Shared        string `toml:"shared"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// ExportConfig tunes bulk snippet exports.
type ExportConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// PreviewConfig is the bind address of the local preview server.
type PreviewConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for the preview server.
func (p PreviewConfig) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the fields that have no usable zero value.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	switch c.API.Mode {
	case ModeToken, ModeSession:
	default:
		return fmt.Errorf("%w: api.mode must be %q or %q, got %q", ErrInvalidConfig, ModeToken, ModeSession, c.API.Mode)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.API.BaseURL, "/")
}
