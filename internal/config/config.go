package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the production API origin used when nothing else is configured.
const DefaultBaseURL = "https://shramicerp.pythonanywhere.com"

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Version     string `mapstructure:"version"`
}

// APIConfig holds the remote backend settings
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// StorageConfig holds device-local session storage settings
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // file, sqlite, memory
	Dir        string `mapstructure:"dir"`
	Profile    string `mapstructure:"profile"`
	Passphrase string `mapstructure:"passphrase"` // seals the bearer token when set
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// DevServerConfig holds settings for the development backend
type DevServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AutoApprove   bool          `mapstructure:"auto_approve"`
	WrapResponses bool          `mapstructure:"wrap_responses"`
}

// Addr returns the listen address
func (d *DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// It's okay if .env doesn't exist, environment variables still apply
	_ = v.ReadInConfig()

	return build(v)
}

// LoadWithPath loads configuration from a specific file (.env, .yaml or .json)
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" || ext == "env" {
		v.SetConfigType("env")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The mobile build read the origin from REACT_APP_API_URL; keep honouring it.
	_ = v.BindEnv("INTERN_API_URL", "INTERN_API_URL", "API_URL", "REACT_APP_API_URL")

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "intern-connect")
	v.SetDefault("APP_ENVIRONMENT", "production")
	v.SetDefault("APP_VERSION", "1.0.0")

	// API defaults
	v.SetDefault("INTERN_API_URL", DefaultBaseURL)
	v.SetDefault("INTERN_API_TIMEOUT", "30s")
	v.SetDefault("INTERN_HEALTH_TIMEOUT", "5s")

	// Storage defaults
	v.SetDefault("INTERN_STORAGE_DRIVER", "file")
	v.SetDefault("INTERN_STORAGE_DIR", defaultStorageDir())
	v.SetDefault("INTERN_PROFILE", "default")
	v.SetDefault("INTERN_STORAGE_PASSPHRASE", "")

	// Log defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	// Dev server defaults
	v.SetDefault("DEVSERVER_HOST", "127.0.0.1")
	v.SetDefault("DEVSERVER_PORT", 8080)
	v.SetDefault("DEVSERVER_JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("DEVSERVER_TOKEN_TTL", "24h")
	v.SetDefault("DEVSERVER_AUTO_APPROVE", false)
	v.SetDefault("DEVSERVER_WRAP_RESPONSES", false)
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Version = v.GetString("APP_VERSION")

	// API
	cfg.API.BaseURL = strings.TrimRight(v.GetString("INTERN_API_URL"), "/")
	cfg.API.Timeout = v.GetDuration("INTERN_API_TIMEOUT")
	cfg.API.HealthTimeout = v.GetDuration("INTERN_HEALTH_TIMEOUT")

	// Storage
	cfg.Storage.Driver = v.GetString("INTERN_STORAGE_DRIVER")
	cfg.Storage.Dir = v.GetString("INTERN_STORAGE_DIR")
	cfg.Storage.Profile = v.GetString("INTERN_PROFILE")
	cfg.Storage.Passphrase = v.GetString("INTERN_STORAGE_PASSPHRASE")

	// Log
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	// Dev server
	cfg.DevServer.Host = v.GetString("DEVSERVER_HOST")
	cfg.DevServer.Port = v.GetInt("DEVSERVER_PORT")
	cfg.DevServer.JWTSecret = v.GetString("DEVSERVER_JWT_SECRET")
	cfg.DevServer.TokenTTL = v.GetDuration("DEVSERVER_TOKEN_TTL")
	cfg.DevServer.AutoApprove = v.GetBool("DEVSERVER_AUTO_APPROVE")
	cfg.DevServer.WrapResponses = v.GetBool("DEVSERVER_WRAP_RESPONSES")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.API.HealthTimeout <= 0 {
		return fmt.Errorf("health timeout must be positive")
	}

	switch c.Storage.Driver {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	if c.Storage.Profile == "" || strings.ContainsAny(c.Storage.Profile, `/\`) {
		return fmt.Errorf("invalid storage profile: %q", c.Storage.Profile)
	}

	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("invalid devserver port: %d", c.DevServer.Port)
	}

	return nil
}

// ValidateDevServer validates settings only the development backend needs
func (c *Config) ValidateDevServer() error {
	if c.DevServer.JWTSecret == "" {
		return fmt.Errorf("DEVSERVER_JWT_SECRET is required")
	}
	if c.IsProduction() && c.DevServer.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("DEVSERVER_JWT_SECRET must be changed in production")
	}
	if c.DevServer.TokenTTL <= 0 {
		return fmt.Errorf("DEVSERVER_TOKEN_TTL must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "intern-connect")
	}
	return ".intern-connect"
}
