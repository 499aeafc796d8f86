package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"

	DefaultGeminiModel = "gemini-pro"
	DefaultGroqModel   = "llama3-8b-8192"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Database    DatabaseConfig            `mapstructure:"database"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	Port          string `mapstructure:"port"`
	LogLevel      string `mapstructure:"log_level"`
	// SampleTextPath replaces the built-in mock invoice text when set.
	SampleTextPath   string `mapstructure:"sample_text_path"`
	UploadTTLMinutes int    `mapstructure:"upload_ttl_minutes"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables the redis upload registry when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// Load reads configuration from .env, the optional JSON file at path
// (defaults to config.json when present) and the process environment.
// Environment values win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var baseDir string
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
		baseDir = filepath.Dir(absPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(baseDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.port", "3001")
	v.SetDefault("basic_config.log_level", "info")
	v.SetDefault("basic_config.upload_ttl_minutes", 24*60)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "invoices.db")
	v.SetDefault("providers.gemini.model", DefaultGeminiModel)
	v.SetDefault("providers.groq.model", DefaultGroqModel)
	v.SetDefault("providers.groq.base_url", DefaultGroqBaseURL)
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"basic_config.server_address":     "SERVER_ADDRESS",
		"basic_config.port":               "PORT",
		"basic_config.log_level":          "LOG_LEVEL",
		"basic_config.sample_text_path":   "SAMPLE_TEXT_PATH",
		"basic_config.upload_ttl_minutes": "UPLOAD_TTL_MINUTES",
		"database.driver":                 "DATABASE_DRIVER",
		"database.dsn":                    "DATABASE_URL",
		"redis.addr":                      "REDIS_ADDR",
		"redis.username":                  "REDIS_USERNAME",
		"redis.password":                  "REDIS_PASSWORD",
		"redis.db":                        "REDIS_DB",
		"providers.gemini.api_key":        "GEMINI_API_KEY",
		"providers.gemini.model":          "GEMINI_MODEL",
		"providers.groq.api_key":          "GROQ_API_KEY",
		"providers.groq.model":            "GROQ_MODEL",
		"providers.groq.base_url":         "GROQ_BASE_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

func (c *Config) normalize(baseDir string) error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
		c.Database.Driver = "sqlite3"
		dsn := c.Database.DSN
		if baseDir != "" && dsn != "" && !strings.Contains(dsn, ":") && !filepath.IsAbs(dsn) {
			c.Database.DSN = filepath.Join(baseDir, dsn)
		}
	case "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must be configured")
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	for name, p := range c.Providers {
		p.APIKey = strings.TrimSpace(p.APIKey)
		c.Providers[name] = p
	}
	return nil
}

// Addr is the listen address: ServerAddress when set, otherwise ":" + Port.
func (c *Config) Addr() string {
	if c.BasicConfig.ServerAddress != "" {
		return c.BasicConfig.ServerAddress
	}
	port := c.BasicConfig.Port
	if port == "" {
		port = "3001"
	}
	return ":" + port
}

// Provider returns the settings for the named provider (zero value if absent).
func (c *Config) Provider(name string) ProviderConfig {
	return c.Providers[name]
}

// UploadTTL is how long upload metadata stays in the registry.
func (c *Config) UploadTTL() time.Duration {
	if c.BasicConfig.UploadTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.BasicConfig.UploadTTLMinutes) * time.Minute
}
