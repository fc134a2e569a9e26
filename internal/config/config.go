package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Storage  Storage  `mapstructure:"storage"`
	Journal  Journal  `mapstructure:"journal"`
	Auth     Auth     `mapstructure:"auth"`
	Client   Client   `mapstructure:"client"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Storage holds the key-value storage settings.
type Storage struct {
	// Scope namespaces every key, the way a browser scopes local storage per origin.
	Scope     string `mapstructure:"scope"`
	Ephemeral bool   `mapstructure:"ephemeral"`
	AuthKey   string `mapstructure:"auth_key"`
	TradesKey string `mapstructure:"trades_key"`
}

// Journal holds the trade store settings.
type Journal struct {
	OwnerID string `mapstructure:"owner_id"`
}

// Auth holds the mock authentication settings.
type Auth struct {
	Delay time.Duration `mapstructure:"delay"`
}

// Client holds the configuration for the journal API client used by the CLI.
type Client struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}
	err = nil

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("database.dsn", "journal.db")

	v.SetDefault("storage.scope", "local")
	v.SetDefault("storage.ephemeral", false)
	v.SetDefault("storage.auth_key", "tradeJournalUser")
	v.SetDefault("storage.trades_key", "tradeJournalTrades")

	v.SetDefault("journal.owner_id", "user-123")

	v.SetDefault("auth.delay", "500ms")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "10s")
	v.SetDefault("client.rate_limit", 10)      // requests per second
	v.SetDefault("client.rate_limit_burst", 5) // burst size
	v.SetDefault("client.max_retries", 3)
}
