package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Store  StoreConfig
	Cache  CacheConfig
	Bot    BotConfig
}

// ServerConfig holds HTTP server settings for the admin API.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"vendhub-bot"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin dashboard login key
}

// StoreConfig selects and configures the persistent store.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // memory, sqlite, mysql, or mongodb

	// SQLite settings
	Path string `envconfig:"STORE_PATH" default:"./data/vendhub.db"`

	// MySQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"3306"`
	Name     string `envconfig:"STORE_DB_NAME" default:"vendhub"`
	User     string `envconfig:"STORE_DB_USER" default:"root"`
	Password string `envconfig:"STORE_DB_PASS" default:""`

	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"vendhub"`
}

// CacheConfig holds cart store and Redis settings.
type CacheConfig struct {
	Type    string        `envconfig:"CART_STORE_TYPE" default:"memory"` // memory or redis
	CartTTL time.Duration `envconfig:"CART_TTL" default:"30m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// BotConfig holds purchase engine settings.
type BotConfig struct {
	StartingBalance int64         `envconfig:"BOT_STARTING_BALANCE" default:"0"`
	ConfirmTimeout  time.Duration `envconfig:"BOT_CONFIRM_TIMEOUT" default:"60s"`
	BrowseTimeout   time.Duration `envconfig:"BOT_BROWSE_TIMEOUT" default:"5m"`

	GatewayURL   string `envconfig:"GATEWAY_URL" default:"http://localhost:9090"`
	GatewayToken string `envconfig:"GATEWAY_TOKEN" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
