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
	App        AppConfig
	Server     ServerConfig
	Storage    StorageConfig
	Scheduler  SchedulerConfig
	CSGOEmpire CSGOEmpireConfig
	CSGO500    CSGO500Config
	CSGOFloat  CSGOFloatConfig
	Steam      SteamConfig
	Pricempire PricempireConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"trade-bots"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	OpsKey          string        `envconfig:"SERVER_OPS_KEY" default:""`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StorageConfig selects and configures the trade ledger backend.
type StorageConfig struct {
	Type string `envconfig:"STORAGE_TYPE" default:"sqlite"` // sqlite, mysql, redis, or memory

	SQLitePath string `envconfig:"STORAGE_SQLITE_PATH" default:"./data/trade-bots.db"`

	MySQLHost     string `envconfig:"STORAGE_MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"STORAGE_MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"STORAGE_MYSQL_NAME" default:"tradebots"`
	MySQLUser     string `envconfig:"STORAGE_MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"STORAGE_MYSQL_PASS" default:""`

	RedisHost     string `envconfig:"STORAGE_REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"STORAGE_REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"STORAGE_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"STORAGE_REDIS_DB" default:"0"`
}

// SchedulerConfig holds the redeposit sweep settings.
type SchedulerConfig struct {
	SweepInterval time.Duration `envconfig:"SCHEDULER_SWEEP_INTERVAL" default:"5m"`
	SweepTimeout  time.Duration `envconfig:"SCHEDULER_SWEEP_TIMEOUT" default:"2m"`
}

// CSGOEmpireConfig holds CSGOEmpire plugin credentials.
type CSGOEmpireConfig struct {
	Enabled   bool   `envconfig:"CSGOEMPIRE_ENABLED" default:"false"`
	APIKey    string `envconfig:"CSGOEMPIRE_API_KEY" default:""`
	BaseURL   string `envconfig:"CSGOEMPIRE_BASE_URL" default:"https://csgoempire.com"`
	SocketURL string `envconfig:"CSGOEMPIRE_SOCKET_URL" default:"wss://trade.csgoempire.com/trade"`
}

// CSGO500Config holds 500.casino plugin credentials.
type CSGO500Config struct {
	Enabled   bool   `envconfig:"CSGO500_ENABLED" default:"false"`
	APIKey    string `envconfig:"CSGO500_API_KEY" default:""`
	UserID    string `envconfig:"CSGO500_USER_ID" default:""`
	BaseURL   string `envconfig:"CSGO500_BASE_URL" default:"https://tradingapi.500.casino"`
	SocketURL string `envconfig:"CSGO500_SOCKET_URL" default:"wss://tradingapi.500.casino"`
}

// CSGOFloatConfig holds CSGOFloat plugin credentials.
type CSGOFloatConfig struct {
	Enabled bool   `envconfig:"CSGOFLOAT_ENABLED" default:"false"`
	APIKey  string `envconfig:"CSGOFLOAT_API_KEY" default:""`
	BaseURL string `envconfig:"CSGOFLOAT_BASE_URL" default:"https://csgofloat.com"`
}

// SteamConfig holds the Steam account integration settings.
type SteamConfig struct {
	Enabled   bool   `envconfig:"STEAM_ENABLED" default:"false"`
	APIKey    string `envconfig:"STEAM_API_KEY" default:""`
	SessionID string `envconfig:"STEAM_SESSION_ID" default:""`
}

// PricempireConfig holds the price source settings.
type PricempireConfig struct {
	Enabled bool   `envconfig:"PRICEMPIRE_ENABLED" default:"false"`
	APIKey  string `envconfig:"PRICEMPIRE_API_KEY" default:""`
	BaseURL string `envconfig:"PRICEMPIRE_BASE_URL" default:"https://api.pricempire.com"`
	Sources string `envconfig:"PRICEMPIRE_SOURCES" default:"buff"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MySQLDSN returns the MySQL data source name.
func (s *StorageConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MySQLUser, s.MySQLPassword, s.MySQLHost, s.MySQLPort, s.MySQLName)
}

// RedisAddress returns the Redis address in host:port format.
func (s *StorageConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
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
