package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Sweeper  SweeperConfig  `json:"sweeper"`
	Audit    AuditConfig    `json:"audit"`
	Events   EventsConfig   `json:"events"`
	Auth     AuthConfig     `json:"auth"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration. Driver is "postgres"
// or "sqlite"; Path is only used by sqlite.
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	Path           string        `json:"path"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// SweeperConfig schedules the deadline sweep.
type SweeperConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone"`
}

// AuditConfig schedules the ledger reconciliation. When ArchiveBucket is
// set every scheduled report is also written to S3.
type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	Schedule      string `json:"schedule"`
	ArchiveBucket string `json:"archive_bucket"`
	ArchivePrefix string `json:"archive_prefix"`
}

// AuthConfig
type AuthConfig struct {
	// TokenSecret enables HS256 bearer tokens next to the gateway headers.
	TokenSecret string `json:"token_secret"`
}

// EventsConfig controls post-commit event publishing.
type EventsConfig struct {
	SNSEnabled     bool          `json:"sns_enabled"`
	SNSTopicARN    string        `json:"sns_topic_arn"`
	AWSRegion      string        `json:"aws_region"`
	PublishTimeout time.Duration `json:"publish_timeout"`
	LogEvents      bool          `json:"log_events"`
	WebSocket      bool          `json:"websocket"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "sim_portal",
			SSLMode:        "disable",
			Path:           "sim_portal.db",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Schedule: "5 0 * * *",
			Timezone: "UTC",
		},
		Audit: AuditConfig{
			Enabled:  true,
			Schedule:      "30 * * * *",
			ArchivePrefix: "ledger-audits",
		},
		Events: EventsConfig{
			PublishTimeout: 5 * time.Second,
			LogEvents:      true,
			WebSocket:      true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional JSON file, an
// optional .env file and finally the process environment.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Events.SNSEnabled && c.Events.SNSTopicARN == "" {
		return fmt.Errorf("events.sns_topic_arn is required when SNS publishing is enabled")
	}
	if _, err := time.LoadLocation(c.Sweeper.Timezone); err != nil {
		return fmt.Errorf("invalid sweeper timezone %q: %w", c.Sweeper.Timezone, err)
	}
	return nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")

	setString(&config.Database.Driver, "DATABASE_DRIVER")
	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")
	setString(&config.Database.Path, "DATABASE_PATH")
	setBool(&config.Database.AutoMigrate, "DATABASE_AUTO_MIGRATE")

	setBool(&config.Sweeper.Enabled, "SWEEPER_ENABLED")
	setString(&config.Sweeper.Schedule, "SWEEPER_SCHEDULE")
	setString(&config.Sweeper.Timezone, "SWEEPER_TIMEZONE")
	setBool(&config.Audit.Enabled, "AUDIT_ENABLED")
	setString(&config.Audit.Schedule, "AUDIT_SCHEDULE")
	setString(&config.Audit.ArchiveBucket, "AUDIT_ARCHIVE_BUCKET")
	setString(&config.Audit.ArchivePrefix, "AUDIT_ARCHIVE_PREFIX")

	setString(&config.Auth.TokenSecret, "AUTH_TOKEN_SECRET")

	setBool(&config.Events.SNSEnabled, "EVENTS_SNS_ENABLED")
	setString(&config.Events.SNSTopicARN, "EVENTS_SNS_TOPIC_ARN")
	setString(&config.Events.AWSRegion, "AWS_REGION")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Logging.Development, "LOG_DEVELOPMENT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Location resolves the sweeper timezone. Validate has already checked it.
func (c *SweeperConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the process logger.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
