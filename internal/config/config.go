package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	DynamoDB   DynamoDBConfig   `mapstructure:"dynamodb"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tokens     TokensConfig     `mapstructure:"tokens"`
	Email      EmailConfig      `mapstructure:"email"`
	Parameters ParametersConfig `mapstructure:"parameters"`
	AuthEvents AuthEventsConfig `mapstructure:"auth_events"`
}

// ServerConfig holds the health and metrics server configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// StoreConfig selects and tunes the keyed collection store backend
type StoreConfig struct {
	// Driver is one of memory, dynamodb, redis, postgres, sqlite.
	Driver           string `mapstructure:"driver"`
	MaxTransactItems int    `mapstructure:"max_transact_items"`
}

// DynamoDBConfig holds DynamoDB configuration
type DynamoDBConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Table    string `mapstructure:"table"`
}

// DatabaseConfig holds relational database configuration
type DatabaseConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	Prefix     string `mapstructure:"prefix"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// TokensConfig holds invitation and password reset token configuration
type TokensConfig struct {
	SigningSecret         string `mapstructure:"signing_secret"`
	VerificationKey       string `mapstructure:"verification_key"`
	Issuer                string `mapstructure:"issuer"`
	InvitationTTLHours    int    `mapstructure:"invitation_ttl_hours"`
	PasswordResetTTLHours int    `mapstructure:"password_reset_ttl_hours"`
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	BaseURL  string `mapstructure:"base_url"`
}

// ParametersConfig holds the secret parameter store configuration
type ParametersConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

// AuthEventsConfig holds authentication event archive configuration
type AuthEventsConfig struct {
	ArchiveBucket string `mapstructure:"archive_bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	PathStyle     bool   `mapstructure:"path_style"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverDynamoDB = "dynamodb"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Validate reports configuration that cannot produce a working stack.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverDynamoDB, DriverRedis, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.MaxTransactItems < 1 {
		return errors.New("store.max_transact_items must be positive")
	}
	if c.Tokens.SigningSecret == "" || c.Tokens.VerificationKey == "" {
		return errors.New("tokens.signing_secret and tokens.verification_key are required")
	}
	if c.Tokens.SigningSecret == c.Tokens.VerificationKey {
		return errors.New("tokens.signing_secret and tokens.verification_key must differ")
	}
	if c.Tokens.InvitationTTLHours < 1 || c.Tokens.PasswordResetTTLHours < 1 {
		return errors.New("token lifetimes must be at least one hour")
	}
	return nil
}

// LoadConfig loads configuration from environment and config files
func LoadConfig() (*Config, error) {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.max_transact_items", 25)
	viper.SetDefault("dynamodb.region", "us-east-1")
	viper.SetDefault("dynamodb.table", "lab-management")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.sqlite_path", "lab-management.db")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "lab")
	viper.SetDefault("redis.max_retries", 5)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.max_size_mb", 100)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age_days", 28)
	viper.SetDefault("tokens.issuer", "lab-management-platform")
	viper.SetDefault("tokens.invitation_ttl_hours", 24*7)
	viper.SetDefault("tokens.password_reset_ttl_hours", 1)
	viper.SetDefault("email.enabled", false)
	viper.SetDefault("email.port", 587)
	viper.SetDefault("email.from", "no-reply@localhost")
	viper.SetDefault("email.base_url", "http://localhost:3000")
	viper.SetDefault("parameters.region", "us-east-1")
	viper.SetDefault("parameters.prefix", "/lab-management")
	viper.SetDefault("auth_events.region", "us-east-1")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
