package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"       validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database"     validate:"required"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Auth         AuthConfig         `mapstructure:"auth"         validate:"required"`
	Verification VerificationConfig `mapstructure:"verification"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects the storage backend.
// The memory driver keeps everything in process and is reset on restart.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres"`
	URL    string `mapstructure:"url"    validate:"required_if=Driver postgres,omitempty,url"`
	// MaxOpenConns caps the pgx connection pool.
	MaxOpenConns int `mapstructure:"max_open_conns" validate:"gte=0"`
}

// RedisConfig enables the Redis verification-code store when URL is set.
type RedisConfig struct {
	URL      string `mapstructure:"url"       validate:"omitempty,url"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=0"`
}

// KafkaConfig enables publishing lifecycle events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"dive,hostname_port"`
	Topic   string   `mapstructure:"topic"   validate:"required_with=Brokers"`
	// QueueSize bounds events waiting for delivery; overflow is dropped and counted.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`
	Workers   int `mapstructure:"workers"    validate:"gte=0"`
}

// AuthConfig contains password hashing and token settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"            validate:"required,gte=4,lte=31"`
	// StrongPasswords switches registration to the strong password policy.
	StrongPasswords bool `mapstructure:"strong_passwords"`
}

// VerificationConfig controls email verification codes.
type VerificationConfig struct {
	// CodeTTL is how long an issued code stays redeemable. Zero means codes
	// never expire and are only invalidated by redemption or re-issue.
	CodeTTL time.Duration `mapstructure:"code_ttl" validate:"gte=0"`
	// RevealCodesInLogs makes the log-backed sender print codes. Development only.
	RevealCodesInLogs bool `mapstructure:"reveal_codes_in_logs"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"omitempty,url"`
	ServiceName  string `mapstructure:"service_name"  validate:"required"`
}
