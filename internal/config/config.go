package config

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the backend: "postgres" or "sqlite".
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a postgres connection string or a sqlite file path / DSN.
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"required,gte=4,lte=31"`
}

// TaskConfig contains task execution settings.
type TaskConfig struct {
	// DefaultRuntimeSeconds is how long an execution takes when a request
	// moves a task to Running without a timer.
	DefaultRuntimeSeconds int `mapstructure:"default_runtime_seconds" validate:"gte=0"`
	WorkerCount           int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize             int `mapstructure:"queue_size" validate:"required,gt=0"`
	StuckJobAgeMinutes    int `mapstructure:"stuck_job_age_minutes" validate:"required,gt=0"`
	SweepIntervalSeconds  int `mapstructure:"sweep_interval_seconds" validate:"required,gt=0"`
}
