package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ExecutorConfig controls the task executor.
type ExecutorConfig struct {
	// WorkerCount values below 1 are accepted and raised to 1 by the executor
	WorkerCount    int     `mapstructure:"worker_count" validate:"lte=256"`
	QueueSize      int     `mapstructure:"queue_size" validate:"gt=0"`
	ReAddPerSecond float64 `mapstructure:"readd_per_second" validate:"gte=0"` // 0 means unlimited
	ReAddBurst     int     `mapstructure:"readd_burst" validate:"gte=1"`
	FailFast       bool    `mapstructure:"fail_fast"`
}

// QueueConfig selects the transfer queue and where it is persisted.
type QueueConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	MaxSize     int    `mapstructure:"max_size" validate:"gte=0"`
	Backend     string `mapstructure:"backend" validate:"required,oneof=memory file sqlite postgres"`
	FilePath    string `mapstructure:"file_path" validate:"required_if=Backend file"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres,omitempty,url"`
}

// AuthConfig contains all authentication and authorization settings.
// An empty JWTSecret disables authentication on the API.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c AuthConfig) AuthEnabled() bool {
	return c.JWTSecret != ""
}
