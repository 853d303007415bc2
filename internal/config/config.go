package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Retry     RetryConfig     `mapstructure:"retry" validate:"required"`
	Breaker   BreakerConfig   `mapstructure:"breaker" validate:"required"`
	Authoring AuthoringConfig `mapstructure:"authoring"`
	Events    EventsConfig    `mapstructure:"events" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Store string `mapstructure:"store" validate:"required,oneof=postgres memory"`
	URL   string `mapstructure:"url" validate:"required_if=Store postgres"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer        string        `mapstructure:"issuer" validate:"required"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// TaskConfig sizes the generation worker pool.
type TaskConfig struct {
	WorkerCount            int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize              int           `mapstructure:"queue_size" validate:"required,gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age" validate:"gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gte=0"`
}

// RetryConfig bounds retries of document-authoring calls.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	BaseDelay      time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay       time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gt=0"`
	Jitter         bool          `mapstructure:"jitter"`
}

// BreakerConfig tunes the circuit breaker around the authoring API.
type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold" validate:"required,gt=0"`
	Window    time.Duration `mapstructure:"window" validate:"gt=0"`
	Cooldown  time.Duration `mapstructure:"cooldown" validate:"gt=0"`
}

// AuthoringConfig configures the Google Docs/Drive adapter. When
// CredentialsFile is empty the server runs against an in-memory authoring
// fake that reads template sources from SourceDir, which is only suitable
// for local development.
type AuthoringConfig struct {
	CredentialsFile string  `mapstructure:"credentials_file" validate:"omitempty,file"`
	OutputFolderID  string  `mapstructure:"output_folder_id"`
	RateLimit       float64 `mapstructure:"rate_limit" validate:"gt=0"`
	Burst           int     `mapstructure:"burst" validate:"gt=0"`
	SourceDir       string  `mapstructure:"source_dir" validate:"omitempty,dir"`
}

// EventsConfig configures progress fan-out.
type EventsConfig struct {
	NATSURL       string        `mapstructure:"nats_url" validate:"omitempty,url"`
	SubjectPrefix string        `mapstructure:"subject_prefix" validate:"required"`
	BufferSize    int           `mapstructure:"buffer_size" validate:"required,gt=0"`
	LatencyBudget time.Duration `mapstructure:"latency_budget" validate:"gt=0"`
}
