package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DOCGEN_SERVER_PORT.
const EnvPrefix = "DOCGEN"

// Options control where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, config.yaml is
	// searched in the working directory and is optional.
	ConfigFile string
	// EnvFiles are loaded into the process environment before reading it.
	// Missing files are ignored.
	EnvFiles []string
	// Overrides take precedence over every other source, e.g. command-line
	// flags keyed by "database.store".
	Overrides map[string]any
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWithOptions(Options{EnvFiles: []string{".env"}})
}

// LoadWithOptions is Load with explicit file locations.
func LoadWithOptions(opts Options) (*Config, error) {
	for _, f := range opts.EnvFiles {
		// godotenv never overrides variables already set in the environment.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)
	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of a fully populated Config.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.store", "postgres")

	v.SetDefault("auth.issuer", "docgen")
	v.SetDefault("auth.token_lifetime", time.Hour)

	v.SetDefault("task.worker_count", 10)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age", 30*time.Minute)
	v.SetDefault("task.stuck_task_check_interval", 5*time.Minute)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 10*time.Second)
	v.SetDefault("retry.attempt_timeout", 30*time.Second)
	v.SetDefault("retry.jitter", true)

	v.SetDefault("breaker.threshold", 5)
	v.SetDefault("breaker.window", time.Minute)
	v.SetDefault("breaker.cooldown", 30*time.Second)

	v.SetDefault("authoring.rate_limit", 5.0)
	v.SetDefault("authoring.burst", 10)

	v.SetDefault("events.subject_prefix", "docgen.progress")
	v.SetDefault("events.buffer_size", 16)
	v.SetDefault("events.latency_budget", 500*time.Millisecond)
}

// bindEnvs registers keys without defaults so AutomaticEnv picks them up
// during Unmarshal.
func bindEnvs(v *viper.Viper) {
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"server.cors_origins",
		"authoring.credentials_file",
		"authoring.output_folder_id",
		"authoring.source_dir",
		"events.nats_url",
	} {
		_ = v.BindEnv(key)
	}
}
