package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// EREUNA_SERVER_PORT for server.port.
const EnvPrefix = "EREUNA"

// defaults lists every configuration key with its default value. Keys with a
// nil default have no default but are still bound to the environment.
var defaults = map[string]any{
	"server.port":      8080,
	"server.log_level": "info",

	"database.url": nil,

	"auth.jwt_secret":                     nil,
	"auth.operator_username":              "operator",
	"auth.operator_password_hash":         nil,
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,

	"llm.provider":                ProviderGemini,
	"llm.gemini_api_key":          nil,
	"llm.openai_api_key":          nil,
	"llm.model_name":              "gemini-2.5-flash",
	"llm.base_url":                nil,
	"llm.max_attempts":            3,
	"llm.base_delay_seconds":      1.0,
	"llm.attempt_timeout_seconds": 60.0,
	"llm.system_prompt":           "You are an expert academic researcher. Write clear, well-structured, evidence-based prose in Markdown.",
	"llm.temperature":             0.7,

	"task.worker_count":           2,
	"task.queue_size":             100,
	"task.stuck_task_age_minutes": 30,

	"scraper.timeout_seconds":  30,
	"scraper.max_bytes":        10 << 20,
	"scraper.user_agent":       "Mozilla/5.0 (compatible; EreunaBot/1.0)",
	"scraper.max_source_chars": 8000,
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the file. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the named config file instead of
// searching for config.yaml. A missing file is an error only when a path is
// given.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings so Unmarshal sees keys that have no default or file value
	for key, value := range defaults {
		if value != nil {
			v.SetDefault(key, value)
		}
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
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

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
