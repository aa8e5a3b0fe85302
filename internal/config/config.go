package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
//
// There is a single operator account. Its password is stored only as a bcrypt
// hash, produced with cmd/hash-generator.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	OperatorUsername            string `mapstructure:"operator_username"              validate:"required"`
	OperatorPasswordHash        string `mapstructure:"operator_password_hash"         validate:"required,startswith=$2"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0,lt=44640"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
}

// Supported values for LLMConfig.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// Provider selects the text-generation backend once at start-up.
	Provider     string `mapstructure:"provider"       validate:"required,oneof=gemini openai"`
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey string `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// BaseURL overrides the provider endpoint (proxies, compatible servers, tests).
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	MaxAttempts           int     `mapstructure:"max_attempts"            validate:"required,gte=1,lte=10"`
	BaseDelaySeconds      float64 `mapstructure:"base_delay_seconds"      validate:"gte=0"`
	AttemptTimeoutSeconds float64 `mapstructure:"attempt_timeout_seconds" validate:"gte=0"`

	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count"           validate:"gte=1"`
	QueueSize           int `mapstructure:"queue_size"             validate:"gte=1"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"gte=1"`
}

// ScraperConfig contains settings for fetching source material.
type ScraperConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"  validate:"gte=1"`
	MaxBytes       int64  `mapstructure:"max_bytes"        validate:"gte=1024"`
	UserAgent      string `mapstructure:"user_agent"       validate:"required"`
	MaxSourceChars int    `mapstructure:"max_source_chars" validate:"gte=100"`
}
