// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml)
//  3. Default values
//
// Security: sensitive values (the Gemini API key, the PostgreSQL password)
// are masked in MarshalJSON and String so they never reach logs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Environment names recognized in Config.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Default values for the chat pipeline. MaxMessageLength bounds stored
// message text, MaxHistoryMessages bounds the LLM context window, and
// LLMTimeoutMS bounds the provider call.
const (
	DefaultMaxMessageLength   = 10000
	DefaultMaxHistoryMessages = 10
	DefaultLLMTimeoutMS       = 30000
	DefaultModelName          = "gemini-2.0-flash"
	DefaultPort               = 3000
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxMessageLength indicates the stored-message bound is not positive.
	ErrInvalidMaxMessageLength = errors.New("invalid max message length")

	// ErrInvalidMaxHistoryMessages indicates the history window is not positive.
	ErrInvalidMaxHistoryMessages = errors.New("invalid max history messages")

	// ErrInvalidLLMTimeout indicates the LLM call timeout is not positive.
	ErrInvalidLLMTimeout = errors.New("invalid llm timeout")

	// ErrInvalidPostgresConfig indicates incomplete PostgreSQL settings.
	ErrInvalidPostgresConfig = errors.New("invalid PostgreSQL configuration")
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	Environment string `mapstructure:"environment" json:"environment"` // "development" or "production"
	Port        int    `mapstructure:"port" json:"port"`

	// LLM provider configuration
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName    string `mapstructure:"model_name" json:"model_name"`
	LLMTimeoutMS int    `mapstructure:"llm_timeout_ms" json:"llm_timeout_ms"`

	// Conversation configuration
	MaxMessageLength   int `mapstructure:"max_message_length" json:"max_message_length"`
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("port", DefaultPort)

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("llm_timeout_ms", DefaultLLMTimeoutMS)

	v.SetDefault("max_message_length", DefaultMaxMessageLength)
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "supportchat")
	v.SetDefault("postgres_password", "supportchat_dev_password")
	v.SetDefault("postgres_db_name", "supportchat")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("environment", "APP_ENV")
	mustBind("port", "PORT")
	mustBind("model_name", "CHAT_MODEL_NAME")
}

// Validate checks the configuration and fails fast on invalid values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxMessageLength, c.MaxMessageLength)
	}
	if c.MaxHistoryMessages <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxHistoryMessages, c.MaxHistoryMessages)
	}
	if c.LLMTimeoutMS <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLLMTimeout, c.LLMTimeoutMS)
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
		return ErrInvalidPostgresConfig
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidPostgresConfig, c.PostgresPort)
	}
	return nil
}

// ValidateServe checks requirements that only apply when serving traffic.
// The Gemini API key is not needed for the migrate subcommand.
func (c *Config) ValidateServe() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
// Outside production, error responses include failure details.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LLMTimeout returns the LLM call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMS) * time.Millisecond
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters or
// fewer are fully masked to prevent substring matching; longer secrets keep
// the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
