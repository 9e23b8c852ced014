// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (KENSEI_* plus GEMINI_API_KEY / OPENWEATHER_API_KEY)
//  2. Config file (~/.kensei/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingGeminiKey indicates the Gemini API key is missing.
	ErrMissingGeminiKey = errors.New("missing Gemini API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max output tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidMaxToolTurns indicates the tool-turn bound is out of range.
	ErrInvalidMaxToolTurns = errors.New("invalid max tool turns")

	// ErrInvalidModelRPS indicates a negative model rate limit.
	ErrInvalidModelRPS = errors.New("invalid model requests per second")

	// ErrInvalidServerPort indicates the HTTP listen port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidHMACSecret indicates the auth HMAC secret is too short.
	ErrInvalidHMACSecret = errors.New("invalid HMAC secret")

	// ErrInvalidWeatherURL indicates the weather base URL is malformed.
	ErrInvalidWeatherURL = errors.New("invalid weather base URL")
)

const (
	// DefaultModelName is the Gemini model driving conversations.
	DefaultModelName = "gemini-1.5-flash-latest"

	// DefaultMaxToolTurns bounds the tool-calling loop per request.
	// A misbehaving model response can otherwise chain tool calls without
	// limit, burning external-API quota.
	DefaultMaxToolTurns = 5

	// MaxAllowedToolTurns is the absolute ceiling for the loop bound.
	MaxAllowedToolTurns = 25

	// DefaultModelRPS throttles upstream Gemini calls. Free-tier quotas
	// are per minute, so two calls a second leaves headroom for tool
	// chains without tripping the provider limiter.
	DefaultModelRPS = 2.0

	// DefaultWeatherBaseURL is the OpenWeatherMap current weather endpoint.
	DefaultWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

	// MinHMACSecretLength is the minimum auth secret length in bytes.
	MinHMACSecretLength = 32
)

// Config stores application configuration.
//
// SECURITY: API keys, the PostgreSQL password and the HMAC secret must never
// be logged. LogValue() on this type is intentionally not implemented; log
// individual non-sensitive fields instead.
type Config struct {
	// Gemini model configuration
	GeminiAPIKey string  `mapstructure:"gemini_api_key"`
	ModelName    string  `mapstructure:"model_name"`
	Temperature  float32 `mapstructure:"temperature"`
	TopK         float32 `mapstructure:"top_k"`
	TopP         float32 `mapstructure:"top_p"`
	MaxTokens    int     `mapstructure:"max_tokens"`

	// Conversation loop configuration
	MaxToolTurns   int           `mapstructure:"max_tool_turns"`
	ModelRPS       float64       `mapstructure:"model_rps"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`

	// Weather tool configuration
	WeatherAPIKey  string        `mapstructure:"weather_api_key"`
	WeatherBaseURL string        `mapstructure:"weather_base_url"`
	WeatherUnits   string        `mapstructure:"weather_units"`
	WeatherLang    string        `mapstructure:"weather_lang"`
	WeatherTimeout time.Duration `mapstructure:"weather_timeout"`

	// HTTP server configuration
	ServerHost  string   `mapstructure:"server_host"`
	ServerPort  int      `mapstructure:"server_port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst"`

	// Bearer-token auth (optional; anonymous requests are allowed)
	HMACSecret string `mapstructure:"hmac_secret"`

	// PostgreSQL transcript store (optional; empty host disables persistence)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Observability
	TracingEnabled  bool   `mapstructure:"tracing_enabled"`
	TracingEndpoint string `mapstructure:"tracing_endpoint"`
	ServiceName     string `mapstructure:"service_name"`
	Environment     string `mapstructure:"environment"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// configDir returns the kensei config directory (~/.kensei).
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".kensei"), nil
}

// Load reads configuration from defaults, config file and environment.
// A missing config file is not an error; defaults and env still apply.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	dir, err := configDir()
	if err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("KENSEI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Conventional env vars take priority over file values so the service
	// works with the same variables the upstream providers document.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		cfg.WeatherAPIKey = key
	}
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers default values for all configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("top_k", 40)
	v.SetDefault("top_p", 0.95)
	v.SetDefault("max_tokens", 300)

	v.SetDefault("max_tool_turns", DefaultMaxToolTurns)
	v.SetDefault("model_rps", DefaultModelRPS)
	v.SetDefault("request_timeout", "2m")
	v.SetDefault("turn_timeout", "30s")

	v.SetDefault("weather_base_url", DefaultWeatherBaseURL)
	v.SetDefault("weather_units", "metric")
	v.SetDefault("weather_lang", "pt_br")
	v.SetDefault("weather_timeout", "10s")

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 3000)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kensei")
	v.SetDefault("postgres_dbname", "kensei")
	v.SetDefault("postgres_sslmode", "prefer")

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("tracing_endpoint", "localhost:4318")
	v.SetDefault("service_name", "kensei")
	v.SetDefault("environment", "dev")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// validSSLModes are the SSL modes accepted by pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// ValidateServe checks all settings required to run the HTTP server.
// The weather API key is deliberately not required: when absent, the weather
// tool reports a configuration error result and the conversation continues.
func (c *Config) ValidateServe() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingGeminiKey)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (must be 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d (must be 1-65536)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.MaxToolTurns < 1 || c.MaxToolTurns > MaxAllowedToolTurns {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidMaxToolTurns, c.MaxToolTurns, MaxAllowedToolTurns)
	}
	if c.ModelRPS < 0 {
		return fmt.Errorf("%w: %.2f (0 disables throttling)", ErrInvalidModelRPS, c.ModelRPS)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidServerPort, c.ServerPort)
	}
	if !strings.HasPrefix(c.WeatherBaseURL, "http://") && !strings.HasPrefix(c.WeatherBaseURL, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidWeatherURL, c.WeatherBaseURL)
	}
	if c.HMACSecret != "" && len(c.HMACSecret) < MinHMACSecretLength {
		return fmt.Errorf("%w: need at least %d bytes", ErrInvalidHMACSecret, MinHMACSecretLength)
	}
	if c.TranscriptsEnabled() {
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
		if !validSSLModes[c.PostgresSSLMode] {
			return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
		}
	}
	return nil
}

// TranscriptsEnabled reports whether the PostgreSQL transcript store is
// configured. When false the service runs with in-memory sessions only.
func (c *Config) TranscriptsEnabled() bool {
	return c.PostgresHost != ""
}

// ServerAddr returns the host:port the HTTP server listens on.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
