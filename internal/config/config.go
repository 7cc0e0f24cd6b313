// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Search backends
const (
	SearchBackendTavily = "tavily"
	SearchBackendGoogle = "google"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from the environment or defaults,
// and CLI flags override both.
type Config struct {
	// Input / output
	Goal   string `json:"goal,omitempty"`   // Free-text learner goal
	Output string `json:"output,omitempty"` // Path for the roadmap JSON (stdout when empty)

	// Credentials
	APIKey             string `json:"api_key,omitempty"`               // Gemini API key
	TavilyAPIKey       string `json:"tavily_api_key,omitempty"`        // Tavily search key
	GoogleSearchAPIKey string `json:"google_search_api_key,omitempty"` // Google Custom Search key
	GoogleSearchCX     string `json:"google_search_cx,omitempty"`      // Google Custom Search engine id
	DatabaseURL        string `json:"database_url,omitempty"`          // PostgreSQL connection URL

	// Behavior
	SearchBackend string `json:"search_backend,omitempty" validate:"omitempty,oneof=tavily google"`
	Model         string `json:"model,omitempty"`                                          // Route every tier to one model
	MaxRetries    *int   `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=50"`  // Rate-limit retries per call; 0 disables retries
	LogMode       string `json:"log_mode,omitempty" validate:"omitempty,oneof=dev prod production"`
	Verbose       bool   `json:"verbose,omitempty"` // Print stage outputs

	// Server
	Addr string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// DefaultMaxRetries is used when no source sets max_retries.
const DefaultMaxRetries = 10

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		SearchBackend: SearchBackendTavily,
		MaxRetries:    intPtr(DefaultMaxRetries),
		LogMode:       "dev",
		Addr:          "localhost:8080",
	}
}

// FromEnv reads configuration from environment variables.
// GEMINI_API_KEY takes precedence over GOOGLE_API_KEY.
func FromEnv() Config {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return Config{
		APIKey:             apiKey,
		TavilyAPIKey:       os.Getenv("TAVILY_API_KEY"),
		GoogleSearchAPIKey: os.Getenv("GOOGLE_SEARCH_API_KEY"),
		GoogleSearchCX:     os.Getenv("GOOGLE_SEARCH_CX"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SearchBackend:      os.Getenv("SEARCH_BACKEND"),
		LogMode:            os.Getenv("LOG_MODE"),
		Addr:               os.Getenv("ADDR"),
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required credentials are checked by the command that needs them.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.SearchBackend == SearchBackendGoogle && (c.GoogleSearchAPIKey == "") != (c.GoogleSearchCX == "") {
		return fmt.Errorf("config error: 'google_search_api_key' and 'google_search_cx' must be set together")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Config file values are merged over the environment, then over Defaults().
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Goal == "" {
		result.Goal = defaults.Goal
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.TavilyAPIKey == "" {
		result.TavilyAPIKey = defaults.TavilyAPIKey
	}
	if result.GoogleSearchAPIKey == "" {
		result.GoogleSearchAPIKey = defaults.GoogleSearchAPIKey
	}
	if result.GoogleSearchCX == "" {
		result.GoogleSearchCX = defaults.GoogleSearchCX
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SearchBackend == "" {
		result.SearchBackend = defaults.SearchBackend
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.LogMode == "" {
		result.LogMode = defaults.LogMode
	}
	if result.Addr == "" {
		result.Addr = defaults.Addr
	}

	// Pointer fields: nil means unset, so an explicit 0 survives the merge
	if result.MaxRetries == nil {
		result.MaxRetries = defaults.MaxRetries
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Retries returns the configured retry count, or DefaultMaxRetries when unset.
func (c *Config) Retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

func intPtr(v int) *int {
	return &v
}

// Resolve layers the optional config file over the environment and defaults.
func Resolve(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = *loaded
	}

	env := FromEnv()
	envWithDefaults := env.MergeWithDefaults(Defaults())
	merged := cfg.MergeWithDefaults(envWithDefaults)
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
