// Package llm provides the generation and embedding clients used by the roadmap
// pipeline, model tier configuration, and the rate-limit aware RetryingInvoker.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: query generation, corpus cleanup, post matching
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: profile extraction
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: roadmap planning
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps structured output stable across runs.
const DefaultTemperature float32 = 0.3

// DefaultEmbeddingModel matches the dimensionality of the match_documents index.
const DefaultEmbeddingModel = "text-embedding-004"

// Config holds the model configuration for the application
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string
	Temperature    float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    DefaultTemperature,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := c.clone()
	newConfig.Models[tier] = model
	return newConfig
}

// WithAllTiers returns a new Config that routes every tier to one model.
func (c *Config) WithAllTiers(model string) *Config {
	newConfig := c.clone()
	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		newConfig.Models[tier] = model
	}
	return newConfig
}

func (c *Config) clone() *Config {
	newConfig := &Config{
		Provider:       c.Provider,
		Models:         make(map[ModelTier]string, len(c.Models)),
		EmbeddingModel: c.EmbeddingModel,
		Temperature:    c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	return newConfig
}
