// Package llm wraps the Gemini API behind a small client interface so that
// callers pick a model tier instead of a model name.
package llm

// ModelTier represents the capability level of a model.
type ModelTier string

const (
	// TierLite is for short classification and scoring calls.
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning.
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form reasoning.
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider.
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps scoring output stable between calls.
const DefaultTemperature float32 = 0.1

// Config holds the model configuration.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	// MaxOutputTokens caps the response size; zero leaves the model default.
	MaxOutputTokens int32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

// GetModel returns the model name for a tier, falling back to standard and
// then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy with model set for tier. An empty model leaves
// the configuration unchanged.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	if model != "" {
		next.Models[tier] = model
	}
	return &next
}
