package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, DefaultTemperature, config.Temperature)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{TierLite: "fallback-model"},
	}

	assert.Equal(t, "fallback-model", config.GetModel(TierAdvanced))
	assert.Equal(t, "", (&Config{}).GetModel(TierLite))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	next := config.WithModel(TierLite, "gemini-2.0-flash")

	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite), "original unchanged")
	assert.Equal(t, "gemini-2.0-flash", next.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-pro", next.GetModel(TierAdvanced))
	assert.Equal(t, config.Temperature, next.Temperature)

	same := config.WithModel(TierLite, "")
	assert.Equal(t, "gemini-2.5-flash-lite", same.GetModel(TierLite))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "mystery"}, "key")
	require.Error(t, err)
}
