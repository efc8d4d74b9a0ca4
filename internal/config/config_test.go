package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".KS", cfg.Markets.Domestic.SymbolSuffix)
	assert.Equal(t, "KRW", cfg.Markets.Domestic.Currency)
	assert.Equal(t, "USD", cfg.Markets.Foreign.Currency)
	assert.Equal(t, 14, cfg.Analysis.Technical.RSIPeriod)
	assert.Equal(t, 252, cfg.Analysis.Risk.TradingDays)
	assert.Equal(t, 0.6, cfg.Analysis.Risk.VaRWeight)
	assert.Equal(t, 0.5, cfg.Analysis.Signal.StrongBuy)
	assert.True(t, cfg.Journal.Enabled)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("analysis:\n  risk:\n    trading_days: 250\nreasoning:\n  max_tokens: 1024\n")
	require.NoError(t, os.WriteFile(path, partial, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Analysis.Risk.TradingDays)
	assert.Equal(t, 1024, cfg.Reasoning.MaxTokens)
	// untouched sections keep their defaults
	assert.Equal(t, 14, cfg.Analysis.Technical.RSIPeriod)
	assert.Equal(t, ".KS", cfg.Markets.Domestic.SymbolSuffix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCredentialsValidate(t *testing.T) {
	t.Run("required key present", func(t *testing.T) {
		c := Credentials{AnthropicKey: "sk-test"}
		assert.NoError(t, c.Validate())
	})

	t.Run("required key missing", func(t *testing.T) {
		c := Credentials{NewsAPIKey: "x"}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	})

	t.Run("optional keys reported", func(t *testing.T) {
		c := Credentials{AnthropicKey: "sk-test"}
		assert.ElementsMatch(t, []string{"NEWS_API_KEY", "SERPER_API_KEY"}, c.Optional())
	})
}
