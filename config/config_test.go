package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 0.30, cfg.MaxSinglePositionPct, 1e-9)
	assert.InDelta(t, 0.90, cfg.MaxTotalPositionPct, 1e-9)
	assert.InDelta(t, 0.10, cfg.MinCashReservePct, 1e-9)
	assert.InDelta(t, 0.5, cfg.KellyFraction, 1e-9)
	assert.Equal(t, []int{7, 30}, cfg.LLM.ReflectionPeriods)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.True(t, cfg.LLM.EnableProviderFallback)
	assert.NotEmpty(t, cfg.ScoringTargets["bond"].ReturnTarget)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.InDelta(t, Default().InitialCapital, cfg.InitialCapital, 1e-9)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
initial_capital: 50000
max_single_position_pct: 0.25
llm:
  provider: qwen
  max_retries: 5
  qwen:
    critical_model: qwen-max-latest
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 50000, cfg.InitialCapital, 1e-9)
	assert.InDelta(t, 0.25, cfg.MaxSinglePositionPct, 1e-9)
	assert.Equal(t, "qwen", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, "qwen-max-latest", cfg.LLM.Qwen.CriticalModel)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.10, cfg.MinCashReservePct, 1e-9)
}

func TestModelsLookup(t *testing.T) {
	l := Default().LLM
	assert.Equal(t, "deepseek-reasoner", l.Models("deepseek").CriticalModel)
	assert.Equal(t, "qwen-max", l.Models("qwen").CriticalModel)
	assert.Equal(t, l.DeepSeek, l.Models("unknown"), "unknown provider defaults to deepseek")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
