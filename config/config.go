package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FundSeed is one entry of the seed watchlist.
type FundSeed struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// IndexRef identifies a benchmark index.
type IndexRef struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// ScoringTarget holds per-category fund scoring benchmarks.
type ScoringTarget struct {
	ReturnTarget float64 `yaml:"return_target"`
	VolCap       float64 `yaml:"vol_cap"`
	DDCap        float64 `yaml:"dd_cap"`
}

// ProviderModels maps the three model roles of one LLM backend.
type ProviderModels struct {
	AnalysisModel string `yaml:"analysis_model"`
	DecisionModel string `yaml:"decision_model"`
	CriticalModel string `yaml:"critical_model"`
}

// LLM holds the gateway configuration.
type LLM struct {
	Provider               string         `yaml:"provider"`
	MaxTokens              int            `yaml:"max_tokens"`
	MaxRetries             int            `yaml:"max_retries"`
	RetryBackoffBase       float64        `yaml:"retry_backoff_base"`
	RetryBackoffMax        float64        `yaml:"retry_backoff_max"`
	EnableProviderFallback bool           `yaml:"enable_provider_fallback"`
	EnableThinking         bool           `yaml:"enable_thinking"`
	ReflectionPeriods      []int          `yaml:"reflection_periods"`
	DeepSeek               ProviderModels `yaml:"deepseek"`
	Qwen                   ProviderModels `yaml:"qwen"`
}

// Config is the full runtime configuration. Read-only after Load.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CurrentCash    float64 `yaml:"current_cash"`

	MaxSinglePositionPct float64 `yaml:"max_single_position_pct"`
	MaxTotalPositionPct  float64 `yaml:"max_total_position_pct"`
	MinCashReservePct    float64 `yaml:"min_cash_reserve_pct"`
	MaxDrawdownSoft      float64 `yaml:"max_drawdown_soft"`
	MaxDrawdownHard      float64 `yaml:"max_drawdown_hard"`
	SingleFundStopLoss   float64 `yaml:"single_fund_stop_loss"`
	KellyFraction        float64 `yaml:"kelly_fraction"`

	DBPath string `yaml:"db_path"`

	BenchmarkIndices []IndexRef               `yaml:"benchmark_indices"`
	ScoringTargets   map[string]ScoringTarget `yaml:"scoring_targets"`
	FundUniverse     map[string][]FundSeed    `yaml:"fund_universe"`

	LLM LLM `yaml:"llm"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InitialCapital:       10000,
		CurrentCash:          10000,
		MaxSinglePositionPct: 0.30,
		MaxTotalPositionPct:  0.90,
		MinCashReservePct:    0.10,
		MaxDrawdownSoft:      0.05,
		MaxDrawdownHard:      0.10,
		SingleFundStopLoss:   0.08,
		KellyFraction:        0.5,
		DBPath:               "db/fundpilot.db",
		BenchmarkIndices: []IndexRef{
			{Code: "000001", Name: "SSE Composite"},
			{Code: "399001", Name: "SZSE Component"},
			{Code: "399006", Name: "ChiNext"},
			{Code: "000300", Name: "CSI 300"},
			{Code: "000905", Name: "CSI 500"},
		},
		ScoringTargets: map[string]ScoringTarget{
			"equity": {ReturnTarget: 0.20, VolCap: 0.40, DDCap: 0.30},
			"bond":   {ReturnTarget: 0.05, VolCap: 0.08, DDCap: 0.05},
			"index":  {ReturnTarget: 0.15, VolCap: 0.35, DDCap: 0.25},
			"gold":   {ReturnTarget: 0.10, VolCap: 0.25, DDCap: 0.20},
			"qdii":   {ReturnTarget: 0.15, VolCap: 0.35, DDCap: 0.25},
		},
		FundUniverse: map[string][]FundSeed{
			"equity": {},
			"bond": {
				{Code: "217022", Name: "China Merchants Industrial Bond A"},
				{Code: "110017", Name: "E Fund Enhanced Return Bond A"},
				{Code: "003376", Name: "GF CDB 7-10y Policy Bond Index A"},
			},
			"index": {
				{Code: "110020", Name: "E Fund CSI 300 ETF Feeder A"},
				{Code: "000962", Name: "Tianhong CSI 500 ETF Feeder A"},
				{Code: "001593", Name: "Tianhong ChiNext ETF Feeder C"},
			},
			"gold": {
				{Code: "000307", Name: "E Fund Gold ETF Feeder A"},
				{Code: "002610", Name: "Bosera Gold ETF Feeder A"},
			},
			"qdii": {
				{Code: "270042", Name: "GF Nasdaq-100 ETF Feeder A"},
				{Code: "050025", Name: "Bosera S&P 500 ETF Feeder A"},
			},
		},
		LLM: LLM{
			Provider:               "deepseek",
			MaxTokens:              4096,
			MaxRetries:             3,
			RetryBackoffBase:       2,
			RetryBackoffMax:        8,
			EnableProviderFallback: true,
			EnableThinking:         true,
			ReflectionPeriods:      []int{7, 30},
			DeepSeek: ProviderModels{
				AnalysisModel: "deepseek-chat",
				DecisionModel: "deepseek-chat",
				CriticalModel: "deepseek-reasoner",
			},
			Qwen: ProviderModels{
				AnalysisModel: "qwen-turbo",
				DecisionModel: "qwen-plus",
				CriticalModel: "qwen-max",
			},
		},
	}
}

// Load reads the YAML config at path on top of the defaults and pulls
// API keys from a .env file in the working directory when present. A
// missing config file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Models returns the model tier table for the named provider.
func (l *LLM) Models(provider string) ProviderModels {
	if provider == "qwen" {
		return l.Qwen
	}
	return l.DeepSeek
}
