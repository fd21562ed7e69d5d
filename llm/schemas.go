package llm

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MarketAssessment is the analysis-tier structured output.
type MarketAssessment struct {
	RegimeAgreement  bool     `json:"regime_agreement"`
	RegimeOverride   string   `json:"regime_override,omitempty"`
	KeyRisks         []string `json:"key_risks"`
	KeyOpportunities []string `json:"key_opportunities"`
	Sentiment        string   `json:"sentiment" validate:"omitempty,oneof=bullish bearish cautious neutral"`
	Narrative        string   `json:"narrative"`
}

// Normalize applies defaults after decoding.
func (m *MarketAssessment) Normalize() {
	if err := validate.Struct(m); err != nil {
		m.Sentiment = "neutral"
	}
	if m.Sentiment == "" {
		m.Sentiment = "neutral"
	}
}

// FundRecommendation is one advisory line of the decision output.
type FundRecommendation struct {
	FundCode        string   `json:"fund_code" validate:"required"`
	Action          string   `json:"action" validate:"required,oneof=buy sell hold watch"`
	Confidence      float64  `json:"confidence" validate:"gte=0,lte=1"`
	Amount          float64  `json:"amount" validate:"gte=0"`
	Reasoning       string   `json:"reasoning"`
	KeyFactors      []string `json:"key_factors,omitempty"`
	Risks           []string `json:"risks,omitempty"`
	StopLossTrigger string   `json:"stop_loss_trigger,omitempty"`
}

// Validate checks one recommendation against the schema.
func (r *FundRecommendation) Validate() error {
	return validate.Struct(r)
}

// DecisionThinking is the three-step reflective reasoning block.
type DecisionThinking struct {
	Observation     string `json:"observation,omitempty"`
	Challenge       string `json:"challenge,omitempty"`
	FinalConclusion string `json:"final_conclusion,omitempty"`
}

// DecisionOutput is the critical-tier structured output.
type DecisionOutput struct {
	Thinking        DecisionThinking     `json:"thinking_process"`
	Recommendations []FundRecommendation `json:"recommendations"`
	PortfolioAdvice string               `json:"portfolio_advice,omitempty"`
}

// ReflectionResult is the reflection-tier structured output.
type ReflectionResult struct {
	WasCorrect          bool     `json:"was_correct"`
	AccuracyAnalysis    string   `json:"accuracy_analysis"`
	MissedFactors       []string `json:"missed_factors,omitempty"`
	OverweightedFactors []string `json:"overweighted_factors,omitempty"`
	Lessons             []string `json:"lessons"`
	StrategySuggestions []string `json:"strategy_suggestions,omitempty"`
}
