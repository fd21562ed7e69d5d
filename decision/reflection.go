package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fundpilot/config"
	"fundpilot/llm"
	"fundpilot/logger"
	"fundpilot/store"
)

// Reflector replays past decisions against realized outcomes and
// distills lessons into the knowledge base.
type Reflector struct {
	cfg     *config.Config
	store   *store.Store
	gateway *llm.Gateway
	now     func() time.Time
}

// NewReflector wires the reflection cycle.
func NewReflector(cfg *config.Config, s *store.Store, gateway *llm.Gateway) *Reflector {
	return &Reflector{cfg: cfg, store: s, gateway: gateway, now: time.Now}
}

// Cycle reflects on every decision whose 7d/30d period has elapsed and
// has no reflection yet. Returns the number of reflections written.
func (r *Reflector) Cycle(ctx context.Context) int {
	periods := r.cfg.LLM.ReflectionPeriods
	if len(periods) == 0 {
		periods = []int{7, 30}
	}

	total := 0
	for _, periodDays := range periods {
		period := fmt.Sprintf("%dd", periodDays)
		cutoff := r.now().AddDate(0, 0, -periodDays).Format("2006-01-02")
		pending, err := r.store.DecisionsDueForReflection(cutoff, period)
		if err != nil {
			logger.Warnf("pending reflections (%s): %v", period, err)
			continue
		}
		if len(pending) == 0 {
			continue
		}
		logger.Infof("%d decisions due for %s reflection", len(pending), period)

		for _, d := range pending {
			outcome := r.buildActualOutcome(d, periodDays)
			result, tokens, err := r.reflect(ctx, d, outcome, period)
			if err != nil {
				logger.Warnf("reflection on decision %d failed: %v", d.ID, err)
				continue
			}
			lessonsJSON, _ := json.Marshal(result.Lessons)
			cognitiveJSON, _ := json.Marshal(result.StrategySuggestions)
			reflectionID, err := r.store.SaveReflection(store.Reflection{
				ReflectionDate:  r.now().Format("2006-01-02"),
				DecisionID:      d.ID,
				Period:          period,
				OriginalSignal:  truncateText(d.QuantSignals, 2000),
				ActualOutcome:   outcome,
				WasCorrect:      result.WasCorrect,
				ReflectionText:  result.AccuracyAnalysis,
				LessonsJSON:     string(lessonsJSON),
				CognitiveUpdate: string(cognitiveJSON),
			})
			if err != nil {
				logger.Errorf("save reflection for decision %d: %v", d.ID, err)
				continue
			}

			for _, lesson := range result.Lessons {
				if err := r.store.AddKnowledge("strategy_lesson", lesson, reflectionID); err != nil {
					logger.Warnf("add lesson: %v", err)
				}
			}
			for _, suggestion := range result.StrategySuggestions {
				if err := r.store.AddKnowledge("risk_insight", suggestion, reflectionID); err != nil {
					logger.Warnf("add insight: %v", err)
				}
			}
			total++
			logger.Debugf("reflection %d done (%d tokens)", reflectionID, tokens)
		}
	}
	return total
}

// buildActualOutcome renders the realized result of every recommended
// fund over the period.
func (r *Reflector) buildActualOutcome(d store.AgentDecision, periodDays int) string {
	decisionDate, err := time.Parse("2006-01-02", d.DecisionDate)
	if err != nil {
		return "decision date unparsable"
	}
	targetDate := decisionDate.AddDate(0, 0, periodDays).Format("2006-01-02")

	var recommendations []llm.FundRecommendation
	_ = json.Unmarshal([]byte(d.LLMDecision), &recommendations)

	var lines []string
	for _, rec := range recommendations {
		if rec.FundCode == "" || rec.FundCode == "-" {
			continue
		}
		navBefore, ok1 := r.store.NavOnOrAfter(rec.FundCode, d.DecisionDate)
		navAfter, ok2 := r.store.NavOnOrAfter(rec.FundCode, targetDate)
		if !ok1 || !ok2 || navBefore <= 0 {
			continue
		}
		changePct := (navAfter - navBefore) / navBefore * 100
		correct := (rec.Action == "buy" || rec.Action == "watch") && changePct > 0 ||
			rec.Action == "sell" && changePct < 0
		label := "wrong"
		if correct {
			label = "right"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): advised %s, %dd move %+.2f%% (NAV %.4f -> %.4f) — %s",
			r.store.FundName(rec.FundCode), rec.FundCode, rec.Action, periodDays,
			changePct, navBefore, navAfter, label))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("not enough NAV data to evaluate the %d days after %s", periodDays, d.DecisionDate)
	}
	return strings.Join(lines, "\n")
}

func (r *Reflector) reflect(ctx context.Context, d store.AgentDecision,
	outcome, period string) (*llm.ReflectionResult, int, error) {

	prompt := fmt.Sprintf(`## Original decision (%s)
market context: %s
confidence: %.2f
decision: %s

## Realized outcome after %s
%s

Evaluate the decision and answer in the required JSON shape.`,
		d.DecisionDate, truncateText(d.MarketContext, 800), d.Confidence,
		truncateText(d.LLMDecision, 1500), period, outcome)

	text, tokens, err := r.gateway.Call(ctx, reflectionSystem, prompt, llm.RoleDecision, 0)
	if err != nil {
		return nil, 0, err
	}
	var result llm.ReflectionResult
	if err := llm.DecodeJSON(text, &result); err != nil {
		return nil, tokens, err
	}
	return &result, tokens, nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
