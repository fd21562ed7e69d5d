package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"fundpilot/config"
	"fundpilot/learn"
	"fundpilot/llm"
	"fundpilot/logger"
	"fundpilot/market"
	"fundpilot/risk"
	"fundpilot/store"
	"fundpilot/strategy"
)

// promptBudgetTokens is the decision-prompt token budget.
const promptBudgetTokens = 8000

// Orchestrator runs the end-to-end advisory pipeline. Every step
// degrades on failure; the only fatal condition is the absence of any
// fund NAV history.
type Orchestrator struct {
	cfg     *config.Config
	store   *store.Store
	engine  *Engine
	gateway *llm.Gateway
	loop    *learn.Loop
	now     func() time.Time
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(cfg *config.Config, s *store.Store, engine *Engine,
	gateway *llm.Gateway, loop *learn.Loop) *Orchestrator {
	return &Orchestrator{cfg: cfg, store: s, engine: engine, gateway: gateway,
		loop: loop, now: time.Now}
}

// Advisory is the final pipeline output. The report layer renders it;
// degraded components surface as explicit notices, never silently.
type Advisory struct {
	Date            string
	Regime          string
	Assessment      *llm.MarketAssessment
	Recommendations []llm.FundRecommendation
	Signals         []strategy.Signal
	DataQuality     map[string]string
	Notices         []string
	Drawdown        risk.DrawdownResponse
	DecisionID      int64
	ModelUsed       string
	TokensUsed      int
	QuantOnly       bool
}

type accountState struct {
	totalValue float64
	cash       float64
	invested   float64
	drawdown   float64
	holdings   []store.Holding
}

func (o *Orchestrator) loadAccount() accountState {
	state := accountState{cash: o.cfg.CurrentCash}
	if cash, ok := o.store.LatestCash(); ok {
		state.cash = cash
	}
	holdings, err := o.store.Holdings()
	if err == nil {
		state.holdings = holdings
		for _, h := range holdings {
			state.invested += h.Value()
		}
	}
	state.totalValue = state.cash + state.invested
	if state.totalValue == 0 {
		state.totalValue = o.cfg.InitialCapital
	}

	values, err := o.store.SnapshotValues(250)
	if err == nil && len(values) > 0 {
		dd := risk.PortfolioDrawdown(values, o.cfg.MaxDrawdownSoft, o.cfg.MaxDrawdownHard)
		state.drawdown = dd.CurrentDrawdown
	}
	return state
}

// Run executes the full pipeline once.
func (o *Orchestrator) Run(ctx context.Context) (*Advisory, error) {
	today := o.now().Format("2006-01-02")
	advisory := &Advisory{Date: today, DataQuality: map[string]string{}}

	// 1. Composite signals (includes regimes + enrichment fan-out).
	composed, err := o.engine.Compose(ctx)
	if err != nil {
		// Absence of NAV history is the one condition that aborts the
		// analytical pipeline: emit a synthetic HOLD.
		logger.Errorf("compose failed: %v", err)
		advisory.Regime = market.RegimeRanging
		advisory.Notices = append(advisory.Notices, "no fund data — synthetic HOLD advisory")
		advisory.Recommendations = []llm.FundRecommendation{{
			FundCode:  "-",
			Action:    "hold",
			Reasoning: "no fund NAV history available; nothing to act on",
		}}
		return advisory, nil
	}
	advisory.Regime = composed.GlobalRegime
	advisory.Signals = composed.Signals
	advisory.DataQuality = composed.DataQuality
	advisory.Drawdown = risk.ProgressiveDrawdown(0)

	// 2-3. Account state.
	account := o.loadAccount()
	advisory.Drawdown = risk.ProgressiveDrawdown(account.drawdown)

	// 4. Market assessment on the analysis tier.
	indices := o.indexSnapshots()
	assessment, analysisTokens := o.analyzeMarket(ctx, composed, indices)
	advisory.Assessment = assessment
	advisory.TokensUsed += analysisTokens
	if assessment == nil {
		advisory.Notices = append(advisory.Notices, "market analysis unavailable")
	}

	// 5. Knowledge retrieval for the equity regime.
	lessons := o.store.SearchKnowledge(composed.GlobalRegime, 10)

	// 6-7. Decision on the critical tier, degrading to pure-quant.
	decisionOut, modelUsed, decisionTokens, quantOnly := o.decide(ctx, composed, account, assessment, lessons)
	advisory.TokensUsed += decisionTokens
	advisory.ModelUsed = modelUsed
	advisory.QuantOnly = quantOnly
	if quantOnly {
		advisory.Notices = append(advisory.Notices, "LLM unavailable — quantitative-only")
	}

	recommendations := o.finalizeRecommendations(decisionOut, composed, account)
	advisory.Recommendations = recommendations

	// 8. Persist decision + pending trades. A write failure kills only
	// this unit of work.
	decisionID, err := o.persistDecision(composed, assessment, decisionOut, modelUsed, advisory.TokensUsed, recommendations)
	if err != nil {
		logger.Errorf("persist decision: %v", err)
		advisory.Notices = append(advisory.Notices, "decision not persisted")
	} else {
		advisory.DecisionID = decisionID
	}
	o.persistPendingTrades(recommendations, today)

	// 9. Register composite signals for future validation.
	recorded := o.loop.RecordComposite(composed.Signals, composed.GlobalRegime)
	if recorded > 0 {
		logger.Infof("recorded %d signals for validation", recorded)
	}

	return advisory, nil
}

func (o *Orchestrator) indexSnapshots() []store.IndexSnapshot {
	codes := map[string]string{}
	for _, idx := range o.cfg.BenchmarkIndices {
		codes[idx.Code] = idx.Name
	}
	return o.store.LatestIndexSnapshot(codes)
}

// analyzeMarket runs the analysis-tier model; nil on failure.
func (o *Orchestrator) analyzeMarket(ctx context.Context, composed *ComposeResult,
	indices []store.IndexSnapshot) (*llm.MarketAssessment, int) {

	var regimeDetail *market.RegimeResult
	if closes, err := o.store.IndexCloses("000300"); err == nil {
		regimeDetail = market.DetectRegime(closes, 0)
	}
	prompt := buildAnalystPrompt(composed.GlobalRegime, regimeDetail, indices, composed.MarketCtx)

	text, tokens, err := o.gateway.Call(ctx, marketAnalystSystem, prompt, llm.RoleAnalysis, 1500)
	if err != nil {
		logger.Warnf("market analysis LLM call failed: %v", err)
		return nil, 0
	}
	var assessment llm.MarketAssessment
	if err := llm.DecodeJSON(text, &assessment); err != nil {
		logger.Warnf("market analysis response malformed: %v", err)
		return nil, tokens
	}
	assessment.Normalize()
	return &assessment, tokens
}

// decide builds the budgeted prompt and runs the critical-tier model.
// AUTH/BILLING or full exhaustion degrades to the quant-only path.
func (o *Orchestrator) decide(ctx context.Context, composed *ComposeResult,
	account accountState, assessment *llm.MarketAssessment,
	lessons []string) (*llm.DecisionOutput, string, int, bool) {

	marketSummary := "no market assessment available"
	if assessment != nil {
		marketSummary = assessment.Narrative
	}

	qualityNote := ""
	for k, v := range composed.DataQuality {
		if qualityNote != "" {
			qualityNote += ", "
		}
		qualityNote += k + ": " + v
	}

	accountText := fmt.Sprintf(
		"- total assets: %.2f RMB\n- cash: %.2f RMB\n- invested: %.2f RMB\n- current drawdown: %.2f%%",
		account.totalValue, account.cash, account.invested, account.drawdown*100)

	sections := []PromptSection{
		{Name: "market", Priority: 1, Content: "## Market summary\n" + marketSummary},
		{Name: "signals", Priority: 1, Content: "## Quantitative signals\n" +
			signalLines(composed.Signals, o.store.FundName) + "\ndata quality: " + qualityNote},
		{Name: "account", Priority: 1, Content: "## Account\n" + accountText},
		{Name: "holdings", Priority: 2, Content: "## Holdings\n" + holdingLines(account.holdings, o.store.FundName)},
	}
	enrichment := ""
	if composed.MarketCtx != nil {
		if composed.MarketCtx.Valuation != nil {
			enrichment += composed.MarketCtx.Valuation.Narrative + "\n"
		}
		if composed.MarketCtx.Macro != nil {
			enrichment += composed.MarketCtx.Macro.Narrative + "\n"
		}
	}
	if composed.Sentiment != nil {
		enrichment += composed.Sentiment.Narrative + "\n"
	}
	if enrichment != "" {
		sections = append(sections, PromptSection{Name: "enrichment", Priority: 2,
			Content: "## Enrichment\n" + enrichment})
	}
	if assessment != nil && (len(assessment.KeyRisks) > 0 || len(assessment.KeyOpportunities) > 0) {
		intel := ""
		for _, r := range assessment.KeyRisks {
			intel += "- risk: " + r + "\n"
		}
		for _, op := range assessment.KeyOpportunities {
			intel += "- opportunity: " + op + "\n"
		}
		sections = append(sections, PromptSection{Name: "intel", Priority: 2,
			Content: "## Market intel\n" + intel})
	}
	if len(lessons) > 0 {
		lessonText := ""
		for _, l := range lessons {
			lessonText += "- " + l + "\n"
		}
		sections = append(sections, PromptSection{Name: "lessons", Priority: 3,
			Content: "## Lessons from past decisions\n" + lessonText})
	}

	prompt := BuildPrompt(sections, promptBudgetTokens)
	prompt += "\n\nFollow the three-step process and answer in the required JSON shape."

	text, tokens, err := o.gateway.Call(ctx, decisionEngineSystem, prompt, llm.RoleCritical, 0)
	if err != nil {
		var gwErr *llm.Error
		if errors.As(err, &gwErr) {
			logger.Errorf("decision LLM failed (%s): falling back to quantitative-only", gwErr.Category)
		} else {
			logger.Errorf("decision LLM failed: %v", err)
		}
		return quantOnlyDecision(composed.Signals), "quant-only", 0, true
	}

	model := o.gateway.Model(o.gateway.Provider(), llm.RoleCritical)
	var out llm.DecisionOutput
	if err := llm.DecodeJSON(text, &out); err != nil {
		// Schema violation: log and degrade, keep nothing typed.
		logger.Warnf("decision response malformed: %v", err)
		return quantOnlyDecision(composed.Signals), model, tokens, true
	}
	return &out, model, tokens, false
}

// finalizeRecommendations validates each recommendation, fills missing
// amounts through the sizer, and caps buys by the running cash.
func (o *Orchestrator) finalizeRecommendations(out *llm.DecisionOutput,
	composed *ComposeResult, account accountState) []llm.FundRecommendation {

	remainingCash := account.cash
	holdingSeries := make([][]float64, 0, len(account.holdings))
	holdingCodes := map[string]bool{}
	for _, h := range account.holdings {
		holdingCodes[h.FundCode] = true
		if f, ok := composed.FundData[h.FundCode]; ok {
			holdingSeries = append(holdingSeries, f.Series())
		}
	}

	var final []llm.FundRecommendation
	for _, rec := range out.Recommendations {
		if err := rec.Validate(); err != nil {
			// Keep best-effort but mark it as hold; it won't become a trade.
			logger.Warnf("recommendation for %q failed validation: %v", rec.FundCode, err)
			rec.Action = "hold"
			rec.Amount = 0
		}

		if rec.Action == "buy" {
			if rec.Amount <= 0 {
				rec.Amount = o.sizeBuy(rec, composed, account, holdingSeries)
			} else {
				// LLM-supplied amounts obey the same caps the sizer
				// applies: single-position cap against total capital and
				// the cash reserve floor.
				maxSingle := o.cfg.MaxSinglePositionPct * account.totalValue
				available := math.Max(0, account.cash-o.cfg.MinCashReservePct*account.totalValue)
				rec.Amount = math.Min(rec.Amount, math.Min(maxSingle, available))
			}
			capped := math.Min(rec.Amount, 0.9*remainingCash)
			if capped < rec.Amount {
				rec.Amount = math.Floor(capped)
			}
			if rec.Amount < 100 {
				rec.Amount = 0
			}
			remainingCash -= rec.Amount
		}
		final = append(final, rec)
	}
	return final
}

// sizeBuy wires the risk sizer for one recommendation.
func (o *Orchestrator) sizeBuy(rec llm.FundRecommendation, composed *ComposeResult,
	account accountState, holdingSeries [][]float64) float64 {

	confidence := rec.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	valuationMult := 1.0
	pePct := 50.0
	if composed.MarketCtx != nil && composed.MarketCtx.Valuation != nil {
		valuationMult = composed.MarketCtx.Valuation.PositionMultiplier
		pePct = composed.MarketCtx.Valuation.PEPercentile
	}

	var candidateSeries []float64
	if f, ok := composed.FundData[rec.FundCode]; ok {
		candidateSeries = f.Series()
	}
	corrPenalty := risk.CorrelationPenalty(candidateSeries, holdingSeries)

	var holdingValues []risk.HoldingValue
	for _, h := range account.holdings {
		category := "equity"
		if f, ok := composed.FundData[h.FundCode]; ok {
			category = f.Category
		}
		holdingValues = append(holdingValues, risk.HoldingValue{
			FundCode: h.FundCode, Category: category, Value: h.Value(),
		})
	}
	current := risk.ComputeCurrentAllocation(holdingValues, account.cash)
	maxEquity := risk.MaxEquityAmount(account.totalValue, composed.GlobalRegime, pePct, current)

	in := risk.SizingInput{
		TotalCapital:         account.totalValue,
		CurrentCash:          account.cash,
		Confidence:           confidence,
		Regime:               composed.GlobalRegime,
		ExistingPositions:    len(account.holdings),
		MinCashReservePct:    o.cfg.MinCashReservePct,
		MaxSinglePositionPct: o.cfg.MaxSinglePositionPct,
		ValuationMultiplier:  valuationMult,
		CorrelationPenalty:   corrPenalty,
		MaxEquityAmount:      maxEquity,
	}
	if winRate, avgWin, avgLoss, ok := o.store.CompositeWinStats(10); ok {
		in.KellyFraction = o.cfg.KellyFraction
		in.WinRate = winRate
		in.AvgWin = avgWin
		in.AvgLoss = avgLoss
	}
	return risk.PositionSize(in)
}

func (o *Orchestrator) persistDecision(composed *ComposeResult,
	assessment *llm.MarketAssessment, out *llm.DecisionOutput,
	modelUsed string, tokens int, recommendations []llm.FundRecommendation) (int64, error) {

	signalsJSON, _ := json.Marshal(composed.Signals)
	analysisJSON, _ := json.Marshal(out)
	decisionJSON, _ := json.Marshal(recommendations)

	marketContext := composed.GlobalRegime
	if assessment != nil {
		marketContext = assessment.Narrative
	}

	avgConfidence := 0.0
	if len(recommendations) > 0 {
		for _, r := range recommendations {
			avgConfidence += r.Confidence
		}
		avgConfidence /= float64(len(recommendations))
	}

	return o.store.SaveDecision(store.AgentDecision{
		DecisionDate:  o.now().Format("2006-01-02"),
		MarketContext: marketContext,
		QuantSignals:  string(signalsJSON),
		LLMAnalysis:   string(analysisJSON),
		LLMDecision:   string(decisionJSON),
		Confidence:    avgConfidence,
		Reasoning:     out.Thinking.FinalConclusion,
		Challenge:     out.Thinking.Challenge,
		ModelUsed:     modelUsed,
		TokensUsed:    tokens,
	})
}

func (o *Orchestrator) persistPendingTrades(recommendations []llm.FundRecommendation, today string) {
	for _, rec := range recommendations {
		if rec.Action != "buy" && rec.Action != "sell" {
			continue
		}
		if rec.Action == "buy" && rec.Amount <= 0 {
			continue
		}
		nav, _ := o.store.LatestNav(rec.FundCode)
		err := o.store.SavePendingTrade(store.Trade{
			TradeDate:  today,
			FundCode:   rec.FundCode,
			Action:     rec.Action,
			Amount:     rec.Amount,
			Nav:        nav,
			Reason:     rec.Reasoning,
			Confidence: rec.Confidence,
		})
		if err != nil {
			logger.Errorf("save pending trade %s: %v", rec.FundCode, err)
		}
	}
}
