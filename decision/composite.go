package decision

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fundpilot/learn"
	"fundpilot/logger"
	"fundpilot/market"
	"fundpilot/provider"
	"fundpilot/store"
	"fundpilot/strategy"
)

// assetCategories are the per-category regime detection targets.
var assetCategories = []string{"equity", "bond", "gold", "qdii", "index"}

const (
	// minimum combined weighted score for a fund bucket to survive.
	minBucketScore = 0.1
	// composite confidence ceiling.
	confidenceCap = 0.95
	// per-task deadline of the enrichment fetch pool.
	enrichTimeout = 60 * time.Second
)

// Engine drives the composite pipeline: regimes, enrichment, parallel
// strategy execution, weighted fusion, guard.
type Engine struct {
	store  *store.Store
	enrich *provider.Enrichment
	loop   *learn.Loop
	now    func() time.Time
}

// NewEngine wires the composite engine.
func NewEngine(s *store.Store, enrich *provider.Enrichment, loop *learn.Loop) *Engine {
	return &Engine{store: s, enrich: enrich, loop: loop, now: time.Now}
}

// ComposeResult is everything the orchestrator needs downstream.
type ComposeResult struct {
	Signals         []strategy.Signal
	GlobalRegime    string
	CategoryRegimes map[string]string
	MarketCtx       *strategy.MarketContext
	Sentiment       *market.SentimentSnapshot
	FundData        map[string]*market.FundHistory
	DataQuality     map[string]string
	Weights         map[string]float64
}

// ResolveRegimes runs the regime detector once per asset category.
// Equity and index read the CSI 300 closes; bond/gold/qdii read their
// proxy feeder fund. Categories without data default to ranging.
func (e *Engine) ResolveRegimes() map[string]string {
	regimes := make(map[string]string, len(assetCategories))
	for _, cat := range assetCategories {
		regimes[cat] = market.RegimeRanging

		var closes []float64
		if proxy, ok := market.CategoryProxies[cat]; ok {
			navs, err := e.store.NavHistory(proxy)
			if err != nil {
				continue
			}
			for _, p := range navs {
				closes = append(closes, p.Nav)
			}
		} else {
			var err error
			closes, err = e.store.IndexCloses("000300")
			if err != nil {
				continue
			}
		}

		if result := market.DetectRegime(closes, 0); result != nil {
			regimes[cat] = result.Regime
		}
	}
	return regimes
}

// fetchEnrichment pulls valuation, macro, sentiment and manager scores
// with bounded parallelism; each task has its own deadline and degrades
// through the three-tier fallback.
func (e *Engine) fetchEnrichment(ctx context.Context, funds map[string]*market.FundHistory,
	mktCtx *strategy.MarketContext, quality map[string]string) *market.SentimentSnapshot {

	var sentiment *market.SentimentSnapshot

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(3)

	g.Go(func() error {
		done := make(chan provider.DataResult[*market.ValuationSignal], 1)
		go func() { done <- e.enrich.Valuation() }()
		select {
		case res := <-done:
			mktCtx.Valuation = res.Data
			quality["valuation"] = res.Quality.String()
			logger.Infof("valuation: PE percentile %.0f%% (%s)", res.Data.PEPercentile, res.Source)
		case <-time.After(enrichTimeout):
			quality["valuation"] = provider.QualityDefault.String()
		}
		return nil
	})

	g.Go(func() error {
		done := make(chan provider.DataResult[*market.MacroSnapshot], 1)
		go func() { done <- e.enrich.Macro() }()
		select {
		case res := <-done:
			mktCtx.Macro = res.Data
			quality["macro"] = res.Quality.String()
			logger.Infof("macro: %s (%s)", res.Data.CreditCycle, res.Source)
		case <-time.After(enrichTimeout):
			quality["macro"] = provider.QualityDefault.String()
		}
		return nil
	})

	g.Go(func() error {
		done := make(chan provider.DataResult[*market.SentimentSnapshot], 1)
		go func() { done <- e.enrich.Sentiment() }()
		select {
		case res := <-done:
			sentiment = res.Data
			quality["sentiment"] = res.Quality.String()
		case <-time.After(enrichTimeout):
			quality["sentiment"] = provider.QualityDefault.String()
		}
		return nil
	})

	g.Go(func() error {
		scores := provider.EvaluateManagers(funds, 10)
		if len(scores) > 0 {
			mktCtx.ManagerScores = scores
			for _, ms := range scores {
				_ = e.store.SaveManagerScore(ms)
			}
			logger.Infof("manager evaluation: %d funds", len(scores))
		}
		return nil
	})

	_ = g.Wait()
	return sentiment
}

// Compose runs the full fusion pipeline and returns the guarded,
// priority-sorted composite signals. Stable across re-runs with
// identical inputs.
func (e *Engine) Compose(ctx context.Context) (*ComposeResult, error) {
	categoryRegimes := e.ResolveRegimes()
	globalRegime := categoryRegimes["equity"]

	fundData, err := e.store.FundData()
	if err != nil {
		return nil, fmt.Errorf("load fund data: %w", err)
	}
	if len(fundData) == 0 {
		return nil, fmt.Errorf("no fund NAV history to analyze")
	}

	mktCtx := &strategy.MarketContext{
		GlobalRegime:    globalRegime,
		CategoryRegimes: categoryRegimes,
	}
	quality := map[string]string{}
	sentiment := e.fetchEnrichment(ctx, fundData, mktCtx, quality)

	// Weight vector: learned weights for the equity regime when the
	// learning loop has enough validated data, else regime defaults.
	weights := market.RegimeAllocation(globalRegime).StrategyWeights
	if learned := e.loop.LearnedWeights(globalRegime); learned != nil {
		logger.Infof("using learned weights: %v", learned)
		weights = learned
	}

	entries := strategy.Discover()
	runs := make([]strategyRun, len(entries))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(len(entries))
	for i, entry := range entries {
		i, entry := i, entry
		weight, ok := weights[entry.Name]
		if !ok {
			weight = entry.DefaultWeight
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Warnf("strategy %s panicked: %v", entry.Name, r)
				}
			}()
			signals := entry.Factory().Generate(mktCtx, fundData)
			runs[i] = strategyRun{name: entry.Name, weight: weight, signals: signals}
			return nil
		})
	}
	_ = g.Wait()

	categoryOf := func(code string) string {
		if f, ok := fundData[code]; ok {
			return f.Category
		}
		return "equity"
	}
	composite := fuse(runs, categoryOf, categoryRegimes, globalRegime)

	gd := &guard{store: e.store, now: e.now}
	composite = gd.applyGuard(composite)

	return &ComposeResult{
		Signals:         composite,
		GlobalRegime:    globalRegime,
		CategoryRegimes: categoryRegimes,
		MarketCtx:       mktCtx,
		Sentiment:       sentiment,
		FundData:        fundData,
		DataQuality:     quality,
		Weights:         weights,
	}, nil
}
