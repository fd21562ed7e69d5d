package provider

import (
	"fmt"
	"time"

	"fundpilot/market"
	"fundpilot/store"
)

// Enrichment resolves the valuation / macro / sentiment / manager-score
// context, each through the three-tier fallback with the store as the
// cache tier.
type Enrichment struct {
	store  *store.Store
	client *Client
	ttl    time.Duration
	now    func() time.Time
}

// NewEnrichment wires the enrichment fetchers.
func NewEnrichment(s *store.Store, c *Client) *Enrichment {
	return &Enrichment{store: s, client: c, ttl: 24 * time.Hour, now: time.Now}
}

// Valuation returns the broad-market valuation signal derived from the
// CSI 300 PE percentile.
func (e *Enrichment) Valuation() DataResult[*market.ValuationSignal] {
	return FetchWithFallback(
		"valuation",
		func() (*market.ValuationSignal, error) {
			row, err := e.client.IndexValuation("000300")
			if err != nil {
				return nil, err
			}
			_ = e.store.SaveIndexValuation(row.IndexCode, row.TradeDate,
				row.PE, row.PB, row.PEPercentile, row.PBPercentile)
			return valuationSignalFromPE(row.PEPercentile), nil
		},
		func() (*market.ValuationSignal, string, bool) {
			pePct, date, ok := e.store.CachedValuation()
			if !ok {
				return nil, "", false
			}
			sig := valuationSignalFromPE(pePct)
			sig.Narrative = fmt.Sprintf("(cached) PE percentile %.0f%%", pePct)
			return sig, date, true
		},
		func() *market.ValuationSignal {
			return &market.ValuationSignal{
				PEPercentile:       50,
				PositionMultiplier: 1.0,
				Narrative:          "valuation data unavailable, neutral assumed",
			}
		},
		e.ttl, e.now(),
	)
}

// valuationSignalFromPE maps the PE percentile to the regime modifier
// and position multiplier bands.
func valuationSignalFromPE(pePct float64) *market.ValuationSignal {
	switch {
	case pePct < 20:
		return &market.ValuationSignal{PEPercentile: pePct, RegimeModifier: 2, PositionMultiplier: 1.5,
			Narrative: fmt.Sprintf("CSI 300 PE percentile %.0f%%, historic low zone, prime accumulation window", pePct)}
	case pePct < 30:
		return &market.ValuationSignal{PEPercentile: pePct, RegimeModifier: 1, PositionMultiplier: 1.3,
			Narrative: fmt.Sprintf("CSI 300 PE percentile %.0f%%, undervalued zone, lean in", pePct)}
	case pePct < 70:
		return &market.ValuationSignal{PEPercentile: pePct, RegimeModifier: 0, PositionMultiplier: 1.0,
			Narrative: fmt.Sprintf("CSI 300 PE percentile %.0f%%, valuation neutral", pePct)}
	case pePct < 80:
		return &market.ValuationSignal{PEPercentile: pePct, RegimeModifier: -1, PositionMultiplier: 0.6,
			Narrative: fmt.Sprintf("CSI 300 PE percentile %.0f%%, rich zone, reduce commitment", pePct)}
	default:
		return &market.ValuationSignal{PEPercentile: pePct, RegimeModifier: -2, PositionMultiplier: 0.3,
			Narrative: fmt.Sprintf("CSI 300 PE percentile %.0f%%, extreme overvaluation, step back", pePct)}
	}
}

// Macro returns the credit-cycle snapshot from PMI and M2 direction.
func (e *Enrichment) Macro() DataResult[*market.MacroSnapshot] {
	return FetchWithFallback(
		"macro",
		func() (*market.MacroSnapshot, error) {
			rows, err := e.client.MacroIndicators(6)
			if err != nil {
				return nil, err
			}
			var pmi, m2 []float64
			var latestPeriod string
			for _, r := range rows {
				_ = e.store.SaveMacroIndicator(r.Indicator, r.Period, r.Value)
				switch r.Indicator {
				case "pmi":
					pmi = append(pmi, r.Value)
				case "m2_yoy":
					m2 = append(m2, r.Value)
				}
				if r.Period > latestPeriod {
					latestPeriod = r.Period
				}
			}
			snap := creditCycle(pmi, m2)
			if snap.CreditCycle == "unknown" {
				return nil, fmt.Errorf("macro: not enough observations")
			}
			return snap, nil
		},
		func() (*market.MacroSnapshot, string, bool) {
			pmi, _ := e.store.MacroSeries("pmi", 3)
			m2, _ := e.store.MacroSeries("m2_yoy", 3)
			snap := creditCycle(pmi, m2)
			if snap.CreditCycle == "unknown" {
				return nil, "", false
			}
			snap.Narrative = "(cached) " + snap.Narrative
			return snap, e.now().Format("2006-01-02"), true
		},
		func() *market.MacroSnapshot {
			return &market.MacroSnapshot{CreditCycle: "unknown", Narrative: "macro data unavailable"}
		},
		e.ttl, e.now(),
	)
}

// creditCycle labels the cycle from PMI direction × M2 direction:
// both up = expansion, PMI down + M2 up = recovery (policy bottom),
// PMI up + M2 down = peak, both down = contraction.
func creditCycle(pmi, m2 []float64) *market.MacroSnapshot {
	if len(pmi) < 2 || len(m2) < 2 {
		return &market.MacroSnapshot{CreditCycle: "unknown"}
	}
	pmiUp := pmi[len(pmi)-1] >= pmi[len(pmi)-2]
	m2Up := m2[len(m2)-1] >= m2[len(m2)-2]

	switch {
	case pmiUp && m2Up:
		return &market.MacroSnapshot{CreditCycle: "expansion", CycleSignal: "risk-on",
			Narrative: "PMI and M2 both rising: credit expansion"}
	case !pmiUp && m2Up:
		return &market.MacroSnapshot{CreditCycle: "recovery", CycleSignal: "early positioning",
			Narrative: "PMI soft but M2 rising: policy bottom forming"}
	case pmiUp && !m2Up:
		return &market.MacroSnapshot{CreditCycle: "peak", CycleSignal: "balanced",
			Narrative: "PMI up while M2 rolls over: cycle topping"}
	default:
		return &market.MacroSnapshot{CreditCycle: "contraction", CycleSignal: "risk-off",
			Narrative: "PMI and M2 both falling: credit contraction"}
	}
}

// Sentiment returns the margin-balance sentiment snapshot. Extreme
// readings are the best contrarian tell.
func (e *Enrichment) Sentiment() DataResult[*market.SentimentSnapshot] {
	return FetchWithFallback(
		"sentiment",
		func() (*market.SentimentSnapshot, error) {
			start := e.now().AddDate(-2, 0, 0).Format("2006-01-02")
			rows, err := e.client.MarginBalance(start)
			if err != nil {
				return nil, err
			}
			if len(rows) < 60 {
				return nil, fmt.Errorf("sentiment: only %d margin rows", len(rows))
			}
			values := make([]float64, len(rows))
			for i, r := range rows {
				values[i] = r.Value
			}
			current := values[len(values)-1]
			below := 0
			for _, v := range values {
				if v < current {
					below++
				}
			}
			percentile := float64(below) / float64(len(values)) * 100
			snap := sentimentFromPercentile(percentile)
			last := rows[len(rows)-1]
			_ = e.store.SaveSentiment("margin_balance", last.Date, last.Value, percentile)
			return snap, nil
		},
		func() (*market.SentimentSnapshot, string, bool) {
			percentile, date, ok := e.store.CachedSentiment("margin_balance")
			if !ok {
				return nil, "", false
			}
			snap := sentimentFromPercentile(percentile)
			snap.Narrative = "(cached) " + snap.Narrative
			return snap, date, true
		},
		func() *market.SentimentSnapshot {
			return &market.SentimentSnapshot{Score: 50, Level: "neutral", Percentile: 50,
				Narrative: "sentiment data unavailable"}
		},
		e.ttl, e.now(),
	)
}

func sentimentFromPercentile(percentile float64) *market.SentimentSnapshot {
	snap := &market.SentimentSnapshot{Score: percentile, Percentile: percentile}
	switch {
	case percentile > 90:
		snap.Level = "euphoric"
		snap.Narrative = fmt.Sprintf("margin balance at the %.0fth percentile: leverage crowded, contrarian caution", percentile)
	case percentile > 70:
		snap.Level = "optimistic"
		snap.Narrative = fmt.Sprintf("margin balance at the %.0fth percentile: risk appetite elevated", percentile)
	case percentile < 10:
		snap.Level = "capitulation"
		snap.Narrative = fmt.Sprintf("margin balance at the %.0fth percentile: washed out, contrarian opportunity", percentile)
	case percentile < 30:
		snap.Level = "pessimistic"
		snap.Narrative = fmt.Sprintf("margin balance at the %.0fth percentile: risk appetite depressed", percentile)
	default:
		snap.Level = "neutral"
		snap.Narrative = fmt.Sprintf("margin balance at the %.0fth percentile: sentiment unremarkable", percentile)
	}
	return snap
}
