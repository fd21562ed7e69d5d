package market

import "math"

// Market regimes, ordered from strongest uptrend to strongest downtrend.
const (
	RegimeBullStrong = "bull_strong"
	RegimeBullWeak   = "bull_weak"
	RegimeRanging    = "ranging"
	RegimeBearWeak   = "bear_weak"
	RegimeBearStrong = "bear_strong"
)

// RegimeDescriptions maps regimes to human narratives for reports.
var RegimeDescriptions = map[string]string{
	RegimeBullStrong: "strong uptrend — bullish MA stack, trend intact",
	RegimeBullWeak:   "weak uptrend — short MAs above long MAs, momentum fading",
	RegimeRanging:    "rangebound — no direction, MAs interleaved",
	RegimeBearWeak:   "weak downtrend — short MAs crossing under long MAs",
	RegimeBearStrong: "strong downtrend — bearish MA stack, trend down",
}

// CategoryProxies maps asset categories without their own index to a
// representative feeder fund whose NAV series stands in for the category.
var CategoryProxies = map[string]string{
	"bond": "217022",
	"gold": "000307",
	"qdii": "270042",
}

// RegimeResult is the detector output for one asset category.
type RegimeResult struct {
	Regime       string  `json:"regime"`
	Description  string  `json:"description"`
	TrendScore   float64 `json:"trend_score"` // -100..+100
	Volatility   float64 `json:"volatility"`
	CurrentPrice float64 `json:"current_price"`
}

// DetectRegime classifies a close series into one of the five regimes.
// flowScore is the optional northbound/fund-flow adjustment in [-30, 30]
// contributed by enrichment data; pass 0 when unavailable. Requires at
// least 120 observations.
func DetectRegime(closes []float64, flowScore float64) *RegimeResult {
	if len(closes) < 120 {
		return nil
	}
	current := closes[len(closes)-1]
	score := 0.0

	// Price vs MA (up to ±40).
	for _, c := range []struct {
		window int
		weight float64
	}{{20, 10}, {60, 15}, {120, 15}} {
		ma := MA(closes, c.window)
		v := last(ma)
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		pctAbove := (current - v) / v
		score += clamp(pctAbove*100, -c.weight, c.weight)
	}

	// MA slope over the last 10 steps (up to ±30).
	for _, window := range []int{20, 60, 120} {
		ma := MA(closes, window)
		valid := compact(ma)
		if len(valid) < 10 {
			continue
		}
		prev := valid[len(valid)-10]
		if prev == 0 {
			continue
		}
		slope := (valid[len(valid)-1] - prev) / prev
		score += clamp(slope*500, -10, 10)
	}

	// MA ordering (up to ±30).
	vals := make([]float64, 0, 4)
	for _, w := range []int{5, 10, 20, 60} {
		v := last(MA(closes, w))
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 4 {
		switch {
		case descending(vals):
			score += 30
		case ascending(vals):
			score -= 30
		default:
			correct, total := 0, 0
			for i := 0; i < len(vals); i++ {
				for j := i + 1; j < len(vals); j++ {
					total++
					if vals[i] > vals[j] {
						correct++
					}
				}
			}
			score += (float64(correct)/float64(total)*2 - 1) * 15
		}
	}

	score += clamp(flowScore, -30, 30)

	vol := 0.2
	if v := last(Volatility(closes, 20)); !math.IsNaN(v) {
		vol = v
	}

	var regime string
	switch {
	case score > 40:
		regime = RegimeBullStrong
	case score > 15:
		regime = RegimeBullWeak
	case score > -15:
		regime = RegimeRanging
	case score > -40:
		regime = RegimeBearWeak
	default:
		regime = RegimeBearStrong
	}

	// High volatility in a weak trend usually means the trend is turning.
	if vol > 0.30 && (regime == RegimeBullWeak || regime == RegimeBearWeak) {
		regime = RegimeRanging
	}

	return &RegimeResult{
		Regime:       regime,
		Description:  RegimeDescriptions[regime],
		TrendScore:   round1(score),
		Volatility:   vol,
		CurrentPrice: current,
	}
}

// Allocation is the regime-conditioned target mix plus strategy weights.
type Allocation struct {
	EquityPct       float64
	BondPct         float64
	CashPct         float64
	StrategyWeights map[string]float64
}

var regimeAllocations = map[string]Allocation{
	RegimeBullStrong: {0.60, 0.15, 0.25, map[string]float64{
		"trend_following": 0.30, "momentum": 0.25, "mean_reversion": 0.10,
		"valuation": 0.15, "macro_cycle": 0.10, "manager_alpha": 0.10,
	}},
	RegimeBullWeak: {0.55, 0.20, 0.25, map[string]float64{
		"trend_following": 0.25, "momentum": 0.20, "mean_reversion": 0.20,
		"valuation": 0.15, "macro_cycle": 0.10, "manager_alpha": 0.10,
	}},
	RegimeRanging: {0.45, 0.25, 0.30, map[string]float64{
		"trend_following": 0.15, "momentum": 0.15, "mean_reversion": 0.30,
		"valuation": 0.20, "macro_cycle": 0.10, "manager_alpha": 0.10,
	}},
	RegimeBearWeak: {0.35, 0.30, 0.35, map[string]float64{
		"trend_following": 0.15, "momentum": 0.10, "mean_reversion": 0.25,
		"valuation": 0.25, "macro_cycle": 0.15, "manager_alpha": 0.10,
	}},
	RegimeBearStrong: {0.25, 0.35, 0.40, map[string]float64{
		"trend_following": 0.15, "momentum": 0.05, "mean_reversion": 0.25,
		"valuation": 0.30, "macro_cycle": 0.15, "manager_alpha": 0.10,
	}},
}

// RegimeAllocation returns the suggested asset mix and strategy weights
// for a regime, defaulting to the ranging allocation.
func RegimeAllocation(regime string) Allocation {
	if a, ok := regimeAllocations[regime]; ok {
		return cloneAllocation(a)
	}
	return cloneAllocation(regimeAllocations[RegimeRanging])
}

func cloneAllocation(a Allocation) Allocation {
	weights := make(map[string]float64, len(a.StrategyWeights))
	for k, v := range a.StrategyWeights {
		weights[k] = v
	}
	a.StrategyWeights = weights
	return a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func compact(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func descending(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] <= xs[i] {
			return false
		}
	}
	return true
}

func ascending(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] >= xs[i] {
			return false
		}
	}
	return true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
