package strategy

import (
	"fmt"
	"math"
	"sort"

	"fundpilot/market"
)

func init() {
	mustRegister("momentum", 0.20, func() Strategy { return NewMomentum() })
}

// Momentum ranks the universe on a risk-adjusted momentum composite:
// Sharpe-style momentum on days [-60,-5], raw momentum on the same
// window, path quality, and an acceleration bonus. The strongest few
// become buys, the weakest become sells. Disabled in bear_strong.
type Momentum struct {
	LookbackDays int
	TopN         int
}

func NewMomentum() *Momentum {
	return &Momentum{LookbackDays: 60, TopN: 3}
}

func (m *Momentum) Name() string { return "momentum" }

type momentumScore struct {
	fundCode       string
	rawMomentum    float64
	sharpeMomentum float64
	pathQuality    float64
	trendAccel     bool
	composite      float64
}

func (m *Momentum) Generate(mkt *MarketContext, funds map[string]*market.FundHistory) []Signal {
	if mkt.RegimeFor("equity") == market.RegimeBearStrong {
		return nil
	}

	var ranked []momentumScore
	for _, code := range sortedCodes(funds) {
		f := funds[code]
		if len(f.Navs) < m.LookbackDays {
			continue
		}
		if score, ok := m.score(f.Series()); ok {
			score.fundCode = code
			ranked = append(ranked, score)
		}
	}
	if len(ranked) < 2 {
		return nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].composite != ranked[j].composite {
			return ranked[i].composite > ranked[j].composite
		}
		return ranked[i].fundCode < ranked[j].fundCode
	})

	var signals []Signal
	top := m.TopN
	if top > len(ranked) {
		top = len(ranked)
	}
	for _, item := range ranked[:top] {
		if item.composite <= 5 {
			continue
		}
		confidence := math.Min(0.7, item.composite/50)
		reasons := []string{
			fmt.Sprintf("sharpe momentum %.2f", item.sharpeMomentum),
			fmt.Sprintf("path quality %.0f%%", item.pathQuality*100),
		}
		if item.trendAccel {
			reasons = append(reasons, "momentum accelerating")
		}
		signals = append(signals, Signal{
			FundCode:     item.fundCode,
			Type:         Buy,
			Confidence:   round2(confidence),
			Reason:       joinReasons(reasons),
			StrategyName: m.Name(),
			Metadata: map[string]any{
				"composite_score": item.composite,
				"sharpe_momentum": item.sharpeMomentum,
			},
		})
	}

	bottom := len(ranked) - m.TopN
	if bottom < 0 {
		bottom = 0
	}
	for _, item := range ranked[bottom:] {
		if item.composite >= -10 {
			continue
		}
		confidence := math.Min(0.7, math.Abs(item.composite)/50)
		signals = append(signals, Signal{
			FundCode:     item.fundCode,
			Type:         Sell,
			Confidence:   round2(confidence),
			Reason:       fmt.Sprintf("bottom of momentum ranking, composite %.1f", item.composite),
			StrategyName: m.Name(),
			Metadata: map[string]any{
				"composite_score": item.composite,
				"sharpe_momentum": item.sharpeMomentum,
			},
		})
	}

	return signals
}

// score computes the multi-factor momentum composite for one series.
func (m *Momentum) score(series []float64) (momentumScore, bool) {
	n := len(series)
	if n < m.LookbackDays {
		return momentumScore{}, false
	}

	// Raw momentum on [-60,-5]: skip the last 5 days of reversal noise.
	t5 := series[n-1]
	if n >= 6 {
		t5 = series[n-6]
	}
	t60 := series[n-m.LookbackDays]
	if t60 <= 0 {
		return momentumScore{}, false
	}
	raw := (t5 - t60) / t60 * 100

	window := series[n-m.LookbackDays:]
	if n > 5 {
		window = series[n-m.LookbackDays : n-5]
	}
	returns := market.DailyReturns(window)

	var sharpeMom float64
	if sd, ok := stdev(returns); !ok || len(returns) < 10 || sd == 0 {
		sharpeMom = raw / 10
	} else {
		sharpeMom = meanOf(returns) / sd * math.Sqrt(250)
	}

	pathQuality := 0.5
	if len(returns) > 0 {
		positive := 0
		negStreak, maxNegStreak := 0, 0
		for _, r := range returns {
			if r > 0 {
				positive++
				negStreak = 0
			} else if r < 0 {
				negStreak++
				if negStreak > maxNegStreak {
					maxNegStreak = negStreak
				}
			} else {
				negStreak = 0
			}
		}
		positiveRatio := float64(positive) / float64(len(returns))
		streakPenalty := math.Max(0, 1-float64(maxNegStreak)/10)
		pathQuality = positiveRatio*0.7 + streakPenalty*0.3
	}

	trendAccel := false
	if n >= 25 {
		t20 := series[0]
		if n >= 21 {
			t20 = series[n-21]
		}
		if t20 > 0 {
			shortMom := (t5 - t20) / t20 * 100
			trendAccel = shortMom > raw*0.5 && shortMom > 2
		}
	}

	composite := sharpeMom*10 + raw*0.3 + pathQuality*10
	if trendAccel {
		composite += 5
	}

	return momentumScore{
		rawMomentum:    raw,
		sharpeMomentum: sharpeMom,
		pathQuality:    pathQuality,
		trendAccel:     trendAccel,
		composite:      composite,
	}, true
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := meanOf(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
