package market

import (
	"math"
	"sort"
)

// ScoringTarget is the per-category benchmark a fund is scored against.
type ScoringTarget struct {
	ReturnTarget float64
	VolCap       float64
	DDCap        float64
}

// FundScore is the screening result for one fund.
type FundScore struct {
	FundCode    string
	FundName    string
	Category    string
	TotalScore  float64
	Return1M    float64
	Return3M    float64
	Annualized  float64
	Volatility  float64
	MaxDrawdown float64
	Sharpe      float64
}

// ScoreFund rates a fund 0-100 against its category benchmark: 40%
// return vs target, 25% volatility headroom, 20% drawdown headroom,
// 15% Sharpe. Needs at least 60 NAV points.
func ScoreFund(f *FundHistory, target ScoringTarget) *FundScore {
	series := f.Series()
	if len(series) < 60 {
		return nil
	}
	returns := DailyReturns(series)
	annualized := mean(returns) * tradingDaysPerYear
	vol := 0.0
	if v := last(Volatility(series, 20)); !math.IsNaN(v) {
		vol = v
	}
	dd, _, _ := MaxDrawdown(series)
	sharpe := SharpeRatio(returns, 0.02)

	score := 0.0
	if target.ReturnTarget > 0 {
		score += clamp(annualized/target.ReturnTarget, -1, 1.5) / 1.5 * 40
	}
	if target.VolCap > 0 {
		score += clamp(1-vol/target.VolCap, -0.5, 1) * 25
	}
	if target.DDCap > 0 {
		score += clamp(1-math.Abs(dd)/target.DDCap, -0.5, 1) * 20
	}
	score += clamp(sharpe/2, -1, 1) * 15

	fs := &FundScore{
		FundCode:    f.Code,
		FundName:    f.Name,
		Category:    f.Category,
		TotalScore:  clamp(score, 0, 100),
		Annualized:  annualized,
		Volatility:  vol,
		MaxDrawdown: dd * 100,
		Sharpe:      sharpe,
	}
	fs.Return1M = windowReturn(series, 21)
	fs.Return3M = windowReturn(series, 63)
	return fs
}

// RankFunds scores every fund with enough history and returns the list
// sorted by total score descending.
func RankFunds(funds map[string]*FundHistory, targets map[string]ScoringTarget) []*FundScore {
	var out []*FundScore
	for _, f := range funds {
		target, ok := targets[f.Category]
		if !ok {
			target = targets["equity"]
		}
		if s := ScoreFund(f, target); s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].FundCode < out[j].FundCode
	})
	return out
}

func windowReturn(series []float64, days int) float64 {
	if len(series) <= days {
		return 0
	}
	base := series[len(series)-1-days]
	if base == 0 {
		return 0
	}
	return (series[len(series)-1] - base) / base * 100
}
