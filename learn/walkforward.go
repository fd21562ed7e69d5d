package learn

import (
	"fmt"
	"math"

	"fundpilot/market"
)

// WalkForwardWindow is one out-of-sample test window.
type WalkForwardWindow struct {
	FundCode     string
	Window       int
	TestPeriod   string
	Direction    string // buy | sell | hold
	PeriodReturn float64
	Correct      bool
}

// WalkForwardResult summarizes the out-of-sample sweep.
type WalkForwardResult struct {
	NWindows        int
	AvgReturn       float64
	WorstReturn     float64
	BestReturn      float64
	AvgWinRate      float64
	RobustnessScore float64 // 0-100
	Windows         []WalkForwardWindow
}

// WalkForward splits each fund's history into nWindows slices, signals
// at every window boundary from the data available up to it (MA stack
// plus RSI filter), and scores the call against the window's realized
// return. Simulates the real "future unknown" state a plain backtest
// cheats on.
func WalkForward(funds map[string]*market.FundHistory, nWindows int) WalkForwardResult {
	if nWindows <= 1 {
		nWindows = 6
	}
	var windows []WalkForwardWindow
	var returns []float64
	correct := 0

	for code, f := range funds {
		series := f.Series()
		if len(series) < 200 {
			continue
		}
		windowSize := len(series) / nWindows
		if windowSize < 60 {
			continue
		}

		for i := 0; i < nWindows-1; i++ {
			testStart := (i + 1) * windowSize
			testEnd := testStart + windowSize
			if testEnd > len(series) {
				testEnd = len(series)
			}
			if testEnd-testStart < 20 {
				continue
			}

			tech := market.TechnicalSummary(series[:testStart])
			if tech == nil {
				continue
			}

			direction := "hold"
			if tech.MAAlignment == market.MASignalBullish && tech.RSI < 70 {
				direction = "buy"
			} else if tech.MAAlignment == market.MASignalBearish && tech.RSI > 30 {
				direction = "sell"
			}

			startNav := series[testStart]
			endNav := series[testEnd-1]
			if startNav <= 0 {
				continue
			}
			periodReturn := (endNav - startNav) / startNav * 100

			isCorrect := direction == "hold" ||
				(direction == "buy" && periodReturn > 0) ||
				(direction == "sell" && periodReturn < 0)

			win := WalkForwardWindow{
				FundCode:     code,
				Window:       i,
				TestPeriod:   fmt.Sprintf("%s ~ %s", f.Navs[testStart].Date, f.Navs[testEnd-1].Date),
				Direction:    direction,
				PeriodReturn: periodReturn,
				Correct:      isCorrect,
			}
			windows = append(windows, win)
			if direction != "hold" {
				signed := periodReturn
				if direction == "sell" {
					signed = -periodReturn
				}
				returns = append(returns, signed)
			}
			if isCorrect {
				correct++
			}
		}
	}

	result := WalkForwardResult{NWindows: len(windows), Windows: windows}
	if len(windows) == 0 {
		return result
	}
	result.AvgWinRate = float64(correct) / float64(len(windows)) * 100

	if len(returns) > 0 {
		worst, best, sum := returns[0], returns[0], 0.0
		for _, r := range returns {
			sum += r
			worst = math.Min(worst, r)
			best = math.Max(best, r)
		}
		result.AvgReturn = sum / float64(len(returns))
		result.WorstReturn = worst
		result.BestReturn = best
	}

	// Robustness rewards consistent hit rate and punishes a deep worst
	// window.
	robustness := result.AvgWinRate
	if result.WorstReturn < -10 {
		robustness -= 20
	} else if result.WorstReturn < -5 {
		robustness -= 10
	}
	result.RobustnessScore = math.Max(0, math.Min(100, robustness))
	return result
}
