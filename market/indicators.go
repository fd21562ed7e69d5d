package market

import "math"

// Pure indicator math over NAV/close series. Series are ordered oldest
// first; positions without enough lookback hold NaN so callers can line
// values up against the input.

const tradingDaysPerYear = 250

// MA computes a simple moving average.
func MA(series []float64, window int) []float64 {
	out := nanSlice(len(series))
	if window <= 0 || len(series) < window {
		return out
	}
	var sum float64
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA computes an exponential moving average with span semantics
// (alpha = 2/(span+1)), seeded at the first value.
func EMA(series []float64, span int) []float64 {
	out := nanSlice(len(series))
	if span <= 0 || len(series) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	ema := series[0]
	out[0] = ema
	for i := 1; i < len(series); i++ {
		ema = alpha*series[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index (0-100).
func RSI(series []float64, period int) []float64 {
	out := nanSlice(len(series))
	if period <= 0 || len(series) <= period {
		return out
	}
	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i <= period {
			avgGain += gain / float64(period)
			avgLoss += loss / float64(period)
			if i < period {
				continue
			}
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult carries the three MACD series.
type MACDResult struct {
	Dif       []float64
	Dea       []float64
	Histogram []float64
}

// MACD computes DIF (fast EMA − slow EMA), DEA (signal EMA of DIF) and
// the doubled histogram used by mainland charting conventions.
func MACD(series []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(series, fast)
	emaSlow := EMA(series, slow)
	dif := make([]float64, len(series))
	for i := range series {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea := EMA(dif, signal)
	hist := make([]float64, len(series))
	for i := range series {
		hist[i] = 2 * (dif[i] - dea[i])
	}
	return MACDResult{Dif: dif, Dea: dea, Histogram: hist}
}

// BollingerResult carries the band series.
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
	Width  []float64
}

// Bollinger computes middle/upper/lower bands at stdDev standard deviations.
func Bollinger(series []float64, period int, stdDev float64) BollingerResult {
	n := len(series)
	res := BollingerResult{
		Middle: MA(series, period),
		Upper:  nanSlice(n),
		Lower:  nanSlice(n),
		Width:  nanSlice(n),
	}
	if period <= 1 || n < period {
		return res
	}
	for i := period - 1; i < n; i++ {
		m := res.Middle[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := series[j] - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period-1))
		res.Upper[i] = m + stdDev*sd
		res.Lower[i] = m - stdDev*sd
		if m != 0 {
			res.Width[i] = (res.Upper[i] - res.Lower[i]) / m
		}
	}
	return res
}

// Volatility computes the rolling annualized log-return volatility.
func Volatility(series []float64, window int) []float64 {
	n := len(series)
	out := nanSlice(n)
	if n < 2 || window <= 1 {
		return out
	}
	logRet := nanSlice(n)
	for i := 1; i < n; i++ {
		if series[i-1] > 0 && series[i] > 0 {
			logRet[i] = math.Log(series[i] / series[i-1])
		}
	}
	for i := window; i < n; i++ {
		win := logRet[i-window+1 : i+1]
		sd, ok := stddev(win)
		if ok {
			out[i] = sd * math.Sqrt(tradingDaysPerYear)
		}
	}
	return out
}

// DailyReturns converts a close series into simple daily returns.
func DailyReturns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			continue
		}
		out = append(out, series[i]/series[i-1]-1)
	}
	return out
}

// SharpeRatio computes the annualized Sharpe ratio of daily returns.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	sd, ok := stddev(returns)
	if !ok || sd == 0 {
		return 0
	}
	excess := mean(returns) - riskFreeRate/tradingDaysPerYear
	return excess / sd * math.Sqrt(tradingDaysPerYear)
}

// SortinoRatio computes the annualized Sortino ratio, penalizing only
// downside volatility.
func SortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	excess := mean(returns) - riskFreeRate/tradingDaysPerYear
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	sd, ok := stddev(downside)
	if !ok || sd == 0 {
		if excess > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return excess / sd * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown returns the deepest peak-to-trough loss as a negative
// fraction, plus the peak and trough indexes.
func MaxDrawdown(series []float64) (dd float64, peakIdx, troughIdx int) {
	if len(series) == 0 {
		return 0, 0, 0
	}
	peak := series[0]
	curPeakIdx := 0
	for i, v := range series {
		if v > peak {
			peak = v
			curPeakIdx = i
		}
		if peak > 0 {
			d := (v - peak) / peak
			if d < dd {
				dd = d
				peakIdx = curPeakIdx
				troughIdx = i
			}
		}
	}
	return dd, peakIdx, troughIdx
}

// ATR approximates the Average True Range for close-only fund series:
// the mean absolute daily NAV change over the trailing period.
func ATR(series []float64, period int) float64 {
	if len(series) < period+1 {
		return 0
	}
	var sum float64
	start := len(series) - period
	for i := start; i < len(series); i++ {
		sum += math.Abs(series[i] - series[i-1])
	}
	return sum / float64(period)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) (float64, bool) {
	clean := xs[:0:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			clean = append(clean, x)
		}
	}
	if len(clean) < 2 {
		return 0, false
	}
	m := mean(clean)
	var ss float64
	for _, x := range clean {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(clean)-1)), true
}

func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return math.NaN()
}
