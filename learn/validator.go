package learn

import (
	"math"
	"time"

	"fundpilot/logger"
	"fundpilot/metrics"
	"fundpilot/store"
	"fundpilot/strategy"
)

// Return hurdles for a buy-family signal to count as correct. The 7d
// hurdle prices in the short-term redemption penalty; sells just need
// a negative return.
const (
	hurdle7d  = 1.65
	hurdle30d = 0.0
)

// Loop runs the persistent learning cycle over the store.
type Loop struct {
	store *store.Store
	now   func() time.Time
}

// NewLoop builds the learning loop.
func NewLoop(s *store.Store) *Loop {
	return &Loop{store: s, now: time.Now}
}

// NewLoopAt pins the clock, used by tests.
func NewLoopAt(s *store.Store, now func() time.Time) *Loop {
	return &Loop{store: s, now: now}
}

// RecordComposite registers composite signals (and their contributing
// strategies, recovered from the per-line reason tags) into the
// validation log with the latest NAV as baseline.
func (l *Loop) RecordComposite(signals []strategy.Signal, regime string) int {
	today := l.now().Format("2006-01-02")
	recorded := 0
	for _, sig := range signals {
		nav, ok := l.store.LatestNav(sig.FundCode)
		if !ok {
			continue
		}
		if err := l.store.RecordSignal(today, sig.FundCode, "composite",
			string(sig.Type), sig.Confidence, regime, nav); err != nil {
			logger.Warnf("record signal %s: %v", sig.FundCode, err)
			continue
		}
		recorded++

		for _, name := range contributingStrategies(sig) {
			_ = l.store.RecordSignal(today, sig.FundCode, name,
				string(sig.Type), sig.Confidence, regime, nav)
		}
	}
	return recorded
}

// contributingStrategies pulls "[strategy_name] ..." tags from the
// composite reason lines.
func contributingStrategies(sig strategy.Signal) []string {
	var names []string
	seen := map[string]bool{}
	reason := sig.Reason
	for {
		start := indexOf(reason, '[')
		if start < 0 {
			break
		}
		end := indexOf(reason[start:], ']')
		if end < 0 {
			break
		}
		name := reason[start+1 : start+end]
		reason = reason[start+end+1:]
		if name == "" || name == "conflict" || name == "signal_guard" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ValidatePending fills in every validation row whose 7d or 30d horizon
// has elapsed: look up the first NAV on or after signal_date + N days,
// compute the realized return and judge direction correctness.
func (l *Loop) ValidatePending() int {
	validated := 0
	for _, horizon := range []int{7, 30} {
		pending, err := l.store.PendingValidations(horizon, l.now())
		if err != nil {
			logger.Warnf("pending validations (%dd): %v", horizon, err)
			continue
		}
		for _, row := range pending {
			if row.NavAtSignal <= 0 {
				continue
			}
			signalDate, err := time.Parse("2006-01-02", row.SignalDate)
			if err != nil {
				continue
			}
			target := signalDate.AddDate(0, 0, horizon).Format("2006-01-02")
			navAfter, ok := l.store.NavOnOrAfter(row.FundCode, target)
			if !ok {
				continue
			}
			returnPct := (navAfter - row.NavAtSignal) / row.NavAtSignal * 100
			correct := directionCorrect(row.SignalType, returnPct, horizon)
			if err := l.store.FillValidation(row.ID, horizon, navAfter,
				math.Round(returnPct*10000)/10000, correct, l.now()); err != nil {
				logger.Warnf("fill validation %d: %v", row.ID, err)
				continue
			}
			validated++
		}
	}
	if validated > 0 {
		logger.Infof("validated %d historical signals", validated)
		metrics.ValidatedSignals.Add(float64(validated))
	}
	return validated
}

// directionCorrect judges a realized return against the signal
// direction. Flat outcomes count as incorrect.
func directionCorrect(signalType string, actualReturn float64, horizonDays int) bool {
	isBuy := signalType == string(strategy.StrongBuy) || signalType == string(strategy.Buy)
	isSell := signalType == string(strategy.StrongSell) || signalType == string(strategy.Sell)

	hurdle := hurdle30d
	if horizonDays < 30 {
		hurdle = hurdle7d
	}
	switch {
	case isBuy:
		return actualReturn > hurdle
	case isSell:
		return actualReturn < 0
	default:
		return false
	}
}
