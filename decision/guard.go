package decision

import (
	"fmt"
	"math"
	"time"

	"fundpilot/logger"
	"fundpilot/metrics"
	"fundpilot/store"
	"fundpilot/strategy"
)

// SignalHealth is the guard verdict for one fund.
type SignalHealth struct {
	FundCode      string
	PenaltyFactor float64 // multiplies confidence, 0.3 - 1.0
	Suppressed    bool
	Reason        string
}

// guard scans a fund's recent composite validation record for three
// anti-patterns; the earliest match wins.
type guard struct {
	store *store.Store
	now   func() time.Time
}

const (
	guardLookbackDays = 90
	guardMaxRecords   = 10
)

// check queries the validation log and detects anti-patterns.
func (g *guard) check(fundCode string) SignalHealth {
	health := SignalHealth{FundCode: fundCode, PenaltyFactor: 1.0}

	records, err := g.store.RecentCompositeValidations(fundCode, guardLookbackDays, guardMaxRecords, g.now())
	if err != nil || len(records) < 3 {
		return health
	}

	// Anti-pattern 1: consecutive wrong calls in one direction.
	consecutiveWrong := 0
	lastDirection := ""
	for _, r := range records {
		direction := "sell"
		if r.SignalType == string(strategy.StrongBuy) || r.SignalType == string(strategy.Buy) {
			direction = "buy"
		}
		wrong := r.IsCorrect30d.Valid && !r.IsCorrect30d.Bool
		if wrong && (lastDirection == "" || direction == lastDirection) {
			consecutiveWrong++
			lastDirection = direction
		} else {
			break
		}
	}
	if consecutiveWrong >= 3 {
		return SignalHealth{
			FundCode:      fundCode,
			PenaltyFactor: 0.3,
			Suppressed:    consecutiveWrong >= 5,
			Reason:        fmt.Sprintf("%d consecutive wrong calls in the same direction", consecutiveWrong),
		}
	}

	// Anti-pattern 2: ping-pong — alternating direction, mostly wrong.
	var validated []store.SignalValidation
	for _, r := range records {
		if r.IsCorrect30d.Valid {
			validated = append(validated, r)
		}
	}
	if len(validated) >= 4 {
		directions := make([]string, len(validated))
		wrongCount := 0
		for i, r := range validated {
			if r.SignalType == string(strategy.StrongBuy) || r.SignalType == string(strategy.Buy) {
				directions[i] = "buy"
			} else {
				directions[i] = "sell"
			}
			if !r.IsCorrect30d.Bool {
				wrongCount++
			}
		}
		alternating := 0
		for i := 1; i < len(directions); i++ {
			if directions[i] != directions[i-1] {
				alternating++
			}
		}
		if float64(alternating) >= float64(len(directions))*0.7 &&
			float64(wrongCount) >= float64(len(validated))*0.6 {
			return SignalHealth{
				FundCode:      fundCode,
				PenaltyFactor: 0.5,
				Reason: fmt.Sprintf("ping-pong pattern (%d/%d alternating, %d/%d wrong)",
					alternating, len(directions), wrongCount, len(validated)),
			}
		}
	}

	// Anti-pattern 3: inflated confidence — high-confidence calls with
	// a sub-40% win rate.
	var highConf []store.SignalValidation
	for _, r := range validated {
		if r.Confidence >= 0.6 {
			highConf = append(highConf, r)
		}
	}
	if len(highConf) >= 3 {
		highCorrect := 0
		for _, r := range highConf {
			if r.IsCorrect30d.Bool {
				highCorrect++
			}
		}
		winRate := float64(highCorrect) / float64(len(highConf))
		if winRate < 0.4 {
			return SignalHealth{
				FundCode:      fundCode,
				PenaltyFactor: 0.6,
				Reason: fmt.Sprintf("high-confidence win rate only %.0f%% (%d/%d)",
					winRate*100, highCorrect, len(highConf)),
			}
		}
	}

	return health
}

// applyGuard degrades or removes composite signals for funds with an
// unhealthy recent record.
func (g *guard) applyGuard(signals []strategy.Signal) []strategy.Signal {
	if len(signals) == 0 {
		return signals
	}
	guarded := signals[:0:0]
	for _, sig := range signals {
		health := g.check(sig.FundCode)
		if health.Suppressed {
			logger.Infof("signal guard: %s suppressed — %s", sig.FundCode, health.Reason)
			metrics.SignalsSuppressed.Inc()
			continue
		}
		if health.PenaltyFactor < 1.0 {
			original := sig.Confidence
			sig.Confidence = math.Round(sig.Confidence*health.PenaltyFactor*100) / 100
			sig.Reason += fmt.Sprintf("\n[signal_guard] confidence degraded %.2f -> %.2f (%s)",
				original, sig.Confidence, health.Reason)
			logger.Infof("signal guard: %s degraded x%.1f — %s", sig.FundCode, health.PenaltyFactor, health.Reason)
		}
		guarded = append(guarded, sig)
	}
	return guarded
}
