package decision

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundpilot/store"
	"fundpilot/strategy"
)

func guardStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

// seedValidations writes n composite validations for fund, newest last,
// each with the given type/confidence/correctness.
func seedValidations(t *testing.T, s *store.Store, fund string, specs []struct {
	sigType    string
	confidence float64
	correct    bool
}) {
	t.Helper()
	base := fixedNow().AddDate(0, 0, -len(specs)-5)
	for i, spec := range specs {
		date := base.AddDate(0, 0, i).Format("2006-01-02")
		require.NoError(t, s.RecordSignal(date, fund, "composite", spec.sigType, spec.confidence, "ranging", 1.0))
		// Fill the 30d outcome directly.
		rows, err := s.RecentCompositeValidations(fund, 365, 100, fixedNow())
		require.NoError(t, err)
		for _, row := range rows {
			if row.SignalDate == date && !row.IsCorrect30d.Valid {
				require.NoError(t, s.FillValidation(row.ID, 30, 1.0, 0, spec.correct, fixedNow()))
			}
		}
	}
}

func TestGuardSuppressesAfterFiveWrongStreak(t *testing.T) {
	s := guardStore(t)
	specs := make([]struct {
		sigType    string
		confidence float64
		correct    bool
	}, 5)
	for i := range specs {
		specs[i] = struct {
			sigType    string
			confidence float64
			correct    bool
		}{"buy", 0.7, false}
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	signals := []strategy.Signal{{FundCode: "F1", Type: strategy.Buy, Confidence: 0.7, StrategyName: "composite"}}
	out := gd.applyGuard(signals)
	assert.Empty(t, out, "5 consecutive wrong buys suppress the signal entirely")
}

func TestGuardPenalizesAfterThreeWrongStreak(t *testing.T) {
	s := guardStore(t)
	specs := make([]struct {
		sigType    string
		confidence float64
		correct    bool
	}, 3)
	for i := range specs {
		specs[i] = struct {
			sigType    string
			confidence float64
			correct    bool
		}{"buy", 0.7, false}
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	out := gd.applyGuard([]strategy.Signal{{FundCode: "F1", Type: strategy.Buy, Confidence: 0.8, StrategyName: "composite"}})
	require.Len(t, out, 1)
	assert.InDelta(t, 0.24, out[0].Confidence, 1e-9, "0.8 x 0.3 penalty")
	assert.Contains(t, out[0].Reason, "[signal_guard]")
}

func TestGuardInflatedConfidence(t *testing.T) {
	s := guardStore(t)
	// Alternate correctness so no wrong streak forms, but high-confidence
	// win rate is 1/4 = 25% < 40%.
	specs := []struct {
		sigType    string
		confidence float64
		correct    bool
	}{
		{"buy", 0.8, false},
		{"buy", 0.9, true},
		{"buy", 0.7, false},
		{"buy", 0.8, false},
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	health := gd.check("F1")
	// Newest record is wrong, so either the streak rule (if 3 in a row
	// formed) or the inflated-confidence rule fires; both degrade.
	assert.Less(t, health.PenaltyFactor, 1.0)
}

func TestGuardCleanRecordPasses(t *testing.T) {
	s := guardStore(t)
	specs := []struct {
		sigType    string
		confidence float64
		correct    bool
	}{
		{"buy", 0.7, true},
		{"buy", 0.7, true},
		{"buy", 0.7, true},
		{"buy", 0.7, false},
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	out := gd.applyGuard([]strategy.Signal{{FundCode: "F1", Type: strategy.Buy, Confidence: 0.7, StrategyName: "composite"}})
	require.Len(t, out, 1)
	assert.InDelta(t, 0.7, out[0].Confidence, 1e-9)
}

func TestGuardTooFewRecordsPasses(t *testing.T) {
	s := guardStore(t)
	seedValidations(t, s, "F1", []struct {
		sigType    string
		confidence float64
		correct    bool
	}{{"buy", 0.7, false}, {"buy", 0.7, false}})

	gd := &guard{store: s, now: fixedNow}
	health := gd.check("F1")
	assert.InDelta(t, 1.0, health.PenaltyFactor, 1e-9)
	assert.False(t, health.Suppressed)
}

func TestGuardPingPong(t *testing.T) {
	s := guardStore(t)
	var specs []struct {
		sigType    string
		confidence float64
		correct    bool
	}
	// buy/sell alternation, mostly wrong; newest record correct so the
	// consecutive-wrong rule cannot fire first.
	for i := 0; i < 6; i++ {
		sigType := "buy"
		if i%2 == 1 {
			sigType = "sell"
		}
		specs = append(specs, struct {
			sigType    string
			confidence float64
			correct    bool
		}{sigType, 0.5, i == 5})
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	health := gd.check("F1")
	assert.InDelta(t, 0.5, health.PenaltyFactor, 1e-9)
	assert.Contains(t, health.Reason, "ping-pong")
}

func TestGuardOnlyTouchesListedFund(t *testing.T) {
	s := guardStore(t)
	specs := make([]struct {
		sigType    string
		confidence float64
		correct    bool
	}, 5)
	for i := range specs {
		specs[i] = struct {
			sigType    string
			confidence float64
			correct    bool
		}{"buy", 0.7, false}
	}
	seedValidations(t, s, "F1", specs)

	gd := &guard{store: s, now: fixedNow}
	out := gd.applyGuard([]strategy.Signal{
		{FundCode: "F1", Type: strategy.Buy, Confidence: 0.7, StrategyName: "composite"},
		{FundCode: "F2", Type: strategy.Buy, Confidence: 0.6, StrategyName: "composite"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "F2", out[0].FundCode)
}

func TestGuardReasonMentionsStreakLength(t *testing.T) {
	s := guardStore(t)
	specs := make([]struct {
		sigType    string
		confidence float64
		correct    bool
	}, 4)
	for i := range specs {
		specs[i] = struct {
			sigType    string
			confidence float64
			correct    bool
		}{"sell", 0.7, false}
	}
	seedValidations(t, s, "F9", specs)

	gd := &guard{store: s, now: fixedNow}
	health := gd.check("F9")
	assert.Contains(t, health.Reason, fmt.Sprintf("%d consecutive", 4))
}
