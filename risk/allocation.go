package risk

import (
	"fmt"
	"math"

	"fundpilot/market"
)

// Hard allocation limits. These hold after any advisory application;
// clamping is always the last step.
const (
	EquityMaxPct = 0.70
	CashMinPct   = 0.20
	BondMinPct   = 0.10
)

// TargetAllocation is the planned asset mix.
type TargetAllocation struct {
	Equity float64
	Bond   float64
	Cash   float64
}

type valuationAdjustment struct {
	low, high              float64
	equity, bond, cashDelta float64
}

// Valuation adjustments layered on the regime baseline, symmetric
// redistribution between bond and cash.
var valuationAdjustments = []valuationAdjustment{
	{0, 20, +0.10, -0.05, -0.05},
	{20, 30, +0.05, -0.03, -0.02},
	{70, 80, -0.05, +0.03, +0.02},
	{80, 100, -0.10, +0.05, +0.05},
}

// TargetAllocationFor computes the regime baseline, applies the PE
// percentile adjustment, clamps to the hard limits and renormalizes to
// sum exactly 1.
func TargetAllocationFor(regime string, pePercentile float64) TargetAllocation {
	base := market.RegimeAllocation(regime)
	t := TargetAllocation{Equity: base.EquityPct, Bond: base.BondPct, Cash: base.CashPct}

	for _, adj := range valuationAdjustments {
		if pePercentile >= adj.low && pePercentile < adj.high {
			t.Equity += adj.equity
			t.Bond += adj.bond
			t.Cash += adj.cashDelta
			break
		}
	}

	t.Equity = math.Min(t.Equity, EquityMaxPct)
	t.Cash = math.Max(t.Cash, CashMinPct)
	t.Bond = math.Max(t.Bond, BondMinPct)

	total := t.Equity + t.Bond + t.Cash
	if total != 1.0 && total > 0 {
		t.Equity = round3(t.Equity / total)
		t.Bond = round3(t.Bond / total)
		t.Cash = round3(1.0 - t.Equity - t.Bond)
	}
	return t
}

// CurrentAllocation is the realized asset mix.
type CurrentAllocation struct {
	Equity      float64
	Bond        float64
	Cash        float64
	EquityValue float64
	BondValue   float64
	CashValue   float64
	TotalValue  float64
}

// HoldingValue is one position with its category for allocation math.
type HoldingValue struct {
	FundCode string
	Category string
	Value    float64
}

// ComputeCurrentAllocation splits holdings plus cash into the three
// allocation buckets. Gold/QDII count toward equity risk.
func ComputeCurrentAllocation(holdings []HoldingValue, cash float64) CurrentAllocation {
	var equityValue, bondValue float64
	for _, h := range holdings {
		if h.Category == "bond" {
			bondValue += h.Value
		} else {
			equityValue += h.Value
		}
	}
	total := cash + equityValue + bondValue
	if total <= 0 {
		return CurrentAllocation{Cash: 1.0, CashValue: cash, TotalValue: cash}
	}
	return CurrentAllocation{
		Equity:      round3(equityValue / total),
		Bond:        round3(bondValue / total),
		Cash:        round3(cash / total),
		EquityValue: equityValue,
		BondValue:   bondValue,
		CashValue:   cash,
		TotalValue:  total,
	}
}

// MaxEquityAmount returns the headroom in RMB before equity exposure
// hits the ceiling: target + 5%, never past the hard cap.
func MaxEquityAmount(totalValue float64, regime string, pePercentile float64, current CurrentAllocation) float64 {
	target := TargetAllocationFor(regime, pePercentile)
	maxEquityPct := math.Min(target.Equity+0.05, EquityMaxPct)
	available := totalValue*maxEquityPct - current.EquityValue
	if available < 0 {
		return 0
	}
	return math.Round(available*100) / 100
}

// ComplianceReport lists hard-limit violations of the current mix.
type ComplianceReport struct {
	Compliant  bool
	Target     TargetAllocation
	Current    CurrentAllocation
	Violations []string
}

// CheckCompliance compares the realized mix against the hard limits.
func CheckCompliance(regime string, pePercentile float64, current CurrentAllocation) ComplianceReport {
	report := ComplianceReport{
		Target:  TargetAllocationFor(regime, pePercentile),
		Current: current,
	}
	if current.Equity > EquityMaxPct {
		report.Violations = append(report.Violations,
			fmt.Sprintf("equity %.0f%% above the %.0f%% cap", current.Equity*100, EquityMaxPct*100))
	}
	if current.Cash < CashMinPct {
		report.Violations = append(report.Violations,
			fmt.Sprintf("cash %.0f%% below the %.0f%% floor", current.Cash*100, CashMinPct*100))
	}
	if current.Bond < BondMinPct {
		report.Violations = append(report.Violations,
			fmt.Sprintf("bond %.0f%% below the %.0f%% floor", current.Bond*100, BondMinPct*100))
	}
	report.Compliant = len(report.Violations) == 0
	return report
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
