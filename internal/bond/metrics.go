// Package bond implements per-bond fixed-income metrics: Macaulay duration,
// convexity, modified duration and a coarse credit-risk classification.
// All functions are pure and operate on a cash-flow schedule indexed by
// period (index t is paid at period t+1).
package bond

import (
	"fmt"
	"math"

	"github.com/seenimoa/creditpulse/pkg/models"
)

// LegacyConvexityRatePct is the fixed discount rate the dashboard used for
// convexity regardless of the rate supplied for duration.
const LegacyConvexityRatePct = 5.0

// DomainError reports degenerate discount math for a single metric.
type DomainError struct {
	Metric string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Metric, e.Reason)
}

// ════════════════════════════════════════════════════════════════════
// Duration & Convexity
// ════════════════════════════════════════════════════════════════════

// Duration returns the Macaulay duration in periods, rounded to 2 dp.
// ratePct is the per-period discount rate in percent (5 means 5%).
func Duration(cashflows []float64, ratePct float64) (float64, error) {
	r, err := checkInputs("duration", cashflows, ratePct)
	if err != nil {
		return 0, err
	}

	var weighted, pv float64
	for t, cf := range cashflows {
		df := math.Pow(1+r, float64(t+1))
		weighted += float64(t+1) * cf / df
		pv += cf / df
	}
	if pv == 0 {
		return 0, &DomainError{Metric: "duration", Reason: "total present value of cash flows is zero"}
	}
	return round2(weighted / pv), nil
}

// Convexity returns Σ (t+1)(t+2)·CF/(1+r)^(t+3) divided by the present value,
// rounded to 2 dp. ratePct is in percent.
func Convexity(cashflows []float64, ratePct float64) (float64, error) {
	r, err := checkInputs("convexity", cashflows, ratePct)
	if err != nil {
		return 0, err
	}

	var num, pv float64
	for t, cf := range cashflows {
		k := float64(t + 1)
		num += k * (k + 1) * cf / math.Pow(1+r, k+2)
		pv += cf / math.Pow(1+r, k)
	}
	if pv == 0 {
		return 0, &DomainError{Metric: "convexity", Reason: "total present value of cash flows is zero"}
	}
	return round2(num / pv), nil
}

// LegacyConvexity evaluates convexity at LegacyConvexityRatePct.
//
// Deprecated: the legacy dashboard discounted convexity at a fixed 5% while
// duration used the caller's rate. Use Convexity with the same rate as
// Duration; this exists to reproduce historical reports.
func LegacyConvexity(cashflows []float64) (float64, error) {
	return Convexity(cashflows, LegacyConvexityRatePct)
}

// ModifiedDuration converts a Macaulay duration into modified duration.
func ModifiedDuration(macaulay, ratePct float64) (float64, error) {
	r := ratePct / 100
	if r <= -1 {
		return 0, &DomainError{Metric: "modified duration", Reason: fmt.Sprintf("discount rate %.2f%% is not above -100%%", ratePct)}
	}
	return round2(macaulay / (1 + r)), nil
}

// YieldCurveShift returns a copy of curve with shift added to every point.
func YieldCurveShift(curve []float64, shift float64) []float64 {
	out := make([]float64, len(curve))
	for i, rate := range curve {
		out[i] = rate + shift
	}
	return out
}

func checkInputs(metric string, cashflows []float64, ratePct float64) (float64, error) {
	if len(cashflows) == 0 {
		return 0, &DomainError{Metric: metric, Reason: "cash-flow schedule is empty"}
	}
	r := ratePct / 100
	if r <= -1 {
		return 0, &DomainError{Metric: metric, Reason: fmt.Sprintf("discount rate %.2f%% is not above -100%%", ratePct)}
	}
	for t, cf := range cashflows {
		if math.IsNaN(cf) || math.IsInf(cf, 0) {
			return 0, &DomainError{Metric: metric, Reason: fmt.Sprintf("cash flow at period %d is not finite", t+1)}
		}
	}
	return r, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ════════════════════════════════════════════════════════════════════
// Credit Risk
// ════════════════════════════════════════════════════════════════════

// CreditRisk is the coarse credit bucket of a rating.
type CreditRisk string

const (
	CreditLow      CreditRisk = "Low Risk"
	CreditModerate CreditRisk = "Moderate Risk"
	CreditHigh     CreditRisk = "High Risk"
)

// ClassifyCredit maps a rating to a credit-risk bucket. Unknown ratings are
// High Risk.
func ClassifyCredit(rating models.Rating) CreditRisk {
	switch models.ParseRating(string(rating)) {
	case models.RatingAAA, models.RatingAA:
		return CreditLow
	case models.RatingA, models.RatingBBB:
		return CreditModerate
	default:
		return CreditHigh
	}
}
