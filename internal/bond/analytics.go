package bond

import (
	"slices"

	"github.com/seenimoa/creditpulse/pkg/models"
)

// DefaultCashFlows is the schedule assumed when a record carries none:
// two 5% coupons and a final coupon plus principal.
var DefaultCashFlows = []float64{5, 5, 105}

// Analytics bundles the metrics of a single bond. A metric that failed
// carries its error and a zero value; the others are still populated.
type Analytics struct {
	BondID           string     `json:"bond_id"`
	Duration         float64    `json:"duration"`
	ModifiedDuration float64    `json:"modified_duration"`
	Convexity        float64    `json:"convexity"`
	CreditRisk       CreditRisk `json:"credit_risk"`
	DurationErr      error      `json:"-"`
	ConvexityErr     error      `json:"-"`
}

// OK reports whether every metric computed.
func (a Analytics) OK() bool {
	return a.DurationErr == nil && a.ConvexityErr == nil
}

// Analyze computes duration, modified duration, convexity and credit risk
// for rec at ratePct. convexityRatePct is used for convexity; pass ratePct
// for a consistent curve.
func Analyze(rec models.BondRecord, ratePct, convexityRatePct float64) Analytics {
	cfs := rec.CashFlows
	if cfs == nil {
		cfs = DefaultCashFlows
	}

	a := Analytics{
		BondID:     rec.ID,
		CreditRisk: ClassifyCredit(rec.Rating),
	}

	a.Duration, a.DurationErr = Duration(cfs, ratePct)
	if a.DurationErr == nil {
		a.ModifiedDuration, a.DurationErr = ModifiedDuration(a.Duration, ratePct)
	}
	a.Convexity, a.ConvexityErr = Convexity(cfs, convexityRatePct)
	return a
}

// AnalyzeLegacy is Analyze with convexity discounted by LegacyConvexity,
// for comparison against historical reports.
func AnalyzeLegacy(rec models.BondRecord, ratePct float64) Analytics {
	a := Analyze(rec, ratePct, ratePct)
	cfs := rec.CashFlows
	if cfs == nil {
		cfs = DefaultCashFlows
	}
	a.Convexity, a.ConvexityErr = LegacyConvexity(cfs)
	return a
}

// ShiftCurve returns a copy of points with a parallel shift, in percentage
// points, applied to every rate.
func ShiftCurve(points []models.CurvePoint, shift float64) []models.CurvePoint {
	rates := make([]float64, len(points))
	for i, pt := range points {
		rates[i] = pt.Rate
	}
	out := slices.Clone(points)
	for i, r := range YieldCurveShift(rates, shift) {
		out[i].Rate = r
	}
	return out
}
