package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ════════════════════════════════════════════════════════════════════
// Results
// ════════════════════════════════════════════════════════════════════

// Result carries either a computed statistic or the error that prevented it.
type Result[T any] struct {
	Value T     `json:"value"`
	Err   error `json:"-"`
}

// OK reports whether the statistic was computed.
func (r Result[T]) OK() bool { return r.Err == nil }

// ErrorMessage returns the failure text, or "" on success.
func (r Result[T]) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON renders {"value": ...} on success and {"error": "..."} on
// failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Error()})
	}
	return json.Marshal(struct {
		Value T `json:"value"`
	}{r.Value})
}

// AggregationError reports that one portfolio statistic failed.
type AggregationError struct {
	Statistic string
	Err       error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("could not calculate %s: %v", e.Statistic, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// ErrEmptyPortfolio is wrapped when a statistic needs at least one bond.
var ErrEmptyPortfolio = errors.New("portfolio has no bonds")

// compute runs fn and converts both returned errors and panics into an
// AggregationError for the named statistic.
func compute[T any](statistic string, p *Portfolio, fn func(*Portfolio) (T, error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result[T]{Err: &AggregationError{Statistic: statistic, Err: fmt.Errorf("panic: %v", rec)}}
		}
	}()
	if p == nil {
		return Result[T]{Err: &AggregationError{Statistic: statistic, Err: errors.New("portfolio is nil")}}
	}
	v, err := fn(p)
	if err != nil {
		return Result[T]{Err: &AggregationError{Statistic: statistic, Err: err}}
	}
	return Result[T]{Value: v}
}

// ════════════════════════════════════════════════════════════════════
// Aggregate Metrics
// ════════════════════════════════════════════════════════════════════

// Totals are the portfolio-wide sums of the per-bond risk columns.
type Totals struct {
	Bonds                  int     `json:"bonds"`
	TotalDuration          float64 `json:"total_duration"`
	TotalConvexity         float64 `json:"total_convexity"`
	TotalVaR               float64 `json:"portfolio_var"`
	TotalExpectedShortfall float64 `json:"portfolio_expected_shortfall"`
}

// AggregateMetrics sums duration, convexity, VaR and expected shortfall over
// every row. Sums are accumulated in decimal to keep them order independent.
func AggregateMetrics(p *Portfolio) Result[Totals] {
	return compute("aggregate metrics", p, func(p *Portfolio) (Totals, error) {
		var dur, conv, v, es decimal.Decimal
		for _, r := range p.Rows {
			dur = dur.Add(decimal.NewFromFloat(r.Duration))
			conv = conv.Add(decimal.NewFromFloat(r.Convexity))
			v = v.Add(decimal.NewFromFloat(r.VaR))
			es = es.Add(decimal.NewFromFloat(r.ExpectedShortfall))
		}
		return Totals{
			Bonds:                  len(p.Rows),
			TotalDuration:          dur.InexactFloat64(),
			TotalConvexity:         conv.InexactFloat64(),
			TotalVaR:               v.InexactFloat64(),
			TotalExpectedShortfall: es.InexactFloat64(),
		}, nil
	})
}

// ════════════════════════════════════════════════════════════════════
// Sector Exposure
// ════════════════════════════════════════════════════════════════════

// SectorStat is the exposure of one sector.
type SectorStat struct {
	BondCount   int     `json:"bond_count"`
	DurationSum float64 `json:"duration"`
	VaRSum      float64 `json:"var"`
}

// SectorExposure groups rows by sector and reports bond count, summed
// duration and summed VaR.
func SectorExposure(p *Portfolio) Result[map[string]SectorStat] {
	return compute("sector exposure", p, func(p *Portfolio) (map[string]SectorStat, error) {
		type acc struct {
			n       int
			dur, vr decimal.Decimal
		}
		groups := make(map[string]*acc)
		for _, r := range p.Rows {
			g, ok := groups[r.Sector]
			if !ok {
				g = &acc{}
				groups[r.Sector] = g
			}
			g.n++
			g.dur = g.dur.Add(decimal.NewFromFloat(r.Duration))
			g.vr = g.vr.Add(decimal.NewFromFloat(r.VaR))
		}
		out := make(map[string]SectorStat, len(groups))
		for s, g := range groups {
			out[s] = SectorStat{
				BondCount:   g.n,
				DurationSum: g.dur.InexactFloat64(),
				VaRSum:      g.vr.InexactFloat64(),
			}
		}
		return out, nil
	})
}

// ════════════════════════════════════════════════════════════════════
// Concentration Risk
// ════════════════════════════════════════════════════════════════════

// ConcentrationRisk returns each sector's share of the bond count. Shares
// lie in [0,1] and sum to 1.
func ConcentrationRisk(p *Portfolio) Result[map[string]float64] {
	return compute("concentration risk", p, func(p *Portfolio) (map[string]float64, error) {
		if len(p.Rows) == 0 {
			return nil, ErrEmptyPortfolio
		}
		counts := make(map[string]int)
		for _, r := range p.Rows {
			counts[r.Sector]++
		}
		total := float64(len(p.Rows))
		out := make(map[string]float64, len(counts))
		for s, n := range counts {
			out[s] = float64(n) / total
		}
		return out, nil
	})
}

// SectorShare is one entry of a concentration ranking.
type SectorShare struct {
	Sector string  `json:"sector"`
	Share  float64 `json:"share"`
}

// Ranked orders concentration shares from largest to smallest, ties by name.
func Ranked(shares map[string]float64) []SectorShare {
	out := make([]SectorShare, 0, len(shares))
	for s, v := range shares {
		out = append(out, SectorShare{Sector: s, Share: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Share != out[j].Share {
			return out[i].Share > out[j].Share
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// ════════════════════════════════════════════════════════════════════
// Summary
// ════════════════════════════════════════════════════════════════════

// Summary bundles every portfolio statistic. Each field fails independently.
type Summary struct {
	Source        string                        `json:"source"`
	Aggregate     Result[Totals]                `json:"aggregate"`
	Sectors       Result[map[string]SectorStat] `json:"sectors"`
	Concentration Result[map[string]float64]    `json:"concentration"`
}

// Summarize computes every statistic of p.
func Summarize(p *Portfolio) Summary {
	s := Summary{
		Aggregate:     AggregateMetrics(p),
		Sectors:       SectorExposure(p),
		Concentration: ConcentrationRisk(p),
	}
	if p != nil {
		s.Source = p.Source
	}
	return s
}

// Errors returns the failures of the summary, in display order.
func (s Summary) Errors() []error {
	var errs []error
	for _, err := range []error{s.Aggregate.Err, s.Sectors.Err, s.Concentration.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
