package scenario

import (
	"github.com/seenimoa/creditpulse/internal/portfolio"
)

// StressedRow is one bond of a stressed view. The original spread and rate
// are carried unchanged next to their stressed counterparts.
type StressedRow struct {
	portfolio.Row

	StressedSpread *float64 `json:"stressed_spread,omitempty"`
	StressedRate   *float64 `json:"stressed_rate,omitempty"`

	// PriceImpact is the second-order relative price change for the
	// combined yield move.
	PriceImpact float64 `json:"price_impact"`
}

// Stressed is a derived view of a portfolio under one scenario.
type Stressed struct {
	Scenario Scenario      `json:"scenario"`
	Known    bool          `json:"known"`
	Source   string        `json:"source"`
	Rows     []StressedRow `json:"rows"`

	// YieldMove is the sum of the defined shocks, as a decimal fraction.
	YieldMove          float64 `json:"yield_move"`
	AveragePriceImpact float64 `json:"average_price_impact"`
}

// Row returns the stressed row for a bond id.
func (s *Stressed) Row(id string) (StressedRow, bool) {
	for _, r := range s.Rows {
		if r.Bond == id {
			return r, true
		}
	}
	return StressedRow{}, false
}

// Apply stresses p with the named scenario. An unknown name applies no
// shock. A spread shock needs a spread column; otherwise a
// *portfolio.SchemaError is returned. p is never modified.
func (c *Catalog) Apply(p *portfolio.Portfolio, name string) (*Stressed, error) {
	sc, known := c.Lookup(name)
	return ApplyScenario(p, sc, known)
}

// ApplyScenario stresses p with an explicit scenario.
func ApplyScenario(p *portfolio.Portfolio, sc Scenario, known bool) (*Stressed, error) {
	if p == nil {
		p = &portfolio.Portfolio{}
	}
	if sc.SpreadShock != nil && !p.HasColumn(portfolio.ColSpread) {
		return nil, &portfolio.SchemaError{Source: p.Source, Missing: []string{portfolio.ColSpread}}
	}

	src := p.Clone()
	out := &Stressed{
		Scenario:  sc.copy(),
		Known:     known,
		Source:    src.Source,
		Rows:      make([]StressedRow, 0, len(src.Rows)),
		YieldMove: shockValue(sc.SpreadShock) + shockValue(sc.RateShock),
	}

	var total float64
	for _, r := range src.Rows {
		sr := StressedRow{Row: r}
		if sc.SpreadShock != nil && r.Spread != nil {
			sr.StressedSpread = Shock(*r.Spread + *sc.SpreadShock)
		}
		if sc.RateShock != nil {
			sr.StressedRate = Shock(shockValue(r.Rate) + *sc.RateShock)
		}
		sr.PriceImpact = PriceImpact(r.Duration, r.Convexity, out.YieldMove)
		total += sr.PriceImpact
		out.Rows = append(out.Rows, sr)
	}
	if n := len(out.Rows); n > 0 {
		out.AveragePriceImpact = total / float64(n)
	}
	return out, nil
}

// PriceImpact approximates the relative price change of a bond with the
// given duration and convexity for a yield move dy.
func PriceImpact(duration, convexity, dy float64) float64 {
	return -duration*dy + 0.5*convexity*dy*dy
}

func shockValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
