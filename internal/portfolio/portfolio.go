// Package portfolio loads tabular bond portfolios and computes aggregate,
// sector and concentration risk statistics over them.
//
// Load is the only I/O boundary. Every statistic is returned as a Result so
// that one failing computation does not prevent the rest of a report from
// rendering.
package portfolio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/creditpulse/pkg/models"
)

// Canonical column names after normalization.
const (
	ColBond              = "bond"
	ColSector            = "sector"
	ColDuration          = "duration"
	ColConvexity         = "convexity"
	ColVaR               = "var"
	ColExpectedShortfall = "expectedshortfall"

	ColIssuer        = "issuer"
	ColRating        = "rating"
	ColSpread        = "spread"
	ColRate          = "rate"
	ColYield         = "yield"
	ColCashFlows     = "cash_flows"
	ColSpreadHistory = "spread_history"
)

// RequiredColumns lists the columns every portfolio must carry, in the
// order SchemaError reports them.
var RequiredColumns = []string{
	ColBond, ColSector, ColDuration, ColConvexity, ColVaR, ColExpectedShortfall,
}

// Row is one bond of a portfolio.
type Row struct {
	Bond              string        `json:"bond"`
	Sector            string        `json:"sector"`
	Issuer            string        `json:"issuer,omitempty"`
	Rating            models.Rating `json:"rating,omitempty"`
	Duration          float64       `json:"duration"`
	Convexity         float64       `json:"convexity"`
	VaR               float64       `json:"var"`
	ExpectedShortfall float64       `json:"expected_shortfall"`

	Spread *float64 `json:"spread,omitempty"` // bps
	Rate   *float64 `json:"rate,omitempty"`
	Yield  *float64 `json:"yield,omitempty"`

	CashFlows     []float64 `json:"cash_flows,omitempty"`
	SpreadHistory []float64 `json:"spread_history,omitempty"`

	// Extra holds every non-recognized column, untouched.
	Extra map[string]string `json:"extra,omitempty"`
}

// Portfolio is an ordered, schema-checked collection of bond rows.
type Portfolio struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"` // normalized, in file order
	Rows    []Row    `json:"rows"`
}

// Len returns the number of bonds.
func (p *Portfolio) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}

// HasColumn reports whether the normalized column was present at load.
func (p *Portfolio) HasColumn(name string) bool {
	name = normalizeColumn(name)
	for _, c := range p.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Row returns the row for a bond id.
func (p *Portfolio) Row(bondID string) (Row, bool) {
	for _, r := range p.Rows {
		if r.Bond == bondID {
			return r, true
		}
	}
	return Row{}, false
}

// BondIDs returns the bond identifiers in portfolio order.
func (p *Portfolio) BondIDs() []string {
	ids := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		ids[i] = r.Bond
	}
	return ids
}

// Sectors returns the distinct sector names, sorted.
func (p *Portfolio) Sectors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p.Rows {
		if !seen[r.Sector] {
			seen[r.Sector] = true
			out = append(out, r.Sector)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy, so derived views never alias the source rows.
func (p *Portfolio) Clone() *Portfolio {
	out := &Portfolio{
		Source:  p.Source,
		Columns: append([]string(nil), p.Columns...),
		Rows:    make([]Row, len(p.Rows)),
	}
	for i, r := range p.Rows {
		out.Rows[i] = r.clone()
	}
	return out
}

func (r Row) clone() Row {
	c := r
	c.Spread = clonePtr(r.Spread)
	c.Rate = clonePtr(r.Rate)
	c.Yield = clonePtr(r.Yield)
	c.CashFlows = append([]float64(nil), r.CashFlows...)
	c.SpreadHistory = append([]float64(nil), r.SpreadHistory...)
	if r.Extra != nil {
		c.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

// Records converts the rows into bond records for the metrics calculator
// and the graph builder.
func (p *Portfolio) Records() []models.BondRecord {
	out := make([]models.BondRecord, 0, len(p.Rows))
	for _, r := range p.Rows {
		rec := models.BondRecord{
			ID:            r.Bond,
			Issuer:        r.Issuer,
			Sector:        r.Sector,
			Rating:        r.Rating,
			CashFlows:     append([]float64(nil), r.CashFlows...),
			SpreadHistory: append([]float64(nil), r.SpreadHistory...),
		}
		if len(r.CashFlows) == 0 {
			rec.CashFlows = nil
		}
		if r.Yield != nil {
			rec.Yield = *r.Yield
		}
		if r.Spread != nil {
			rec.Spread = *r.Spread
			latest := *r.Spread
			rec.LatestSpread = &latest
		}
		out = append(out, rec)
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Errors
// ════════════════════════════════════════════════════════════════════

// SchemaError is returned when required columns are missing after header
// normalization.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("portfolio %s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// ParseError is returned when the source is unreadable or a cell cannot be
// interpreted.
type ParseError struct {
	Source string
	Line   int    // 1-based line in the source, 0 when not row specific
	Column string // normalized column, empty when not cell specific
	Bond   string // bond id of the offending row, when known
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "portfolio %s", e.Source)
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Bond != "" {
		fmt.Fprintf(&b, " bond %q", e.Bond)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }
