package alert

import (
	"fmt"

	"github.com/seenimoa/creditpulse/pkg/models"
)

// DefaultBreachBps is the static spread threshold.
const DefaultBreachBps = 100.0

// SpreadBreach reports whether the bond's latest spread is strictly above
// thresholdBps. A non-positive threshold uses DefaultBreachBps.
func SpreadBreach(rec models.BondRecord, thresholdBps float64) bool {
	if thresholdBps <= 0 {
		thresholdBps = DefaultBreachBps
	}
	return rec.Latest() > thresholdBps
}

// Breach describes a bond above the static threshold.
type Breach struct {
	BondID    string  `json:"bond_id"`
	SpreadBps float64 `json:"spread_bps"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
}

// Breaches returns the records whose spread breaches thresholdBps, in input
// order.
func Breaches(recs []models.BondRecord, thresholdBps float64) []Breach {
	out := []Breach{}
	for _, r := range recs {
		if !SpreadBreach(r, thresholdBps) {
			continue
		}
		out = append(out, Breach{
			BondID:    r.ID,
			SpreadBps: r.Latest(),
			Subject:   fmt.Sprintf("Spread Alert: %s", r.ID),
			Body:      fmt.Sprintf("Spread for %s is %g bps.", r.ID, r.Latest()),
		})
	}
	return out
}
