package portfolio

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Liquidity columns read from Extra when the source carries them.
const (
	ColBidAskSpread  = "bid_ask_spread"
	ColTradingVolume = "trading_volume"
)

// LiquidityRow is the liquidity profile of one bond.
type LiquidityRow struct {
	Bond          string  `json:"bond"`
	BidAskSpread  float64 `json:"bid_ask_spread"`
	TradingVolume int64   `json:"trading_volume"`
	Available     bool    `json:"available"`
	Simulated     bool    `json:"simulated"`
}

// Liquidity reports bid-ask spread and trading volume per bond. Values come
// from the bid_ask_spread and trading_volume columns; a missing value is
// simulated (spread uniform in [0.1, 2.0), volume in [1000, 100000)) when
// simulate is set, and reported unavailable otherwise.
func Liquidity(p *Portfolio, simulate bool, seed uint64) []LiquidityRow {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]LiquidityRow, 0, p.Len())
	for _, r := range p.Rows {
		lr := LiquidityRow{Bond: r.Bond}
		spread, okSpread := extraFloat(r.Extra, ColBidAskSpread)
		volume, okVolume := extraFloat(r.Extra, ColTradingVolume)

		switch {
		case okSpread && okVolume:
			lr.BidAskSpread, lr.TradingVolume, lr.Available = spread, int64(volume), true
		case simulate:
			lr.BidAskSpread = spread
			if !okSpread {
				lr.BidAskSpread = 0.1 + rng.Float64()*1.9
			}
			lr.TradingVolume = int64(volume)
			if !okVolume {
				lr.TradingVolume = 1000 + rng.Int64N(99000)
			}
			lr.Available, lr.Simulated = true, true
		}
		out = append(out, lr)
	}
	return out
}

func extraFloat(extra map[string]string, col string) (float64, bool) {
	v, ok := extra[col]
	if !ok {
		return 0, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return x, true
}
