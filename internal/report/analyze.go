package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/alert"
	"github.com/seenimoa/creditpulse/internal/contagion"
	"github.com/seenimoa/creditpulse/internal/insight"
	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/internal/scenario"
)

// Input is everything a report shows about one portfolio. Build it with
// Analyze or fill it directly.
type Input struct {
	GeneratedAt time.Time `json:"generated_at"`
	Bonds       int       `json:"bonds"`

	Summary portfolio.Summary        `json:"summary"`
	Impacts []contagion.ImpactReport `json:"impacts,omitempty"`
	// GraphError is set when the contagion graph could not be built.
	GraphError string `json:"graph_error,omitempty"`

	Scenarios      []*scenario.Stressed `json:"scenarios,omitempty"`
	ScenarioErrors []string             `json:"scenario_errors,omitempty"`

	Moves    []Move         `json:"moves,omitempty"`
	Breaches []alert.Breach `json:"breaches,omitempty"`

	Liquidity []portfolio.LiquidityRow `json:"liquidity,omitempty"`
	Insights  []insight.Report         `json:"insights,omitempty"`
}

// Move is the abnormal-move score of one bond. Scoring here never notifies.
type Move struct {
	BondID   string  `json:"bond_id"`
	ZScore   float64 `json:"z_score"`
	Abnormal bool    `json:"abnormal"`
}

// Options selects what Analyze computes.
type Options struct {
	Catalog   *scenario.Catalog // default: scenario.DefaultCatalog()
	Scenarios []string          // default: every catalog entry

	Threshold float64 // z-score threshold; default alert.DefaultThreshold
	BreachBps float64 // default alert.DefaultBreachBps

	SimulateLiquidity bool
	Seed              uint64

	Insights *insight.Generator // nil skips insights
	Logger   *zap.Logger
	Now      func() time.Time
}

// Analyze computes every report section for p. A failing section is
// recorded in the input and the others still compute.
func Analyze(ctx context.Context, p *portfolio.Portfolio, opts Options) *Input {
	log := logging.OrNop(opts.Logger)
	if opts.Catalog == nil {
		opts.Catalog = scenario.DefaultCatalog()
	}
	if len(opts.Scenarios) == 0 {
		opts.Scenarios = opts.Catalog.Names()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = alert.DefaultThreshold
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	in := &Input{
		GeneratedAt: now(),
		Bonds:       p.Len(),
		Summary:     portfolio.Summarize(p),
	}

	// ── Contagion ──
	if eng, err := contagion.FromPortfolio(p); err != nil {
		in.GraphError = err.Error()
		log.Warn("contagion graph unavailable", zap.String("source", p.Source), zap.Error(err))
	} else {
		for _, sector := range p.Sectors() {
			in.Impacts = append(in.Impacts, eng.Impact(sector))
		}
	}

	// ── Scenarios ──
	for _, name := range opts.Scenarios {
		st, err := opts.Catalog.Apply(p, name)
		if err != nil {
			in.ScenarioErrors = append(in.ScenarioErrors, name+": "+err.Error())
			continue
		}
		in.Scenarios = append(in.Scenarios, st)
	}

	// ── Alerts ──
	recs := p.Records()
	for _, rec := range recs {
		if len(rec.SpreadHistory) == 0 || rec.LatestSpread == nil {
			continue
		}
		abnormal, z := alert.IsAbnormalMove(rec.SpreadHistory, *rec.LatestSpread, opts.Threshold)
		in.Moves = append(in.Moves, Move{BondID: rec.ID, ZScore: z, Abnormal: abnormal})
	}
	if p.HasColumn(portfolio.ColSpread) {
		in.Breaches = alert.Breaches(recs, opts.BreachBps)
	}

	// ── Liquidity & insights ──
	in.Liquidity = portfolio.Liquidity(p, opts.SimulateLiquidity, opts.Seed)
	if opts.Insights != nil {
		for _, row := range p.Rows {
			if err := ctx.Err(); err != nil {
				log.Warn("insights cut short", zap.Error(err))
				break
			}
			rep := opts.Insights.Insights(ctx, row.Bond, row.Issuer)
			if len(rep.Explanations) > 0 {
				in.Insights = append(in.Insights, rep)
			}
		}
	}
	return in
}
