// Package contagion answers "what does a shock to this sector or issuer
// touch?" over a portfolio relationship graph.
//
// An Engine wraps one immutable graph for its lifetime. Queries about nodes
// that are not in the graph return empty results rather than errors, since
// sector and issuer names typically come straight from user input.
package contagion

import (
	"sort"

	"github.com/seenimoa/creditpulse/internal/graph"
	"github.com/seenimoa/creditpulse/internal/portfolio"
)

// Path is one contagion hop from a triggering node to a neighbor.
type Path struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Level RiskLevel `json:"risk_level"`
	Color string    `json:"color"`
}

// Expander decides which hops a contagion query emits from start. It is the
// extension point for multi-hop propagation; OneHop is the contract today.
type Expander interface {
	Expand(g *graph.Graph, start string, level RiskLevel) []Path
}

// OneHop emits one path per direct neighbor of start, all at the caller's
// risk level.
type OneHop struct{}

// Expand implements Expander.
func (OneHop) Expand(g *graph.Graph, start string, level RiskLevel) []Path {
	neighbors := g.Neighbors(start)
	paths := make([]Path, 0, len(neighbors))
	for _, n := range neighbors {
		paths = append(paths, Path{From: start, To: n, Level: level, Color: level.Color()})
	}
	return paths
}

// Engine runs contagion queries against a single graph.
type Engine struct {
	g        *graph.Graph
	p        *portfolio.Portfolio // optional; enables Impact weights
	expander Expander
}

// Option configures an Engine.
type Option func(*Engine)

// WithExpander replaces the default OneHop expander.
func WithExpander(x Expander) Option {
	return func(e *Engine) { e.expander = x }
}

// New wraps g. The engine never mutates the graph.
func New(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{g: g, expander: OneHop{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FromPortfolio builds a fresh portfolio graph and wraps it. The engine keeps
// a private copy of p for Impact.
func FromPortfolio(p *portfolio.Portfolio, opts ...Option) (*Engine, error) {
	g, err := graph.BuildFromPortfolio(p)
	if err != nil {
		return nil, err
	}
	e := New(g, opts...)
	e.p = p.Clone()
	return e, nil
}

// Graph returns the wrapped graph.
func (e *Engine) Graph() *graph.Graph { return e.g }

// PropagateEvent returns the bonds directly linked to the named sector (or
// issuer), sorted. Unknown names yield an empty slice.
func (e *Engine) PropagateEvent(name string) []string {
	out := []string{}
	if t, ok := e.g.NodeType(name); !ok || t == graph.NodeBond {
		return out
	}
	for _, n := range e.g.Neighbors(name) {
		if t, _ := e.g.NodeType(n); t == graph.NodeBond {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// ContagionPaths returns the hops from start annotated with level's color.
// Unknown start nodes yield an empty slice.
func (e *Engine) ContagionPaths(start string, level RiskLevel) []Path {
	if !e.g.Has(start) {
		return []Path{}
	}
	return e.expander.Expand(e.g, start, level)
}

// ConnectedNodes returns the direct neighbors of node, of any type, sorted.
func (e *Engine) ConnectedNodes(node string) []string {
	out := append([]string{}, e.g.Neighbors(node)...)
	sort.Strings(out)
	return out
}

// ════════════════════════════════════════════════════════════════════
// Impact
// ════════════════════════════════════════════════════════════════════

// ImpactReport weighs the bonds a shock reaches against the whole portfolio.
type ImpactReport struct {
	Trigger       string   `json:"trigger"`
	AffectedBonds []string `json:"affected_bonds"`
	BondShare     float64  `json:"bond_share"`
	VaRShare      float64  `json:"var_share"`
	DurationShare float64  `json:"duration_share"`
	AffectedVaR   float64  `json:"affected_var"`
}

// Impact reports the affected bonds of trigger and, for engines built with
// FromPortfolio, their share of bond count, VaR and duration.
func (e *Engine) Impact(trigger string) ImpactReport {
	r := ImpactReport{Trigger: trigger, AffectedBonds: e.PropagateEvent(trigger)}
	if e.p == nil || e.p.Len() == 0 {
		return r
	}

	hit := make(map[string]bool, len(r.AffectedBonds))
	for _, b := range r.AffectedBonds {
		hit[b] = true
	}
	var totalVaR, totalDur, durHit float64
	for _, row := range e.p.Rows {
		totalVaR += row.VaR
		totalDur += row.Duration
		if hit[row.Bond] {
			r.AffectedVaR += row.VaR
			durHit += row.Duration
		}
	}
	r.BondShare = float64(len(r.AffectedBonds)) / float64(e.p.Len())
	if totalVaR != 0 {
		r.VaRShare = r.AffectedVaR / totalVaR
	}
	if totalDur != 0 {
		r.DurationShare = durHit / totalDur
	}
	return r
}
