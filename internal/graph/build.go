package graph

import (
	"fmt"

	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// Placeholders used by BuildFromBond for absent fields.
const (
	UnknownIssuer = "Unknown Issuer"
	UnknownSector = "Unknown Sector"
	UnknownRating = "Unknown Rating"
	UnknownBond   = "Unknown Bond"
)

// BuildFromBond builds the directed single-bond view:
// issuer→sector, issuer→rating and issuer→bond.
func BuildFromBond(rec models.BondRecord) (*Graph, error) {
	issuer := orDefault(rec.Issuer, UnknownIssuer)
	sector := orDefault(rec.Sector, UnknownSector)
	rating := orDefault(string(rec.Rating), UnknownRating)
	bondID := orDefault(rec.ID, UnknownBond)

	b := newBuilder(true)
	iss, err := b.node(issuer, NodeIssuer)
	if err != nil {
		return nil, err
	}
	links := []struct {
		id  string
		typ NodeType
		rel Relation
	}{
		{sector, NodeSector, RelBelongsToSector},
		{rating, NodeRating, RelHasRating},
		{bondID, NodeBond, RelIssuesBond},
	}
	for _, l := range links {
		n, err := b.node(l.id, l.typ)
		if err != nil {
			return nil, err
		}
		b.edge(iss, n, l.rel)
	}
	return b.build(), nil
}

// BuildFromPortfolio builds the undirected portfolio view: every bond is
// linked to its sector and, when present, its issuer.
func BuildFromPortfolio(p *portfolio.Portfolio) (*Graph, error) {
	b := newBuilder(false)
	for _, r := range p.Rows {
		if err := addHolding(b, r.Bond, r.Sector, r.Issuer); err != nil {
			return nil, fmt.Errorf("bond %q: %w", r.Bond, err)
		}
	}
	return b.build(), nil
}

// BuildFromRecords is BuildFromPortfolio for records supplied by the
// data-fetch layer.
func BuildFromRecords(recs []models.BondRecord) (*Graph, error) {
	b := newBuilder(false)
	for _, r := range recs {
		if err := addHolding(b, r.ID, r.Sector, r.Issuer); err != nil {
			return nil, fmt.Errorf("bond %q: %w", r.ID, err)
		}
	}
	return b.build(), nil
}

func addHolding(b *builder, bondID, sector, issuer string) error {
	bond, err := b.node(bondID, NodeBond)
	if err != nil {
		return err
	}
	sec, err := b.node(sector, NodeSector)
	if err != nil {
		return err
	}
	b.edge(bond, sec, RelInSector)
	if issuer == "" {
		return nil
	}
	iss, err := b.node(issuer, NodeIssuer)
	if err != nil {
		return err
	}
	b.edge(bond, iss, RelIssuedBy)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
