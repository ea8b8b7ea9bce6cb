package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/creditpulse/internal/config"
	"github.com/seenimoa/creditpulse/internal/portfolio"
)

func f(v float64) *float64 { return &v }

func samplePortfolio() *portfolio.Portfolio {
	return &portfolio.Portfolio{
		Source:  "sample.csv",
		Columns: []string{"bond", "sector", "duration", "convexity", "var", "expectedshortfall", "spread", "rate"},
		Rows: []portfolio.Row{
			{Bond: "ACME2025", Sector: "Technology", Duration: 4, Convexity: 20, VaR: 100, ExpectedShortfall: 120, Spread: f(120), Rate: f(5.2)},
			{Bond: "XYZ2030", Sector: "Financials", Duration: 7, Convexity: 60, VaR: 200, ExpectedShortfall: 240, Spread: f(95)},
		},
	}
}

func TestDefaultCatalogPresets(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{Crisis2008, Covid2020, RBIHike200bp}, c.Names())

	s, ok := c.Lookup(Covid2020)
	require.True(t, ok)
	assert.InDelta(t, 200, s.SpreadShockBps(), 1e-9)
	assert.InDelta(t, -50, s.RateShockBps(), 1e-9)

	// Mutating a returned copy leaves the catalog untouched.
	*s.SpreadShock = 99
	again, _ := c.Lookup(Covid2020)
	assert.Equal(t, 0.02, *again.SpreadShock)
}

func TestNewCatalogOverridesAndRejectsUnnamed(t *testing.T) {
	c, err := NewCatalog(
		Scenario{Name: " Taper Tantrum ", SpreadShock: Shock(0.015)},
		Scenario{Name: Crisis2008, SpreadShock: Shock(0.05)},
	)
	require.NoError(t, err)
	assert.Len(t, c.Names(), 4)

	s, ok := c.Lookup("Taper Tantrum")
	require.True(t, ok)
	assert.Nil(t, s.RateShock)

	crisis, _ := c.Lookup(Crisis2008)
	assert.Equal(t, 0.05, *crisis.SpreadShock)
	base, _ := DefaultCatalog().Lookup(Crisis2008)
	assert.Equal(t, 0.03, *base.SpreadShock)

	_, err = NewCatalog(Scenario{SpreadShock: Shock(0.01)})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig([]config.ScenarioConfig{
		{Name: "Taper Tantrum", SpreadShock: f(0.015)},
	})
	require.NoError(t, err)
	assert.Len(t, c.Names(), 4)

	sc, ok := c.Lookup("Taper Tantrum")
	require.True(t, ok)
	assert.InDelta(t, 150, sc.SpreadShockBps(), 1e-9)
	assert.Nil(t, sc.RateShock)

	_, err = FromConfig([]config.ScenarioConfig{{Name: " "}})
	assert.Error(t, err)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	content := "scenarios:\n  - name: Rate Cut 50bps\n    rate_shock: -0.005\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCatalogFile(path)
	require.NoError(t, err)
	s, ok := c.Lookup("Rate Cut 50bps")
	require.True(t, ok)
	assert.Nil(t, s.SpreadShock)
	assert.Equal(t, -0.005, *s.RateShock)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyRoundTrip(t *testing.T) {
	p := samplePortfolio()
	st, err := DefaultCatalog().Apply(p, Crisis2008)
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.True(t, st.Known)

	for _, r := range st.Rows {
		require.NotNil(t, r.StressedSpread)
		assert.InDelta(t, *r.Spread+0.03, *r.StressedSpread, 1e-12)
	}

	// Re-applying to the stressed view's own rows does not double-shock.
	again := &portfolio.Portfolio{Source: p.Source, Columns: p.Columns}
	for _, r := range st.Rows {
		again.Rows = append(again.Rows, r.Row)
	}
	st2, err := DefaultCatalog().Apply(again, Crisis2008)
	require.NoError(t, err)
	for i := range st2.Rows {
		assert.Equal(t, *st.Rows[i].StressedSpread, *st2.Rows[i].StressedSpread)
	}
}

func TestApplyRateDefaultsToZero(t *testing.T) {
	st, err := DefaultCatalog().Apply(samplePortfolio(), RBIHike200bp)
	require.NoError(t, err)

	acme, _ := st.Row("ACME2025")
	assert.InDelta(t, 5.22, *acme.StressedRate, 1e-12)
	xyz, _ := st.Row("XYZ2030")
	assert.InDelta(t, 0.02, *xyz.StressedRate, 1e-12)
	assert.Nil(t, xyz.Rate, "original rate stays unset")
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	p := samplePortfolio()
	_, err := DefaultCatalog().Apply(p, Crisis2008)
	require.NoError(t, err)
	assert.Equal(t, 120.0, *p.Rows[0].Spread)
	assert.Equal(t, 5.2, *p.Rows[0].Rate)
	assert.Equal(t, samplePortfolio(), p)
}

func TestApplyUnknownScenarioIsNoOp(t *testing.T) {
	st, err := DefaultCatalog().Apply(samplePortfolio(), "Martian Invasion")
	require.NoError(t, err)
	assert.False(t, st.Known)
	assert.Zero(t, st.YieldMove)
	for _, r := range st.Rows {
		assert.Nil(t, r.StressedSpread)
		assert.Nil(t, r.StressedRate)
		assert.Zero(t, r.PriceImpact)
	}
}

func TestApplyWithoutSpreadColumn(t *testing.T) {
	p := samplePortfolio()
	p.Columns = []string{"bond", "sector", "duration", "convexity", "var", "expectedshortfall"}

	_, err := DefaultCatalog().Apply(p, Crisis2008)
	var se *portfolio.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"spread"}, se.Missing)

	// A rate-only scenario needs no spread column.
	c, err := NewCatalog(Scenario{Name: "rates", RateShock: Shock(0.01)})
	require.NoError(t, err)
	st, err := c.Apply(p, "rates")
	require.NoError(t, err)
	assert.NotNil(t, st.Rows[0].StressedRate)
}

func TestPriceImpact(t *testing.T) {
	st, err := DefaultCatalog().Apply(samplePortfolio(), Crisis2008)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, st.YieldMove, 1e-12)

	acme, _ := st.Row("ACME2025")
	// -4*0.04 + 0.5*20*0.0016
	assert.InDelta(t, -0.144, acme.PriceImpact, 1e-12)
	xyz, _ := st.Row("XYZ2030")
	// -7*0.04 + 0.5*60*0.0016
	assert.InDelta(t, -0.232, xyz.PriceImpact, 1e-12)
	assert.InDelta(t, -0.188, st.AveragePriceImpact, 1e-12)
}
