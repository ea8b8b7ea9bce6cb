// Package scenario applies named macro stress presets to a portfolio.
//
// Presets live in an immutable Catalog built once at start-up. Applying a
// scenario never mutates the catalog or the source portfolio.
package scenario

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/creditpulse/internal/config"
)

// Scenario is a named shock preset. Shocks are decimal fractions
// (0.03 = 300 bps); a nil shock means the scenario does not move that input.
type Scenario struct {
	Name        string   `json:"name"                   yaml:"name"`
	Description string   `json:"description,omitempty"  yaml:"description,omitempty"`
	SpreadShock *float64 `json:"spread_shock,omitempty" yaml:"spread_shock,omitempty"`
	RateShock   *float64 `json:"rate_shock,omitempty"   yaml:"rate_shock,omitempty"`
}

// Shock is a convenience constructor for shock values.
func Shock(v float64) *float64 { return &v }

// SpreadShockBps returns the spread shock in basis points.
func (s Scenario) SpreadShockBps() float64 { return bps(s.SpreadShock) }

// RateShockBps returns the rate shock in basis points.
func (s Scenario) RateShockBps() float64 { return bps(s.RateShock) }

// Empty reports whether the scenario defines no shock.
func (s Scenario) Empty() bool { return s.SpreadShock == nil && s.RateShock == nil }

func bps(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v * 10000
}

func (s Scenario) copy() Scenario {
	c := s
	if s.SpreadShock != nil {
		c.SpreadShock = Shock(*s.SpreadShock)
	}
	if s.RateShock != nil {
		c.RateShock = Shock(*s.RateShock)
	}
	return c
}

// Preset names of the built-in catalog.
const (
	Crisis2008   = "2008 Crisis"
	Covid2020    = "COVID-2020"
	RBIHike200bp = "RBI Rate Hike 200bps"
)

func builtins() []Scenario {
	return []Scenario{
		{Name: Crisis2008, Description: "Global financial crisis credit blow-out", SpreadShock: Shock(0.03), RateShock: Shock(0.01)},
		{Name: Covid2020, Description: "Pandemic spread widening with emergency rate cuts", SpreadShock: Shock(0.02), RateShock: Shock(-0.005)},
		{Name: RBIHike200bp, Description: "Reserve Bank of India hikes policy rate by 200bps", SpreadShock: Shock(0.01), RateShock: Shock(0.02)},
	}
}

// Catalog is a read-only set of scenarios keyed by name.
type Catalog struct {
	byName map[string]Scenario
	names  []string
}

// NewCatalog returns the built-in presets plus extra. An extra preset with a
// built-in name replaces it.
func NewCatalog(extra ...Scenario) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Scenario)}
	for _, s := range append(builtins(), extra...) {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("scenario without a name")
		}
		s.Name = name
		if _, ok := c.byName[name]; !ok {
			c.names = append(c.names, name)
		}
		c.byName[name] = s.copy()
	}
	sort.Strings(c.names)
	return c, nil
}

var defaultCatalog, _ = NewCatalog()

// DefaultCatalog returns the built-in presets.
func DefaultCatalog() *Catalog { return defaultCatalog }

// catalogFile is the YAML layout read by LoadCatalogFile.
type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadCatalogFile builds a catalog from the built-ins plus the presets in a
// YAML file of the form `scenarios: [{name, spread_shock, rate_shock}]`.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	return NewCatalog(f.Scenarios...)
}

// FromConfig builds a catalog from the built-ins plus the `scenarios:`
// entries of the application config.
func FromConfig(entries []config.ScenarioConfig) (*Catalog, error) {
	extra := make([]Scenario, 0, len(entries))
	for _, e := range entries {
		extra = append(extra, Scenario{
			Name:        e.Name,
			Description: e.Description,
			SpreadShock: e.SpreadShock,
			RateShock:   e.RateShock,
		})
	}
	return NewCatalog(extra...)
}

// Lookup returns a copy of the named scenario. Unknown names resolve to an
// empty scenario and false.
func (c *Catalog) Lookup(name string) (Scenario, bool) {
	s, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Scenario{Name: name}, false
	}
	return s.copy(), true
}

// Names returns every scenario name, sorted.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// All returns copies of every scenario in name order.
func (c *Catalog) All() []Scenario {
	out := make([]Scenario, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.byName[n].copy())
	}
	return out
}
