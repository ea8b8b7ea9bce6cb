// Package report renders a portfolio risk analysis as Markdown, styled
// terminal output or JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatTerminal Format = "terminal"
	FormatJSON     Format = "json"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "term", "terminal", "tty":
		return FormatTerminal, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Section identifies a section to include or exclude.
type Section string

const (
	SectionSummary       Section = "summary"
	SectionSectors       Section = "sectors"
	SectionConcentration Section = "concentration"
	SectionContagion     Section = "contagion"
	SectionScenarios     Section = "scenarios"
	SectionAlerts        Section = "alerts"
	SectionLiquidity     Section = "liquidity"
	SectionInsights      Section = "insights"
)

// AllSections returns all report sections in display order.
func AllSections() []Section {
	return []Section{
		SectionSummary,
		SectionSectors,
		SectionConcentration,
		SectionContagion,
		SectionScenarios,
		SectionAlerts,
		SectionLiquidity,
		SectionInsights,
	}
}

// Config controls report generation.
type Config struct {
	Format   Format
	Sections []Section // default: all
	Title    string    // default: "Portfolio Risk Report"
	Author   string
	Style    string // glamour style for FormatTerminal; "auto" detects
	Width    int    // word wrap for FormatTerminal
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:   FormatMarkdown,
		Sections: AllSections(),
		Title:    "Portfolio Risk Report",
		Author:   "CreditPulse",
		Style:    "auto",
		Width:    100,
	}
}

func (c Config) has(s Section) bool {
	if len(c.Sections) == 0 {
		return true
	}
	for _, sec := range c.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// Generate renders in according to cfg.Format.
func Generate(in *Input, cfg Config) (string, error) {
	switch cfg.Format {
	case FormatJSON:
		b, err := json.MarshalIndent(in, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		return string(b) + "\n", nil
	case FormatTerminal:
		md, err := Markdown(in, cfg)
		if err != nil {
			return "", err
		}
		return RenderTerminal(md, cfg.Style, cfg.Width)
	default:
		return Markdown(in, cfg)
	}
}

var markdownTmpl = template.Must(template.New("report").Parse(MarkdownTemplate))

// Markdown renders the report as GitHub-flavored Markdown.
func Markdown(in *Input, cfg Config) (string, error) {
	if in == nil {
		return "", fmt.Errorf("report: nil input")
	}
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, buildData(in, cfg)); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// RenderTerminal styles Markdown for a terminal. style is a glamour
// standard style name ("dark", "light", "notty", ...); "" or "auto"
// detects the terminal background.
func RenderTerminal(md, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render terminal report: %w", err)
	}
	return out, nil
}

// ════════════════════════════════════════════════════════════════════
// Report Data (flattened for template rendering)
// ════════════════════════════════════════════════════════════════════

type reportData struct {
	Title       string
	Author      string
	Source      string
	GeneratedAt string
	Bonds       int

	ShowSummary, ShowSectors, ShowConcentration, ShowContagion bool
	ShowScenarios, ShowAlerts, ShowLiquidity, ShowInsights     bool

	Totals        []kv
	SummaryErrors []string
	Sectors       []sectorRow
	SectorsErr    string
	Concentration []kv
	ConcErr       string
	Impacts       []impactRow
	GraphErr      string
	Scenarios     []scenarioRow
	ScenarioErrs  []string
	Moves         []moveRow
	Breaches      []breachRow
	Liquidity     []liquidityRow
	Insights      []insightRow
}

type kv struct{ Label, Value string }

type sectorRow struct {
	Sector, Bonds, Duration, VaR string
}

type impactRow struct {
	Trigger, Bonds, BondShare, VaRShare, DurationShare string
}

type scenarioRow struct {
	Name, Known, SpreadShock, RateShock, AvgImpact, Worst string
}

type moveRow struct {
	Bond, ZScore, Status string
}

type breachRow struct {
	Bond, Spread, Subject string
}

type liquidityRow struct {
	Bond, BidAsk, Volume, Note string
}

type insightRow struct {
	Bond  string
	Lines []string
}

func buildData(in *Input, cfg Config) reportData {
	if cfg.Title == "" {
		cfg.Title = DefaultConfig().Title
	}
	at := in.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	d := reportData{
		Title:             cfg.Title,
		Author:            cfg.Author,
		Source:            in.Summary.Source,
		GeneratedAt:       utils.ReportTimestamp(at),
		Bonds:             in.Bonds,
		ShowSummary:       cfg.has(SectionSummary),
		ShowSectors:       cfg.has(SectionSectors),
		ShowConcentration: cfg.has(SectionConcentration),
		ShowContagion:     cfg.has(SectionContagion),
		ShowScenarios:     cfg.has(SectionScenarios),
		ShowAlerts:        cfg.has(SectionAlerts),
		ShowLiquidity:     cfg.has(SectionLiquidity),
		ShowInsights:      cfg.has(SectionInsights),
		GraphErr:          in.GraphError,
		ScenarioErrs:      in.ScenarioErrors,
	}

	if agg := in.Summary.Aggregate; agg.OK() {
		t := agg.Value
		d.Totals = []kv{
			{"Bonds", fmt.Sprintf("%d", t.Bonds)},
			{"Total duration", utils.FormatFloat(t.TotalDuration, 4)},
			{"Total convexity", utils.FormatFloat(t.TotalConvexity, 4)},
			{"Portfolio VaR", utils.FormatINR(t.TotalVaR)},
			{"Portfolio expected shortfall", utils.FormatINR(t.TotalExpectedShortfall)},
		}
	} else {
		d.SummaryErrors = append(d.SummaryErrors, agg.ErrorMessage())
	}

	if sec := in.Summary.Sectors; sec.OK() {
		names := make([]string, 0, len(sec.Value))
		for s := range sec.Value {
			names = append(names, s)
		}
		sort.Strings(names)
		for _, s := range names {
			st := sec.Value[s]
			d.Sectors = append(d.Sectors, sectorRow{
				Sector:   s,
				Bonds:    fmt.Sprintf("%d", st.BondCount),
				Duration: utils.FormatFloat(st.DurationSum, 4),
				VaR:      utils.FormatINR(st.VaRSum),
			})
		}
	} else {
		d.SectorsErr = sec.ErrorMessage()
	}

	if conc := in.Summary.Concentration; conc.OK() {
		for _, sh := range portfolio.Ranked(conc.Value) {
			d.Concentration = append(d.Concentration, kv{sh.Sector, utils.FormatShare(sh.Share)})
		}
	} else {
		d.ConcErr = conc.ErrorMessage()
	}

	for _, im := range in.Impacts {
		d.Impacts = append(d.Impacts, impactRow{
			Trigger:       im.Trigger,
			Bonds:         strings.Join(im.AffectedBonds, ", "),
			BondShare:     utils.FormatShare(im.BondShare),
			VaRShare:      utils.FormatShare(im.VaRShare),
			DurationShare: utils.FormatShare(im.DurationShare),
		})
	}

	for _, st := range in.Scenarios {
		row := scenarioRow{
			Name:        st.Scenario.Name,
			Known:       "yes",
			SpreadShock: "-",
			RateShock:   "-",
			AvgImpact:   utils.FormatPct(st.AveragePriceImpact * 100),
			Worst:       "-",
		}
		if !st.Known {
			row.Known = "no (no shock applied)"
		}
		if st.Scenario.SpreadShock != nil {
			row.SpreadShock = utils.FormatBpsChange(st.Scenario.SpreadShockBps())
		}
		if st.Scenario.RateShock != nil {
			row.RateShock = utils.FormatBpsChange(st.Scenario.RateShockBps())
		}
		if len(st.Rows) > 0 {
			worst := st.Rows[0]
			for _, r := range st.Rows[1:] {
				if r.PriceImpact < worst.PriceImpact {
					worst = r
				}
			}
			row.Worst = fmt.Sprintf("%s (%s)", worst.Bond, utils.FormatPct(worst.PriceImpact*100))
		}
		d.Scenarios = append(d.Scenarios, row)
	}

	for _, m := range in.Moves {
		status := "normal"
		if m.Abnormal {
			status = "**ABNORMAL**"
		}
		d.Moves = append(d.Moves, moveRow{Bond: m.BondID, ZScore: utils.FormatFloat(m.ZScore, 2), Status: status})
	}
	for _, b := range in.Breaches {
		d.Breaches = append(d.Breaches, breachRow{Bond: b.BondID, Spread: utils.FormatBps(b.SpreadBps), Subject: b.Subject})
	}

	for _, l := range in.Liquidity {
		row := liquidityRow{Bond: l.Bond, BidAsk: "n/a", Volume: "n/a"}
		if l.Available {
			row.BidAsk = utils.FormatFloat(l.BidAskSpread, 4)
			row.Volume = utils.FormatVolume(l.TradingVolume)
		}
		if l.Simulated {
			row.Note = "simulated"
		}
		d.Liquidity = append(d.Liquidity, row)
	}

	for _, ins := range in.Insights {
		d.Insights = append(d.Insights, insightRow{Bond: ins.BondID, Lines: ins.Explanations})
	}
	return d
}
