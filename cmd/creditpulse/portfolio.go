package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/creditpulse/internal/bond"
	"github.com/seenimoa/creditpulse/internal/contagion"
	"github.com/seenimoa/creditpulse/internal/graph"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

// --- Summary Command ---

var summaryCmd = &cobra.Command{
	Use:     "summary [portfolio]",
	Aliases: []string{"load"},
	Short:   "Load a portfolio and print aggregate, sector and concentration risk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s := portfolio.Summarize(p)
		if jsonOutput(cmd) {
			return printJSON(s)
		}

		fmt.Printf("Portfolio: %s (%d bonds)\n\n", p.Source, p.Len())
		if t := s.Aggregate; t.OK() {
			fmt.Println("Aggregate:")
			fmt.Printf("  Total duration:           %s\n", utils.FormatFloat(t.Value.TotalDuration, 2))
			fmt.Printf("  Total convexity:          %s\n", utils.FormatFloat(t.Value.TotalConvexity, 2))
			fmt.Printf("  Portfolio VaR:            %s\n", utils.FormatINR(t.Value.TotalVaR))
			fmt.Printf("  Portfolio Exp. Shortfall: %s\n", utils.FormatINR(t.Value.TotalExpectedShortfall))
		} else {
			fmt.Printf("Aggregate: %v\n", t.Err)
		}

		fmt.Println("\nSectors:")
		if sec := s.Sectors; sec.OK() {
			for _, name := range p.Sectors() {
				st := sec.Value[name]
				fmt.Printf("  %-20s bonds=%d  duration=%s  VaR=%s\n", name, st.BondCount,
					utils.FormatFloat(st.DurationSum, 2), utils.FormatINRCompact(st.VaRSum))
			}
		} else {
			fmt.Printf("  %v\n", sec.Err)
		}

		fmt.Println("\nConcentration:")
		if c := s.Concentration; c.OK() {
			for _, sh := range portfolio.Ranked(c.Value) {
				fmt.Printf("  %-20s %s\n", sh.Sector, utils.FormatShare(sh.Share))
			}
		} else {
			fmt.Printf("  %v\n", c.Err)
		}
		return nil
	},
}

// --- Analytics Command ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics [portfolio]",
	Short: "Compute duration, modified duration, convexity and credit risk per bond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rate := cfg.Engine.DiscountRatePct
		convRate := cfg.Engine.ConvexityRatePct
		if cmd.Flags().Changed("rate") {
			rate, _ = cmd.Flags().GetFloat64("rate")
			convRate = rate
		}

		legacy, _ := cmd.Flags().GetBool("legacy-convexity")

		rows := make([]bond.Analytics, 0, p.Len())
		for _, rec := range p.Records() {
			if legacy {
				rows = append(rows, bond.AnalyzeLegacy(rec, rate))
				continue
			}
			rows = append(rows, bond.Analyze(rec, rate, convRate))
		}
		if jsonOutput(cmd) {
			return printJSON(rows)
		}

		fmt.Printf("%-14s %10s %10s %10s  %s\n", "BOND", "DURATION", "MOD.DUR", "CONVEXITY", "CREDIT")
		for _, a := range rows {
			dur, mod, conv := "n/a", "n/a", "n/a"
			if a.DurationErr == nil {
				dur, mod = utils.FormatFloat(a.Duration, 4), utils.FormatFloat(a.ModifiedDuration, 4)
			}
			if a.ConvexityErr == nil {
				conv = utils.FormatFloat(a.Convexity, 4)
			}
			fmt.Printf("%-14s %10s %10s %10s  %s\n", a.BondID, dur, mod, conv, a.CreditRisk)
		}
		return nil
	},
}

func init() {
	analyticsCmd.Flags().Float64("rate", 5, "discount rate in percent (default: engine.discount_rate_pct)")
	analyticsCmd.Flags().Bool("legacy-convexity", false, "discount convexity at the fixed legacy rate")
}

// --- Liquidity Command ---

var liquidityCmd = &cobra.Command{
	Use:   "liquidity [portfolio]",
	Short: "Show bid/ask spread and trading volume per bond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		simulate := cfg.Features.SimulateLiquidity
		if cmd.Flags().Changed("simulate") {
			simulate, _ = cmd.Flags().GetBool("simulate")
		}
		seed, _ := cmd.Flags().GetUint64("seed")

		rows := portfolio.Liquidity(p, simulate, seed)
		if jsonOutput(cmd) {
			return printJSON(rows)
		}
		for _, r := range rows {
			if !r.Available {
				fmt.Printf("%-14s no liquidity data\n", r.Bond)
				continue
			}
			tag := ""
			if r.Simulated {
				tag = " (simulated)"
			}
			fmt.Printf("%-14s bid/ask=%s  volume=%s%s\n", r.Bond,
				utils.FormatFloat(r.BidAskSpread, 3), utils.FormatVolume(r.TradingVolume), tag)
		}
		return nil
	},
}

func init() {
	liquidityCmd.Flags().Bool("simulate", false, "fill missing liquidity columns with simulated values")
	liquidityCmd.Flags().Uint64("seed", 0, "random seed for simulated values")
}

// --- Graph Command ---

var graphCmd = &cobra.Command{
	Use:   "graph [portfolio]",
	Short: "Print the bond/sector/issuer relationship graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var g *graph.Graph
		if id, _ := cmd.Flags().GetString("bond"); id != "" {
			g, err = bondGraph(p, id)
		} else {
			var eng *contagion.Engine
			if eng, err = contagion.FromPortfolio(p); err == nil {
				g = eng.Graph()
			}
		}
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(map[string]any{"nodes": g.Nodes(), "edges": g.Edges()})
		}
		fmt.Printf("%d nodes, %d edges\n", g.Len(), g.EdgeCount())
		tail := "--"
		if g.Directed() {
			tail = "->"
		}
		for _, e := range g.Edges() {
			fmt.Printf("  %s --%s%s %s\n", e.From, e.Relation, tail, e.To)
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().String("bond", "", "show the issuer view of a single bond")
}

func bondGraph(p *portfolio.Portfolio, id string) (*graph.Graph, error) {
	for _, rec := range p.Records() {
		if rec.ID == id {
			return graph.BuildFromBond(rec)
		}
	}
	return nil, fmt.Errorf("bond %q not in %s", id, p.Source)
}

// --- Contagion Command ---

var contagionCmd = &cobra.Command{
	Use:   "contagion",
	Short: "Query the contagion engine of a portfolio",
}

var propagateCmd = &cobra.Command{
	Use:   "propagate [portfolio] [event]",
	Short: "List the bonds directly connected to an event node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engineFor(cmd, args[0])
		if err != nil {
			return err
		}
		affected := eng.PropagateEvent(args[1])
		if jsonOutput(cmd) {
			return printJSON(affected)
		}
		if len(affected) == 0 {
			fmt.Printf("%s reaches no bonds\n", args[1])
			return nil
		}
		fmt.Printf("%s → %s\n", args[1], strings.Join(affected, ", "))
		return nil
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths [portfolio] [start]",
	Short: "List contagion paths from a node, colored by risk level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engineFor(cmd, args[0])
		if err != nil {
			return err
		}
		lvl, _ := cmd.Flags().GetString("level")
		paths := eng.ContagionPaths(args[1], contagion.ParseRiskLevel(lvl))
		if jsonOutput(cmd) {
			return printJSON(paths)
		}
		for _, pth := range paths {
			fmt.Printf("  %s → %s  [%s, %s]\n", pth.From, pth.To, pth.Level, pth.Color)
		}
		return nil
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact [portfolio] [trigger]",
	Short: "Weigh the bonds reached by a shock against the portfolio",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engineFor(cmd, args[0])
		if err != nil {
			return err
		}
		r := eng.Impact(args[1])
		if jsonOutput(cmd) {
			return printJSON(r)
		}
		fmt.Printf("Trigger:        %s\n", r.Trigger)
		fmt.Printf("Affected bonds: %s\n", strings.Join(r.AffectedBonds, ", "))
		fmt.Printf("Bond share:     %s\n", utils.FormatShare(r.BondShare))
		fmt.Printf("VaR share:      %s (%s)\n", utils.FormatShare(r.VaRShare), utils.FormatINR(r.AffectedVaR))
		fmt.Printf("Duration share: %s\n", utils.FormatShare(r.DurationShare))
		return nil
	},
}

var shortestCmd = &cobra.Command{
	Use:   "shortest [portfolio] [from] [to]",
	Short: "Find the shortest relationship path between two nodes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engineFor(cmd, args[0])
		if err != nil {
			return err
		}
		path, ok := eng.Graph().ShortestPath(args[1], args[2])
		if jsonOutput(cmd) {
			return printJSON(map[string]any{"found": ok, "path": path})
		}
		if !ok {
			fmt.Printf("no path between %s and %s\n", args[1], args[2])
			return nil
		}
		fmt.Println(strings.Join(path, " → "))
		return nil
	},
}

func init() {
	pathsCmd.Flags().String("level", "moderate", "risk level (low, moderate, high, severe)")
	contagionCmd.AddCommand(propagateCmd, pathsCmd, impactCmd, shortestCmd)
}

func engineFor(cmd *cobra.Command, path string) (*contagion.Engine, error) {
	p, err := loadPortfolio(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	return contagion.FromPortfolio(p)
}
