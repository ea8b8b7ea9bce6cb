package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/creditpulse/internal/alert"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

// --- Scenario Command ---

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "List or apply macro stress scenarios",
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the scenario catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		cat, err := buildCatalog(file)
		if err != nil {
			return err
		}
		all := cat.All()
		if jsonOutput(cmd) {
			return printJSON(all)
		}
		for _, sc := range all {
			fmt.Printf("%-20s spread %s  rate %s  %s\n", sc.Name,
				utils.FormatBpsChange(sc.SpreadShockBps()), utils.FormatBpsChange(sc.RateShockBps()), sc.Description)
		}
		return nil
	},
}

var scenarioApplyCmd = &cobra.Command{
	Use:   "apply [portfolio] [scenario]",
	Short: "Apply a named scenario to a portfolio",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		cat, err := buildCatalog(file)
		if err != nil {
			return err
		}
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		st, err := cat.Apply(p, args[1])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(st)
		}

		if !st.Known {
			fmt.Printf("Unknown scenario %q: portfolio unchanged\n", args[1])
		} else {
			fmt.Printf("Scenario: %s (yield move %s)\n", st.Scenario.Name, utils.FormatBpsChange(st.YieldMove*10000))
		}
		for _, r := range st.Rows {
			spread := "-"
			if r.Spread != nil && r.StressedSpread != nil {
				spread = utils.FormatFloat(*r.Spread, 4) + " → " + utils.FormatFloat(*r.StressedSpread, 4)
			}
			fmt.Printf("  %-14s spread %-22s price impact %s\n", r.Bond, spread, utils.FormatPct(r.PriceImpact*100))
		}
		fmt.Printf("Average price impact: %s\n", utils.FormatPct(st.AveragePriceImpact*100))
		return nil
	},
}

func init() {
	scenarioCmd.PersistentFlags().String("file", "", "YAML scenario file (replaces configured presets)")
	scenarioCmd.AddCommand(scenarioListCmd, scenarioApplyCmd)
}

// --- Alert Command ---

var alertCmd = &cobra.Command{
	Use:   "alert [bond-id] [latest-spread]",
	Short: "Score a spread observation against its history and notify when abnormal",
	Long: `Score a spread observation against its history and notify when abnormal.

Examples:
  creditpulse alert ACME2025 120 --history 100,102,98,101,99
  creditpulse alert --portfolio book.csv`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		det := alert.NewDetector(buildNotifier(), logger.Named("alert"))
		if cfg.Alerts.Threshold > 0 {
			det.Threshold = cfg.Alerts.Threshold
		}
		if cfg.Alerts.Channel != "" {
			det.Channel = cfg.Alerts.Channel
		}

		var decisions []alert.Decision
		if path, _ := cmd.Flags().GetString("portfolio"); path != "" {
			p, err := loadPortfolio(cmd.Context(), path)
			if err != nil {
				return err
			}
			for _, rec := range p.Records() {
				if len(rec.SpreadHistory) == 0 || rec.LatestSpread == nil {
					continue
				}
				decisions = append(decisions, det.EvaluateRecord(cmd.Context(), rec))
			}
		} else {
			if len(args) != 2 {
				return fmt.Errorf("provide a bond id and latest spread, or --portfolio")
			}
			latest, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("latest spread: %w", err)
			}
			raw, _ := cmd.Flags().GetFloat64Slice("history")
			channel, _ := cmd.Flags().GetString("channel")
			decisions = append(decisions, det.Evaluate(cmd.Context(), alert.Context{
				BondID: args[0], History: raw, Channel: channel,
			}, latest))
		}

		if jsonOutput(cmd) {
			return printJSON(decisions)
		}
		for _, d := range decisions {
			switch {
			case !d.Abnormal:
				fmt.Printf("%-14s z=%s  normal\n", d.BondID, utils.FormatFloat(d.ZScore, 2))
			case d.Delivered:
				fmt.Printf("%-14s z=%s  ALERT sent to %s (%s)\n", d.BondID, utils.FormatFloat(d.ZScore, 2), d.Channel, d.AlertID)
			case d.DeliveryError != "":
				fmt.Printf("%-14s z=%s  ALERT not delivered: %s\n", d.BondID, utils.FormatFloat(d.ZScore, 2), d.DeliveryError)
			default:
				fmt.Printf("%-14s z=%s  ALERT (no notifier configured)\n", d.BondID, utils.FormatFloat(d.ZScore, 2))
			}
		}
		return nil
	},
}

func init() {
	alertCmd.Flags().Float64Slice("history", nil, "comma-separated spread history")
	alertCmd.Flags().String("channel", "", "notification channel (default: alerts.channel)")
	alertCmd.Flags().String("portfolio", "", "evaluate every bond of a portfolio with a spread history")
}

// --- Breaches Command ---

var breachesCmd = &cobra.Command{
	Use:   "breaches [portfolio]",
	Short: "List bonds whose spread exceeds the static threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !p.HasColumn(portfolio.ColSpread) {
			return &portfolio.SchemaError{Source: p.Source, Missing: []string{portfolio.ColSpread}}
		}
		bps := cfg.Alerts.BreachBps
		if cmd.Flags().Changed("bps") {
			bps, _ = cmd.Flags().GetFloat64("bps")
		}
		breaches := alert.Breaches(p.Records(), bps)
		if jsonOutput(cmd) {
			return printJSON(breaches)
		}
		if len(breaches) == 0 {
			fmt.Println("No threshold breaches.")
			return nil
		}
		for _, b := range breaches {
			fmt.Printf("%-14s %s\n", b.BondID, utils.FormatBps(b.SpreadBps))
			fmt.Printf("  %s\n", strings.ReplaceAll(b.Body, "\n", "\n  "))
		}
		return nil
	},
}

func init() {
	breachesCmd.Flags().Float64("bps", alert.DefaultBreachBps, "spread threshold in bps (default: alerts.breach_bps)")
}
