// CreditPulse — Portfolio Risk & Contagion Engine
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/config"
	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "creditpulse",
	Short: "CreditPulse — Portfolio Risk & Contagion Engine",
	Long: `CreditPulse ingests a bond portfolio (CSV or Excel), computes bond and
portfolio risk metrics, builds the bond/sector/issuer relationship graph,
propagates shocks through it, applies macro stress scenarios and raises
statistical alerts on abnormal spread moves.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(liquidityCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(contagionCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(breachesCmd)
	rootCmd.AddCommand(macroCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CreditPulse %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and secret status",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := config.CheckKeys(cfg)
		if jsonOutput(cmd) {
			return printJSON(map[string]any{
				"version": version,
				"config":  config.Redacted(cfg),
				"keys":    keys,
			})
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  CreditPulse — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Alert threshold:  z > %s\n", utils.FormatFloat(cfg.Alerts.Threshold, 2))
		fmt.Printf("    Breach threshold: %s\n", utils.FormatBps(cfg.Alerts.BreachBps))
		fmt.Printf("    Alert channel:    %s\n", cfg.Alerts.Channel)
		fmt.Printf("    Discount rate:    %s%%\n", utils.FormatFloat(cfg.Engine.DiscountRatePct, 2))
		fmt.Printf("    Extra scenarios:  %d\n", len(cfg.Scenarios))
		fmt.Printf("    News feed:        %v (%d feeds)\n", cfg.Features.NewsFeed, len(cfg.News.Feeds))
		fmt.Printf("    API server:       %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, k := range keys {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Output helpers ---

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
