package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/creditpulse/api"
	"github.com/seenimoa/creditpulse/internal/metrics"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/internal/report"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report [portfolio...]",
	Short: "Generate the full risk report for one or more portfolios",
	Long: `Generate the full risk report for one or more portfolios.
Portfolios are analyzed concurrently; reports are printed in argument order.
A portfolio that fails is reported on stderr without stopping the others.

Examples:
  creditpulse report book.csv
  creditpulse report q1.csv q2.xlsx --format markdown --out reports/
  creditpulse report book.csv --sections summary,contagion,alerts`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rcfg := report.DefaultConfig()
		formatFlag, _ := cmd.Flags().GetString("format")
		if jsonOutput(cmd) {
			formatFlag = string(report.FormatJSON)
		}
		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		rcfg.Format = format
		rcfg.Style, _ = cmd.Flags().GetString("style")
		rcfg.Width, _ = cmd.Flags().GetInt("width")
		if title, _ := cmd.Flags().GetString("title"); title != "" {
			rcfg.Title = title
		}
		if secs, _ := cmd.Flags().GetStringSlice("sections"); len(secs) > 0 {
			rcfg.Sections = rcfg.Sections[:0]
			for _, s := range secs {
				rcfg.Sections = append(rcfg.Sections, report.Section(strings.ToLower(strings.TrimSpace(s))))
			}
		}
		outDir, _ := cmd.Flags().GetString("out")
		seed, _ := cmd.Flags().GetUint64("seed")

		catalog, err := buildCatalog("")
		if err != nil {
			return err
		}
		opts := report.Options{
			Catalog:           catalog,
			Threshold:         cfg.Alerts.Threshold,
			BreachBps:         cfg.Alerts.BreachBps,
			SimulateLiquidity: cfg.Features.SimulateLiquidity,
			Seed:              seed,
			Insights:          buildInsights(),
			Logger:            logger.Named("report"),
		}

		started := time.Now()
		results := generateReports(cmd.Context(), args, loadPortfolio, opts, rcfg)
		var errs []error
		for _, res := range results {
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
		}
		logger.Debug("reports generated", zap.Int("portfolios", len(args)), zap.String("elapsed", utils.FormatElapsed(time.Since(started))))

		if outDir == "" {
			printed := 0
			for _, res := range results {
				if res.Err != nil {
					fmt.Fprintf(os.Stderr, "report %s failed: %v\n", res.Path, res.Err)
					continue
				}
				if printed > 0 {
					fmt.Println()
				}
				fmt.Print(res.Output)
				printed++
			}
			return errors.Join(errs...)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		for _, res := range results {
			if res.Err != nil {
				logger.Warn("report failed", zap.String("path", res.Path), zap.Error(res.Err))
				continue
			}
			name := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path)) + reportExt(format)
			dest := filepath.Join(outDir, name)
			if err := os.WriteFile(dest, []byte(res.Output), 0o644); err != nil {
				errs = append(errs, fmt.Errorf("write report: %w", err))
				continue
			}
			logger.Info("report written", zap.String("path", dest))
		}
		return errors.Join(errs...)
	},
}

// reportResult is one portfolio's rendered report, or why it failed.
type reportResult struct {
	Path   string
	Output string
	Err    error
}

// generateReports analyzes every path concurrently. A portfolio that fails
// to load or render is recorded against its path; the others still run.
func generateReports(ctx context.Context, paths []string, load func(context.Context, string) (*portfolio.Portfolio, error), opts report.Options, rcfg report.Config) []reportResult {
	results := make([]reportResult, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			p, err := load(ctx, path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			out, err := report.Generate(report.Analyze(ctx, p, opts), rcfg)
			if err != nil {
				results[i].Err = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			results[i].Output = out
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func init() {
	reportCmd.Flags().String("format", "terminal", "output format (markdown, terminal, json)")
	reportCmd.Flags().StringSlice("sections", nil, "sections to include (default: all)")
	reportCmd.Flags().String("style", "auto", "glamour style for terminal output (auto, dark, light, notty)")
	reportCmd.Flags().Int("width", 100, "word wrap width for terminal output")
	reportCmd.Flags().String("title", "", "report title")
	reportCmd.Flags().String("out", "", "write one report file per portfolio into this directory")
	reportCmd.Flags().Uint64("seed", 0, "random seed for simulated liquidity")
}

func reportExt(f report.Format) string {
	switch f {
	case report.FormatJSON:
		return ".json"
	case report.FormatTerminal:
		return ".txt"
	default:
		return ".md"
	}
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		macro, err := buildMacro()
		if err != nil {
			return err
		}
		catalog, err := buildCatalog("")
		if err != nil {
			return err
		}

		srv, err := api.NewServer(cfg, api.Deps{
			Logger:   logger,
			Metrics:  metrics.New(),
			Catalog:  catalog,
			Notifier: buildNotifier(),
			Insights: buildInsights(),
			Macro:    macro,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("CreditPulse API server on %s\n", cfg.API.Addr())
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port)")
}
