package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/creditpulse/internal/bond"
	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/internal/providers/fred"
	"github.com/seenimoa/creditpulse/pkg/models"
	"github.com/seenimoa/creditpulse/pkg/utils"
)

var errNoMacro = errors.New("macro data is not configured: set macro.fred_api_key or " + "CREDITPULSE_MACRO_FRED_API_KEY")

// --- Macro Command ---

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Fetch macro series from FRED",
}

var macroSeriesCmd = &cobra.Command{
	Use:   "series [series-id]",
	Short: "Fetch observations of a series (default: macro.default_series)",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := cfg.Macro.DefaultSeries
		if len(args) == 1 {
			id = args[0]
		}
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		if err := checkDates(start, end); err != nil {
			return err
		}
		return runMacro(cmd, provider.ModelMacroSeries, provider.QueryParams{
			provider.ParamSeries:    strings.ToUpper(id),
			provider.ParamStartDate: start,
			provider.ParamEndDate:   end,
		})
	},
}

var macroSearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search FRED series by free text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetString("limit")
		return runMacro(cmd, provider.ModelSeriesSearch, provider.QueryParams{
			provider.ParamQuery: strings.Join(args, " "),
			provider.ParamLimit: limit,
		})
	},
}

var macroCurveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Show the latest treasury constant-maturity curve",
	RunE: func(cmd *cobra.Command, args []string) error {
		shift, _ := cmd.Flags().GetFloat64("shift")
		return runMacro(cmd, provider.ModelYieldCurve, provider.QueryParams{}, func(res *provider.FetchResult) {
			if pts, ok := res.Data.([]models.CurvePoint); ok && shift != 0 {
				res.Data = bond.ShiftCurve(pts, shift)
			}
		})
	},
}

var macroSpreadsCmd = &cobra.Command{
	Use:   "spreads [rating]",
	Short: "Fetch the ICE BofA option-adjusted spread index for a rating bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetString("start")
		if err := checkDates(start); err != nil {
			return err
		}
		return runMacro(cmd, provider.ModelCreditSpreadIndex, provider.QueryParams{
			provider.ParamRating:    args[0],
			provider.ParamStartDate: start,
		})
	},
}

var macroLinkCmd = &cobra.Command{
	Use:   "link [portfolio] [series-id]",
	Short: "Attach the latest value of a series to every bond of a portfolio",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Macro.FredAPIKey == "" {
			return errNoMacro
		}
		p, err := loadPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		client := fred.NewClient(cfg.Macro.FredAPIKey, cfg.Macro.Timeout(), cfg.Macro.CacheTTL())
		obs, err := client.Series(cmd.Context(), strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		column, _ := cmd.Flags().GetString("column")
		if column == "" {
			column = args[1]
		}
		linked, err := fred.LinkLatest(obs, p, column)
		if err != nil {
			return fmt.Errorf("link %s: %w", args[1], err)
		}
		if jsonOutput(cmd) {
			return printJSON(linked)
		}
		column = strings.ToLower(column)
		for _, r := range linked.Rows {
			fmt.Printf("%-14s %s=%s\n", r.Bond, column, r.Extra[column])
		}
		return nil
	},
}

func init() {
	macroSeriesCmd.Flags().String("start", "", "observation start (YYYY-MM-DD)")
	macroSeriesCmd.Flags().String("end", "", "observation end (YYYY-MM-DD)")
	macroSpreadsCmd.Flags().String("start", "", "observation start (YYYY-MM-DD)")
	macroSearchCmd.Flags().String("limit", "10", "maximum results")
	macroCurveCmd.Flags().Float64("shift", 0, "parallel shift in percentage points applied to every tenor")
	macroLinkCmd.Flags().String("column", "", "portfolio column to write (default: the series id)")
	macroCmd.AddCommand(macroSeriesCmd, macroSearchCmd, macroCurveCmd, macroSpreadsCmd, macroLinkCmd)
}

// checkDates rejects malformed YYYY-MM-DD flags before they reach FRED.
func checkDates(dates ...string) error {
	for _, d := range dates {
		if d == "" {
			continue
		}
		if _, err := utils.ParseDateIST(d); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}
	return nil
}

// runMacro fetches a model through the registry, applies any post-processing
// and prints the result.
func runMacro(cmd *cobra.Command, model provider.ModelType, params provider.QueryParams, post ...func(*provider.FetchResult)) error {
	reg, err := buildMacro()
	if err != nil {
		return err
	}
	if reg == nil {
		return errNoMacro
	}
	res, err := reg.FetchWithFallback(cmd.Context(), model, params)
	if err != nil {
		return err
	}
	for _, fn := range post {
		fn(res)
	}
	if jsonOutput(cmd) {
		return printJSON(res)
	}

	switch data := res.Data.(type) {
	case []models.MacroObservation:
		for _, o := range data {
			v := "."
			if o.Value != nil {
				v = utils.FormatFloat(*o.Value, 4)
			}
			fmt.Printf("%s  %s\n", utils.FormatDateIST(o.Date), v)
		}
	case []models.SeriesInfo:
		for _, s := range data {
			fmt.Printf("%-16s %s (%s)\n", s.ID, s.Title, s.Frequency)
		}
	case []models.CurvePoint:
		for _, pt := range data {
			fmt.Printf("%-4s %6s%%  %s\n", pt.Tenor, utils.FormatFloat(pt.Rate, 2), utils.FormatDateIST(pt.AsOf))
		}
	default:
		return printJSON(res)
	}
	return nil
}

// --- Insights Command ---

var insightsCmd = &cobra.Command{
	Use:   "insights [bond-id]",
	Short: "Explain recent events affecting a bond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, _ := cmd.Flags().GetString("issuer")
		rep := buildInsights().Insights(cmd.Context(), args[0], issuer)
		if jsonOutput(cmd) {
			return printJSON(rep)
		}
		if len(rep.Explanations) == 0 {
			fmt.Println(rep.Message)
			return nil
		}
		for _, e := range rep.Explanations {
			fmt.Printf("- %s\n", e)
		}
		for _, n := range rep.News {
			fmt.Printf("  [%s] %s\n", n.Source, n.Title)
		}
		return nil
	},
}

func init() {
	insightsCmd.Flags().String("issuer", "", "issuer name to match in news headlines")
}
