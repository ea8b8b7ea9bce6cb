// Package fred implements the FRED (Federal Reserve Economic Data)
// provider: raw series, series search, ICE BofA credit spread indices by
// rating bucket and the treasury constant-maturity curve.
//
// Requires a free API key from https://fred.stlouisfed.org/docs/api/api_key.html
// Rate limit: 120 requests/minute.
package fred

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/pkg/models"
)

const (
	providerName = "fred"
	credAPIKey   = "api_key"
)

// SpreadIndexSeries maps a rating bucket to its ICE BofA option-adjusted
// spread series.
var SpreadIndexSeries = map[string]string{
	"IG":  "BAMLC0A0CM",
	"AAA": "BAMLC0A1CAAA",
	"AA":  "BAMLC0A2CAA",
	"A":   "BAMLC0A3CA",
	"BBB": "BAMLC0A4CBBB",
	"BB":  "BAMLH0A1HYBB",
	"B":   "BAMLH0A2HYB",
	"CCC": "BAMLH0A3HYC",
	"HY":  "BAMLH0A0HYM2",
}

// curveTenors are the constant-maturity treasury series, shortest first.
var curveTenors = []struct {
	tenor  string
	years  float64
	series string
}{
	{"1M", 1.0 / 12, "DGS1MO"},
	{"3M", 0.25, "DGS3MO"},
	{"6M", 0.5, "DGS6MO"},
	{"1Y", 1, "DGS1"},
	{"2Y", 2, "DGS2"},
	{"5Y", 5, "DGS5"},
	{"10Y", 10, "DGS10"},
	{"30Y", 30, "DGS30"},
}

// Provider implements provider.Provider for FRED.
type Provider struct {
	provider.BaseProvider
	client *Client
}

// New creates a FRED provider backed by client and registers its fetchers.
func New(client *Client) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Federal Reserve Economic Data: rates, spreads and macro series",
			"https://fred.stlouisfed.org",
			[]provider.ProviderCredential{{
				Name:        credAPIKey,
				Description: "FRED API key from fred.stlouisfed.org",
				Required:    true,
				EnvVar:      "CREDITPULSE_MACRO_FRED_API_KEY",
			}},
		),
		client: client,
	}
	p.RegisterFetcher(&seriesFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelMacroSeries, "FRED observations by series id",
			[]string{provider.ParamSeries}, []string{provider.ParamStartDate, provider.ParamEndDate}),
		client: client,
	})
	p.RegisterFetcher(&searchFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelSeriesSearch, "Search FRED series",
			[]string{provider.ParamQuery}, []string{provider.ParamLimit}),
		client: client,
	})
	p.RegisterFetcher(&spreadIndexFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelCreditSpreadIndex, "ICE BofA OAS index for a rating bucket",
			[]string{provider.ParamRating}, []string{provider.ParamStartDate, provider.ParamEndDate}),
		client: client,
	})
	p.RegisterFetcher(&curveFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelYieldCurve, "Latest treasury constant-maturity curve",
			nil, nil),
		client: client,
	})
	return p
}

// Init stores the API key on the client.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.client.APIKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity to the FRED API.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("fred ping: %w", err)
	}
	return nil
}

// Client exposes the underlying API client.
func (p *Provider) Client() *Client { return p.client }

// ─── Fetchers ───────────────────────────────────────────────────────

type seriesFetcher struct {
	provider.BaseFetcher
	client *Client
}

func (f *seriesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	obs, err := f.client.SeriesRange(ctx, params[provider.ParamSeries], params[provider.ParamStartDate], params[provider.ParamEndDate])
	if err != nil {
		return nil, err
	}
	return newResult(obs), nil
}

type searchFetcher struct {
	provider.BaseFetcher
	client *Client
}

func (f *searchFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	key := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(key); ok {
		return newCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}
	limit, _ := strconv.Atoi(params[provider.ParamLimit])
	res, err := f.client.Search(ctx, params[provider.ParamQuery], limit)
	if err != nil {
		return nil, err
	}
	f.CacheSet(key, res)
	return newResult(res), nil
}

type spreadIndexFetcher struct {
	provider.BaseFetcher
	client *Client
}

func (f *spreadIndexFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	bucket := strings.ToUpper(strings.TrimSpace(params[provider.ParamRating]))
	id, ok := SpreadIndexSeries[bucket]
	if !ok {
		// Rating notches ("BBB-") fall back to their letter bucket.
		id, ok = SpreadIndexSeries[string(models.ParseRating(bucket))]
	}
	if !ok {
		return nil, fmt.Errorf("no spread index for rating %q", params[provider.ParamRating])
	}
	obs, err := f.client.SeriesRange(ctx, id, params[provider.ParamStartDate], params[provider.ParamEndDate])
	if err != nil {
		return nil, err
	}
	return newResult(obs), nil
}

type curveFetcher struct {
	provider.BaseFetcher
	client *Client
}

func (f *curveFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	key := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(key); ok {
		return newCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	start := time.Now().AddDate(0, 0, -14).Format(dateLayout)
	points := make([]*models.CurvePoint, len(curveTenors))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range curveTenors {
		g.Go(func() error {
			obs, err := f.client.SeriesRange(gctx, t.series, start, "")
			if err != nil {
				return err
			}
			for j := len(obs) - 1; j >= 0; j-- {
				if obs[j].Value != nil {
					points[i] = &models.CurvePoint{Tenor: t.tenor, Years: t.years, Rate: *obs[j].Value, AsOf: obs[j].Date, SeriesID: t.series}
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	curve := make([]models.CurvePoint, 0, len(points))
	for _, p := range points {
		if p != nil {
			curve = append(curve, *p)
		}
	}
	f.CacheSet(key, curve)
	return newResult(curve), nil
}

func newResult(data any) *provider.FetchResult {
	return &provider.FetchResult{Data: data, FetchedAt: time.Now()}
}

func newCachedResult(data any) *provider.FetchResult {
	return &provider.FetchResult{Data: data, FetchedAt: time.Now(), Cached: true}
}
