package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/creditpulse/internal/infra"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// DefaultBaseURL is the FRED API root.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

const dateLayout = "2006-01-02"

// APIError is returned for a non-200 FRED response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fred: status %d", e.Status)
	}
	return fmt.Sprintf("fred: status %d: %s", e.Status, e.Message)
}

// Client talks to the FRED API. Fetched series are cached for CacheTTL and
// requests are held to FRED's 120 per minute.
type Client struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	cache   *infra.Cache
	limiter *rate.Limiter
}

// NewClient returns a client for the public FRED API.
func NewClient(apiKey string, timeout, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Timeout: timeout,
		cache:   infra.NewCache(cacheTTL),
		limiter: infra.NewLimiter(10, 5*time.Second),
	}
}

// Series returns every observation of seriesID. Non-numeric values
// (FRED's ".") are kept with a nil Value.
func (c *Client) Series(ctx context.Context, seriesID string) ([]models.MacroObservation, error) {
	return c.SeriesRange(ctx, seriesID, "", "")
}

// SeriesRange is Series limited to [start, end] (YYYY-MM-DD, either may be
// empty).
func (c *Client) SeriesRange(ctx context.Context, seriesID, start, end string) ([]models.MacroObservation, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, fmt.Errorf("fred: series id is required")
	}
	q := url.Values{"series_id": {seriesID}}
	if start != "" {
		q.Set("observation_start", start)
	}
	if end != "" {
		q.Set("observation_end", end)
	}

	key := "obs?" + q.Encode()
	if cached, ok := c.cache.Get(key); ok {
		return cloneObs(cached.([]models.MacroObservation)), nil
	}

	var resp observationsResponse
	if err := c.getJSON(ctx, "series/observations", q, &resp); err != nil {
		return nil, fmt.Errorf("fred series %s: %w", seriesID, err)
	}
	obs, err := parseObservations(resp.Observations)
	if err != nil {
		return nil, fmt.Errorf("fred series %s: %w", seriesID, err)
	}
	c.cache.Set(key, obs)
	return cloneObs(obs), nil
}

// Search finds series by free text.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]models.SeriesInfo, error) {
	if limit <= 0 {
		limit = 25
	}
	q := url.Values{"search_text": {text}, "limit": {strconv.Itoa(limit)}}
	var resp searchResponse
	if err := c.getJSON(ctx, "series/search", q, &resp); err != nil {
		return nil, fmt.Errorf("fred search %q: %w", text, err)
	}
	out := make([]models.SeriesInfo, 0, len(resp.Seriess))
	for _, s := range resp.Seriess {
		end, _ := time.Parse(dateLayout, s.ObservationEnd)
		out = append(out, models.SeriesInfo{
			ID:                 s.ID,
			Title:              s.Title,
			Frequency:          s.Frequency,
			Units:              s.Units,
			SeasonalAdjustment: s.SeasonalAdjustment,
			ObservationEnd:     end,
			Popularity:         s.Popularity,
		})
	}
	return out, nil
}

// Ping checks connectivity and the API key.
func (c *Client) Ping(ctx context.Context) error {
	var v json.RawMessage
	return c.getJSON(ctx, "series", url.Values{"series_id": {"GDP"}}, &v)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, dest any) error {
	if c.APIKey == "" {
		return fmt.Errorf("fred: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	q.Set("api_key", c.APIKey)
	q.Set("file_type", "json")
	u := strings.TrimRight(c.BaseURL, "/") + "/" + endpoint + "?" + q.Encode()

	body, status, err := infra.DoGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		return &APIError{Status: status, Message: er.ErrorMessage}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse FRED JSON: %w", err)
	}
	return nil
}

func parseObservations(raw []observation) ([]models.MacroObservation, error) {
	out := make([]models.MacroObservation, 0, len(raw))
	for _, o := range raw {
		d, err := time.Parse(dateLayout, o.Date)
		if err != nil {
			return nil, fmt.Errorf("observation date %q: %w", o.Date, err)
		}
		mo := models.MacroObservation{Date: d}
		if v, err := strconv.ParseFloat(strings.TrimSpace(o.Value), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			mo.Value = &v
		}
		out = append(out, mo)
	}
	return out, nil
}

func cloneObs(in []models.MacroObservation) []models.MacroObservation {
	out := make([]models.MacroObservation, len(in))
	for i, o := range in {
		out[i] = models.MacroObservation{Date: o.Date}
		if o.Value != nil {
			v := *o.Value
			out[i].Value = &v
		}
	}
	return out
}
