package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/seenimoa/creditpulse/internal/infra"
	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// FeedSource is one RSS or Atom feed.
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SourcesFromURLs names each feed after its host.
func SourcesFromURLs(urls []string) []FeedSource {
	out := make([]FeedSource, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		name := strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
		if i := strings.IndexByte(name, '/'); i > 0 {
			name = name[:i]
		}
		out = append(out, FeedSource{Name: name, URL: u})
	}
	return out
}

// NewsFeed pulls headlines from a set of feeds. Results are cached and a
// failing feed is skipped, not fatal.
type NewsFeed struct {
	sources  []FeedSource
	cache    *infra.Cache
	limiter  *rate.Limiter
	timeout  time.Duration
	maxItems int
	logger   *zap.Logger
}

// NewNewsFeed creates a feed reader. maxItems <= 0 keeps every item.
func NewNewsFeed(sources []FeedSource, maxItems int, logger *zap.Logger) *NewsFeed {
	return &NewsFeed{
		sources:  sources,
		cache:    infra.NewCache(10 * time.Minute),
		limiter:  infra.NewLimiter(4, time.Second),
		timeout:  10 * time.Second,
		maxItems: maxItems,
		logger:   logging.OrNop(logger),
	}
}

// Sources returns the configured feeds.
func (n *NewsFeed) Sources() []FeedSource { return append([]FeedSource(nil), n.sources...) }

// Latest returns items from every feed, newest first.
func (n *NewsFeed) Latest(ctx context.Context) ([]models.NewsItem, error) {
	const key = "news:all"
	if cached, ok := n.cache.Get(key); ok {
		return cloneItems(cached.([]models.NewsItem)), nil
	}

	var (
		mu  sync.Mutex
		all []models.NewsItem
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range n.sources {
		g.Go(func() error {
			items, err := n.fetch(gctx, src)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.logger.Warn("news feed skipped", zap.String("feed", src.Name), zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	if n.maxItems > 0 && len(all) > n.maxItems {
		all = all[:n.maxItems]
	}
	n.cache.Set(key, all)
	return cloneItems(all), nil
}

// ForBond returns the latest items mentioning the bond id or its issuer,
// tagged with the bond id.
func (n *NewsFeed) ForBond(ctx context.Context, bondID, issuer string) ([]models.NewsItem, error) {
	items, err := n.Latest(ctx)
	if err != nil {
		return nil, err
	}
	keywords := []string{strings.ToLower(bondID)}
	if issuer = strings.ToLower(strings.TrimSpace(issuer)); issuer != "" {
		keywords = append(keywords, issuer)
	}

	out := []models.NewsItem{}
	for _, it := range items {
		if matchesAny(it.Title+" "+it.Summary, keywords) {
			it.BondIDs = append(it.BondIDs, bondID)
			out = append(out, it)
		}
	}
	return out, nil
}

func (n *NewsFeed) fetch(ctx context.Context, src FeedSource) ([]models.NewsItem, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	// gofeed parsers keep state, so each fetch gets its own.
	parser := gofeed.NewParser()
	parser.UserAgent = infra.UserAgent
	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		ni := models.NewsItem{
			Title:   strings.TrimSpace(it.Title),
			URL:     it.Link,
			Source:  src.Name,
			Summary: cleanHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			ni.PublishedAt = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			ni.PublishedAt = *it.UpdatedParsed
		}
		items = append(items, ni)
	}
	return items, nil
}

// cleanHTML strips markup from a feed description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func cloneItems(in []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, len(in))
	for i, it := range in {
		it.BondIDs = append([]string(nil), it.BondIDs...)
		out[i] = it
	}
	return out
}

// EventsFromNews turns bond-tagged headlines into knowledge base events.
func EventsFromNews(items []models.NewsItem) []Event {
	var out []Event
	for _, it := range items {
		for _, id := range it.BondIDs {
			out = append(out, Event{
				BondID:  id,
				Event:   "News",
				Details: it.Title,
				Source:  it.Source,
				At:      it.PublishedAt,
			})
		}
	}
	return out
}
