package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/insight"
	"github.com/seenimoa/creditpulse/internal/notify"
	"github.com/seenimoa/creditpulse/internal/portfolio"
	"github.com/seenimoa/creditpulse/internal/provider"
	"github.com/seenimoa/creditpulse/internal/providers/fred"
	"github.com/seenimoa/creditpulse/internal/scenario"
)

// loadPortfolio reads path under the configured load timeout.
func loadPortfolio(ctx context.Context, path string) (*portfolio.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Engine.LoadTimeout())
	defer cancel()
	p, err := portfolio.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("portfolio loaded", zap.String("source", p.Source), zap.Int("bonds", p.Len()))
	return p, nil
}

// buildCatalog returns the built-in scenarios plus the configured presets,
// or the presets of file when one is given.
func buildCatalog(file string) (*scenario.Catalog, error) {
	if file != "" {
		return scenario.LoadCatalogFile(file)
	}
	return scenario.FromConfig(cfg.Scenarios)
}

// buildNotifier assembles the configured alert transports. It returns nil
// when no destination is configured.
func buildNotifier() notify.Notifier {
	var ns notify.Multi
	if cfg.Alerts.WebhookURL != "" {
		ns = append(ns, notify.NewWebhook(cfg.Alerts.WebhookURL, cfg.Alerts.Timeout()))
	}
	if cfg.Features.Slack && cfg.Alerts.SlackWebhookURL != "" {
		ns = append(ns, notify.NewSlack(cfg.Alerts.SlackWebhookURL, cfg.Alerts.Timeout()))
	}
	switch len(ns) {
	case 0:
		return nil
	case 1:
		return ns[0]
	default:
		return ns
	}
}

// buildMacro registers the FRED provider. It returns nil when no API key
// is configured.
func buildMacro() (*provider.Registry, error) {
	if cfg.Macro.FredAPIKey == "" {
		return nil, nil
	}
	client := fred.NewClient(cfg.Macro.FredAPIKey, cfg.Macro.Timeout(), cfg.Macro.CacheTTL())
	reg := provider.NewRegistry()
	if err := reg.Register(fred.New(client)); err != nil {
		return nil, fmt.Errorf("register fred: %w", err)
	}
	return reg, nil
}

// buildInsights returns the insight generator, with the RSS feed attached
// when features.news_feed is on.
func buildInsights() *insight.Generator {
	gen := &insight.Generator{KB: insight.DefaultKnowledgeBase(), Logger: logger.Named("insight")}
	if cfg.Features.NewsFeed && len(cfg.News.Feeds) > 0 {
		feed := insight.NewNewsFeed(insight.SourcesFromURLs(cfg.News.Feeds), cfg.News.MaxItems, logger.Named("news"))
		logger.Debug("news feed enabled", zap.Int("sources", len(feed.Sources())))
		gen.Feed = feed
	}
	return gen
}
