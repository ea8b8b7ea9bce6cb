package insight

import (
	"context"

	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// Report is the insight summary for one bond.
type Report struct {
	BondID       string            `json:"bond_id"`
	Explanations []string          `json:"explanations"`
	Message      string            `json:"message,omitempty"` // set when there are no explanations
	News         []models.NewsItem `json:"news,omitempty"`
}

// Generator combines the knowledge base with an optional news feed.
type Generator struct {
	KB     *KnowledgeBase
	Feed   *NewsFeed // nil disables news
	Logger *zap.Logger
}

// Insights explains the known events of a bond. Matching headlines, when
// a feed is configured, are folded in as extra events; a feed failure only
// drops the news part.
func (g *Generator) Insights(ctx context.Context, bondID, issuer string) Report {
	kb := g.KB
	if kb == nil {
		kb = DefaultKnowledgeBase()
	}
	rep := Report{BondID: bondID}

	if g.Feed != nil {
		news, err := g.Feed.ForBond(ctx, bondID, issuer)
		if err != nil {
			logging.OrNop(g.Logger).Warn("news lookup failed", zap.String("bond_id", bondID), zap.Error(err))
		} else if len(news) > 0 {
			rep.News = news
			kb = kb.With(EventsFromNews(news)...)
		}
	}

	rep.Explanations = kb.Explanations(bondID)
	if len(rep.Explanations) == 0 {
		rep.Explanations = []string{}
		rep.Message = NoInsights
	}
	return rep
}
