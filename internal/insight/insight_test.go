package insight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Credit Desk</title>
  <item>
    <title>Acme Corp bonds slide on guidance cut</title>
    <link>https://news.example.com/acme</link>
    <description><![CDATA[<p>Spreads on <b>Acme Corp</b> paper widened.</p>]]></description>
    <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Regional banks rally</title>
    <link>https://news.example.com/banks</link>
    <description>Financials outperform.</description>
    <pubDate>Wed, 03 Jan 2024 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssXML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaultKnowledgeBase(t *testing.T) {
	kb := DefaultKnowledgeBase()
	assert.Equal(t, 4, kb.Len())
	assert.Equal(t, []string{"ACME2025", "XYZ2030"}, kb.BondIDs())

	events := kb.Events("ACME2025")
	require.Len(t, events, 2)
	assert.Equal(t, "Downgrade", events[0].Event)

	events[0].Event = "tampered"
	assert.Equal(t, "Downgrade", kb.Events("ACME2025")[0].Event)
}

func TestExplainIsDeterministic(t *testing.T) {
	e := Event{BondID: "ACME2025", Event: "Downgrade", Details: "Moody's downgraded Acme Corp to A- in 2024."}
	first := Explain(e)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Explain(e))
	}
	assert.Contains(t, first, "Downgrade")
	assert.Contains(t, first, e.Details)
}

func TestExplanations(t *testing.T) {
	kb := DefaultKnowledgeBase()
	assert.Len(t, kb.Explanations("XYZ2030"), 2)
	assert.Nil(t, kb.Explanations("UNKNOWN"))
}

func TestWithLeavesOriginalUntouched(t *testing.T) {
	kb := DefaultKnowledgeBase()
	more := kb.With(Event{BondID: "TEL2031", Event: "Outlook", Details: "Outlook revised to negative."}, Event{Event: "orphan"})
	assert.Equal(t, 5, more.Len())
	assert.Equal(t, 4, kb.Len())
	assert.Empty(t, kb.Events("TEL2031"))
}

func TestNewsFeedLatestAndForBond(t *testing.T) {
	srv := feedServer(t)
	feed := NewNewsFeed([]FeedSource{
		{Name: "desk", URL: srv.URL + "/rss"},
		{Name: "down", URL: srv.URL + "/broken"},
	}, 0, nil)

	items, err := feed.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "broken feed is skipped")
	assert.Equal(t, "Regional banks rally", items[0].Title, "newest first")
	assert.Equal(t, "Spreads on Acme Corp paper widened.", items[1].Summary)

	acme, err := feed.ForBond(context.Background(), "ACME2025", "Acme Corp")
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, []string{"ACME2025"}, acme[0].BondIDs)

	none, err := feed.ForBond(context.Background(), "ZZZ2040", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewsFeedMaxItems(t *testing.T) {
	srv := feedServer(t)
	feed := NewNewsFeed([]FeedSource{{Name: "desk", URL: srv.URL}}, 1, nil)
	items, err := feed.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGeneratorInsights(t *testing.T) {
	g := &Generator{}
	rep := g.Insights(context.Background(), "ACME2025", "")
	assert.Len(t, rep.Explanations, 2)
	assert.Empty(t, rep.Message)

	rep = g.Insights(context.Background(), "NOPE", "")
	assert.Empty(t, rep.Explanations)
	assert.Equal(t, NoInsights, rep.Message)
}

func TestGeneratorFoldsInNews(t *testing.T) {
	srv := feedServer(t)
	g := &Generator{Feed: NewNewsFeed([]FeedSource{{Name: "desk", URL: srv.URL}}, 0, nil)}

	rep := g.Insights(context.Background(), "ACME2025", "Acme Corp")
	assert.Len(t, rep.News, 1)
	assert.Len(t, rep.Explanations, 3)
	assert.Equal(t, 4, DefaultKnowledgeBase().Len())
}

func TestSourcesFromURLs(t *testing.T) {
	got := SourcesFromURLs([]string{"https://news.example.com/rss/credit", " ", "http://feeds.local"})
	require.Len(t, got, 2)
	assert.Equal(t, "news.example.com", got[0].Name)
	assert.Equal(t, "feeds.local", got[1].Name)
}
