package models

import "time"

// NewsItem is a headline tied to one or more bonds.
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	BondIDs     []string  `json:"bond_ids,omitempty"`
}
