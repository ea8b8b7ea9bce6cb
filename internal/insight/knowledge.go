// Package insight explains bond credit events in plain language. Events
// come from a read-only knowledge base, optionally enriched with headlines
// pulled from RSS/Atom feeds.
package insight

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// NoInsights is returned when a bond has no known events.
const NoInsights = "No recent events or insights found for this bond."

// Event is one credit event for a bond.
type Event struct {
	BondID  string    `json:"bond_id"`
	Event   string    `json:"event"`
	Details string    `json:"details"`
	Source  string    `json:"source,omitempty"`
	At      time.Time `json:"at,omitempty"`
}

// KnowledgeBase is an immutable index of events by bond id.
type KnowledgeBase struct {
	byBond map[string][]Event
	count  int
}

// NewKnowledgeBase indexes events, keeping their order within each bond.
func NewKnowledgeBase(events ...Event) *KnowledgeBase {
	kb := &KnowledgeBase{byBond: make(map[string][]Event)}
	for _, e := range events {
		id := strings.TrimSpace(e.BondID)
		if id == "" {
			continue
		}
		e.BondID = id
		kb.byBond[id] = append(kb.byBond[id], e)
		kb.count++
	}
	return kb
}

var defaultKB = NewKnowledgeBase(
	Event{BondID: "ACME2025", Event: "Downgrade", Details: "Moody's downgraded Acme Corp to A- in 2024."},
	Event{BondID: "ACME2025", Event: "Spread Widening", Details: "Spread widened by 30bps after Q2 earnings."},
	Event{BondID: "XYZ2030", Event: "Upgrade", Details: "S&P upgraded XYZ Inc. to AA in 2023."},
	Event{BondID: "XYZ2030", Event: "Regulatory", Details: "New capital requirements introduced for sector in 2024."},
)

// DefaultKnowledgeBase returns the built-in sample events.
func DefaultKnowledgeBase() *KnowledgeBase { return defaultKB }

// With returns a new knowledge base holding kb's events plus extra.
func (kb *KnowledgeBase) With(extra ...Event) *KnowledgeBase {
	all := make([]Event, 0, kb.count+len(extra))
	for _, id := range kb.BondIDs() {
		all = append(all, kb.byBond[id]...)
	}
	return NewKnowledgeBase(append(all, extra...)...)
}

// Events returns a copy of the events for bondID.
func (kb *KnowledgeBase) Events(bondID string) []Event {
	return append([]Event(nil), kb.byBond[strings.TrimSpace(bondID)]...)
}

// BondIDs returns every bond with at least one event, sorted.
func (kb *KnowledgeBase) BondIDs() []string {
	ids := make([]string, 0, len(kb.byBond))
	for id := range kb.byBond {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the total number of events.
func (kb *KnowledgeBase) Len() int { return kb.count }

// ─── Explanations ───────────────────────────────────────────────────

var templates = []func(Event) string{
	func(e Event) string { return fmt.Sprintf("Recent event: %s. Details: %s", e.Event, e.Details) },
	func(e Event) string { return fmt.Sprintf("Insight: %s (Event: %s)", e.Details, e.Event) },
	func(e Event) string { return fmt.Sprintf("Update for bond: %s - %s", e.Event, e.Details) },
}

// Explain renders an event as one sentence. The template is chosen from a
// hash of the event, so the same event always reads the same way.
func Explain(e Event) string {
	h := fnv.New32a()
	h.Write([]byte(e.BondID + "\x00" + e.Event + "\x00" + e.Details))
	return templates[h.Sum32()%uint32(len(templates))](e)
}

// Explanations renders every event of bondID, or nil when there is none.
func (kb *KnowledgeBase) Explanations(bondID string) []string {
	events := kb.Events(bondID)
	if len(events) == 0 {
		return nil
	}
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = Explain(e)
	}
	return out
}
