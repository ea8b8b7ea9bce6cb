package models

import "time"

// MacroObservation is one point of a macro time series (e.g. FRED DGS10).
// Value is nil when the source reported a non-numeric entry.
type MacroObservation struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value"`
}

// Valid reports whether the observation carries a numeric value.
func (o MacroObservation) Valid() bool { return o.Value != nil }

// LatestValue returns the most recent numeric observation.
func LatestValue(obs []MacroObservation) (float64, bool) {
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].Value != nil {
			return *obs[i].Value, true
		}
	}
	return 0, false
}

// SeriesInfo describes a macro series found by search.
type SeriesInfo struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Frequency          string    `json:"frequency,omitempty"`
	Units              string    `json:"units,omitempty"`
	SeasonalAdjustment string    `json:"seasonal_adjustment,omitempty"`
	ObservationEnd     time.Time `json:"observation_end,omitempty"`
	Popularity         int       `json:"popularity,omitempty"`
}

// CurvePoint is one tenor of a yield curve, in percent.
type CurvePoint struct {
	Tenor    string    `json:"tenor"` // "3M", "2Y", "10Y", ...
	Years    float64   `json:"years"`
	Rate     float64   `json:"rate"`
	AsOf     time.Time `json:"as_of"`
	SeriesID string    `json:"series_id"`
}
