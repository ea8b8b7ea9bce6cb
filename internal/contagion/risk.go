package contagion

import "strings"

// RiskLevel is an ordered risk scale for contagion annotations.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
	RiskSevere
)

var riskNames = [...]string{"low", "moderate", "high", "severe"}

// riskColors maps each level to the color tag the presentation layer uses.
var riskColors = [...]string{"green", "amber", "red", "darkred"}

func (r RiskLevel) String() string {
	if r < RiskLow || r > RiskSevere {
		return "unknown"
	}
	return riskNames[r]
}

// Color returns the display color of the level. Out-of-range levels clamp.
func (r RiskLevel) Color() string {
	return riskColors[r.clamp()]
}

func (r RiskLevel) clamp() RiskLevel {
	switch {
	case r < RiskLow:
		return RiskLow
	case r > RiskSevere:
		return RiskSevere
	}
	return r
}

// ParseRiskLevel reads a level name ("high", "Severe", "medium"). Unknown
// names resolve to RiskLow, so "high" is red and anything unrecognized is
// green.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "severe", "critical":
		return RiskSevere
	case "high":
		return RiskHigh
	case "moderate", "medium":
		return RiskModerate
	default:
		return RiskLow
	}
}

// MarshalText encodes the level by name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name via ParseRiskLevel.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	*r = ParseRiskLevel(string(b))
	return nil
}
