package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ── Rating Tests ──

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want Rating
	}{
		{"AAA", RatingAAA},
		{" aa ", RatingAA},
		{"Bbb", RatingBBB},
		{"A-", RatingA},
		{"BB+", RatingBB},
		{"ccc", RatingCCC},
	}
	for _, tt := range tests {
		if got := ParseRating(tt.in); got != tt.want {
			t.Errorf("ParseRating(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRatingRank(t *testing.T) {
	aaa, ok := RatingAAA.Rank()
	if !ok || aaa != 0 {
		t.Errorf("AAA rank: got %d/%v, want 0/true", aaa, ok)
	}
	d, _ := RatingD.Rank()
	bbb, _ := RatingBBB.Rank()
	if d <= bbb {
		t.Errorf("D should rank below BBB: got %d <= %d", d, bbb)
	}
	if _, ok := Rating("XYZ").Rank(); ok {
		t.Error("unknown rating should not rank")
	}
}

func TestInvestmentGrade(t *testing.T) {
	for _, r := range []Rating{RatingAAA, RatingAA, RatingA, RatingBBB} {
		if !r.InvestmentGrade() {
			t.Errorf("%s should be investment grade", r)
		}
	}
	for _, r := range []Rating{RatingBB, RatingB, RatingCCC, RatingD, Rating("")} {
		if r.InvestmentGrade() {
			t.Errorf("%q should not be investment grade", r)
		}
	}
}

// ── Bond Record Tests ──

func validRecord() BondRecord {
	return BondRecord{
		ID:        "BOND1",
		Issuer:    "ACME",
		Sector:    "Energy",
		Rating:    RatingBBB,
		Yield:     5.2,
		Spread:    120,
		CashFlows: []float64{5, 5, 105},
	}
}

func TestBondRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("Validate: unexpected error %v", err)
	}

	rec := validRecord()
	rec.Issuer = ""
	rec.Sector = ""
	err := rec.Validate()
	if err == nil {
		t.Fatal("Validate: expected error for missing fields")
	}
	for _, field := range []string{"issuer", "sector"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Validate error %q does not name %s", err, field)
		}
	}

	rec = validRecord()
	rec.ID = ""
	if err := rec.Validate(); err == nil || !strings.Contains(err.Error(), "bond_id") {
		t.Errorf("Validate: got %v, want an error naming bond_id", err)
	}
}

func TestMissingFieldsUsesJSONNames(t *testing.T) {
	type request struct {
		BondID string   `json:"bond_id" validate:"required"`
		Latest *float64 `json:"latest_spread,omitempty" validate:"required"`
		Note   string   `json:"note"`
	}
	got, err := MissingFields(request{})
	if err != nil {
		t.Fatalf("MissingFields: %v", err)
	}
	if strings.Join(got, ",") != "bond_id,latest_spread" {
		t.Errorf("missing: got %v, want [bond_id latest_spread]", got)
	}

	v := 0.0
	if got, _ := MissingFields(request{BondID: "X", Latest: &v}); len(got) != 0 {
		t.Errorf("zero latest_spread is present: got %v", got)
	}
}

func TestBondRecordEmptyCashFlows(t *testing.T) {
	rec := validRecord()
	rec.CashFlows = []float64{}
	if err := rec.Validate(); err == nil {
		t.Error("Validate: expected error for empty cash_flows")
	}
	rec.CashFlows = nil
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate: absent cash_flows should pass, got %v", err)
	}
}

func TestBondRecordLatest(t *testing.T) {
	rec := validRecord()
	if got := rec.Latest(); got != 120 {
		t.Errorf("Latest without LatestSpread: got %f, want 120", got)
	}
	v := 135.0
	rec.LatestSpread = &v
	if got := rec.Latest(); got != 135 {
		t.Errorf("Latest: got %f, want 135", got)
	}
}

// ── Macro Tests ──

func TestLatestValue(t *testing.T) {
	a, b := 4.1, 4.3
	obs := []MacroObservation{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: &a},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: &b},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	got, ok := LatestValue(obs)
	if !ok || got != 4.3 {
		t.Errorf("LatestValue: got %f/%v, want 4.3/true", got, ok)
	}
	if obs[2].Valid() {
		t.Error("missing observation should not be valid")
	}
	if _, ok := LatestValue(obs[2:]); ok {
		t.Error("LatestValue over only missing values should report false")
	}
}

// ── Notification Tests ──

func TestNotificationWireFormat(t *testing.T) {
	data, err := json.Marshal(Notification{BondID: "BOND1", Message: "hi", Channel: "n8n"})
	if err != nil {
		t.Fatalf("json.Marshal(Notification) error: %v", err)
	}
	want := `{"bond_id":"BOND1","message":"hi","channel":"n8n"}`
	if string(data) != want {
		t.Errorf("Notification JSON: got %s, want %s", data, want)
	}
}
