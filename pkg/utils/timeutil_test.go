package utils

import (
	"testing"
	"time"
)

func TestNowIST(t *testing.T) {
	now := NowIST()
	if now.Location().String() != "Asia/Kolkata" && now.Location().String() != "IST" {
		t.Errorf("NowIST() location = %s, want Asia/Kolkata or IST", now.Location().String())
	}
}

func TestParseDateIST(t *testing.T) {
	d, err := ParseDateIST("2026-02-19")
	if err != nil {
		t.Fatalf("ParseDateIST failed: %v", err)
	}
	if d.Year() != 2026 || d.Month() != 2 || d.Day() != 19 {
		t.Errorf("ParseDateIST = %v, want 2026-02-19", d)
	}
	if _, err := ParseDateIST("19/02/2026"); err == nil {
		t.Error("ParseDateIST accepted a non-ISO date")
	}
}

func TestFormatDateIST(t *testing.T) {
	// 20:00 UTC is already the next day in IST.
	d := time.Date(2026, 2, 19, 20, 0, 0, 0, time.UTC)
	if got := FormatDateIST(d); got != "2026-02-20" {
		t.Errorf("FormatDateIST = %s, want 2026-02-20", got)
	}
}

func TestFormatDateTimeIST(t *testing.T) {
	d := time.Date(2026, 2, 19, 4, 0, 0, 0, time.UTC)
	if got := FormatDateTimeIST(d); got != "2026-02-19 09:30:00 IST" {
		t.Errorf("FormatDateTimeIST = %s, want 2026-02-19 09:30:00 IST", got)
	}
}

func TestReportTimestamp(t *testing.T) {
	d := time.Date(2026, 2, 19, 10, 30, 0, 0, IST)
	if got := ReportTimestamp(d); got != "19 Feb 2026, 10:30 AM IST" {
		t.Errorf("ReportTimestamp = %s, want 19 Feb 2026, 10:30 AM IST", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2.0h"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
