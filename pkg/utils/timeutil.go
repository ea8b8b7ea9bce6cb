package utils

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30). Reports and alert
// timestamps are rendered in it.
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// tz database unavailable
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// ToIST converts a time.Time to IST.
func ToIST(t time.Time) time.Time {
	return t.In(IST)
}

// ParseDateIST parses a "2006-01-02" date as midnight IST.
func ParseDateIST(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, IST)
}

// FormatDateIST formats a time.Time to "2006-01-02" in IST.
func FormatDateIST(t time.Time) string {
	return ToIST(t).Format("2006-01-02")
}

// FormatDateTimeIST formats a time.Time to "2006-01-02 15:04:05 IST".
func FormatDateTimeIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02 15:04:05 IST")
}

// ReportTimestamp formats t for report headers.
func ReportTimestamp(t time.Time) string {
	return t.In(IST).Format("02 Jan 2006, 03:04 PM IST")
}

// FormatElapsed formats a duration for log and CLI output.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
