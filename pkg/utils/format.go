// Package utils provides display formatting shared by the CLI, the API and
// the risk report.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// Spreads and shares
// ════════════════════════════════════════════════════════════════════

// FormatBps formats a spread level in basis points.
// e.g., 120 → "120 bps", 87.5 → "87.5 bps"
func FormatBps(bps float64) string {
	return trimFloat(bps, 2) + " bps"
}

// FormatBpsChange formats a spread move with an explicit sign.
// e.g., 300 → "+300 bps", -50 → "-50 bps"
func FormatBpsChange(bps float64) string {
	if bps >= 0 {
		return "+" + FormatBps(bps)
	}
	return FormatBps(bps)
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatShare formats a fraction in [0,1] as an unsigned percentage.
// e.g., 0.4 → "40.00%"
func FormatShare(frac float64) string {
	return fmt.Sprintf("%.2f%%", frac*100)
}

// FormatFloat formats v with at most prec decimals, trailing zeros removed.
func FormatFloat(v float64, prec int) string {
	return trimFloat(v, prec)
}

// ════════════════════════════════════════════════════════════════════
// Amounts
// ════════════════════════════════════════════════════════════════════

// FormatINR formats an amount in Indian Rupee notation (₹12,34,567.89):
// the last three digits, then groups of two.
func FormatINR(amount float64) string {
	prefix := "₹"
	if amount < 0 {
		prefix = "-₹"
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	return prefix + groupIndian(intPart) + "." + frac
}

// FormatINRCompact formats an amount in lakh/crore notation.
// e.g., 1927345 → "₹19.27 L", 250000000 → "₹25 Cr"
func FormatINRCompact(amount float64) string {
	prefix := "₹"
	if amount < 0 {
		prefix = "-₹"
		amount = math.Abs(amount)
	}
	switch {
	case amount >= 1e7:
		return prefix + trimFloat(amount/1e7, 2) + " Cr"
	case amount >= 1e5:
		return prefix + trimFloat(amount/1e5, 2) + " L"
	case amount >= 1e3:
		return prefix + trimFloat(amount/1e3, 2) + " K"
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatVolume formats a traded quantity in lakh/crore notation.
// e.g., 1500 → "1.50 K", 25000000 → "2.50 Cr"
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e7:
		return fmt.Sprintf("%.2f Cr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%.2f L", v/1e5)
	case v >= 1e3:
		return fmt.Sprintf("%.2f K", v/1e3)
	default:
		return strconv.FormatInt(volume, 10)
	}
}

// groupIndian inserts Indian digit-group separators into a run of digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}

func trimFloat(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}
