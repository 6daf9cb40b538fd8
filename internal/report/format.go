package report

import "fmt"

// FormatPercent renders a fraction as a one-decimal percentage, e.g. 0.153 → "15.3%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// FormatHours renders time to close in hours, days, or 30-day months.
func FormatHours(hours float64) string {
	switch {
	case hours < 24:
		return fmt.Sprintf("%.1fh", hours)
	case hours < 720:
		return fmt.Sprintf("%.1f days", hours/24)
	default:
		return fmt.Sprintf("%.1f months", hours/720)
	}
}
