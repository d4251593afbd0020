package analysis

import (
	"fmt"
	"math"
)

// Unit tells FormatHoursMinutes how to read its input
type Unit string

const (
	UnitHours   Unit = "hours"
	UnitSeconds Unit = "seconds"
)

// NoData is rendered for negative or missing values
const NoData = "-"

// FormatHoursMinutes renders a duration as "Xh Ym", rounded to the nearest
// minute. Zero is "0h 0m"; negative, NaN and infinite values are "-".
func FormatHoursMinutes(value float64, unit Unit) string {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return NoData
	}

	seconds := value
	if unit != UnitSeconds {
		seconds = value * 3600
	}
	minutes := int64(math.Round(seconds / 60))
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatHours renders hours with two decimals, as used in table cells
func FormatHours(hours float64) string {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return NoData
	}
	return fmt.Sprintf("%.2f", hours)
}

// FormatPercent renders a percentage with two decimals and a % sign
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return NoData
	}
	return fmt.Sprintf("%.2f%%", pct)
}
