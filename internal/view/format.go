package view

import (
	"fmt"
	"math"
	"strconv"
)

// Band classifies a pass rate for the progress indicator.
type Band string

const (
	BandNominal  Band = "nominal"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

func BandFor(pct float64) Band {
	switch {
	case pct >= 95:
		return BandNominal
	case pct >= 80:
		return BandWarning
	default:
		return BandCritical
	}
}

// formatPct drops the decimals of whole percentages: 100 → "100%", 66.67 → "66.67%".
func formatPct(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64) + "%"
	}
	return fmt.Sprintf("%.2f%%", v)
}

func formatMs(v float64) string {
	return fmt.Sprintf("%.2fms", v)
}

func formatRate(v float64) string {
	return fmt.Sprintf("%.2f/s", v)
}

func fill(pct float64) string {
	return strconv.FormatFloat(math.Max(0, math.Min(100, pct)), 'f', 2, 64)
}
