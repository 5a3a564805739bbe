package stats

import (
	"math"

	"github.com/spf13/cast"
)

// number reads v as a float, falling back to 0 for anything that is absent,
// unparseable, NaN or infinite.
func number(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// count is number rounded to an int, clamped to [0, math.MaxInt32].
func count(v any) int {
	n := math.Round(number(v))
	switch {
	case n < 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int(n)
}

// lookup returns the first key present in m with a non-nil value.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func numberOf(m map[string]any, keys ...string) float64 {
	v, _ := lookup(m, keys...)
	return number(v)
}

func countOf(m map[string]any, keys ...string) int {
	v, _ := lookup(m, keys...)
	return count(v)
}

func stringOf(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := cast.ToString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// percent computes part/whole as a rounded percentage in [0, 100]. A zero
// whole yields empty.
func percent(part, whole, empty float64) float64 {
	if whole <= 0 {
		return empty
	}
	return round2(clampPct(part / whole * 100))
}
