package analysis

import (
	"sort"
	"strconv"
)

// SortKeys orders entity keys naturally: numerically when every key is a
// plain decimal number, lexicographically otherwise.
func SortKeys(keys []string) {
	numeric := true
	values := make(map[string]float64, len(keys))
	for _, k := range keys {
		if !isDecimal(k) {
			numeric = false
			break
		}
		f, err := strconv.ParseFloat(k, 64)
		if err != nil {
			numeric = false
			break
		}
		values[k] = f
	}

	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := values[keys[i]], values[keys[j]]
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
}

// isDecimal accepts an optional sign, digits and at most one '.'.
// Exponents, hex, NaN and Inf are rejected.
func isDecimal(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	digits, dot := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}
