package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SecondsThreshold separates raw seconds from decimal hours in numeric
// duration fields. Upstream does not tag units, so values above it are
// taken as seconds and everything else as hours.
const SecondsThreshold = 10000

// ParseDuration normalizes a raw duration field into canonical seconds.
//
// Accepted forms are "H:MM" strings, numbers (or numeric strings) in seconds
// when above SecondsThreshold, and decimal hours otherwise. Anything else,
// including nil, empty and malformed input, yields 0.
func ParseDuration(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case string:
		return parseDurationString(v)
	case json.Number:
		return parseDurationString(v.String())
	case float64:
		return fromNumber(v)
	case float32:
		return fromNumber(float64(v))
	case int:
		return fromNumber(float64(v))
	case int32:
		return fromNumber(float64(v))
	case int64:
		return fromNumber(float64(v))
	case uint32:
		return fromNumber(float64(v))
	case uint64:
		return fromNumber(float64(v))
	case []byte:
		return parseDurationString(string(v))
	default:
		return 0
	}
}

func parseDurationString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		hours, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0
		}
		minutes, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0
		}
		return clampSeconds(hours*3600 + minutes*60)
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return fromNumber(n)
}

func fromNumber(n float64) int64 {
	if n > SecondsThreshold {
		return clampSeconds(n)
	}
	return clampSeconds(n * 3600)
}

func clampSeconds(s float64) int64 {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 0
	}
	return int64(math.Round(s))
}

// Hours converts canonical seconds to fractional hours
func Hours(seconds int64) float64 {
	return float64(seconds) / 3600
}
