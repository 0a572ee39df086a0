package series

import (
	"strconv"
	"strings"
)

// Age-band label helpers for shaping government incidence tables into the
// IncidenceSeries contract. Labels look like "1-4", "70-74", "85+". The
// aggregate row "All Ages" never maps to an age.

// openEndedHalfWidth is the assumed half-width of the terminal open-ended
// band (treated as a 5-year group).
const openEndedHalfWidth = 2.5

// AgeGroupStart converts an age-band label to its starting age.
func AgeGroupStart(label string) (float64, bool) {
	label = strings.TrimSpace(label)
	if label == "" || label == "All Ages" {
		return 0, false
	}
	if strings.HasSuffix(label, "+") {
		start, err := strconv.ParseFloat(strings.TrimSuffix(label, "+"), 64)
		if err != nil {
			return 0, false
		}
		return start, true
	}
	if lo, _, ok := strings.Cut(label, "-"); ok {
		start, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return 0, false
		}
		return start, true
	}
	if v, err := strconv.ParseFloat(label, 64); err == nil {
		return v, true
	}
	return 0, false
}

// AgeGroupMid converts an age-band label to its midpoint age.
func AgeGroupMid(label string) (float64, bool) {
	label = strings.TrimSpace(label)
	if label == "" || label == "All Ages" {
		return 0, false
	}
	if strings.HasSuffix(label, "+") {
		start, err := strconv.ParseFloat(strings.TrimSuffix(label, "+"), 64)
		if err != nil {
			return 0, false
		}
		return start + openEndedHalfWidth, true
	}
	if lo, hi, ok := strings.Cut(label, "-"); ok {
		loV, errLo := strconv.ParseFloat(lo, 64)
		hiV, errHi := strconv.ParseFloat(hi, 64)
		if errLo != nil || errHi != nil {
			return 0, false
		}
		return (loV + hiV) / 2.0, true
	}
	if v, err := strconv.ParseFloat(label, 64); err == nil {
		return v, true
	}
	return 0, false
}
