package series

import (
	"fmt"
	"math"

	"oncorisk/domain/core"

	"github.com/montanaflynn/stats"
)

// Point is a single age-specific incidence observation.
// Year is optional; zero means the source table did not carry one.
type Point struct {
	Age  float64 `json:"age"`
	Rate float64 `json:"rate"`
	Year int     `json:"year,omitempty"`
}

// IncidenceSeries is an ordered age->rate curve supplied by the data-loading
// layer.
// INVARIANTS:
// - Ages strictly increasing and non-negative
// - Rates non-negative (incidence per population unit, e.g. per 100,000)
// - Immutable once constructed
type IncidenceSeries struct {
	points []Point
}

// New constructs an IncidenceSeries, validating the series invariants.
func New(points []Point) (*IncidenceSeries, error) {
	if len(points) == 0 {
		return nil, core.NewInputError("incidence series is empty")
	}

	prev := math.Inf(-1)
	for i, pt := range points {
		if math.IsNaN(pt.Age) || math.IsNaN(pt.Rate) {
			return nil, core.NewInputError(fmt.Sprintf("NaN value at index %d", i))
		}
		if pt.Age < 0 {
			return nil, core.NewInputError(fmt.Sprintf("negative age %g at index %d", pt.Age, i))
		}
		if pt.Rate < 0 {
			return nil, core.NewInputError(fmt.Sprintf("negative rate %g at index %d", pt.Rate, i))
		}
		if pt.Age <= prev {
			return nil, core.NewInputError(fmt.Sprintf("ages must be strictly increasing, got %g after %g", pt.Age, prev))
		}
		prev = pt.Age
	}

	owned := make([]Point, len(points))
	copy(owned, points)
	return &IncidenceSeries{points: owned}, nil
}

// FromArrays constructs an IncidenceSeries from parallel age/rate slices.
func FromArrays(ages, rates []float64) (*IncidenceSeries, error) {
	if len(ages) != len(rates) {
		return nil, core.NewInputError(fmt.Sprintf("length mismatch: %d ages vs %d rates", len(ages), len(rates)))
	}

	points := make([]Point, len(ages))
	for i := range ages {
		points[i] = Point{Age: ages[i], Rate: rates[i]}
	}
	return New(points)
}

// Len returns the number of observations.
func (s *IncidenceSeries) Len() int {
	return len(s.points)
}

// At returns the observation at index i.
func (s *IncidenceSeries) At(i int) Point {
	return s.points[i]
}

// Ages returns a copy of the age axis.
func (s *IncidenceSeries) Ages() []float64 {
	out := make([]float64, len(s.points))
	for i, pt := range s.points {
		out[i] = pt.Age
	}
	return out
}

// Rates returns a copy of the rate values.
func (s *IncidenceSeries) Rates() []float64 {
	out := make([]float64, len(s.points))
	for i, pt := range s.points {
		out[i] = pt.Rate
	}
	return out
}

// MaxRate returns the largest observed rate.
func (s *IncidenceSeries) MaxRate() float64 {
	max, err := stats.Max(s.Rates())
	if err != nil {
		return 0
	}
	return max
}

// MeanRate returns the mean observed rate.
func (s *IncidenceSeries) MeanRate() float64 {
	mean, err := stats.Mean(s.Rates())
	if err != nil {
		return 0
	}
	return mean
}

// HasSignal reports whether any rate is strictly positive. A series without
// signal is rejected as a calibration target.
func (s *IncidenceSeries) HasSignal() bool {
	for _, pt := range s.points {
		if pt.Rate > 0 {
			return true
		}
	}
	return false
}

// FilterYear returns the age-sorted sub-series for one calendar year.
// Points without a year annotation are excluded.
func (s *IncidenceSeries) FilterYear(year int) (*IncidenceSeries, error) {
	var points []Point
	for _, pt := range s.points {
		if pt.Year == year {
			points = append(points, pt)
		}
	}
	if len(points) == 0 {
		return nil, core.NewInputError(fmt.Sprintf("no observations for year %d", year))
	}
	return New(points)
}
