package geo

import (
	"fmt"
	"math"
)

// HalfLifeKm is the default distance at which DistanceDecay reaches 0.5.
const HalfLifeKm = 150.0

// LocationMatch is the result of comparing two locations.
type LocationMatch struct {
	Score      float64
	DistanceKm *float64
	Reason     string
}

// LocationSimilarity compares two raw location strings with step tiers:
// same city 1.0, within 50 km 0.9, within 200 km 0.6, otherwise 0. An
// unknown distance counts as infinitely far.
func LocationSimilarity(o Oracle, a, b string) LocationMatch {
	ca, cb := NormalizeCity(o, a), NormalizeCity(o, b)
	if ca == "" || cb == "" {
		return LocationMatch{Reason: "no location info"}
	}
	if ca == cb {
		return LocationMatch{Score: 1, DistanceKm: ptr(0), Reason: "same city"}
	}

	d, ok := o.Distance(ca, cb)
	if !ok || math.IsInf(d, 0) || math.IsNaN(d) {
		return LocationMatch{Reason: "far"}
	}
	switch {
	case d <= 0:
		return LocationMatch{Score: 1, DistanceKm: ptr(0), Reason: "same place"}
	case d <= 50:
		return LocationMatch{Score: 0.9, DistanceKm: ptr(d), Reason: fmt.Sprintf("%d km away", int(d))}
	case d <= 200:
		return LocationMatch{Score: 0.6, DistanceKm: ptr(d), Reason: fmt.Sprintf("%d km away", int(d))}
	default:
		return LocationMatch{DistanceKm: ptr(d), Reason: fmt.Sprintf("%d km away", int(d))}
	}
}

// DistanceDecay returns 2^(-d/halfLife): 1 at zero distance, 0.5 at one
// half-life. Negative or non-finite distances and a non-positive half-life
// yield 0.
func DistanceDecay(d, halfLife float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || halfLife <= 0 {
		return 0
	}
	return math.Exp(-math.Ln2 * d / halfLife)
}

// CityDecay is DistanceDecay between two normalized cities: 1 for the same
// city, 0 when the distance is unknown.
func CityDecay(o Oracle, a, b string, halfLife float64) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	d, ok := o.Distance(a, b)
	if !ok {
		return 0
	}
	return DistanceDecay(d, halfLife)
}

func ptr(f float64) *float64 { return &f }
