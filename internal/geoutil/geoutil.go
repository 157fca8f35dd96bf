// Package geoutil provides the pure location and hashing helpers of the feed:
// great-circle distances, the deterministic pseudo-distance used for rows
// without coordinates and the hash-derived anonymous nicknames.
package geoutil

import "math"

const earthRadiusKm = 6371

// Seoul City Hall. Used whenever the viewer's position is unknown so that
// the nearby scope keeps working without a location permission.
const (
	FallbackLatitude  = 37.5665
	FallbackLongitude = 126.9780
)

// pseudoDistances is the fixed table a coordinate-less issue is mapped into.
var pseudoDistances = []float64{0.15, 0.4, 0.8, 1.2, 1.8, 2.5, 3.3, 4.5, 5.8, 7.0, 8.5, 11.0}

// Distance returns the great-circle distance in kilometers between two
// points, following the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := toRad(lat2 - lat1)
	dlon := toRad(lon2 - lon1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dlon/2)*math.Sin(dlon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// PseudoDistance returns a stable fake distance in kilometers for an issue
// without coordinates. Same identifier, same distance: repeated queries must
// not shuffle the nearby view.
func PseudoDistance(id string) float64 {
	h := Hash(id)
	if h < 0 {
		h = -h
	}
	return pseudoDistances[int(h)%len(pseudoDistances)]
}

// Hash computes a 31-shift string hash with int32 wraparound. The wraparound
// is deliberate: identifiers already distributed by the original web client
// keep mapping to the same buckets.
func Hash(s string) int32 {
	var h int32
	for _, r := range s {
		h = (h << 5) - h + int32(r)
	}
	return h
}

func toRad(degree float64) float64 {
	return degree * (math.Pi / 180)
}
