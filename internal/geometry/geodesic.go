package geometry

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for geodesic offsets.
const EarthRadiusMeters = 6371000.0

// DestinationPoint returns the point reached from (lat, lng) after travelling
// distance meters along the initial bearing (degrees clockwise from north).
func DestinationPoint(lat, lng, bearing, distance float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lng)
	brng := bearing * math.Pi / 180
	angular := distance / EarthRadiusMeters

	lat1 := p.Lat.Radians()
	lng1 := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	dest := s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}.Normalized()
	return dest.Lat.Degrees(), dest.Lng.Degrees()
}
