package photo

import "github.com/golang/geo/s2"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371

// LatLng converts l for use with the s2 geometry package.
func (l Location) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Latitude, l.Longitude)
}

// Distance returns the Haversine great-circle distance between a and b in meters.
func Distance(a, b Location) float64 {
	angle := a.LatLng().Distance(b.LatLng())
	return angle.Radians() * EarthRadiusKm * 1000
}
