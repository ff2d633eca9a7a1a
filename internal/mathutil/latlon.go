package mathutil

import "math"

// LatLonToRay converts spherical coordinates (radians) to a unit direction.
// lat 0 lon 0 is straight ahead (+z), positive lon swings right (+x),
// positive lat swings up (+y).
func LatLonToRay(lat, lon float64) Vec3 {
	clat := math.Cos(lat)
	return Vec3{
		math.Sin(lon) * clat,
		math.Sin(lat),
		math.Cos(lon) * clat,
	}
}

// RayToLatLon is the inverse of LatLonToRay for unit rays.
func RayToLatLon(ray Vec3) (lat, lon float64) {
	lon = math.Atan2(ray[0], ray[2])
	lat = math.Atan2(ray[1], math.Sqrt(ray[0]*ray[0]+ray[2]*ray[2]))
	return lat, lon
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }
