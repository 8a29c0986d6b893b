// Package geo provides the projection, distance, and tile-math primitives
// shared by the road graph, planner, interference graph, and vehicle
// kinematics. Every coordinate that crosses a component boundary is an
// orb.Point with X()=longitude, Y()=latitude; callers that need
// (lat, lon) order for haversine-style math convert at the call site.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusM is the mean Earth radius used for haversine distance.
	EarthRadiusM = 6371000.0

	// MetersPerDegree is the equirectangular approximation used throughout
	// the engine to convert a small lat/lon delta to meters and back. It is
	// accurate to within about 1% at mid-latitudes, which spec.md treats as
	// below the resolution of the communication model.
	MetersPerDegree = 111320.0
)

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

// HaversineDistance returns the great-circle distance in meters between
// two (lat, lon) points.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLon := degToRad(lon2 - lon1)

	rlat1 := degToRad(lat1)
	rlat2 := degToRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(rlat1)*math.Cos(rlat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Bearing returns the initial bearing in radians from (lat1, lon1) to
// (lat2, lon2), measured clockwise from north.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	dLon := degToRad(lon2 - lon1)
	rlat1 := degToRad(lat1)
	rlat2 := degToRad(lat2)

	y := math.Sin(dLon) * math.Cos(rlat2)
	x := math.Cos(rlat1)*math.Sin(rlat2) - math.Sin(rlat1)*math.Cos(rlat2)*math.Cos(dLon)

	return math.Atan2(y, x)
}

// DestinationPoint returns the (lat, lon) reached by travelling distanceM
// meters from (lat, lon) along bearingRad radians.
func DestinationPoint(lat, lon, distanceM, bearingRad float64) (destLat, destLon float64) {
	latRad := degToRad(lat)
	lonRad := degToRad(lon)
	angular := distanceM / EarthRadiusM

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(lat2),
	)

	return radToDeg(lat2), radToDeg(lon2)
}

// MetersToDegrees converts a distance in meters to the equirectangular
// degree approximation used for spatial index box queries (spec.md §4.3
// step 3: tx_radius_m / 111320).
func MetersToDegrees(meters float64) float64 {
	return meters / MetersPerDegree
}

// LatLonToMercator projects (lat, lon) to Web-Mercator meters, for the
// tile/renderer boundary. Unused by the tick loop itself.
func LatLonToMercator(lat, lon float64) (x, y float64) {
	x = lon * 20037508.34 / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * 20037508.34 / 180.0
	return x, y
}

// MercatorToLatLon inverts LatLonToMercator.
func MercatorToLatLon(x, y float64) (lat, lon float64) {
	lon = (x / 20037508.34) * 180.0
	lat = (y / 20037508.34) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return lat, lon
}

// LatLonToTile returns the slippy-map tile (x, y) containing (lat, lon) at
// the given zoom level.
func LatLonToTile(lat, lon float64, zoom int) (x, y int) {
	n := 1 << uint(zoom)
	x = int((lon + 180.0) / 360.0 * float64(n))
	latRad := degToRad(lat)
	y = int((1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * float64(n))
	return x, y
}

// TileToLatLon inverts LatLonToTile, returning the tile's top-left corner.
func TileToLatLon(x, y, zoom int) (lat, lon float64) {
	n := 1 << uint(zoom)
	lon = float64(x)/float64(n)*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1.0 - 2.0*float64(y)/float64(n))))
	lat = radToDeg(latRad)
	return lat, lon
}

// Clamp restricts value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// HaversineDistancePoints is HaversineDistance over orb.Points, where
// X()=longitude and Y()=latitude per this repo's coordinate convention.
func HaversineDistancePoints(a, b orb.Point) float64 {
	return HaversineDistance(a.Y(), a.X(), b.Y(), b.X())
}

// BearingPoints is Bearing over orb.Points.
func BearingPoints(a, b orb.Point) float64 {
	return Bearing(a.Y(), a.X(), b.Y(), b.X())
}

// DestinationFrom returns the orb.Point reached by travelling distanceM
// meters from p along bearingRad radians.
func DestinationFrom(p orb.Point, distanceM, bearingRad float64) orb.Point {
	lat, lon := DestinationPoint(p.Y(), p.X(), distanceM, bearingRad)
	return orb.Point{lon, lat}
}
