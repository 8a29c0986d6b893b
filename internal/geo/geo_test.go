package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// TestHaversineDistance_KnownPair checks the distance between two points
// roughly one degree of latitude apart at the equator against the
// 111.32 km/degree rule of thumb used throughout this package.
func TestHaversineDistance_KnownPair(t *testing.T) {
	d := HaversineDistance(0, 0, 1, 0)
	if math.Abs(d-111195.0) > 500 {
		t.Errorf("HaversineDistance(0,0,1,0) = %.1f, want ~111195", d)
	}
}

func TestHaversineDistance_SamePoint(t *testing.T) {
	d := HaversineDistance(47.7508, 7.3359, 47.7508, 7.3359)
	if d != 0 {
		t.Errorf("distance between identical points = %v, want 0", d)
	}
}

// TestHaversineDistance_S1Pair mirrors scenario S1 from spec.md §8: two
// points about 111 m apart.
func TestHaversineDistance_S1Pair(t *testing.T) {
	d := HaversineDistance(47.7508, 7.3359, 47.7518, 7.3359)
	if d < 100 || d > 120 {
		t.Errorf("distance = %.2f, want ~111m", d)
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	lat, lon := 47.7508, 7.3359
	bearing := math.Pi / 4
	distance := 500.0

	destLat, destLon := DestinationPoint(lat, lon, distance, bearing)
	back := HaversineDistance(lat, lon, destLat, destLon)

	if math.Abs(back-distance) > 1.0 {
		t.Errorf("round-trip distance = %.2f, want ~%.2f", back, distance)
	}
}

func TestMetersToDegrees(t *testing.T) {
	got := MetersToDegrees(300)
	want := 300.0 / 111320.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("MetersToDegrees(300) = %v, want %v", got, want)
	}
}

func TestTileRoundTrip(t *testing.T) {
	lat, lon, zoom := 47.7508, 7.3359, 14
	x, y := LatLonToTile(lat, lon, zoom)
	tlat, tlon := TileToLatLon(x, y, zoom)

	// The tile's top-left corner must be within one tile-width of the
	// source point.
	tileDeg := 360.0 / float64(int(1)<<uint(zoom))
	if math.Abs(tlat-lat) > tileDeg || math.Abs(tlon-lon) > tileDeg {
		t.Errorf("tile round trip drifted too far: got (%.4f,%.4f) from (%.4f,%.4f)", tlat, tlon, lat, lon)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Error("Clamp(5,0,10) should be unchanged")
	}
	if Clamp(-1, 0, 10) != 0 {
		t.Error("Clamp(-1,0,10) should floor to 0")
	}
	if Clamp(11, 0, 10) != 10 {
		t.Error("Clamp(11,0,10) should ceil to 10")
	}
}

func TestHaversineDistancePoints(t *testing.T) {
	a := orb.Point{7.3359, 47.7508} // lon, lat
	b := orb.Point{7.3359, 47.7518}
	d := HaversineDistancePoints(a, b)
	if d < 100 || d > 120 {
		t.Errorf("distance = %.2f, want ~111m", d)
	}
}
