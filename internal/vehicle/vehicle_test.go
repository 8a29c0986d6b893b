package vehicle

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNew_ClampsRadius(t *testing.T) {
	v := New(1, 0, 0, 1000)
	if v.TxRadiusM != MaxTxRadiusM {
		t.Errorf("TxRadiusM = %v, want clamped to %v", v.TxRadiusM, MaxTxRadiusM)
	}
	v2 := New(2, 0, 0, 10)
	if v2.TxRadiusM != MinTxRadiusM {
		t.Errorf("TxRadiusM = %v, want clamped to %v", v2.TxRadiusM, MinTxRadiusM)
	}
}

func TestAdvance_InactiveNoOp(t *testing.T) {
	v := New(1, 10, 10, 200)
	v.Active = false
	v.SpeedMPS = 10
	v.Advance(1.0)
	if v.Lat != 10 || v.Lon != 10 {
		t.Error("inactive vehicle moved")
	}
}

func TestAdvance_ZeroSpeedNeverMoves(t *testing.T) {
	v := New(1, 10, 10, 200)
	v.SpeedMPS = 0
	v.Advance(1.0)
	if v.Lat != 10 || v.Lon != 10 {
		t.Error("zero-speed vehicle moved (spec.md §8 invariant 9)")
	}
}

func TestAdvance_FreeFlightAlongHeading(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SpeedMPS = 10
	v.HeadingRad = 0 // due east: +lon
	v.Advance(1.0)

	if v.Lat != 0 {
		t.Errorf("lat drifted during due-east free flight: %v", v.Lat)
	}
	if v.Lon <= 0 {
		t.Errorf("lon did not advance east: %v", v.Lon)
	}
}

func TestAdvance_SnapsOntoCloseWaypoint(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SpeedMPS = 50
	v.SetPath([]orb.Point{{0.0001, 0.0001}, {1, 1}})

	v.Advance(1.0)
	if v.PathCursor != 1 {
		t.Fatalf("PathCursor = %d, want 1 after snapping onto first waypoint", v.PathCursor)
	}
	if v.Lat != 0.0001 || v.Lon != 0.0001 {
		t.Errorf("position = (%v,%v), want exact snap to waypoint", v.Lat, v.Lon)
	}
}

func TestAdvance_IdlesAtPathEnd(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SpeedMPS = 50
	v.SetPath([]orb.Point{{0.0001, 0.0001}})

	v.Advance(1.0)
	if v.PathCursor != len(v.Path) {
		t.Fatalf("PathCursor = %d, want %d (exhausted)", v.PathCursor, len(v.Path))
	}
	if v.SpeedMPS != 0 {
		t.Errorf("SpeedMPS = %v, want 0 once path is exhausted (spec.md §8 invariant 10)", v.SpeedMPS)
	}

	// Further advances must be no-ops: speed is 0.
	prevLat, prevLon := v.Lat, v.Lon
	v.Advance(1.0)
	if v.Lat != prevLat || v.Lon != prevLon {
		t.Error("idle vehicle moved after exhausting its path")
	}
}

func TestAdvance_StepsTowardFarWaypoint(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SpeedMPS = 10
	v.SetPath([]orb.Point{{1, 1}}) // far away; one tick must not reach it

	v.Advance(1.0)
	if v.PathCursor != 0 {
		t.Fatalf("PathCursor = %d, want 0 (still en route)", v.PathCursor)
	}
	if v.Lat <= 0 || v.Lon <= 0 {
		t.Errorf("expected motion toward (1,1), got (%v,%v)", v.Lat, v.Lon)
	}

	wantHeading := math.Atan2(1, 1)
	if math.Abs(v.HeadingRad-wantHeading) > 1e-9 {
		t.Errorf("HeadingRad = %v, want %v", v.HeadingRad, wantHeading)
	}
}

func TestPathCursorMonotonicNonDecreasing(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SpeedMPS = 1000
	v.SetPath([]orb.Point{{0.001, 0}, {0.002, 0}, {0.003, 0}})

	prev := v.PathCursor
	for i := 0; i < 10; i++ {
		v.Advance(1.0)
		if v.PathCursor < prev {
			t.Fatalf("PathCursor decreased: %d -> %d (spec.md §8 invariant 4)", prev, v.PathCursor)
		}
		prev = v.PathCursor
	}
}

func TestSetNeighbors(t *testing.T) {
	v := New(1, 0, 0, 200)
	v.SetNeighbors([]VehicleID{2, 3})
	if v.NeighborCount() != 2 {
		t.Errorf("NeighborCount = %d, want 2", v.NeighborCount())
	}
	if !v.IsNeighbor(2) || !v.IsNeighbor(3) {
		t.Error("expected 2 and 3 in neighbor set")
	}
	if v.IsNeighbor(4) {
		t.Error("did not expect 4 in neighbor set")
	}

	v.SetNeighbors(nil)
	if v.NeighborCount() != 0 {
		t.Errorf("NeighborCount after clearing = %d, want 0", v.NeighborCount())
	}
}
