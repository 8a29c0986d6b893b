// Package vehicle implements the per-agent kinematics and path-following
// state machine (spec.md §3 Vehicle, §4.4).
package vehicle

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/v2vsim/v2vsim/internal/geo"
)

// MinTxRadiusM and MaxTxRadiusM bound the configurable transmission
// radius (spec.md §3: "tx_radius_m ∈ [100,500]").
const (
	MinTxRadiusM = 100.0
	MaxTxRadiusM = 500.0
)

// Vehicle is one mobile agent: a position, a kinematic state, an optional
// planned path, and a cached neighbor set written by the interference
// subsystem (spec.md §3).
type Vehicle struct {
	ID VehicleID

	Lat, Lon   float64
	SpeedMPS   float64
	HeadingRad float64
	AccelMPS2  float64
	TxRadiusM  float64
	Active     bool

	Path       []orb.Point
	PathCursor int

	Neighbors map[VehicleID]struct{}
}

// VehicleID identifies a vehicle for the lifetime of a population.
type VehicleID int

// New returns an active vehicle at (lat, lon) with a clamped transmission
// radius and no planned path.
func New(id VehicleID, lat, lon, txRadiusM float64) *Vehicle {
	return &Vehicle{
		ID:        id,
		Lat:       lat,
		Lon:       lon,
		TxRadiusM: geo.Clamp(txRadiusM, MinTxRadiusM, MaxTxRadiusM),
		Active:    true,
		Neighbors: map[VehicleID]struct{}{},
	}
}

// Position returns the vehicle's current position as an orb.Point.
func (v *Vehicle) Position() orb.Point { return orb.Point{v.Lon, v.Lat} }

// SetPath installs a new route and resets the cursor to the start
// (spec.md §3, §4.4).
func (v *Vehicle) SetPath(path []orb.Point) {
	v.Path = path
	v.PathCursor = 0
}

// ClearPath removes the current route; the vehicle becomes idle once its
// speed drops to zero.
func (v *Vehicle) ClearPath() {
	v.Path = nil
	v.PathCursor = 0
}

// HasPath reports whether the vehicle has an unexhausted route.
func (v *Vehicle) HasPath() bool {
	return len(v.Path) > 0 && v.PathCursor < len(v.Path)
}

// snapThresholdFactor is how many multiples of this tick's travel budget
// count as "close enough to snap" onto the target waypoint, absorbing
// fractional overshoot instead of circling the target forever (spec.md
// §4.4 step 2: "if dist_deg ≤ 1.5 × step: snap onto target").
const snapThresholdFactor = 1.5

// Advance steps the vehicle forward by dt seconds, following its planned
// path if one exists or free-flighting along the current heading
// otherwise (spec.md §4.4).
func (v *Vehicle) Advance(dt float64) {
	if !v.Active || v.SpeedMPS <= 0 {
		return
	}

	step := geo.MetersToDegrees(v.SpeedMPS * dt)

	if v.HasPath() {
		target := v.Path[v.PathCursor]
		dLon := target.X() - v.Lon
		dLat := target.Y() - v.Lat
		distDeg := math.Hypot(dLon, dLat)

		if distDeg <= snapThresholdFactor*step {
			v.Lon = target.X()
			v.Lat = target.Y()
			v.PathCursor++
			if v.PathCursor >= len(v.Path) {
				v.SpeedMPS = 0
			}
			return
		}

		v.HeadingRad = math.Atan2(dLat, dLon)
		v.Lon += step * dLon / distDeg
		v.Lat += step * dLat / distDeg
		return
	}

	v.Lon += step * math.Cos(v.HeadingRad)
	v.Lat += step * math.Sin(v.HeadingRad)
}

// SetNeighbors replaces the cached neighbor set, invoked by the
// interference subsystem after each rebuild (spec.md §3: "mutated only by
// its own advance(dt) and by the interference subsystem writing
// neighbors").
func (v *Vehicle) SetNeighbors(ids []VehicleID) {
	v.Neighbors = make(map[VehicleID]struct{}, len(ids))
	for _, id := range ids {
		v.Neighbors[id] = struct{}{}
	}
}

// NeighborCount returns the size of the cached neighbor set.
func (v *Vehicle) NeighborCount() int { return len(v.Neighbors) }

// IsNeighbor reports whether id is in the cached neighbor set.
func (v *Vehicle) IsNeighbor(id VehicleID) bool {
	_, ok := v.Neighbors[id]
	return ok
}
