// Package roadgraph implements the directed weighted road network and its
// flat nearest-node spatial index (spec.md §3 RoadGraph, §4.1).
package roadgraph

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/v2vsim/v2vsim/internal/geo"
)

// VertexID identifies a node in the graph. IDs are dense and contiguous
// over [0, N) for the lifetime of a RoadGraph (spec.md §3 invariant).
type VertexID int

// NoVertex is the sentinel returned by NearestNode when the spatial index
// is empty, distinguishing "no candidate" from vertex 0 (spec.md §4.1).
const NoVertex VertexID = -1

// RoadClass is the OSM highway tag mapped to a default speed limit
// (spec.md §4.1).
type RoadClass string

const (
	ClassMotorway     RoadClass = "motorway"
	ClassTrunk        RoadClass = "trunk"
	ClassPrimary      RoadClass = "primary"
	ClassSecondary    RoadClass = "secondary"
	ClassTertiary     RoadClass = "tertiary"
	ClassResidential  RoadClass = "residential"
	ClassUnclassified RoadClass = "unclassified"
	ClassService      RoadClass = "service"
	ClassLink         RoadClass = "link"
)

// DefaultSpeedMPS returns the default speed limit in m/s for a road
// class, used when the loader does not provide an explicit speed limit.
func DefaultSpeedMPS(class RoadClass) float64 {
	switch class {
	case ClassMotorway:
		return 36.1
	case ClassTrunk:
		return 30.5
	case ClassPrimary:
		return 25.0
	case ClassSecondary:
		return 22.2
	default:
		return 13.9
	}
}

// RoadNode is an immutable graph vertex (spec.md §3).
type RoadNode struct {
	ID       VertexID
	Position orb.Point // X()=lon, Y()=lat
}

// Lat returns the node's latitude.
func (n RoadNode) Lat() float64 { return n.Position.Y() }

// Lon returns the node's longitude.
func (n RoadNode) Lon() float64 { return n.Position.X() }

// RoadEdge is a directed weighted edge (spec.md §3).
type RoadEdge struct {
	To            VertexID
	LengthM       float64
	SpeedLimitMPS float64
	Class         RoadClass
	Name          string
}

// indexEntry is one row of the flat spatial index used by NearestNode.
type indexEntry struct {
	vertex VertexID
	lat    float64
	lon    float64
}

// RoadGraph is a directed weighted graph over dense integer vertex ids,
// plus a flat nearest-node index built on demand (spec.md §3, §4.1).
type RoadGraph struct {
	nodes       []RoadNode
	adjacency   [][]RoadEdge
	spatialIdx  []indexEntry
}

// New returns an empty road graph.
func New() *RoadGraph {
	return &RoadGraph{}
}

// AddNode appends a new node and returns its vertex id.
func (g *RoadGraph) AddNode(lat, lon float64) VertexID {
	id := VertexID(len(g.nodes))
	g.nodes = append(g.nodes, RoadNode{ID: id, Position: orb.Point{lon, lat}})
	g.adjacency = append(g.adjacency, nil)
	return id
}

// AddEdge appends a directed edge from -> to. Callers wanting a
// bidirectional street must call AddEdge twice, once per direction
// (spec.md §3: "each drivable segment is represented by a forward edge
// AND a reverse edge... unless the loader marks it one-way").
func (g *RoadGraph) AddEdge(from, to VertexID, lengthM, speedLimitMPS float64, class RoadClass, name string) {
	if speedLimitMPS <= 0 {
		speedLimitMPS = DefaultSpeedMPS(class)
	}
	g.adjacency[from] = append(g.adjacency[from], RoadEdge{
		To:            to,
		LengthM:       lengthM,
		SpeedLimitMPS: speedLimitMPS,
		Class:         class,
		Name:          name,
	})
}

// Clear resets the graph to empty.
func (g *RoadGraph) Clear() {
	g.nodes = nil
	g.adjacency = nil
	g.spatialIdx = nil
}

// NodeCount returns the number of vertices.
func (g *RoadGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of directed edges.
func (g *RoadGraph) EdgeCount() int {
	n := 0
	for _, adj := range g.adjacency {
		n += len(adj)
	}
	return n
}

// Node returns the node for a vertex id. The caller must ensure id is in
// range; the graph never synthesizes a placeholder node.
func (g *RoadGraph) Node(id VertexID) RoadNode { return g.nodes[id] }

// Edges returns the outgoing edges for a vertex, for use by planners.
func (g *RoadGraph) Edges(id VertexID) []RoadEdge { return g.adjacency[id] }

// BuildSpatialIndex snapshots all current node positions into the flat
// nearest-node index (spec.md §4.1). Must be called after the graph is
// fully loaded and before NearestNode queries are issued.
func (g *RoadGraph) BuildSpatialIndex() {
	g.spatialIdx = make([]indexEntry, len(g.nodes))
	for i, n := range g.nodes {
		g.spatialIdx[i] = indexEntry{vertex: n.ID, lat: n.Lat(), lon: n.Lon()}
	}
}

// earlyExitThresholdM is the distance below which NearestNode stops
// scanning further candidates (spec.md §4.1).
const earlyExitThresholdM = 50.0

// coarseFilterDeg skips candidates whose lat/lon delta obviously exceeds
// this before paying for a haversine call (spec.md §4.1).
const coarseFilterDeg = 1.0

// NearestNode returns the vertex nearest to (lat, lon), or NoVertex if the
// spatial index is empty (spec.md §4.1, §8 invariant 11).
func (g *RoadGraph) NearestNode(lat, lon float64) VertexID {
	if len(g.spatialIdx) == 0 {
		return NoVertex
	}

	best := NoVertex
	bestDist := math.MaxFloat64

	for _, e := range g.spatialIdx {
		if math.Abs(e.lat-lat) > coarseFilterDeg || math.Abs(e.lon-lon) > coarseFilterDeg {
			continue
		}
		d := geo.HaversineDistance(lat, lon, e.lat, e.lon)
		if d < bestDist {
			bestDist = d
			best = e.vertex
			if d <= earlyExitThresholdM {
				return best
			}
		}
	}

	return best
}
