// Package interference implements the dynamic bidirectional proximity
// graph over active vehicles (spec.md §4.3), rebuilt from scratch every
// interference_interval ticks from a spatialindex.Index snapshot.
package interference

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/v2vsim/v2vsim/internal/geo"
	"github.com/v2vsim/v2vsim/internal/spatialindex"
)

// MetersPerDegree is the coarse conversion used to build the box-query
// envelope from a transmission radius (spec.md §4.3 step 3).
const MetersPerDegree = geo.MetersPerDegree

// VehicleSnapshot is the position/radius pair the graph consumes during a
// rebuild. The graph never retains a reference to the vehicle it came
// from, per spec.md §4.3: "implementations MUST NOT retain references to
// the vehicle collection between ticks".
type VehicleSnapshot struct {
	ID       int
	Lat, Lon float64
	RadiusM  float64
}

// Link is one undirected edge, always reported with the lower id first
// (spec.md §4.3 all_links: "enforced by i < j").
type Link struct {
	A, B int
}

// Graph is the dynamic interference graph. Rebuild replaces the adjacency
// atomically: readers either see the fully previous or fully new graph
// (spec.md §4.3 step 5, §5 shared-resources).
type Graph struct {
	mu sync.RWMutex

	adjacency map[int]map[int]struct{}
	positions map[int]VehicleSnapshot
	linkCount int
}

// New returns an empty interference graph.
func New() *Graph {
	return &Graph{
		adjacency: map[int]map[int]struct{}{},
		positions: map[int]VehicleSnapshot{},
	}
}

// Rebuild recomputes the graph from scratch over the given snapshots
// (spec.md §4.3 update cycle, steps 1-5).
func (g *Graph) Rebuild(snapshots []VehicleSnapshot) {
	idx := spatialindex.New()
	items := make([]spatialindex.Item, 0, len(snapshots))
	byID := make(map[int]VehicleSnapshot, len(snapshots))
	for _, s := range snapshots {
		items = append(items, spatialindex.Item{ID: s.ID, Position: orb.Point{s.Lon, s.Lat}})
		byID[s.ID] = s
	}
	idx.Build(items)

	newAdjacency := make(map[int]map[int]struct{}, len(snapshots))
	linkCount := 0

	for _, s := range snapshots {
		envelopeDeg := s.RadiusM / MetersPerDegree
		candidates := idx.QueryBox(s.Lon-envelopeDeg, s.Lat-envelopeDeg, s.Lon+envelopeDeg, s.Lat+envelopeDeg)

		neighbors, ok := newAdjacency[s.ID]
		if !ok {
			neighbors = map[int]struct{}{}
			newAdjacency[s.ID] = neighbors
		}

		for _, c := range candidates {
			if c.ID == s.ID {
				continue
			}
			other := byID[c.ID]
			d := geo.HaversineDistance(s.Lat, s.Lon, other.Lat, other.Lon)
			if d <= s.RadiusM && d <= other.RadiusM {
				neighbors[c.ID] = struct{}{}
				if s.ID < c.ID {
					linkCount++
				}
			}
		}
	}

	g.mu.Lock()
	g.adjacency = newAdjacency
	g.positions = byID
	g.linkCount = linkCount
	g.mu.Unlock()
}

// Neighbors returns a copy of id's neighbor set for iteration safety
// (spec.md §4.3 Queries: "returns a copy for iteration safety").
func (g *Graph) Neighbors(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.adjacency[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Linked reports whether i and j are connected.
func (g *Graph) Linked(i, j int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.adjacency[i]
	if !ok {
		return false
	}
	_, linked := set[j]
	return linked
}

// AllLinks returns every undirected link exactly once, ordered by (A, B)
// with A < B (spec.md §4.3 Queries: all_links).
func (g *Graph) AllLinks() []Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	links := make([]Link, 0, g.linkCount)
	for id, set := range g.adjacency {
		for n := range set {
			if id < n {
				links = append(links, Link{A: id, B: n})
			}
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].A != links[j].A {
			return links[i].A < links[j].A
		}
		return links[i].B < links[j].B
	})
	return links
}

// LinkCount returns the number of undirected links in the current graph.
func (g *Graph) LinkCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.linkCount
}

// AverageDegree returns the mean neighbor count over active vehicles
// (spec.md §4.3 Queries: "average degree over active vehicles").
func (g *Graph) AverageDegree() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.adjacency) == 0 {
		return 0
	}
	total := 0
	for _, set := range g.adjacency {
		total += len(set)
	}
	return float64(total) / float64(len(g.adjacency))
}

// VehicleCount returns the number of vehicles present in the current
// graph snapshot.
func (g *Graph) VehicleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.positions)
}

// Clear empties the graph (spec.md §8 invariant 5: reset implies an
// empty interference graph).
func (g *Graph) Clear() {
	g.mu.Lock()
	g.adjacency = map[int]map[int]struct{}{}
	g.positions = map[int]VehicleSnapshot{}
	g.linkCount = 0
	g.mu.Unlock()
}
