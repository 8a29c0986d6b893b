// Package planner implements A* route planning over a roadgraph.RoadGraph
// and the random-destination path generator used to seed vehicle
// populations (spec.md §4.2).
package planner

import (
	"container/heap"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/v2vsim/v2vsim/internal/geo"
	"github.com/v2vsim/v2vsim/internal/roadgraph"
)

// Planner plans routes over a fixed road graph using A* with the
// haversine distance to the goal as the admissible heuristic.
type Planner struct {
	graph *roadgraph.RoadGraph
}

// New returns a planner bound to graph. The planner is pure given the
// graph and the caller-supplied RNG stream (spec.md §4.2 Determinism).
func New(graph *roadgraph.RoadGraph) *Planner {
	return &Planner{graph: graph}
}

// frontierEntry is one open-set element in the A* priority queue.
type frontierEntry struct {
	vertex roadgraph.VertexID
	fScore float64
}

// frontier is a binary min-heap ordered by fScore, the same shape as the
// teacher's sim/cluster/event_heap.go EventHeap.
type frontier []frontierEntry

func (f frontier) Len() int            { return len(f) }
func (f frontier) Less(i, j int) bool  { return f[i].fScore < f[j].fScore }
func (f frontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x interface{}) { *f = append(*f, x.(frontierEntry)) }
func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// iterationCap bounds a single FindPath call so it never blocks the tick
// loop for more than a few milliseconds on road graphs of ~10k nodes
// (spec.md §4.2 termination policy 2).
func iterationCap(numVertices int) int {
	limit := 5 * numVertices
	if limit > 10000 || numVertices == 0 {
		return 10000
	}
	return limit
}

// FindPath runs A* from the nearest node to start to the nearest node to
// end, and returns the path padded with the exact requested endpoints.
// Returns an empty slice if the graph is empty, the goal is unreachable
// within the iteration cap, or no route exists (spec.md §4.2, §7
// GraphEmpty / PlannerTimeout / NoRoute).
func (p *Planner) FindPath(start, end orb.Point) []orb.Point {
	if p.graph.NodeCount() == 0 {
		return nil
	}

	startV := p.graph.NearestNode(start.Y(), start.X())
	endV := p.graph.NearestNode(end.Y(), end.X())
	if startV == roadgraph.NoVertex || endV == roadgraph.NoVertex {
		return nil
	}

	if startV == endV {
		return []orb.Point{start, end}
	}

	path := p.astar(startV, endV)
	if path == nil {
		return nil
	}

	out := make([]orb.Point, 0, len(path)+2)
	out = append(out, start)
	for _, v := range path {
		out = append(out, p.graph.Node(v).Position)
	}
	out = append(out, end)
	return out
}

// astar returns the vertex sequence from start to goal inclusive, or nil
// if the goal was not reached within the iteration cap.
func (p *Planner) astar(start, goal roadgraph.VertexID) []roadgraph.VertexID {
	goalNode := p.graph.Node(goal)

	gScore := map[roadgraph.VertexID]float64{start: 0}
	cameFrom := map[roadgraph.VertexID]roadgraph.VertexID{}

	open := &frontier{{vertex: start, fScore: p.heuristic(start, goalNode)}}
	heap.Init(open)

	visited := map[roadgraph.VertexID]bool{}
	limit := iterationCap(p.graph.NodeCount())

	for iterations := 0; open.Len() > 0 && iterations < limit; iterations++ {
		current := heap.Pop(open).(frontierEntry).vertex
		if current == goal {
			return reconstruct(cameFrom, start, goal)
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		currentG := gScore[current]
		for _, edge := range p.graph.Edges(current) {
			tentativeG := currentG + edge.LengthM
			if existing, ok := gScore[edge.To]; ok && tentativeG >= existing {
				continue
			}
			gScore[edge.To] = tentativeG
			cameFrom[edge.To] = current
			f := tentativeG + p.heuristic(edge.To, goalNode)
			heap.Push(open, frontierEntry{vertex: edge.To, fScore: f})
		}
	}

	return nil
}

func (p *Planner) heuristic(v roadgraph.VertexID, goal roadgraph.RoadNode) float64 {
	n := p.graph.Node(v)
	return geo.HaversineDistancePoints(n.Position, goal.Position)
}

func reconstruct(cameFrom map[roadgraph.VertexID]roadgraph.VertexID, start, goal roadgraph.VertexID) []roadgraph.VertexID {
	path := []roadgraph.VertexID{goal}
	current := goal
	for current != start {
		prev, ok := cameFrom[current]
		if !ok {
			return nil // NoRoute: predecessor walk did not reach start.
		}
		path = append(path, prev)
		current = prev
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// maxRandomDestinationSamples bounds RandomPath's destination search
// (spec.md §4.2).
const maxRandomDestinationSamples = 100

// RandomPath samples up to 100 destination vertices, keeping the
// farthest seen (or the first one reaching minLengthM, committing early),
// then plans a path to it (spec.md §4.2).
func (p *Planner) RandomPath(start orb.Point, minLengthM float64, rng *rand.Rand) []orb.Point {
	n := p.graph.NodeCount()
	if n == 0 {
		return nil
	}

	startV := p.graph.NearestNode(start.Y(), start.X())
	if startV == roadgraph.NoVertex {
		return nil
	}
	startNode := p.graph.Node(startV)

	bestDist := -1.0
	best := startV

	for i := 0; i < maxRandomDestinationSamples; i++ {
		candidate := roadgraph.VertexID(rng.Intn(n))
		if candidate == startV {
			continue
		}
		d := geo.HaversineDistancePoints(startNode.Position, p.graph.Node(candidate).Position)
		if d > bestDist {
			bestDist = d
			best = candidate
		}
		if d >= minLengthM {
			break
		}
	}

	if best == startV {
		return nil
	}

	end := p.graph.Node(best).Position
	return p.FindPath(start, end)
}
