// Package osm implements the road-graph loader contract (spec.md §4.8
// "OSM loader"): stream OSM XML entities into a roadgraph.RoadGraph, or
// fall back to a synthetic test grid on empty or malformed input.
//
// The original source never finished its libosmium-based parser (see
// original_source/src/data/OSMParser.cpp: "TODO: Implement with
// libosmium" / "OSM parsing not yet implemented") and shipped only the
// synthetic-grid fallback path. This package completes the real path
// using the standard library's XML decoder rather than the pack's
// paulmach/osm library: the pack only exercises paulmach/osm's ID types
// (LdDl-osm2ch__expanded_edge.go, Vector-Hector-osm2ch__expanded_edge.go),
// never its streaming scanner, so there is no grounded, verifiable
// example of that API's exact method shape to build against without
// running the toolchain.
package osm

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/v2vsim/v2vsim/internal/geo"
	"github.com/v2vsim/v2vsim/internal/roadgraph"
)

// xmlDoc mirrors the subset of the OSM XML schema this loader consumes:
// <node id lat lon> and <way><nd ref/><tag k v/></way>.
type xmlDoc struct {
	Nodes []xmlNode `xml:"node"`
	Ways  []xmlWay  `xml:"way"`
}

type xmlNode struct {
	ID  int64   `xml:"id,attr"`
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
}

type xmlWay struct {
	Nds  []xmlNd  `xml:"nd"`
	Tags []xmlTag `xml:"tag"`
}

type xmlNd struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlTag struct {
	Key   string `xml:"k,attr"`
	Value string `xml:"v,attr"`
}

func (w xmlWay) tag(key string) (string, bool) {
	for _, t := range w.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// gridSize and gridSpacingM define the synthetic fallback grid (spec.md
// §4.8: "may synthesize a 10×10 test grid centred on a configurable
// anchor point").
const (
	gridSize      = 10
	gridSpacingM  = 500.0
)

// Load streams path's OSM XML content into graph, calling AddNode and
// AddEdge (forward plus reverse unless the way is tagged "oneway"="yes"),
// then finishes with BuildSpatialIndex (spec.md §4.8). On read or parse
// failure, or when the file contains no usable road data, it falls back
// to SynthesizeGrid centred on (anchorLat, anchorLon) and returns nil
// (spec.md §7 LoadError: "OSM loader falls back to the synthetic grid").
func Load(path string, graph *roadgraph.RoadGraph, anchorLat, anchorLon float64) error {
	f, err := os.Open(path)
	if err != nil {
		logrus.Warnf("osm: %v, falling back to synthetic grid", err)
		SynthesizeGrid(graph, anchorLat, anchorLon)
		return nil
	}
	defer f.Close()

	if err := loadReader(f, graph); err != nil {
		logrus.Warnf("osm: %v, falling back to synthetic grid", err)
		graph.Clear()
		SynthesizeGrid(graph, anchorLat, anchorLon)
		return nil
	}
	return nil
}

func loadReader(r io.Reader, graph *roadgraph.RoadGraph) error {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decoding osm xml: %w", err)
	}
	if len(doc.Nodes) == 0 || len(doc.Ways) == 0 {
		return fmt.Errorf("osm document has no usable nodes/ways")
	}

	vertexByOSMID := make(map[int64]roadgraph.VertexID, len(doc.Nodes))
	for _, n := range doc.Nodes {
		vertexByOSMID[n.ID] = graph.AddNode(n.Lat, n.Lon)
	}

	edgesAdded := 0
	for _, w := range doc.Ways {
		class := roadClassOf(w)
		if class == "" {
			continue // not a drivable way
		}
		oneway, _ := w.tag("oneway")
		for i := 0; i+1 < len(w.Nds); i++ {
			from, ok1 := vertexByOSMID[w.Nds[i].Ref]
			to, ok2 := vertexByOSMID[w.Nds[i+1].Ref]
			if !ok1 || !ok2 {
				continue
			}
			lengthM := geo.HaversineDistancePoints(graph.Node(from).Position, graph.Node(to).Position)
			name, _ := w.tag("name")
			graph.AddEdge(from, to, lengthM, 0, class, name)
			if oneway != "yes" {
				graph.AddEdge(to, from, lengthM, 0, class, name)
			}
			edgesAdded++
		}
	}
	if edgesAdded == 0 {
		return fmt.Errorf("osm document produced no drivable edges")
	}

	graph.BuildSpatialIndex()
	return nil
}

func roadClassOf(w xmlWay) roadgraph.RoadClass {
	highway, ok := w.tag("highway")
	if !ok {
		return ""
	}
	switch roadgraph.RoadClass(highway) {
	case roadgraph.ClassMotorway, roadgraph.ClassTrunk, roadgraph.ClassPrimary,
		roadgraph.ClassSecondary, roadgraph.ClassTertiary, roadgraph.ClassResidential,
		roadgraph.ClassUnclassified, roadgraph.ClassService, roadgraph.ClassLink:
		return roadgraph.RoadClass(highway)
	default:
		return ""
	}
}

// SynthesizeGrid builds a 10x10 grid of nodes spaced gridSpacingM apart,
// every cell connected to its orthogonal neighbors bidirectionally,
// centred on (anchorLat, anchorLon) (spec.md §4.8, §8 scenario S4's
// "synthetic 10×10 grid with uniform 500 m edges").
func SynthesizeGrid(graph *roadgraph.RoadGraph, anchorLat, anchorLon float64) {
	latStep := geo.MetersToDegrees(gridSpacingM)
	// Longitude degrees shrink in true ground distance by cos(latitude);
	// widen the longitude step to compensate so every edge, north-south
	// or east-west, is a true gridSpacingM apart (roadgraph's invariant
	// that length_m matches haversine distance within 1%).
	lonStep := latStep / math.Cos(anchorLat*math.Pi/180.0)
	half := float64(gridSize-1) / 2.0

	ids := make([][]roadgraph.VertexID, gridSize)
	for i := 0; i < gridSize; i++ {
		ids[i] = make([]roadgraph.VertexID, gridSize)
		for j := 0; j < gridSize; j++ {
			lat := anchorLat + (float64(i)-half)*latStep
			lon := anchorLon + (float64(j)-half)*lonStep
			ids[i][j] = graph.AddNode(lat, lon)
		}
	}

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			if j+1 < gridSize {
				connect(graph, ids[i][j], ids[i][j+1])
			}
			if i+1 < gridSize {
				connect(graph, ids[i][j], ids[i+1][j])
			}
		}
	}

	graph.BuildSpatialIndex()
	logrus.Infof("synthesized %dx%d test grid centred on (%.4f, %.4f)", gridSize, gridSize, anchorLat, anchorLon)
}

func connect(graph *roadgraph.RoadGraph, a, b roadgraph.VertexID) {
	graph.AddEdge(a, b, gridSpacingM, 0, roadgraph.ClassResidential, "")
	graph.AddEdge(b, a, gridSpacingM, 0, roadgraph.ClassResidential, "")
}
