package osm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2vsim/v2vsim/internal/roadgraph"
)

const sampleOSM = `<?xml version="1.0"?>
<osm version="0.6">
  <node id="1" lat="47.7508" lon="7.3359"/>
  <node id="2" lat="47.7518" lon="7.3359"/>
  <node id="3" lat="47.7528" lon="7.3359"/>
  <way id="100">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
</osm>`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesWaysIntoBidirectionalEdges(t *testing.T) {
	path := writeTemp(t, "sample.osm", sampleOSM)
	g := roadgraph.New()

	require.NoError(t, Load(path, g, 47.75, 7.33))
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount(), "2 segments x 2 directions")
	assert.NotEqual(t, roadgraph.NoVertex, g.NearestNode(47.7508, 7.3359))
}

func TestLoad_OnewayOmitsReverseEdge(t *testing.T) {
	oneway := `<?xml version="1.0"?>
<osm>
  <node id="1" lat="47.75" lon="7.33"/>
  <node id="2" lat="47.76" lon="7.33"/>
  <way id="1">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="primary"/>
    <tag k="oneway" v="yes"/>
  </way>
</osm>`
	path := writeTemp(t, "oneway.osm", oneway)
	g := roadgraph.New()

	if err := Load(path, g, 47.75, 7.33); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("EdgeCount = %d, want 1 for a oneway segment", g.EdgeCount())
	}
}

func TestLoad_MissingFileFallsBackToSyntheticGrid(t *testing.T) {
	g := roadgraph.New()
	if err := Load(filepath.Join(t.TempDir(), "does-not-exist.osm"), g, 47.75, 7.33); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if g.NodeCount() != gridSize*gridSize {
		t.Errorf("NodeCount = %d, want %d synthetic grid nodes", g.NodeCount(), gridSize*gridSize)
	}
}

func TestLoad_MalformedFileFallsBackToSyntheticGrid(t *testing.T) {
	path := writeTemp(t, "garbage.osm", "not xml at all {{{")
	g := roadgraph.New()

	if err := Load(path, g, 47.75, 7.33); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if g.NodeCount() != gridSize*gridSize {
		t.Errorf("NodeCount = %d, want %d synthetic grid nodes", g.NodeCount(), gridSize*gridSize)
	}
}

// TestSynthesizeGrid_S4UniformEdgeLength mirrors spec.md §8 scenario S4:
// the synthetic grid has uniform 500 m edges.
func TestSynthesizeGrid_S4UniformEdgeLength(t *testing.T) {
	g := roadgraph.New()
	SynthesizeGrid(g, 47.75, 7.33)

	if g.NodeCount() != gridSize*gridSize {
		t.Fatalf("NodeCount = %d, want %d", g.NodeCount(), gridSize*gridSize)
	}
	for v := roadgraph.VertexID(0); int(v) < g.NodeCount(); v++ {
		for _, e := range g.Edges(v) {
			if e.LengthM != gridSpacingM {
				t.Errorf("edge length = %v, want exactly %v", e.LengthM, gridSpacingM)
			}
		}
	}
}

func TestLoad_EmptyOSMDocumentFallsBackToSyntheticGrid(t *testing.T) {
	empty := `<?xml version="1.0"?><osm></osm>`
	path := writeTemp(t, "empty.osm", empty)
	g := roadgraph.New()

	if err := Load(path, g, 47.75, 7.33); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if g.NodeCount() != gridSize*gridSize {
		t.Errorf("NodeCount = %d, want synthetic grid fallback", g.NodeCount())
	}
}
