// Package pathcache implements the pre-computed path cache (spec.md
// §4.8 "Path cache"): generate a batch of realistic paths once, then
// hand them out in circular rotation instead of paying a planner call
// per vehicle. Grounded on original_source/src/network/PathCache.cpp,
// translating its QDataStream binary format (magic 0xCAFEBABE, version
// 1, big-endian) into encoding/binary.
package pathcache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/v2vsim/v2vsim/internal/planner"
	"github.com/v2vsim/v2vsim/internal/roadgraph"
)

// Magic and Version identify the on-disk format (spec.md §4.8: "Binary
// format: magic 0xCAFEBABE, version 1").
const (
	Magic   uint32 = 0xCAFEBABE
	Version uint32 = 1
)

// minPathPoints filters out paths too short to be useful, mirroring the
// original's "< 5 points" rejection.
const minPathPoints = 5

// maxGenerateAttemptsFactor bounds generation attempts relative to the
// requested count (original: "maxAttempts = numPaths * 3").
const maxGenerateAttemptsFactor = 3

// Cache holds a batch of pre-computed paths, handed out in circular
// rotation (spec.md §4.8 "next_path() → points (circular)").
type Cache struct {
	paths   [][]orb.Point
	nextIdx int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Generate fills the cache with up to n paths drawn from random vertex
// pairs on graph, planned with planner (spec.md §4.8 generate). Pairs are
// not deduplicated, so the same path can appear more than once.
func Generate(graph *roadgraph.RoadGraph, p *planner.Planner, n int, rng *rand.Rand) *Cache {
	c := New()
	nodeCount := graph.NodeCount()
	if nodeCount < 2 {
		logrus.Warnf("pathcache: cannot generate paths, road graph has fewer than 2 nodes")
		return c
	}

	maxAttempts := n * maxGenerateAttemptsFactor
	attempts := 0
	for len(c.paths) < n && attempts < maxAttempts {
		attempts++

		startV := roadgraph.VertexID(rng.Intn(nodeCount))
		endV := roadgraph.VertexID(rng.Intn(nodeCount))
		if startV == endV {
			continue
		}

		start := graph.Node(startV).Position
		end := graph.Node(endV).Position
		path := p.FindPath(start, end)
		if len(path) >= minPathPoints {
			c.paths = append(c.paths, path)
		}
	}

	logrus.Infof("pathcache: generated %d/%d paths in %d attempts", len(c.paths), n, attempts)
	return c
}

// NextPath returns the next path in circular rotation, or nil if the
// cache is empty (spec.md §4.8).
func (c *Cache) NextPath() []orb.Point {
	if len(c.paths) == 0 {
		return nil
	}
	path := c.paths[c.nextIdx]
	c.nextIdx = (c.nextIdx + 1) % len(c.paths)
	return path
}

// PathCount returns the number of cached paths.
func (c *Cache) PathCount() int { return len(c.paths) }

// Clear empties the cache and resets the rotation cursor.
func (c *Cache) Clear() {
	c.paths = nil
	c.nextIdx = 0
}

// Save writes the cache to path in the magic/version/count, then
// per-path point-count + (x,y) doubles format (spec.md §4.8, §8 property
// 6 "round-trip").
func (c *Cache) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating path cache file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.BigEndian, Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.paths))); err != nil {
		return err
	}
	for _, p := range c.paths {
		if err := binary.Write(w, binary.BigEndian, uint32(len(p))); err != nil {
			return err
		}
		for _, pt := range p {
			if err := binary.Write(w, binary.BigEndian, pt.X()); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, pt.Y()); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Load reads path, validating the magic number and version (spec.md §7
// LoadError: "cache loader surfaces the error to the caller").
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening path cache file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic, version, pathCount uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("invalid path cache magic %#x, want %#x", magic, Magic)
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported path cache version %d, want %d", version, Version)
	}
	if err := binary.Read(r, binary.BigEndian, &pathCount); err != nil {
		return nil, fmt.Errorf("reading path count: %w", err)
	}

	c := New()
	c.paths = make([][]orb.Point, 0, pathCount)
	for i := uint32(0); i < pathCount; i++ {
		var pointCount uint32
		if err := binary.Read(r, binary.BigEndian, &pointCount); err != nil {
			return nil, fmt.Errorf("reading point count for path %d: %w", i, err)
		}
		points := make([]orb.Point, pointCount)
		for j := uint32(0); j < pointCount; j++ {
			var x, y float64
			if err := binary.Read(r, binary.BigEndian, &x); err != nil {
				return nil, fmt.Errorf("reading point %d of path %d: %w", j, i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &y); err != nil {
				return nil, fmt.Errorf("reading point %d of path %d: %w", j, i, err)
			}
			points[j] = orb.Point{x, y}
		}
		c.paths = append(c.paths, points)
	}

	return c, nil
}
