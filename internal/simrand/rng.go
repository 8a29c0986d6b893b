// Package simrand provides the single seedable generator the engine owns
// and threads through path generation, packet loss, and latency jitter
// (spec.md §5 "RNG"), split into per-subsystem streams so that adding a
// consumer never perturbs another subsystem's sequence.
package simrand

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Subsystem name constants for the simulation's RNG consumers (spec.md
// §5, §4.2 Determinism, §4.6 Latency/Loss sampling).
const (
	SubsystemPathPlanning = "path_planning"
	SubsystemPacketLoss   = "packet_loss"
	SubsystemLatency      = "latency"
)

// SubsystemVehicle returns the subsystem name for a single vehicle's
// private stream, used when a per-vehicle draw must not perturb any
// other vehicle's sequence (e.g. per-vehicle path retries).
func SubsystemVehicle(id int) string {
	return fmt.Sprintf("vehicle_%d", id)
}

// PartitionedRNG derives one *rand.Rand per named subsystem from a single
// master seed, so the same seed always reproduces the same sequence for
// every subsystem independently of call order (spec.md §8 property 8
// "Deterministic replay"). Grounded on the teacher's
// sim/cluster/rng.go and sim/rng.go PartitionedRNG, merged into a single
// implementation instead of the two near-duplicates the teacher carries.
type PartitionedRNG struct {
	masterSeed int64
	subsystems map[string]*rand.Rand
}

// New returns a PartitionedRNG rooted at masterSeed.
func New(masterSeed int64) *PartitionedRNG {
	return &PartitionedRNG{
		masterSeed: masterSeed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached RNG for name, creating and seeding it
// deterministically on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	rng := rand.New(rand.NewSource(p.deriveSeed(name)))
	p.subsystems[name] = rng
	return rng
}

// deriveSeed XORs the master seed with an FNV-1a hash of the subsystem
// name so derivation is order-independent: creating subsystem B before A
// never changes A's sequence.
func (p *PartitionedRNG) deriveSeed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return p.masterSeed ^ int64(h.Sum64())
}

// MasterSeed returns the seed this generator was constructed with.
func (p *PartitionedRNG) MasterSeed() int64 { return p.masterSeed }
