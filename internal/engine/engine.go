// Package engine implements the simulation engine: the Stopped/Running/
// Paused lifecycle, the fixed-rate tick procedure, and population
// creation (spec.md §4.7). Grounded on the teacher's sim/simulator.go
// Run loop for logging style and on original_source/src/core/
// SimulationEngine.cpp for the tick ordering and vehicle-creation budget
// this package replaces.
package engine

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/v2vsim/v2vsim/internal/comms"
	"github.com/v2vsim/v2vsim/internal/interference"
	"github.com/v2vsim/v2vsim/internal/message"
	"github.com/v2vsim/v2vsim/internal/planner"
	"github.com/v2vsim/v2vsim/internal/roadgraph"
	"github.com/v2vsim/v2vsim/internal/simrand"
	"github.com/v2vsim/v2vsim/internal/vehicle"
)

// State is one of the engine's three lifecycle states (spec.md §4.7).
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// minTimeScale and maxTimeScale bound set_time_scale (spec.md §6
// simulation.time_acceleration).
const (
	minTimeScale = 0.1
	maxTimeScale = 10.0
)

// populationBudget is the wall-clock ceiling on a single CreatePopulation
// call (spec.md §4.7 "a 60-second wall budget").
const populationBudget = 60 * time.Second

// randomPathMinLengthM mirrors the original engine's
// generateRandomPath(startPos, 500.0) call.
const randomPathMinLengthM = 500.0

// cruiseSpeedMinMPS and cruiseSpeedMaxMPS are the uniform speed range new
// vehicles are assigned, grounded on SimulationEngine.cpp's
// speed_dist(10.0, 25.0).
const (
	cruiseSpeedMinMPS = 10.0
	cruiseSpeedMaxMPS = 25.0
)

// Config holds the tunable parameters the engine is constructed with
// (spec.md §6 Configuration surface).
type Config struct {
	InitialVehicles          int
	TimeScale                float64
	TargetFPS                int
	TransmissionRadiusM      float64
	InterferenceIntervalTick int
	CamHz                    float64
	Comms                    comms.Config
	Seed                     int64
}

// TickObserver is invoked once per tick after all tick-local state has
// settled (spec.md §4.7 step 6, §5 "Observers invoked from tick see the
// post-tick state").
type TickObserver func(snapshot TickSnapshot)

// TickSnapshot is the read-only state handed to tick observers.
type TickSnapshot struct {
	Tick       uint64
	SimTime    float64
	FPS        float64
	ActiveVeh  int
	Statistics comms.Stats
}

// Engine is the tick-driven simulation core (spec.md §4.7, §5). All
// mutation happens on the goroutine that calls Tick; the mutex below
// exists solely to let readers outside that goroutine (visualizer,
// metrics exporter) take consistent snapshots between ticks, per spec.md
// §5 "Shared resources".
type Engine struct {
	mu sync.RWMutex

	cfg   Config
	state State

	graph    *roadgraph.RoadGraph
	planner  *planner.Planner
	simpleMode bool

	rng   *simrand.PartitionedRNG
	ids   *message.IDGenerator
	comm  *comms.Manager
	ifg   *interference.Graph

	vehicles   map[vehicle.VehicleID]*vehicle.Vehicle
	nextVehID  vehicle.VehicleID

	simTime      float64
	lastTickWall time.Time
	lastCAMAt    float64
	tick         uint64

	fps        float64
	fpsWindowN int
	fpsWindowT float64

	observers []TickObserver
}

// New constructs a Stopped engine bound to graph (which may be empty, in
// which case the engine runs in "simple mode": spec.md §7 "a simulation
// with no loaded graph runs in simple mode").
func New(cfg Config, graph *roadgraph.RoadGraph) *Engine {
	if cfg.TimeScale == 0 {
		cfg.TimeScale = 1.0
	}
	ifg := interference.New()
	rng := simrand.New(cfg.Seed)

	e := &Engine{
		cfg:        cfg,
		state:      Stopped,
		graph:      graph,
		planner:    planner.New(graph),
		simpleMode: graph == nil || graph.NodeCount() == 0,
		rng:        rng,
		ids:        message.NewIDGenerator(),
		ifg:        ifg,
		vehicles:   map[vehicle.VehicleID]*vehicle.Vehicle{},
	}
	e.comm = comms.New(ifg, cfg.Comms,
		rng.ForSubsystem(simrand.SubsystemPacketLoss),
		rng.ForSubsystem(simrand.SubsystemLatency))
	return e
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Start transitions Stopped→Running or Paused→Running (spec.md §4.7).
// Starting from Stopped initializes the last-tick wall clock; resuming
// from Paused does not touch sim_time.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		return
	}
	e.state = Running
	e.lastTickWall = time.Now()
}

// Pause transitions Running→Paused, freezing sim_time (spec.md §4.7).
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		e.state = Paused
	}
}

// Stop transitions any state to Stopped and resets sim_time to 0
// (spec.md §4.7).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Stopped
	e.simTime = 0
	e.lastCAMAt = 0
	e.tick = 0
}

// Reset stops the engine and discards the vehicle population, the
// interference graph, and any in-flight deliveries (spec.md §4.7, §8
// invariant 5).
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Stopped
	e.simTime = 0
	e.lastCAMAt = 0
	e.tick = 0
	e.vehicles = map[vehicle.VehicleID]*vehicle.Vehicle{}
	e.nextVehID = 0
	e.ifg.Clear()
	e.comm.Reset()
}

// SetTimeScale updates the wall-to-sim time multiplier, clamped to
// [0.1, 10.0] (spec.md §6 simulation.time_acceleration).
func (e *Engine) SetTimeScale(scale float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if scale < minTimeScale {
		scale = minTimeScale
	}
	if scale > maxTimeScale {
		scale = maxTimeScale
	}
	e.cfg.TimeScale = scale
}

// SetTargetFPS updates the engine's tick-rate target; it does not affect
// tick correctness, only how often callers should invoke Tick.
func (e *Engine) SetTargetFPS(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.TargetFPS = n
}

// OnTick registers an observer invoked at the end of every tick (spec.md
// §6 Engine API "a tick observer registration").
func (e *Engine) OnTick(obs TickObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// SimTime returns the current simulation time in seconds.
func (e *Engine) SimTime() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.simTime
}

// VehicleCount returns the number of vehicles in the population.
func (e *Engine) VehicleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vehicles)
}

// Vehicle returns a copy-by-value snapshot of one vehicle's state, or
// false if id is not in the population. Returning a value rather than
// the live pointer keeps callers outside the tick thread from mutating
// engine-owned state (spec.md §5 "copy-on-read accessors").
func (e *Engine) Vehicle(id vehicle.VehicleID) (vehicle.Vehicle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vehicles[id]
	if !ok {
		return vehicle.Vehicle{}, false
	}
	return *v, true
}

// Vehicles returns a value-copy snapshot of every vehicle, for
// visualizer/metrics consumption between ticks.
func (e *Engine) Vehicles() []vehicle.Vehicle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]vehicle.Vehicle, 0, len(e.vehicles))
	for _, v := range e.vehicles {
		out = append(out, *v)
	}
	return out
}

// InterferenceGraph returns the engine's interference graph. The graph's
// own mutex makes concurrent reads safe; see spec.md §5.
func (e *Engine) InterferenceGraph() *interference.Graph { return e.ifg }

// RoadGraph returns the engine's road graph (read-only by convention:
// nothing in the tick loop mutates it after load).
func (e *Engine) RoadGraph() *roadgraph.RoadGraph { return e.graph }

// DrainInbox drains and returns one vehicle's pending messages.
func (e *Engine) DrainInbox(id vehicle.VehicleID) []message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comm.DrainInbox(int(id))
}

// Stats returns the current communication statistics.
func (e *Engine) Stats() comms.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.comm.Stats()
}

// FPS returns the rolling tick-rate estimate.
func (e *Engine) FPS() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fps
}

// Tick runs exactly one pass of the tick procedure if the engine is
// Running; a no-op in any other state (spec.md §4.7, §5 "Cancellation").
// The lock is released before observers run: a TickObserver is expected
// to read back through Vehicles()/Stats()/InterferenceGraph() (spec.md
// §4.7, §5 "external renderers"), and those accessors take e.mu.RLock,
// which would deadlock against the same goroutine's write lock.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}

	now := time.Now()
	wallDt := now.Sub(e.lastTickWall).Seconds()
	e.lastTickWall = now

	dt := wallDt * e.cfg.TimeScale
	if e.cfg.TimeScale < minTimeScale {
		dt = wallDt * minTimeScale
	} else if e.cfg.TimeScale > maxTimeScale {
		dt = wallDt * maxTimeScale
	}

	e.advanceVehicles(dt)
	e.simTime += dt
	e.tick++

	if e.cfg.InterferenceIntervalTick > 0 && e.tick%uint64(e.cfg.InterferenceIntervalTick) == 0 {
		e.rebuildInterference()
	}

	e.communicationStep()
	e.updateFPS(wallDt)

	snapshot := TickSnapshot{
		Tick:      e.tick,
		SimTime:   e.simTime,
		FPS:       e.fps,
		ActiveVeh: len(e.vehicles),
	}
	snapshot.Statistics = e.comm.Stats()
	observers := e.observers
	e.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

// TickWithDt runs one tick using an explicitly supplied dt instead of
// reading the wall clock, for deterministic-replay callers (spec.md §8
// property 8, scenario S6). The wall-clock timestamp bookkeeping is
// skipped entirely. As in Tick, the lock is released before observers
// run so an observer can safely call back into the read accessors.
func (e *Engine) TickWithDt(dt float64) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}

	e.advanceVehicles(dt)
	e.simTime += dt
	e.tick++

	if e.cfg.InterferenceIntervalTick > 0 && e.tick%uint64(e.cfg.InterferenceIntervalTick) == 0 {
		e.rebuildInterference()
	}

	e.communicationStep()

	snapshot := TickSnapshot{
		Tick:      e.tick,
		SimTime:   e.simTime,
		FPS:       e.fps,
		ActiveVeh: len(e.vehicles),
	}
	snapshot.Statistics = e.comm.Stats()
	observers := e.observers
	e.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

func (e *Engine) advanceVehicles(dt float64) {
	for _, v := range e.vehicles {
		v.Advance(dt)
	}
}

// rebuildInterference rebuilds the graph from a fresh snapshot and
// mirrors each vehicle's new neighbor set back onto its cached
// Neighbors field (spec.md §4.7 step 3).
func (e *Engine) rebuildInterference() {
	snapshots := make([]interference.VehicleSnapshot, 0, len(e.vehicles))
	for id, v := range e.vehicles {
		if !v.Active {
			continue
		}
		snapshots = append(snapshots, interference.VehicleSnapshot{
			ID:      int(id),
			Lat:     v.Lat,
			Lon:     v.Lon,
			RadiusM: v.TxRadiusM,
		})
	}
	e.ifg.Rebuild(snapshots)

	for id, v := range e.vehicles {
		neighborIDs := e.ifg.Neighbors(int(id))
		typed := make([]vehicle.VehicleID, len(neighborIDs))
		for i, n := range neighborIDs {
			typed[i] = vehicle.VehicleID(n)
		}
		v.SetNeighbors(typed)
	}
}

// communicationStep broadcasts an Awareness message from every active
// vehicle when the CAM period has elapsed, then flushes the comms
// manager (spec.md §4.7 step 4).
func (e *Engine) communicationStep() {
	if e.cfg.CamHz > 0 && e.simTime-e.lastCAMAt >= 1.0/e.cfg.CamHz {
		for id := vehicle.VehicleID(0); id < e.nextVehID; id++ {
			v, ok := e.vehicles[id]
			if !ok || !v.Active {
				continue
			}
			msg := message.NewAwareness(e.ids, int(id), e.simTime, v.Position(), v.SpeedMPS, v.HeadingRad, v.AccelMPS2)
			e.comm.Broadcast(int(id), msg, 0)
		}
		e.lastCAMAt = e.simTime
	}
	e.comm.Update(e.simTime)
}

func (e *Engine) updateFPS(wallDt float64) {
	if wallDt <= 0 {
		return
	}
	e.fpsWindowN++
	e.fpsWindowT += wallDt
	if e.fpsWindowT >= 1.0 {
		e.fps = float64(e.fpsWindowN) / e.fpsWindowT
		e.fpsWindowN = 0
		e.fpsWindowT = 0
	}
}

// CreatePopulation creates count vehicles rooted at random graph
// vertices (or, in simple mode, at random points in a bounding box) and
// plans their paths up front, bounded by a 60-second wall budget (spec.md
// §4.7 "Vehicle population creation"). It returns the number actually
// created, which may be less than count if the budget was exhausted
// (spec.md §8 scenario S5).
func (e *Engine) CreatePopulation(count int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.vehicles = map[vehicle.VehicleID]*vehicle.Vehicle{}
	e.nextVehID = 0

	if e.simpleMode {
		return e.createSimplePopulation(count)
	}
	return e.createRoutedPopulation(count)
}

func (e *Engine) createSimplePopulation(count int) int {
	rng := e.rng.ForSubsystem(simrand.SubsystemPathPlanning)
	const (
		latMin, latMax = 47.70, 47.80
		lonMin, lonMax = 7.30, 7.40
	)
	for i := 0; i < count; i++ {
		id := e.nextVehID
		e.nextVehID++
		lat := latMin + rng.Float64()*(latMax-latMin)
		lon := lonMin + rng.Float64()*(lonMax-lonMin)
		v := vehicle.New(id, lat, lon, e.cfg.TransmissionRadiusM)
		v.SpeedMPS = cruiseSpeedMinMPS + rng.Float64()*(cruiseSpeedMaxMPS-cruiseSpeedMinMPS)
		v.HeadingRad = rng.Float64() * 2 * 3.14159265358979
		e.vehicles[id] = v
	}
	logrus.Infof("created %d vehicles (simple mode)", count)
	return count
}

func (e *Engine) createRoutedPopulation(count int) int {
	rng := e.rng.ForSubsystem(simrand.SubsystemPathPlanning)
	numVertices := e.graph.NodeCount()
	if numVertices == 0 {
		return 0
	}

	deadline := time.Now().Add(populationBudget)
	created := 0

	for i := 0; i < count; i++ {
		if i%10 == 0 && time.Now().After(deadline) {
			logrus.Warnf("population creation timeout after %s, created %d/%d vehicles", populationBudget, created, count)
			break
		}

		startVertex := roadgraph.VertexID(rng.Intn(numVertices))
		node := e.graph.Node(startVertex)

		id := e.nextVehID
		e.nextVehID++
		v := vehicle.New(id, node.Lat(), node.Lon(), e.cfg.TransmissionRadiusM)
		v.SpeedMPS = cruiseSpeedMinMPS + rng.Float64()*(cruiseSpeedMaxMPS-cruiseSpeedMinMPS)
		e.vehicles[id] = v
		created++
	}

	pathsGenerated := 0
	for id := vehicle.VehicleID(0); id < e.nextVehID; id++ {
		v := e.vehicles[id]
		path := e.planner.RandomPath(orb.Point{v.Lon, v.Lat}, randomPathMinLengthM, rng)
		if len(path) > 0 {
			v.SetPath(path)
			pathsGenerated++
		}
	}
	logrus.Infof("created %d vehicles on road network, %d with planned paths", created, pathsGenerated)

	return created
}
