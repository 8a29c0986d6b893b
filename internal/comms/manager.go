// Package comms implements the delay-line communication manager: per-
// vehicle inboxes, broadcast/unicast scheduling, packet loss, latency
// jitter, message aging, and rolling statistics (spec.md §4.6). Grounded
// on the original reach check in
// original_source/src/network/InterferenceGraph.cpp (distance-gated
// neighbor lookup) combined with the teacher's event_heap.go time-ordered
// queue shape, adapted from a simulation-event queue to a message
// delivery queue.
package comms

import (
	"math/rand"

	"github.com/v2vsim/v2vsim/internal/interference"
	"github.com/v2vsim/v2vsim/internal/message"
)

// DropReason enumerates why a message never reached an inbox (spec.md §4.6
// Observability hooks, §7 error taxonomy).
type DropReason int

const (
	DropLoss DropReason = iota
	DropOutOfRange
	DropTooOld
)

func (r DropReason) String() string {
	switch r {
	case DropLoss:
		return "Loss"
	case DropOutOfRange:
		return "OutOfRange"
	case DropTooOld:
		return "TooOld"
	default:
		return "Unknown"
	}
}

// Config holds the channel model parameters (spec.md §6 communication.*).
type Config struct {
	PacketLossRate float64
	BaseLatencyMS  float64
	JitterSigmaMS  float64
	MaxAgeS        float64
}

// LatencyStats holds the rolling latency distribution, in milliseconds
// (spec.md §3 Statistics.latency).
type LatencyStats struct {
	Avg, Min, Max float64
	count         int
	sum           float64
}

func (s *LatencyStats) observe(latencyMS float64) {
	if s.count == 0 || latencyMS < s.Min {
		s.Min = latencyMS
	}
	if s.count == 0 || latencyMS > s.Max {
		s.Max = latencyMS
	}
	s.sum += latencyMS
	s.count++
	s.Avg = s.sum / float64(s.count)
}

// Stats is the manager-owned statistics block (spec.md §3 Statistics).
// Throughput is tracked per manager instance rather than in a
// process-wide static, per spec.md §9 open question (b).
type Stats struct {
	Sent            int
	Received        int
	Dropped         int
	SentByKind      map[message.Kind]int
	DroppedByReason map[DropReason]int
	Latency         LatencyStats
	ActiveLinks     int
	AvgNeighbors    float64
	ThroughputMsgPS float64

	windowStart     float64
	windowDelivered int
}

func newStats() Stats {
	return Stats{
		SentByKind:      map[message.Kind]int{},
		DroppedByReason: map[DropReason]int{},
	}
}

// TransmittedFunc is invoked once per successful delivery (spec.md §4.6
// Observability hooks). Handlers run on the engine thread and must not
// block.
type TransmittedFunc func(senderID, receiverID int, kind message.Kind)

// DroppedFunc is invoked once per dropped message.
type DroppedFunc func(senderID int, reason DropReason)

// Manager is the communication manager (spec.md §4.6). It holds a
// read-only view of the interference graph; callers must not mutate it
// through the manager.
type Manager struct {
	graph   *interference.Graph
	cfg     Config
	lossRNG *rand.Rand
	jitRNG  *rand.Rand

	inboxes map[int][]message.Message
	queue   *delayLine
	seq     uint64
	simTime float64

	stats Stats

	OnTransmitted TransmittedFunc
	OnDropped     DroppedFunc
}

// New returns a manager bound to graph, with independent RNG streams for
// loss and jitter sampling (spec.md §5: "Tests SHALL inject a
// deterministic seed").
func New(graph *interference.Graph, cfg Config, lossRNG, jitterRNG *rand.Rand) *Manager {
	return &Manager{
		graph:   graph,
		cfg:     cfg,
		lossRNG: lossRNG,
		jitRNG:  jitterRNG,
		inboxes: map[int][]message.Message{},
		queue:   newDelayLine(),
		stats:   newStats(),
	}
}

// windowSeconds is the sliding window over which throughput is averaged.
const windowSeconds = 1.0

// Broadcast schedules a delivery to every current neighbor of the
// sender, subject to an independent loss trial per recipient (spec.md
// §4.6 broadcast). maxHops must be 0: multi-hop is reserved.
func (m *Manager) Broadcast(senderID int, msg message.Message, maxHops int) int {
	neighbors := m.graph.Neighbors(senderID)
	delivered := 0
	for _, targetID := range neighbors {
		if m.scheduleOrDrop(senderID, targetID, msg) {
			delivered++
		}
	}
	if delivered > 0 {
		m.stats.Sent += delivered
		m.stats.SentByKind[msg.Kind] += delivered
	}
	return delivered
}

// Unicast schedules a delivery to targetID if it is currently a neighbor
// of the sender and the loss trial survives (spec.md §4.6 unicast,
// §7 NotNeighbor).
func (m *Manager) Unicast(senderID, targetID int, msg message.Message) bool {
	if !m.graph.Linked(senderID, targetID) {
		m.drop(senderID, DropOutOfRange)
		return false
	}
	ok := m.scheduleOrDrop(senderID, targetID, msg)
	if ok {
		m.stats.Sent++
		m.stats.SentByKind[msg.Kind]++
	}
	return ok
}

func (m *Manager) scheduleOrDrop(senderID, targetID int, msg message.Message) bool {
	if m.lossRNG.Float64() < m.cfg.PacketLossRate {
		m.drop(senderID, DropLoss)
		return false
	}

	latencyMS := m.sampleLatencyMS()
	m.seq++
	m.queue.schedule(pendingDelivery{
		message:   msg,
		targetID:  targetID,
		deliverAt: m.simTime + latencyMS/1000.0,
		sequence:  m.seq,
	})
	return true
}

// sampleLatencyMS draws max(1ms, base + N(0, sigma)) using the injected
// jitter stream (spec.md §4.6 Latency sampling).
func (m *Manager) sampleLatencyMS() float64 {
	sample := m.cfg.BaseLatencyMS + m.jitRNG.NormFloat64()*m.cfg.JitterSigmaMS
	if sample < 1.0 {
		return 1.0
	}
	return sample
}

// DrainInbox destructively returns and clears vehicleID's inbox (spec.md
// §4.6 drain_inbox).
func (m *Manager) DrainInbox(vehicleID int) []message.Message {
	msgs := m.inboxes[vehicleID]
	delete(m.inboxes, vehicleID)
	return msgs
}

// Update advances simulation time, delivers every message whose
// deliver_at has arrived, ages out stale inbox contents, and refreshes
// statistics (spec.md §4.6 update).
func (m *Manager) Update(simTime float64) {
	m.simTime = simTime

	for {
		head, ok := m.queue.peek()
		if !ok || head.deliverAt > simTime {
			break
		}
		m.deliverOrAge(m.queue.popNext())
	}

	m.ageInboxes()
	m.refreshLinkStats()
	m.refreshThroughput(simTime)
}

func (m *Manager) deliverOrAge(pd pendingDelivery) {
	if m.simTime-pd.message.Envelope.CreatedAt > m.cfg.MaxAgeS {
		m.drop(pd.message.Envelope.SenderID, DropTooOld)
		return
	}

	m.inboxes[pd.targetID] = append(m.inboxes[pd.targetID], pd.message)
	m.stats.Received++
	m.stats.windowDelivered++
	m.stats.Latency.observe((m.simTime - pd.message.Envelope.CreatedAt) * 1000.0)
	if m.OnTransmitted != nil {
		m.OnTransmitted(pd.message.Envelope.SenderID, pd.targetID, pd.message.Kind)
	}
}

// ageInboxes removes any inbox message older than max_age_s (spec.md
// §4.6 update step 5, §8 invariant 3).
func (m *Manager) ageInboxes() {
	for id, msgs := range m.inboxes {
		kept := msgs[:0]
		for _, msg := range msgs {
			if m.simTime-msg.Envelope.CreatedAt <= m.cfg.MaxAgeS {
				kept = append(kept, msg)
			} else {
				m.stats.Dropped++
				m.stats.DroppedByReason[DropTooOld]++
				if m.OnDropped != nil {
					m.OnDropped(msg.Envelope.SenderID, DropTooOld)
				}
			}
		}
		if len(kept) == 0 {
			delete(m.inboxes, id)
		} else {
			m.inboxes[id] = kept
		}
	}
}

func (m *Manager) refreshLinkStats() {
	m.stats.ActiveLinks = m.graph.LinkCount()
	m.stats.AvgNeighbors = m.graph.AverageDegree()
}

func (m *Manager) refreshThroughput(simTime float64) {
	elapsed := simTime - m.stats.windowStart
	if elapsed >= windowSeconds {
		if elapsed <= 0 {
			elapsed = windowSeconds
		}
		m.stats.ThroughputMsgPS = float64(m.stats.windowDelivered) / elapsed
		m.stats.windowStart = simTime
		m.stats.windowDelivered = 0
	}
}

func (m *Manager) drop(senderID int, reason DropReason) {
	m.stats.Dropped++
	m.stats.DroppedByReason[reason]++
	if m.OnDropped != nil {
		m.OnDropped(senderID, reason)
	}
}

// Stats returns a copy of the current statistics block.
func (m *Manager) Stats() Stats {
	snapshot := m.stats
	snapshot.SentByKind = cloneKindCounts(m.stats.SentByKind)
	snapshot.DroppedByReason = cloneReasonCounts(m.stats.DroppedByReason)
	return snapshot
}

func cloneKindCounts(in map[message.Kind]int) map[message.Kind]int {
	out := make(map[message.Kind]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneReasonCounts(in map[DropReason]int) map[DropReason]int {
	out := make(map[DropReason]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Reset clears all manager state: inboxes, the delivery queue, and
// statistics (spec.md §8 invariant 5: reset clears the delivery queue).
func (m *Manager) Reset() {
	m.inboxes = map[int][]message.Message{}
	m.queue.clear()
	m.simTime = 0
	m.seq = 0
	m.stats = newStats()
}
