// Package message implements the tagged V2V message variants and their
// immutable envelope (spec.md §3 Message, §4.5). The source models these
// as a base class with virtual dispatch (V2VMessage/CAM/DENM/Custom); this
// rewrite replaces the hierarchy with one discriminated value carrying a
// common envelope, per spec.md §9 "Message polymorphism".
//
// Timestamps are simulation time (seconds since the engine's last
// start/reset), not wall-clock time: spec.md §5 defines "simulation time"
// as accumulated dt independent of wall time, and §8 property 8 requires
// tick-for-tick reproducibility, which a wall-clock timestamp would break.
package message

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind discriminates the three message payload variants.
type Kind int

const (
	KindAwareness Kind = iota
	KindEvent
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindAwareness:
		return "Awareness"
	case KindEvent:
		return "Event"
	case KindRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// Priority ranks messages for delivery and logging purposes (spec.md §3).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityEmergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// EventKind enumerates the DENM event categories (spec.md §3 Message).
type EventKind int

const (
	EventHardBraking EventKind = iota
	EventAccident
	EventObstacle
	EventSlippery
	EventJam
	EventEmergencyVehicle
	EventOther
)

func (k EventKind) String() string {
	switch k {
	case EventHardBraking:
		return "HardBraking"
	case EventAccident:
		return "Accident"
	case EventObstacle:
		return "Obstacle"
	case EventSlippery:
		return "Slippery"
	case EventJam:
		return "Jam"
	case EventEmergencyVehicle:
		return "EmergencyVehicle"
	case EventOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Envelope carries the fields common to every message variant (spec.md
// §3: "every message carries an immutable envelope"). Only HopCount may
// change after construction. CreatedAt is simulation time in seconds.
type Envelope struct {
	MessageID uint64
	SenderID  int
	CreatedAt float64
	HopCount  int
	Priority  Priority
}

// AgeSeconds returns the envelope's age as of simTime, in simulation
// seconds.
func (e Envelope) AgeSeconds(simTime float64) float64 {
	return simTime - e.CreatedAt
}

// AgeMS returns the envelope's age as of simTime, in milliseconds.
func (e Envelope) AgeMS(simTime float64) float64 {
	return e.AgeSeconds(simTime) * 1000.0
}

// AwarenessPayload is a CAM: frequent, normal-priority position/speed
// reports (spec.md §3, §GLOSSARY "Awareness message").
type AwarenessPayload struct {
	Position orb.Point
	SpeedMPS float64
	Heading  float64
	AccelM2  float64
}

// EventPayload is a DENM: a rare, high-priority road-event notification
// with an expiry (spec.md §3, §GLOSSARY "Event message"). ValidUntil is
// simulation time in seconds.
type EventPayload struct {
	Kind       EventKind
	Location   orb.Point
	Text       string
	ValidUntil float64
}

// RawPayload is an arbitrary application payload with caller-chosen
// priority (spec.md §3).
type RawPayload struct {
	Bytes []byte
}

// Message is the tagged variant: exactly one of Awareness, Event, or Raw
// is populated, selected by Kind. Messages are immutable after
// construction except for Envelope.HopCount (spec.md §4.5).
type Message struct {
	Envelope  Envelope
	Kind      Kind
	Awareness AwarenessPayload
	Event     EventPayload
	Raw       RawPayload
}

// IDGenerator issues monotonic message IDs. One is owned per engine
// instance, not a process-wide singleton — the source generates
// ids from a static counter, which this rewrite replaces per spec.md §9
// "Global singletons" (constructed at engine init and passed down instead
// of touching process globals).
type IDGenerator struct {
	next uint64
}

// NewIDGenerator returns a generator whose first issued id is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{next: 1}
}

// Next returns the next monotonic id.
func (g *IDGenerator) Next() uint64 {
	id := g.next
	g.next++
	return id
}

// NewAwareness constructs a CAM message at simulation time simTime.
func NewAwareness(ids *IDGenerator, senderID int, simTime float64, pos orb.Point, speedMPS, heading, accel float64) Message {
	return Message{
		Envelope: Envelope{
			MessageID: ids.Next(),
			SenderID:  senderID,
			CreatedAt: simTime,
			Priority:  PriorityNormal,
		},
		Kind: KindAwareness,
		Awareness: AwarenessPayload{
			Position: pos,
			SpeedMPS: speedMPS,
			Heading:  heading,
			AccelM2:  accel,
		},
	}
}

// NewEvent constructs a DENM message, valid until validUntil (simulation
// time in seconds).
func NewEvent(ids *IDGenerator, senderID int, simTime float64, kind EventKind, location orb.Point, text string, validUntil float64) Message {
	return Message{
		Envelope: Envelope{
			MessageID: ids.Next(),
			SenderID:  senderID,
			CreatedAt: simTime,
			Priority:  PriorityHigh,
		},
		Kind: KindEvent,
		Event: EventPayload{
			Kind:       kind,
			Location:   location,
			Text:       text,
			ValidUntil: validUntil,
		},
	}
}

// NewRaw constructs a Custom message with caller-chosen priority.
func NewRaw(ids *IDGenerator, senderID int, simTime float64, payload []byte, priority Priority) Message {
	return Message{
		Envelope: Envelope{
			MessageID: ids.Next(),
			SenderID:  senderID,
			CreatedAt: simTime,
			Priority:  priority,
		},
		Kind: KindRaw,
		Raw:  RawPayload{Bytes: payload},
	}
}

// IsValid reports whether simTime falls within this event's validity
// window. Only meaningful for Kind == KindEvent (spec.md §3: "is_valid()
// returns created_at ≤ now ≤ valid_until").
func (m Message) IsValid(simTime float64) bool {
	if m.Kind != KindEvent {
		return true
	}
	return simTime >= m.Envelope.CreatedAt && simTime <= m.Event.ValidUntil
}

// WithIncrementedHop returns a copy of m with HopCount incremented, the
// only mutation the envelope permits after construction.
func (m Message) WithIncrementedHop() Message {
	out := m
	out.Envelope.HopCount++
	return out
}

// String renders the message in the stable human-readable form required
// by spec.md §4.5 for logging and test assertions.
func (m Message) String() string {
	switch m.Kind {
	case KindAwareness:
		return fmt.Sprintf("CAM[%d]: pos(%.6f,%.6f) speed=%.2f heading=%.2f",
			m.Envelope.SenderID, m.Awareness.Position.X(), m.Awareness.Position.Y(), m.Awareness.SpeedMPS, m.Awareness.Heading)
	case KindEvent:
		return fmt.Sprintf("DENM[%d]: event=%s at(%.6f,%.6f) - %s",
			m.Envelope.SenderID, m.Event.Kind, m.Event.Location.X(), m.Event.Location.Y(), m.Event.Text)
	case KindRaw:
		return fmt.Sprintf("CUSTOM[%d]: %s", m.Envelope.SenderID, string(m.Raw.Bytes))
	default:
		return fmt.Sprintf("UNKNOWN[%d]", m.Envelope.SenderID)
	}
}
