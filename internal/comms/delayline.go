package comms

import (
	"container/heap"

	"github.com/v2vsim/v2vsim/internal/message"
)

// pendingDelivery is one scheduled message in flight (spec.md §3
// PendingDelivery).
type pendingDelivery struct {
	message   message.Message
	targetID  int
	deliverAt float64
	sequence  uint64 // insertion order, breaks deliverAt ties (spec.md §4.6 Ordering)
}

// delayLine is a time-ordered priority queue of pending deliveries, keyed
// on deliverAt with insertion order as the tiebreaker. Grounded on the
// teacher's sim/cluster/event_heap.go EventHeap shape (timestamp primary
// key, deterministic secondary tiebreak, container/heap.Interface).
type delayLine struct {
	items []pendingDelivery
}

func newDelayLine() *delayLine {
	dl := &delayLine{}
	heap.Init(dl)
	return dl
}

func (dl *delayLine) Len() int { return len(dl.items) }

func (dl *delayLine) Less(i, j int) bool {
	if dl.items[i].deliverAt != dl.items[j].deliverAt {
		return dl.items[i].deliverAt < dl.items[j].deliverAt
	}
	return dl.items[i].sequence < dl.items[j].sequence
}

func (dl *delayLine) Swap(i, j int) { dl.items[i], dl.items[j] = dl.items[j], dl.items[i] }

func (dl *delayLine) Push(x interface{}) { dl.items = append(dl.items, x.(pendingDelivery)) }

func (dl *delayLine) Pop() interface{} {
	old := dl.items
	n := len(old)
	item := old[n-1]
	dl.items = old[:n-1]
	return item
}

func (dl *delayLine) schedule(pd pendingDelivery) { heap.Push(dl, pd) }

func (dl *delayLine) peek() (pendingDelivery, bool) {
	if dl.Len() == 0 {
		return pendingDelivery{}, false
	}
	return dl.items[0], true
}

func (dl *delayLine) popNext() pendingDelivery {
	return heap.Pop(dl).(pendingDelivery)
}

func (dl *delayLine) clear() {
	dl.items = nil
}
