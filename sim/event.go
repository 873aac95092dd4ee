package sim

// Event is a unit of work scheduled to execute at a specific virtual time.
// Mirrors the teacher's Event interface (sim/event.go), generalized with a
// closure-based concrete type so any component can schedule a continuation
// without declaring a named struct per call site.
type Event interface {
	Timestamp() int64
	Execute(eng *Engine)
}

// funcEvent adapts a plain closure to Event, the mechanism every component
// in this package uses to schedule "do X at time T" without defining a new
// Event type per call site.
type funcEvent struct {
	time int64
	fn   func(eng *Engine)
}

func (e *funcEvent) Timestamp() int64      { return e.time }
func (e *funcEvent) Execute(eng *Engine)   { e.fn(eng) }

// eventHeap implements heap.Interface over Events, ordering by (timestamp,
// sequence) so events scheduled for the same virtual instant fire in the
// order they were scheduled, matching simpy's tie-breaking behavior that
// components/bucketed_index.py and components/comm_channel.py rely on.
type eventHeap []heapItem

type heapItem struct {
	ev  Event
	seq uint64
}

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].ev.Timestamp(), h[j].ev.Timestamp()
	if ti != tj {
		return ti < tj
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(heapItem))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
