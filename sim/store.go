package sim

// Store is an unbounded FIFO queue of values: the virtual-time analogue of
// simpy's Store. Put completes the oldest pending Get in arrival order;
// if nobody is waiting, the value sits in the queue until a Get arrives.
//
// Grounded on components/comm_channel.py's use of simpy.Store, generalized
// here since the teacher's sim/queue.go WaitQueue has no wake-on-put
// mechanism (it is drained synchronously by a single scheduler loop, not
// by waiters suspended on an empty queue).
type Store struct {
	items   []any
	waiters []func(eng *Engine, v any)
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Put enqueues v, waking the oldest waiting Get if one is pending. The
// wake is itself scheduled (rather than invoked inline) so it flows
// through the engine's heap and preserves the "same-tick events fire in
// scheduling order" guarantee.
func (s *Store) Put(eng *Engine, v any) {
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		eng.Schedule(&funcEvent{time: eng.Now(), fn: func(eng *Engine) { w(eng, v) }})
		return
	}
	s.items = append(s.items, v)
}

// Get invokes cont with the next available value. If the store is empty,
// cont is queued as a waiter and invoked by a future Put.
func (s *Store) Get(eng *Engine, cont func(eng *Engine, v any)) {
	if len(s.items) > 0 {
		v := s.items[0]
		s.items = s.items[1:]
		eng.Schedule(&funcEvent{time: eng.Now(), fn: func(eng *Engine) { cont(eng, v) }})
		return
	}
	s.waiters = append(s.waiters, cont)
}

// Len reports the number of items currently queued (not counting waiters),
// the discrete-event analogue of the original's portable_get_q_depth.
func (s *Store) Len() int { return len(s.items) }

// Items returns the queued items in FIFO order without consuming them, for
// dispatch policies that need to inspect queue contents (e.g. to detect a
// same-bucket conflict ahead of a new write) without popping anything.
// Grounded on components/comm_channel.py's portable_iterate_queued_items.
func (s *Store) Items() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Waiting reports how many Gets are currently parked on this store.
func (s *Store) Waiting() int { return len(s.waiters) }
