package sim

// Channel wraps a Store with a fixed propagation delay, modeling the wire
// between the balancer and a worker (or a worker and the balancer's
// pull-feedback path). Grounded on components/comm_channel.py's
// CommChannel, which wraps a simpy.Store with env.timeout(delay) before
// the underlying put.
type Channel struct {
	store *Store
	delay int64
}

// NewChannel returns a Channel with the given one-way propagation delay.
func NewChannel(delay int64) *Channel {
	return &Channel{store: NewStore(), delay: delay}
}

// Put schedules v to land in the channel delay ticks from now.
func (c *Channel) Put(eng *Engine, v any) {
	eng.After(c.delay, func(eng *Engine) { c.store.Put(eng, v) })
}

// Get delegates directly to the underlying store; the propagation delay
// only applies to Put.
func (c *Channel) Get(eng *Engine, cont func(eng *Engine, v any)) {
	c.store.Get(eng, cont)
}

// Len reports the number of items that have already arrived and are
// waiting to be pulled.
func (c *Channel) Len() int { return c.store.Len() }

// Items returns the arrived-but-unpulled items in FIFO order.
func (c *Channel) Items() []any { return c.store.Items() }
