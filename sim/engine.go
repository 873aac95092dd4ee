package sim

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// Engine is the single-threaded, cooperative virtual-time scheduler. All
// components in this package (generator, balancer, dispatch policies,
// worker cores) are expressed as chains of events scheduled on an Engine
// rather than as goroutines: the original simpy processes suspend on
// yield; here they suspend by returning after scheduling their own
// continuation, the same shape as the teacher's ArrivalEvent scheduling a
// ProcessBatchEvent in sim/event.go.
type Engine struct {
	clock   int64
	horizon int64
	queue   eventHeap
	seq     uint64
	stopped bool
	log     *logrus.Logger
}

// NewEngine creates an Engine with the given termination horizon (see
// SPEC_FULL.md's "Engine termination bound"). A nil logger defaults to
// logrus.StandardLogger(), matching the teacher's package-level logrus use.
func NewEngine(horizon int64, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{horizon: horizon, log: log}
}

// Now returns the current virtual clock value.
func (e *Engine) Now() int64 { return e.clock }

// Horizon returns the configured termination bound.
func (e *Engine) Horizon() int64 { return e.horizon }

// Log exposes the engine's logger so components can log at the same
// tick-relative granularity the engine itself logs at.
func (e *Engine) Log() *logrus.Logger { return e.log }

// Schedule pushes ev onto the event heap.
func (e *Engine) Schedule(ev Event) {
	heap.Push(&e.queue, heapItem{ev: ev, seq: e.seq})
	e.seq++
}

// After schedules fn to run delay ticks from now. This is the Timeout
// primitive: most of the package's "suspend for a duration" logic goes
// through this rather than constructing funcEvent directly.
func (e *Engine) After(delay int64, fn func(eng *Engine)) {
	e.Schedule(&funcEvent{time: e.clock + delay, fn: fn})
}

// Stop sets the flag that Stopped reports. It does not halt Run, and the
// workload generator does not read it (LoadGenerator.Interrupt stops the
// generator); the run ends once the heap empties or the horizon is
// crossed.
func (e *Engine) Stop() { e.stopped = true }

// Stopped reports whether Stop has been called.
func (e *Engine) Stopped() bool { return e.stopped }

// Run drains the event heap, advancing the clock to each event's
// timestamp before executing it, exactly as the teacher's Simulator.Run
// does, with the same horizon-based escape hatch.
func (e *Engine) Run() {
	for e.queue.Len() > 0 {
		item := heap.Pop(&e.queue).(heapItem)
		e.clock = item.ev.Timestamp()
		e.log.Debugf("[tick %d] executing %T", e.clock, item.ev)
		item.ev.Execute(e)
		if e.horizon > 0 && e.clock > e.horizon {
			break
		}
	}
	e.log.Infof("[tick %d] event queue drained, run ended", e.clock)
}
