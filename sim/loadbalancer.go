package sim

// boundedDispatchPolicy is implemented by dispatch policies that can
// refuse a request because every private queue is at its depth cap
// (JBSQ-bounded CREW, dynamic-CREW). Grounded on JBSQ.py's
// JBSQDispatchPolicy.no_queue_available, used by the balancer to decide
// whether to block on a pull-ack before attempting to get the next
// request.
type boundedDispatchPolicy interface {
	NoQueueAvailable() bool
}

func (p *jbsqCREWPolicy) NoQueueAvailable() bool {
	idx := findShortestQ(p.TrackedLength, p.numQueues, 0, nil)
	return p.TrackedLength(idx) >= p.depthLimit
}

func (p *dynCREWPolicy) NoQueueAvailable() bool {
	idx := findShortestQ(p.TrackedLength, p.numQueues, 0, nil)
	return p.TrackedLength(idx) >= p.depthLimit
}

// balancerCore holds the state and primitives shared by all balancer
// variants (spec.md §4.5): draining pull-acks, blocking when no queue is
// available, and the two ways a request gets onto a worker's private
// channel (through Select, or directly via NotifyDispatch). Grounded on
// components/load_balancer.py's LoadBalancer base class.
type balancerCore struct {
	input      *Store
	pull       *Store
	workers    []*Channel
	policy     DispatchPolicy
	numBuckets int

	numTimesBlocked int

	// onPullCompleted lets a variant react to a completion beyond the
	// shared FuncExecuted bookkeeping (dynamic-EW releasing exclusivity;
	// bucket-serialising draining its blocked queue).
	onPullCompleted func(eng *Engine, pf *PullFeedback)
}

func (b *balancerCore) handlePull(eng *Engine, pf *PullFeedback) {
	b.policy.FuncExecuted(pf.WorkerID)
	if b.onPullCompleted != nil {
		b.onPullCompleted(eng, pf)
	}
}

// drainPulls consumes every pull-ack already sitting in the pull channel
// before calling cont, mirroring run()'s "while request_in_pull_q(...) >
// 0: pr = yield pull_q.get()" drain loop.
func (b *balancerCore) drainPulls(eng *Engine, cont func(eng *Engine)) {
	if b.pull.Len() == 0 {
		cont(eng)
		return
	}
	b.pull.Get(eng, func(eng *Engine, v any) {
		b.handlePull(eng, v.(*PullFeedback))
		b.drainPulls(eng, cont)
	})
}

// waitForPull suspends until exactly one pull-ack arrives, then calls
// cont. Used when the dispatch policy reports no queue available.
func (b *balancerCore) waitForPull(eng *Engine, cont func(eng *Engine)) {
	b.numTimesBlocked++
	b.pull.Get(eng, func(eng *Engine, v any) {
		b.handlePull(eng, v.(*PullFeedback))
		cont(eng)
	})
}

// dispatchToWorker puts req directly on worker q's channel, bypassing
// Select, and notifies the policy's tracking the way NotifyDispatch
// would have. Grounded on dispatch_to_q in both IndexAwareLoadBalancer
// and DynamicEWLoadBalancer.
func (b *balancerCore) dispatchToWorker(eng *Engine, q int, req *Request) {
	req.DispatchTime = eng.Now()
	b.workers[q].Put(eng, req)
	b.policy.NotifyDispatch(q, req)
}

// selectAndDispatch asks the policy to choose a queue and dispatches
// there; a -1 result is an InvariantFailure (spec.md §7: "a select()
// returns -1 when the caller believed a queue was available").
func (b *balancerCore) selectAndDispatch(eng *Engine, req *Request) {
	q := b.policy.Select(req)
	if q == -1 {
		Raise("balancerCore.selectAndDispatch", "select returned no available queue")
	}
	req.DispatchTime = eng.Now()
	b.workers[q].Put(eng, req)
}

// loopStep is the plain balancer main loop (spec.md §4.5): drain pulls,
// block if no queue is available, pull the next request (or forward the
// end marker to worker 0), dispatch, repeat. Grounded on
// components/load_balancer.py's LoadBalancer.run.
func (b *balancerCore) loopStep(eng *Engine) {
	b.drainPulls(eng, func(eng *Engine) {
		if bp, ok := b.policy.(boundedDispatchPolicy); ok && bp.NoQueueAvailable() {
			b.waitForPull(eng, b.loopStep)
			return
		}
		b.input.Get(eng, func(eng *Engine, v any) {
			if IsEndMarker(v) {
				b.workers[0].Put(eng, v)
			} else if req, ok := AsRequest(v); ok {
				b.selectAndDispatch(eng, req)
			}
			eng.Schedule(&funcEvent{time: eng.Now(), fn: b.loopStep})
		})
	})
}

// Start schedules the balancer's first loop iteration. Promoted to every
// variant that embeds balancerCore without overriding it.
func (b *balancerCore) Start(eng *Engine) {
	eng.Schedule(&funcEvent{time: eng.Now(), fn: b.loopStep})
}

// PlainBalancer is the balancer used with CRCW, EREW, CREW, JBSQ-CREW,
// and Ideal.
type PlainBalancer struct {
	balancerCore
}

// NewPlainBalancer builds a PlainBalancer.
func NewPlainBalancer(input, pull *Store, workers []*Channel, policy DispatchPolicy, numBuckets int) *PlainBalancer {
	return &PlainBalancer{balancerCore{input: input, pull: pull, workers: workers, policy: policy, numBuckets: numBuckets}}
}

// BucketSerializingBalancer preserves read-after-write ordering per
// bucket by queuing any conflicting request behind the one it conflicts
// with instead of relying on in-core spinning. Grounded on
// components/load_balancer.py's IndexAwareLoadBalancer.
type BucketSerializingBalancer struct {
	balancerCore
	index   *BucketedIndex
	blocked [][]*Request
	// inFlight approximates "the request currently executing at this
	// worker", since our Channel only exposes queued-but-not-yet-pulled
	// items; the original tracks this via queues_including_processing_req.
	inFlight map[int]*Request
}

// NewBucketSerializingBalancer builds a BucketSerializingBalancer.
func NewBucketSerializingBalancer(input, pull *Store, workers []*Channel, policy DispatchPolicy, index *BucketedIndex) *BucketSerializingBalancer {
	return &BucketSerializingBalancer{
		balancerCore: balancerCore{input: input, pull: pull, workers: workers, policy: policy, numBuckets: index.NumBuckets()},
		index:        index,
		blocked:      make([][]*Request, index.NumBuckets()),
		inFlight:     make(map[int]*Request),
	}
}

// Start runs the pull-draining loop and the main dispatch loop as two
// independent event chains, mirroring the original's separate
// pull_queue_updater process and run() loop.
func (b *BucketSerializingBalancer) Start(eng *Engine) {
	eng.Schedule(&funcEvent{time: eng.Now(), fn: b.pullStep})
	eng.Schedule(&funcEvent{time: eng.Now(), fn: b.mainStep})
}

func (b *BucketSerializingBalancer) pullStep(eng *Engine) {
	b.pull.Get(eng, func(eng *Engine, v any) {
		pf := v.(*PullFeedback)
		b.policy.FuncExecuted(pf.WorkerID)
		delete(b.inFlight, pf.WorkerID)
		b.drainBlocked(eng, pf.Req.Bucket(b.numBuckets))
		eng.Schedule(&funcEvent{time: eng.Now(), fn: b.pullStep})
	})
}

func (b *BucketSerializingBalancer) mainStep(eng *Engine) {
	b.input.Get(eng, func(eng *Engine, v any) {
		if IsEndMarker(v) {
			b.workers[0].Put(eng, v)
			eng.Schedule(&funcEvent{time: eng.Now(), fn: b.mainStep})
			return
		}
		req, _ := AsRequest(v)
		bucket := req.Bucket(b.numBuckets)
		if b.causesConflict(req) || len(b.blocked[bucket]) > 0 {
			b.blocked[bucket] = append(b.blocked[bucket], req)
		} else {
			b.dispatchTracked(eng, req)
		}
		eng.Schedule(&funcEvent{time: eng.Now(), fn: b.mainStep})
	})
}

func (b *BucketSerializingBalancer) dispatchTracked(eng *Engine, req *Request) {
	q := b.policy.Select(req)
	if q == -1 {
		Raise("BucketSerializingBalancer.dispatchTracked", "select returned no available queue")
	}
	req.DispatchTime = eng.Now()
	b.inFlight[q] = req
	b.workers[q].Put(eng, req)
}

// causesConflict reports whether req conflicts with any request currently
// queued or in flight at any worker to the same bucket: any write
// conflicts with anything to that bucket, reads never conflict with
// reads. Grounded on LoadBalancer.causes_conflict plus
// request_filter_lambdas.reqs_conflict.
func (b *BucketSerializingBalancer) causesConflict(req *Request) bool {
	bucket := req.Bucket(b.numBuckets)
	conflictsWith := func(other *Request) bool {
		if other == nil || other.Bucket(b.numBuckets) != bucket {
			return false
		}
		return req.Write || other.Write
	}
	for q, w := range b.workers {
		if conflictsWith(b.inFlight[q]) {
			return true
		}
		for _, item := range w.Items() {
			if r, ok := AsRequest(item); ok && conflictsWith(r) {
				return true
			}
		}
	}
	return false
}

// drainBlocked dispatches queued requests for bucket in FIFO order until
// the next one would conflict or no queue is available, matching
// select_and_dispatch_from_blocked_q.
func (b *BucketSerializingBalancer) drainBlocked(eng *Engine, bucket int) {
	for len(b.blocked[bucket]) > 0 {
		req := b.blocked[bucket][0]
		if bp, ok := b.policy.(boundedDispatchPolicy); ok && bp.NoQueueAvailable() {
			break
		}
		if b.causesConflict(req) {
			break
		}
		b.blocked[bucket] = b.blocked[bucket][1:]
		b.dispatchTracked(eng, req)
	}
}

// DynamicEWBalancer is the plain balancer augmented to release dynamic-
// CREW's bucket exclusivity on a completed write's pull-ack. Grounded on
// components/load_balancer.py's DynamicEWLoadBalancer.
type DynamicEWBalancer struct {
	balancerCore
	index *BucketedIndex
}

// NewDynamicEWBalancer builds a DynamicEWBalancer wired to policy's
// WriteReqFinished.
func NewDynamicEWBalancer(input, pull *Store, workers []*Channel, policy *dynCREWPolicy, index *BucketedIndex) *DynamicEWBalancer {
	b := &DynamicEWBalancer{
		balancerCore: balancerCore{input: input, pull: pull, workers: workers, policy: policy, numBuckets: index.NumBuckets()},
		index:        index,
	}
	b.onPullCompleted = func(eng *Engine, pf *PullFeedback) {
		if pf.Req.Write {
			policy.WriteReqFinished(pf.Req.Bucket(b.numBuckets), pf.WorkerID)
		}
	}
	return b
}
