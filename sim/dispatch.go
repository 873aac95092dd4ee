package sim

// DispatchPolicy is the closed set of request-routing policies
// (spec.md §4.4): EREW, CREW, CRCW, JBSQ-bounded CREW, dynamic-CREW.
// Expressed as a small interface rather than a tagged variant because Go
// has no sum types (spec.md §9's "tagged variant... compiles to a
// switch" becomes NewDispatchPolicy's constructor switch instead), the
// same idiom as the teacher's sim/routing.go RoutingPolicy interface plus
// NewRoutingPolicy.
type DispatchPolicy interface {
	// Select returns the queue index to dispatch req to, or -1 to refuse
	// (queues full). Refusing is only ever valid under the depth-bounded
	// policies: for reads, and under dynamic-CREW also for a write to a
	// bucket no core owns; any other -1 is an InvariantFailure.
	Select(req *Request) int
	// FuncExecuted notifies the policy that the oldest outstanding
	// request dispatched to qID has completed.
	FuncExecuted(qID int)
	// NotifyDispatch records a request dispatched outside Select (e.g.
	// the bucket-serialising balancer dispatching a drained request
	// directly), updating tracking the same way Select would have.
	NotifyDispatch(qID int, req *Request)
	// TrackedLength reports the current length of qID's tracking deque.
	TrackedLength(qID int) int
}

// trackingPolicy is the shared tracking-deque bookkeeping every concrete
// policy embeds. Grounded on key_based_policies.py's KeyDispatchPolicy
// (queue_length_tracking, func_executed, notify_dispatch).
type trackingPolicy struct {
	numQueues  int
	numBuckets int
	tracking   [][]*Request
}

func newTrackingPolicy(numQueues, numBuckets int) trackingPolicy {
	return trackingPolicy{
		numQueues:  numQueues,
		numBuckets: numBuckets,
		tracking:   make([][]*Request, numQueues),
	}
}

func (t *trackingPolicy) enqueue(qID int, req *Request) {
	t.tracking[qID] = append(t.tracking[qID], req)
}

func (t *trackingPolicy) FuncExecuted(qID int) {
	q := t.tracking[qID]
	if len(q) == 0 {
		Raise("trackingPolicy.FuncExecuted", "completion notified on empty tracking deque")
	}
	t.tracking[qID] = q[1:]
}

func (t *trackingPolicy) NotifyDispatch(qID int, req *Request) {
	t.enqueue(qID, req)
}

func (t *trackingPolicy) TrackedLength(qID int) int {
	return len(t.tracking[qID])
}

// findShortestQ returns the index of the shallowest tracking deque,
// starting the scan at startingQ and skipping any index in skip, so ties
// can be spread with a rotating offset (spec.md §4.4: "a per-policy
// rotating offset may be used to spread ties"). Grounded on
// base_policies.py's find_shortest_q.
func findShortestQ(lengths func(i int) int, numQueues, startingQ int, skip map[int]bool) int {
	best := -1
	bestLen := int(^uint(0) >> 1)
	for i := 0; i < numQueues; i++ {
		idx := (startingQ + i) % numQueues
		if skip != nil && skip[idx] {
			continue
		}
		l := lengths(idx)
		if l < bestLen {
			bestLen = l
			best = idx
		}
	}
	return best
}

// bucketFor maps a request's hash to its owning bucket then core under a
// fixed, deterministic partitioning: bucket = hash mod numBuckets, core =
// bucket mod numQueues. Grounded on CREWDispatchPolicy/EREWDispatchPolicy's
// identical "bucket = hash(req) % num_buckets; final_idx = bucket %
// num_queues" computation.
func bucketFor(req *Request, numBuckets, numQueues int) (bucket, core int) {
	bucket = req.Bucket(numBuckets)
	core = bucket % numQueues
	return
}

// crcwPolicy ignores keys and always dispatches to the shortest tracking
// deque. Grounded on CRCWDispatchPolicy.
type crcwPolicy struct {
	trackingPolicy
	rotate int
}

func newCRCWPolicy(numQueues int) *crcwPolicy {
	return &crcwPolicy{trackingPolicy: newTrackingPolicy(numQueues, 1)}
}

func (p *crcwPolicy) Select(req *Request) int {
	idx := findShortestQ(p.TrackedLength, p.numQueues, p.rotate, nil)
	p.rotate = (p.rotate + 1) % p.numQueues
	p.enqueue(idx, req)
	return idx
}

// erewPolicy deterministically hashes every request (read or write) to
// its owning core. Grounded on EREWDispatchPolicy.
type erewPolicy struct {
	trackingPolicy
}

func newEREWPolicy(numQueues, numBuckets int) *erewPolicy {
	return &erewPolicy{trackingPolicy: newTrackingPolicy(numQueues, numBuckets)}
}

func (p *erewPolicy) Select(req *Request) int {
	_, core := bucketFor(req, p.numBuckets, p.numQueues)
	p.enqueue(core, req)
	return core
}

// idealPolicy is the "ideal" single-queue baseline: a pure JSQ over
// tracking deques with no key affinity at all, used to bound the best
// case a real policy could hope to approach. Grounded on
// base_policies.py's JSQDispatchPolicy, adapted to track via the shared
// tracking-deque bookkeeping instead of inspecting channel depth directly.
type idealPolicy struct {
	trackingPolicy
	rotate int
}

func newIdealPolicy(numQueues int) *idealPolicy {
	return &idealPolicy{trackingPolicy: newTrackingPolicy(numQueues, 1)}
}

func (p *idealPolicy) Select(req *Request) int {
	idx := findShortestQ(p.TrackedLength, p.numQueues, p.rotate, nil)
	p.rotate = (p.rotate + 1) % p.numQueues
	p.enqueue(idx, req)
	return idx
}

// NewDispatchPolicy constructs the DispatchPolicy named by name, panicking
// on an unrecognized name. Mirrors the teacher's NewRoutingPolicy
// constructor-switch idiom (sim/routing.go).
func NewDispatchPolicy(name DispatchPolicyName, cores, numBuckets, jbsqDepth int) DispatchPolicy {
	switch name {
	case PolicyCRCW:
		return newCRCWPolicy(cores)
	case PolicyEREW:
		return newEREWPolicy(cores, numBuckets)
	case PolicyCREW:
		// CREW is always bounded to jbsq_depth per spec §4.4's "JBSQ-bounded
		// CREW" contract: plain (unbounded) CREW is its depth -> infinity
		// limit, which callers get by passing a large jbsqDepth.
		return newJBSQCREWPolicy(cores, numBuckets, jbsqDepth)
	case PolicyIdeal:
		return newIdealPolicy(cores)
	case PolicyDCREW:
		return newDynCREWPolicy(cores, numBuckets, jbsqDepth)
	default:
		panic("sim: unknown dispatch policy " + string(name))
	}
}
