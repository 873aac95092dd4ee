package sim

// Request is a single simulated RPC against the sharded store. Fields are
// mutated only by whoever currently owns the request: the balancer while
// it is queued, the core while it is processing. Grounded on
// components/requests.py's RPCRequest, with the precomputed hash kept as
// a plain field rather than an overridden __hash__.
type Request struct {
	ID    int64
	Rank  int64  // Zipf rank sampled for this request's key
	Hash  uint64 // precomputed 8-byte key hash, used for bucket/core routing
	Write bool

	GeneratedTime  int64
	DispatchTime   int64
	StartProcTime  int64
	EndProcTime    int64
	CompletionTime int64

	CCSpins  int
	CCAborts int

	// Delayed is set when the request was absorbed into a write batch
	// instead of being serviced immediately (see Worker.handleWrite in
	// sim/worker.go).
	Delayed bool

	// Discard marks requests generated after the end-of-measurements
	// marker: they still flow through the full pipeline to keep workers
	// busy at steady state, but are excluded from the latency store.
	Discard bool
}

// Bucket returns the bucket this request's key hashes to, mod numBuckets.
func (r *Request) Bucket(numBuckets int) int {
	return int(r.Hash % uint64(numBuckets))
}

// QueuedTime is the time spent waiting before processing started.
func (r *Request) QueuedTime() int64 { return r.StartProcTime - r.GeneratedTime }

// ProcessingTime is the time spent in the core's CC protocol.
func (r *Request) ProcessingTime() int64 { return r.EndProcTime - r.StartProcTime }

// PostProcessingTime is the fixed overhead applied after processing ends.
func (r *Request) PostProcessingTime() int64 { return r.CompletionTime - r.EndProcTime }

// TotalServiceTime is the full end-to-end latency, generation to completion.
func (r *Request) TotalServiceTime() int64 { return r.CompletionTime - r.GeneratedTime }

// EndOfMeasurements is the sentinel that traverses every queue exactly like
// a Request but terminates consumers instead of being measured. Grounded
// on components/requests.py's distinct marker handling in load_balancer.py
// (checked with an isinstance test at each consumption point).
type EndOfMeasurements struct{}

// IsEndMarker reports whether v is the end-of-measurements sentinel.
func IsEndMarker(v any) bool {
	_, ok := v.(*EndOfMeasurements)
	return ok
}

// AsRequest type-asserts v to *Request, returning ok=false for the end
// marker or any other pipeline value.
func AsRequest(v any) (*Request, bool) {
	r, ok := v.(*Request)
	return r, ok
}

// PullFeedback is the worker-to-balancer acknowledgment sent on request
// completion: carries the worker id and the completed request so the
// balancer can decrement tracking, release bucket-exclusivity, and/or wake
// blocked readers. Grounded on components/requests.py's
// PullFeedbackRequest and the consumption side in components/load_balancer.py.
type PullFeedback struct {
	WorkerID int
	Req      *Request
}
