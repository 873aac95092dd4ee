package sim

// instabilityThreshold and instabilityWindow bound the "service time
// blew up" detector: once a core's last instabilityWindow service times
// are all >= instabilityThreshold ns, the run is declared unstable.
// Grounded on components/rpc_core.py's AbstractCore
// (kill_sim_threshold=1000000, a 5-entry lastFiveSTimes window).
const (
	instabilityThreshold int64 = 1000000
	instabilityWindow    int   = 5
)

// batchWindowFactorDefault matches components/datastore_rpc.py's
// BATCH_WINDOW_FACTOR=10 default, overridable via BatchingConfig.WindowFactor.
const batchWindowFactorDefault = 10.0

// coreBase is the instability-detection and graceful/forced shutdown
// bookkeeping shared by every worker variant. Grounded on
// components/rpc_core.py's AbstractCore.
type coreBase struct {
	id       int
	isMaster bool
	killed   bool

	lastFiveSTimes []int64

	lgen    *LoadGenerator
	outcome *RunOutcome
}

func newCoreBase(id int, lgen *LoadGenerator, outcome *RunOutcome) coreBase {
	return coreBase{id: id, isMaster: id == 0, lgen: lgen, outcome: outcome}
}

func (c *coreBase) putSTime(t int64) {
	c.lastFiveSTimes = append(c.lastFiveSTimes, t)
	if len(c.lastFiveSTimes) > instabilityWindow {
		c.lastFiveSTimes = c.lastFiveSTimes[1:]
	}
}

func (c *coreBase) isSimulationUnstable() bool {
	if len(c.lastFiveSTimes) < instabilityWindow {
		return false
	}
	for _, t := range c.lastFiveSTimes {
		if t < instabilityThreshold {
			return false
		}
	}
	return true
}

// endSimGraceful marks this core killed and interrupts the load
// generator; called when this core pulls the end-of-measurements marker.
func (c *coreBase) endSimGraceful() {
	c.killed = true
	c.lgen.Interrupt()
}

// endSimUnstable marks this core killed and, if it is the master core,
// interrupts the generator and records Unstable as the run outcome.
func (c *coreBase) endSimUnstable() {
	if c.isMaster {
		c.lgen.Interrupt()
		if c.outcome != nil {
			*c.outcome = Unstable
		}
	}
	c.killed = true
}

// Worker is the MICA-style request processor: EREW cores apply a
// deterministic lock/unlock around writes with no contention possible by
// construction, CRCW/CREW/d-CREW cores spin on a bucket's version parity
// and use one-retry optimistic reads, and Ideal cores skip concurrency
// control and spend one service time per request. Grounded on
// components/datastore_rpc.py's MICAIndexAccessor in full.
type Worker struct {
	coreBase

	inQ       *Channel
	pullQueue *Store
	bindex    *BucketedIndex

	policy     DispatchPolicyName
	numBuckets int

	servGen     ServiceTimeGenerator
	overheadGen ServiceTimeGenerator

	indexUpdateDelay int64

	collectQueuedReadStats bool

	measurements *LatencyStore

	// batching / compaction state (spec.md §4.7)
	useCompaction      bool
	compactionTime     int64
	batchWindowFactor  float64
	batchMap           map[int64][]*Request
	batchCompletionTime map[int64]int64
	batchSizeHist      map[int]int
	delayedWriteLatencies *ExactLatStore

	// cache locality (supplemented feature, SPEC_FULL.md §4)
	cacheEnabled bool
	cache        *PrivateDataCache
	cacheAccesses, accessesWithLocality int64

	numSimulated        int64
	totalCyclesWorking  int64
	totalQueuedTime     int64
	reads, readsWithCC  int64
	totalCCSpins, totalCCAborts int64
}

// WorkerConfig groups the construction-time parameters for a Worker,
// mirroring MICAIndexAccessor's long constructor argument list.
type WorkerConfig struct {
	ID         int
	InQ        *Channel
	PullQueue  *Store
	BIndex     *BucketedIndex
	Policy     DispatchPolicyName
	NumBuckets int

	ServGen     ServiceTimeGenerator
	OverheadGen ServiceTimeGenerator

	IndexUpdateDelay int64

	UseCompaction     bool
	CompactionTime    int64
	BatchWindowFactor float64

	CollectQueuedReadStats bool
	EnablePrivateCache     bool
	PrivateCacheSize       int

	Measurements *LatencyStore
	LoadGen      *LoadGenerator
	Outcome      *RunOutcome
}

// NewWorker builds a Worker from cfg.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		coreBase:              newCoreBase(cfg.ID, cfg.LoadGen, cfg.Outcome),
		inQ:                   cfg.InQ,
		pullQueue:             cfg.PullQueue,
		bindex:                cfg.BIndex,
		policy:                cfg.Policy,
		numBuckets:            cfg.NumBuckets,
		servGen:               cfg.ServGen,
		overheadGen:           cfg.OverheadGen,
		indexUpdateDelay:      cfg.IndexUpdateDelay,
		collectQueuedReadStats: cfg.CollectQueuedReadStats,
		measurements:          cfg.Measurements,
		useCompaction:         cfg.UseCompaction,
		compactionTime:        cfg.CompactionTime,
		batchWindowFactor:     cfg.BatchWindowFactor,
		batchMap:              make(map[int64][]*Request),
		batchCompletionTime:   make(map[int64]int64),
		batchSizeHist:         make(map[int]int),
		delayedWriteLatencies: NewExactLatStore(),
		cacheEnabled:          cfg.EnablePrivateCache,
	}
	if w.batchWindowFactor == 0 {
		w.batchWindowFactor = batchWindowFactorDefault
	}
	if w.cacheEnabled {
		w.cache = NewPrivateDataCache(cfg.PrivateCacheSize)
	}
	return w
}

// Start schedules the worker's first pull from its private queue.
func (w *Worker) Start(eng *Engine) {
	eng.Schedule(&funcEvent{time: eng.Now(), fn: w.step})
}

func (w *Worker) step(eng *Engine) {
	if w.killed {
		return
	}
	w.inQ.Get(eng, func(eng *Engine, v any) {
		if IsEndMarker(v) {
			w.endSimGraceful()
			return
		}
		req, _ := AsRequest(v)
		w.processRequest(eng, req, func(eng *Engine) {
			eng.Schedule(&funcEvent{time: eng.Now(), fn: w.step})
		})
	})
}

func (w *Worker) processRequest(eng *Engine, req *Request, done func(eng *Engine)) {
	req.StartProcTime = eng.Now()
	bucket := req.Bucket(w.numBuckets)

	if w.policy == PolicyEREW {
		w.runEREW(eng, req, bucket, done)
		return
	}
	if w.policy == PolicyIdeal {
		eng.After(w.servGen.Get(), func(eng *Engine) {
			w.afterCCPhase(eng, req, bucket, false, done)
		})
		return
	}
	w.spinUntilEven(eng, req, bucket, func(eng *Engine) {
		if req.Write {
			w.handleWrite(eng, req, bucket, done)
		} else {
			w.handleRead(eng, req, bucket, done)
		}
	})
}

// runEREW applies a deterministic lock/unlock around writes with no spin:
// EREW's dispatch contract guarantees a bucket is never touched by two
// cores at once, so the version bump here is a sanity check, not a real
// concurrency mechanism. Grounded on datastore_rpc.py's `disp_policy ==
// "EREW"` branch.
func (w *Worker) runEREW(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	if w.bindex.IsOdd(bucket) {
		Raise("Worker.runEREW", "bucket was odd under EREW, which should be impossible")
	}
	if req.Write {
		w.bindex.IncVersion(bucket)
		eng.After(w.servGen.Get(), func(eng *Engine) {
			w.bindex.IncVersion(bucket)
			w.afterCCPhase(eng, req, bucket, false, done)
		})
		return
	}
	eng.After(w.servGen.Get(), func(eng *Engine) {
		w.afterCCPhase(eng, req, bucket, false, done)
	})
}

// spinUntilEven repeatedly waits on bucket's version until it is even
// (no writer holds it) before calling cont. Grounded on datastore_rpc.py's
// "while is_odd(first_version): ... yield get_event_for_increment(...)"
// loop.
func (w *Worker) spinUntilEven(eng *Engine, req *Request, bucket int, cont func(eng *Engine)) {
	if !w.bindex.IsOdd(bucket) {
		cont(eng)
		return
	}
	req.CCSpins++
	w.bindex.Wait(bucket, func(eng *Engine) {
		w.spinUntilEven(eng, req, bucket, cont)
	})
}

func (w *Worker) handleWrite(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	key := req.Rank

	if w.useCompaction {
		if _, ok := w.batchMap[key]; ok {
			req.Delayed = true
			w.batchMap[key] = append(w.batchMap[key], req)
			eng.After(w.compactionTime, func(eng *Engine) {
				if w.closeBatchLogic(eng, key) {
					w.respondToBatchedWrites(eng, key, bucket, done)
					return
				}
				done(eng)
			})
			return
		}
		if w.formNewBatchLogic(key) {
			req.Delayed = true
			w.batchMap[key] = []*Request{req}
			w.batchCompletionTime[key] = eng.Now() + int64(w.batchWindowFactor*float64(w.servGen.Get()))
			eng.After(w.compactionTime, func(eng *Engine) {
				done(eng)
			})
			return
		}
	}

	w.doWriteProcess(eng, bucket, func(eng *Engine) {
		w.afterCCPhase(eng, req, bucket, false, done)
	})
}

// formNewBatchLogic reports whether another request for the same
// logical key is already sitting in this worker's private queue, in
// which case the current write should start a new batch instead of
// processing immediately. Grounded on datastore_rpc.py's
// form_new_batch_logic (scanning in_q.store.items).
func (w *Worker) formNewBatchLogic(key int64) bool {
	for _, item := range w.inQ.Items() {
		if r, ok := AsRequest(item); ok && r.Rank == key {
			return true
		}
	}
	return false
}

// closeBatchLogic reports whether an open batch for key should close
// now: either its completion deadline has effectively arrived, or no
// further request for that key remains queued. Grounded on
// datastore_rpc.py's close_batch_logic.
func (w *Worker) closeBatchLogic(eng *Engine, key int64) bool {
	if eng.Now()+int64(1.5*float64(w.servGen.Get())) >= w.batchCompletionTime[key] {
		return true
	}
	for _, item := range w.inQ.Items() {
		if r, ok := AsRequest(item); ok && r.Rank == key {
			return false
		}
	}
	return true
}

// respondToBatchedWrites completes every batched request for key in
// order, then performs one real write process for the batch's final
// request. Grounded on datastore_rpc.py's respond_to_batched_writes.
func (w *Worker) respondToBatchedWrites(eng *Engine, key int64, bucket int, done func(eng *Engine)) {
	batched := w.batchMap[key]
	w.batchSizeHist[len(batched)]++
	finalReq := batched[len(batched)-1]
	rest := batched[:len(batched)-1]
	w.drainBatchedRest(eng, rest, 0, finalReq, key, bucket, done)
}

func (w *Worker) drainBatchedRest(eng *Engine, rest []*Request, i int, finalReq *Request, key int64, bucket int, done func(eng *Engine)) {
	if i >= len(rest) {
		w.doWriteProcess(eng, bucket, func(eng *Engine) {
			w.afterCCPhase(eng, finalReq, bucket, false, func(eng *Engine) {
				delete(w.batchMap, key)
				delete(w.batchCompletionTime, key)
				done(eng)
			})
		})
		return
	}
	w.afterCCPhase(eng, rest[i], bucket, false, func(eng *Engine) {
		w.drainBatchedRest(eng, rest, i+1, finalReq, key, bucket, done)
	})
}

// doWriteProcess locks bucket via a delayed index update, waits a full
// service time, asserts the lock completed in time, then schedules the
// (also delayed) unlock without waiting for it — matching the original's
// fire-and-forget AsyncIndexUpdater pattern. Grounded on
// datastore_rpc.py's do_write_process.
func (w *Worker) doWriteProcess(eng *Engine, bucket int, cont func(eng *Engine)) {
	AsyncIndexUpdater(eng, w.bindex, bucket, w.indexUpdateDelay, nil)
	eng.After(w.servGen.Get(), func(eng *Engine) {
		if !w.bindex.IsOdd(bucket) {
			Raise("Worker.doWriteProcess", "write's lock update had not completed before its service time elapsed")
		}
		AsyncIndexUpdater(eng, w.bindex, bucket, w.indexUpdateDelay, nil)
		cont(eng)
	})
}

// handleRead is a one-retry optimistic read: sample the version, wait a
// service time, then re-check; a mismatch means an intervening writer
// ran, so pay one extra service time and accept whatever is there.
// Grounded on datastore_rpc.py's READ branch.
func (w *Worker) handleRead(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	prevVersion := w.bindex.Version(bucket)
	eng.After(w.servGen.Get(), func(eng *Engine) {
		if w.bindex.Version(bucket) != prevVersion {
			req.CCAborts++
			eng.After(w.servGen.Get(), func(eng *Engine) {
				w.afterCCPhase(eng, req, bucket, false, done)
			})
			return
		}
		w.afterCCPhase(eng, req, bucket, false, done)
	})
}

// afterCCPhase runs the cache-locality sampling that happens
// unconditionally once a request's CC phase is done, then either
// finishes the request (non-batched) or simply continues the worker's
// loop (a batched write fast-forwarded without its own completion).
func (w *Worker) afterCCPhase(eng *Engine, req *Request, bucket int, batched bool, done func(eng *Engine)) {
	if w.cacheEnabled {
		w.recordCacheAccess(req)
	}
	if batched {
		done(eng)
		return
	}
	w.finishProcessing(eng, req, bucket, done)
}

func (w *Worker) recordCacheAccess(req *Request) {
	pair := KVPair{Key: req.Hash, KeySize: 8, ValueSize: 56}
	hit, _ := w.cache.Access(pair)
	w.cacheAccesses++
	if hit {
		w.accessesWithLocality++
	}
}

// finishProcessing applies the fixed post-processing overhead, records
// the request's total latency, updates instability/CC bookkeeping, and
// acks the balancer via the pull queue. Grounded on datastore_rpc.py's
// req_completion_logic.
func (w *Worker) finishProcessing(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	req.EndProcTime = eng.Now()
	eng.After(w.overheadGen.Get(), func(eng *Engine) {
		req.CompletionTime = eng.Now()
		total := req.TotalServiceTime()
		w.measurements.RecordValue(req, total)
		w.putSTime(total)
		w.totalCyclesWorking += req.ProcessingTime()
		w.totalQueuedTime += req.QueuedTime()

		if req.Write && req.Delayed {
			w.delayedWriteLatencies.RecordValue(total)
		}
		if w.isMaster && w.isSimulationUnstable() {
			w.endSimUnstable()
		}
		w.numSimulated++
		if !req.Write {
			w.reads++
			if req.CCSpins != 0 || req.CCAborts != 0 {
				w.readsWithCC++
				w.totalCCSpins += int64(req.CCSpins)
				w.totalCCAborts += int64(req.CCAborts)
			}
		}

		w.pullQueue.Put(eng, &PullFeedback{WorkerID: w.id, Req: req})
		done(eng)
	})
}

// BatchSizeHistogram returns the batched-write compaction size counter.
func (w *Worker) BatchSizeHistogram() map[int]int { return w.batchSizeHist }

// DelayedWriteLatencies returns the exact-value store of compacted write
// latencies (spec.md §4.7's separate reporting for absorbed writes).
func (w *Worker) DelayedWriteLatencies() *ExactLatStore { return w.delayedWriteLatencies }

// CacheLocalityRate returns the fraction of cache accesses that hit this
// core's private cache, or 0 if cache locality modeling is disabled.
func (w *Worker) CacheLocalityRate() float64 {
	if w.cacheAccesses == 0 {
		return 0
	}
	return float64(w.accessesWithLocality) / float64(w.cacheAccesses)
}

// NumSimulated returns the number of requests this worker has completed.
func (w *Worker) NumSimulated() int64 { return w.numSimulated }
