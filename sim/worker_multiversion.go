package sim

// MultiversionWorker is the RLU-style alternative to Worker: a writer
// locks a bucket by stamping its own core id into the version counter,
// applies its update, then waits out a quiescent period (every reader
// that started before the write finishes) before unlocking, optionally
// deferring that wait across several writes to amortize its cost.
// Readers either see the old copy or "steal" the new one depending on
// how their registration epoch compares to the writer's timestamp.
// Grounded on components/datastore_rpc.py's
// MultiversionMICAIndexAccessor in full, with components/epoch_tracker.py,
// components/global_sequencer.py and components/deferral_controller.py
// providing the epoch/timestamp/deferral machinery.
//
// Only usable with CREW or dynamic-CREW dispatch (spec.md §4.8): both
// guarantee a bucket's writes all land on one core, which is what lets a
// bucket's version field double as "which core currently owns it"
// instead of a plain odd/even flag.
type MultiversionWorker struct {
	coreBase

	inQ       *Channel
	pullQueue *Store
	bindex    *BucketedIndex
	policy    DispatchPolicyName

	numBuckets int
	servGen    interface {
		ServiceTimeGenerator
		MeanOverridable
	}

	measurements *LatencyStore

	seq     *GlobalSequencer
	epochs  *EpochTracker
	defer_  *DeferralController
	deferWrites bool

	remoteWorkers []*MultiversionWorker
	writeTS       *int64

	numSimulated int64
}

// MultiversionWorkerConfig groups MultiversionWorker's construction-time
// parameters.
type MultiversionWorkerConfig struct {
	ID         int
	InQ        *Channel
	PullQueue  *Store
	BIndex     *BucketedIndex
	Policy     DispatchPolicyName
	NumBuckets int

	ServGen interface {
		ServiceTimeGenerator
		MeanOverridable
	}

	Measurements *LatencyStore
	LoadGen      *LoadGenerator
	Outcome      *RunOutcome

	Sequencer  *GlobalSequencer
	Epochs     *EpochTracker
	Deferral   *DeferralController
	DeferWrites bool
}

// NewMultiversionWorker builds a MultiversionWorker from cfg.
func NewMultiversionWorker(cfg MultiversionWorkerConfig) *MultiversionWorker {
	if cfg.Policy != PolicyCREW && cfg.Policy != PolicyDCREW {
		Raise("NewMultiversionWorker", "multiversion worker requires CREW or d-CREW dispatch")
	}
	return &MultiversionWorker{
		coreBase:     newCoreBase(cfg.ID, cfg.LoadGen, cfg.Outcome),
		inQ:          cfg.InQ,
		pullQueue:    cfg.PullQueue,
		bindex:       cfg.BIndex,
		policy:       cfg.Policy,
		numBuckets:   cfg.NumBuckets,
		servGen:      cfg.ServGen,
		measurements: cfg.Measurements,
		seq:          cfg.Sequencer,
		epochs:       cfg.Epochs,
		defer_:       cfg.Deferral,
		deferWrites:  cfg.DeferWrites,
	}
}

// SetRemoteWorkers gives this worker visibility into its siblings, used
// to read another core's pending write timestamp when a reader hits a
// bucket locked by it. Grounded on AbstractCore.set_remote_cores.
func (w *MultiversionWorker) SetRemoteWorkers(workers []*MultiversionWorker) {
	w.remoteWorkers = workers
}

// GetWriterTS returns this worker's in-flight write timestamp, or nil if
// it isn't currently writing.
func (w *MultiversionWorker) GetWriterTS() *int64 { return w.writeTS }

// Start schedules the worker's first pull from its private queue.
func (w *MultiversionWorker) Start(eng *Engine) {
	eng.Schedule(&funcEvent{time: eng.Now(), fn: w.step})
}

func (w *MultiversionWorker) step(eng *Engine) {
	if w.killed {
		return
	}
	w.inQ.Get(eng, func(eng *Engine, v any) {
		if IsEndMarker(v) {
			w.endSimGraceful()
			return
		}
		req, _ := AsRequest(v)
		req.StartProcTime = eng.Now()
		bucket := req.Bucket(w.numBuckets)
		if req.Write {
			w.runWrite(eng, req, bucket, func(eng *Engine) {
				eng.Schedule(&funcEvent{time: eng.Now(), fn: w.step})
			})
		} else {
			w.runRead(eng, req, bucket, func(eng *Engine) {
				eng.Schedule(&funcEvent{time: eng.Now(), fn: w.step})
			})
		}
	})
}

// runWrite claims bucket for this core (synchronizing first if a prior
// writer deferred without unlocking), applies the update, then either
// synchronizes immediately or defers depending on the deferral
// controller, per the original's run() write branch.
func (w *MultiversionWorker) runWrite(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	curEpoch := w.epochs.GetCurEpoch()
	lockedCore := w.bindex.Version(bucket) - 1

	claim := func(eng *Engine) {
		w.claimAndWrite(eng, req, bucket, curEpoch, done)
	}
	if lockedCore >= 0 {
		w.rluSynchronize(eng, bucket, curEpoch, claim)
		return
	}
	claim(eng)
}

func (w *MultiversionWorker) claimAndWrite(eng *Engine, req *Request, bucket int, curEpoch int64, done func(eng *Engine)) {
	w.bindex.setVersion(bucket, int64(w.id+1))
	eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*1.15), func(eng *Engine) {
		req.EndProcTime = eng.Now()
		afterSync := func(eng *Engine) {
			req.CompletionTime = eng.Now()
			w.writeTS = nil
			w.completeRequest(eng, req, done)
		}
		if w.deferWrites {
			if w.defer_.CheckDefer() {
				w.rluSynchronize(eng, bucket, curEpoch, afterSync)
			} else {
				eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*0.1), afterSync)
			}
			return
		}
		w.rluSynchronize(eng, bucket, curEpoch, afterSync)
	})
}

// rluSynchronize waits for every reader registered against curEpoch to
// unregister, pays a communication/deferral cost, then unlocks bucket.
// Grounded on MultiversionMICAIndexAccessor.rlu_synchronize.
func (w *MultiversionWorker) rluSynchronize(eng *Engine, bucket int, curEpoch int64, cont func(eng *Engine)) {
	w.writeTS = new(int64)
	*w.writeTS = w.seq.IncrementTSBy1()
	numReaders := w.epochs.NumReadersRegistered(curEpoch)
	syncStart := eng.Now()

	w.epochs.WriterSynchronizeEpoch(eng, curEpoch, func(eng *Engine) {
		blocked := eng.Now() - syncStart
		finish := func(eng *Engine) {
			w.bindex.setVersion(bucket, 0)
			w.defer_.ResetDefer()
			cont(eng)
		}
		if w.deferWrites {
			mult := w.defer_.DeferralCostMultiplier()
			eng.After(w.servGen.GetWithMean(float64(mult)*float64(w.nominalServTime())*0.1), finish)
			return
		}
		extraCost := int64(numReaders) * 30
		if blocked < extraCost {
			eng.After(w.servGen.GetWithMean(float64(extraCost-blocked)), finish)
			return
		}
		finish(eng)
	})
}

// runRead registers as a reader of the current epoch, then picks a cost
// depending on whether an intervening writer holds the bucket and, if
// so, whether this read's epoch is new enough to "steal" the writer's
// update. Grounded on the original's run() read branch.
func (w *MultiversionWorker) runRead(eng *Engine, req *Request, bucket int, done func(eng *Engine)) {
	curEpoch := w.epochs.RegisterReader(w.id)
	lockedCore := w.bindex.Version(bucket) - 1

	finish := func(eng *Engine) {
		req.EndProcTime = eng.Now()
		w.epochs.UnregisterReader(eng, curEpoch, w.id)
		req.CompletionTime = eng.Now()
		w.completeRequest(eng, req, done)
	}

	if lockedCore >= 0 {
		remote := w.remoteWorkers[int(lockedCore)]
		remoteTS := remote.GetWriterTS()
		if remoteTS == nil {
			eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*1.03), finish)
			return
		}
		if curEpoch >= *remoteTS {
			eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*1.1), finish)
			return
		}
		eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*1.03), finish)
		return
	}
	eng.After(w.servGen.GetWithMean(float64(w.nominalServTime())*1.03), finish)
}

// nominalServTime returns the configured mean service time that every
// RLU cost multiplier in this file scales against. The multiversion
// worker always runs with ExponentialServiceTime (the only generator
// here implementing MeanOverridable).
func (w *MultiversionWorker) nominalServTime() int64 {
	if es, ok := w.servGen.(*ExponentialServiceTime); ok {
		return es.Mean
	}
	return w.servGen.Get()
}

func (w *MultiversionWorker) completeRequest(eng *Engine, req *Request, done func(eng *Engine)) {
	total := req.TotalServiceTime()
	w.measurements.RecordValue(req, total)
	w.putSTime(total)
	if w.isMaster && w.isSimulationUnstable() {
		w.endSimUnstable()
	}
	w.numSimulated++
	w.pullQueue.Put(eng, &PullFeedback{WorkerID: w.id, Req: req})
	done(eng)
}

// NumSimulated returns the number of requests this worker has completed.
func (w *MultiversionWorker) NumSimulated() int64 { return w.numSimulated }
