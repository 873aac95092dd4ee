package sim

import "math/rand"

// simWorker is the common surface RunPoint needs from either worker
// variant, letting it build a homogeneous []simWorker regardless of
// Config.MultiVer.Enabled.
type simWorker interface {
	Start(eng *Engine)
	NumSimulated() int64
}

// simBalancer is the common surface RunPoint needs from any balancer
// variant (spec.md §4.5's three selectable implementations).
type simBalancer interface {
	Start(eng *Engine)
}

// Results is everything RunPoint measured about one simulation point:
// the required latency/throughput numbers (spec.md §4.9) plus the
// supplemented per-policy statistics (bucket load, write-fraction,
// batch sizes, cache locality) that only apply to some configurations.
type Results struct {
	Outcome RunOutcome

	Latency *LatencyStore

	// ThroughputMRPS is completed requests per second, in millions
	// (spec.md §6's throughput definition).
	ThroughputMRPS float64

	// NumTimesBlocked is how many times the balancer had to wait for a
	// pull-ack because every dispatch queue was at its depth cap.
	NumTimesBlocked int

	// BucketLoadHistogram counts dispatches per bucket, present for
	// CREW and d-CREW (nil for EREW, CRCW and Ideal).
	BucketLoadHistogram map[int]int

	// BalancedWriteFraction/ExclusiveWriteFraction are d-CREW's split
	// between writes that had to claim a bucket vs. ones that followed
	// an existing owner (0 for every other policy).
	BalancedWriteFraction  float64
	ExclusiveWriteFraction float64

	// BatchSizeHistogram aggregates every worker's compaction batch
	// sizes (spec.md §4.7), empty unless Batching.UseCompaction is set.
	BatchSizeHistogram map[int]int
	// DelayedWriteLatencies is the aggregate exact-value store of
	// compacted write latencies across all workers.
	DelayedWriteLatencies *ExactLatStore

	// CacheLocalityRate is the mean per-core private-cache hit rate,
	// present only when Config.EnablePrivateCache is set.
	CacheLocalityRate float64
}

// RunPoint builds the full simulation graph for cfg, runs it to
// completion (or instability), and returns the measured results.
// Grounded on the original's per-experiment driver scripts (e.g.
// exps/mica_rlu_jbscrew.py), which wire up exactly these pieces —
// RNG, Zipf generator, bucketed index, dispatch policy, load balancer,
// load generator, and one core per worker — by hand for every run.
func RunPoint(cfg *Config) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	eng := NewEngine(cfg.effectiveHorizon(), nil)

	bindex := NewBucketedIndex(cfg.Topology.HashBuckets)
	zipf := NewZipfKeyGenerator(cfg.Workload.NumItems, cfg.Workload.ZipfCoeff, rng.ForSubsystem(SubsystemZipf))

	inputQ := NewStore()
	pullQ := NewStore()

	cores := cfg.Topology.Cores
	channels := make([]*Channel, cores)
	for i := range channels {
		channels[i] = NewChannel(cfg.Timing.ChannelLat)
	}

	policy := NewDispatchPolicy(cfg.Policy, cores, cfg.Topology.HashBuckets, cfg.Topology.JBSQDepth)

	lgen := NewLoadGenerator(inputQ, zipf, rng.ForSubsystem(SubsystemWorkload), cfg.Workload.ArrivalRate, cfg.Workload.ReqsToSim, cfg.Workload.WriteFrac)

	measurements := NewLatencyStore()
	outcome := Exhausted

	workers := make([]simWorker, cores)
	if cfg.MultiVer.Enabled {
		buildMultiversionWorkers(cfg, workers, channels, pullQ, bindex, measurements, lgen, &outcome, rng)
	} else {
		buildWorkers(cfg, workers, channels, pullQ, bindex, measurements, lgen, &outcome, rng)
	}

	bal := buildBalancer(cfg, inputQ, pullQ, channels, policy, bindex)

	lgen.Start(eng)
	bal.Start(eng)
	for _, w := range workers {
		w.Start(eng)
	}

	eng.Run()

	return assembleResults(cfg, outcome, measurements, policy, bal, workers), nil
}

// resolveBalancerVariant applies Config.Balancer's default-per-policy
// rule: d-CREW always gets DynamicEWBalancer unless the caller asked
// for something else explicitly.
func resolveBalancerVariant(cfg *Config) BalancerVariant {
	if cfg.Balancer != BalancerDefault {
		return cfg.Balancer
	}
	if cfg.Policy == PolicyDCREW {
		return BalancerDynamicEW
	}
	return BalancerPlain
}

func buildBalancer(cfg *Config, inputQ, pullQ *Store, channels []*Channel, policy DispatchPolicy, bindex *BucketedIndex) simBalancer {
	switch resolveBalancerVariant(cfg) {
	case BalancerBucketSerializing:
		return NewBucketSerializingBalancer(inputQ, pullQ, channels, policy, bindex)
	case BalancerDynamicEW:
		dp, ok := policy.(*dynCREWPolicy)
		if !ok {
			Raise("buildBalancer", "dynamic-ew balancer requires d-CREW's policy")
		}
		return NewDynamicEWBalancer(inputQ, pullQ, channels, dp, bindex)
	default:
		return NewPlainBalancer(inputQ, pullQ, channels, policy, cfg.Topology.HashBuckets)
	}
}

// isTurboCore reports whether worker index i is named in cores.
func isTurboCore(i int, cores []int) bool {
	for _, c := range cores {
		if c == i {
			return true
		}
	}
	return false
}

// perCoreTiming applies TurboBoostFraction to ServTime and
// FixedOverhead for cores named in TurboBoostCores, matching
// datastore_rpc.py's `self.serv_time /= turbo_boost; self.fixed_overhead
// /= turbo_boost` applied once per core at construction time.
func perCoreTiming(t TimingConfig, coreID int) TimingConfig {
	if t.TurboBoostFraction <= 1 || !isTurboCore(coreID, t.TurboBoostCores) {
		return t
	}
	t.ServTime = int64(float64(t.ServTime) / t.TurboBoostFraction)
	t.FixedOverhead = int64(float64(t.FixedOverhead) / t.TurboBoostFraction)
	return t
}

// buildServiceTimeGen constructs the configured service-time generator
// for one core's (already turbo-scaled) timing. Grounded on
// datastore_rpc.py's __init__ branch: use_exp -> Exponential, use_bimod
// -> Bimodal with its hardcoded ratios (exposed here as configurable
// fields instead), else the default Uniform(serv_time +/- spread).
func buildServiceTimeGen(kind ServiceTimeKind, t TimingConfig, rng *rand.Rand) ServiceTimeGenerator {
	switch kind {
	case ServTimeExponential:
		return NewExponentialServiceTime(t.ServTime, rng)
	case ServTimeBimodal:
		pShort, short, long := t.BimodalPShort, t.BimodalShort, t.BimodalLong
		if pShort == 0 {
			pShort = 90.0
		}
		if short == 0 {
			short = t.ServTime / 2
		}
		if long == 0 {
			long = int64(float64(t.ServTime) * 5.5)
		}
		return NewBimodalServiceTime(pShort, short, long, rng)
	case ServTimeFixed:
		return FixedServiceTime{Value: t.ServTime}
	default: // ServTimeUniform
		spread := int64(200)
		if t.ServTime < 200 {
			spread = 100
		}
		lo := t.ServTime - spread
		if lo < 0 {
			lo = 0
		}
		return NewUniformServiceTime(lo, t.ServTime+spread, rng)
	}
}

func buildWorkers(cfg *Config, out []simWorker, channels []*Channel, pullQ *Store, bindex *BucketedIndex, measurements *LatencyStore, lgen *LoadGenerator, outcome *RunOutcome, rng *PartitionedRNG) {
	for i := range out {
		t := perCoreTiming(cfg.Timing, i)
		servGen := buildServiceTimeGen(t.ServTimeKind, t, rng.ForWorker(i))
		overheadGen := FixedServiceTime{Value: t.FixedOverhead}

		out[i] = NewWorker(WorkerConfig{
			ID:         i,
			InQ:        channels[i],
			PullQueue:  pullQ,
			BIndex:     bindex,
			Policy:     cfg.Policy,
			NumBuckets: cfg.Topology.HashBuckets,

			ServGen:     servGen,
			OverheadGen: overheadGen,

			IndexUpdateDelay: t.IndexUpdateDelay,

			UseCompaction:     cfg.Batching.UseCompaction,
			CompactionTime:    t.CompactionTime,
			BatchWindowFactor: cfg.Batching.WindowFactor,

			CollectQueuedReadStats: cfg.CollectQueuedReadStats,
			EnablePrivateCache:     cfg.EnablePrivateCache,
			PrivateCacheSize:       cfg.PrivateCacheSize,

			Measurements: measurements,
			LoadGen:      lgen,
			Outcome:      outcome,
		})
	}
}

// buildMultiversionWorkers wires the shared GlobalSequencer/EpochTracker
// every core's RLU bookkeeping synchronizes through, then gives each
// worker visibility into its siblings so a reader can read another
// core's in-flight write timestamp (MultiversionMICAIndexAccessor.
// set_remote_cores).
func buildMultiversionWorkers(cfg *Config, out []simWorker, channels []*Channel, pullQ *Store, bindex *BucketedIndex, measurements *LatencyStore, lgen *LoadGenerator, outcome *RunOutcome, rng *PartitionedRNG) {
	seq := NewGlobalSequencer(0)
	epochs := NewEpochTracker(seq)

	mvWorkers := make([]*MultiversionWorker, len(out))
	for i := range out {
		t := perCoreTiming(cfg.Timing, i)
		// The multiversion worker's RLU cost multipliers scale a
		// generator mean directly (nominalServTime's doc comment),
		// which only ExponentialServiceTime supports.
		servGen := NewExponentialServiceTime(t.ServTime, rng.ForWorker(i))
		deferral := NewDeferralController(cfg.MultiVer.DeferralLimit)

		mvWorkers[i] = NewMultiversionWorker(MultiversionWorkerConfig{
			ID:         i,
			InQ:        channels[i],
			PullQueue:  pullQ,
			BIndex:     bindex,
			Policy:     cfg.Policy,
			NumBuckets: cfg.Topology.HashBuckets,

			ServGen: servGen,

			Measurements: measurements,
			LoadGen:      lgen,
			Outcome:      outcome,

			Sequencer:   seq,
			Epochs:      epochs,
			Deferral:    deferral,
			DeferWrites: cfg.MultiVer.DeferWrites,
		})
		out[i] = mvWorkers[i]
	}
	for _, w := range mvWorkers {
		w.SetRemoteWorkers(mvWorkers)
	}
}

// bucketLoadPolicy is implemented by the dispatch policies that track a
// per-bucket access histogram (spec.md's supplemented load counters).
type bucketLoadPolicy interface {
	BucketLoadHistogram() map[int]int
}

// writeFractionPolicy is implemented only by d-CREW.
type writeFractionPolicy interface {
	WriteFractionStats() (balanced, exclusive float64)
}

// blockCountBalancer exposes the shared balancerCore's block counter;
// every balancer variant embeds balancerCore so all satisfy this.
type blockCountBalancer interface {
	numTimesBlockedCount() int
}

func (b *balancerCore) numTimesBlockedCount() int { return b.numTimesBlocked }

func assembleResults(cfg *Config, outcome RunOutcome, measurements *LatencyStore, policy DispatchPolicy, bal simBalancer, workers []simWorker) *Results {
	res := &Results{
		Outcome:               outcome,
		Latency:               measurements,
		BatchSizeHistogram:    make(map[int]int),
		DelayedWriteLatencies: NewExactLatStore(),
	}

	if bp, ok := policy.(bucketLoadPolicy); ok {
		res.BucketLoadHistogram = bp.BucketLoadHistogram()
	}
	if wp, ok := policy.(writeFractionPolicy); ok {
		res.BalancedWriteFraction, res.ExclusiveWriteFraction = wp.WriteFractionStats()
	}
	if bc, ok := bal.(blockCountBalancer); ok {
		res.NumTimesBlocked = bc.numTimesBlockedCount()
	}

	var cacheRateSum float64
	var cacheRateCount int
	for _, w := range workers {
		mw, ok := w.(*Worker)
		if !ok {
			continue
		}
		for size, count := range mw.BatchSizeHistogram() {
			res.BatchSizeHistogram[size] += count
		}
		res.DelayedWriteLatencies.Merge(mw.DelayedWriteLatencies())
		if cfg.EnablePrivateCache {
			cacheRateSum += mw.CacheLocalityRate()
			cacheRateCount++
		}
	}
	if cacheRateCount > 0 {
		res.CacheLocalityRate = cacheRateSum / float64(cacheRateCount)
	}

	res.ThroughputMRPS = throughputMRPS(measurements)
	return res
}

// throughputMRPS computes completed_count / virtual_time_ns * 1e9 / 1e6,
// million requests per second, per spec.md §6's throughput definition.
func throughputMRPS(measurements *LatencyStore) float64 {
	count := measurements.TotalCount()
	window := measurements.MeasurementWindow()
	if count == 0 || window <= 0 {
		return 0
	}
	return float64(count) / float64(window) * 1e9 / 1e6
}
