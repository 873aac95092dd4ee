package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/parsa-epfl/queue-flex/sim"
)

// runFlags mirrors sim.Config field-for-field so cobra can bind directly
// into plain variables the way the teacher's root.go binds totalKVBlocks/
// simulationHorizon/etc.
var runFlags struct {
	seed int64

	policy   string
	balancer string

	cores       int
	hashBuckets int
	jbsqDepth   int

	servTime         int64
	fixedOverhead    int64
	compactionTime   int64
	channelLat       int64
	indexUpdateDelay int64
	servTimeKind     string
	bimodalPShort    float64
	bimodalShort     int64
	bimodalLong      int64
	turboBoostFrac   float64
	turboBoostCores  []int

	arrivalRate float64
	reqsToSim   int64
	writeFrac   float64
	zipfCoeff   float64
	numItems    int

	useCompaction bool
	windowFactor  float64

	multiverEnabled     bool
	multiverDeferWrites bool
	deferralLimit       int

	horizon                int64
	collectQueuedReadStats bool
	enablePrivateCache     bool
	privateCacheSize       int
	sloMultiplier          float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation point and print its measured results",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := configFromRunFlags()
		res, err := sim.RunPoint(cfg)
		if err != nil {
			logrus.Fatalf("run failed: %v", err)
		}
		printResults(cfg, res)
	},
}

func configFromRunFlags() *sim.Config {
	f := &runFlags
	return &sim.Config{
		Seed:     f.seed,
		Policy:   sim.DispatchPolicyName(f.policy),
		Balancer: sim.BalancerVariant(f.balancer),
		Topology: sim.TopologyConfig{
			Cores:       f.cores,
			HashBuckets: f.hashBuckets,
			JBSQDepth:   f.jbsqDepth,
		},
		Timing: sim.TimingConfig{
			ServTime:           f.servTime,
			FixedOverhead:      f.fixedOverhead,
			CompactionTime:     f.compactionTime,
			ChannelLat:         f.channelLat,
			IndexUpdateDelay:   f.indexUpdateDelay,
			ServTimeKind:       sim.ServiceTimeKind(f.servTimeKind),
			BimodalPShort:      f.bimodalPShort,
			BimodalShort:       f.bimodalShort,
			BimodalLong:        f.bimodalLong,
			TurboBoostFraction: f.turboBoostFrac,
			TurboBoostCores:    f.turboBoostCores,
		},
		Workload: sim.WorkloadConfig{
			ArrivalRate: f.arrivalRate,
			ReqsToSim:   f.reqsToSim,
			WriteFrac:   f.writeFrac,
			ZipfCoeff:   f.zipfCoeff,
			NumItems:    f.numItems,
		},
		Batching: sim.BatchingConfig{
			UseCompaction: f.useCompaction,
			WindowFactor:  f.windowFactor,
		},
		MultiVer: sim.MultiversionConfig{
			Enabled:       f.multiverEnabled,
			DeferWrites:   f.multiverDeferWrites,
			DeferralLimit: f.deferralLimit,
		},
		Horizon:                f.horizon,
		CollectQueuedReadStats: f.collectQueuedReadStats,
		EnablePrivateCache:     f.enablePrivateCache,
		PrivateCacheSize:       f.privateCacheSize,
		SLOMultiplier:          f.sloMultiplier,
	}
}

// printResults reports the headline latency/throughput numbers spec.md
// §6 names: 50/90/99/99.9 overall percentiles, read p99, throughput, and
// whether this point met the configured SLO.
func printResults(cfg *sim.Config, res *sim.Results) {
	fmt.Printf("outcome: %s\n", res.Outcome.String())
	fmt.Printf("throughput: %.4f MRPS\n", res.ThroughputMRPS)
	fmt.Printf("p50=%d p90=%d p99=%d p99.9=%d (ns)\n",
		res.Latency.GlobalPercentile(50), res.Latency.GlobalPercentile(90),
		res.Latency.GlobalPercentile(99), res.Latency.GlobalPercentile(99.9))
	fmt.Printf("read p99=%d (ns)\n", res.Latency.FilteredPercentile(99, true))

	slo := sim.SLOThreshold(cfg.Timing.ServTime, cfg.Timing.FixedOverhead, cfg.SLOMultiplier)
	fmt.Printf("slo_threshold=%d ns, met=%v\n", slo, res.Latency.GlobalPercentile(99) <= slo)

	if res.BucketLoadHistogram != nil {
		fmt.Printf("buckets touched: %d\n", len(res.BucketLoadHistogram))
	}
	if cfg.Policy == sim.PolicyDCREW {
		fmt.Printf("balanced_writes=%.4f exclusive_writes=%.4f\n", res.BalancedWriteFraction, res.ExclusiveWriteFraction)
	}
	if cfg.Batching.UseCompaction {
		fmt.Printf("batch sizes: %v\n", res.BatchSizeHistogram)
	}
	if cfg.EnablePrivateCache {
		fmt.Printf("cache locality rate: %.4f\n", res.CacheLocalityRate)
	}
}

func init() {
	f := &runFlags
	runCmd.Flags().Int64Var(&f.seed, "seed", 1, "Master RNG seed")

	runCmd.Flags().StringVar(&f.policy, "policy", string(sim.PolicyCREW), "Dispatch policy: EREW, CREW, CRCW, d-CREW, Ideal")
	runCmd.Flags().StringVar(&f.balancer, "balancer", "", "Load balancer variant: plain, bucket-serializing, dynamic-ew (default: per-policy)")

	runCmd.Flags().IntVar(&f.cores, "cores", 8, "Number of worker cores")
	runCmd.Flags().IntVar(&f.hashBuckets, "hash-buckets", 1024, "Number of index buckets")
	runCmd.Flags().IntVar(&f.jbsqDepth, "jbsq-depth", 4, "Per-core dispatch queue depth cap")

	runCmd.Flags().Int64Var(&f.servTime, "serv-time", 500, "Nominal service time, ns")
	runCmd.Flags().Int64Var(&f.fixedOverhead, "fixed-overhead", 50, "Fixed post-processing overhead, ns")
	runCmd.Flags().Int64Var(&f.compactionTime, "compaction-time", 50, "Cost of absorbing a write into a batch, ns")
	runCmd.Flags().Int64Var(&f.channelLat, "channel-lat", 0, "Per-channel propagation delay, ns")
	runCmd.Flags().Int64Var(&f.indexUpdateDelay, "index-update-delay", 50, "Delay before a version bump is visible, ns")
	runCmd.Flags().StringVar(&f.servTimeKind, "serv-time-kind", string(sim.ServTimeUniform), "Service time distribution: uniform, fixed, exponential, bimodal")
	runCmd.Flags().Float64Var(&f.bimodalPShort, "bimodal-p-short", 90.0, "Bimodal: probability (0-100) of the short service time")
	runCmd.Flags().Int64Var(&f.bimodalShort, "bimodal-short", 0, "Bimodal: short service time, ns (0 = serv-time/2)")
	runCmd.Flags().Int64Var(&f.bimodalLong, "bimodal-long", 0, "Bimodal: long service time, ns (0 = serv-time*5.5)")
	runCmd.Flags().Float64Var(&f.turboBoostFrac, "turbo-boost", 1.0, "Service-time reduction factor on turbo-boosted cores")
	runCmd.Flags().IntSliceVar(&f.turboBoostCores, "turbo-boost-cores", nil, "Core indices that get the turbo-boost reduction")

	runCmd.Flags().Float64Var(&f.arrivalRate, "arrival-rate", 1000, "Mean inter-arrival time, ns")
	runCmd.Flags().Int64Var(&f.reqsToSim, "reqs-to-sim", 200000, "Requests generated before the end-of-measurements marker")
	runCmd.Flags().Float64Var(&f.writeFrac, "write-frac", 10, "Write fraction, percent")
	runCmd.Flags().Float64Var(&f.zipfCoeff, "zipf-coeff", 0.99, "Zipf skew coefficient")
	runCmd.Flags().IntVar(&f.numItems, "num-items", 1000000, "Key space size")

	runCmd.Flags().BoolVar(&f.useCompaction, "use-compaction", false, "Enable write batching/compaction")
	runCmd.Flags().Float64Var(&f.windowFactor, "batch-window-factor", 10.0, "Batch deadline = now + window-factor*serv-time")

	runCmd.Flags().BoolVar(&f.multiverEnabled, "multiversion", false, "Use the RLU-style multiversion worker instead of MICA-style")
	runCmd.Flags().BoolVar(&f.multiverDeferWrites, "defer-writes", false, "Enable every-N-writes deferred synchronization")
	runCmd.Flags().IntVar(&f.deferralLimit, "deferral-limit", 25, "Writes accumulated before a forced synchronize, when deferring")

	runCmd.Flags().Int64Var(&f.horizon, "horizon", 0, "Engine termination bound, ns (0 = derive from reqs-to-sim)")
	runCmd.Flags().BoolVar(&f.collectQueuedReadStats, "collect-queued-read-stats", false, "Passed to workers; no queued-read statistics are sampled or reported")
	runCmd.Flags().BoolVar(&f.enablePrivateCache, "enable-private-cache", false, "Enable the per-core private cache locality model")
	runCmd.Flags().IntVar(&f.privateCacheSize, "private-cache-size", 65536, "Private cache capacity, bytes")
	runCmd.Flags().Float64Var(&f.sloMultiplier, "slo-multiplier", 10.0, "Max-sustainable-load SLO multiplier against (serv-time+fixed-overhead)")
}
