package sim

// DispatchPolicyName selects which dispatch policy a Config wires up,
// mirroring spec.md §6's dispatch_policy enum.
type DispatchPolicyName string

const (
	PolicyEREW  DispatchPolicyName = "EREW"
	PolicyCREW  DispatchPolicyName = "CREW"
	PolicyCRCW  DispatchPolicyName = "CRCW"
	PolicyDCREW DispatchPolicyName = "d-CREW"
	PolicyIdeal DispatchPolicyName = "Ideal"
)

// BalancerVariant selects which load balancer implementation backs a
// run, independent of the dispatch policy it wraps (spec.md §4.5). The
// zero value picks the default for the configured Policy: PlainBalancer
// for everything except d-CREW, which always uses DynamicEWBalancer.
type BalancerVariant string

const (
	BalancerDefault           BalancerVariant = ""
	BalancerPlain             BalancerVariant = "plain"
	BalancerBucketSerializing BalancerVariant = "bucket-serializing"
	BalancerDynamicEW         BalancerVariant = "dynamic-ew"
)

// ServiceTimeKind selects which service-time distribution a Config wires
// up. Uniform is the default, matching datastore_rpc.py's own default
// branch (taken whenever use_exp/use_bimod are both unset): service time
// drawn uniformly around the nominal ServTime, ±100ns below 200ns and
// ±200ns otherwise.
type ServiceTimeKind string

const (
	ServTimeUniform     ServiceTimeKind = "uniform"
	ServTimeFixed       ServiceTimeKind = "fixed"
	ServTimeExponential ServiceTimeKind = "exponential"
	ServTimeBimodal     ServiceTimeKind = "bimodal"
)

// TopologyConfig groups worker-bank and bucket-index sizing, the "shape"
// of the simulated store independent of load or policy.
type TopologyConfig struct {
	Cores       int // worker count
	HashBuckets int // bucket count B, power of 2 recommended
	JBSQDepth   int // per-core dispatch cap D
}

// TimingConfig groups the service-timing parameters shared across
// policies and workers.
type TimingConfig struct {
	ServTime       int64 // nominal service time, ns
	FixedOverhead  int64 // post-processing overhead applied to every request, ns
	CompactionTime int64 // cost of absorbing a write into an existing batch, ns
	ChannelLat     int64 // per-channel propagation delay, ns
	IndexUpdateDelay int64 // delay before a version increment becomes visible, ns

	ServTimeKind ServiceTimeKind
	// BimodalPShort/Short/Long apply only when ServTimeKind == ServTimeBimodal.
	BimodalPShort float64
	BimodalShort  int64
	BimodalLong   int64

	// TurboBoostFraction (>=1) scales down service time on designated
	// cores; TurboBoostCores names which worker indices get the boost.
	TurboBoostFraction float64
	TurboBoostCores    []int
}

// WorkloadConfig groups the load generator's parameters.
type WorkloadConfig struct {
	ArrivalRate float64 // mean inter-arrival time, ns
	ReqsToSim   int64   // requests generated before the end marker
	WriteFrac   float64 // percent writes, 0-100
	ZipfCoeff   float64
	NumItems    int
}

// BatchingConfig groups write batching/compaction parameters (spec.md §4.7).
type BatchingConfig struct {
	UseCompaction bool
	// WindowFactor (W) scales the deadline: deadline = now + W*service_time.
	WindowFactor float64
}

// MultiversionConfig groups the optional RLU-style worker variant's
// parameters (spec.md §4.8).
type MultiversionConfig struct {
	Enabled bool
	// DeferWrites enables the every-N-writes deferral path (write_defer
	// in the original); when false every write always synchronizes
	// immediately after applying its update.
	DeferWrites bool
	// DeferralLimit, when >0, lets that many writes accumulate before
	// paying a single synchronize_epoch cost, via sim/deferral.go's
	// DeferralController. 0 falls back to its own default (25).
	DeferralLimit int
}

// Config fully specifies one simulation point; grounded on spec.md §6's
// run_point(config) option table and shaped into named sub-structs the
// way the teacher's sim/config.go groups KVCacheConfig/BatchConfig/etc.
type Config struct {
	Seed int64

	Policy   DispatchPolicyName
	Balancer BalancerVariant
	Topology TopologyConfig
	Timing   TimingConfig
	Workload WorkloadConfig
	Batching BatchingConfig
	MultiVer MultiversionConfig

	// Horizon overrides the engine's termination bound (0 = derive one
	// from Workload.ReqsToSim and Workload.ArrivalRate).
	Horizon int64

	// CollectQueuedReadStats is handed to every Worker, which stores it;
	// no queued-read statistics are sampled or reported in Results.
	CollectQueuedReadStats bool
	// EnablePrivateCache enables the supplemented per-core locality
	// cache (SPEC_FULL.md §4); purely observational, no CC effect.
	EnablePrivateCache bool
	PrivateCacheSize   int

	// SLOMultiplier is the factor against (ServTime+FixedOverhead) used
	// to compute the max-sustainable-load SLO (spec.md §4.9/§6).
	SLOMultiplier float64
}

// Validate checks Config for the conditions spec.md §7 calls ConfigError:
// "Missing/invalid options (e.g., JBSQ depth 0)."
func (c *Config) Validate() error {
	switch c.Policy {
	case PolicyEREW, PolicyCREW, PolicyCRCW, PolicyDCREW, PolicyIdeal:
	default:
		return &ConfigError{Option: "dispatch_policy", Reason: "unknown policy " + string(c.Policy)}
	}
	if c.Topology.Cores < 1 {
		return &ConfigError{Option: "cores", Reason: "must be >= 1"}
	}
	if c.Topology.HashBuckets < 1 {
		return &ConfigError{Option: "hash_buckets", Reason: "must be >= 1"}
	}
	if c.Topology.JBSQDepth < 1 {
		return &ConfigError{Option: "jbsq_depth", Reason: "must be >= 1"}
	}
	if c.Workload.ArrivalRate <= 0 {
		return &ConfigError{Option: "arrival_rate", Reason: "must be > 0"}
	}
	if c.Workload.ReqsToSim < 1 {
		return &ConfigError{Option: "reqs_to_sim", Reason: "must be >= 1"}
	}
	if c.Workload.WriteFrac < 0 || c.Workload.WriteFrac > 100 {
		return &ConfigError{Option: "write_frac", Reason: "must be in [0, 100]"}
	}
	if c.Workload.NumItems < 1 {
		return &ConfigError{Option: "num_items", Reason: "must be >= 1"}
	}
	if c.Timing.ServTime <= 0 {
		return &ConfigError{Option: "serv_time", Reason: "must be > 0"}
	}
	if c.Timing.ChannelLat < 0 {
		return &ConfigError{Option: "channel_lat", Reason: "must be >= 0"}
	}
	if c.Timing.TurboBoostFraction != 0 && c.Timing.TurboBoostFraction < 1 {
		return &ConfigError{Option: "turbo_boost", Reason: "must be >= 1 when set"}
	}
	if c.MultiVer.Enabled && c.MultiVer.DeferralLimit < 0 {
		return &ConfigError{Option: "deferral_limit", Reason: "must be >= 0"}
	}
	switch c.Balancer {
	case BalancerDefault, BalancerPlain:
	case BalancerBucketSerializing:
		if c.Policy != PolicyCREW {
			return &ConfigError{Option: "balancer", Reason: "bucket-serializing balancer only pairs with CREW"}
		}
	case BalancerDynamicEW:
		if c.Policy != PolicyDCREW {
			return &ConfigError{Option: "balancer", Reason: "dynamic-ew balancer only pairs with d-CREW"}
		}
	default:
		return &ConfigError{Option: "balancer", Reason: "unknown balancer variant " + string(c.Balancer)}
	}
	if c.MultiVer.Enabled && c.Policy != PolicyCREW && c.Policy != PolicyDCREW {
		return &ConfigError{Option: "multiversion", Reason: "multiversion worker requires CREW or d-CREW dispatch"}
	}
	return nil
}

// effectiveHorizon derives the engine termination bound when Config.Horizon
// is unset (see SPEC_FULL.md's "Engine termination bound"): enough virtual
// time to generate and drain ReqsToSim requests plus a settling window for
// the indefinite post-marker traffic.
func (c *Config) effectiveHorizon() int64 {
	if c.Horizon > 0 {
		return c.Horizon
	}
	perReq := int64(c.Workload.ArrivalRate)
	if perReq <= 0 {
		perReq = 1
	}
	settleReqs := c.Workload.ReqsToSim / 10
	if settleReqs < 1000 {
		settleReqs = 1000
	}
	return perReq * (c.Workload.ReqsToSim + settleReqs)
}
