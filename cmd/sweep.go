package cmd

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parsa-epfl/queue-flex/sim"
)

var sweepFlags struct {
	specPath string
	outPath  string
}

// sweepSpec is the YAML sweep-driver contract spec.md §6 names: "Consumes
// a list of (arrival_rate) plus a fixed config, returns {arrival_rate ->
// metrics_dict}". All top-level fields are listed to satisfy
// KnownFields(true) strict parsing, the way the teacher's
// cmd/default_config.go does for defaults.yaml.
type sweepSpec struct {
	ArrivalRates []float64 `yaml:"arrival_rates"`

	Seed int64 `yaml:"seed"`

	Policy   string `yaml:"policy"`
	Balancer string `yaml:"balancer"`

	Cores       int `yaml:"cores"`
	HashBuckets int `yaml:"hash_buckets"`
	JBSQDepth   int `yaml:"jbsq_depth"`

	ServTime         int64   `yaml:"serv_time"`
	FixedOverhead    int64   `yaml:"fixed_overhead"`
	CompactionTime   int64   `yaml:"compaction_time"`
	ChannelLat       int64   `yaml:"channel_lat"`
	IndexUpdateDelay int64   `yaml:"index_update_delay"`
	ServTimeKind     string  `yaml:"serv_time_kind"`
	BimodalPShort    float64 `yaml:"bimodal_p_short"`
	BimodalShort     int64   `yaml:"bimodal_short"`
	BimodalLong      int64   `yaml:"bimodal_long"`
	TurboBoostFrac   float64 `yaml:"turbo_boost"`
	TurboBoostCores  []int   `yaml:"turbo_boost_cores"`

	ReqsToSim int64   `yaml:"reqs_to_sim"`
	WriteFrac float64 `yaml:"write_frac"`
	ZipfCoeff float64 `yaml:"zipf_coeff"`
	NumItems  int     `yaml:"num_items"`

	UseCompaction bool    `yaml:"use_compaction"`
	WindowFactor  float64 `yaml:"batch_window_factor"`

	MultiversionEnabled bool `yaml:"multiversion"`
	DeferWrites         bool `yaml:"defer_writes"`
	DeferralLimit       int  `yaml:"deferral_limit"`

	Horizon                int64   `yaml:"horizon"`
	CollectQueuedReadStats bool    `yaml:"collect_queued_read_stats"`
	EnablePrivateCache     bool    `yaml:"enable_private_cache"`
	PrivateCacheSize       int     `yaml:"private_cache_size"`
	SLOMultiplier          float64 `yaml:"slo_multiplier"`
}

func (s *sweepSpec) baseConfig() *sim.Config {
	return &sim.Config{
		Seed:     s.Seed,
		Policy:   sim.DispatchPolicyName(s.Policy),
		Balancer: sim.BalancerVariant(s.Balancer),
		Topology: sim.TopologyConfig{
			Cores:       s.Cores,
			HashBuckets: s.HashBuckets,
			JBSQDepth:   s.JBSQDepth,
		},
		Timing: sim.TimingConfig{
			ServTime:           s.ServTime,
			FixedOverhead:      s.FixedOverhead,
			CompactionTime:     s.CompactionTime,
			ChannelLat:         s.ChannelLat,
			IndexUpdateDelay:   s.IndexUpdateDelay,
			ServTimeKind:       sim.ServiceTimeKind(s.ServTimeKind),
			BimodalPShort:      s.BimodalPShort,
			BimodalShort:       s.BimodalShort,
			BimodalLong:        s.BimodalLong,
			TurboBoostFraction: s.TurboBoostFrac,
			TurboBoostCores:    s.TurboBoostCores,
		},
		Workload: sim.WorkloadConfig{
			ReqsToSim: s.ReqsToSim,
			WriteFrac: s.WriteFrac,
			ZipfCoeff: s.ZipfCoeff,
			NumItems:  s.NumItems,
		},
		Batching: sim.BatchingConfig{
			UseCompaction: s.UseCompaction,
			WindowFactor:  s.WindowFactor,
		},
		MultiVer: sim.MultiversionConfig{
			Enabled:       s.MultiversionEnabled,
			DeferWrites:   s.DeferWrites,
			DeferralLimit: s.DeferralLimit,
		},
		Horizon:                s.Horizon,
		CollectQueuedReadStats: s.CollectQueuedReadStats,
		EnablePrivateCache:     s.EnablePrivateCache,
		PrivateCacheSize:       s.PrivateCacheSize,
		SLOMultiplier:          s.SLOMultiplier,
	}
}

func loadSweepSpec(path string) (*sweepSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep spec: %w", err)
	}
	var spec sweepSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing sweep spec: %w", err)
	}
	if len(spec.ArrivalRates) == 0 {
		return nil, fmt.Errorf("sweep spec has no arrival_rates")
	}
	return &spec, nil
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a load sweep across arrival rates and emit a CSV",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		spec, err := loadSweepSpec(sweepFlags.specPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runSweep(spec, sweepFlags.outPath); err != nil {
			logrus.Fatalf("sweep failed: %v", err)
		}
	},
}

// runSweep runs one RunPoint per arrival rate and writes a CSV: a header
// row and one data row per load point, plain decimals, per spec.md §6.
func runSweep(spec *sweepSpec, outPath string) error {
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"arrival_rate", "outcome", "throughput_mrps",
		"p50_ns", "p90_ns", "p99_ns", "p99.9_ns", "read_p99_ns",
		"slo_threshold_ns", "meets_slo",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	maxSustainable := -1.0
	base := spec.baseConfig()
	slo := sim.SLOThreshold(base.Timing.ServTime, base.Timing.FixedOverhead, base.SLOMultiplier)

	for _, rate := range spec.ArrivalRates {
		cfg := spec.baseConfig()
		cfg.Workload.ArrivalRate = rate

		res, err := sim.RunPoint(cfg)
		if err != nil {
			logrus.Warnf("arrival_rate=%v: %v", rate, err)
			continue
		}

		p99 := res.Latency.GlobalPercentile(99)
		meetsSLO := p99 <= slo
		// arrival_rate is the mean inter-arrival time: the smallest
		// passing value is the heaviest load that meets the SLO.
		if meetsSLO && (maxSustainable < 0 || rate < maxSustainable) {
			maxSustainable = rate
		}

		row := []string{
			strconv.FormatFloat(rate, 'f', -1, 64),
			res.Outcome.String(),
			strconv.FormatFloat(res.ThroughputMRPS, 'f', -1, 64),
			strconv.FormatInt(res.Latency.GlobalPercentile(50), 10),
			strconv.FormatInt(res.Latency.GlobalPercentile(90), 10),
			strconv.FormatInt(p99, 10),
			strconv.FormatInt(res.Latency.GlobalPercentile(99.9), 10),
			strconv.FormatInt(res.Latency.FilteredPercentile(99, true), 10),
			strconv.FormatInt(slo, 10),
			strconv.FormatBool(meetsSLO),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if maxSustainable >= 0 {
		logrus.Infof("max sustainable load under SLO at arrival_rate (mean inter-arrival): %v", maxSustainable)
	} else {
		logrus.Warnf("no load point in the sweep met the SLO threshold")
	}
	return w.Error()
}

func init() {
	sweepCmd.Flags().StringVar(&sweepFlags.specPath, "spec", "", "Path to the sweep spec YAML file")
	sweepCmd.Flags().StringVar(&sweepFlags.outPath, "out", "", "Path to write the CSV (default: stdout)")
	sweepCmd.MarkFlagRequired("spec")
}
