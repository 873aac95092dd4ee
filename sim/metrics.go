package sim

import (
	"sort"

	"github.com/codahale/hdrhistogram"
)

// hdrMin/hdrMax/hdrSigFigs bound every latency histogram: request
// latencies are recorded in nanoseconds over 1 ns .. 100 ms at 3
// significant digits. A value above hdrMax is rejected by the histogram
// and goes unrecorded.
const (
	hdrMin     int64 = 1
	hdrMax     int64 = 100000000
	hdrSigFigs int   = 3
)

// LatencyStore is the read/write-split latency recorder every worker
// feeds on request completion. Grounded on components/latency_store.py's
// LatencyStoreWithBreakdown.
type LatencyStore struct {
	all    *hdrhistogram.Histogram
	reads  *hdrhistogram.Histogram
	writes *hdrhistogram.Histogram

	readCount, writeCount int64

	// firstGenerated/lastCompletion bound the measurement window in
	// virtual time, used to compute throughput (spec.md §6: "throughput
	// = completed_count / virtual_time_ns").
	firstGenerated int64
	lastCompletion int64
	haveWindow     bool
}

// NewLatencyStore builds an empty LatencyStore.
func NewLatencyStore() *LatencyStore {
	return &LatencyStore{
		all:    hdrhistogram.New(hdrMin, hdrMax, hdrSigFigs),
		reads:  hdrhistogram.New(hdrMin, hdrMax, hdrSigFigs),
		writes: hdrhistogram.New(hdrMin, hdrMax, hdrSigFigs),
	}
}

// RecordValue records req's total service time, unless req is marked
// Discard (post-end-marker steady-state traffic, spec.md §4.3).
func (s *LatencyStore) RecordValue(req *Request, totalTime int64) {
	if req.Discard {
		return
	}
	if totalTime < hdrMin {
		totalTime = hdrMin
	}
	s.all.RecordValue(totalTime)
	if req.Write {
		s.writes.RecordValue(totalTime)
		s.writeCount++
	} else {
		s.reads.RecordValue(totalTime)
		s.readCount++
	}

	if !s.haveWindow || req.GeneratedTime < s.firstGenerated {
		s.firstGenerated = req.GeneratedTime
	}
	if !s.haveWindow || req.CompletionTime > s.lastCompletion {
		s.lastCompletion = req.CompletionTime
	}
	s.haveWindow = true
}

// MeasurementWindow returns the virtual-time span from the earliest
// measured request's generation to the latest one's completion, the
// denominator spec.md §6's throughput formula divides by.
func (s *LatencyStore) MeasurementWindow() int64 {
	if !s.haveWindow {
		return 0
	}
	return s.lastCompletion - s.firstGenerated
}

// GlobalPercentile returns the overall nth percentile latency across
// reads and writes.
func (s *LatencyStore) GlobalPercentile(p float64) int64 {
	return s.all.ValueAtQuantile(p)
}

// FilteredPercentile returns the nth percentile latency restricted to
// reads or writes.
func (s *LatencyStore) FilteredPercentile(p float64, reads bool) int64 {
	if reads {
		return s.reads.ValueAtQuantile(p)
	}
	return s.writes.ValueAtQuantile(p)
}

// TotalCount returns the number of measured (non-discarded) requests.
func (s *LatencyStore) TotalCount() int64 { return s.all.TotalCount() }

// ReadCount and WriteCount split TotalCount by request kind.
func (s *LatencyStore) ReadCount() int64  { return s.readCount }
func (s *LatencyStore) WriteCount() int64 { return s.writeCount }

// ExactLatStore keeps every recorded latency verbatim rather than
// bucketing into a histogram, used for compacted-write latencies where
// the population is small enough that exact percentiles are affordable
// and more informative than an HDR approximation. Grounded on
// components/latency_store.py's ExactLatStore.
type ExactLatStore struct {
	latencies []int64
}

// NewExactLatStore builds an empty ExactLatStore.
func NewExactLatStore() *ExactLatStore { return &ExactLatStore{} }

// RecordValue appends lat to the store.
func (s *ExactLatStore) RecordValue(lat int64) { s.latencies = append(s.latencies, lat) }

// Mean returns the arithmetic mean of all recorded values, or 0 if empty.
func (s *ExactLatStore) Mean() float64 {
	if len(s.latencies) == 0 {
		return 0
	}
	var sum int64
	for _, v := range s.latencies {
		sum += v
	}
	return float64(sum) / float64(len(s.latencies))
}

// ValueAtPercentile returns the value at the given percentile (0-100)
// under a simple sorted-order computation, matching the original's
// floor(len(s) * perc/100) ordinal indexing.
func (s *ExactLatStore) ValueAtPercentile(perc float64) int64 {
	if len(s.latencies) == 0 {
		return 0
	}
	sorted := append([]int64(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * (perc / 100))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Len returns the number of recorded values.
func (s *ExactLatStore) Len() int { return len(s.latencies) }

// Values returns the recorded latencies in insertion order, used to
// merge several per-worker stores into one aggregate.
func (s *ExactLatStore) Values() []int64 { return s.latencies }

// Merge appends other's recorded values onto s.
func (s *ExactLatStore) Merge(other *ExactLatStore) {
	s.latencies = append(s.latencies, other.Values()...)
}

// SLOThreshold computes the max-sustainable-load latency bound: a
// multiplier against the nominal uncontended service time, per spec.md
// §4.9/§6 ("max sustainable load under a tail-latency SLO").
func SLOThreshold(servTime, fixedOverhead int64, multiplier float64) int64 {
	return int64(float64(servTime+fixedOverhead) * multiplier)
}
