package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordReq(s *LatencyStore, generated, completion int64, write, discard bool) {
	req := &Request{GeneratedTime: generated, CompletionTime: completion, Write: write, Discard: discard}
	s.RecordValue(req, completion-generated)
}

func TestLatencyStore_RecordValue_SplitsReadsAndWrites(t *testing.T) {
	s := NewLatencyStore()
	recordReq(s, 0, 100, false, false)
	recordReq(s, 0, 200, true, false)

	assert.Equal(t, int64(2), s.TotalCount())
	assert.Equal(t, int64(1), s.ReadCount())
	assert.Equal(t, int64(1), s.WriteCount())
}

func TestLatencyStore_RecordValue_DiscardsPostMarkerTraffic(t *testing.T) {
	s := NewLatencyStore()
	recordReq(s, 0, 100, false, false)
	recordReq(s, 0, 100, false, true)

	assert.Equal(t, int64(1), s.TotalCount())
}

func TestLatencyStore_MeasurementWindow_TracksEarliestGenerationToLatestCompletion(t *testing.T) {
	s := NewLatencyStore()
	recordReq(s, 100, 500, false, false)
	recordReq(s, 50, 900, true, false)
	recordReq(s, 200, 300, false, false)

	assert.Equal(t, int64(900-50), s.MeasurementWindow())
}

func TestLatencyStore_MeasurementWindow_ZeroWhenEmpty(t *testing.T) {
	s := NewLatencyStore()
	assert.Equal(t, int64(0), s.MeasurementWindow())
}

func TestLatencyStore_GlobalPercentile_ReflectsAllRecordedValues(t *testing.T) {
	s := NewLatencyStore()
	for i := int64(1); i <= 100; i++ {
		recordReq(s, 0, i, false, false)
	}
	assert.InDelta(t, 50, s.GlobalPercentile(50), 3)
}

func TestExactLatStore_MeanAndPercentile(t *testing.T) {
	s := NewExactLatStore()
	for _, v := range []int64{10, 20, 30, 40, 50} {
		s.RecordValue(v)
	}
	assert.Equal(t, 30.0, s.Mean())
	assert.Equal(t, int64(30), s.ValueAtPercentile(50))
	assert.Equal(t, 5, s.Len())
}

func TestExactLatStore_Merge_CombinesValues(t *testing.T) {
	a := NewExactLatStore()
	a.RecordValue(1)
	a.RecordValue(2)

	b := NewExactLatStore()
	b.RecordValue(3)

	a.Merge(b)
	assert.Equal(t, 3, a.Len())
	assert.ElementsMatch(t, []int64{1, 2, 3}, a.Values())
}

func TestExactLatStore_ValueAtPercentile_EmptyReturnsZero(t *testing.T) {
	s := NewExactLatStore()
	assert.Equal(t, int64(0), s.ValueAtPercentile(50))
}

func TestSLOThreshold_ScalesNominalServiceTime(t *testing.T) {
	assert.Equal(t, int64(5500), SLOThreshold(500, 50, 10))
}
