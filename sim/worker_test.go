package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(policy DispatchPolicyName, servGen, overheadGen ServiceTimeGenerator) (*Worker, *Channel, *Store, *BucketedIndex) {
	inQ := NewChannel(0)
	pullQ := NewStore()
	bindex := NewBucketedIndex(4)
	measurements := NewLatencyStore()

	w := NewWorker(WorkerConfig{
		ID:           0,
		InQ:          inQ,
		PullQueue:    pullQ,
		BIndex:       bindex,
		Policy:       policy,
		NumBuckets:   4,
		ServGen:      servGen,
		OverheadGen:  overheadGen,
		Measurements: measurements,
		LoadGen:      &LoadGenerator{},
	})
	return w, inQ, pullQ, bindex
}

func TestWorker_EREW_WriteCompletesAndRestoresEvenParity(t *testing.T) {
	eng := NewEngine(0, nil)
	w, inQ, pullQ, bindex := newTestWorker(PolicyEREW, FixedServiceTime{Value: 10}, FixedServiceTime{Value: 5})
	w.Start(eng)

	req := &Request{Hash: 1, Write: true, GeneratedTime: 0}
	inQ.Put(eng, req)

	eng.Run()

	assert.False(t, bindex.IsOdd(req.Bucket(4)))
	assert.Equal(t, int64(1), w.NumSimulated())
	assert.Equal(t, 1, pullQ.Len())
}

func TestWorker_EREW_OddBucketUnderEREWIsInvariantFailure(t *testing.T) {
	eng := NewEngine(0, nil)
	w, inQ, _, bindex := newTestWorker(PolicyEREW, FixedServiceTime{Value: 10}, FixedServiceTime{Value: 5})
	w.Start(eng)

	bindex.IncVersion(1) // force odd

	req := &Request{Hash: 1, Write: false}
	inQ.Put(eng, req)

	assert.Panics(t, func() { eng.Run() })
}

func TestWorker_NonEREW_ReadWithNoConcurrentWriterCompletesWithoutAbort(t *testing.T) {
	eng := NewEngine(0, nil)
	w, inQ, pullQ, _ := newTestWorker(PolicyCRCW, FixedServiceTime{Value: 10}, FixedServiceTime{Value: 5})
	w.Start(eng)

	req := &Request{Hash: 2, Write: false}
	inQ.Put(eng, req)

	eng.Run()

	assert.Equal(t, 0, req.CCAborts)
	assert.Equal(t, 1, pullQ.Len())
}

func TestWorker_NonEREW_ReadAbortsWhenVersionChangesMidRead(t *testing.T) {
	eng := NewEngine(0, nil)
	w, inQ, _, bindex := newTestWorker(PolicyCRCW, FixedServiceTime{Value: 10}, FixedServiceTime{Value: 5})
	w.Start(eng)

	req := &Request{Hash: 2, Write: false}
	bucket := req.Bucket(4)
	inQ.Put(eng, req)

	// Mutate the version out from under the in-flight read partway
	// through its first service-time wait.
	eng.After(3, func(eng *Engine) { bindex.IncVersion(bucket) })

	eng.Run()

	assert.Equal(t, 1, req.CCAborts)
}

func TestWorker_EndMarker_EndsSimGracefully(t *testing.T) {
	eng := NewEngine(0, nil)
	lgen := &LoadGenerator{}
	w := NewWorker(WorkerConfig{
		ID:           0,
		InQ:          NewChannel(0),
		PullQueue:    NewStore(),
		BIndex:       NewBucketedIndex(4),
		Policy:       PolicyCRCW,
		NumBuckets:   4,
		ServGen:      FixedServiceTime{Value: 10},
		OverheadGen:  FixedServiceTime{Value: 5},
		Measurements: NewLatencyStore(),
		LoadGen:      lgen,
	})
	w.Start(eng)
	w.inQ.Put(eng, &EndOfMeasurements{})

	eng.Run()

	assert.True(t, w.killed)
	assert.True(t, lgen.stopped)
}

func TestWorker_DiscardedRequestIsNotRecordedInMeasurements(t *testing.T) {
	eng := NewEngine(0, nil)
	w, inQ, _, _ := newTestWorker(PolicyCRCW, FixedServiceTime{Value: 10}, FixedServiceTime{Value: 5})
	w.Start(eng)

	req := &Request{Hash: 3, Write: false, Discard: true}
	inQ.Put(eng, req)

	eng.Run()

	assert.Equal(t, int64(0), w.measurements.TotalCount())
	assert.Equal(t, int64(1), w.NumSimulated())
}

func TestCoreBase_InstabilityRequiresAFullWindowAboveThreshold(t *testing.T) {
	c := newCoreBase(0, &LoadGenerator{}, nil)
	for i := 0; i < instabilityWindow-1; i++ {
		c.putSTime(instabilityThreshold + 1)
	}
	assert.False(t, c.isSimulationUnstable())

	c.putSTime(instabilityThreshold + 1)
	assert.True(t, c.isSimulationUnstable())
}

func TestCoreBase_InstabilityResetByOneLowSample(t *testing.T) {
	c := newCoreBase(0, &LoadGenerator{}, nil)
	for i := 0; i < instabilityWindow; i++ {
		c.putSTime(instabilityThreshold + 1)
	}
	require.True(t, c.isSimulationUnstable())

	c.putSTime(1)
	assert.False(t, c.isSimulationUnstable())
}

func TestCoreBase_EndSimUnstable_OnlyMasterSetsOutcome(t *testing.T) {
	outcome := Exhausted
	lgen := &LoadGenerator{}
	master := newCoreBase(0, lgen, &outcome)
	master.endSimUnstable()

	assert.True(t, master.killed)
	assert.Equal(t, Unstable, outcome)
	assert.True(t, lgen.stopped)
}

func TestCoreBase_EndSimUnstable_NonMasterDoesNotTouchOutcome(t *testing.T) {
	outcome := Exhausted
	lgen := &LoadGenerator{}
	worker := newCoreBase(1, lgen, &outcome)
	worker.endSimUnstable()

	assert.True(t, worker.killed)
	assert.Equal(t, Exhausted, outcome)
	assert.False(t, lgen.stopped)
}
