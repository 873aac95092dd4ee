package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochTracker_RegisterAndUnregisterReader(t *testing.T) {
	eng := NewEngine(0, nil)
	seq := NewGlobalSequencer(0)
	tr := NewEpochTracker(seq)

	epoch := tr.RegisterReader(1)
	assert.Equal(t, 1, tr.NumReadersRegistered(epoch))

	tr.UnregisterReader(eng, epoch, 1)
	assert.Equal(t, 0, tr.NumReadersRegistered(epoch))
}

func TestEpochTracker_WriterSynchronizeEpoch_RunsImmediatelyWhenQuiescent(t *testing.T) {
	eng := NewEngine(0, nil)
	seq := NewGlobalSequencer(0)
	tr := NewEpochTracker(seq)

	ran := false
	tr.WriterSynchronizeEpoch(eng, 0, func(eng *Engine) { ran = true })
	eng.Run()

	assert.True(t, ran)
}

func TestEpochTracker_WriterSynchronizeEpoch_WaitsForLastReaderToUnregister(t *testing.T) {
	eng := NewEngine(0, nil)
	seq := NewGlobalSequencer(0)
	tr := NewEpochTracker(seq)

	epoch := tr.RegisterReader(1)
	tr.RegisterReader(2)

	ran := false
	tr.WriterSynchronizeEpoch(eng, epoch, func(eng *Engine) { ran = true })

	tr.UnregisterReader(eng, epoch, 1)
	eng.Run()
	assert.False(t, ran, "one reader still registered")

	tr.UnregisterReader(eng, epoch, 2)
	eng.Run()
	assert.True(t, ran)
}

func TestEpochTracker_UnregisterUnknownEpochPanics(t *testing.T) {
	eng := NewEngine(0, nil)
	tr := NewEpochTracker(NewGlobalSequencer(0))
	assert.Panics(t, func() { tr.UnregisterReader(eng, 99, 1) })
}

func TestEpochTracker_UnregisterUnknownReaderPanics(t *testing.T) {
	eng := NewEngine(0, nil)
	tr := NewEpochTracker(NewGlobalSequencer(0))
	epoch := tr.RegisterReader(1)
	assert.Panics(t, func() { tr.UnregisterReader(eng, epoch, 2) })
}
