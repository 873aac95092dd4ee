package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngine_Run_ExecutesEventsInTimestampOrder(t *testing.T) {
	eng := NewEngine(0, nil)
	var order []int64

	eng.After(30, func(e *Engine) { order = append(order, e.Now()) })
	eng.After(10, func(e *Engine) { order = append(order, e.Now()) })
	eng.After(20, func(e *Engine) { order = append(order, e.Now()) })

	eng.Run()

	assert.Equal(t, []int64{10, 20, 30}, order)
}

func TestEngine_Run_TieBreaksByScheduleOrder(t *testing.T) {
	eng := NewEngine(0, nil)
	var order []string

	eng.After(10, func(e *Engine) { order = append(order, "first") })
	eng.After(10, func(e *Engine) { order = append(order, "second") })

	eng.Run()

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEngine_Run_StopsAtHorizon(t *testing.T) {
	eng := NewEngine(50, nil)
	ran := 0

	eng.After(40, func(e *Engine) { ran++ })
	eng.After(60, func(e *Engine) { ran++ })
	eng.After(70, func(e *Engine) { ran++ })

	eng.Run()

	assert.Equal(t, 2, ran)
}

func TestEngine_ChainedContinuationsAdvanceClock(t *testing.T) {
	eng := NewEngine(0, nil)
	var seen []int64

	var step func(eng *Engine)
	step = func(e *Engine) {
		seen = append(seen, e.Now())
		if len(seen) < 3 {
			e.After(5, step)
		}
	}
	eng.After(5, step)
	eng.Run()

	assert.Equal(t, []int64{5, 10, 15}, seen)
}

func TestEngine_StopFlag(t *testing.T) {
	eng := NewEngine(0, nil)
	assert.False(t, eng.Stopped())
	eng.Stop()
	assert.True(t, eng.Stopped())
}
