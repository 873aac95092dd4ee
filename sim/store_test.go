package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_PutThenGet_DeliversThroughScheduledEvent(t *testing.T) {
	eng := NewEngine(0, nil)
	s := NewStore()

	s.Put(eng, "a")
	var got any
	s.Get(eng, func(eng *Engine, v any) { got = v })

	eng.Run()
	assert.Equal(t, "a", got)
}

func TestStore_GetBeforePut_ParksWaiterUntilPut(t *testing.T) {
	eng := NewEngine(0, nil)
	s := NewStore()

	var got any
	s.Get(eng, func(eng *Engine, v any) { got = v })
	assert.Equal(t, 1, s.Waiting())

	s.Put(eng, "late")
	eng.Run()

	assert.Equal(t, "late", got)
	assert.Equal(t, 0, s.Waiting())
}

func TestStore_FIFOOrder(t *testing.T) {
	eng := NewEngine(0, nil)
	s := NewStore()

	s.Put(eng, 1)
	s.Put(eng, 2)
	s.Put(eng, 3)

	var got []any
	drain := func(eng *Engine, v any) { got = append(got, v) }
	s.Get(eng, drain)
	s.Get(eng, drain)
	s.Get(eng, drain)

	eng.Run()
	assert.Equal(t, []any{1, 2, 3}, got)
}

func TestStore_LenAndItems(t *testing.T) {
	eng := NewEngine(0, nil)
	s := NewStore()
	s.Put(eng, "x")
	s.Put(eng, "y")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []any{"x", "y"}, s.Items())
}

func TestChannel_AppliesPropagationDelay(t *testing.T) {
	eng := NewEngine(0, nil)
	c := NewChannel(100)

	var arrivedAt int64 = -1
	c.Put(eng, "req")
	c.Get(eng, func(eng *Engine, v any) { arrivedAt = eng.Now() })

	eng.Run()
	assert.Equal(t, int64(100), arrivedAt)
}

func TestChannel_ZeroDelayStillGoesThroughEngine(t *testing.T) {
	eng := NewEngine(0, nil)
	c := NewChannel(0)

	c.Put(eng, "req")
	assert.Equal(t, 0, c.Len(), "put is scheduled, not synchronous")

	eng.Run()
	assert.Equal(t, 1, c.Len())
}
