package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestZipf(rng *rand.Rand) *ZipfKeyGenerator {
	return NewZipfKeyGenerator(100, 0.99, rng)
}

func TestLoadGenerator_GeneratesRequestsWithIncrementingIDs(t *testing.T) {
	eng := NewEngine(100000, nil)
	input := NewStore()
	rng := rand.New(rand.NewSource(1))
	zipf := newTestZipf(rng)

	g := NewLoadGenerator(input, zipf, rng, 100, 3, 0)
	g.Start(eng)

	var got []any
	var drain func(eng *Engine, v any)
	drain = func(eng *Engine, v any) {
		got = append(got, v)
		if len(got) < 3 {
			input.Get(eng, drain)
		}
	}
	input.Get(eng, drain)

	eng.Run()

	assert.Len(t, got, 3)
	for i, v := range got {
		req, ok := v.(*Request)
		assert.True(t, ok)
		assert.Equal(t, int64(i), req.ID)
	}
}

func TestLoadGenerator_EmitsEndMarkerAtReqsToSim(t *testing.T) {
	eng := NewEngine(100000, nil)
	input := NewStore()
	rng := rand.New(rand.NewSource(1))
	zipf := newTestZipf(rng)

	g := NewLoadGenerator(input, zipf, rng, 50, 2, 0)
	g.Start(eng)

	var got []any
	var drain func(eng *Engine, v any)
	drain = func(eng *Engine, v any) {
		got = append(got, v)
		if len(got) < 4 {
			input.Get(eng, drain)
		}
	}
	input.Get(eng, drain)

	eng.Run()

	foundMarker := false
	for _, v := range got {
		if IsEndMarker(v) {
			foundMarker = true
		}
	}
	assert.True(t, foundMarker)
}

func TestLoadGenerator_PostMarkerRequestsAreDiscarded(t *testing.T) {
	eng := NewEngine(100000, nil)
	input := NewStore()
	rng := rand.New(rand.NewSource(1))
	zipf := newTestZipf(rng)

	g := NewLoadGenerator(input, zipf, rng, 50, 1, 0)
	g.Start(eng)

	var got []any
	var drain func(eng *Engine, v any)
	drain = func(eng *Engine, v any) {
		got = append(got, v)
		if len(got) < 3 {
			input.Get(eng, drain)
		}
	}
	input.Get(eng, drain)

	eng.Run()

	req0 := got[0].(*Request)
	assert.False(t, req0.Discard)

	req1 := got[2].(*Request)
	assert.True(t, req1.Discard)
}

func TestLoadGenerator_InterruptStopsFurtherSteps(t *testing.T) {
	eng := NewEngine(0, nil)
	input := NewStore()
	rng := rand.New(rand.NewSource(1))
	zipf := newTestZipf(rng)

	g := NewLoadGenerator(input, zipf, rng, 50, 100, 0)
	g.Start(eng)
	g.Interrupt()

	eng.Run()

	assert.Equal(t, 0, input.Len())
}
