package sim

import "math/rand"

// LoadGenerator is an open-loop Poisson load generator: it fires a new
// request roughly every Exp(lambda) ticks, writes to a shared input
// Store, and keeps producing (marked Discard) after the configured count
// to keep the rest of the pipeline at steady state. Grounded on
// components/load_generator.py's OpenPoissonLoadGen, re-expressed as an
// event chain (each step schedules its own continuation) instead of a
// simpy coroutine, per spec.md §9's "state machine" guidance.
type LoadGenerator struct {
	input *Store
	zipf  *ZipfKeyGenerator
	rng   *rand.Rand

	lambda    float64 // mean inter-arrival time, ns
	reqsToSim int64
	writeFrac float64 // 0-100

	generated int64
	nextID    int64
	stopped   bool
}

// NewLoadGenerator builds a LoadGenerator writing onto input.
func NewLoadGenerator(input *Store, zipf *ZipfKeyGenerator, rng *rand.Rand, lambda float64, reqsToSim int64, writeFrac float64) *LoadGenerator {
	return &LoadGenerator{
		input:     input,
		zipf:      zipf,
		rng:       rng,
		lambda:    lambda,
		reqsToSim: reqsToSim,
		writeFrac: writeFrac,
	}
}

// Start schedules the generator's first step at time 0.
func (g *LoadGenerator) Start(eng *Engine) {
	eng.Schedule(&funcEvent{time: eng.Now(), fn: g.step})
}

// Interrupt stops the generator from scheduling further requests, the Go
// analogue of the original's Interrupt exception killing the run()
// coroutine. Called by the master worker when it detects instability
// (spec.md §4.6 step 8) and by the worker that pulls the
// end-of-measurements marker.
func (g *LoadGenerator) Interrupt() { g.stopped = true }

func (g *LoadGenerator) step(eng *Engine) {
	if g.stopped {
		return
	}

	discard := g.generated >= g.reqsToSim
	if g.generated == g.reqsToSim {
		g.input.Put(eng, &EndOfMeasurements{})
	}

	req := g.newRequest(eng, discard)
	g.input.Put(eng, req)
	g.generated++

	delay := int64(g.rng.ExpFloat64() * g.lambda)
	eng.After(delay, g.step)
}

func (g *LoadGenerator) newRequest(eng *Engine, discard bool) *Request {
	rank, hash := g.zipf.Sample()
	req := &Request{
		ID:            g.nextID,
		Rank:          int64(rank),
		Hash:          hash,
		Write:         bernoulli(g.rng, g.writeFrac),
		GeneratedTime: eng.Now(),
		Discard:       discard,
	}
	g.nextID++
	return req
}
