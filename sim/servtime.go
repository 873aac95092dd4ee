package sim

import "math/rand"

// ServiceTimeGenerator is the common interface for all service-time
// distributions (spec.md §4.2: "All service-time generators expose get()
// and optionally get_with_mean(m)"). Grounded on components/rpc_core.py's
// uServCore/BimodaluServCore, which select among exactly these variants by
// configuration flag.
type ServiceTimeGenerator interface {
	// Get returns one sampled service time, in nanoseconds.
	Get() int64
}

// MeanOverridable is implemented by generators where a one-shot mean
// override is meaningful (Exponential); the multiversion worker uses
// this to draw its cost-scaled service times without constructing a
// second generator.
type MeanOverridable interface {
	GetWithMean(mean float64) int64
}

// FixedServiceTime always returns the same value.
type FixedServiceTime struct {
	Value int64
}

func (f FixedServiceTime) Get() int64 { return f.Value }

// UniformServiceTime draws uniformly from [Lo, Hi], inclusive of Lo,
// exclusive of Hi.
type UniformServiceTime struct {
	Lo, Hi int64
	rng    *rand.Rand
}

// NewUniformServiceTime builds a UniformServiceTime seeded from rng.
func NewUniformServiceTime(lo, hi int64, rng *rand.Rand) *UniformServiceTime {
	return &UniformServiceTime{Lo: lo, Hi: hi, rng: rng}
}

func (u *UniformServiceTime) Get() int64 {
	if u.Hi <= u.Lo {
		return u.Lo
	}
	return u.Lo + u.rng.Int63n(u.Hi-u.Lo)
}

// ExponentialServiceTime draws from Exp(1/mean). GetWithMean lets callers
// (the multiversion worker's cost multipliers) substitute a one-shot mean
// without building a second generator instance.
type ExponentialServiceTime struct {
	Mean int64
	rng  *rand.Rand
}

// NewExponentialServiceTime builds an ExponentialServiceTime seeded from rng.
func NewExponentialServiceTime(mean int64, rng *rand.Rand) *ExponentialServiceTime {
	return &ExponentialServiceTime{Mean: mean, rng: rng}
}

func (e *ExponentialServiceTime) Get() int64 { return e.GetWithMean(float64(e.Mean)) }

func (e *ExponentialServiceTime) GetWithMean(mean float64) int64 {
	if mean <= 0 {
		return 0
	}
	return int64(e.rng.ExpFloat64() * mean)
}

// BimodalServiceTime returns Short with probability PShort%, else Long.
type BimodalServiceTime struct {
	PShort      float64 // 0-100
	Short, Long int64
	rng         *rand.Rand
}

// NewBimodalServiceTime builds a BimodalServiceTime seeded from rng.
func NewBimodalServiceTime(pShort float64, short, long int64, rng *rand.Rand) *BimodalServiceTime {
	return &BimodalServiceTime{PShort: pShort, Short: short, Long: long, rng: rng}
}

func (b *BimodalServiceTime) Get() int64 {
	if b.rng.Float64()*100 < b.PShort {
		return b.Short
	}
	return b.Long
}

// bernoulli returns true with probability pctTrue% (0-100), the helper
// behind the load generator's write-flag coin flip
// (components/load_generator.py's rollHit). BimodalServiceTime.Get makes
// the same draw inline.
func bernoulli(rng *rand.Rand, pctTrue float64) bool {
	return rng.Float64()*100 < pctTrue
}
