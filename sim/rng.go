package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible run. Two runs with the
// same SimulationKey and identical Config MUST produce bit-for-bit
// identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Subsystem names used to partition the master seed. The original Python
// seeds each generator (load generator, Zipf ranker, service-time
// distribution) independently from numpy's PCG64; PartitionedRNG gives
// each of those the same isolation without requiring a distinct top-level
// seed per component.
const (
	SubsystemWorkload  = "workload"
	SubsystemZipf      = "zipf"
	SubsystemServTime  = "servtime"
	SubsystemDispatch  = "dispatch"
	SubsystemBalancer  = "balancer"
	SubsystemMultiver  = "multiversion"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, derived from a single master seed.
//
// Derivation: masterSeed XOR fnv1a64(subsystemName), except
// SubsystemWorkload which uses masterSeed directly (so a bare --seed flag
// reproduces the arrival process exactly, the component users most often
// want to hold fixed while varying everything else).
//
// Not safe for concurrent use; this package has a single-threaded engine,
// so that's never required.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same cached *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemWorkload {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// ForWorker returns an isolated RNG for worker index i, used to seed each
// worker's service-time generator so worker 0 and worker 7 never draw
// from the same stream.
func (p *PartitionedRNG) ForWorker(i int) *rand.Rand {
	return p.ForSubsystem(fmt.Sprintf("worker_%d", i))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
