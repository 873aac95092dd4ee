package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ZipfKeyGenerator samples item ranks according to a Zipf distribution and
// maps ranks to precomputed 8-byte key hashes. Grounded on
// components/zipf_gen.py's ZipfKeyGenerator in full: generalized harmonic
// precompute, per-rank pdf/cdf arrays, SHA-256-derived hash per rank, and
// cdf-bisection rank sampling.
type ZipfKeyGenerator struct {
	numItems int
	coeff    float64

	cdf    []float64
	hashes []uint64

	rng *rand.Rand
}

// NewZipfKeyGenerator precomputes the harmonic number, pdf/cdf arrays, and
// per-rank key hashes for numItems keys under Zipf coefficient coeff.
func NewZipfKeyGenerator(numItems int, coeff float64, rng *rand.Rand) *ZipfKeyGenerator {
	if numItems <= 0 {
		Raise("NewZipfKeyGenerator", "num_items must be positive")
	}

	harmonic := calcGeneralizedHarmonic(numItems, coeff)

	cdf := make([]float64, numItems)
	hashes := make([]uint64, numItems)
	runSum := 0.0
	for i := 0; i < numItems; i++ {
		p := (1.0 / math.Pow(float64(i+1), coeff)) / harmonic
		runSum += p
		cdf[i] = runSum
		hashes[i] = hashIntToKey(i)
	}

	return &ZipfKeyGenerator{
		numItems: numItems,
		coeff:    coeff,
		cdf:      cdf,
		hashes:   hashes,
		rng:      rng,
	}
}

// calcGeneralizedHarmonic computes H(n, power) = sum_{i=1}^{n} i^-power.
func calcGeneralizedHarmonic(n int, power float64) float64 {
	harm := 0.0
	for i := 0; i < n; i++ {
		harm += 1.0 / math.Pow(float64(i+1), power)
	}
	return harm
}

// hashIntToKey returns a deterministic 8-byte hash for a rank, read
// big-endian from bytes [16:24) of the SHA-256 digest of the rank's
// decimal string. The original's hexdigest()[-16:-8] covers only the 4
// bytes [24:28), so the values differ from the original's.
func hashIntToKey(rank int) uint64 {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d", rank)))
	return binary.BigEndian.Uint64(h[16:24])
}

// NumKeys returns the size of the key space.
func (z *ZipfKeyGenerator) NumKeys() int { return z.numItems }

// HashForRank returns the precomputed hash for rank k.
func (z *ZipfKeyGenerator) HashForRank(k int) uint64 { return z.hashes[k] }

// ProbForRank returns the Zipf probability mass at rank k.
func (z *ZipfKeyGenerator) ProbForRank(k int) float64 {
	if k == 0 {
		return z.cdf[0]
	}
	return z.cdf[k] - z.cdf[k-1]
}

// GetRank draws a uniform random value in [0,1) and bisects it into the
// cdf, returning the sampled rank. Equivalent to bisect_right in the
// original; sort.Search gives the same leftmost-insertion-point semantics.
func (z *ZipfKeyGenerator) GetRank() int {
	r := z.rng.Float64()
	rank := sort.Search(len(z.cdf), func(i int) bool { return z.cdf[i] > r })
	if rank >= len(z.cdf) {
		return len(z.cdf) - 1
	}
	return rank
}

// Sample draws a rank and returns both the rank and its precomputed hash.
func (z *ZipfKeyGenerator) Sample() (rank int, hash uint64) {
	rank = z.GetRank()
	return rank, z.hashes[rank]
}
