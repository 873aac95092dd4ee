package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsa-epfl/queue-flex/sim"
)

const testSweepYAML = `
arrival_rates: [1000, 2000, 4000]
seed: 1
policy: CREW
cores: 4
hash_buckets: 64
jbsq_depth: 4
serv_time: 500
fixed_overhead: 50
reqs_to_sim: 1000
write_frac: 10
zipf_coeff: 0.99
num_items: 1000
slo_multiplier: 10
`

func TestLoadSweepSpec_ParsesArrivalRatesAndBaseConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSweepYAML), 0o644))

	spec, err := loadSweepSpec(path)
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 2000, 4000}, spec.ArrivalRates)
	assert.Equal(t, "CREW", spec.Policy)
	assert.Equal(t, 4, spec.Cores)

	cfg := spec.baseConfig()
	assert.Equal(t, sim.PolicyCREW, cfg.Policy)
	assert.Equal(t, 4, cfg.Topology.Cores)
	assert.Equal(t, int64(500), cfg.Timing.ServTime)
}

func TestLoadSweepSpec_RejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arrival_rates: [1]\nbogus_field: 1\n"), 0o644))

	_, err := loadSweepSpec(path)
	assert.Error(t, err)
}

func TestLoadSweepSpec_RejectsEmptyArrivalRates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 1\n"), 0o644))

	_, err := loadSweepSpec(path)
	assert.Error(t, err)
}

func TestLoadSweepSpec_MissingFileReturnsError(t *testing.T) {
	_, err := loadSweepSpec("/nonexistent/path.yaml")
	assert.Error(t, err)
}
