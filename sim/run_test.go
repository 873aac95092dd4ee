package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPoint_RejectsInvalidConfig(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = "bogus"
	_, err := RunPoint(cfg)
	assert.Error(t, err)
}

func TestRunPoint_EREW_CompletesAllRequestsAndMeasuresThroughput(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = PolicyEREW

	res, err := RunPoint(cfg)
	require.NoError(t, err)

	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, int64(cfg.Workload.ReqsToSim), res.Latency.TotalCount())
	assert.Greater(t, res.ThroughputMRPS, 0.0)
	assert.Nil(t, res.BucketLoadHistogram)
}

func TestRunPoint_CREW_ReportsBucketLoadHistogram(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = PolicyCREW

	res, err := RunPoint(cfg)
	require.NoError(t, err)

	assert.NotNil(t, res.BucketLoadHistogram)
	var total int
	for _, c := range res.BucketLoadHistogram {
		total += c
	}
	assert.Greater(t, total, 0)
}

func TestRunPoint_DCREW_ReportsWriteFractionSplit(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = PolicyDCREW
	cfg.Topology.JBSQDepth = 8

	res, err := RunPoint(cfg)
	require.NoError(t, err)

	total := res.BalancedWriteFraction + res.ExclusiveWriteFraction
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRunPoint_Multiversion_RunsUnderCREW(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = PolicyCREW
	cfg.MultiVer.Enabled = true
	cfg.MultiVer.DeferralLimit = 10

	res, err := RunPoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(cfg.Workload.ReqsToSim), res.Latency.TotalCount())
}

func TestRunPoint_PrivateCacheEnabled_ReportsLocalityRate(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy = PolicyEREW
	cfg.EnablePrivateCache = true
	cfg.PrivateCacheSize = 16

	res, err := RunPoint(cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.CacheLocalityRate, 0.0)
	assert.LessOrEqual(t, res.CacheLocalityRate, 1.0)
}
