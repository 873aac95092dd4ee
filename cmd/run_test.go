package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parsa-epfl/queue-flex/sim"
)

func TestConfigFromRunFlags_MapsFlagsIntoConfig(t *testing.T) {
	orig := runFlags
	defer func() { runFlags = orig }()

	runFlags.seed = 7
	runFlags.policy = string(sim.PolicyDCREW)
	runFlags.balancer = string(sim.BalancerDynamicEW)
	runFlags.cores = 8
	runFlags.hashBuckets = 256
	runFlags.jbsqDepth = 2
	runFlags.servTime = 500
	runFlags.fixedOverhead = 50
	runFlags.arrivalRate = 1200
	runFlags.reqsToSim = 5000
	runFlags.writeFrac = 20
	runFlags.zipfCoeff = 0.9
	runFlags.numItems = 10000
	runFlags.multiverEnabled = true
	runFlags.multiverDeferWrites = true
	runFlags.deferralLimit = 10
	runFlags.sloMultiplier = 5

	cfg := configFromRunFlags()

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, sim.PolicyDCREW, cfg.Policy)
	assert.Equal(t, sim.BalancerDynamicEW, cfg.Balancer)
	assert.Equal(t, 8, cfg.Topology.Cores)
	assert.Equal(t, 256, cfg.Topology.HashBuckets)
	assert.Equal(t, 2, cfg.Topology.JBSQDepth)
	assert.Equal(t, int64(500), cfg.Timing.ServTime)
	assert.Equal(t, int64(50), cfg.Timing.FixedOverhead)
	assert.Equal(t, 1200.0, cfg.Workload.ArrivalRate)
	assert.Equal(t, int64(5000), cfg.Workload.ReqsToSim)
	assert.Equal(t, 20.0, cfg.Workload.WriteFrac)
	assert.Equal(t, 0.9, cfg.Workload.ZipfCoeff)
	assert.Equal(t, 10000, cfg.Workload.NumItems)
	assert.True(t, cfg.MultiVer.Enabled)
	assert.True(t, cfg.MultiVer.DeferWrites)
	assert.Equal(t, 10, cfg.MultiVer.DeferralLimit)
	assert.Equal(t, 5.0, cfg.SLOMultiplier)
}
