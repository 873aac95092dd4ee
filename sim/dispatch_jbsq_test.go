package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJBSQCREWPolicy_PanicsOnZeroDepth(t *testing.T) {
	assert.Panics(t, func() { newJBSQCREWPolicy(4, 16, 0) })
}

func TestJBSQCREWPolicy_WriteAlwaysDispatchedRegardlessOfDepth(t *testing.T) {
	p := newJBSQCREWPolicy(2, 16, 1)
	// fill the write's hashed core past its depth limit first
	bucket, core := bucketFor(reqWithHash(1, true), 16, 2)
	for i := 0; i < 3; i++ {
		p.enqueue(core, &Request{})
	}
	idx := p.Select(reqWithHash(1, true))
	assert.Equal(t, core, idx)
	assert.Equal(t, 1, p.bucketLoad[bucket])
}

func TestJBSQCREWPolicy_ReadRefusedWhenShortestQueueAtDepthLimit(t *testing.T) {
	p := newJBSQCREWPolicy(2, 16, 2)
	p.enqueue(0, &Request{})
	p.enqueue(0, &Request{})
	p.enqueue(1, &Request{})
	p.enqueue(1, &Request{})

	idx := p.Select(reqWithHash(1, false))
	assert.Equal(t, -1, idx)
}

func TestJBSQCREWPolicy_ReadDispatchedWhenBelowDepthLimit(t *testing.T) {
	p := newJBSQCREWPolicy(2, 16, 2)
	p.enqueue(0, &Request{})
	p.enqueue(1, &Request{})

	idx := p.Select(reqWithHash(1, false))
	assert.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 2, p.TrackedLength(idx))
}

func TestJBSQCREWPolicy_BucketLoadHistogramTracksAccesses(t *testing.T) {
	p := newJBSQCREWPolicy(2, 16, 4)
	p.Select(reqWithHash(3, false))
	p.Select(reqWithHash(3, true))
	bucket := reqWithHash(3, false).Bucket(16)
	assert.Equal(t, 2, p.BucketLoadHistogram()[bucket])
}

func TestNewDynCREWPolicy_PanicsOnZeroDepth(t *testing.T) {
	assert.Panics(t, func() { newDynCREWPolicy(4, 16, 0) })
}

func TestDynCREWPolicy_FirstWriteClaimsBucketExclusively(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	req := reqWithHash(5, true)
	core := p.Select(req)

	bucket := req.Bucket(16)
	m, ok := p.mappings[bucket]
	require.True(t, ok)
	assert.Equal(t, core, m.core)
	assert.Equal(t, 1, m.outstanding)

	bal, excl := p.WriteFractionStats()
	assert.Equal(t, 1.0, bal)
	assert.Equal(t, 0.0, excl)
}

func TestDynCREWPolicy_SubsequentWriteToOwnedBucketFollowsOwner(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	req1 := reqWithHash(5, true)
	owner := p.Select(req1)

	req2 := reqWithHash(5, true)
	core2 := p.Select(req2)
	assert.Equal(t, owner, core2)

	bal, excl := p.WriteFractionStats()
	assert.InDelta(t, 0.5, bal, 1e-9)
	assert.InDelta(t, 0.5, excl, 1e-9)
}

func TestDynCREWPolicy_ReadToOwnedBucketIsStillLoadBalanced(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	writeReq := reqWithHash(5, true)
	owner := p.Select(writeReq)

	// fill the owner's queue so a read to the same bucket would prefer
	// elsewhere if it weren't load-balanced across all queues
	for i := 0; i < 3; i++ {
		p.enqueue(owner, &Request{})
	}

	readReq := reqWithHash(5, false)
	idx := p.Select(readReq)
	assert.NotEqual(t, owner, idx)
}

func TestDynCREWPolicy_WriteReqFinishedReleasesMappingAtZeroOutstanding(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	req := reqWithHash(5, true)
	core := p.Select(req)
	bucket := req.Bucket(16)

	remaining := p.WriteReqFinished(bucket, core)
	assert.Equal(t, 0, remaining)
	_, ok := p.mappings[bucket]
	assert.False(t, ok)
}

func TestDynCREWPolicy_WriteReqFinishedPanicsOnUnknownBucket(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	assert.Panics(t, func() { p.WriteReqFinished(99, 0) })
}

func TestDynCREWPolicy_WriteReqFinishedPanicsOnWrongCore(t *testing.T) {
	p := newDynCREWPolicy(4, 16, 4)
	req := reqWithHash(5, true)
	core := p.Select(req)
	bucket := req.Bucket(16)

	assert.Panics(t, func() { p.WriteReqFinished(bucket, core+1) })
}

func TestDynCREWPolicy_EvictsOldestMappingOnceMaxBucketsReached(t *testing.T) {
	p := newDynCREWPolicy(1, 16, 2) // maxBuckets = numQueues * jbsqDepth = 2
	p.addToExclBucket(1, 0)
	p.addToExclBucket(2, 0)
	require.Len(t, p.mappings, 2)

	p.addToExclBucket(3, 0)
	assert.Len(t, p.mappings, 2)
	_, stillThere := p.mappings[1]
	assert.False(t, stillThere, "oldest mapping should have been evicted")
	_, newOne := p.mappings[3]
	assert.True(t, newOne)
}

func TestDynCREWPolicy_ReadRefusedWhenShortestQueueAtDepthLimit(t *testing.T) {
	p := newDynCREWPolicy(2, 16, 1)
	p.enqueue(0, &Request{})
	p.enqueue(1, &Request{})

	idx := p.Select(reqWithHash(7, false))
	assert.Equal(t, -1, idx)
}
