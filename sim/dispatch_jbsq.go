package sim

import "container/list"

// jbsqCREWPolicy is CREW bounded to per-queue depth D: reads that cannot
// fit in the shortest queue (already at or above D) are refused. Writes
// are always dispatched to their hashed core regardless of depth.
// Grounded on JBSQ.py's JBSCREWDispatchPolicy.
type jbsqCREWPolicy struct {
	trackingPolicy
	depthLimit int
	rotate     int
	bucketLoad map[int]int
}

func newJBSQCREWPolicy(numQueues, numBuckets, depthLimit int) *jbsqCREWPolicy {
	if depthLimit == 0 {
		Raise("newJBSQCREWPolicy", "JBSQ depth cannot be 0")
	}
	return &jbsqCREWPolicy{
		trackingPolicy: newTrackingPolicy(numQueues, numBuckets),
		depthLimit:     depthLimit,
		bucketLoad:     make(map[int]int),
	}
}

func (p *jbsqCREWPolicy) Select(req *Request) int {
	if req.Write {
		bucket, qdx := bucketFor(req, p.numBuckets, p.numQueues)
		p.enqueue(qdx, req)
		p.bucketLoad[bucket]++
		return qdx
	}
	idx := findShortestQ(p.TrackedLength, p.numQueues, p.rotate, nil)
	p.rotate = (p.rotate + 1) % p.numQueues
	if p.TrackedLength(idx) >= p.depthLimit {
		return -1
	}
	p.enqueue(idx, req)
	p.bucketLoad[req.Bucket(p.numBuckets)]++
	return idx
}

// BucketLoadHistogram returns the per-bucket access-count counter
// (SPEC_FULL.md's supplemented bucket load counters).
func (p *jbsqCREWPolicy) BucketLoadHistogram() map[int]int { return p.bucketLoad }

// bucketMapping records which core exclusively holds a bucket and how
// many of its writes are still outstanding. Grounded on JBSQ.py's
// BucketMappingMetadata.
type bucketMapping struct {
	core        int
	outstanding int
}

// dynCREWPolicy is dynamic-CREW: the first write to a bucket claims
// exclusive ownership of it, every subsequent write to that bucket
// follows the same core until outstanding writes reach zero, while reads
// to an owned bucket are still load-balanced. Grounded on JBSQ.py's
// DynJBSCREWDispatchPolicy in full, including its OrderedDict-based
// FIFO/LRU eviction of the exclusive-bucket map (here container/list +
// a bucket->element index for O(1) eviction and removal).
type dynCREWPolicy struct {
	trackingPolicy
	depthLimit int
	maxBuckets int

	mappings map[int]*bucketMapping
	order    *list.List
	elems    map[int]*list.Element

	rotate int

	balancedWrites, exclWrites     int
	balancedReads, linearizedReads int
	bucketLoad                     map[int]int
}

func newDynCREWPolicy(numQueues, numBuckets, jbsqDepth int) *dynCREWPolicy {
	if jbsqDepth == 0 {
		Raise("newDynCREWPolicy", "JBSQ depth cannot be 0")
	}
	return &dynCREWPolicy{
		trackingPolicy: newTrackingPolicy(numQueues, numBuckets),
		depthLimit:     jbsqDepth,
		maxBuckets:     numQueues * jbsqDepth,
		mappings:       make(map[int]*bucketMapping),
		order:          list.New(),
		elems:          make(map[int]*list.Element),
		bucketLoad:     make(map[int]int),
	}
}

func (p *dynCREWPolicy) addToExclBucket(bucket, core int) {
	if len(p.mappings) >= p.maxBuckets {
		oldest := p.order.Front()
		if oldest != nil {
			oldBucket := oldest.Value.(int)
			p.order.Remove(oldest)
			delete(p.elems, oldBucket)
			delete(p.mappings, oldBucket)
		}
	}
	p.mappings[bucket] = &bucketMapping{core: core, outstanding: 1}
	p.elems[bucket] = p.order.PushBack(bucket)
}

// WriteReqFinished decrements bucket's outstanding-write count, removing
// the exclusive mapping once it reaches zero. Called by the dynamic-EW
// balancer on a pull-ack for a completed write (spec.md §4.5).
func (p *dynCREWPolicy) WriteReqFinished(bucket, core int) int {
	m, ok := p.mappings[bucket]
	if !ok {
		Raise("dynCREWPolicy.WriteReqFinished", "bucket not in exclusive mappings")
	}
	if m.core != core {
		Raise("dynCREWPolicy.WriteReqFinished", "write finished on a core that doesn't own the bucket")
	}
	m.outstanding--
	if m.outstanding == 0 {
		if elem, ok := p.elems[bucket]; ok {
			p.order.Remove(elem)
			delete(p.elems, bucket)
		}
		delete(p.mappings, bucket)
	}
	return m.outstanding
}

func (p *dynCREWPolicy) Select(req *Request) int {
	bucket := req.Bucket(p.numBuckets)

	if m, ok := p.mappings[bucket]; ok {
		if req.Write {
			m.outstanding++
			p.exclWrites++
			p.enqueue(m.core, req)
			p.bucketLoad[bucket]++
			return m.core
		}
		idx := findShortestQ(p.TrackedLength, p.numQueues, p.rotate, nil)
		p.rotate = (p.rotate + 1) % p.numQueues
		if p.TrackedLength(idx) >= p.depthLimit {
			return -1
		}
		p.balancedReads++
		p.enqueue(idx, req)
		p.bucketLoad[bucket]++
		return idx
	}

	idx := findShortestQ(p.TrackedLength, p.numQueues, p.rotate, nil)
	p.rotate = (p.rotate + 1) % p.numQueues
	if p.TrackedLength(idx) >= p.depthLimit {
		return -1
	}
	if req.Write {
		p.addToExclBucket(bucket, idx)
		p.balancedWrites++
	} else {
		p.balancedReads++
	}
	p.enqueue(idx, req)
	p.bucketLoad[bucket]++
	return idx
}

// WriteFractionStats returns the fraction of writes dispatched by load
// balancing (first writer to claim a bucket) vs. by following an existing
// exclusive owner, per spec.md §6's "fraction of balanced-vs-exclusive
// writes".
func (p *dynCREWPolicy) WriteFractionStats() (balanced, exclusive float64) {
	total := p.balancedWrites + p.exclWrites
	if total == 0 {
		return 0, 0
	}
	return float64(p.balancedWrites) / float64(total), float64(p.exclWrites) / float64(total)
}

// BucketLoadHistogram returns the per-bucket access-count counter.
func (p *dynCREWPolicy) BucketLoadHistogram() map[int]int { return p.bucketLoad }
