package sim

import "container/list"

// KVPair is the minimal key/value shape PrivateDataCache models capacity
// around: every access carries a key and a fixed key+value size. Grounded
// on components/cache_state.py's KVPair.
type KVPair struct {
	Key       uint64
	KeySize   int
	ValueSize int
}

// TotalSize is the combined key+value footprint charged against the
// cache's capacity.
func (p KVPair) TotalSize() int { return p.KeySize + p.ValueSize }

// PrivateDataCache is the supplemented per-core locality model
// (SPEC_FULL.md §4): a purely observational LRU cache of recently-
// touched keys, used to report a locality hit rate alongside the
// concurrency-control measurements without affecting them. Grounded on
// components/cache_state.py's PrivateDataCache, using container/list +
// a key->element index for O(1) LRU bookkeeping instead of Python's
// OrderedDict.
type PrivateDataCache struct {
	capacity int
	curSize  int
	order    *list.List
	elems    map[uint64]*list.Element
}

// NewPrivateDataCache builds an empty PrivateDataCache with the given
// byte capacity.
func NewPrivateDataCache(capacity int) *PrivateDataCache {
	return &PrivateDataCache{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[uint64]*list.Element),
	}
}

// Peek reports whether key is resident, refreshing its LRU position if
// so, without charging it against capacity.
func (c *PrivateDataCache) Peek(key uint64) bool {
	elem, ok := c.elems[key]
	if !ok {
		return false
	}
	c.order.MoveToBack(elem)
	return true
}

// Access looks up pair, refreshing its LRU position on a hit; on a miss
// it inserts pair and evicts least-recently-used entries until the
// cache is back under capacity, returning the evicted pairs.
func (c *PrivateDataCache) Access(pair KVPair) (hit bool, evicted []KVPair) {
	if c.Peek(pair.Key) {
		return true, nil
	}
	elem := c.order.PushBack(pair)
	c.elems[pair.Key] = elem
	c.curSize += pair.TotalSize()

	for c.curSize > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		old := oldest.Value.(KVPair)
		c.order.Remove(oldest)
		delete(c.elems, old.Key)
		c.curSize -= old.TotalSize()
		evicted = append(evicted, old)
	}
	return false, evicted
}
