package sim

// EpochTracker implements RLU/RCU-style epoch tracking for the
// multiversion worker variant (spec.md §4.8): readers register/
// unregister themselves against the epoch active when they started, and
// a writer can ask to be woken once every reader from some earlier epoch
// has unregistered (a quiescent period). Grounded on
// components/epoch_tracker.py's EpochTracker, re-expressed with a
// continuation callback instead of yielding a simpy Event.
type EpochTracker struct {
	seq *GlobalSequencer

	readersByEpoch map[int64][]int
	waitingWriters map[int64][]func(eng *Engine)
}

// NewEpochTracker builds an EpochTracker driven by seq's timestamps.
func NewEpochTracker(seq *GlobalSequencer) *EpochTracker {
	return &EpochTracker{
		seq:            seq,
		readersByEpoch: make(map[int64][]int),
		waitingWriters: make(map[int64][]func(eng *Engine)),
	}
}

// GetCurEpoch returns the current epoch number.
func (t *EpochTracker) GetCurEpoch() int64 { return t.seq.GetTS() }

// RegisterReader records readerID as holding a reference as of the
// current epoch, returning that epoch.
func (t *EpochTracker) RegisterReader(readerID int) int64 {
	epoch := t.seq.GetTS()
	t.readersByEpoch[epoch] = append(t.readersByEpoch[epoch], readerID)
	return epoch
}

// UnregisterReader signals that readerID is done with epochNumber. If it
// was the last reader for that epoch, every writer waiting on the
// quiescent period is woken via a zero-delay scheduled continuation (the
// same ordering-preserving idiom as BucketedIndex.WakeBucket).
func (t *EpochTracker) UnregisterReader(eng *Engine, epochNumber int64, readerID int) {
	readers, ok := t.readersByEpoch[epochNumber]
	if !ok {
		Raise("EpochTracker.UnregisterReader", "epoch not tracked")
	}
	idx := -1
	for i, id := range readers {
		if id == readerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		Raise("EpochTracker.UnregisterReader", "reader not found in epoch's reader list")
	}
	readers = append(readers[:idx], readers[idx+1:]...)
	if len(readers) == 0 {
		delete(t.readersByEpoch, epochNumber)
		waiters := t.waitingWriters[epochNumber]
		delete(t.waitingWriters, epochNumber)
		for _, cont := range waiters {
			eng.After(0, cont)
		}
		return
	}
	t.readersByEpoch[epochNumber] = readers
}

// WriterSynchronizeEpoch calls cont once every reader registered against
// epochNumber has unregistered. If the epoch is already quiescent, cont
// runs from a zero-delay event at the current tick.
func (t *EpochTracker) WriterSynchronizeEpoch(eng *Engine, epochNumber int64, cont func(eng *Engine)) {
	if readers, ok := t.readersByEpoch[epochNumber]; ok && len(readers) > 0 {
		t.waitingWriters[epochNumber] = append(t.waitingWriters[epochNumber], cont)
		return
	}
	eng.After(0, cont)
}

// NumReadersRegistered reports how many readers are currently registered
// for epochNumber.
func (t *EpochTracker) NumReadersRegistered(epochNumber int64) int {
	return len(t.readersByEpoch[epochNumber])
}
