package gcheap

import (
	"fmt"
	"time"
)

// Life-cycle operations. Every operation here validates against the central
// transition table; an attempted transition absent from the table is a fatal
// internal error, because silently coercing it would corrupt heap-wide
// bookkeeping invisibly. All operations require the heap lock, passed as the
// guard token, except where noted.

// reportIllegalTransition aborts on a transition outside the table.
func (r *Region) reportIllegalTransition(op TransitionOp) {
	panic(&IllegalTransitionError{Region: r.index, State: r.State(), Op: op})
}

// transition validates and applies op, returning the result state.
func (r *Region) transition(g *HeapGuard, op TransitionOp) RegionState {
	assertHeapLocked(g, r)
	to, ok := transitionTarget(op, r.State())
	if !ok {
		r.reportIllegalTransition(op)
	}
	r.setState(to)
	return to
}

// MakeRegularAllocation claims an empty region for regular allocations. The
// first allocation fixes the region's affiliation. An uncommitted region is
// committed first; a commit refusal propagates unmasked and leaves the
// region Empty Uncommitted.
func (r *Region) MakeRegularAllocation(g *HeapGuard, aff Affiliation) error {
	assertHeapLocked(g, r)
	cur := r.State()
	if _, ok := transitionTarget(OpRegularAllocation, cur); !ok {
		r.reportIllegalTransition(OpRegularAllocation)
	}
	if cur == StateEmptyUncommitted {
		if err := r.doCommit(); err != nil {
			return err
		}
	}
	r.SetAffiliation(aff)
	r.setState(StateRegular)
	return nil
}

// MakeAffiliatedMaybe tags a regular region young if nothing claimed it yet.
// Used on initialization paths where allocation raced ahead of the tag.
func (r *Region) MakeAffiliatedMaybe(g *HeapGuard) {
	assertHeapLocked(g, r)
	if r.State() == StateRegular && r.Affiliation() == AffiliationFree {
		r.SetAffiliation(AffiliationYoung)
	}
}

// MakeRegularBypass forces a region to Regular on stop-the-world recovery
// paths, skipping the usual reclamation protocol. Humongous sources drop
// their span back-reference.
func (r *Region) MakeRegularBypass(g *HeapGuard) error {
	assertHeapLocked(g, r)
	cur := r.State()
	if _, ok := transitionTarget(OpRegularBypass, cur); !ok {
		r.reportIllegalTransition(OpRegularBypass)
	}
	if cur == StateEmptyUncommitted {
		if err := r.doCommit(); err != nil {
			return err
		}
	}
	r.humStart = nil
	r.setState(StateRegular)
	return nil
}

// MakePinned applies the state side of the pin-count 0 -> 1 edge. The pin
// counter is authoritative; this is only its derived state effect and must
// see a positive count.
func (r *Region) MakePinned(g *HeapGuard) {
	assertf(r.PinCount() > 0, "region %d: pinned state requested with zero pins", r.index)
	r.transition(g, OpPinned)
}

// MakeUnpinned applies the state side of the pin-count 1 -> 0 edge. Leaving
// a pinned state requires the count to have returned to zero.
func (r *Region) MakeUnpinned(g *HeapGuard) {
	assertf(r.PinCount() == 0, "region %d: unpinned state requested with %d pins", r.index, r.PinCount())
	r.transition(g, OpUnpinned)
}

// MakeCset selects the region into the collection set. Only regular regions
// qualify; pinned and humongous regions never relocate.
func (r *Region) MakeCset(g *HeapGuard) {
	r.transition(g, OpCset)
}

// MakeTrash reclaims the region: from Cset after evacuation, or directly
// from Regular/Humongous when the region is fully garbage. Trash is a
// tombstone with no live-data semantics; only recycling advances it.
func (r *Region) MakeTrash(g *HeapGuard) {
	assertf(r.PinCount() == 0, "region %d: trashing with %d pins", r.index, r.PinCount())
	r.transition(g, OpTrash)
	r.humStart = nil
}

// MakeTrashImmediate reclaims a fully-garbage region discovered right after
// marking, bypassing the collection set. On this path no coalesce-and-fill
// is needed, so the whole range is marked processed.
func (r *Region) MakeTrashImmediate(g *HeapGuard) {
	r.MakeTrash(g)
	r.EndPreemptibleCoalesceAndFill()
}

// MakeEmpty recycles a trashed region back to Empty Committed and records
// the instant for the shrink policy.
func (r *Region) MakeEmpty(g *HeapGuard) {
	r.transition(g, OpEmpty)
	r.emptyTime = time.Now()
}

// MakeUncommitted returns an empty committed region's memory to the OS
// under the shrink policy.
func (r *Region) MakeUncommitted(g *HeapGuard) error {
	assertHeapLocked(g, r)
	if _, ok := transitionTarget(OpUncommitted, r.State()); !ok {
		r.reportIllegalTransition(OpUncommitted)
	}
	if err := r.doUncommit(); err != nil {
		return err
	}
	r.setState(StateEmptyUncommitted)
	return nil
}

// MakeCommittedBypass commits an uncommitted region on stop-the-world
// recovery paths.
func (r *Region) MakeCommittedBypass(g *HeapGuard) error {
	assertHeapLocked(g, r)
	if _, ok := transitionTarget(OpCommittedBypass, r.State()); !ok {
		r.reportIllegalTransition(OpCommittedBypass)
	}
	if err := r.doCommit(); err != nil {
		return err
	}
	r.setState(StateEmptyCommitted)
	return nil
}

// Pinning. The counter is authoritative and lock-free from arbitrarily many
// concurrent pinners; only the 0<->1 edges take the heap lock to apply the
// coupled state transition, and re-validate the count after acquiring it to
// guard against a race with a concurrent re-pin.

// PinCount is the lock-free pin counter read.
func (r *Region) PinCount() int64 { return r.criticalPins.Load() }

// RecordPin bumps the pin counter without touching state. Callers that use
// it directly are responsible for the edge transition; most callers want
// Pin instead.
func (r *Region) RecordPin() { r.criticalPins.Add(1) }

// RecordUnpin drops the pin counter without touching state.
func (r *Region) RecordUnpin() {
	n := r.criticalPins.Add(-1)
	assertf(n >= 0, "region %d: pin count went negative", r.index)
}

// Pin guarantees the region's objects will not move until the matching
// Unpin. The fast path is one atomic increment; only the 0 -> 1 edge takes
// the heap lock for the state change.
func (r *Region) Pin() {
	if r.criticalPins.Add(1) == 1 {
		g := r.table.lock.Lock()
		defer g.Unlock()
		// A concurrent Unpin may have raced the edge; re-validate under
		// the lock before deriving state from the count.
		if r.PinCount() > 0 && !r.IsPinned() {
			r.MakePinned(g)
		}
	}
}

// Unpin releases one pin; the 1 -> 0 edge restores the pre-pin state.
func (r *Region) Unpin() {
	n := r.criticalPins.Add(-1)
	assertf(n >= 0, "region %d: unbalanced unpin", r.index)
	if n == 0 {
		g := r.table.lock.Lock()
		defer g.Unlock()
		if r.PinCount() == 0 && r.IsPinned() {
			r.MakeUnpinned(g)
		}
	}
}

// Recycling. Trash regions are recycled asynchronously and possibly in
// bulk; the transient recycling flag lets the discovering thread hand the
// work off without keeping it on its critical path.

// TryRecycle recycles the region if it is trash and nobody else is already
// recycling it. Returns whether this call performed the recycle.
func (r *Region) TryRecycle(g *HeapGuard) bool {
	assertHeapLocked(g, r)
	if !r.IsTrash() {
		return false
	}
	if !r.recycling.CompareAndSwap(false, true) {
		return false
	}
	defer r.recycling.Store(false)
	r.recycleInternal(g)
	return true
}

// TryRecycleUnderLock recycles a region already known to be trash, on a
// path that holds the heap lock for a batch of regions.
func (r *Region) TryRecycleUnderLock(g *HeapGuard) bool {
	assertHeapLocked(g, r)
	assertf(r.IsTrash(), "region %d: recycle of non-trash region", r.index)
	if !r.recycling.CompareAndSwap(false, true) {
		return false
	}
	defer r.recycling.Store(false)
	r.recycleInternal(g)
	return true
}

// recycleInternal resets the in-place bookkeeping: cursor, liveness, age,
// affiliation and allocation counters all return to their initial values.
// Identity (index, address range) is permanent.
func (r *Region) recycleInternal(g *HeapGuard) {
	r.SetTop(r.bottom)
	r.SetNewTop(r.bottom)
	r.ClearLiveData()
	r.ResetAllocMetadata()
	r.ResetAge()
	r.SetAffiliation(AffiliationFree)
	r.SetUpdateWatermarkAtSafepoint(r.bottom)
	r.MakeEmpty(g)
}

// doCommit backs the region with committed memory via the pager.
func (r *Region) doCommit() error {
	err := r.table.pager.Commit(uintptr(r.bottom), r.sizes.RegionSizeWords)
	if err != nil {
		return &CommitError{Region: r.index, Words: r.sizes.RegionSizeWords, Cause: err}
	}
	return nil
}

// doUncommit returns the region's memory to the OS via the pager.
func (r *Region) doUncommit() error {
	err := r.table.pager.Uncommit(uintptr(r.bottom), r.sizes.RegionSizeWords)
	if err != nil {
		return fmt.Errorf("uncommit of region %d failed: %w", r.index, err)
	}
	return nil
}
