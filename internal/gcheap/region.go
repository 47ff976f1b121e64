package gcheap

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Region is one fixed-size slice of the heap arena and the unit of
// allocation and collection. Identity (index, address range) is fixed at
// construction; regions are built once for every slot of the table and never
// destroyed while the process runs. Recycling resets the bookkeeping in
// place.
//
// Concurrency: state, affiliation, live data, pin count, update watermark
// and top are atomics readable from any thread. State writes happen only
// under the heap lock (via the HeapGuard token); top has a single concurrent
// writer at a time, assigned by the external allocator; the coalesce-and-fill
// boundary is touched only by the old-generation GC thread driving the pass.
type Region struct {
	sizes *Sizes
	table *RegionTable

	// Never updated after construction.
	index  int
	bottom Addr
	end    Addr

	state atomic.Uint32

	// Rarely updated fields.
	newTop            Addr
	topBeforePromoted Addr
	emptyTime         time.Time

	// Seldom updated fields.
	coalesceAndFillBoundary Addr // for old regions not selected as cset candidates

	// Frequently updated fields.
	top             atomic.Uintptr
	updateWatermark atomic.Uintptr

	tlabAllocs  uintptr
	gclabAllocs uintptr
	plabAllocs  uintptr

	liveData     atomic.Uint64 // words
	criticalPins atomic.Int64

	age   uint32
	youth uint32 // tracks epochs of retrograde ageing; census-noise builds only

	affiliation atomic.Uint32

	recycling        atomic.Bool // region is being recycled, see TryRecycle
	needsBitmapReset bool

	// Immutable back-reference to the owning humongous start, set when the
	// span is claimed; the start region points to itself.
	humStart *Region
}

func newRegion(table *RegionTable, index int, committed bool) *Region {
	r := &Region{
		sizes:  table.sizes,
		table:  table,
		index:  index,
		bottom: Addr(uintptr(index) * table.sizes.RegionSizeWords),
	}
	r.end = r.bottom + Addr(table.sizes.RegionSizeWords)
	if committed {
		r.state.Store(uint32(StateEmptyCommitted))
	} else {
		r.state.Store(uint32(StateEmptyUncommitted))
	}
	r.top.Store(uintptr(r.bottom))
	r.updateWatermark.Store(uintptr(r.bottom))
	r.coalesceAndFillBoundary = r.end
	return r
}

// Index returns the region's slot in the table.
func (r *Region) Index() int { return r.index }

// Bottom is the first word of the region.
func (r *Region) Bottom() Addr { return r.bottom }

// End is one past the last word of the region.
func (r *Region) End() Addr { return r.end }

// Top is the bump-pointer cursor.
func (r *Region) Top() Addr { return Addr(r.top.Load()) }

// SetTop moves the bump-pointer cursor. Single-writer by external contract.
func (r *Region) SetTop(v Addr) {
	assertf(r.bottom <= v && v <= r.end, "region %d: top %d outside [%d, %d)", r.index, v, r.bottom, r.end)
	r.top.Store(uintptr(v))
}

// NewTop is the staging cursor used during evacuation planning.
func (r *Region) NewTop() Addr { return r.newTop }

// SetNewTop stages the post-evacuation cursor.
func (r *Region) SetNewTop(v Addr) { r.newTop = v }

// State is the lock-free atomic state read, valid from any thread.
func (r *Region) State() RegionState { return RegionState(r.state.Load()) }

// setState applies a table-validated transition. Callers hold the heap lock.
func (r *Region) setState(to RegionState) { r.state.Store(uint32(to)) }

// Capacity is the region size in bytes.
func (r *Region) Capacity() uintptr { return uintptr(r.end-r.bottom) * HeapWordBytes }

// Used is the number of allocated bytes, bottom to top.
func (r *Region) Used() uintptr { return uintptr(r.Top()-r.bottom) * HeapWordBytes }

// UsedWords is the number of allocated words.
func (r *Region) UsedWords() uintptr { return uintptr(r.Top() - r.bottom) }

// Free is the number of unallocated bytes, top to end.
func (r *Region) Free() uintptr { return uintptr(r.end-r.Top()) * HeapWordBytes }

// FreeWords is the number of unallocated words.
func (r *Region) FreeWords() uintptr { return uintptr(r.end - r.Top()) }

// Contains reports whether the address falls inside the allocated part.
func (r *Region) Contains(p Addr) bool { return r.bottom <= p && p < r.Top() }

// EmptyTime is the instant the region last became empty, recorded by
// MakeEmpty. The shrink policy uses it to uncommit regions that stayed
// empty long enough.
func (r *Region) EmptyTime() time.Time { return r.emptyTime }

// Primitive state predicates.

func (r *Region) IsEmptyUncommitted() bool      { return r.State() == StateEmptyUncommitted }
func (r *Region) IsEmptyCommitted() bool        { return r.State() == StateEmptyCommitted }
func (r *Region) IsRegular() bool               { return r.State() == StateRegular }
func (r *Region) IsHumongousContinuation() bool { return r.State() == StateHumongousCont }
func (r *Region) IsRegularPinned() bool         { return r.State() == StatePinned }
func (r *Region) IsTrash() bool                 { return r.State() == StateTrash }

// Derived state predicates (boolean combinations of individual states).

func (r *Region) IsEmpty() bool { return isEmptyState(r.State()) }

func (r *Region) IsActive() bool {
	s := r.State()
	return !isEmptyState(s) && s != StateTrash
}

func (r *Region) IsHumongousStart() bool { return isHumongousStartState(r.State()) }

func (r *Region) IsHumongous() bool {
	s := r.State()
	return isHumongousStartState(s) || s == StateHumongousCont
}

func (r *Region) IsCommitted() bool { return !r.IsEmptyUncommitted() }

func (r *Region) IsCset() bool {
	s := r.State()
	return s == StateCset || s == StatePinnedCset
}

func (r *Region) IsPinned() bool {
	s := r.State()
	return s == StatePinned || s == StatePinnedCset || s == StatePinnedHumongousStart
}

// Macro-properties.

// IsAllocAllowed reports whether the region may serve bump allocations.
func (r *Region) IsAllocAllowed() bool {
	s := r.State()
	return isEmptyState(s) || s == StateRegular || s == StatePinned
}

// IsStwMoveAllowed reports whether objects may be moved out of this region
// during a stop-the-world collection.
func (r *Region) IsStwMoveAllowed() bool {
	s := r.State()
	return s == StateRegular || s == StateCset
}

// Affiliation is the lock-free generation tag read.
func (r *Region) Affiliation() Affiliation { return Affiliation(r.affiliation.Load()) }

// SetAffiliation retags the region's generation.
func (r *Region) SetAffiliation(a Affiliation) { r.affiliation.Store(uint32(a)) }

// IsYoung reports young-generation affiliation.
func (r *Region) IsYoung() bool { return r.Affiliation() == AffiliationYoung }

// IsOld reports old-generation affiliation.
func (r *Region) IsOld() bool { return r.Affiliation() == AffiliationOld }

// IsAffiliated reports whether any generation owns the region.
func (r *Region) IsAffiliated() bool { return r.Affiliation() != AffiliationFree }

// Liveness.

// ClearLiveData zeroes the live counter at cycle start.
func (r *Region) ClearLiveData() { r.liveData.Store(0) }

// SetLiveData overwrites the live counter with an authoritative word count.
func (r *Region) SetLiveData(g *HeapGuard, words uintptr) {
	assertHeapLocked(g, r)
	r.liveData.Store(uint64(words))
}

// IncreaseLiveDataAllocWords adds provisional liveness at allocation time.
func (r *Region) IncreaseLiveDataAllocWords(words uintptr) {
	r.internalIncreaseLiveData(words)
}

// IncreaseLiveDataGCWords adds authoritative liveness found by marking.
func (r *Region) IncreaseLiveDataGCWords(words uintptr) {
	r.internalIncreaseLiveData(words)
}

func (r *Region) internalIncreaseLiveData(words uintptr) {
	n := r.liveData.Add(uint64(words))
	assertf(n <= uint64(r.sizes.RegionSizeWords), "region %d: live data %d beyond region size", r.index, n)
}

// HasLive reports whether any live data was recorded.
func (r *Region) HasLive() bool { return r.liveData.Load() != 0 }

// LiveDataWords is the recorded live word count. Readers see a plain atomic
// snapshot; the point at which it reflects a completed mark is defined by
// the marking protocol's barrier, not by this counter.
func (r *Region) LiveDataWords() uintptr { return uintptr(r.liveData.Load()) }

// LiveDataBytes is the recorded live byte count.
func (r *Region) LiveDataBytes() uintptr { return r.LiveDataWords() * HeapWordBytes }

// Garbage is the reclaimable byte count consumed by collection-set scoring.
func (r *Region) Garbage() uintptr {
	used, live := r.Used(), r.LiveDataBytes()
	assertf(used >= live, "region %d: live %d beyond used %d", r.index, live, used)
	if live > used {
		return 0
	}
	return used - live
}

// Update watermark: progress cursor of the concurrent remembered-set update.

// UpdateWatermark returns the cursor, lock-free.
func (r *Region) UpdateWatermark() Addr { return Addr(r.updateWatermark.Load()) }

// SetUpdateWatermark advances the cursor.
func (r *Region) SetUpdateWatermark(w Addr) {
	assertf(r.bottom <= w && w <= r.Top(), "region %d: watermark %d outside [bottom, top]", r.index, w)
	r.updateWatermark.Store(uintptr(w))
}

// SetUpdateWatermarkAtSafepoint resets the cursor while the world is
// stopped; no concurrent readers are racing it.
func (r *Region) SetUpdateWatermarkAtSafepoint(w Addr) {
	r.updateWatermark.Store(uintptr(w))
}

// Region ageing and rejuvenation.

// Age is the number of cycles survived without promotion.
func (r *Region) Age() uint32 { return r.age }

// IncrementAge bumps the survival counter, clamped at the maximum.
func (r *Region) IncrementAge() {
	if r.age < maxRegionAge {
		r.age++
	}
}

// ResetAge zeroes the counter on promotion, folding the discarded value
// into the diagnostic youth accumulator when the census-noise option is on.
func (r *Region) ResetAge() {
	if r.sizes.CensusNoise {
		r.youth += r.age
	}
	r.age = 0
}

// Youth is the diagnostic rejuvenation accumulator, never read by policy.
func (r *Region) Youth() uint32 { return r.youth }

// ClearYouth resets the diagnostic accumulator.
func (r *Region) ClearYouth() { r.youth = 0 }

// Speculative promotion rollback staging.

// SaveTopBeforePromote stages the cursor before a speculative promotion.
func (r *Region) SaveTopBeforePromote() { r.topBeforePromoted = r.Top() }

// TopBeforePromote returns the staged cursor.
func (r *Region) TopBeforePromote() Addr { return r.topBeforePromoted }

// RestoreTopBeforePromote rolls the cursor back after an aborted promotion.
func (r *Region) RestoreTopBeforePromote() { r.SetTop(r.topBeforePromoted) }

// UsedBeforePromote is the byte count below the staged cursor.
func (r *Region) UsedBeforePromote() uintptr {
	return uintptr(r.topBeforePromoted-r.bottom) * HeapWordBytes
}

// GarbageBeforePaddedForPromote is the garbage below the staged cursor,
// before promotion padding was appended.
func (r *Region) GarbageBeforePaddedForPromote() uintptr {
	used, live := r.UsedBeforePromote(), r.LiveDataBytes()
	if live > used {
		return 0
	}
	return used - live
}

// Needs-bitmap-reset flag, consumed by the next cycle's mark setup.

func (r *Region) NeedsBitmapReset() bool { return r.needsBitmapReset }
func (r *Region) SetNeedsBitmapReset()   { r.needsBitmapReset = true }
func (r *Region) UnsetNeedsBitmapReset() { r.needsBitmapReset = false }

// String formats the region for table dumps.
func (r *Region) String() string {
	return fmt.Sprintf("region %4d [%d, %d) %-22q %s used=%d live=%d pins=%d age=%d",
		r.index, r.bottom, r.end, r.State().String(), r.Affiliation(),
		r.Used(), r.LiveDataBytes(), r.PinCount(), r.age)
}
