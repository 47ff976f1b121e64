package gcheap

import (
	"fmt"
	"sync/atomic"

	"github.com/arclang/arc/internal/gcheap/pager"
)

// RegionTable is the fixed-size table of all regions, constructed once at
// heap initialization. It owns the word arena, the pager backing it, the
// heap lock, and the hooks to the external collaborators. Regions are never
// destroyed; the table lives for the process.
type RegionTable struct {
	sizes   *Sizes
	lock    HeapLock
	pager   pager.Pager
	words   []uint64
	regions []*Region

	remset RememberedSet

	// marks is installed between cycles at a safepoint and read by the GC
	// threads driving coalesce-and-fill during the cycle.
	marks MarkBitmap

	cancel atomic.Bool
}

// TableOptions configure region table construction.
type TableOptions struct {
	// Remset receives object starts created by this package. Optional.
	Remset RememberedSet
	// InitialCommitted is how many leading regions start committed.
	// Negative means all of them.
	InitialCommitted int
}

// NewRegionTable builds the table over a pager whose arena covers the whole
// heap. The leading InitialCommitted regions are committed up front and
// start Empty Committed; the rest start Empty Uncommitted.
func NewRegionTable(s *Sizes, p pager.Pager, opts TableOptions) (*RegionTable, error) {
	words := p.Words()
	if uintptr(len(words)) < s.HeapSizeWords() {
		return nil, fmt.Errorf("arena of %d words cannot back a heap of %d words",
			len(words), s.HeapSizeWords())
	}

	committed := opts.InitialCommitted
	if committed < 0 || committed > s.RegionCount {
		committed = s.RegionCount
	}

	t := &RegionTable{
		sizes:   s,
		pager:   p,
		words:   words,
		regions: make([]*Region, s.RegionCount),
		remset:  opts.Remset,
	}
	for i := 0; i < s.RegionCount; i++ {
		t.regions[i] = newRegion(t, i, i < committed)
	}
	if committed > 0 {
		if err := p.Commit(0, uintptr(committed)*s.RegionSizeWords); err != nil {
			return nil, &CommitError{Region: 0, Words: uintptr(committed) * s.RegionSizeWords, Cause: err}
		}
	}
	return t, nil
}

// Sizes returns the shared immutable size configuration.
func (t *RegionTable) Sizes() *Sizes { return t.sizes }

// Lock acquires the heap lock and returns the guard token.
func (t *RegionTable) Lock() *HeapGuard { return t.lock.Lock() }

// RegionCount is the number of regions in the table.
func (t *RegionTable) RegionCount() int { return len(t.regions) }

// Region returns the region at slot i.
func (t *RegionTable) Region(i int) *Region { return t.regions[i] }

// RegionAt maps an arena address to its region.
func (t *RegionTable) RegionAt(a Addr) *Region {
	return t.regions[t.sizes.RegionIndexOf(a)]
}

// ForEach applies fn to every region in index order.
func (t *RegionTable) ForEach(fn func(*Region)) {
	for _, r := range t.regions {
		fn(r)
	}
}

// SetMarkBitmap installs the cycle's mark bitmap. Called between cycles,
// under the heap lock, with no concurrent coalesce-and-fill running.
func (t *RegionTable) SetMarkBitmap(g *HeapGuard, m MarkBitmap) {
	assertHeapLockedTable(g, t)
	t.marks = m
}

// RequestCancel asks running cancellable passes to stop at the next
// opportunity.
func (t *RegionTable) RequestCancel() { t.cancel.Store(true) }

// ClearCancel rearms cancellable passes.
func (t *RegionTable) ClearCancel() { t.cancel.Store(false) }

// CancelRequested is the lock-free cancellation poll.
func (t *RegionTable) CancelRequested() bool { return t.cancel.Load() }

// CommittedBytes is the number of bytes currently committed by the pager.
func (t *RegionTable) CommittedBytes() uintptr {
	return t.pager.Committed() * HeapWordBytes
}

// Close releases the arena.
func (t *RegionTable) Close() error { return t.pager.Close() }
