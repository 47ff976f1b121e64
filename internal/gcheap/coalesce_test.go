package gcheap

import (
	"testing"

	"github.com/arclang/arc/internal/gcheap/pager"
)

// setMarkBitmap marks exactly the addresses in its set.
type setMarkBitmap map[Addr]struct{}

func (m setMarkBitmap) IsMarked(a Addr) bool {
	_, ok := m[a]
	return ok
}

func (m setMarkBitmap) NextMarked(a, limit Addr) Addr {
	for ; a < limit; a++ {
		if _, ok := m[a]; ok {
			return a
		}
	}
	return limit
}

// recordingRemset collects registered object starts.
type recordingRemset map[Addr]struct{}

func (rs recordingRemset) RegisterObject(a Addr) { rs[a] = struct{}{} }

// newOldRegionWithObjects builds an old regular region packed with count
// live-object slots of objWords words each, headers written, and installs the
// given mark bitmap.
func newOldRegionWithObjects(t *testing.T, marks MarkBitmap, rs RememberedSet, count int, objWords uintptr) (*RegionTable, *Region) {
	t.Helper()
	sizes, err := SetupSizes(16*8192, SizeOptions{
		MinRegionSizeBytes: 8192,
		MaxRegionSizeBytes: 8192,
		TargetRegionCount:  16,
	})
	if err != nil {
		t.Fatalf("SetupSizes failed: %v", err)
	}
	tbl, err := NewRegionTable(sizes, pager.NewSlicePager(sizes.HeapSizeWords()), TableOptions{
		Remset:           rs,
		InitialCommitted: 1,
	})
	if err != nil {
		t.Fatalf("NewRegionTable failed: %v", err)
	}

	r := tbl.Region(0)
	g := tbl.Lock()
	defer g.Unlock()
	if err := r.MakeRegularAllocation(g, AffiliationOld); err != nil {
		t.Fatalf("MakeRegularAllocation failed: %v", err)
	}
	req := SharedRequest(objWords, AffiliationOld)
	for i := 0; i < count; i++ {
		addr, ok := r.Allocate(objWords, &req)
		if !ok {
			t.Fatalf("object %d did not fit", i)
		}
		tbl.WriteObject(addr, objWords)
	}
	tbl.SetMarkBitmap(g, marks)
	return tbl, r
}

// walkBlocks parses [bottom, top) by headers and returns the block starts.
func walkBlocks(t *testing.T, tbl *RegionTable, r *Region) []Addr {
	t.Helper()
	var starts []Addr
	for cur := r.Bottom(); cur < r.Top(); {
		size := tbl.ObjectSizeAt(cur)
		if size == 0 {
			t.Fatalf("unparsable block at %d", cur)
		}
		starts = append(starts, cur)
		cur += Addr(size)
	}
	return starts
}

// TestCoalesceAndFill marks alternating objects dead and checks that each
// dead gap collapses into one registered filler, leaving the region
// block-parsable end to end.
func TestCoalesceAndFill(t *testing.T) {
	const (
		count    = 64
		objWords = 8
	)
	marks := make(setMarkBitmap)
	remset := make(recordingRemset)
	// Objects at even slots up to 60 survive; 61 through 63 are one gap.
	tbl, r := newOldRegionWithObjects(t, marks, remset, count, objWords)
	for i := 0; i < 62; i += 2 {
		marks[r.Bottom()+Addr(i*objWords)] = struct{}{}
	}

	r.BeginPreemptibleCoalesceAndFill()
	if !r.CoalesceAndFill(false) {
		t.Fatal("non-cancellable pass did not complete")
	}

	starts := walkBlocks(t, tbl, r)
	// 31 live objects, 30 single-slot fillers between them, one trailing
	// filler coalescing slots 61 through 63.
	if len(starts) != 62 {
		t.Fatalf("parsed %d blocks, want 62", len(starts))
	}
	for _, s := range starts {
		if marks.IsMarked(s) {
			if tbl.IsFillerAt(s) {
				t.Errorf("live object at %d replaced by a filler", s)
			}
			continue
		}
		if !tbl.IsFillerAt(s) {
			t.Errorf("dead gap at %d not filled", s)
		}
		if _, ok := remset[s]; !ok {
			t.Errorf("filler at %d not registered with the remembered set", s)
		}
	}
	last := starts[len(starts)-1]
	if want := r.Bottom() + 61*objWords; last != want {
		t.Fatalf("trailing filler at %d, want %d", last, want)
	}
	if got := tbl.ObjectSizeAt(last); got != 3*objWords {
		t.Fatalf("trailing filler of %d words, want %d", got, 3*objWords)
	}
}

// TestCoalesceAndFillSuspendResume checks the cancellable pass suspends at a
// valid object start after the cancellation stride and resumes exactly there.
func TestCoalesceAndFillSuspendResume(t *testing.T) {
	const (
		count    = 64
		objWords = 8
	)
	marks := make(setMarkBitmap)
	tbl, r := newOldRegionWithObjects(t, marks, nil, count, objWords)
	// Everything lives: one block per object, so the stride is deterministic.
	for i := 0; i < count; i++ {
		marks[r.Bottom()+Addr(i*objWords)] = struct{}{}
	}

	tbl.RequestCancel()
	r.BeginPreemptibleCoalesceAndFill()
	if r.CoalesceAndFill(true) {
		t.Fatal("cancellable pass ignored the cancellation request")
	}
	cursor := r.ResumeCoalesceAndFill()
	if want := r.Bottom() + Addr(coalesceCancelStride*objWords); cursor != want {
		t.Fatalf("suspended at %d, want %d", cursor, want)
	}
	if !marks.IsMarked(cursor) {
		t.Fatal("suspension point is not a valid object start")
	}

	tbl.ClearCancel()
	if !r.CoalesceAndFill(true) {
		t.Fatal("resumed pass did not complete")
	}
	if got := r.ResumeCoalesceAndFill(); got != r.End() {
		t.Fatalf("boundary = %d after completion, want region end %d", got, r.End())
	}
	if got := len(walkBlocks(t, tbl, r)); got != count {
		t.Fatalf("parsed %d blocks after resume, want %d", got, count)
	}
}

// TestCoalesceAndFillEmptyRange checks that a fully processed or untouched
// region completes immediately.
func TestCoalesceAndFillEmptyRange(t *testing.T) {
	marks := make(setMarkBitmap)
	_, r := newOldRegionWithObjects(t, marks, nil, 0, 8)

	r.BeginPreemptibleCoalesceAndFill()
	if !r.CoalesceAndFill(true) {
		t.Fatal("pass over an empty region did not complete")
	}
	if got := r.ResumeCoalesceAndFill(); got != r.End() {
		t.Fatalf("boundary = %d, want region end %d", got, r.End())
	}
}
