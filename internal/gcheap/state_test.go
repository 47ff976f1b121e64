package gcheap

import (
	"testing"

	"github.com/arclang/arc/internal/gcheap/pager"
)

// newTestTable builds a 16-region table with 1024-word (8 KiB) regions.
func newTestTable(t *testing.T, committed int) *RegionTable {
	t.Helper()
	sizes, err := SetupSizes(16*8192, SizeOptions{
		MinRegionSizeBytes: 8192,
		MaxRegionSizeBytes: 8192,
		TargetRegionCount:  16,
		CensusNoise:        true,
	})
	if err != nil {
		t.Fatalf("SetupSizes failed: %v", err)
	}
	tbl, err := NewRegionTable(sizes, pager.NewSlicePager(sizes.HeapSizeWords()), TableOptions{
		InitialCommitted: committed,
	})
	if err != nil {
		t.Fatalf("NewRegionTable failed: %v", err)
	}
	return tbl
}

// driveToState walks a freshly built region through legal transitions until
// it reaches the wanted state. helper may use the neighbor region at idx+1
// as a span start donor.
func driveToState(t *testing.T, tbl *RegionTable, r *Region, want RegionState) {
	t.Helper()
	g := tbl.Lock()
	defer g.Unlock()

	mustCommit := func(err error) {
		if err != nil {
			t.Fatalf("setup transition failed: %v", err)
		}
	}

	switch want {
	case StateEmptyUncommitted:
		// Construction state in an uncommitted table.
	case StateEmptyCommitted:
		mustCommit(r.MakeCommittedBypass(g))
	case StateRegular:
		mustCommit(r.MakeRegularAllocation(g, AffiliationYoung))
	case StateHumongousStart:
		mustCommit(r.MakeCommittedBypass(g))
		r.MakeHumongousStart(g)
	case StateHumongousCont:
		donor := tbl.Region(r.Index() + 1)
		mustCommit(donor.MakeCommittedBypass(g))
		donor.MakeHumongousStart(g)
		mustCommit(r.MakeCommittedBypass(g))
		r.MakeHumongousCont(g, donor)
	case StatePinnedHumongousStart:
		mustCommit(r.MakeCommittedBypass(g))
		r.MakeHumongousStart(g)
		r.RecordPin()
		r.MakePinned(g)
	case StateCset:
		mustCommit(r.MakeRegularAllocation(g, AffiliationYoung))
		r.MakeCset(g)
	case StatePinned:
		mustCommit(r.MakeRegularAllocation(g, AffiliationYoung))
		r.RecordPin()
		r.MakePinned(g)
	case StatePinnedCset:
		mustCommit(r.MakeRegularAllocation(g, AffiliationYoung))
		r.MakeCset(g)
		r.RecordPin()
		r.MakePinned(g)
	case StateTrash:
		mustCommit(r.MakeRegularAllocation(g, AffiliationYoung))
		r.MakeTrash(g)
	default:
		t.Fatalf("no setup path for state %v", want)
	}
	if got := r.State(); got != want {
		t.Fatalf("setup landed on %v, want %v", got, want)
	}
}

// applyOp invokes the operation under test on a region already driven into
// its source state.
func applyOp(t *testing.T, tbl *RegionTable, r *Region, op TransitionOp) error {
	t.Helper()
	g := tbl.Lock()
	defer g.Unlock()

	switch op {
	case OpRegularAllocation:
		return r.MakeRegularAllocation(g, AffiliationYoung)
	case OpRegularBypass:
		return r.MakeRegularBypass(g)
	case OpHumongousStart:
		r.MakeHumongousStart(g)
	case OpHumongousCont:
		donor := tbl.Region(tbl.RegionCount() - 1)
		if !donor.IsHumongousStart() {
			if err := donor.MakeCommittedBypass(g); err != nil {
				return err
			}
			donor.MakeHumongousStart(g)
		}
		r.MakeHumongousCont(g, donor)
	case OpHumongousStartBypass:
		r.MakeHumongousStartBypass(g, AffiliationOld)
	case OpHumongousContBypass:
		donor := tbl.Region(tbl.RegionCount() - 1)
		if !donor.IsHumongousStart() {
			if err := donor.MakeCommittedBypass(g); err != nil {
				return err
			}
			donor.MakeHumongousStart(g)
		}
		r.MakeHumongousContBypass(g, donor, AffiliationOld)
	case OpPinned:
		r.RecordPin()
		r.MakePinned(g)
	case OpUnpinned:
		for r.PinCount() > 0 {
			r.RecordUnpin()
		}
		r.MakeUnpinned(g)
	case OpCset:
		r.MakeCset(g)
	case OpTrash:
		for r.PinCount() > 0 {
			r.RecordUnpin()
		}
		r.MakeTrash(g)
	case OpEmpty:
		r.MakeEmpty(g)
	case OpUncommitted:
		return r.MakeUncommitted(g)
	case OpCommittedBypass:
		return r.MakeCommittedBypass(g)
	default:
		t.Fatalf("no dispatch for op %v", op)
	}
	return nil
}

var allOps = []TransitionOp{
	OpRegularAllocation, OpRegularBypass,
	OpHumongousStart, OpHumongousCont,
	OpHumongousStartBypass, OpHumongousContBypass,
	OpPinned, OpUnpinned, OpCset, OpTrash,
	OpEmpty, OpUncommitted, OpCommittedBypass,
}

var allStates = []RegionState{
	StateEmptyUncommitted, StateEmptyCommitted, StateRegular,
	StateHumongousStart, StateHumongousCont, StatePinnedHumongousStart,
	StateCset, StatePinned, StatePinnedCset, StateTrash,
}

// TestTransitionTableExhaustive applies every operation to every state:
// legal pairs must land exactly on the documented result state, pairs
// absent from the table must fail fatally with the illegal-transition
// report.
func TestTransitionTableExhaustive(t *testing.T) {
	for _, from := range allStates {
		for _, op := range allOps {
			from, op := from, op
			t.Run(from.String()+"/"+op.String(), func(t *testing.T) {
				tbl := newTestTable(t, 0)
				r := tbl.Region(3)
				driveToState(t, tbl, r, from)

				want, legal := transitionTarget(op, from)
				if legal {
					if err := applyOp(t, tbl, r, op); err != nil {
						t.Fatalf("legal %v on %v returned error: %v", op, from, err)
					}
					if got := r.State(); got != want {
						t.Fatalf("%v on %v landed on %v, want %v", op, from, got, want)
					}
					return
				}

				defer func() {
					rec := recover()
					if rec == nil {
						t.Fatalf("illegal %v on %v did not fail", op, from)
					}
					ite, ok := rec.(*IllegalTransitionError)
					if !ok {
						t.Fatalf("illegal %v on %v panicked with %v", op, from, rec)
					}
					if ite.Region != r.Index() || ite.State != from || ite.Op != op {
						t.Fatalf("report %v does not match region %d state %v op %v",
							ite, r.Index(), from, op)
					}
				}()
				_ = applyOp(t, tbl, r, op)
			})
		}
	}
}

// TestStateGroups checks the derived predicates against the group
// definitions.
func TestStateGroups(t *testing.T) {
	empty := map[RegionState]bool{StateEmptyUncommitted: true, StateEmptyCommitted: true}
	pinned := map[RegionState]bool{StatePinned: true, StatePinnedCset: true, StatePinnedHumongousStart: true}
	humongous := map[RegionState]bool{StateHumongousStart: true, StateHumongousCont: true, StatePinnedHumongousStart: true}
	cset := map[RegionState]bool{StateCset: true, StatePinnedCset: true}

	for _, s := range allStates {
		tbl := newTestTable(t, 0)
		r := tbl.Region(3)
		driveToState(t, tbl, r, s)

		if got := r.IsEmpty(); got != empty[s] {
			t.Errorf("%v: IsEmpty() = %v", s, got)
		}
		wantActive := !empty[s] && s != StateTrash
		if got := r.IsActive(); got != wantActive {
			t.Errorf("%v: IsActive() = %v", s, got)
		}
		if got := r.IsPinned(); got != pinned[s] {
			t.Errorf("%v: IsPinned() = %v", s, got)
		}
		if got := r.IsHumongous(); got != humongous[s] {
			t.Errorf("%v: IsHumongous() = %v", s, got)
		}
		if got := r.IsCset(); got != cset[s] {
			t.Errorf("%v: IsCset() = %v", s, got)
		}
		if got := r.IsCommitted(); got != (s != StateEmptyUncommitted) {
			t.Errorf("%v: IsCommitted() = %v", s, got)
		}
	}
}

// TestIllegalTransitionReport checks the report contents on a
// representative illegal pair.
func TestIllegalTransitionReport(t *testing.T) {
	tbl := newTestTable(t, 0)
	r := tbl.Region(5)
	driveToState(t, tbl, r, StateEmptyCommitted)

	defer func() {
		rec := recover()
		ite, ok := rec.(*IllegalTransitionError)
		if !ok {
			t.Fatalf("expected illegal transition, got %v", rec)
		}
		if ite.Region != 5 || ite.State != StateEmptyCommitted || ite.Op != OpTrash {
			t.Fatalf("unexpected report: %v", ite)
		}
	}()
	g := tbl.Lock()
	defer g.Unlock()
	r.MakeTrash(g) // empty regions never go to trash
}
