package gcheap

// Coalesce-and-fill: after concurrent old marking, every dead-object gap in
// an old region is filled with a filler object whose start is registered
// with the remembered set, making the region block-parsable without a global
// pause. Old regions need this because the mark bitmap is unreliable during
// the next concurrent old mark.
//
// The pass runs in short increments on a concurrent GC thread and can be
// suspended or cancelled between objects; the boundary cursor is always left
// at a valid resumption point, never inside a torn, partially-filled gap.

// coalesceCancelStride is how many objects are processed between
// cancellation checks.
const coalesceCancelStride = 32

// BeginPreemptibleCoalesceAndFill rewinds the progress cursor to the bottom.
func (r *Region) BeginPreemptibleCoalesceAndFill() {
	r.coalesceAndFillBoundary = r.bottom
}

// EndPreemptibleCoalesceAndFill marks the whole region processed.
func (r *Region) EndPreemptibleCoalesceAndFill() {
	r.coalesceAndFillBoundary = r.end
}

// SuspendCoalesceAndFill parks the cursor at the next unprocessed object.
func (r *Region) SuspendCoalesceAndFill(nextFocus Addr) {
	r.coalesceAndFillBoundary = nextFocus
}

// ResumeCoalesceAndFill returns the cursor to continue from.
func (r *Region) ResumeCoalesceAndFill() Addr {
	return r.coalesceAndFillBoundary
}

// CoalesceAndFill coalesces contiguous spans of dead objects between the
// progress cursor and the allocation cursor, filling each with one filler
// object and registering its start with the remembered set. Returns true
// when the region is completely coalesced and filled; returns false if a
// cancellable pass observed a cancellation request, with the boundary set so
// a later pass resumes exactly where this one stopped.
func (r *Region) CoalesceAndFill(cancellable bool) bool {
	assertf(r.IsOld(), "region %d: coalesce-and-fill on %s region", r.index, r.Affiliation())
	assertf(!r.IsHumongous(), "region %d: coalesce-and-fill on humongous region", r.index)
	marks := r.table.marks
	assertf(marks != nil, "region %d: coalesce-and-fill without a mark bitmap", r.index)

	cur := r.ResumeCoalesceAndFill()
	top := r.Top()
	if cur >= top {
		r.EndPreemptibleCoalesceAndFill()
		return true
	}

	for n := 0; cur < top; {
		if marks.IsMarked(cur) {
			size := r.table.ObjectSizeAt(cur)
			assertf(size >= 1, "region %d: unparsable live object at %d", r.index, cur)
			cur += Addr(size)
		} else {
			next := marks.NextMarked(cur, top)
			r.table.writeFiller(cur, uintptr(next-cur))
			cur = next
		}
		n++
		if cancellable && n%coalesceCancelStride == 0 && cur < top && r.table.CancelRequested() {
			r.SuspendCoalesceAndFill(cur)
			return false
		}
	}

	r.EndPreemptibleCoalesceAndFill()
	return true
}
