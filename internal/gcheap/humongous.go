package gcheap

// Humongous span management. An object too large for one region occupies a
// contiguous run of regions: one start region carrying the object header and
// the span's live-data accounting, followed by continuation regions that
// delegate queries back to the start. The start back-reference is immutable,
// set once when the span is claimed, so continuations never scan backwards
// for their owner.

// MakeHumongousStart claims an empty committed region as a span start.
func (r *Region) MakeHumongousStart(g *HeapGuard) {
	r.transition(g, OpHumongousStart)
	r.humStart = r
}

// MakeHumongousCont claims an empty committed region as a continuation of
// the span owned by start.
func (r *Region) MakeHumongousCont(g *HeapGuard, start *Region) {
	assertf(start != nil && start.IsHumongousStart(), "region %d: continuation without a span start", r.index)
	r.transition(g, OpHumongousCont)
	r.humStart = start
}

// MakeHumongousStartBypass re-establishes a span start on stop-the-world
// recovery paths, fixing the affiliation directly.
func (r *Region) MakeHumongousStartBypass(g *HeapGuard, aff Affiliation) {
	r.transition(g, OpHumongousStartBypass)
	r.humStart = r
	r.SetAffiliation(aff)
}

// MakeHumongousContBypass re-establishes a continuation on stop-the-world
// recovery paths.
func (r *Region) MakeHumongousContBypass(g *HeapGuard, start *Region, aff Affiliation) {
	assertf(start != nil && start.IsHumongousStart(), "region %d: continuation without a span start", r.index)
	r.transition(g, OpHumongousContBypass)
	r.humStart = start
	r.SetAffiliation(aff)
}

// HumongousStartRegion returns the start region owning this region's span.
// For a start region that is the region itself.
func (r *Region) HumongousStartRegion() *Region {
	assertf(r.IsHumongous(), "region %d: humongous owner query in state %q", r.index, r.State())
	return r.humStart
}

// humongousObjExtent returns the spanning object's [start, end) address
// range, read from the header in the owning start region.
func (r *Region) humongousObjExtent() (Addr, Addr) {
	start := r.HumongousStartRegion()
	objStart := start.Bottom()
	return objStart, objStart + Addr(start.table.ObjectSizeAt(objStart))
}

// OopIterateHumongousSliceAll invokes cl on every reference slot of the
// spanning object within [start, start+words). Slice iteration lets a
// remembered-set scanner process one region's share of a shared object
// without re-walking the whole object, since region rather than object is
// the unit of card granularity.
func (r *Region) OopIterateHumongousSliceAll(cl func(Addr), start Addr, words uintptr) {
	objStart, objEnd := r.humongousObjExtent()
	assertf(start >= objStart && start <= objEnd, "region %d: slice start %d outside object [%d, %d)",
		r.index, start, objStart, objEnd)
	limit := start + Addr(words)
	if limit > objEnd {
		limit = objEnd
	}
	for a := start; a < limit; a++ {
		cl(a)
	}
}

// OopIterateHumongousSliceDirty is the card-filtered variant: cl runs only
// for slots whose covering card is dirty.
func (r *Region) OopIterateHumongousSliceDirty(cl func(Addr), start Addr, words uintptr, ct CardTable) {
	objStart, objEnd := r.humongousObjExtent()
	assertf(start >= objStart && start <= objEnd, "region %d: slice start %d outside object [%d, %d)",
		r.index, start, objStart, objEnd)
	limit := start + Addr(words)
	if limit > objEnd {
		limit = objEnd
	}
	for a := start; a < limit; a++ {
		if ct.IsDirty(a) {
			cl(a)
		}
	}
}

// ClaimHumongousSpan atomically turns regionCount contiguous empty committed
// regions starting at firstIndex into one humongous span holding an object
// of objWords words. The whole claim happens under the one guard, so
// lock-free readers never observe a partial span. Returns the span regions,
// start first.
func (t *RegionTable) ClaimHumongousSpan(g *HeapGuard, firstIndex, regionCount int, aff Affiliation, objWords uintptr) []*Region {
	assertHeapLockedTable(g, t)
	assertf(t.sizes.RequiresHumongous(objWords), "span claim for %d words below humongous threshold", objWords)
	assertf(t.sizes.RequiredRegions(objWords*HeapWordBytes) == regionCount,
		"span claim of %d regions for %d words", regionCount, objWords)

	start := t.regions[firstIndex]
	start.MakeHumongousStart(g)
	start.SetAffiliation(aff)

	objEnd := start.Bottom() + Addr(objWords)
	start.SetTop(minAddr(start.End(), objEnd))

	span := make([]*Region, 0, regionCount)
	span = append(span, start)
	for i := 1; i < regionCount; i++ {
		r := t.regions[firstIndex+i]
		r.MakeHumongousCont(g, start)
		r.SetAffiliation(aff)
		r.SetTop(minAddr(r.End(), objEnd))
		span = append(span, r)
	}

	t.WriteObject(start.Bottom(), objWords)
	// The span's liveness lives with the start region.
	start.IncreaseLiveDataAllocWords(minUintptr(objWords, t.sizes.RegionSizeWords))
	return span
}

func minAddr(a, b Addr) Addr {
	if a < b {
		return a
	}
	return b
}

func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}
