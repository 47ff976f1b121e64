package gcheap

import "fmt"

// AllocType declares the purpose of an allocation request, which selects the
// per-region counter the allocation is accounted under.
type AllocType uint8

const (
	AllocShared   AllocType = iota // direct shared allocation by a mutator
	AllocSharedGC                  // direct shared allocation by a GC worker
	AllocTLAB                      // mutator thread-local buffer refill
	AllocGCLAB                     // evacuation buffer refill
	AllocPLAB                      // promotion buffer refill
)

// String returns the request purpose name.
func (t AllocType) String() string {
	switch t {
	case AllocShared:
		return "Shared"
	case AllocSharedGC:
		return "Shared GC"
	case AllocTLAB:
		return "TLAB"
	case AllocGCLAB:
		return "GCLAB"
	case AllocPLAB:
		return "PLAB"
	default:
		return fmt.Sprintf("AllocType(%d)", uint8(t))
	}
}

// IsMutatorAlloc reports whether a mutator issued the request.
func (t AllocType) IsMutatorAlloc() bool { return t == AllocShared || t == AllocTLAB }

// IsGCAlloc reports whether a collector worker issued the request.
func (t AllocType) IsGCAlloc() bool { return !t.IsMutatorAlloc() }

// IsLAB reports whether the request refills a local allocation buffer.
func (t AllocType) IsLAB() bool { return t == AllocTLAB || t == AllocGCLAB || t == AllocPLAB }

// AllocRequest carries one allocation's size, purpose and target generation.
// LAB requests may be satisfied with anything between MinSize and
// RequestedSize; ActualSize records what the region granted.
type AllocRequest struct {
	MinSize       uintptr // smallest acceptable word count
	RequestedSize uintptr // preferred word count
	Type          AllocType
	Affiliation   Affiliation

	actualSize uintptr
}

// SharedRequest builds a mutator shared-object request.
func SharedRequest(words uintptr, aff Affiliation) AllocRequest {
	return AllocRequest{MinSize: words, RequestedSize: words, Type: AllocShared, Affiliation: aff}
}

// SharedGCRequest builds a GC-side shared-object request.
func SharedGCRequest(words uintptr, aff Affiliation) AllocRequest {
	return AllocRequest{MinSize: words, RequestedSize: words, Type: AllocSharedGC, Affiliation: aff}
}

// LABRequest builds a buffer-refill request of the given purpose.
func LABRequest(t AllocType, minWords, requestedWords uintptr, aff Affiliation) AllocRequest {
	return AllocRequest{MinSize: minWords, RequestedSize: requestedWords, Type: t, Affiliation: aff}
}

// ActualSize is the word count the last successful allocation granted.
func (req *AllocRequest) ActualSize() uintptr { return req.actualSize }

// Allocate bumps the cursor by wordSize words and accounts the bytes under
// the request's purpose. It returns the address of the new allocation, or
// ok=false when the remaining space is insufficient; failure is not an
// error, the external allocator picks another region or widens a humongous
// search. The caller serializes writers per region; concurrent readers of
// top see the cursor through its atomic.
func (r *Region) Allocate(wordSize uintptr, req *AllocRequest) (Addr, bool) {
	assertf(r.IsAllocAllowed(), "region %d: allocation in state %q", r.index, r.State())
	obj := r.Top()
	if uintptr(r.end-obj) < wordSize {
		return 0, false
	}
	r.SetTop(obj + Addr(wordSize))
	r.adjustAllocMetadata(req.Type, wordSize)
	req.actualSize = wordSize
	return obj, true
}

// AllocateAligned bumps the cursor so the returned address is a multiple of
// alignmentBytes, filling any gap with a filler object registered with the
// remembered set. Old regions must remain block-parsable at all times, so
// the pad cannot be left as raw dead space. Only old-affiliated regions use
// this path.
func (r *Region) AllocateAligned(wordSize uintptr, req *AllocRequest, alignmentBytes uintptr) (Addr, bool) {
	assertf(r.IsOld(), "region %d: aligned allocation in %s region", r.index, r.Affiliation())
	assertf(isPowerOfTwo(alignmentBytes), "region %d: alignment %d not a power of two", r.index, alignmentBytes)

	alignWords := alignmentBytes / HeapWordBytes
	if alignWords == 0 {
		alignWords = 1
	}
	obj := r.Top()
	aligned := Addr(alignUp(uintptr(obj), alignWords))
	pad := uintptr(aligned - obj)
	if uintptr(r.end-obj) < pad+wordSize {
		return 0, false
	}
	if pad > 0 {
		assertf(pad >= minFillerWords, "region %d: pad of %d words below filler minimum", r.index, pad)
		r.table.writeFiller(obj, pad)
	}
	r.SetTop(aligned + Addr(wordSize))
	// Padding is accounted under the same purpose as the payload.
	r.adjustAllocMetadata(req.Type, pad+wordSize)
	req.actualSize = wordSize
	return aligned, true
}

// adjustAllocMetadata updates the counter matching the declared purpose.
// Shared allocations are derived from used minus the buffer counters.
func (r *Region) adjustAllocMetadata(t AllocType, words uintptr) {
	switch t {
	case AllocShared, AllocSharedGC:
		// Derived, nothing to count.
	case AllocTLAB:
		r.tlabAllocs += words
	case AllocGCLAB:
		r.gclabAllocs += words
	case AllocPLAB:
		r.plabAllocs += words
	}
}

// ResetAllocMetadata zeroes the per-purpose counters.
func (r *Region) ResetAllocMetadata() {
	r.tlabAllocs, r.gclabAllocs, r.plabAllocs = 0, 0, 0
}

// TLABAllocs is the bytes allocated for thread-local buffers.
func (r *Region) TLABAllocs() uintptr { return r.tlabAllocs * HeapWordBytes }

// GCLABAllocs is the bytes allocated for evacuation buffers.
func (r *Region) GCLABAllocs() uintptr { return r.gclabAllocs * HeapWordBytes }

// PLABAllocs is the bytes allocated for promotion buffers.
func (r *Region) PLABAllocs() uintptr { return r.plabAllocs * HeapWordBytes }

// SharedAllocs is the bytes allocated outside any buffer.
func (r *Region) SharedAllocs() uintptr {
	labs := (r.tlabAllocs + r.gclabAllocs + r.plabAllocs) * HeapWordBytes
	used := r.Used()
	if labs > used {
		return 0
	}
	return used - labs
}

func alignUp(v, alignment uintptr) uintptr {
	return (v + alignment - 1) &^ (alignment - 1)
}
