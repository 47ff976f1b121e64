package gcheap

// External collaborators. Marking, card-table and remembered-set internals
// live outside this package; the region code only needs the narrow query
// surfaces below.

// MarkBitmap answers liveness queries for one marking cycle. Implementations
// must be safe for the concurrent GC threads that drive coalesce-and-fill.
type MarkBitmap interface {
	// IsMarked reports whether the object starting at addr is live.
	IsMarked(addr Addr) bool
	// NextMarked returns the first marked object start in [addr, limit),
	// or limit when there is none.
	NextMarked(addr, limit Addr) Addr
}

// CardTable answers dirtiness queries at card granularity for the
// remembered-set scan of humongous slices.
type CardTable interface {
	// IsDirty reports whether the card covering addr may hold an
	// interesting reference.
	IsDirty(addr Addr) bool
}

// RememberedSet receives the object starts the region code creates, so the
// card scanner can later parse the heap from any card boundary.
type RememberedSet interface {
	// RegisterObject records an object (or filler) start address.
	RegisterObject(addr Addr)
}
