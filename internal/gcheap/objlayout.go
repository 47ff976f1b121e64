package gcheap

// Object layout over the word arena. Every object begins with a one-word
// header carrying its size in words; fillers carry an extra tag bit. This is
// the minimum block parsing the coalesce-and-fill pass and the humongous
// block queries need; real object contents belong to the mutator.

const (
	headerFillerBit = uint64(1) << 63
	headerSizeMask  = headerFillerBit - 1

	// minFillerWords is the smallest representable filler: one header word.
	minFillerWords = 1
)

func packHeader(sizeWords uintptr, filler bool) uint64 {
	h := uint64(sizeWords) & headerSizeMask
	if filler {
		h |= headerFillerBit
	}
	return h
}

func headerSize(h uint64) uintptr { return uintptr(h & headerSizeMask) }

func headerIsFiller(h uint64) bool { return h&headerFillerBit != 0 }

// WriteObject writes an object header of sizeWords at addr and registers the
// start with the remembered set when one is attached. Mutators and
// evacuation use it when laying objects into a region.
func (t *RegionTable) WriteObject(addr Addr, sizeWords uintptr) {
	assertf(sizeWords >= 1, "object of %d words at %d", sizeWords, addr)
	t.words[addr] = packHeader(sizeWords, false)
	if t.remset != nil {
		t.remset.RegisterObject(addr)
	}
}

// writeFiller fills [addr, addr+sizeWords) with a single filler object and
// registers its start, keeping the range block-parsable.
func (t *RegionTable) writeFiller(addr Addr, sizeWords uintptr) {
	t.words[addr] = packHeader(sizeWords, true)
	if t.remset != nil {
		t.remset.RegisterObject(addr)
	}
}

// ObjectSizeAt reads the word size of the object starting at addr.
func (t *RegionTable) ObjectSizeAt(addr Addr) uintptr {
	return headerSize(t.words[addr])
}

// IsFillerAt reports whether the object starting at addr is a filler.
func (t *RegionTable) IsFillerAt(addr Addr) bool {
	return headerIsFiller(t.words[addr])
}

// BlockStart returns the start of the block containing p. Humongous
// continuations delegate to their owning start region; the spanning object
// is the block. Ordinary regions walk the object headers from the bottom.
func (r *Region) BlockStart(p Addr) Addr {
	if r.IsHumongous() {
		return r.HumongousStartRegion().Bottom()
	}
	assertf(r.bottom <= p && p < r.end, "region %d: block query for %d outside region", r.index, p)
	top := r.Top()
	if p >= top {
		return top
	}
	cur := r.bottom
	for {
		size := r.table.ObjectSizeAt(cur)
		assertf(size >= 1, "region %d: unparsable block at %d", r.index, cur)
		if p < cur+Addr(size) {
			return cur
		}
		cur += Addr(size)
	}
}

// BlockSize returns the size in words of the block starting at p. Above the
// cursor the remaining free tail counts as one block.
func (r *Region) BlockSize(p Addr) uintptr {
	if r.IsHumongous() {
		start := r.HumongousStartRegion()
		return start.table.ObjectSizeAt(start.Bottom())
	}
	if p >= r.Top() {
		return uintptr(r.end - p)
	}
	return r.table.ObjectSizeAt(p)
}

// BlockIsObj reports whether the block at p holds object data.
func (r *Region) BlockIsObj(p Addr) bool { return p < r.Top() }
