// Package pager provides the virtual-memory provider backing region commit
// and uncommit. The heap reserves one contiguous word arena up front; the
// pager commits and uncommits page-aligned slices of it on demand. Only the
// resulting state and byte counters are tracked by the heap itself.
package pager

// WordBytes is the size of one heap word in bytes.
const WordBytes = 8

// Pager backs a contiguous word arena with committable memory. Ranges are
// given in words relative to the start of the arena. Implementations must
// tolerate repeated commit/uncommit of the same range.
type Pager interface {
	// Commit makes the range usable. The committed range reads as zero.
	Commit(firstWord, words uintptr) error
	// Uncommit returns the range's backing memory to the OS.
	Uncommit(firstWord, words uintptr) error
	// Words exposes the whole arena as a word slice. Accessing uncommitted
	// ranges of a system-backed pager may fault; callers go through the
	// region state machine, which guarantees committed-before-use.
	Words() []uint64
	// Committed reports the number of currently committed words.
	Committed() uintptr
	// Close releases the arena.
	Close() error
}

// SlicePager is the portable pager: a plain Go slice stands in for the
// reserved arena, and commit/uncommit only zero the range and keep the
// byte counters honest. It is also the pager used by tests.
type SlicePager struct {
	words     []uint64
	committed uintptr
}

// NewSlicePager reserves a slice-backed arena of totalWords words.
func NewSlicePager(totalWords uintptr) *SlicePager {
	return &SlicePager{words: make([]uint64, totalWords)}
}

// Commit zeroes the range so it matches freshly committed memory.
func (p *SlicePager) Commit(firstWord, words uintptr) error {
	clearRange(p.words, firstWord, words)
	p.committed += words
	return nil
}

// Uncommit zeroes the range; the slice itself stays allocated.
func (p *SlicePager) Uncommit(firstWord, words uintptr) error {
	clearRange(p.words, firstWord, words)
	if words > p.committed {
		p.committed = 0
	} else {
		p.committed -= words
	}
	return nil
}

// Words returns the arena view.
func (p *SlicePager) Words() []uint64 { return p.words }

// Committed reports committed words.
func (p *SlicePager) Committed() uintptr { return p.committed }

// Close drops the arena reference.
func (p *SlicePager) Close() error {
	p.words = nil
	return nil
}

func clearRange(words []uint64, first, n uintptr) {
	s := words[first : first+n]
	for i := range s {
		s[i] = 0
	}
}
