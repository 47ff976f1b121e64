//go:build linux

package pager

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SystemPager reserves the arena with an anonymous mmap and uses madvise to
// commit and uncommit. Uncommitted ranges keep their address space reserved;
// MADV_DONTNEED drops the backing pages so the next touch reads zero.
type SystemPager struct {
	buf       []byte
	committed uintptr
}

// New reserves a system-backed arena of totalWords words, falling back to a
// slice-backed arena if the reservation is refused.
func New(totalWords uintptr) (Pager, error) {
	p, err := NewSystemPager(totalWords)
	if err != nil {
		return NewSlicePager(totalWords), nil
	}
	return p, nil
}

// NewSystemPager reserves the arena via mmap.
func NewSystemPager(totalWords uintptr) (*SystemPager, error) {
	length := int(totalWords * WordBytes)
	buf, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("arena reservation of %d bytes failed: %w", length, err)
	}
	return &SystemPager{buf: buf}, nil
}

// Commit advises the kernel the range is needed. Fresh anonymous pages are
// zero-filled, which the heap relies on after recycle-and-uncommit.
func (p *SystemPager) Commit(firstWord, words uintptr) error {
	if err := unix.Madvise(p.slice(firstWord, words), unix.MADV_WILLNEED); err != nil {
		return fmt.Errorf("commit of %d words at %d failed: %w", words, firstWord, err)
	}
	p.committed += words
	return nil
}

// Uncommit drops the backing pages.
func (p *SystemPager) Uncommit(firstWord, words uintptr) error {
	if err := unix.Madvise(p.slice(firstWord, words), unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("uncommit of %d words at %d failed: %w", words, firstWord, err)
	}
	if words > p.committed {
		p.committed = 0
	} else {
		p.committed -= words
	}
	return nil
}

// Words returns the arena as a word slice over the mapped bytes.
func (p *SystemPager) Words() []uint64 {
	return unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(p.buf))), len(p.buf)/WordBytes)
}

// Committed reports committed words.
func (p *SystemPager) Committed() uintptr { return p.committed }

// Close unmaps the arena.
func (p *SystemPager) Close() error {
	if p.buf == nil {
		return nil
	}
	err := unix.Munmap(p.buf)
	p.buf = nil
	return err
}

func (p *SystemPager) slice(firstWord, words uintptr) []byte {
	return p.buf[firstWord*WordBytes : (firstWord+words)*WordBytes]
}
