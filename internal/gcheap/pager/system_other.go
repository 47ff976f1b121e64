//go:build !linux

package pager

// New reserves a slice-backed arena on platforms without madvise support.
func New(totalWords uintptr) (Pager, error) {
	return NewSlicePager(totalWords), nil
}
