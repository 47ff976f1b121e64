//go:build heapdebug

package gcheap

import "fmt"

// In heapdebug builds every invariant and lock-discipline violation panics
// immediately. Release builds rely on caller lock discipline instead of
// re-validating every call.

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("heapdebug: " + fmt.Sprintf(format, args...))
	}
}

func assertHeapLocked(g *HeapGuard, r *Region) {
	if !g.live() {
		panic(fmt.Sprintf("heapdebug: region %d mutated without the heap lock", r.index))
	}
}

func assertHeapLockedTable(g *HeapGuard, t *RegionTable) {
	if !g.live() {
		panic("heapdebug: region table mutated without the heap lock")
	}
}
