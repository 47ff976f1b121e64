//go:build !heapdebug

package gcheap

// No-op assertion hooks for non-debug builds. The heapdebug build tag
// enables the checking versions.

func assertf(cond bool, format string, args ...any) {}

func assertHeapLocked(g *HeapGuard, r *Region) {}

func assertHeapLockedTable(g *HeapGuard, t *RegionTable) {}
