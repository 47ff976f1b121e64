package gcheap

import (
	"fmt"
	"math/bits"
)

const (
	// HeapWordBytes is the size of one heap word in bytes.
	HeapWordBytes = 8
	// LogHeapWordBytes is log2(HeapWordBytes).
	LogHeapWordBytes = 3

	// MinNumRegions is the smallest region count a heap may be carved into.
	MinNumRegions = 10

	// maxRegionAge is the clamp for the per-region survival counter.
	maxRegionAge = 15
)

// Addr is a word-indexed address into the contiguous heap arena. Regions are
// index ranges over that arena, so humongous spans and block queries never
// need pointer arithmetic over raw memory.
type Addr uintptr

// SizeOptions tune the one-time size computation.
type SizeOptions struct {
	MinRegionSizeBytes uintptr // lower clamp for the region size (power of two)
	MaxRegionSizeBytes uintptr // upper clamp for the region size (power of two)
	TargetRegionCount  int     // preferred number of regions
	CensusNoise        bool    // enable the diagnostic youth accumulator
}

// DefaultSizeOptions returns the tuning used when the caller has no opinion.
func DefaultSizeOptions() SizeOptions {
	return SizeOptions{
		MinRegionSizeBytes: 256 * 1024,
		MaxRegionSizeBytes: 32 * 1024 * 1024,
		TargetRegionCount:  2048,
		CensusNoise:        false,
	}
}

// Sizes holds every heap-wide constant, computed once at initialization and
// immutable thereafter. All regions and collaborators share one value.
type Sizes struct {
	RegionCount int // number of regions in the table

	RegionSizeBytes      uintptr // bytes per region, power of two
	RegionSizeWords      uintptr // words per region, power of two
	RegionSizeBytesShift uint    // log2(RegionSizeBytes)
	RegionSizeWordsShift uint    // log2(RegionSizeWords)
	RegionSizeBytesMask  uintptr // RegionSizeBytes - 1
	RegionSizeWordsMask  uintptr // RegionSizeWords - 1

	MaxTLABSizeBytes uintptr // per-purpose allocation buffer cap
	MaxTLABSizeWords uintptr

	HumongousThresholdWords uintptr // allocations above this need a span

	CensusNoise bool // youth accumulator enabled
}

// SetupSizes computes the heap-wide constants for a heap of maxHeapBytes.
// The region size is the largest power of two that yields at least
// TargetRegionCount regions, clamped to the configured bounds. The adjusted
// heap size is RegionCount * RegionSizeBytes.
func SetupSizes(maxHeapBytes uintptr, opts SizeOptions) (*Sizes, error) {
	if maxHeapBytes == 0 {
		return nil, fmt.Errorf("max heap size must be positive")
	}
	if opts.MinRegionSizeBytes == 0 || opts.MaxRegionSizeBytes == 0 || opts.TargetRegionCount <= 0 {
		return nil, fmt.Errorf("incomplete size options: %+v", opts)
	}
	if !isPowerOfTwo(opts.MinRegionSizeBytes) || !isPowerOfTwo(opts.MaxRegionSizeBytes) {
		return nil, fmt.Errorf("region size clamps must be powers of two (min=%d max=%d)",
			opts.MinRegionSizeBytes, opts.MaxRegionSizeBytes)
	}
	if opts.MinRegionSizeBytes > opts.MaxRegionSizeBytes {
		return nil, fmt.Errorf("min region size %d above max %d",
			opts.MinRegionSizeBytes, opts.MaxRegionSizeBytes)
	}

	regionSize := maxHeapBytes / uintptr(opts.TargetRegionCount)
	if regionSize < opts.MinRegionSizeBytes {
		regionSize = opts.MinRegionSizeBytes
	}
	if regionSize > opts.MaxRegionSizeBytes {
		regionSize = opts.MaxRegionSizeBytes
	}
	regionSize = floorPowerOfTwo(regionSize)

	count := int(maxHeapBytes / regionSize)
	if count < MinNumRegions {
		return nil, fmt.Errorf("heap of %d bytes yields %d regions of %d bytes, need at least %d",
			maxHeapBytes, count, regionSize, MinNumRegions)
	}

	s := &Sizes{
		RegionCount:          count,
		RegionSizeBytes:      regionSize,
		RegionSizeWords:      regionSize / HeapWordBytes,
		RegionSizeBytesShift: uint(bits.TrailingZeros64(uint64(regionSize))),
		RegionSizeBytesMask:  regionSize - 1,
		CensusNoise:          opts.CensusNoise,
	}
	s.RegionSizeWordsShift = s.RegionSizeBytesShift - LogHeapWordBytes
	s.RegionSizeWordsMask = s.RegionSizeWords - 1
	s.MaxTLABSizeBytes = s.RegionSizeBytes
	s.MaxTLABSizeWords = s.RegionSizeWords
	s.HumongousThresholdWords = s.RegionSizeWords
	return s, nil
}

// HeapSizeBytes is the adjusted heap size covered by the region table.
func (s *Sizes) HeapSizeBytes() uintptr {
	return uintptr(s.RegionCount) * s.RegionSizeBytes
}

// HeapSizeWords is the adjusted heap size in words.
func (s *Sizes) HeapSizeWords() uintptr {
	return uintptr(s.RegionCount) * s.RegionSizeWords
}

// RequiredRegions reports how many contiguous regions an allocation of the
// given byte size occupies.
func (s *Sizes) RequiredRegions(byteSize uintptr) int {
	return int((byteSize + s.RegionSizeBytes - 1) >> s.RegionSizeBytesShift)
}

// RequiresHumongous reports whether an allocation of wordSize words is too
// large for in-region allocation and needs a humongous span.
func (s *Sizes) RequiresHumongous(wordSize uintptr) bool {
	return wordSize > s.HumongousThresholdWords
}

// RegionIndexOf maps an arena address to its region index.
func (s *Sizes) RegionIndexOf(a Addr) int {
	return int(uintptr(a) >> s.RegionSizeWordsShift)
}

func isPowerOfTwo(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

func floorPowerOfTwo(v uintptr) uintptr {
	return uintptr(1) << (bits.Len64(uint64(v)) - 1)
}
