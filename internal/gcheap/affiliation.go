package gcheap

import "fmt"

// Affiliation records which generation a region's contents belong to. Free
// regions have no affiliation; the first allocation into a region fixes it.
type Affiliation uint8

const (
	AffiliationFree  Affiliation = iota // no generation, region is unused
	AffiliationYoung                    // young generation
	AffiliationOld                      // old generation
)

// String returns the affiliation name.
func (a Affiliation) String() string {
	switch a {
	case AffiliationFree:
		return "Free"
	case AffiliationYoung:
		return "Young"
	case AffiliationOld:
		return "Old"
	default:
		return fmt.Sprintf("Affiliation(%d)", uint8(a))
	}
}
