// Package gcheap implements the region state machine and life-cycle manager
// of a region-based, concurrent, compacting garbage collector. Regions are
// fixed-size slices of a contiguous word arena; each region owns its state
// tag, bump-pointer cursor, liveness counter, pin counter, age/affiliation
// tags and two progress cursors (update watermark, coalesce-and-fill).
//
// State transitions are guarded by the heap lock, which allows changing the
// state of several regions atomically. Reads are lock-free atomic loads and
// are valid from any thread at any time.
package gcheap

import "fmt"

// RegionState enumerates the ten region life-cycle states.
//
// State groups:
//
//	"Empty":  EmptyUncommitted, EmptyCommitted
//	"Active": Regular, HumongousStart, HumongousCont, PinnedHumongousStart,
//	          Cset, Pinned, PinnedCset
//	"Trash":  Trash
//
// Transition from "Empty" to "Active" is first allocation. Transition from
// "Active" to "Trash" is reclamation: from Cset during the normal cycle, and
// from Regular/Humongous for immediate reclamation. The Trash state allows
// quick reclamation without actual cleanup. Transition from "Trash" back to
// "Empty" is recycling; it can be done asynchronously and in bulk.
//
// The transition table disallows logic bugs:
//
//	a) no region goes Empty unless properly reclaimed/recycled;
//	b) no region goes Uncommitted unless reclaimed/recycled first;
//	c) only Regular regions go to Cset;
//	d) Pinned cannot go Trash, so it is never reclaimed until unpinned;
//	e) Pinned cannot go Cset, so it never moves;
//	f) Humongous regions cannot serve regular allocations;
//	g) Humongous regions cannot go Cset, so they never move;
//	h) a humongous start can be pinned, protecting its whole span
//	   (continuations follow their start, not pinnable by themselves);
//	i) Empty cannot go Trash, avoiding useless work.
type RegionState uint32

const (
	StateEmptyUncommitted     RegionState = iota // empty, backing memory uncommitted
	StateEmptyCommitted                          // empty, backing memory committed
	StateRegular                                 // serves regular allocations
	StateHumongousStart                          // first region of a humongous span
	StateHumongousCont                           // continuation of a humongous span
	StatePinnedHumongousStart                    // humongous start, pinned
	StateCset                                    // in the collection set
	StatePinned                                  // regular, pinned
	StatePinnedCset                              // in cset, pinned (evac failure path)
	StateTrash                                   // contains only trash
	regionStatesNum                              // last
)

// String returns the human-readable state name.
func (s RegionState) String() string {
	switch s {
	case StateEmptyUncommitted:
		return "Empty Uncommitted"
	case StateEmptyCommitted:
		return "Empty Committed"
	case StateRegular:
		return "Regular"
	case StateHumongousStart:
		return "Humongous Start"
	case StateHumongousCont:
		return "Humongous Continuation"
	case StatePinnedHumongousStart:
		return "Humongous Start, Pinned"
	case StateCset:
		return "Collection Set"
	case StatePinned:
		return "Pinned"
	case StatePinnedCset:
		return "Collection Set, Pinned"
	case StateTrash:
		return "Trash"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// RegionStatesNum reports the number of distinct region states.
func RegionStatesNum() int { return int(regionStatesNum) }

// isEmptyState reports whether s belongs to the "Empty" group.
func isEmptyState(s RegionState) bool {
	return s == StateEmptyUncommitted || s == StateEmptyCommitted
}

// isHumongousStartState reports whether s is a humongous start, pinned or not.
func isHumongousStartState(s RegionState) bool {
	return s == StateHumongousStart || s == StatePinnedHumongousStart
}

// TransitionOp names a state-changing operation requested from the outside.
type TransitionOp uint8

const (
	OpRegularAllocation    TransitionOp = iota // first regular allocation claims the region
	OpRegularBypass                            // STW recovery path to Regular
	OpHumongousStart                           // claim span start
	OpHumongousCont                            // claim span continuation
	OpHumongousStartBypass                     // STW recovery path to Humongous Start
	OpHumongousContBypass                      // STW recovery path to Humongous Continuation
	OpPinned                                   // pin count 0->1 edge
	OpUnpinned                                 // pin count 1->0 edge
	OpCset                                     // collection set selection
	OpTrash                                    // reclamation
	OpEmpty                                    // recycling
	OpUncommitted                              // shrink policy uncommit
	OpCommittedBypass                          // STW recovery path to Empty Committed
)

// String returns the operation name used in illegal-transition reports.
func (op TransitionOp) String() string {
	switch op {
	case OpRegularAllocation:
		return "regular allocation"
	case OpRegularBypass:
		return "regular bypass"
	case OpHumongousStart:
		return "humongous start"
	case OpHumongousCont:
		return "humongous continuation"
	case OpHumongousStartBypass:
		return "humongous start bypass"
	case OpHumongousContBypass:
		return "humongous continuation bypass"
	case OpPinned:
		return "pinning"
	case OpUnpinned:
		return "unpinning"
	case OpCset:
		return "cset selection"
	case OpTrash:
		return "trashing"
	case OpEmpty:
		return "recycling"
	case OpUncommitted:
		return "uncommit"
	case OpCommittedBypass:
		return "committed bypass"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// transitions is the single source of truth for state legality: for each
// operation it maps every legal source state to its result state. A source
// state absent from an operation's row is an illegal transition and a fatal
// internal error. Bypass operations are cold initialization/recovery paths;
// they skip intermediate protocol steps but still land on table-legal states.
var transitions = map[TransitionOp]map[RegionState]RegionState{
	OpRegularAllocation: {
		StateEmptyUncommitted: StateRegular, // commits first
		StateEmptyCommitted:   StateRegular,
	},
	OpRegularBypass: {
		StateEmptyUncommitted: StateRegular, // commits first
		StateEmptyCommitted:   StateRegular,
		StateCset:             StateRegular,
		StateHumongousStart:   StateRegular,
		StateHumongousCont:    StateRegular,
		StateRegular:          StateRegular,
	},
	OpHumongousStart: {
		StateEmptyCommitted: StateHumongousStart,
	},
	OpHumongousCont: {
		StateEmptyCommitted: StateHumongousCont,
	},
	OpHumongousStartBypass: {
		StateEmptyCommitted: StateHumongousStart,
	},
	OpHumongousContBypass: {
		StateEmptyCommitted: StateHumongousCont,
	},
	OpPinned: {
		StateRegular:              StatePinned,
		StateCset:                 StatePinnedCset,
		StateHumongousStart:       StatePinnedHumongousStart,
		StatePinned:               StatePinned,
		StatePinnedCset:           StatePinnedCset,
		StatePinnedHumongousStart: StatePinnedHumongousStart,
	},
	OpUnpinned: {
		StatePinned:               StateRegular,
		StatePinnedCset:           StateCset,
		StatePinnedHumongousStart: StateHumongousStart,
		StateRegular:              StateRegular,
		StateCset:                 StateCset,
		StateHumongousStart:       StateHumongousStart,
	},
	OpCset: {
		StateRegular: StateCset,
		StateCset:    StateCset,
	},
	OpTrash: {
		StateCset:           StateTrash,
		StateRegular:        StateTrash,
		StateHumongousStart: StateTrash,
		StateHumongousCont:  StateTrash,
	},
	OpEmpty: {
		StateTrash: StateEmptyCommitted,
	},
	OpUncommitted: {
		StateEmptyCommitted: StateEmptyUncommitted,
	},
	OpCommittedBypass: {
		StateEmptyUncommitted: StateEmptyCommitted,
	},
}

// IllegalTransitionError reports an attempted state change outside the
// transition table. It is fatal: heap-wide bookkeeping is assumed corrupt,
// so it is raised as a panic and never coerced or retried.
type IllegalTransitionError struct {
	Region int          // region index
	State  RegionState  // state at the time of the attempt
	Op     TransitionOp // attempted operation
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string { return e.String() }

// String returns the formatted report.
func (e *IllegalTransitionError) String() string {
	return fmt.Sprintf("illegal region transition: %s attempted on region %d in state %q",
		e.Op, e.Region, e.State)
}

// transitionTarget resolves op against the table for the current state.
// The second result is false for illegal pairs.
func transitionTarget(op TransitionOp, from RegionState) (RegionState, bool) {
	row, ok := transitions[op]
	if !ok {
		return 0, false
	}
	to, ok := row[from]
	return to, ok
}
