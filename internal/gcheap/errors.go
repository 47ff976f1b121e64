package gcheap

import "fmt"

// CommitError reports a refused commit by the virtual-memory provider. It is
// recoverable in the sense that heap metadata stays intact: the region
// remains Empty Uncommitted and the error propagates unmasked to the caller,
// which decides whether the whole allocation fails.
type CommitError struct {
	Region int     // region index
	Words  uintptr // words requested
	Cause  error   // provider error
}

// Error implements the error interface.
func (e *CommitError) Error() string { return e.String() }

// String returns the formatted report.
func (e *CommitError) String() string {
	return fmt.Sprintf("commit of region %d (%d words) failed: %v", e.Region, e.Words, e.Cause)
}

// Unwrap exposes the provider error.
func (e *CommitError) Unwrap() error { return e.Cause }
