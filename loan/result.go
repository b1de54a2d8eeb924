package loan

import (
	"fmt"
	"time"
)

// ValidationError is a locally-detected policy violation. It is raised before
// any network call goes out and is always recoverable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BorrowItem is one candidate in a batch. The title travels with the id so
// results can be reported by book title without a second lookup.
type BorrowItem struct {
	BookID int64
	Title  string
}

// BorrowBatchRequest is the ephemeral input of a batch borrow.
type BorrowBatchRequest struct {
	Items   []BorrowItem
	UserID  int64
	DueDate time.Time
}

type BorrowFailure struct {
	Title  string
	Reason string
}

// BorrowBatchResult partitions a batch into what went through, what the
// server rejected, and what was skipped because an active loan for the same
// book already exists.
type BorrowBatchResult struct {
	Succeeded []string
	Failed    []BorrowFailure
	Skipped   []string
}

type Outcome string

const (
	OutcomeFullSuccess    Outcome = "full-success"
	OutcomePartialSuccess Outcome = "partial-success"
	OutcomeFullFailure    Outcome = "full-failure"
	OutcomeNothingToDo    Outcome = "nothing-to-do"
)

// Outcome classifies the result the way the user sees it. The three-way
// success/partial/failure split is part of the contract with the caller.
func (r *BorrowBatchResult) Outcome() Outcome {
	switch {
	case len(r.Succeeded) > 0 && len(r.Failed) == 0:
		return OutcomeFullSuccess
	case len(r.Succeeded) > 0:
		return OutcomePartialSuccess
	case len(r.Failed) > 0:
		return OutcomeFullFailure
	default:
		return OutcomeNothingToDo
	}
}
