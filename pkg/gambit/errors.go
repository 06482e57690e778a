package gambit

import (
	"errors"
	"fmt"
)

// Phase-discipline and integrity errors. All are recoverable: the request
// is rejected and the match continues.
var (
	// ErrDuelInProgress: initiate called while a duel is already active.
	ErrDuelInProgress = errors.New("duel already in progress")
	// ErrDuplicateCommit: a side tried to commit twice.
	ErrDuplicateCommit = errors.New("allocation already committed")
	// ErrNotBothCommitted: reveal attempted before both sides committed.
	ErrNotBothCommitted = errors.New("cannot reveal before both sides commit")
	// ErrCommitmentMismatch: revealed amount+nonce does not hash to the
	// stored commitment. Logged upstream as a potential-cheat signal.
	ErrCommitmentMismatch = errors.New("reveal does not match commitment")
)

// AllocationReason codes why a duel allocation was rejected.
type AllocationReason string

const (
	AllocNegative         AllocationReason = "negative"
	AllocOverMax          AllocationReason = "over-max"
	AllocOverCapacity     AllocationReason = "over-capacity"
	AllocInsufficientPool AllocationReason = "insufficient-pool"
)

// AllocationError rejects an allocation amount with a reason code. It
// never includes the opponent's state.
type AllocationError struct {
	Reason AllocationReason
	Amount int
	Limit  int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation %d invalid: %s (limit %d)", e.Amount, e.Reason, e.Limit)
}

// RejectError is a recoverable rejection of a malformed, out-of-turn or
// wrong-phase request. The client may correct and retry.
type RejectError struct {
	Message string
}

func (e *RejectError) Error() string { return e.Message }

func rejectf(format string, args ...any) error {
	return &RejectError{Message: fmt.Sprintf(format, args...)}
}

// FaultError is a fatal engine invariant violation. The match is aborted;
// viewers get a generic failure while the detail goes to operational logs.
type FaultError struct {
	Message string
}

func (e *FaultError) Error() string { return "engine fault: " + e.Message }

func faultf(format string, args ...any) error {
	return &FaultError{Message: fmt.Sprintf(format, args...)}
}
