package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoundNotOpen rejects entries and conclusion attempts while the
	// round is CALCULATING or not yet opened.
	ErrRoundNotOpen = errors.New("round is not open")

	// ErrEmptyLedger guards winner derivation on an empty entry ledger.
	ErrEmptyLedger = errors.New("no entries in the ledger")
)

type InsufficientStakeError struct {
	Amount uint64
	Stake  uint64
}

func (e InsufficientStakeError) Error() string {
	return fmt.Sprintf("insufficient stake: got %d, need at least %d", e.Amount, e.Stake)
}

type ConclusionNotReadyError struct {
	Diagnostic Readiness
}

func (e ConclusionNotReadyError) Error() string {
	return fmt.Sprintf(
		"conclusion not ready: balance %d, participants %d, state %s",
		e.Diagnostic.Balance, e.Diagnostic.Participants, e.Diagnostic.Stage,
	)
}

type TransferFailedError struct {
	Recipient string
	Amount    uint64
	Err       error
}

func (e TransferFailedError) Error() string {
	return fmt.Sprintf("transfer of %d to %s failed: %s", e.Amount, e.Recipient, e.Err)
}

func (e TransferFailedError) Unwrap() error {
	return e.Err
}
