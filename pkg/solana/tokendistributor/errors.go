package tokendistributor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana"
)

// ProgramError is a custom error returned by the token distributor program.
type ProgramError uint32

const (
	ErrInvalidInstruction ProgramError = iota
	ErrInvalidLockupScheduleData
	ErrNotRentExempt
	ErrInvalidStartTimestamp
	ErrInvalidMint
	ErrExpectedAmountMismatch
	ErrUnauthorizedAccount
	ErrIncorrectSchedule
	ErrIncorrectOwner
)

var programErrorNames = map[ProgramError]string{
	ErrInvalidInstruction:        "invalid instruction",
	ErrInvalidLockupScheduleData: "invalid lockup schedule data",
	ErrNotRentExempt:             "account not rent exempt",
	ErrInvalidStartTimestamp:     "start timestamp is in the past",
	ErrInvalidMint:               "token account mint does not match schedule",
	ErrExpectedAmountMismatch:    "token account amount does not match lock quantity",
	ErrUnauthorizedAccount:       "signer is not the lockup receiver",
	ErrIncorrectSchedule:         "lockup does not belong to schedule",
	ErrIncorrectOwner:            "incorrect account owner",
}

func (e ProgramError) Error() string {
	if name, ok := programErrorNames[e]; ok {
		return fmt.Sprintf("token distributor: %s (0x%x)", name, uint32(e))
	}
	return fmt.Sprintf("token distributor: unknown error (0x%x)", uint32(e))
}

// Known reports whether the code is one the program defines.
func (e ProgramError) Known() bool {
	_, ok := programErrorNames[e]
	return ok
}

// ParseProgramError extracts the program error from err, which is typically
// a *solana.TransactionError returned by transaction submission or status
// lookup. The boolean is false when err carries no custom program error.
//
// Custom errors raised by other programs in the same transaction (e.g. the
// token program) are indistinguishable by code alone, so callers should check
// the failing instruction index when it matters.
func ParseProgramError(err error) (ProgramError, int, bool) {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) {
		return 0, 0, false
	}

	instructionErr := txErr.InstructionError()
	if instructionErr == nil {
		return 0, 0, false
	}

	custom := instructionErr.CustomError()
	if custom == nil {
		return 0, 0, false
	}
	return ProgramError(*custom), instructionErr.Index, true
}
