// Package tokendistributor encodes the accounts and instructions of the token
// distributor lockup program.
package tokendistributor

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana/system"
	"github.com/code-payments/token-distributor/pkg/solana/token"
)

var (
	// ErrLayoutMismatch is returned when a buffer or field set does not match
	// the declared layout.
	ErrLayoutMismatch = errors.New("layout mismatch")

	// ErrEncodingRange is returned when a numeric value can't be represented
	// by the target field.
	ErrEncodingRange = errors.New("value out of encoding range")

	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

// DefaultProgramAddress is the deployment of the token distributor program
// used when no other program is configured.
const DefaultProgramAddress = "DkhCGxQnQRh7e68ZQjjYABktGi1rG4HEMjdFL45TNQY6"

var DefaultProgramKey = mustBase58Decode(DefaultProgramAddress)

var (
	TOKEN_PROGRAM_ID    = token.ProgramKey
	SYSVAR_RENT_PUBKEY  = system.RentSysVar
	SYSVAR_CLOCK_PUBKEY = system.ClockSysVar
)

type InstructionType uint8

const (
	InstructionCreateLockupSchedule InstructionType = iota
	InstructionLockTokens
	InstructionRedeemTokens
)

func (t InstructionType) String() string {
	switch t {
	case InstructionCreateLockupSchedule:
		return "CreateLockupSchedule"
	case InstructionLockTokens:
		return "LockTokens"
	case InstructionRedeemTokens:
		return "RedeemTokens"
	}
	return "Unknown"
}

// GetInstructionType returns the instruction type of raw instruction data.
func GetInstructionType(data []byte) (InstructionType, error) {
	if len(data) == 0 {
		return 0, ErrInvalidInstructionData
	}
	t := InstructionType(data[0])
	if t > InstructionRedeemTokens {
		return 0, ErrInvalidInstructionData
	}
	return t, nil
}

func mustBase58Decode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		panic("invalid public key length")
	}
	return decoded
}
