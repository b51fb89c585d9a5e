package tokendistributor

import (
	"crypto/ed25519"

	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/binary"
)

const (
	LockTokensInstructionArgsSize = 8 // token_quantity

	LockTokensInstructionSize = 1 + LockTokensInstructionArgsSize

	LockTokensInstructionAccountsCount = 8
)

type LockTokensInstructionArgs struct {
	TokenQuantity uint64
}

type LockTokensInstructionAccounts struct {
	Initializer         ed25519.PublicKey
	LockupScheduleState ed25519.PublicKey
	LockupState         ed25519.PublicKey
	Receiver            ed25519.PublicKey
	TempTokenAccount    ed25519.PublicKey
}

func NewLockTokensInstruction(
	program ed25519.PublicKey,
	accounts *LockTokensInstructionAccounts,
	args *LockTokensInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, LockTokensInstructionSize)
	binary.PutUint8(data, uint8(InstructionLockTokens), &offset)
	binary.PutUint64(data, args.TokenQuantity, &offset)

	return solana.Instruction{
		Program: program,

		Data: data,

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Initializer,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.LockupScheduleState,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.LockupState,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Receiver,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TempTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  TOKEN_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_CLOCK_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

func LockTokensInstructionFromBinary(data []byte) (*LockTokensInstructionArgs, error) {
	if len(data) != LockTokensInstructionSize {
		return nil, ErrInvalidInstructionData
	}

	var offset int
	var instructionType uint8
	binary.GetUint8(data, &instructionType, &offset)
	if InstructionType(instructionType) != InstructionLockTokens {
		return nil, ErrInvalidInstructionData
	}

	var args LockTokensInstructionArgs
	binary.GetUint64(data, &args.TokenQuantity, &offset)

	return &args, nil
}

func DecompileLockTokens(
	program ed25519.PublicKey,
	m solana.Message,
	index int,
) (*LockTokensInstructionArgs, *LockTokensInstructionAccounts, error) {
	i, keys, err := compiledInstruction(program, m, index, LockTokensInstructionAccountsCount)
	if err != nil {
		return nil, nil, err
	}

	args, err := LockTokensInstructionFromBinary(i.Data)
	if err != nil {
		return nil, nil, err
	}

	return args, &LockTokensInstructionAccounts{
		Initializer:         keys[0],
		LockupScheduleState: keys[1],
		LockupState:         keys[2],
		Receiver:            keys[3],
		TempTokenAccount:    keys[4],
	}, nil
}
