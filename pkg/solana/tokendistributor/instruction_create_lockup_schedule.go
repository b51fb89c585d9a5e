package tokendistributor

import (
	"crypto/ed25519"

	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/binary"
)

const (
	CreateLockupScheduleInstructionArgsSize = (8 + // start_timestamp
		8 + // number_periods
		8 + // period_duration
		8) // total_token_quantity

	CreateLockupScheduleInstructionSize = 1 + CreateLockupScheduleInstructionArgsSize

	CreateLockupScheduleInstructionAccountsCount = 5
)

type CreateLockupScheduleInstructionArgs struct {
	StartTimestamp     uint64
	NumberPeriods      uint64
	PeriodDuration     uint64
	TotalTokenQuantity uint64
}

type CreateLockupScheduleInstructionAccounts struct {
	Initializer         ed25519.PublicKey
	LockupScheduleState ed25519.PublicKey
	TokenMint           ed25519.PublicKey
}

func NewCreateLockupScheduleInstruction(
	program ed25519.PublicKey,
	accounts *CreateLockupScheduleInstructionAccounts,
	args *CreateLockupScheduleInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, CreateLockupScheduleInstructionSize)
	binary.PutUint8(data, uint8(InstructionCreateLockupSchedule), &offset)
	binary.PutUint64(data, args.StartTimestamp, &offset)
	binary.PutUint64(data, args.NumberPeriods, &offset)
	binary.PutUint64(data, args.PeriodDuration, &offset)
	binary.PutUint64(data, args.TotalTokenQuantity, &offset)

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
				PublicKey:  accounts.TokenMint,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_CLOCK_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

func CreateLockupScheduleInstructionFromBinary(data []byte) (*CreateLockupScheduleInstructionArgs, error) {
	if len(data) != CreateLockupScheduleInstructionSize {
		return nil, ErrInvalidInstructionData
	}

	var offset int
	var instructionType uint8
	binary.GetUint8(data, &instructionType, &offset)
	if InstructionType(instructionType) != InstructionCreateLockupSchedule {
		return nil, ErrInvalidInstructionData
	}

	var args CreateLockupScheduleInstructionArgs
	binary.GetUint64(data, &args.StartTimestamp, &offset)
	binary.GetUint64(data, &args.NumberPeriods, &offset)
	binary.GetUint64(data, &args.PeriodDuration, &offset)
	binary.GetUint64(data, &args.TotalTokenQuantity, &offset)

	return &args, nil
}

func DecompileCreateLockupSchedule(
	program ed25519.PublicKey,
	m solana.Message,
	index int,
) (*CreateLockupScheduleInstructionArgs, *CreateLockupScheduleInstructionAccounts, error) {
	i, keys, err := compiledInstruction(program, m, index, CreateLockupScheduleInstructionAccountsCount)
	if err != nil {
		return nil, nil, err
	}

	args, err := CreateLockupScheduleInstructionFromBinary(i.Data)
	if err != nil {
		return nil, nil, err
	}

	return args, &CreateLockupScheduleInstructionAccounts{
		Initializer:         keys[0],
		LockupScheduleState: keys[1],
		TokenMint:           keys[2],
	}, nil
}
