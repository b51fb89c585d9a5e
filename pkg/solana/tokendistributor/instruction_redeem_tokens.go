package tokendistributor

import (
	"crypto/ed25519"

	"github.com/code-payments/token-distributor/pkg/solana"
)

const (
	RedeemTokensInstructionSize = 1

	RedeemTokensInstructionAccountsCount = 8
)

type RedeemTokensInstructionAccounts struct {
	Receiver              ed25519.PublicKey
	LockupScheduleState   ed25519.PublicKey
	LockupState           ed25519.PublicKey
	LockupTokenAccount    ed25519.PublicKey
	ReceivingTokenAccount ed25519.PublicKey
	Authority             ed25519.PublicKey
}

// NewRedeemTokensInstruction builds a redeem. Authority must be the program
// derived address returned by GetAuthorityAddress.
func NewRedeemTokensInstruction(
	program ed25519.PublicKey,
	accounts *RedeemTokensInstructionAccounts,
) solana.Instruction {
	return solana.Instruction{
		Program: program,

		Data: []byte{uint8(InstructionRedeemTokens)},

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Receiver,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.LockupScheduleState,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.LockupState,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.LockupTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.ReceivingTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Authority,
				IsWritable: false,
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
		},
	}
}

func RedeemTokensInstructionFromBinary(data []byte) error {
	if len(data) != RedeemTokensInstructionSize || InstructionType(data[0]) != InstructionRedeemTokens {
		return ErrInvalidInstructionData
	}
	return nil
}

func DecompileRedeemTokens(
	program ed25519.PublicKey,
	m solana.Message,
	index int,
) (*RedeemTokensInstructionAccounts, error) {
	i, keys, err := compiledInstruction(program, m, index, RedeemTokensInstructionAccountsCount)
	if err != nil {
		return nil, err
	}

	if err := RedeemTokensInstructionFromBinary(i.Data); err != nil {
		return nil, err
	}

	return &RedeemTokensInstructionAccounts{
		Receiver:              keys[0],
		LockupScheduleState:   keys[1],
		LockupState:           keys[2],
		LockupTokenAccount:    keys[3],
		ReceivingTokenAccount: keys[4],
		Authority:             keys[5],
	}, nil
}
