package tokendistributor

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/system"
	"github.com/code-payments/token-distributor/pkg/solana/token"
)

type expectedMeta struct {
	key        ed25519.PublicKey
	isSigner   bool
	isWritable bool
}

func assertAccounts(t *testing.T, expected []expectedMeta, actual []solana.AccountMeta) {
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].key, actual[i].PublicKey, "account %d", i)
		assert.Equal(t, expected[i].isSigner, actual[i].IsSigner, "account %d signer", i)
		assert.Equal(t, expected[i].isWritable, actual[i].IsWritable, "account %d writable", i)
	}
}

func TestCreateLockupScheduleInstruction(t *testing.T) {
	program := generateKey(t)
	accounts := &CreateLockupScheduleInstructionAccounts{
		Initializer:         generateKey(t),
		LockupScheduleState: generateKey(t),
		TokenMint:           generateKey(t),
	}
	args := &CreateLockupScheduleInstructionArgs{
		StartTimestamp:     1000,
		NumberPeriods:      4,
		PeriodDuration:     86400,
		TotalTokenQuantity: 1000000,
	}

	instruction := NewCreateLockupScheduleInstruction(program, accounts, args)
	assert.Equal(t, program, instruction.Program)

	expected := make([]byte, 33)
	binary.LittleEndian.PutUint64(expected[1:], 1000)
	binary.LittleEndian.PutUint64(expected[9:], 4)
	binary.LittleEndian.PutUint64(expected[17:], 86400)
	binary.LittleEndian.PutUint64(expected[25:], 1000000)
	assert.Equal(t, expected, instruction.Data)
	assert.Len(t, instruction.Data, CreateLockupScheduleInstructionSize)

	assertAccounts(t, []expectedMeta{
		{accounts.Initializer, true, false},
		{accounts.LockupScheduleState, false, true},
		{accounts.TokenMint, false, false},
		{system.RentSysVar, false, false},
		{system.ClockSysVar, false, false},
	}, instruction.Accounts)

	decodedArgs, err := CreateLockupScheduleInstructionFromBinary(instruction.Data)
	require.NoError(t, err)
	assert.Equal(t, args, decodedArgs)

	txn := solana.NewTransaction(accounts.Initializer, instruction)
	decodedArgs, decodedAccounts, err := DecompileCreateLockupSchedule(program, txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, args, decodedArgs)
	assert.Equal(t, accounts, decodedAccounts)

	_, _, err = DecompileCreateLockupSchedule(generateKey(t), txn.Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, _, err = DecompileCreateLockupSchedule(program, txn.Message, 1)
	assert.Error(t, err)

	_, err = CreateLockupScheduleInstructionFromBinary(instruction.Data[:32])
	assert.Equal(t, ErrInvalidInstructionData, err)

	wrongType := append([]byte{}, instruction.Data...)
	wrongType[0] = byte(InstructionLockTokens)
	_, err = CreateLockupScheduleInstructionFromBinary(wrongType)
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestLockTokensInstruction(t *testing.T) {
	program := generateKey(t)
	accounts := &LockTokensInstructionAccounts{
		Initializer:         generateKey(t),
		LockupScheduleState: generateKey(t),
		LockupState:         generateKey(t),
		Receiver:            generateKey(t),
		TempTokenAccount:    generateKey(t),
	}
	args := &LockTokensInstructionArgs{TokenQuantity: 123456789}

	instruction := NewLockTokensInstruction(program, accounts, args)

	expected := make([]byte, 9)
	expected[0] = 1
	binary.LittleEndian.PutUint64(expected[1:], 123456789)
	assert.Equal(t, expected, instruction.Data)

	assertAccounts(t, []expectedMeta{
		{accounts.Initializer, true, false},
		{accounts.LockupScheduleState, false, true},
		{accounts.LockupState, false, true},
		{accounts.Receiver, false, false},
		{accounts.TempTokenAccount, false, true},
		{token.ProgramKey, false, false},
		{system.ClockSysVar, false, false},
		{system.RentSysVar, false, false},
	}, instruction.Accounts)

	txn := solana.NewTransaction(accounts.Initializer, instruction)
	decodedArgs, decodedAccounts, err := DecompileLockTokens(program, txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, args, decodedArgs)
	assert.Equal(t, accounts, decodedAccounts)

	_, err = LockTokensInstructionFromBinary([]byte{1})
	assert.Equal(t, ErrInvalidInstructionData, err)

	instruction.Accounts = instruction.Accounts[:7]
	_, _, err = DecompileLockTokens(program, solana.NewTransaction(accounts.Initializer, instruction).Message, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number of accounts")
}

func TestRedeemTokensInstruction(t *testing.T) {
	program := generateKey(t)
	authority, _, err := GetAuthorityAddress(program)
	require.NoError(t, err)

	accounts := &RedeemTokensInstructionAccounts{
		Receiver:              generateKey(t),
		LockupScheduleState:   generateKey(t),
		LockupState:           generateKey(t),
		LockupTokenAccount:    generateKey(t),
		ReceivingTokenAccount: generateKey(t),
		Authority:             authority,
	}

	instruction := NewRedeemTokensInstruction(program, accounts)
	assert.Equal(t, []byte{2}, instruction.Data)

	assertAccounts(t, []expectedMeta{
		{accounts.Receiver, true, true},
		{accounts.LockupScheduleState, false, false},
		{accounts.LockupState, false, true},
		{accounts.LockupTokenAccount, false, true},
		{accounts.ReceivingTokenAccount, false, true},
		{authority, false, false},
		{token.ProgramKey, false, false},
		{system.ClockSysVar, false, false},
	}, instruction.Accounts)

	txn := solana.NewTransaction(accounts.Receiver, instruction)
	assert.EqualValues(t, 1, txn.Message.Header.NumSignatures)

	decodedAccounts, err := DecompileRedeemTokens(program, txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, accounts, decodedAccounts)

	assert.Equal(t, ErrInvalidInstructionData, RedeemTokensInstructionFromBinary([]byte{2, 0}))
	assert.Equal(t, ErrInvalidInstructionData, RedeemTokensInstructionFromBinary([]byte{0}))
	assert.Equal(t, ErrInvalidInstructionData, RedeemTokensInstructionFromBinary(nil))
}

func TestGetInstructionType(t *testing.T) {
	for _, tc := range []struct {
		data     []byte
		expected InstructionType
	}{
		{[]byte{0}, InstructionCreateLockupSchedule},
		{[]byte{1, 2, 3}, InstructionLockTokens},
		{[]byte{2}, InstructionRedeemTokens},
	} {
		actual, err := GetInstructionType(tc.data)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}

	for _, data := range [][]byte{nil, {3}, {255}} {
		_, err := GetInstructionType(data)
		assert.Equal(t, ErrInvalidInstructionData, err)
	}

	assert.Equal(t, "RedeemTokens", InstructionRedeemTokens.String())
}
