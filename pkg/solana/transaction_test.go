package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Taken from: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const rustGenerated = "AUc7Cbu+gZalFSGeSFdukHhP7oSGaSdmdNEd5ZokaSysdoMWfIOzjrAbdaBZZuDMAfyNAogAJdrhgVya+jthsgoBAAEDnON0wdcmjhYIDuXvd10F2qEjAyEAJGSe/CGhYbk+WWMBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

// rustGenerated re-signed with a keypair whose embedded public key matches its seed.
const rustGeneratedAdjusted = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

// A legacy mainnet transaction.
const mainnetLegacy = "AaZAGNONKTsNypCfvwHGipcWmAX/J03VfLQEHgMDSuHz0ktydqlLb7I4tZnX0Yw8KMTbma28M+yiZPaRolOJGgwBAAgQCR2hNbdxjAiYwC9CSEo2Vso3yq8OXlgoCbepyseaRXoIFE8MTz2ZtOsdNl55fj/zi0S+ArjIP4zJ3Y+MC4tKyQu7s1JPy6Hur6YbU0nF+1XBJYwii/dKtLsNFU/pTo19J7jOgutpJBZbNIhC5ppqC/OYlbzW1KqamkV3p+cslAoyBJxvWrSMXX+X0Ih0+sEzarslIYSV0T/NuLFcjpX8S7ajCdht+3+POhvGcGFzDyc4kIgjN/SAdypJM1Grs+eEtzXhQGM4VMy0p0J2CiOH+k2kwfya5F7fSaYXWOi3CJUGp9UXGSxWjuCKhF9z0peIzwNcMUWyGrNE2AYuqUAAAAan1RcZLFxRIYzJTD1K8X9Y2u4Im6H9ROPb2YoAAAAABt324ddloZPZy+FGzut5rBy0he1fWzeROoz1hX7/AKlDDB9w5G7eh4xhLJIgxblM0E4dxW+ZTABRcCVBt2LcH8b6evO+2606PWXzaqvJdDGxu+TC0vbg5HymAgNFL11hDcYoaKd+VYB6HNWIyaKadms+4q7NwH3gjP6RB91LMWUAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAMGRm/lIRcy/+ytunLDm+e8jOW7xfcSayxDmzpAAAAAjJclj04kifG7PRApFI4NgwtaE5na/xCEBI572Nvp+FmMVCZzhQC2pwD9u6aAm8haUDNRSZG/a7c1U/ltYtc+KAUNAwIHAAQEAAAADgAJA+gDAAAAAAAADgAFAkjoAQAPBwADCgsNCQgBAQwLAAUBBAwMBgwMAwlcCAoCAAAAmhMJCgIAAAAAAUgAAABlmEW1THFmZqyjBehuSli5bMSJBNiQMkZcr19LINSM4KF/whE1IayV174tmVwC9MMlQSmG3j6aJVhIDGMUITUNXRMTAAAAAAA="

var (
	crossImplProgram = ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4, 2, 2, 2}
	crossImplTo      = ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}
)

func crossImplTransaction(signer ed25519.PrivateKey) Transaction {
	pub := signer.Public().(ed25519.PublicKey)
	return NewTransaction(
		pub,
		NewInstruction(
			crossImplProgram,
			[]byte{1, 2, 3},
			NewAccountMeta(pub, true),
			NewAccountMeta(crossImplTo, false),
		),
	)
}

func TestTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.PrivateKey{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75, 156, 227, 116, 193, 215, 38, 142, 22, 8,
		14, 229, 239, 119, 93, 5, 218, 161, 35, 3, 33, 0, 36, 100, 158, 252, 33, 161, 97, 185,
		62, 89, 99}

	tx := crossImplTransaction(keypair)
	require.NoError(t, tx.Sign(keypair))

	generated, err := base64.StdEncoding.DecodeString(rustGenerated)
	require.NoError(t, err)
	assert.Equal(t, generated, tx.Marshal())

	var decoded Transaction
	require.NoError(t, decoded.Unmarshal(generated))
	assert.Equal(t, tx, decoded)
}

func TestTransaction_GenerateValidCrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})

	tx := crossImplTransaction(keypair)
	require.NoError(t, tx.Sign(keypair))
	assert.Equal(t, rustGeneratedAdjusted, base64.StdEncoding.EncodeToString(tx.Marshal()))
	assert.NoError(t, tx.VerifySignatures())
}

func TestTransaction_MarshalRoundTrip(t *testing.T) {
	decoded, err := base64.StdEncoding.DecodeString(mainnetLegacy)
	require.NoError(t, err)

	var txn Transaction
	require.NoError(t, txn.Unmarshal(decoded))
	assert.Equal(t, decoded, txn.Marshal())
}

func TestTransaction_EmptyAccount(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), []byte{1, 2, 3}, NewAccountMeta(nil, false)),
	)
	require.NoError(t, tx.Sign(keys[0]))
	assert.Equal(t, []byte{1}, tx.Message.Instructions[0].Accounts)
	assert.Equal(t, make(ed25519.PublicKey, ed25519.PublicKeySize), tx.Message.Accounts[1])

	var rtt Transaction
	assert.NoError(t, rtt.Unmarshal(tx.Marshal()))
}

func TestTransaction_InvalidEncodings(t *testing.T) {
	keys := generateKeys(t, 2)
	newTx := func() Transaction {
		return NewTransaction(
			public(keys[0]),
			NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)),
		)
	}

	tx := newTx()
	tx.Message.Instructions[0].ProgramIndex = 2
	assert.Error(t, new(Transaction).Unmarshal(tx.Marshal()))

	tx = newTx()
	tx.Message.Instructions[0].Accounts = []byte{2}
	assert.Error(t, new(Transaction).Unmarshal(tx.Marshal()))

	tx = newTx()
	encoded := tx.Marshal()
	assert.Error(t, new(Transaction).Unmarshal(encoded[:len(encoded)-1]))
	assert.Error(t, new(Transaction).Unmarshal(append(encoded, 0)))

	// One signature slot short of the header
	tx = newTx()
	tx.Signatures = nil
	assert.Error(t, new(Transaction).Unmarshal(tx.Marshal()))

	// Versioned messages set the high bit of the first byte
	message := tx.Message.Marshal()
	message = append([]byte{0x80}, message...)
	assert.Error(t, new(Message).Unmarshal(message))
	assert.Error(t, new(Message).Unmarshal(nil))
}

func TestTransaction_SingleInstruction(t *testing.T) {
	payer, program := generateKey(t), generateKey(t)
	keys := generateKeys(t, 4)
	data := []byte{1, 2, 3}

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
	)

	// Signing order does not matter
	require.NoError(t, tx.Sign(keys[0], keys[3], payer))

	require.Len(t, tx.Signatures, 3)
	require.Len(t, tx.Message.Accounts, 6)
	assert.EqualValues(t, 3, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 2, tx.Message.Header.NumReadOnly)

	message := tx.Message.Marshal()
	assert.True(t, ed25519.Verify(public(payer), message, tx.Signatures[0][:]))
	assert.True(t, ed25519.Verify(public(keys[3]), message, tx.Signatures[1][:]))
	assert.True(t, ed25519.Verify(public(keys[0]), message, tx.Signatures[2][:]))

	assert.Equal(t, []ed25519.PublicKey{
		public(payer),
		public(keys[3]),
		public(keys[0]),
		public(keys[2]),
		public(keys[1]),
		public(program),
	}, tx.Message.Accounts)

	assert.Equal(t, byte(5), tx.Message.Instructions[0].ProgramIndex)
	assert.Equal(t, data, tx.Message.Instructions[0].Data)
	assert.Equal(t, []byte{2, 4, 3, 1}, tx.Message.Instructions[0].Accounts)
	assert.Equal(t, tx.Signatures[0], tx.Signature())
}

func TestTransaction_DuplicateKeys(t *testing.T) {
	payer, program := generateKey(t), generateKey(t)
	keys := generateKeys(t, 4)
	data := []byte{1, 2, 3}

	// keys[0]: readonly signer -> writable signer
	// keys[1]: readonly        -> readonly signer
	// keys[2]: writable        -> writable (readonly is a noop)
	// keys[3]: writable signer -> writable signer (readonly is a noop)
	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
			NewAccountMeta(public(keys[0]), false),
			NewReadonlyAccountMeta(public(keys[1]), true),
			NewReadonlyAccountMeta(public(keys[2]), false),
			NewReadonlyAccountMeta(public(keys[3]), false),
		),
	)
	require.NoError(t, tx.Sign(keys[0], keys[1], keys[3], payer))

	require.Len(t, tx.Signatures, 4)
	assert.EqualValues(t, 4, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadOnly)

	assert.Equal(t, []ed25519.PublicKey{
		public(payer),
		public(keys[0]),
		public(keys[3]),
		public(keys[1]),
		public(keys[2]),
		public(program),
	}, tx.Message.Accounts)

	assert.Equal(t, byte(5), tx.Message.Instructions[0].ProgramIndex)
	assert.Equal(t, []byte{1, 3, 4, 2, 1, 3, 4, 2}, tx.Message.Instructions[0].Accounts)
	assert.NoError(t, tx.VerifySignatures())
}

func TestTransaction_MultiInstruction(t *testing.T) {
	payer, program, program2 := generateKey(t), generateKey(t), generateKey(t)
	keys := generateKeys(t, 6)
	data := []byte{1, 2, 3}
	data2 := []byte{3, 4, 5}

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program2),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
		NewInstruction(
			public(program),
			data2,
			// Permissions are never downgraded
			NewReadonlyAccountMeta(public(keys[3]), false),
			NewReadonlyAccountMeta(public(keys[2]), false),
			// but can be upgraded
			NewAccountMeta(public(keys[0]), false),
			NewAccountMeta(public(keys[1]), true),
			NewAccountMeta(public(keys[4]), true),
			NewReadonlyAccountMeta(public(keys[5]), false),
		),
	)
	require.NoError(t, tx.Sign(payer, keys[0], keys[1], keys[3], keys[4]))

	require.Len(t, tx.Signatures, 5)
	assert.EqualValues(t, 5, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 0, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 3, tx.Message.Header.NumReadOnly)

	assert.Equal(t, []ed25519.PublicKey{
		public(payer),
		public(keys[0]),
		public(keys[1]),
		public(keys[3]),
		public(keys[4]),
		public(keys[2]),
		public(keys[5]),
		public(program2),
		public(program),
	}, tx.Message.Accounts)

	// Instruction order is preserved
	assert.Equal(t, byte(7), tx.Message.Instructions[0].ProgramIndex)
	assert.Equal(t, data, tx.Message.Instructions[0].Data)
	assert.Equal(t, []byte{1, 2, 5, 3}, tx.Message.Instructions[0].Accounts)

	assert.Equal(t, byte(8), tx.Message.Instructions[1].ProgramIndex)
	assert.Equal(t, data2, tx.Message.Instructions[1].Data)
	assert.Equal(t, []byte{3, 5, 1, 2, 4, 6}, tx.Message.Instructions[1].Accounts)

	assert.NoError(t, tx.VerifySignatures())
}

func TestTransaction_PartialSigning(t *testing.T) {
	payer, program, generated := generateKey(t), generateKey(t), generateKey(t)

	tx := NewTransaction(
		public(payer),
		NewInstruction(public(program), []byte{0}, NewAccountMeta(public(generated), true)),
	)
	tx.SetBlockhash(Blockhash{1, 2, 3})

	assert.Equal(t, []ed25519.PublicKey{public(payer), public(generated)}, tx.MissingSigners())
	assert.Error(t, tx.VerifySignatures())

	require.NoError(t, tx.Sign(generated))
	assert.Equal(t, []ed25519.PublicKey{public(payer)}, tx.MissingSigners())
	assert.ErrorIs(t, tx.VerifySignatures(), ErrInvalidSignature)

	// The payer signs last, without disturbing the earlier signature
	generatedSig := tx.Signatures[1]
	require.NoError(t, tx.Sign(payer))
	assert.Empty(t, tx.MissingSigners())
	assert.NoError(t, tx.VerifySignatures())
	assert.Equal(t, generatedSig, tx.Signatures[1])
	assert.Equal(t, tx.Signatures[0], tx.Signature())

	outsider := generateKey(t)
	assert.ErrorIs(t, tx.Sign(outsider), ErrUnknownSigner)
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func generateKey(t *testing.T) ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv
}

func generateKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, amount)
	for i := range keys {
		keys[i] = generateKey(t)
	}
	return keys
}
