package tokendistributor

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana"
)

// compiledInstruction resolves the instruction at index in m, checking that
// it invokes program with the expected number of accounts.
func compiledInstruction(program ed25519.PublicKey, m solana.Message, index, accountCount int) (solana.CompiledInstruction, []ed25519.PublicKey, error) {
	if index < 0 || index >= len(m.Instructions) {
		return solana.CompiledInstruction{}, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if int(i.ProgramIndex) >= len(m.Accounts) || !bytes.Equal(m.Accounts[i.ProgramIndex], program) {
		return i, nil, solana.ErrIncorrectProgram
	}
	if len(i.Accounts) != accountCount {
		return i, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	keys := make([]ed25519.PublicKey, len(i.Accounts))
	for j, accountIndex := range i.Accounts {
		if int(accountIndex) >= len(m.Accounts) {
			return i, nil, errors.Errorf("invalid account index: %d", accountIndex)
		}
		keys[j] = m.Accounts[accountIndex]
	}
	return i, keys, nil
}
