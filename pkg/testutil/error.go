package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-distributor/pkg/solana"
)

// AssertCustomError verifies that err carries a transaction error raised by
// the instruction at index with the provided custom program error code.
func AssertCustomError(t *testing.T, err error, index int, code uint32) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "expected a transaction error, got %v", err)

	instructionErr := txErr.InstructionError()
	require.NotNil(t, instructionErr)
	assert.Equal(t, index, instructionErr.Index)

	custom := instructionErr.CustomError()
	require.NotNil(t, custom)
	assert.EqualValues(t, code, *custom)
}
