package tokendistributor

import (
	"crypto/ed25519"

	"github.com/code-payments/token-distributor/pkg/solana"
)

var authorityPrefix = []byte("tokenDistributor")

// GetAuthorityAddress derives the program address that owns every lockup
// token account of program.
func GetAuthorityAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		program,
		authorityPrefix,
	)
}
