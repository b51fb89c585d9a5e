package lockup

import (
	"context"
	"crypto/ed25519"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana"
)

// Wallet is a signing capability with a public identity. Every operation
// receives the wallet explicitly.
type Wallet interface {
	PublicKey() ed25519.PublicKey

	// SignTransaction adds the wallet's signature to txn. Other signatures
	// already present must be preserved.
	SignTransaction(ctx context.Context, txn *solana.Transaction) error
}

// KeypairWallet is a Wallet backed by a local private key.
type KeypairWallet struct {
	key ed25519.PrivateKey
}

func NewKeypairWallet(key ed25519.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// ParseKeypairWallet parses a keypair in the Solana CLI format: a JSON array
// of the 64 private key bytes.
func ParseKeypairWallet(raw []byte) (*KeypairWallet, error) {
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrap(err, "failed to parse keypair file")
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("keypair must have %d bytes, got %d", ed25519.PrivateKeySize, len(values))
	}

	key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid keypair byte at %d", i)
		}
		key[i] = byte(v)
	}

	derived := ed25519.NewKeyFromSeed(key.Seed())
	if !derived.Equal(key) {
		return nil, errors.New("keypair public key does not match seed")
	}

	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) PublicKey() ed25519.PublicKey {
	return w.key.Public().(ed25519.PublicKey)
}

func (w *KeypairWallet) SignTransaction(ctx context.Context, txn *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return txn.Sign(w.key)
}
