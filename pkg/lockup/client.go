// Package lockup drives the token distributor program: it assembles, signs
// and submits the create schedule, lock and redeem transactions, waits for
// finality and reads back the resulting state.
package lockup

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

const metricsStructName = "lockup.client"

// Client is safe for concurrent use. Each call generates its own key material
// and shares no mutable state with other calls.
type Client struct {
	log     *logrus.Entry
	conf    *conf
	network Network
	program ed25519.PublicKey
}

func NewClient(network Network, configProvider ConfigProvider) (*Client, error) {
	conf := configProvider()

	programID := conf.programID.Get(context.Background())
	program, err := base58.Decode(programID)
	if err != nil || len(program) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid token distributor program id: %q", programID)
	}

	return &Client{
		log:     logrus.StandardLogger().WithField("type", "lockup/client"),
		conf:    conf,
		network: network,
		program: program,
	}, nil
}

// Program returns the token distributor program the client targets.
func (c *Client) Program() ed25519.PublicKey {
	return c.program
}

// Authority returns the program derived address that owns lockup token
// accounts.
func (c *Client) Authority() (ed25519.PublicKey, error) {
	authority, _, err := tokendistributor.GetAuthorityAddress(c.program)
	return authority, err
}

// ScheduleResult is the outcome of CreateLockupSchedule. Address is always
// set once key material is generated, and Signature once the transaction is
// signed, so callers can re-query after an ErrAmbiguousOutcome.
type ScheduleResult struct {
	Signature solana.Signature
	Address   ed25519.PublicKey
	State     *tokendistributor.LockupScheduleState
}

// LockupResult is the outcome of LockTokens and RedeemTokens.
type LockupResult struct {
	Signature    solana.Signature
	Address      ed25519.PublicKey
	TokenAccount ed25519.PublicKey
	State        *tokendistributor.LockupState
}

func (c *Client) readCommitment(ctx context.Context) solana.Commitment {
	name := c.conf.readCommitment.Get(ctx)
	commitment, err := solana.ParseCommitment(name)
	if err != nil {
		c.log.WithError(err).Warn("invalid read commitment, using finalized")
		return solana.CommitmentFinalized
	}
	return commitment
}
