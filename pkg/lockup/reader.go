package lockup

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/metrics"
	"github.com/code-payments/token-distributor/pkg/solana"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

// GetLockupSchedule reads and decodes an initialized schedule account.
// ErrAccountNotReady is returned when the account does not exist yet, is not
// owned by the program, or is not initialized.
func (c *Client) GetLockupSchedule(ctx context.Context, address ed25519.PublicKey) (*tokendistributor.LockupScheduleState, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLockupSchedule")
	defer tracer.End()

	data, err := c.readProgramAccount(ctx, address, tokendistributor.LockupScheduleStateSize)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var state tokendistributor.LockupScheduleState
	if err := state.Unmarshal(data); err != nil {
		return nil, classify(err, ErrAccountNotReady)
	}
	if !state.IsInitialized {
		return nil, classify(errors.Errorf("schedule %s is not initialized", base58.Encode(address)), ErrAccountNotReady)
	}
	return &state, nil
}

// GetLockup reads and decodes an initialized lockup account.
func (c *Client) GetLockup(ctx context.Context, address ed25519.PublicKey) (*tokendistributor.LockupState, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLockup")
	defer tracer.End()

	data, err := c.readProgramAccount(ctx, address, tokendistributor.LockupStateSize)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var state tokendistributor.LockupState
	if err := state.Unmarshal(data); err != nil {
		return nil, classify(err, ErrAccountNotReady)
	}
	if !state.IsInitialized {
		return nil, classify(errors.Errorf("lockup %s is not initialized", base58.Encode(address)), ErrAccountNotReady)
	}
	return &state, nil
}

// EstimateRedemption reads a lockup and its schedule and computes what a
// RedeemTokens submitted at now would transfer.
func (c *Client) EstimateRedemption(ctx context.Context, lockupAddress ed25519.PublicKey, now time.Time) (*tokendistributor.Redemption, error) {
	if err := validateKey("lockup state", lockupAddress); err != nil {
		return nil, err
	}

	lockup, err := c.GetLockup(ctx, lockupAddress)
	if err != nil {
		return nil, err
	}

	schedule, err := c.GetLockupSchedule(ctx, lockup.LockupScheduleState)
	if err != nil {
		return nil, err
	}

	return tokendistributor.EstimateRedemption(schedule, lockup, now)
}

func (c *Client) readProgramAccount(ctx context.Context, address ed25519.PublicKey, size int) ([]byte, error) {
	if err := validateKey("account", address); err != nil {
		return nil, err
	}

	info, err := c.network.GetAccountInfo(ctx, address, c.readCommitment(ctx))
	if err == solana.ErrNoAccountInfo {
		return nil, classify(errors.Errorf("account %s not found", base58.Encode(address)), ErrAccountNotReady)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to get account info for %s", base58.Encode(address))
	}

	if !bytes.Equal(info.Owner, c.program) {
		return nil, classify(errors.Errorf("account %s is owned by %s", base58.Encode(address), base58.Encode(info.Owner)), ErrAccountNotReady)
	}
	if len(info.Data) != size {
		return nil, classify(errors.Wrapf(tokendistributor.ErrLayoutMismatch, "account %s has %d bytes, expected %d", base58.Encode(address), len(info.Data), size), ErrAccountNotReady)
	}
	return info.Data, nil
}
