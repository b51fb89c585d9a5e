package lockup

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

// CreateLockupScheduleParams describes a new lockup schedule.
type CreateLockupScheduleParams struct {
	TokenMint ed25519.PublicKey

	// StartTimestamp is the unix time, in seconds, at which the first period
	// starts. Tokens can only be locked before it.
	StartTimestamp int64

	NumberPeriods uint64

	// PeriodDuration must be a whole, positive number of seconds.
	PeriodDuration time.Duration

	TotalTokenQuantity uint64
}

func (p *CreateLockupScheduleParams) validate() (*tokendistributor.CreateLockupScheduleInstructionArgs, error) {
	if err := validateKey("token mint", p.TokenMint); err != nil {
		return nil, err
	}

	start, err := tokendistributor.Uint64Value(p.StartTimestamp)
	if err != nil {
		return nil, invalidParameter(errors.Wrap(err, "start timestamp"))
	}
	if p.NumberPeriods == 0 {
		return nil, invalidParameter(errors.New("number of periods must be positive"))
	}
	if p.PeriodDuration < time.Second || p.PeriodDuration%time.Second != 0 {
		return nil, invalidParameter(errors.Errorf("period duration must be a whole number of seconds, got %s", p.PeriodDuration))
	}
	if p.TotalTokenQuantity == 0 {
		return nil, invalidParameter(errors.New("total token quantity must be positive"))
	}

	return &tokendistributor.CreateLockupScheduleInstructionArgs{
		StartTimestamp:     start,
		NumberPeriods:      p.NumberPeriods,
		PeriodDuration:     uint64(p.PeriodDuration / time.Second),
		TotalTokenQuantity: p.TotalTokenQuantity,
	}, nil
}

// LockTokensParams describes a lock of Quantity tokens from the wallet's
// SourceTokenAccount for Receiver under an existing schedule.
type LockTokensParams struct {
	LockupScheduleState ed25519.PublicKey
	TokenMint           ed25519.PublicKey
	SourceTokenAccount  ed25519.PublicKey
	Receiver            ed25519.PublicKey
	Quantity            uint64
}

func (p *LockTokensParams) validate() error {
	for _, k := range []struct {
		name string
		key  ed25519.PublicKey
	}{
		{"lockup schedule state", p.LockupScheduleState},
		{"token mint", p.TokenMint},
		{"source token account", p.SourceTokenAccount},
		{"receiver", p.Receiver},
	} {
		if err := validateKey(k.name, k.key); err != nil {
			return err
		}
	}
	if p.Quantity == 0 {
		return invalidParameter(errors.New("quantity must be positive"))
	}
	return nil
}

// validateSchedule checks the lock against the schedule's current state. The
// program only adds to TokenQuantityLocked, so the total is enforced here.
func (p *LockTokensParams) validateSchedule(schedule *tokendistributor.LockupScheduleState) error {
	if !p.TokenMint.Equal(schedule.TokenMint) {
		return invalidParameter(errors.New("token mint does not match the schedule"))
	}

	locked := schedule.TokenQuantityLocked + p.Quantity
	if locked < schedule.TokenQuantityLocked || locked > schedule.TotalTokenQuantity {
		return invalidParameter(errors.Errorf(
			"quantity %d exceeds remaining schedule capacity %d",
			p.Quantity,
			schedule.TotalTokenQuantity-min(schedule.TokenQuantityLocked, schedule.TotalTokenQuantity),
		))
	}
	return nil
}

// RedeemTokensParams identifies a lockup to redeem into ReceivingTokenAccount.
// The wallet must be the lockup's receiving account.
type RedeemTokensParams struct {
	LockupScheduleState   ed25519.PublicKey
	LockupState           ed25519.PublicKey
	LockupTokenAccount    ed25519.PublicKey
	ReceivingTokenAccount ed25519.PublicKey
}

func (p *RedeemTokensParams) validate() error {
	for _, k := range []struct {
		name string
		key  ed25519.PublicKey
	}{
		{"lockup schedule state", p.LockupScheduleState},
		{"lockup state", p.LockupState},
		{"lockup token account", p.LockupTokenAccount},
		{"receiving token account", p.ReceivingTokenAccount},
	} {
		if err := validateKey(k.name, k.key); err != nil {
			return err
		}
	}
	return nil
}

func validateKey(name string, key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return invalidParameter(errors.Errorf("%s must be a %d byte public key", name, ed25519.PublicKeySize))
	}
	return nil
}

func invalidParameter(cause error) error {
	return classify(cause, ErrInvalidParameter)
}
