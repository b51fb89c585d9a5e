package tokendistributor

import (
	"crypto/ed25519"
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana/binary"
)

const LockupStateSize = (1 + // is_initialized
	32 + // lockup_schedule_state
	32 + // receiving_account
	32 + // lockup_token_account
	8 + // token_quantity
	8) // periods_redeemed

var LockupStateLayout = Layout{
	{Name: "isInitialized", Kind: KindUint8},
	{Name: "lockupScheduleState", Kind: KindPublicKey},
	{Name: "receivingAccount", Kind: KindPublicKey},
	{Name: "lockupTokenAccount", Kind: KindPublicKey},
	{Name: "tokenQuantity", Kind: KindUint64},
	{Name: "periodsRedeemed", Kind: KindUint64},
}

// LockupState is a single receiver's allocation against a schedule.
type LockupState struct {
	IsInitialized       bool
	LockupScheduleState ed25519.PublicKey
	ReceivingAccount    ed25519.PublicKey
	LockupTokenAccount  ed25519.PublicKey
	TokenQuantity       uint64
	PeriodsRedeemed     uint64
}

func (obj *LockupState) Marshal() []byte {
	data := make([]byte, LockupStateSize)

	var offset int
	binary.PutUint8(data, boolToUint8(obj.IsInitialized), &offset)
	binary.PutKey32(data, obj.LockupScheduleState, &offset)
	binary.PutKey32(data, obj.ReceivingAccount, &offset)
	binary.PutKey32(data, obj.LockupTokenAccount, &offset)
	binary.PutUint64(data, obj.TokenQuantity, &offset)
	binary.PutUint64(data, obj.PeriodsRedeemed, &offset)

	return data
}

func (obj *LockupState) Unmarshal(data []byte) error {
	if len(data) != LockupStateSize {
		return errors.Wrapf(ErrLayoutMismatch, "lockup state must be %d bytes, got %d", LockupStateSize, len(data))
	}

	var offset int
	var isInitialized uint8
	binary.GetUint8(data, &isInitialized, &offset)
	binary.GetKey32(data, &obj.LockupScheduleState, &offset)
	binary.GetKey32(data, &obj.ReceivingAccount, &offset)
	binary.GetKey32(data, &obj.LockupTokenAccount, &offset)
	binary.GetUint64(data, &obj.TokenQuantity, &offset)
	binary.GetUint64(data, &obj.PeriodsRedeemed, &offset)
	obj.IsInitialized = isInitialized != 0

	return nil
}

func (obj *LockupState) ToFields() Fields {
	return Fields{
		{Name: "isInitialized", Value: boolToUint8(obj.IsInitialized)},
		{Name: "lockupScheduleState", Value: keyOrZero(obj.LockupScheduleState)},
		{Name: "receivingAccount", Value: keyOrZero(obj.ReceivingAccount)},
		{Name: "lockupTokenAccount", Value: keyOrZero(obj.LockupTokenAccount)},
		{Name: "tokenQuantity", Value: obj.TokenQuantity},
		{Name: "periodsRedeemed", Value: obj.PeriodsRedeemed},
	}
}

func (obj *LockupState) FromFields(fields Fields) error {
	data, err := LockupStateLayout.Encode(fields)
	if err != nil {
		return err
	}
	return obj.Unmarshal(data)
}

func (obj *LockupState) String() string {
	return fmt.Sprintf(
		"LockupState{is_initialized=%t, lockup_schedule_state=%s, receiving_account=%s, lockup_token_account=%s, token_quantity=%d, periods_redeemed=%d}",
		obj.IsInitialized,
		encodeKey(obj.LockupScheduleState),
		encodeKey(obj.ReceivingAccount),
		encodeKey(obj.LockupTokenAccount),
		obj.TokenQuantity,
		obj.PeriodsRedeemed,
	)
}
