package tokendistributor

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana/binary"
)

const LockupScheduleStateSize = (1 + // is_initialized
	32 + // initializer
	32 + // token_mint
	8 + // start_timestamp
	8 + // number_periods
	8 + // period_duration
	8 + // total_token_quantity
	8) // token_quantity_locked

var LockupScheduleStateLayout = Layout{
	{Name: "isInitialized", Kind: KindUint8},
	{Name: "initializer", Kind: KindPublicKey},
	{Name: "tokenMint", Kind: KindPublicKey},
	{Name: "startTimestamp", Kind: KindUint64},
	{Name: "numberPeriods", Kind: KindUint64},
	{Name: "periodDuration", Kind: KindUint64},
	{Name: "totalTokenQuantity", Kind: KindUint64},
	{Name: "tokenQuantityLocked", Kind: KindUint64},
}

// LockupScheduleState describes the timing and total quantity of a lockup.
type LockupScheduleState struct {
	IsInitialized       bool
	Initializer         ed25519.PublicKey
	TokenMint           ed25519.PublicKey
	StartTimestamp      uint64
	NumberPeriods       uint64
	PeriodDuration      uint64
	TotalTokenQuantity  uint64
	TokenQuantityLocked uint64
}

func (obj *LockupScheduleState) Marshal() []byte {
	data := make([]byte, LockupScheduleStateSize)

	var offset int
	binary.PutUint8(data, boolToUint8(obj.IsInitialized), &offset)
	binary.PutKey32(data, obj.Initializer, &offset)
	binary.PutKey32(data, obj.TokenMint, &offset)
	binary.PutUint64(data, obj.StartTimestamp, &offset)
	binary.PutUint64(data, obj.NumberPeriods, &offset)
	binary.PutUint64(data, obj.PeriodDuration, &offset)
	binary.PutUint64(data, obj.TotalTokenQuantity, &offset)
	binary.PutUint64(data, obj.TokenQuantityLocked, &offset)

	return data
}

func (obj *LockupScheduleState) Unmarshal(data []byte) error {
	if len(data) != LockupScheduleStateSize {
		return errors.Wrapf(ErrLayoutMismatch, "lockup schedule state must be %d bytes, got %d", LockupScheduleStateSize, len(data))
	}

	var offset int
	var isInitialized uint8
	binary.GetUint8(data, &isInitialized, &offset)
	binary.GetKey32(data, &obj.Initializer, &offset)
	binary.GetKey32(data, &obj.TokenMint, &offset)
	binary.GetUint64(data, &obj.StartTimestamp, &offset)
	binary.GetUint64(data, &obj.NumberPeriods, &offset)
	binary.GetUint64(data, &obj.PeriodDuration, &offset)
	binary.GetUint64(data, &obj.TotalTokenQuantity, &offset)
	binary.GetUint64(data, &obj.TokenQuantityLocked, &offset)
	obj.IsInitialized = isInitialized != 0

	return nil
}

func (obj *LockupScheduleState) ToFields() Fields {
	return Fields{
		{Name: "isInitialized", Value: boolToUint8(obj.IsInitialized)},
		{Name: "initializer", Value: keyOrZero(obj.Initializer)},
		{Name: "tokenMint", Value: keyOrZero(obj.TokenMint)},
		{Name: "startTimestamp", Value: obj.StartTimestamp},
		{Name: "numberPeriods", Value: obj.NumberPeriods},
		{Name: "periodDuration", Value: obj.PeriodDuration},
		{Name: "totalTokenQuantity", Value: obj.TotalTokenQuantity},
		{Name: "tokenQuantityLocked", Value: obj.TokenQuantityLocked},
	}
}

// FromFields populates the record from a field mapping, such as one produced
// by LockupScheduleStateLayout.Decode.
func (obj *LockupScheduleState) FromFields(fields Fields) error {
	data, err := LockupScheduleStateLayout.Encode(fields)
	if err != nil {
		return err
	}
	return obj.Unmarshal(data)
}

// EndTimestamp is the time at which every period has unlocked.
func (obj *LockupScheduleState) EndTimestamp() uint64 {
	return obj.StartTimestamp + obj.NumberPeriods*obj.PeriodDuration
}

func (obj *LockupScheduleState) String() string {
	return fmt.Sprintf(
		"LockupScheduleState{is_initialized=%t, initializer=%s, token_mint=%s, start=%s, number_periods=%d, period_duration=%s, total_token_quantity=%d, token_quantity_locked=%d}",
		obj.IsInitialized,
		encodeKey(obj.Initializer),
		encodeKey(obj.TokenMint),
		time.Unix(int64(obj.StartTimestamp), 0).UTC().Format(time.RFC3339),
		obj.NumberPeriods,
		time.Duration(obj.PeriodDuration)*time.Second,
		obj.TotalTokenQuantity,
		obj.TokenQuantityLocked,
	)
}

func boolToUint8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func keyOrZero(key ed25519.PublicKey) ed25519.PublicKey {
	if len(key) == 0 {
		return make(ed25519.PublicKey, ed25519.PublicKeySize)
	}
	return key
}

func encodeKey(key ed25519.PublicKey) string {
	if len(key) == 0 {
		return ""
	}
	return base58.Encode(key)
}
