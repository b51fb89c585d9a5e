package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

var (
	// ProgramKey is the system program, which is also the owner of every
	// unallocated account.
	//
	// https://explorer.solana.com/address/11111111111111111111111111111111
	ProgramKey = mustDecode("11111111111111111111111111111111")

	// RentSysVar points to the system variable "Rent"
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
	RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")

	// ClockSysVar points to the system variable "Clock"
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/clock.rs
	ClockSysVar = mustDecode("SysvarC1ock11111111111111111111111111111111")
)

func mustDecode(s string) ed25519.PublicKey {
	b, err := base58.Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}
