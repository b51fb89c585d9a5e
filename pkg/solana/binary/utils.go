// Package binary provides offset-tracking helpers for reading and writing the
// fixed little-endian account and instruction layouts used by on-chain
// programs. Every helper advances *offset by the number of bytes consumed so
// that layouts can be expressed as a flat sequence of calls.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

const (
	Uint8Size  = 1
	Uint32Size = 4
	Uint64Size = 8
	Key32Size  = ed25519.PublicKeySize
)

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset += Uint8Size
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], v)
	*offset += Uint32Size
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += Uint64Size
}

// PutKey32 writes a 32 byte public key. A nil key is written as zeros.
func PutKey32(dst []byte, key []byte, offset *int) {
	copy(dst[*offset:*offset+Key32Size], key)
	*offset += Key32Size
}

// PutOptionalKey32 writes a COption<Pubkey> with an optionSize byte tag.
func PutOptionalKey32(dst []byte, key []byte, offset *int, optionSize int) {
	if len(key) > 0 {
		dst[*offset] = 1
		copy(dst[*offset+optionSize:], key)
	}
	*offset += optionSize + Key32Size
}

// PutOptionalUint64 writes a COption<u64> with an optionSize byte tag.
func PutOptionalUint64(dst []byte, v *uint64, offset *int, optionSize int) {
	if v != nil {
		dst[*offset] = 1
		binary.LittleEndian.PutUint64(dst[*offset+optionSize:], *v)
	}
	*offset += optionSize + Uint64Size
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[*offset]
	*offset += Uint8Size
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src[*offset:])
	*offset += Uint32Size
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += Uint64Size
}

// GetKey32 reads a 32 byte public key into a freshly allocated slice.
func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make(ed25519.PublicKey, Key32Size)
	copy(*dst, src[*offset:*offset+Key32Size])
	*offset += Key32Size
}

func GetOptionalKey32(src []byte, dst *ed25519.PublicKey, offset *int, optionSize int) {
	if src[*offset] == 1 {
		*dst = make(ed25519.PublicKey, Key32Size)
		copy(*dst, src[*offset+optionSize:])
	}
	*offset += optionSize + Key32Size
}

func GetOptionalUint64(src []byte, dst **uint64, offset *int, optionSize int) {
	if src[*offset] == 1 {
		val := binary.LittleEndian.Uint64(src[*offset+optionSize:])
		*dst = &val
	}
	*offset += optionSize + Uint64Size
}
