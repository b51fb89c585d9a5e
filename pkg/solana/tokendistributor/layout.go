package tokendistributor

import (
	"crypto/ed25519"
	"math"
	"math/big"

	"github.com/pkg/errors"

	"github.com/code-payments/token-distributor/pkg/solana/binary"
)

// Kind is the wire type of a layout field.
type Kind uint8

const (
	KindUint8 Kind = iota
	KindUint64
	KindPublicKey
)

func (k Kind) Size() int {
	switch k {
	case KindUint8:
		return binary.Uint8Size
	case KindUint64:
		return binary.Uint64Size
	case KindPublicKey:
		return binary.Key32Size
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindUint64:
		return "u64"
	case KindPublicKey:
		return "publicKey"
	}
	return "unknown"
}

type Field struct {
	Name string
	Kind Kind
}

// Layout is an ordered, fixed-width record description.
type Layout []Field

// Span is the encoded size of the layout in bytes.
func (l Layout) Span() int {
	var span int
	for _, f := range l {
		span += f.Kind.Size()
	}
	return span
}

// FieldValue is a single named value of a decoded record.
type FieldValue struct {
	Name  string
	Value interface{}
}

// Fields is an ordered field mapping. Decoded fields follow the declared
// layout order, with uint8, uint64 and ed25519.PublicKey values.
type Fields []FieldValue

// Get returns the value of the named field.
func (f Fields) Get(name string) (interface{}, bool) {
	for _, v := range f {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, v := range f {
		names[i] = v.Name
	}
	return names
}

// Decode maps buf onto the layout. The buffer must be exactly Span() bytes.
func (l Layout) Decode(buf []byte) (Fields, error) {
	if len(buf) != l.Span() {
		return nil, errors.Wrapf(ErrLayoutMismatch, "expected %d bytes, got %d", l.Span(), len(buf))
	}

	var offset int
	fields := make(Fields, len(l))
	for i, f := range l {
		var value interface{}
		switch f.Kind {
		case KindUint8:
			var v uint8
			binary.GetUint8(buf, &v, &offset)
			value = v
		case KindUint64:
			var v uint64
			binary.GetUint64(buf, &v, &offset)
			value = v
		case KindPublicKey:
			var v ed25519.PublicKey
			binary.GetKey32(buf, &v, &offset)
			value = v
		default:
			return nil, errors.Wrapf(ErrLayoutMismatch, "field %s has unknown kind", f.Name)
		}
		fields[i] = FieldValue{Name: f.Name, Value: value}
	}
	return fields, nil
}

// Encode produces a Span() sized buffer from fields. Every declared field
// must be present exactly once and no other fields may be supplied.
func (l Layout) Encode(fields Fields) ([]byte, error) {
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if _, ok := values[f.Name]; ok {
			return nil, errors.Wrapf(ErrLayoutMismatch, "duplicate field %s", f.Name)
		}
		values[f.Name] = f.Value
	}
	if len(values) != len(l) {
		return nil, errors.Wrapf(ErrLayoutMismatch, "expected %d fields, got %d", len(l), len(values))
	}

	var offset int
	buf := make([]byte, l.Span())
	for _, f := range l {
		value, ok := values[f.Name]
		if !ok {
			return nil, errors.Wrapf(ErrLayoutMismatch, "missing field %s", f.Name)
		}

		switch f.Kind {
		case KindUint8:
			v, err := toUint(value, math.MaxUint8)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name)
			}
			binary.PutUint8(buf, uint8(v), &offset)
		case KindUint64:
			if err := PutUint64Value(buf, value, &offset); err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name)
			}
		case KindPublicKey:
			key, err := toKey(value)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", f.Name)
			}
			binary.PutKey32(buf, key, &offset)
		default:
			return nil, errors.Wrapf(ErrLayoutMismatch, "field %s has unknown kind", f.Name)
		}
	}
	return buf, nil
}

// Uint64Value converts any Go integer, bool or *big.Int to a uint64, failing
// with ErrEncodingRange for negative values or values above 2^64-1.
func Uint64Value(v interface{}) (uint64, error) {
	return toUint(v, math.MaxUint64)
}

// PutUint64Value writes v as a little endian u64 at offset.
func PutUint64Value(dst []byte, v interface{}, offset *int) error {
	value, err := Uint64Value(v)
	if err != nil {
		return err
	}
	binary.PutUint64(dst, value, offset)
	return nil
}

func toUint(v interface{}, max uint64) (uint64, error) {
	var value uint64
	switch t := v.(type) {
	case bool:
		if t {
			value = 1
		}
	case uint8:
		value = uint64(t)
	case uint16:
		value = uint64(t)
	case uint32:
		value = uint64(t)
	case uint64:
		value = t
	case uint:
		value = uint64(t)
	case int8:
		return signed(int64(t), max)
	case int16:
		return signed(int64(t), max)
	case int32:
		return signed(int64(t), max)
	case int64:
		return signed(t, max)
	case int:
		return signed(int64(t), max)
	case *big.Int:
		if t == nil {
			return 0, errors.Wrap(ErrLayoutMismatch, "nil integer")
		}
		if t.Sign() < 0 || !t.IsUint64() {
			return 0, errors.Wrapf(ErrEncodingRange, "%s", t.String())
		}
		value = t.Uint64()
	default:
		return 0, errors.Wrapf(ErrLayoutMismatch, "unsupported integer type %T", v)
	}

	if value > max {
		return 0, errors.Wrapf(ErrEncodingRange, "%d exceeds %d", value, max)
	}
	return value, nil
}

func signed(v int64, max uint64) (uint64, error) {
	if v < 0 {
		return 0, errors.Wrapf(ErrEncodingRange, "%d is negative", v)
	}
	if uint64(v) > max {
		return 0, errors.Wrapf(ErrEncodingRange, "%d exceeds %d", v, max)
	}
	return uint64(v), nil
}

func toKey(v interface{}) (ed25519.PublicKey, error) {
	var key []byte
	switch t := v.(type) {
	case ed25519.PublicKey:
		key = t
	case []byte:
		key = t
	case [ed25519.PublicKeySize]byte:
		key = t[:]
	default:
		return nil, errors.Wrapf(ErrLayoutMismatch, "unsupported public key type %T", v)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrLayoutMismatch, "public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return key, nil
}
