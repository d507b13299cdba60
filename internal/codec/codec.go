// Package codec implements the binary parameter and result encodings for
// the scalar types this adapter uses, matching the subset of Postgres's
// binary wire format that postgres_protocol::types implements upstream.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// OID is a Postgres type object identifier.
type OID uint32

// Scalar and array OIDs for every type this adapter serialises. Pairs
// mirror postgres-async's types.rs trivial_impl! table exactly.
const (
	OIDBool      OID = 16
	OIDBoolArray OID = 1000
	OIDChar      OID = 18
	OIDCharArray OID = 1002
	OIDInt8      OID = 20 // Postgres "int8" = Go int64
	OIDInt8Array OID = 1016
	OIDInt2      OID = 21
	OIDInt2Array OID = 1005
	OIDInt4      OID = 23
	OIDInt4Array OID = 1007
	OIDText      OID = 25
	OIDTextArray OID = 1009
	OIDFloat4    OID = 700
	OIDFloat4Arr OID = 1021
	OIDFloat8    OID = 701
	OIDFloat8Arr OID = 1022
)

// Serializable appends the binary representation of a value to buf and
// reports whether the logical value is NULL (in which case nothing is
// appended and the caller must encode a -1 length instead).
type Serializable interface {
	Serialize(buf []byte) (out []byte, isNull bool)
}

// Deserializable parses field bytes (nil if the server reported NULL) into
// a Go value.
type Deserializable interface {
	Deserialize(data []byte) error
}

// Int32 is a binary int4.
type Int32 int32

func (v Int32) Serialize(buf []byte) ([]byte, bool) {
	return binary.BigEndian.AppendUint32(buf, uint32(v)), false
}

// DecodeInt32 parses a binary int4 field.
func DecodeInt32(data []byte) (int32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("codec: int4: expected 4 bytes, got %d", len(data))
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

// Int64 is a binary int8.
type Int64 int64

func (v Int64) Serialize(buf []byte) ([]byte, bool) {
	return binary.BigEndian.AppendUint64(buf, uint64(v)), false
}

// DecodeInt64 parses a binary int8 field.
func DecodeInt64(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("codec: int8: expected 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// Int16 is a binary int2.
type Int16 int16

func (v Int16) Serialize(buf []byte) ([]byte, bool) {
	return binary.BigEndian.AppendUint16(buf, uint16(v)), false
}

// DecodeInt16 parses a binary int2 field.
func DecodeInt16(data []byte) (int16, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("codec: int2: expected 2 bytes, got %d", len(data))
	}
	return int16(binary.BigEndian.Uint16(data)), nil
}

// Bool is a binary bool (one byte, 0 or 1).
type Bool bool

func (v Bool) Serialize(buf []byte) ([]byte, bool) {
	if v {
		return append(buf, 1), false
	}
	return append(buf, 0), false
}

// DecodeBool parses a binary bool field.
func DecodeBool(data []byte) (bool, error) {
	if len(data) != 1 {
		return false, fmt.Errorf("codec: bool: expected 1 byte, got %d", len(data))
	}
	return data[0] != 0, nil
}

// Text is a binary text value: UTF-8 bytes, unterminated.
type Text string

func (v Text) Serialize(buf []byte) ([]byte, bool) {
	return append(buf, v...), false
}

// DecodeText parses a binary text field.
func DecodeText(data []byte) (string, error) {
	return string(data), nil
}

// Float32 is a binary float4.
type Float32 float32

func (v Float32) Serialize(buf []byte) ([]byte, bool) {
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v))), false
}

// DecodeFloat32 parses a binary float4 field.
func DecodeFloat32(data []byte) (float32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("codec: float4: expected 4 bytes, got %d", len(data))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
}

// Float64 is a binary float8.
type Float64 float64

func (v Float64) Serialize(buf []byte) ([]byte, bool) {
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(v))), false
}

// DecodeFloat64 parses a binary float8 field.
func DecodeFloat64(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("codec: float8: expected 8 bytes, got %d", len(data))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

// Null wraps a Serializable so that a nil value reports NULL instead of
// serialising, standing in for Rust's Option<T>::None case.
type Null[T Serializable] struct {
	Value T
	Valid bool
}

func (n Null[T]) Serialize(buf []byte) ([]byte, bool) {
	if !n.Valid {
		return buf, true
	}
	return n.Value.Serialize(buf)
}
