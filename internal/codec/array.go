package codec

import "encoding/binary"

// Int32Array serialises a one-dimensional, lower-bound-zero array of int4,
// the shape every `::int[]` parameter in the statement registry expects.
type Int32Array []int32

func (a Int32Array) Serialize(buf []byte) ([]byte, bool) {
	return encodeArray(buf, uint32(OIDInt4), len(a), func(dst []byte, i int) []byte {
		return binary.BigEndian.AppendUint32(dst, uint32(a[i]))
	}), false
}

// TextArray serialises a one-dimensional, lower-bound-zero array of text,
// the shape `upsert_attributes`'s `$1::text[]` parameter expects.
type TextArray []string

func (a TextArray) Serialize(buf []byte) ([]byte, bool) {
	return encodeArray(buf, uint32(OIDText), len(a), func(dst []byte, i int) []byte {
		return append(dst, a[i]...)
	}), false
}

// NullableInt32Array serialises a one-dimensional int4 array where
// individual elements may be NULL, the shape `insert_quads`'s
// attribute_id/type_id parameters expect.
type NullableInt32Array []*int32

func (a NullableInt32Array) Serialize(buf []byte) ([]byte, bool) {
	return encodeNullableArray(buf, uint32(OIDInt4), len(a), func(dst []byte, i int) ([]byte, bool) {
		if a[i] == nil {
			return dst, true
		}
		return binary.BigEndian.AppendUint32(dst, uint32(*a[i])), false
	}), false
}

// NullableTextArray serialises a one-dimensional text array where
// individual elements may be NULL, the shape `insert_quads`'s
// object/language parameters expect.
type NullableTextArray []*string

func (a NullableTextArray) Serialize(buf []byte) ([]byte, bool) {
	return encodeNullableArray(buf, uint32(OIDText), len(a), func(dst []byte, i int) ([]byte, bool) {
		if a[i] == nil {
			return dst, true
		}
		return append(dst, *a[i]...), false
	}), false
}

func encodeNullableArray(buf []byte, elemOID uint32, n int, encodeElem func(dst []byte, i int) ([]byte, bool)) []byte {
	buf = binary.BigEndian.AppendUint32(buf, 1) // ndim
	buf = binary.BigEndian.AppendUint32(buf, 1) // has-null flag
	buf = binary.BigEndian.AppendUint32(buf, elemOID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(n))
	buf = binary.BigEndian.AppendUint32(buf, 0) // lower bound

	for i := 0; i < n; i++ {
		lenPos := len(buf)
		buf = binary.BigEndian.AppendUint32(buf, 0) // placeholder length
		before := len(buf)
		var isNull bool
		buf, isNull = encodeElem(buf, i)
		if isNull {
			binary.BigEndian.PutUint32(buf[lenPos:lenPos+4], 0xFFFFFFFF)
		} else {
			binary.BigEndian.PutUint32(buf[lenPos:lenPos+4], uint32(len(buf)-before))
		}
	}
	return buf
}

// encodeArray writes the common one-dimensional array header (ndim=1, no
// null bitmap flag, element oid, dimension length, lower bound 0) followed
// by n length-prefixed elements produced by encodeElem, matching the
// lower-bound-zero contract every array parameter in the statement registry
// is declared against.
func encodeArray(buf []byte, elemOID uint32, n int, encodeElem func(dst []byte, i int) []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, 1) // ndim
	buf = binary.BigEndian.AppendUint32(buf, 0) // has-null flag
	buf = binary.BigEndian.AppendUint32(buf, elemOID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(n))
	buf = binary.BigEndian.AppendUint32(buf, 0) // lower bound

	for i := 0; i < n; i++ {
		lenPos := len(buf)
		buf = binary.BigEndian.AppendUint32(buf, 0) // placeholder length
		before := len(buf)
		buf = encodeElem(buf, i)
		elemLen := len(buf) - before
		binary.BigEndian.PutUint32(buf[lenPos:lenPos+4], uint32(elemLen))
	}
	return buf
}

// DecodeInt32Array parses a binary one-dimensional int4 array field.
func DecodeInt32Array(data []byte) ([]int32, error) {
	vals, err := decodeArray(data, func(elem []byte) (int32, error) {
		return DecodeInt32(elem)
	})
	return vals, err
}

// DecodeTextArray parses a binary one-dimensional text array field.
func DecodeTextArray(data []byte) ([]string, error) {
	return decodeArray(data, func(elem []byte) (string, error) {
		return DecodeText(elem)
	})
}

func decodeArray[T any](data []byte, decodeElem func([]byte) (T, error)) ([]T, error) {
	if len(data) < 12 {
		return nil, nil
	}
	ndim := binary.BigEndian.Uint32(data[0:4])
	if ndim == 0 {
		return nil, nil
	}
	// header: ndim, has-null flag, elem oid, then ndim*(len,lowerbound) pairs
	n := int(binary.BigEndian.Uint32(data[12:16]))
	pos := 12 + 8*int(ndim)

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		elemLen := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if elemLen < 0 {
			var zero T
			out = append(out, zero)
			continue
		}
		v, err := decodeElem(data[pos : pos+int(elemLen)])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos += int(elemLen)
	}
	return out, nil
}
