package codec_test

import (
	"testing"

	"github.com/kroeg/cellar/internal/codec"
)

func TestInt32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 2147483647, -2147483648} {
		buf, isNull := codec.Int32(v).Serialize(nil)
		if isNull {
			t.Fatalf("Int32(%d).Serialize reported null", v)
		}
		got, err := codec.DecodeInt32(buf)
		if err != nil {
			t.Fatalf("DecodeInt32: %v", err)
		}
		if got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
}

func TestInt64RoundTrip(t *testing.T) {
	buf, _ := codec.Int64(9223372036854775807).Serialize(nil)
	got, err := codec.DecodeInt64(buf)
	if err != nil {
		t.Fatalf("DecodeInt64: %v", err)
	}
	if got != 9223372036854775807 {
		t.Errorf("got %d", got)
	}
}

func TestTextRoundTrip(t *testing.T) {
	buf, isNull := codec.Text("hello, é").Serialize(nil)
	if isNull {
		t.Fatal("Text.Serialize reported null")
	}
	got, err := codec.DecodeText(buf)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if got != "hello, é" {
		t.Errorf("got %q", got)
	}
}

func TestBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		buf, _ := codec.Bool(v).Serialize(nil)
		got, err := codec.DecodeBool(buf)
		if err != nil {
			t.Fatalf("DecodeBool: %v", err)
		}
		if got != v {
			t.Errorf("round trip %v -> %v", v, got)
		}
	}
}

func TestDecodeInt32_WrongLength(t *testing.T) {
	if _, err := codec.DecodeInt32([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated int4")
	}
}

func TestNull_Invalid_ReportsNull(t *testing.T) {
	n := codec.Null[codec.Int32]{Valid: false}
	buf, isNull := n.Serialize([]byte("prefix"))
	if !isNull {
		t.Fatal("expected isNull=true")
	}
	if string(buf) != "prefix" {
		t.Errorf("Serialize must not append bytes when invalid, got %q", buf)
	}
}

func TestNull_Valid_DelegatesToValue(t *testing.T) {
	n := codec.Null[codec.Int32]{Value: 42, Valid: true}
	buf, isNull := n.Serialize(nil)
	if isNull {
		t.Fatal("expected isNull=false")
	}
	got, err := codec.DecodeInt32(buf)
	if err != nil || got != 42 {
		t.Errorf("got %d, %v", got, err)
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	buf, _ := codec.Float64(3.5).Serialize(nil)
	got, err := codec.DecodeFloat64(buf)
	if err != nil {
		t.Fatalf("DecodeFloat64: %v", err)
	}
	if got != 3.5 {
		t.Errorf("got %v", got)
	}
}
