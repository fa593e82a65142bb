package binstruct_test

import (
	"errors"
	"testing"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/binstruct"
)

type sample struct {
	A uint16
	B uint32
	C uint8
	D int16
}

func TestRoundTrip(t *testing.T) {
	in := sample{A: 0x1234, B: 0xDEADBEEF, C: 0x7F, D: -1234}
	packed, err := binstruct.Pack(&in)
	if err != nil {
		t.Fatalf("Pack() failed: %v", err)
	}
	if len(packed) != binstruct.Size(&in) {
		t.Fatalf("packed %d bytes, Size says %d", len(packed), binstruct.Size(&in))
	}
	var out sample
	if err := binstruct.Unpack(packed, &out); err != nil {
		t.Fatalf("Unpack() failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestLittleEndianLayout(t *testing.T) {
	in := sample{A: 0x1234}
	packed, err := binstruct.Pack(&in)
	if err != nil {
		t.Fatalf("Pack() failed: %v", err)
	}
	if packed[0] != 0x34 || packed[1] != 0x12 {
		t.Errorf("u16 not little-endian on the wire: % 02X", packed[:2])
	}
}

func TestUnpackShortInput(t *testing.T) {
	var out sample
	err := binstruct.Unpack(make([]byte, 3), &out)
	var le *binstruct.LengthError
	if !errors.As(err, &le) {
		t.Fatalf("Unpack() = %v, want *LengthError", err)
	}
	if le.Want != binstruct.Size(&out) || le.Got != 3 {
		t.Errorf("LengthError = want %d got %d, expected want %d got 3", le.Want, le.Got, binstruct.Size(&out))
	}
}

func TestUnpackIgnoresTrailingBytes(t *testing.T) {
	in := sample{A: 1, B: 2, C: 3, D: 4}
	packed, _ := binstruct.Pack(&in)
	packed = append(packed, 0xAA, 0xBB, 0xCC)
	var out sample
	if err := binstruct.Unpack(packed, &out); err != nil {
		t.Fatalf("Unpack() failed on padded input: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}
