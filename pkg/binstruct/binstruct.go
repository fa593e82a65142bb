// Package binstruct packs and unpacks the fixed-layout binary records the
// TCU exchanges over KWP2000. Records are plain structs of fixed-size fields,
// little-endian unless a caller says otherwise, with no padding between
// fields.
package binstruct

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// LengthError reports a record that does not match its declared layout size.
// Layout mismatches usually mean the TCU firmware and this tool disagree on
// a struct revision, so both sizes are carried for diagnostics.
type LengthError struct {
	Want int
	Got  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("length mismatch: layout is %d bytes, got %d", e.Want, e.Got)
}

// Size returns the packed size of v, or -1 if v contains variable-sized
// fields and has no fixed layout.
func Size(v any) int {
	return binary.Size(v)
}

// Unpack decodes data into the little-endian fixed-layout struct pointed to
// by v. Trailing bytes beyond the layout are ignored, short input fails with
// a *LengthError.
func Unpack(data []byte, v any) error {
	return UnpackOrder(data, v, binary.LittleEndian)
}

// UnpackOrder is Unpack with an explicit byte order.
func UnpackOrder(data []byte, v any, order binary.ByteOrder) error {
	want := binary.Size(v)
	if want < 0 {
		return fmt.Errorf("binstruct: %T has no fixed layout", v)
	}
	if len(data) < want {
		return &LengthError{Want: want, Got: len(data)}
	}
	return binary.Read(bytes.NewReader(data[:want]), order, v)
}

// Pack encodes the little-endian fixed-layout struct v to bytes.
func Pack(v any) ([]byte, error) {
	return PackOrder(v, binary.LittleEndian)
}

// PackOrder is Pack with an explicit byte order.
func PackOrder(v any, order binary.ByteOrder) ([]byte, error) {
	if binary.Size(v) < 0 {
		return nil, fmt.Errorf("binstruct: %T has no fixed layout", v)
	}
	buf := bytes.NewBuffer(nil)
	if err := binary.Write(buf, order, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
