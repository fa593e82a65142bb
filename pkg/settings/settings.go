// Package settings packs and unpacks the TCU's tunable configuration blocks.
//
// Each program setting block ("SCN block") is a fixed little-endian record
// keyed by a one-byte identifier. On the wire the packed form is the id byte
// followed by the record, read with [0x21 0xFC id] and written with
// [0x3B 0xFC id record...] while the TCU is in its developer session mode.
package settings

import (
	"fmt"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/binstruct"
)

// Settings is the metadata every block type carries. It drives generic
// read/modify/write flows without per-type branching.
type Settings interface {
	ScnID() byte
	Name() string
	RevisionName() string
	// WikiURL returns the help page for the block, empty when none exists.
	WikiURL() string
	// EffectImmediate reports whether a write applies live or only after the
	// TCU restarts.
	EffectImmediate() bool
	// EnumEntries returns the legal values for a closed string field, nil
	// for free-form or non-string fields.
	EnumEntries(field string) []string
}

// CodecError explains a pack/unpack failure with enough context to spot a
// firmware/tool version mismatch.
type CodecError struct {
	Block string
	Want  int
	Got   int
	Msg   string
}

func (e *CodecError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("settings: %s: %s", e.Block, e.Msg)
	}
	return fmt.Sprintf("settings: %s: length mismatch, want %d bytes, got %d", e.Block, e.Want, e.Got)
}

// Unpack decodes an id-prefixed SCN blob into T. The leading discriminant
// must match T's SCN id.
func Unpack[T Settings](data []byte) (T, error) {
	var v T
	want := 1 + binstruct.Size(&v)
	if len(data) < want {
		return v, &CodecError{Block: v.Name(), Want: want, Got: len(data)}
	}
	if data[0] != v.ScnID() {
		return v, &CodecError{
			Block: v.Name(),
			Msg:   fmt.Sprintf("discriminant 0x%02X does not match SCN id 0x%02X", data[0], v.ScnID()),
		}
	}
	if err := binstruct.Unpack(data[1:], &v); err != nil {
		return v, &CodecError{Block: v.Name(), Msg: err.Error()}
	}
	return v, nil
}

// Pack is the deterministic inverse of Unpack: Unpack(Pack(v)) == v for any
// valid v.
func Pack[T Settings](v T) ([]byte, error) {
	body, err := binstruct.Pack(&v)
	if err != nil {
		return nil, &CodecError{Block: v.Name(), Msg: err.Error()}
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, v.ScnID())
	out = append(out, body...)
	return out, nil
}

// LinearInterp maps a raw sensor domain onto an engineering range. The TCU
// evaluates these point-slope maps all over its pressure and torque paths.
type LinearInterp struct {
	RawMin float32 `yaml:"raw_min"`
	RawMax float32 `yaml:"raw_max"`
	NewMin float32 `yaml:"new_min"`
	NewMax float32 `yaml:"new_max"`
}

// Evaluate is strictly linear: Evaluate(RawMin) == NewMin and
// Evaluate(RawMax) == NewMax, no clamping outside the domain.
func (l LinearInterp) Evaluate(x float32) float32 {
	return l.NewMin + (x-l.RawMin)*(l.NewMax-l.NewMin)/(l.RawMax-l.RawMin)
}

// The display transforms below convert raw fixed-point wire values to
// engineering units and back. Round-tripping is exact at the declared
// precision; the raw integer stays the source of truth.

// RatioFromRaw converts a gear or diff ratio stored as ratio*1000.
func RatioFromRaw(raw uint16) float32 { return float32(raw) / 1000.0 }

// RatioToRaw is the exact inverse of RatioFromRaw at 3 decimals.
func RatioToRaw(ratio float32) uint16 { return uint16(ratio*1000.0 + 0.5) }

// TrimFromRaw converts a trim factor stored as (percent+100)*10.
func TrimFromRaw(raw uint16) float32 { return float32(raw)/10.0 - 100.0 }

func TrimToRaw(percent float32) uint16 { return uint16((percent + 100.0) * 10.0) }

// TorqueFromRaw converts the Mercedes CAN torque encoding (x/4 - 500 Nm).
func TorqueFromRaw(raw uint16) float32 { return float32(raw)/4.0 - 500.0 }

func TorqueToRaw(nm float32) uint16 { return uint16((nm + 500.0) * 4.0) }
