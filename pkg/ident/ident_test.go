package ident_test

import (
	"testing"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/ident"
)

func TestDecodeBCD(t *testing.T) {
	tests := []struct {
		in   byte
		want uint32
	}{
		{0x00, 0},
		{0x01, 1},
		{0x10, 10},
		{0x49, 49},
		{0x99, 99},
		{0x27, 27},
	}
	for _, tt := range tests {
		if got := ident.DecodeBCD(tt.in); got != tt.want {
			t.Errorf("DecodeBCD(0x%02X) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBoardVersionLookup(t *testing.T) {
	tests := []struct {
		name   string
		hwWeek byte // BCD on the wire
		hwYear byte
		want   ident.PCBVersion
	}{
		{"v1.1", 0x49, 0x21, ident.BoardV11},
		{"v1.2", 0x27, 0x22, ident.BoardV12},
		{"v1.3", 0x49, 0x22, ident.BoardV13},
		{"unknown pair", 0x01, 0x23, ident.BoardUnknown},
		{"swapped fields", 0x21, 0x49, ident.BoardUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := identPayload(tt.hwWeek, tt.hwYear, 0x02, 0x52)
			data, err := ident.Decode(payload)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if data.BoardVer != tt.want {
				t.Errorf("BoardVer = %s, want %s", data.BoardVer, tt.want)
			}
		})
	}
}

func TestEgsModeMapping(t *testing.T) {
	tests := []struct {
		hi, lo byte
		want   ident.EgsMode
		str    string
	}{
		{0x02, 0x51, ident.EGS51, "EGS51"},
		{0x02, 0x52, ident.EGS52, "EGS52"},
		{0x02, 0x53, ident.EGS53, "EGS53"},
		{0x02, 0x54, ident.EgsMode(0x0254), "Unknown(0x0254)"},
		{0x00, 0x00, ident.EgsMode(0), "Unknown(0x0000)"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			data, err := ident.Decode(identPayload(0x49, 0x21, tt.hi, tt.lo))
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if data.EgsMode != tt.want {
				t.Errorf("EgsMode = 0x%04X, want 0x%04X", uint16(data.EgsMode), uint16(tt.want))
			}
			if data.EgsMode.String() != tt.str {
				t.Errorf("String() = %q, want %q", data.EgsMode.String(), tt.str)
			}
		})
	}
}

func TestDecodeFields(t *testing.T) {
	payload := []byte{
		0x01, 0x23, 0x45, 0x67, 0x89, 0x01, 0x23, 0x45, 0x67, 0x89, // part number
		0x49, 0x21, // hw week/year
		0x12, 0x23, // sw week/year
		0x07,       // supplier
		0x02, 0x52, // diag variant
		0x23, 0x06, 0x15, // production yy/mm/dd
	}
	data, err := ident.Decode(payload)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if data.PartNumber != "01234567890123456789" {
		t.Errorf("PartNumber = %q", data.PartNumber)
	}
	if data.HwWeek != 49 || data.HwYear != 21 {
		t.Errorf("hw build = %d/%d, want 49/21", data.HwWeek, data.HwYear)
	}
	if data.SwWeek != 12 || data.SwYear != 23 {
		t.Errorf("sw build = %d/%d, want 12/23", data.SwWeek, data.SwYear)
	}
	if data.Supplier != 0x07 {
		t.Errorf("Supplier = %d", data.Supplier)
	}
	if data.ManfYear != 23 || data.ManfMonth != 6 || data.ManfDay != 15 {
		t.Errorf("production date = %d/%d/%d, want 23/6/15", data.ManfYear, data.ManfMonth, data.ManfDay)
	}
}

func TestDecodeShort(t *testing.T) {
	if _, err := ident.Decode(make([]byte, 19)); err == nil {
		t.Fatal("Decode() succeeded on a short record")
	}
}

// identPayload builds a minimal valid 20-byte record around the fields under
// test.
func identPayload(hwWeek, hwYear, diagHi, diagLo byte) []byte {
	p := make([]byte, 20)
	p[10] = hwWeek
	p[11] = hwYear
	p[15] = diagHi
	p[16] = diagLo
	return p
}
