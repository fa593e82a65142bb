package firmware_test

import (
	"testing"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/firmware"
)

var magic = []byte{0x32, 0x54, 0xCD, 0xAB}

// image builds a firmware blob with a valid descriptor at the given offset.
func image(offset int) []byte {
	buf := make([]byte, offset+256+64)
	copy(buf[offset:], magic)
	copyField(buf, offset+16, "v1.23.4")   // version
	copyField(buf, offset+48, "NAG52_V12") // project name
	copyField(buf, offset+80, "12:34:56")  // time
	copyField(buf, offset+96, "Oct 1 2024")
	copyField(buf, offset+112, "v5.1.2") // IDF version
	return buf
}

func copyField(buf []byte, at int, s string) {
	copy(buf[at:], s)
}

func TestParseMagicOffsets(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		wantOK bool
	}{
		{"magic at 0", image(0), true},
		{"magic at 17", image(17), true},
		{"magic at 49", image(49), true},
		{"magic at 50", image(50), true},
		{"magic at 51", image(51), false},
		{"no magic", make([]byte, 512), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw, err := firmware.Parse(tt.raw)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Parse() failed: %v", err)
				}
				if fw.Header.GetVersion() != "v1.23.4" {
					t.Errorf("version = %q, want v1.23.4", fw.Header.GetVersion())
				}
				if fw.Header.GetName() != "NAG52_V12" {
					t.Errorf("project = %q, want NAG52_V12", fw.Header.GetName())
				}
			} else if err == nil {
				t.Fatal("Parse() succeeded, want format error")
			}
		})
	}
}

func TestParseTruncatedHeader(t *testing.T) {
	raw := image(0)[:100] // magic present but fewer than 256 bytes remain
	if _, err := firmware.Parse(raw); err == nil {
		t.Fatal("Parse() succeeded on a truncated descriptor")
	}
}

func TestHeaderStringTrimming(t *testing.T) {
	fw, err := firmware.Parse(image(0))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got := fw.Header.GetIdfVersion(); got != "v5.1.2" {
		t.Errorf("idf version = %q, want trimmed v5.1.2", got)
	}
	if got := fw.Header.GetDate(); got != "Oct 1 2024" {
		t.Errorf("date = %q", got)
	}
}
