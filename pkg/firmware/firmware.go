// Package firmware loads Ultimate-NAG52 firmware images and exposes the
// embedded ESP-IDF application descriptor (version, project name, build date
// and IDF toolchain version).
package firmware

import (
	"bytes"
	"fmt"
	"os"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/binstruct"
)

const headerSize = 256

// headerMagic marks the start of the ESP-IDF app descriptor. The descriptor
// does not sit at a fixed offset, but always within the first few dozen
// bytes of the image.
var headerMagic = []byte{0x32, 0x54, 0xCD, 0xAB}

// maxHeaderScan bounds the magic search.
const maxHeaderScan = 50

// Header is the 256-byte ESP-IDF app descriptor, little-endian on the wire.
// The string fields are null-padded fixed arrays.
type Header struct {
	Magic         uint32
	SecureVersion uint32
	Reserved1     [2]uint32
	Version       [32]byte
	ProjectName   [32]byte
	Time          [16]byte
	Date          [16]byte
	IdfVer        [32]byte
	AppElfSha     [32]byte
	Reserved2     [20]uint32
}

func trimNull(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (h *Header) GetVersion() string    { return trimNull(h.Version[:]) }
func (h *Header) GetName() string       { return trimNull(h.ProjectName[:]) }
func (h *Header) GetTime() string       { return trimNull(h.Time[:]) }
func (h *Header) GetDate() string       { return trimNull(h.Date[:]) }
func (h *Header) GetIdfVersion() string { return trimNull(h.IdfVer[:]) }

func (h *Header) String() string {
	return fmt.Sprintf("%s %s (built %s %s, ESP-IDF %s)",
		h.GetName(), h.GetVersion(), h.GetDate(), h.GetTime(), h.GetIdfVersion())
}

// Firmware is a loaded image together with its parsed descriptor.
type Firmware struct {
	Raw    []byte
	Header Header
}

// FormatError explains why an image failed to parse, with enough offset and
// length context to tell a truncated file from the wrong file.
type FormatError struct {
	Reason string
	Offset int
	Length int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("firmware: %s (offset %d, image %d bytes)", e.Reason, e.Offset, e.Length)
}

// Parse locates the app descriptor in raw and decodes it. The magic is
// searched byte-by-byte from the start of the image up to offset 50.
func Parse(raw []byte) (*Firmware, error) {
	idx := -1
	for i := 0; i+len(headerMagic) <= len(raw) && i <= maxHeaderScan; i++ {
		if bytes.Equal(raw[i:i+len(headerMagic)], headerMagic) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &FormatError{Reason: "app descriptor magic not found", Offset: maxHeaderScan, Length: len(raw)}
	}
	if len(raw)-idx < headerSize {
		return nil, &FormatError{Reason: "image truncated inside app descriptor", Offset: idx, Length: len(raw)}
	}
	fw := &Firmware{Raw: raw}
	if err := binstruct.Unpack(raw[idx:idx+headerSize], &fw.Header); err != nil {
		return nil, &FormatError{Reason: err.Error(), Offset: idx, Length: len(raw)}
	}
	return fw, nil
}

// Load reads and parses a firmware image from disk.
func Load(path string) (*Firmware, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: read %s: %w", path, err)
	}
	return Parse(raw)
}
