// Package isotp implements the ISO 15765-2 transport layer used between the
// config tool and the TCU. A Channel moves whole diagnostic payloads; framing
// into CAN frames with flow control happens below it.
package isotp

import (
	"context"
	"time"
)

// Channel is one ISO-TP connection to the TCU. Implementations are owned by
// exactly one diagnostic session and are not safe for concurrent use; the
// session serializes all traffic.
type Channel interface {
	// Send transmits one complete payload.
	Send(ctx context.Context, payload []byte) error
	// Recv blocks for the next complete payload or until timeout.
	Recv(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Settings configures a channel. BlockSize and STMin are advertised to the
// ECU in flow control frames; zero values mean "stream without pause", which
// every transport except SocketCAN uses.
type Settings struct {
	TxID      uint32
	RxID      uint32
	BlockSize uint8
	STMin     uint8
	PadFrame  bool
	CANRate   float64
}

// DefaultSettings returns the fixed addressing the TCU listens on: tester
// sends on 0x7E1, ECU answers on 0x7E9.
func DefaultSettings() Settings {
	return Settings{
		TxID:     0x7E1,
		RxID:     0x7E9,
		PadFrame: true,
		CANRate:  500,
	}
}

const (
	frameSingle      = 0x00
	frameFirst       = 0x10
	frameConsecutive = 0x20
	frameFlowControl = 0x30

	flowContinue = 0x00
	flowWait     = 0x01
	flowOverflow = 0x02

	padByte = 0xCC

	// Longest payload a 12-bit first-frame length field can announce.
	maxPayload = 4095
)

// stMinDelay converts a flow-control STmin byte to a pause between
// consecutive frames. 0x00-0x7F are milliseconds, 0xF1-0xF9 are 100-900us.
func stMinDelay(st uint8) time.Duration {
	switch {
	case st <= 0x7F:
		return time.Duration(st) * time.Millisecond
	case st >= 0xF1 && st <= 0xF9:
		return time.Duration(st-0xF0) * 100 * time.Microsecond
	default:
		return 0
	}
}
