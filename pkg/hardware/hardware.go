// Package hardware abstracts the physical adapters that can reach the TCU:
// the board's native USB-serial endpoint, J2534 PassThru interfaces and
// Linux SocketCAN devices. Every transport yields an ISO-TP channel; the
// diagnostic session does not care which iron sits underneath.
package hardware

import (
	"errors"
	"fmt"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
)

// Kind selects which transport implementation owns the physical channel.
type Kind int

const (
	USB Kind = iota
	PassThru
	SocketCAN
)

func (k Kind) String() string {
	switch k {
	case USB:
		return "USB"
	case PassThru:
		return "Passthru"
	case SocketCAN:
		return "SocketCAN"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "usb", "USB":
		return USB, nil
	case "passthru", "Passthru", "J2534":
		return PassThru, nil
	case "socketcan", "SocketCAN":
		return SocketCAN, nil
	}
	return 0, fmt.Errorf("unknown adapter kind %q", s)
}

// Info identifies a device well enough to find it again after an unplug:
// the OS-level name (port path, DLL, network interface) plus a free-form
// description for humans.
type Info struct {
	Name        string
	Description string
}

var (
	ErrNotFound = errors.New("hardware: device not found")
	ErrInUse    = errors.New("hardware: device busy")
	ErrNotOpen  = errors.New("hardware: device not open")
)

// LogMessage is one line from the board's async log stream. Only the USB
// transport carries it; CAN transports have no side channel.
type LogMessage struct {
	Level     byte // ESP-IDF level tag: I, W, E, D, V
	Timestamp uint32
	Tag       string
	Message   string
}

func (m LogMessage) String() string {
	return fmt.Sprintf("%c (%d) %s: %s", m.Level, m.Timestamp, m.Tag, m.Message)
}

// Transport is the capability surface shared by all adapters. Opening a
// transport claims exclusive OS-level access to the device; Close releases
// it and invalidates every channel created from it.
type Transport interface {
	// IsoTpChannel opens the diagnostic channel. At most one channel is
	// open per transport.
	IsoTpChannel(set isotp.Settings) (isotp.Channel, error)
	Info() Info
	Kind() Kind
	Describe() string
	Connected() bool
	// LogMessages returns the board's log stream, or nil when the
	// transport has no such capability.
	LogMessages() <-chan LogMessage
	Close() error
}

// Connect opens the device described by info using the transport selected by
// kind. Callers pick the constructor by kind only, never by inspecting the
// returned value.
func Connect(info Info, kind Kind) (Transport, error) {
	switch kind {
	case USB:
		return connectUSB(info)
	case PassThru:
		return connectCAN(info, PassThru)
	case SocketCAN:
		return connectCAN(info, SocketCAN)
	default:
		return nil, fmt.Errorf("hardware: %w: no transport for kind %s", ErrNotFound, kind)
	}
}
