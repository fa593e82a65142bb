package hardware

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
)

const usbBaudRate = 921600

// usbTransport talks to the board's own USB-serial endpoint. The ESP32 side
// runs the ISO-TP stack in firmware, so the wire carries whole diagnostic
// payloads as '#'-prefixed hex lines. Any other line is an ESP-IDF log
// message and goes to the log stream.
type usbTransport struct {
	info Info
	port serial.Port

	diagCh chan []byte
	logCh  chan LogMessage

	mu     sync.Mutex
	open   bool
	closeO sync.Once
}

func connectUSB(info Info) (Transport, error) {
	port, err := serial.Open(info.Name, &serial.Mode{BaudRate: usbBaudRate})
	if err != nil {
		return nil, mapSerialError(info.Name, err)
	}
	t := &usbTransport{
		info:   info,
		port:   port,
		diagCh: make(chan []byte, 16),
		logCh:  make(chan LogMessage, 128),
	}
	t.open = true
	go t.readLoop()
	return t, nil
}

func mapSerialError(name string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		case serial.PortBusy:
			return fmt.Errorf("%w: %s", ErrInUse, name)
		}
	}
	return fmt.Errorf("hardware: open %s: %w", name, err)
}

func (t *usbTransport) readLoop() {
	scanner := bufio.NewScanner(t.port)
	scanner.Buffer(make([]byte, 0, 16384), 16384)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			payload, err := hex.DecodeString(line[1:])
			if err != nil {
				debug.Log(fmt.Sprintf("usb: bad payload line %q: %v", line, err))
				continue
			}
			select {
			case t.diagCh <- payload:
			default:
				debug.Log("usb: dropping diag payload, receiver not keeping up")
			}
			continue
		}
		select {
		case t.logCh <- parseLogLine(line):
		default:
		}
	}
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	close(t.diagCh)
}

// parseLogLine understands the ESP-IDF format "I (1234) TAG: message".
// Anything else is kept verbatim at info level.
func parseLogLine(line string) LogMessage {
	msg := LogMessage{Level: 'I', Message: line}
	if len(line) < 4 || !strings.ContainsRune("IWEDV", rune(line[0])) || line[1] != ' ' || line[2] != '(' {
		return msg
	}
	end := strings.IndexByte(line, ')')
	if end < 0 {
		return msg
	}
	ts, err := strconv.ParseUint(line[3:end], 10, 32)
	if err != nil {
		return msg
	}
	rest := strings.TrimPrefix(line[end+1:], " ")
	tag, text, found := strings.Cut(rest, ": ")
	if !found {
		return msg
	}
	return LogMessage{
		Level:     line[0],
		Timestamp: uint32(ts),
		Tag:       tag,
		Message:   text,
	}
}

func (t *usbTransport) IsoTpChannel(set isotp.Settings) (isotp.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, ErrNotOpen
	}
	return &usbChannel{t: t}, nil
}

func (t *usbTransport) Info() Info     { return t.info }
func (t *usbTransport) Kind() Kind     { return USB }
func (t *usbTransport) Describe() string {
	return fmt.Sprintf("Ultimate-NAG52 USB on %s", t.info.Name)
}

func (t *usbTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *usbTransport) LogMessages() <-chan LogMessage { return t.logCh }

func (t *usbTransport) Close() error {
	var err error
	t.closeO.Do(func() {
		t.mu.Lock()
		t.open = false
		t.mu.Unlock()
		err = t.port.Close()
	})
	return err
}

// usbChannel frames payloads onto the serial line. The firmware reassembles
// and forwards them to its KWP2000 server, so no flow control happens here.
type usbChannel struct {
	t *usbTransport
}

func (c *usbChannel) Send(ctx context.Context, payload []byte) error {
	if !c.t.Connected() {
		return ErrNotOpen
	}
	line := make([]byte, 0, len(payload)*2+2)
	line = append(line, '#')
	line = append(line, []byte(strings.ToUpper(hex.EncodeToString(payload)))...)
	line = append(line, '\n')
	if _, err := c.t.port.Write(line); err != nil {
		return fmt.Errorf("hardware: usb write: %w", err)
	}
	return nil
}

func (c *usbChannel) Recv(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("hardware: usb read: no payload within %s", timeout)
	case payload, ok := <-c.t.diagCh:
		if !ok {
			return nil, ErrNotOpen
		}
		return payload, nil
	}
}

func (c *usbChannel) Close() error { return nil }
