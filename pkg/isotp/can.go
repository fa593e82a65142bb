package isotp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roffe/gocan"
)

// CANChannel segments and reassembles ISO-TP payloads over raw CAN frames
// from a gocan client. Used by the PassThru and SocketCAN transports; the USB
// transport carries ISO-TP in the adapter firmware instead.
type CANChannel struct {
	cl  *gocan.Client
	set Settings

	sub    chan gocan.CANFrame
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

var ErrChannelClosed = errors.New("isotp: channel closed")

// NewCAN opens an ISO-TP channel on cl filtered to the settings' receive
// identifier.
func NewCAN(ctx context.Context, cl *gocan.Client, set Settings) *CANChannel {
	subCtx, cancel := context.WithCancel(ctx)
	return &CANChannel{
		cl:     cl,
		set:    set,
		sub:    cl.SubscribeChan(subCtx, set.RxID),
		cancel: cancel,
	}
}

func (c *CANChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
	})
	return nil
}

func (c *CANChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *CANChannel) sendFrame(data []byte) error {
	if c.set.PadFrame {
		for len(data) < 8 {
			data = append(data, padByte)
		}
	}
	return c.cl.Send(gocan.NewFrame(c.set.TxID, data, gocan.Outgoing))
}

func (c *CANChannel) nextFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, fmt.Errorf("isotp: no frame within %s", timeout)
	case msg, ok := <-c.sub:
		if !ok {
			return nil, ErrChannelClosed
		}
		return msg.Data(), nil
	}
}

// Send transmits payload as a single frame, or as a first frame plus
// flow-controlled consecutive frames when it does not fit in 7 bytes.
func (c *CANChannel) Send(ctx context.Context, payload []byte) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("isotp: payload %d exceeds %d bytes", len(payload), maxPayload)
	}

	if len(payload) <= 7 {
		frame := make([]byte, 0, 8)
		frame = append(frame, frameSingle|byte(len(payload)))
		frame = append(frame, payload...)
		return c.sendFrame(frame)
	}

	first := make([]byte, 0, 8)
	first = append(first, frameFirst|byte(len(payload)>>8), byte(len(payload)))
	first = append(first, payload[:6]...)
	if err := c.sendFrame(first); err != nil {
		return err
	}

	bs, delay, err := c.awaitFlowControl(ctx)
	if err != nil {
		return err
	}

	seq := byte(1)
	sent := 6
	inBlock := 0
	for sent < len(payload) {
		end := sent + 7
		if end > len(payload) {
			end = len(payload)
		}
		frame := make([]byte, 0, 8)
		frame = append(frame, frameConsecutive|(seq&0x0F))
		frame = append(frame, payload[sent:end]...)
		if err := c.sendFrame(frame); err != nil {
			return err
		}
		sent = end
		seq++
		inBlock++

		if sent < len(payload) && bs > 0 && inBlock >= int(bs) {
			if bs, delay, err = c.awaitFlowControl(ctx); err != nil {
				return err
			}
			inBlock = 0
		}
		if delay > 0 && sent < len(payload) {
			time.Sleep(delay)
		}
	}
	return nil
}

func (c *CANChannel) awaitFlowControl(ctx context.Context) (uint8, time.Duration, error) {
	for {
		data, err := c.nextFrame(ctx, time.Second)
		if err != nil {
			return 0, 0, fmt.Errorf("isotp: flow control: %w", err)
		}
		if len(data) < 3 || data[0]&0xF0 != frameFlowControl {
			continue
		}
		switch data[0] & 0x0F {
		case flowContinue:
			return data[1], stMinDelay(data[2]), nil
		case flowWait:
			continue
		default:
			return 0, 0, errors.New("isotp: receiver buffer overflow")
		}
	}
}

// Recv reassembles the next inbound payload, answering first frames with our
// advertised block size and STmin.
func (c *CANChannel) Recv(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrChannelClosed
	}
	deadline := time.Now().Add(timeout)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, fmt.Errorf("isotp: no payload within %s", timeout)
		}
		data, err := c.nextFrame(ctx, remain)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] & 0xF0 {
		case frameSingle:
			n := int(data[0] & 0x0F)
			if n == 0 || n > len(data)-1 {
				continue
			}
			return append([]byte(nil), data[1:1+n]...), nil
		case frameFirst:
			return c.recvSegmented(ctx, data, deadline)
		default:
			// Stray consecutive or flow control frame outside a
			// transfer, drop it.
			continue
		}
	}
}

func (c *CANChannel) recvSegmented(ctx context.Context, first []byte, deadline time.Time) ([]byte, error) {
	if len(first) < 8 {
		return nil, errors.New("isotp: short first frame")
	}
	total := int(first[0]&0x0F)<<8 | int(first[1])
	buf := make([]byte, 0, total)
	buf = append(buf, first[2:8]...)

	if err := c.sendFrame([]byte{frameFlowControl | flowContinue, c.set.BlockSize, c.set.STMin}); err != nil {
		return nil, err
	}

	seq := byte(1)
	inBlock := 0
	for len(buf) < total {
		remain := time.Until(deadline)
		if remain <= 0 {
			return nil, fmt.Errorf("isotp: truncated transfer, %d/%d bytes", len(buf), total)
		}
		data, err := c.nextFrame(ctx, remain)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 || data[0]&0xF0 != frameConsecutive {
			continue
		}
		if data[0]&0x0F != seq&0x0F {
			return nil, fmt.Errorf("isotp: sequence error, want %X got %X", seq&0x0F, data[0]&0x0F)
		}
		buf = append(buf, data[1:]...)
		seq++
		inBlock++
		if len(buf) < total && c.set.BlockSize > 0 && inBlock >= int(c.set.BlockSize) {
			if err := c.sendFrame([]byte{frameFlowControl | flowContinue, c.set.BlockSize, c.set.STMin}); err != nil {
				return nil, err
			}
			inBlock = 0
		}
	}
	return buf[:total], nil
}
