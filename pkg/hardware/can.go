package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/roffe/gocan"
	"github.com/roffe/gocan/adapter"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
)

// canTransport backs both the J2534 PassThru and SocketCAN kinds with a
// gocan client. ISO-TP framing is done in pkg/isotp on top of raw frames.
type canTransport struct {
	info Info
	kind Kind

	cl     *gocan.Client
	cancel context.CancelFunc

	mu   sync.Mutex
	open bool
}

func gocanAdapterName(kind Kind) string {
	if kind == SocketCAN {
		return "SocketCAN"
	}
	return "J2534"
}

func connectCAN(info Info, kind Kind) (Transport, error) {
	ctx, cancel := context.WithCancel(context.Background())
	dev, err := adapter.New(
		gocanAdapterName(kind),
		&gocan.AdapterConfig{
			Port:      info.Name,
			CANRate:   500,
			CANFilter: []uint32{0x7E9},
			OnMessage: func(s string) {
				debug.Log(fmt.Sprintf("%s: %s", kind, s))
			},
			OnError: func(err error) {
				debug.Log(fmt.Sprintf("%s: %v", kind, err))
			},
		},
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrNotFound, info.Name, kind, err)
	}
	cl, err := gocan.NewWithOpts(ctx, dev)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("hardware: open %s (%s): %w", info.Name, kind, err)
	}
	return &canTransport{
		info:   info,
		kind:   kind,
		cl:     cl,
		cancel: cancel,
		open:   true,
	}, nil
}

func (t *canTransport) IsoTpChannel(set isotp.Settings) (isotp.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, ErrNotOpen
	}
	return isotp.NewCAN(context.Background(), t.cl, set), nil
}

func (t *canTransport) Info() Info { return t.info }
func (t *canTransport) Kind() Kind { return t.kind }

func (t *canTransport) Describe() string {
	return fmt.Sprintf("%s on %s", t.kind, t.info.Name)
}

func (t *canTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// LogMessages always returns nil: CAN adapters have no side channel for the
// board's log stream.
func (t *canTransport) LogMessages() <-chan LogMessage { return nil }

func (t *canTransport) Close() error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil
	}
	t.open = false
	t.mu.Unlock()
	t.cancel()
	return t.cl.Close()
}
