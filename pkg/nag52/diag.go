// Package nag52 drives a KWP2000 diagnostic session against the
// Ultimate-NAG52 TCU over any hardware transport.
//
// One Diag exclusively owns its transport and ISO-TP channel. Every exchange
// on the wire, including the tester-present heartbeat, funnels through the
// session's single serialization point, so at most one request/response
// sequence is ever in flight.
package nag52

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/hardware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
)

// Options carries the session timing knobs. The defaults mirror what the TCU
// firmware expects; only tests override them.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	TesterPresentInterval        time.Duration
	TesterPresentRequireResponse bool

	ReconnectAttempts uint
	ReconnectDelay    time.Duration

	// Connector resolves hardware on Reconnect. nil means hardware.Connect;
	// tests substitute fakes here.
	Connector func(hardware.Info, hardware.Kind) (hardware.Transport, error)
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout:                  10 * time.Second,
		WriteTimeout:                 10 * time.Second,
		TesterPresentInterval:        2000 * time.Millisecond,
		TesterPresentRequireResponse: true,
		ReconnectAttempts:            5,
		ReconnectDelay:               2 * time.Second,
	}
}

// Diag is a live diagnostic session. Share it through Retain/Release; the
// last Release closes the transport.
type Diag struct {
	info hardware.Info
	kind hardware.Kind
	opts Options

	mu           sync.Mutex // the wire serialization point
	transport    hardware.Transport
	channel      isotp.Channel
	open         bool
	lastExchange time.Time

	logCh <-chan hardware.LogMessage

	kaStop chan struct{}
	kaDone chan struct{}

	refMu sync.Mutex
	refs  int
}

// channelSettings returns the ISO-TP parameters for a transport kind.
// SocketCAN cannot stream back-to-back frames reliably, so it gets a block
// size of 8 and 0x20 STmin; everything else streams.
func channelSettings(kind hardware.Kind) isotp.Settings {
	set := isotp.DefaultSettings()
	if kind == hardware.SocketCAN {
		set.BlockSize = 8
		set.STMin = 0x20
	}
	return set
}

// New takes ownership of transport and opens a session on it. On error the
// transport is closed; it never stays half-claimed.
func New(transport hardware.Transport) (*Diag, error) {
	return NewWithOptions(transport, DefaultOptions())
}

func NewWithOptions(transport hardware.Transport, opts Options) (*Diag, error) {
	d := &Diag{
		info: transport.Info(),
		kind: transport.Kind(),
		opts: opts,
		refs: 1,
	}
	if err := d.bind(transport); err != nil {
		transport.Close()
		return nil, err
	}
	return d, nil
}

// bind attaches a transport and starts the keepalive. Caller must guarantee
// no session activity is running.
func (d *Diag) bind(transport hardware.Transport) error {
	channel, err := transport.IsoTpChannel(channelSettings(transport.Kind()))
	if err != nil {
		return fmt.Errorf("nag52: open channel: %w", err)
	}
	d.mu.Lock()
	d.transport = transport
	d.channel = channel
	d.logCh = transport.LogMessages()
	d.open = true
	d.lastExchange = time.Now()
	d.mu.Unlock()

	d.kaStop = make(chan struct{})
	d.kaDone = make(chan struct{})
	go d.keepalive(d.kaStop, d.kaDone)
	return nil
}

// teardown stops the keepalive and releases channel and transport. Safe to
// call twice.
func (d *Diag) teardown() {
	if d.kaStop != nil {
		select {
		case <-d.kaStop:
		default:
			close(d.kaStop)
		}
		<-d.kaDone
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	d.open = false
	if d.channel != nil {
		d.channel.Close()
	}
	if d.transport != nil {
		d.transport.Close()
	}
}

// Close tears the session down. After Close every Execute fails with
// kwp2000.ErrNotOpen until a Reconnect succeeds.
func (d *Diag) Close() error {
	d.teardown()
	return nil
}

func (d *Diag) Describe() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transport == nil {
		return fmt.Sprintf("%s (disconnected)", d.info.Name)
	}
	return d.transport.Describe()
}

func (d *Diag) Info() hardware.Info { return d.info }

// Execute is the sole access path to the wire. fn runs with the session
// locked; nothing else, the heartbeat included, can touch the channel while
// it runs.
func (d *Diag) Execute(fn func(*Session) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return kwp2000.ErrNotOpen
	}
	return fn(&Session{d: d})
}

// Reconnect drops the current transport and session, re-resolves the same
// hardware by its Info and rebuilds everything. In-flight Execute calls fail
// rather than hang; their 10 s timeouts are the cancellation mechanism.
func (d *Diag) Reconnect() error {
	d.teardown()
	debug.Log(fmt.Sprintf("reconnect: looking for %s (%s)", d.info.Name, d.kind))
	connect := d.opts.Connector
	if connect == nil {
		connect = hardware.Connect
	}
	transport, err := connect(d.info, d.kind)
	if err != nil {
		return err
	}
	if err := d.bind(transport); err != nil {
		transport.Close()
		return err
	}
	return nil
}

// ReconnectWithRetry runs Reconnect on the session's bounded retry policy
// (five attempts two seconds apart by default).
func (d *Diag) ReconnectWithRetry() error {
	return retry.Do(
		d.Reconnect,
		retry.Attempts(d.opts.ReconnectAttempts),
		retry.Delay(d.opts.ReconnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			debug.Log(fmt.Sprintf("reconnect attempt %d/%d failed: %v", n+1, d.opts.ReconnectAttempts, err))
		}),
	)
}

// ShouldReconnect reports whether err warrants tearing the link down and
// retrying. ECU-defined negative responses are terminal for their request
// and never reconnect-worthy; connectivity and timeout failures are.
func ShouldReconnect(err error) bool {
	if err == nil {
		return false
	}
	return !kwp2000.IsECUError(err)
}

// CanReadLog reports whether the transport exposes the board's log stream.
// Only the USB endpoint does.
func (d *Diag) CanReadLog() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logCh != nil
}

// ReadLogMessage drains one log message without blocking.
func (d *Diag) ReadLogMessage() (hardware.LogMessage, bool) {
	d.mu.Lock()
	ch := d.logCh
	d.mu.Unlock()
	if ch == nil {
		return hardware.LogMessage{}, false
	}
	select {
	case msg, ok := <-ch:
		if !ok {
			return hardware.LogMessage{}, false
		}
		return msg, true
	default:
		return hardware.LogMessage{}, false
	}
}

// keepalive fires tester-present every interval so the ECU does not drop the
// session during long user-driven sequences. It shares the serialization
// point with normal traffic and skips its tick when a request already ran
// within the interval.
func (d *Diag) keepalive(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.opts.TesterPresentInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			if !d.open {
				d.mu.Unlock()
				return
			}
			if time.Since(d.lastExchange) < d.opts.TesterPresentInterval {
				d.mu.Unlock()
				continue
			}
			err := d.testerPresentLocked()
			d.mu.Unlock()
			if err != nil {
				debug.Log(fmt.Sprintf("tester present failed: %v", err))
			}
		}
	}
}

func (d *Diag) testerPresentLocked() error {
	if d.opts.TesterPresentRequireResponse {
		_, err := d.exchangeLocked([]byte{kwp2000.TESTER_PRESENT, kwp2000.TP_RESPONSE_REQUIRED})
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.WriteTimeout)
	defer cancel()
	return d.channel.Send(ctx, []byte{kwp2000.TESTER_PRESENT, kwp2000.TP_NO_RESPONSE})
}

// exchangeLocked performs one request/response sequence. Caller holds d.mu.
// A 0x78 "response pending" negative restarts the read timeout; any other
// negative response is translated and returned verbatim.
func (d *Diag) exchangeLocked(req []byte) ([]byte, error) {
	if !d.open {
		return nil, kwp2000.ErrNotOpen
	}
	d.lastExchange = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.WriteTimeout)
	err := d.channel.Send(ctx, req)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("nag52: send: %w", err)
	}

	for {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.ReadTimeout)
		resp, err := d.channel.Recv(ctx, d.opts.ReadTimeout)
		cancel()
		d.lastExchange = time.Now()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kwp2000.ErrTimeout, err)
		}
		if len(resp) == 0 {
			return nil, &kwp2000.InvalidResponseError{Want: 1, Got: 0}
		}
		if resp[0] == kwp2000.NEGATIVE_RESPONSE {
			if len(resp) < 3 {
				return nil, &kwp2000.InvalidResponseError{Want: 3, Got: len(resp)}
			}
			if resp[2] == kwp2000.REQUEST_CORRECTLY_RECEIVED_RESPONSE_PENDING {
				continue
			}
			return nil, kwp2000.TranslateErrorCode(resp[2])
		}
		if resp[0] != req[0]|kwp2000.POSITIVE_RESPONSE_OFFSET {
			return nil, fmt.Errorf("nag52: response SID %02X does not match request %02X", resp[0], req[0])
		}
		return resp, nil
	}
}
