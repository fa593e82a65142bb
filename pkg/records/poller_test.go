package records_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/hardware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/records"
)

// telemetryChannel serves the gearbox sensor record for every read request.
type telemetryChannel struct {
	mu      sync.Mutex
	pending [][]byte
	closed  bool
}

func gearboxPayload() []byte {
	// Matches the GearboxSensors wire layout: five u16, one u32, u8, u16.
	return []byte{
		0xE8, 0x03, // N2 1000
		0xDC, 0x05, // N3 1500
		0xD2, 0x04, // input 1234
		0x0C, 0x01, // ratio 268
		0xD4, 0x30, // vbatt 12500
		0x50, 0x00, 0x00, 0x00, // atf 80
		0x00,       // parking lock off
		0xF4, 0x01, // output 500
	}
}

func (c *telemetryChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	switch payload[0] {
	case kwp2000.READ_DATA_BY_LOCAL_IDENTIFIER:
		resp := append([]byte{payload[0] | 0x40, payload[1]}, gearboxPayload()...)
		c.pending = append(c.pending, resp)
	default:
		c.pending = append(c.pending, []byte{payload[0] | 0x40, payload[1]})
	}
	return nil
}

func (c *telemetryChannel) Recv(_ context.Context, _ time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, errors.New("no response pending")
	}
	resp := c.pending[0]
	c.pending = c.pending[1:]
	return resp, nil
}

func (c *telemetryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type telemetryTransport struct{ ch *telemetryChannel }

func (tr *telemetryTransport) IsoTpChannel(isotp.Settings) (isotp.Channel, error) { return tr.ch, nil }
func (tr *telemetryTransport) Info() hardware.Info                 { return hardware.Info{Name: "fake"} }
func (tr *telemetryTransport) Kind() hardware.Kind                 { return hardware.USB }
func (tr *telemetryTransport) Describe() string                    { return "fake" }
func (tr *telemetryTransport) Connected() bool                     { return true }
func (tr *telemetryTransport) LogMessages() <-chan hardware.LogMessage { return nil }
func (tr *telemetryTransport) Close() error                        { return nil }

func newTelemetryDiag(t *testing.T) *nag52.Diag {
	t.Helper()
	opts := nag52.DefaultOptions()
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.TesterPresentInterval = time.Hour
	d, err := nag52.NewWithOptions(&telemetryTransport{ch: &telemetryChannel{}}, opts)
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestQuery(t *testing.T) {
	d := newTelemetryDiag(t)
	rec, err := records.Query(d, records.GearboxSensorsID)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	sensors, ok := rec.(*records.GearboxSensors)
	if !ok {
		t.Fatalf("Query() = %T, want *records.GearboxSensors", rec)
	}
	if sensors.N2Rpm != 1000 || sensors.VBatt != 12500 || sensors.OutputRpm != 500 {
		t.Errorf("decoded fields = %+v", sensors)
	}
}

func TestPollerServesSnapshots(t *testing.T) {
	d := newTelemetryDiag(t)
	p := records.NewPoller(d, []records.RecordID{records.GearboxSensorsID}, 20*time.Millisecond)
	p.Start()
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		if rec, ok := p.Get(records.GearboxSensorsID); ok {
			if rec.RecordID() != records.GearboxSensorsID {
				t.Fatalf("cached record id = %s", rec.RecordID())
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("poller never produced a snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollerExpiresStaleEntries(t *testing.T) {
	d := newTelemetryDiag(t)
	interval := 20 * time.Millisecond
	p := records.NewPoller(d, []records.RecordID{records.GearboxSensorsID}, interval)
	p.Start()
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := p.Get(records.GearboxSensorsID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("poller never produced a snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Kill the link: refreshes start failing and the cached snapshot must age
	// out after three missed periods instead of serving frozen data forever.
	d.Close()
	time.Sleep(5 * interval)
	if _, ok := p.Get(records.GearboxSensorsID); ok {
		t.Error("stale snapshot still served after the link died")
	}
}
