package settings_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/hardware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/settings"
)

// truncatingChannel answers every SCN read with a bare positive SID and no
// echo bytes, the shortest response the session layer accepts.
type truncatingChannel struct {
	mu      sync.Mutex
	pending [][]byte
}

func (c *truncatingChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch payload[0] {
	case kwp2000.READ_DATA_BY_LOCAL_IDENTIFIER:
		c.pending = append(c.pending, []byte{payload[0] | 0x40})
	default:
		c.pending = append(c.pending, []byte{payload[0] | 0x40, payload[1]})
	}
	return nil
}

func (c *truncatingChannel) Recv(_ context.Context, _ time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, errors.New("no response pending")
	}
	resp := c.pending[0]
	c.pending = c.pending[1:]
	return resp, nil
}

func (c *truncatingChannel) Close() error { return nil }

type truncatingTransport struct{ ch *truncatingChannel }

func (tr *truncatingTransport) IsoTpChannel(isotp.Settings) (isotp.Channel, error) {
	return tr.ch, nil
}
func (tr *truncatingTransport) Info() hardware.Info                     { return hardware.Info{Name: "fake"} }
func (tr *truncatingTransport) Kind() hardware.Kind                     { return hardware.USB }
func (tr *truncatingTransport) Describe() string                        { return "fake" }
func (tr *truncatingTransport) Connected() bool                         { return true }
func (tr *truncatingTransport) LogMessages() <-chan hardware.LogMessage { return nil }
func (tr *truncatingTransport) Close() error                            { return nil }

func TestReadBlockTruncatedResponse(t *testing.T) {
	opts := nag52.DefaultOptions()
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.TesterPresentInterval = time.Hour
	d, err := nag52.NewWithOptions(&truncatingTransport{ch: &truncatingChannel{}}, opts)
	require.NoError(t, err)
	defer d.Close()

	err = d.Execute(func(s *nag52.Session) error {
		_, err := settings.ReadBlock[settings.TccSettings](s)
		return err
	})
	var ire *kwp2000.InvalidResponseError
	require.ErrorAs(t, err, &ire, "a bare-SID response must fail cleanly, not crash")
}
