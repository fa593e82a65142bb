package coredump_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/coredump"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/hardware"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/isotp"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// fakeECU emulates the TCU side of the coredump upload: reprogramming session,
// the info record, and the 0x35/0x36/0x37 block sequence.
type fakeECU struct {
	t         *testing.T
	flash     []byte // raw partition contents, header included
	address   uint32
	blockSize uint32
	failInfo  byte // negative response code for the info read, 0 = answer

	mu       sync.Mutex
	offset   uint32
	requests [][]byte
	pending  [][]byte
}

func (e *fakeECU) Send(_ context.Context, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := append([]byte(nil), payload...)
	e.requests = append(e.requests, req)
	e.pending = append(e.pending, e.respond(req))
	return nil
}

func (e *fakeECU) respond(req []byte) []byte {
	switch req[0] {
	case kwp2000.START_DIAGNOSTIC_SESSION:
		return []byte{req[0] | 0x40, req[1]}
	case kwp2000.TESTER_PRESENT:
		return []byte{req[0] | 0x40, req[1]}
	case kwp2000.READ_DATA_BY_LOCAL_IDENTIFIER:
		if req[1] != kwp2000.LID_COREDUMP_INFO {
			return []byte{kwp2000.NEGATIVE_RESPONSE, req[0], kwp2000.REQUEST_OUT_OF_RANGE}
		}
		if e.failInfo != 0 {
			return []byte{kwp2000.NEGATIVE_RESPONSE, req[0], e.failInfo}
		}
		info := make([]byte, 8)
		binary.LittleEndian.PutUint32(info[0:4], e.address)
		binary.LittleEndian.PutUint32(info[4:8], uint32(len(e.flash)))
		return append([]byte{req[0] | 0x40, req[1]}, info...)
	case kwp2000.REQUEST_UPLOAD:
		e.offset = 0
		return []byte{req[0] | 0x40, byte(e.blockSize >> 8), byte(e.blockSize)}
	case kwp2000.TRANSFER_DATA:
		end := e.offset + e.blockSize
		if end > uint32(len(e.flash)) {
			end = uint32(len(e.flash))
		}
		chunk := e.flash[e.offset:end]
		e.offset = end
		return append([]byte{req[0] | 0x40, req[1]}, chunk...)
	case kwp2000.REQUEST_TRANSFER_EXIT:
		return []byte{req[0] | 0x40}
	}
	return []byte{kwp2000.NEGATIVE_RESPONSE, req[0], kwp2000.SERVICE_NOT_SUPPORTED}
}

func (e *fakeECU) Recv(_ context.Context, _ time.Duration) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return nil, errors.New("no response pending")
	}
	resp := e.pending[0]
	e.pending = e.pending[1:]
	return resp, nil
}

func (e *fakeECU) Close() error { return nil }

func (e *fakeECU) sentRequests() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.requests))
	copy(out, e.requests)
	return out
}

type ecuTransport struct{ ecu *fakeECU }

func (tr *ecuTransport) IsoTpChannel(isotp.Settings) (isotp.Channel, error) { return tr.ecu, nil }
func (tr *ecuTransport) Info() hardware.Info                                { return hardware.Info{Name: "fake"} }
func (tr *ecuTransport) Kind() hardware.Kind                                { return hardware.USB }
func (tr *ecuTransport) Describe() string                                   { return "fake" }
func (tr *ecuTransport) Connected() bool                                    { return true }
func (tr *ecuTransport) LogMessages() <-chan hardware.LogMessage            { return nil }
func (tr *ecuTransport) Close() error                                       { return nil }

func newDiag(t *testing.T, ecu *fakeECU) *nag52.Diag {
	t.Helper()
	opts := nag52.DefaultOptions()
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.TesterPresentInterval = time.Hour
	d, err := nag52.NewWithOptions(&ecuTransport{ecu: ecu}, opts)
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func waitDone(t *testing.T, r *coredump.Reader) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not finish")
	}
}

// flashImage builds a partition of the given payload size behind the 20-byte
// partition header the reader must strip.
func flashImage(payload int) []byte {
	img := make([]byte, 20+payload)
	for i := range img[:20] {
		img[i] = 0xEE
	}
	copy(img[20:], []byte{0x7F, 'E', 'L', 'F'})
	for i := 4; i < payload; i++ {
		img[20+i] = byte(i)
	}
	return img
}

func TestNoDumpOnFlash(t *testing.T) {
	ecu := &fakeECU{t: t, address: 0x3F0000, blockSize: 256}
	r := coredump.NewReader(newDiag(t, ecu))
	r.Start()
	waitDone(t, r)

	if got := r.Status(); got.Phase != coredump.Completed || got.BytesRead != 0 {
		t.Fatalf("status = %+v, want Completed with zero bytes", got)
	}
	dump, err := r.Dump()
	if err != nil || dump != nil {
		t.Errorf("Dump() = %v, %v; want nil, nil", dump, err)
	}
	if _, err := r.SaveELF(t.TempDir()); err == nil {
		t.Error("SaveELF() succeeded with nothing to save")
	}
	for _, req := range ecu.sentRequests() {
		if req[0] == kwp2000.REQUEST_UPLOAD {
			t.Error("upload requested despite empty flash")
		}
	}
}

func TestFullTransfer(t *testing.T) {
	flash := flashImage(1000 - 20)
	ecu := &fakeECU{t: t, flash: flash, address: 0x3F0000, blockSize: 256}
	r := coredump.NewReader(newDiag(t, ecu))
	r.Start()
	r.Start() // second Start is a no-op
	waitDone(t, r)

	status := r.Status()
	if status.Phase != coredump.Completed {
		t.Fatalf("phase = %s, err = %v", status.Phase, status.Err)
	}
	if status.BytesRead != 1000 {
		t.Errorf("BytesRead = %d, want 1000", status.BytesRead)
	}
	// 1000 bytes at 256 per block rounds up to 4; the tail block counts too.
	if status.TotalBlocks != 4 {
		t.Errorf("TotalBlocks = %d, want 4", status.TotalBlocks)
	}
	if status.Block != status.TotalBlocks {
		t.Errorf("Block = %d, want %d after completion", status.Block, status.TotalBlocks)
	}

	dump, err := r.Dump()
	if err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if !bytes.Equal(dump, flash[20:]) {
		t.Fatal("dump does not match flash contents past the partition header")
	}

	var transfers []byte
	sawExit := false
	for _, req := range ecu.sentRequests() {
		switch req[0] {
		case kwp2000.TRANSFER_DATA:
			if sawExit {
				t.Error("transfer block after exit")
			}
			transfers = append(transfers, req[1])
		case kwp2000.REQUEST_TRANSFER_EXIT:
			sawExit = true
		}
	}
	// 1000 bytes in 256 byte blocks: 3 full plus one 232 byte tail.
	if !bytes.Equal(transfers, []byte{1, 2, 3, 4}) {
		t.Errorf("block counters = %v, want [1 2 3 4]", transfers)
	}
	if !sawExit {
		t.Error("transfer exit never requested")
	}

	path, err := r.SaveELF(t.TempDir())
	if err != nil {
		t.Fatalf("SaveELF() failed: %v", err)
	}
	if path == "" {
		t.Error("SaveELF() returned an empty path")
	}
}

func TestAbortOnZeroBlockSize(t *testing.T) {
	ecu := &fakeECU{t: t, flash: flashImage(100), address: 0x3F0000, blockSize: 0}
	r := coredump.NewReader(newDiag(t, ecu))
	r.Start()
	waitDone(t, r)

	status := r.Status()
	if status.Phase != coredump.Aborted {
		t.Fatalf("phase = %s, want Aborted on a zero granted block size", status.Phase)
	}
	if status.Err == nil {
		t.Fatal("Aborted status carries no error")
	}
	for _, req := range ecu.sentRequests() {
		if req[0] == kwp2000.TRANSFER_DATA {
			t.Error("transfer attempted despite the zero block size")
		}
	}
}

func TestAbortOnNegativeResponse(t *testing.T) {
	ecu := &fakeECU{t: t, address: 0x3F0000, blockSize: 256,
		failInfo: kwp2000.CONDITIONS_NOT_CORRECT_OR_REQUEST_SEQUENCE_ERROR}
	r := coredump.NewReader(newDiag(t, ecu))
	r.Start()
	waitDone(t, r)

	status := r.Status()
	if status.Phase != coredump.Aborted {
		t.Fatalf("phase = %s, want Aborted", status.Phase)
	}
	if !kwp2000.IsECUError(status.Err) {
		t.Errorf("Err = %v, want an ECU negative response", status.Err)
	}
	if _, err := r.Dump(); err == nil {
		t.Error("Dump() succeeded after an aborted transfer")
	}
}
