// Package coredump pulls the ESP32 crash dump off the TCU's flash. The
// transfer runs over the KWP2000 upload services in reprogramming mode and
// can take a minute on slow links, so it runs on a background worker the
// caller polls through Status.
package coredump

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// Phase describes where the transfer currently is.
type Phase int

const (
	Idle Phase = iota
	Preparing
	Transferring
	Completed
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Preparing:
		return "Preparing"
	case Transferring:
		return "Transferring"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Status is a snapshot of the worker's progress. Block counts only mean
// something in the Transferring phase; Err only in Aborted.
type Status struct {
	Phase       Phase
	Block       uint32
	TotalBlocks uint32
	BytesRead   uint32
	Err         error
}

// partitionHeaderLen is the ESP-IDF coredump partition preamble in front of
// the ELF image. It is metadata for the on-flash format, not the dump.
const partitionHeaderLen = 20

// Reader drives one coredump download. A Reader is single-shot; make a new
// one for every attempt.
type Reader struct {
	d *nag52.Diag

	mu     sync.RWMutex
	status Status
	dump   []byte

	startOnce sync.Once
	done      chan struct{}
}

func NewReader(d *nag52.Diag) *Reader {
	return &Reader{d: d, done: make(chan struct{})}
}

// Status returns the current progress snapshot.
func (r *Reader) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Done is closed when the worker finishes, successfully or not.
func (r *Reader) Done() <-chan struct{} { return r.done }

// Dump returns the ELF image once Status().Phase == Completed. A nil, nil
// return means the transfer completed but the TCU holds no coredump.
func (r *Reader) Dump() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status.Phase == Aborted {
		return nil, r.status.Err
	}
	return r.dump, nil
}

// SaveELF writes the dump as dump.elf inside dir.
func (r *Reader) SaveELF(dir string) (string, error) {
	dump, err := r.Dump()
	if err != nil {
		return "", err
	}
	if dump == nil {
		return "", fmt.Errorf("coredump: nothing to save, flash holds no dump")
	}
	path := filepath.Join(dir, "dump.elf")
	if err := os.WriteFile(path, dump, 0644); err != nil {
		return "", fmt.Errorf("coredump: save %s: %w", path, err)
	}
	return path, nil
}

// Start launches the background worker. Repeated calls are no-ops.
func (r *Reader) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

func (r *Reader) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Reader) abort(stage string, err error) {
	debug.Log(fmt.Sprintf("coredump: %s failed: %v", stage, err))
	r.setStatus(Status{Phase: Aborted, Err: fmt.Errorf("coredump: %s: %w", stage, err)})
}

// run performs the whole transfer inside one Execute so no other traffic,
// tester-present included, interleaves with the block sequence the ECU
// expects.
func (r *Reader) run() {
	defer close(r.done)
	r.setStatus(Status{Phase: Preparing})

	var (
		raw         []byte
		blocks      uint32
		totalBlocks uint32
	)
	err := r.d.Execute(func(s *nag52.Session) error {
		if err := s.StartDiagnosticSession(kwp2000.SessionReprogramming); err != nil {
			r.abort("enter reprogramming mode", err)
			return nil
		}
		info, err := s.ReadDataByLocalIdentifier(kwp2000.LID_COREDUMP_INFO)
		if err != nil {
			r.abort("read coredump info", err)
			return nil
		}
		if len(info) != 8 {
			r.abort("read coredump info", &kwp2000.InvalidResponseError{Want: 8, Got: len(info)})
			return nil
		}
		address := binary.LittleEndian.Uint32(info[0:4])
		size := binary.LittleEndian.Uint32(info[4:8])
		if size == 0 {
			// Nothing on flash. That is a successful outcome.
			r.setStatus(Status{Phase: Completed})
			return nil
		}

		blockSize, err := requestUpload(s, address, size)
		if err != nil {
			r.abort("request upload", err)
			return nil
		}
		totalBlocks = (size + blockSize - 1) / blockSize
		debug.Log(fmt.Sprintf("coredump: %d bytes at 0x%08X in %d byte blocks", size, address, blockSize))

		data := make([]byte, 0, size)
		for i := uint32(0); uint32(len(data)) < size; i++ {
			resp, err := s.SendRequest([]byte{kwp2000.TRANSFER_DATA, byte((i + 1) & 0xFF)})
			if err != nil {
				r.abort(fmt.Sprintf("transfer block %d", i+1), err)
				return nil
			}
			data = append(data, resp[2:]...)
			blocks = i + 1
			r.setStatus(Status{
				Phase:       Transferring,
				Block:       blocks,
				TotalBlocks: totalBlocks,
				BytesRead:   uint32(len(data)),
			})
		}
		if _, err := s.SendRequest([]byte{kwp2000.REQUEST_TRANSFER_EXIT}); err != nil {
			r.abort("transfer exit", err)
			return nil
		}
		raw = data
		return nil
	})
	if err != nil {
		r.abort("session", err)
		return
	}
	if r.Status().Phase == Aborted || raw == nil {
		return
	}
	if len(raw) < partitionHeaderLen {
		r.abort("strip partition header", &kwp2000.InvalidResponseError{Want: partitionHeaderLen, Got: len(raw)})
		return
	}
	r.mu.Lock()
	r.dump = raw[partitionHeaderLen:]
	r.status = Status{
		Phase:       Completed,
		Block:       blocks,
		TotalBlocks: totalBlocks,
		BytesRead:   uint32(len(raw)),
	}
	r.mu.Unlock()
}

// requestUpload asks the ECU to serve `size` bytes at `address` (both sent
// as 24-bit big-endian per the upload service format) and returns the block
// size the ECU granted.
func requestUpload(s *nag52.Session, address, size uint32) (uint32, error) {
	req := []byte{
		kwp2000.REQUEST_UPLOAD, 0x31,
		byte(address >> 16), byte(address >> 8), byte(address),
		byte(size >> 16), byte(size >> 8), byte(size),
	}
	resp, err := s.SendRequest(req)
	if err != nil {
		return 0, err
	}
	if len(resp) != 3 {
		return 0, &kwp2000.InvalidResponseError{Want: 3, Got: len(resp)}
	}
	blockSize := uint32(resp[1])<<8 | uint32(resp[2])
	if blockSize == 0 {
		return 0, fmt.Errorf("coredump: ECU granted a zero block size")
	}
	return blockSize, nil
}
