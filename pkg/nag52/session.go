package nag52

import (
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
)

// Session is the command surface handed to Execute callbacks. It is only
// valid for the duration of the callback; the serialization lock is already
// held, so every method talks to the ECU directly.
type Session struct {
	d *Diag
}

// SendRequest runs one raw request and returns the full positive response,
// service ID included. Higher-level helpers below strip their echoes; the
// flash transfer services keep the raw bytes because their block counters
// live right after the SID.
func (s *Session) SendRequest(req []byte) ([]byte, error) {
	return s.d.exchangeLocked(req)
}

// StartDiagnosticSession switches the ECU into the given session mode. Most
// vendor identifiers only answer in ExtendedDiagnostics or the UN52 dev mode.
func (s *Session) StartDiagnosticSession(mode kwp2000.SessionMode) error {
	_, err := s.SendRequest([]byte{kwp2000.START_DIAGNOSTIC_SESSION, byte(mode)})
	return err
}

// TesterPresent pings the ECU explicitly. The background heartbeat does this
// automatically; callers only need it to probe whether the link is alive.
func (s *Session) TesterPresent() error {
	_, err := s.SendRequest([]byte{kwp2000.TESTER_PRESENT, kwp2000.TP_RESPONSE_REQUIRED})
	return err
}

// ResetECU reboots the TCU. The session usually drops right after; follow up
// with Reconnect.
func (s *Session) ResetECU(mode byte) error {
	_, err := s.SendRequest([]byte{kwp2000.ECU_RESET, mode})
	return err
}

// ReadDataByLocalIdentifier reads one record and returns its payload with
// the two-byte response echo stripped.
func (s *Session) ReadDataByLocalIdentifier(id byte) ([]byte, error) {
	resp, err := s.SendRequest([]byte{kwp2000.READ_DATA_BY_LOCAL_IDENTIFIER, id})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, &kwp2000.InvalidResponseError{Want: 2, Got: len(resp)}
	}
	if resp[1] != id {
		return nil, &kwp2000.InvalidResponseError{Want: int(id), Got: int(resp[1])}
	}
	return resp[2:], nil
}

// WriteDataByLocalIdentifier writes a record. data follows the identifier on
// the wire verbatim.
func (s *Session) WriteDataByLocalIdentifier(id byte, data []byte) error {
	req := make([]byte, 0, 2+len(data))
	req = append(req, kwp2000.WRITE_DATA_BY_LOCAL_IDENTIFIER, id)
	req = append(req, data...)
	_, err := s.SendRequest(req)
	return err
}

// ReadECUIdentification reads one identification record (0x86 is the Daimler
// format the TCU implements) and returns its payload.
func (s *Session) ReadECUIdentification(option byte) ([]byte, error) {
	resp, err := s.SendRequest([]byte{kwp2000.READ_ECU_IDENTIFICATION, option})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, &kwp2000.InvalidResponseError{Want: 2, Got: len(resp)}
	}
	return resp[2:], nil
}
