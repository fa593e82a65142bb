package settings

import (
	"time"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/binstruct"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// Wire operations for the SCN program blocks and the fixed config blocks.
// The *Session variants compose inside a single Execute; the *Diag variants
// run a whole flow, session mode changes included.

// ReadBlock reads tunable block T. The TCU only serves SCN blocks in its
// developer session mode; enter it first with EnterDevMode.
func ReadBlock[T Settings](s *nag52.Session) (T, error) {
	var v T
	resp, err := s.SendRequest([]byte{kwp2000.READ_DATA_BY_LOCAL_IDENTIFIER, kwp2000.LID_SETTINGS, v.ScnID()})
	if err != nil {
		return v, err
	}
	if len(resp) < 2 {
		return v, &kwp2000.InvalidResponseError{Want: 2, Got: len(resp)}
	}
	return Unpack[T](resp[2:])
}

// WriteBlock writes tunable block T back, id-prefixed.
func WriteBlock[T Settings](s *nag52.Session, v T) error {
	packed, err := Pack(v)
	if err != nil {
		return err
	}
	return s.WriteDataByLocalIdentifier(kwp2000.LID_SETTINGS, packed)
}

// ResetBlock restores block T to the firmware's built-in defaults.
func ResetBlock[T Settings](s *nag52.Session) error {
	var v T
	return s.WriteDataByLocalIdentifier(kwp2000.LID_SETTINGS, []byte{v.ScnID(), 0x00})
}

// EnterDevMode switches the ECU into the vendor developer session. The
// keepalive holds the session open afterwards.
func EnterDevMode(s *nag52.Session) error {
	return s.StartDiagnosticSession(kwp2000.SessionDevelopment)
}

// LeaveDevMode drops back to the normal session.
func LeaveDevMode(s *nag52.Session) error {
	return s.StartDiagnosticSession(kwp2000.SessionNormal)
}

// ReadCoreConfig reads the 0xFE vehicle/gearbox block.
func ReadCoreConfig(s *nag52.Session) (TcmCoreConfig, error) {
	var cfg TcmCoreConfig
	payload, err := s.ReadDataByLocalIdentifier(kwp2000.LID_CORE_CONFIG)
	if err != nil {
		return cfg, err
	}
	if err := binstruct.Unpack(payload, &cfg); err != nil {
		return cfg, &CodecError{Block: cfg.Name(), Want: binstruct.Size(&cfg), Got: len(payload)}
	}
	return cfg, nil
}

// WriteCoreConfig writes the vehicle/gearbox block. The new configuration
// only applies after the power-on reset this flow issues, so the session
// drops; reconnect afterwards.
func WriteCoreConfig(d *nag52.Diag, cfg TcmCoreConfig) error {
	packed, err := binstruct.Pack(&cfg)
	if err != nil {
		return &CodecError{Block: cfg.Name(), Msg: err.Error()}
	}
	return d.Execute(func(s *nag52.Session) error {
		if err := s.StartDiagnosticSession(kwp2000.SessionReprogramming); err != nil {
			return err
		}
		if err := s.WriteDataByLocalIdentifier(kwp2000.LID_CORE_CONFIG, packed); err != nil {
			return err
		}
		return s.ResetECU(kwp2000.RESET_POWER_ON)
	})
}

// ReadEfuse reads the 0xFD one-time hardware block.
func ReadEfuse(s *nag52.Session) (TcmEfuseConfig, error) {
	var cfg TcmEfuseConfig
	payload, err := s.ReadDataByLocalIdentifier(kwp2000.LID_EFUSE_CONFIG)
	if err != nil {
		return cfg, err
	}
	if err := binstruct.Unpack(payload, &cfg); err != nil {
		return cfg, &CodecError{Block: cfg.Name(), Want: binstruct.Size(&cfg), Got: len(payload)}
	}
	return cfg, nil
}

// WriteEfuse burns the board variant into the fuse block. THIS IS ONE-TIME:
// the TCU refuses further writes once BoardVer is set. The manufacture date
// is stamped from the wall clock at write time.
func WriteEfuse(d *nag52.Diag, cfg TcmEfuseConfig) error {
	now := time.Now().UTC()
	_, week := now.ISOWeek()
	cfg.ManfDay = uint8(now.Day())
	cfg.ManfWeek = uint8(week)
	cfg.ManfMonth = uint8(now.Month())
	cfg.ManfYear = uint8(now.Year() - 2000)

	packed, err := binstruct.Pack(&cfg)
	if err != nil {
		return &CodecError{Block: cfg.Name(), Msg: err.Error()}
	}
	return d.Execute(func(s *nag52.Session) error {
		if err := s.StartDiagnosticSession(kwp2000.SessionReprogramming); err != nil {
			return err
		}
		if err := s.WriteDataByLocalIdentifier(kwp2000.LID_EFUSE_CONFIG, packed); err != nil {
			return err
		}
		return s.ResetECU(kwp2000.RESET_POWER_ON)
	})
}
