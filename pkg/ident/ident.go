// Package ident decodes the TCU's Daimler identification record: which EGS
// compatibility profile the firmware emulates, the PCB revision and the
// build/production dates. Every date field on the wire is BCD coded.
package ident

import (
	"fmt"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// EgsMode is the EGS variant the firmware reports in its diagnostic variant
// code. The TCU can masquerade as any of the three Mercedes EGS generations
// depending on the vehicle's CAN layer.
type EgsMode uint16

const (
	EGS51 EgsMode = 0x0251
	EGS52 EgsMode = 0x0252
	EGS53 EgsMode = 0x0253
)

func (m EgsMode) String() string {
	switch m {
	case EGS51:
		return "EGS51"
	case EGS52:
		return "EGS52"
	case EGS53:
		return "EGS53"
	default:
		return fmt.Sprintf("Unknown(0x%04X)", uint16(m))
	}
}

// PCBVersion is the board revision, derived from the hardware build date.
type PCBVersion int

const (
	BoardUnknown PCBVersion = iota
	BoardV11
	BoardV12
	BoardV13
)

func (v PCBVersion) String() string {
	switch v {
	case BoardV11:
		return "V1.1"
	case BoardV12:
		return "V1.2"
	case BoardV13:
		return "V1.3"
	default:
		return "V_NDEF"
	}
}

// boardFromDate maps a decoded hardware build week/year to the revision. The
// three production runs so far each have a unique date.
func boardFromDate(week, year uint32) PCBVersion {
	switch {
	case week == 49 && year == 21:
		return BoardV11
	case week == 27 && year == 22:
		return BoardV12
	case week == 49 && year == 22:
		return BoardV13
	default:
		return BoardUnknown
	}
}

// DecodeBCD converts one packed BCD byte to its decimal value, so 0x49
// becomes 49. Values with nibbles above 9 pass through arithmetically, which
// matches how the ECU-side encoder behaves on garbage.
func DecodeBCD(b byte) uint32 {
	return 10*uint32(b>>4) + uint32(b&0x0F)
}

// IdentData is the decoded identification record.
type IdentData struct {
	PartNumber string
	EgsMode    EgsMode
	BoardVer   PCBVersion

	ManfDay   uint32
	ManfMonth uint32
	ManfYear  uint32

	HwWeek uint32
	HwYear uint32
	SwWeek uint32
	SwYear uint32

	Supplier uint8
}

// identRecordLen is the fixed size of the Daimler 0x86 identification record:
// ten BCD part number bytes, four BCD build date bytes, the supplier id, the
// big-endian diagnostic variant code and three BCD production date bytes.
const identRecordLen = 20

// Decode parses the raw payload of READ_ECU_IDENTIFICATION option 0x86.
func Decode(payload []byte) (*IdentData, error) {
	if len(payload) < identRecordLen {
		return nil, &kwp2000.InvalidResponseError{Want: identRecordLen, Got: len(payload)}
	}
	part := make([]byte, 0, 20)
	for _, b := range payload[:10] {
		part = append(part, byte('0'+b>>4), byte('0'+b&0x0F))
	}
	hwWeek := DecodeBCD(payload[10])
	hwYear := DecodeBCD(payload[11])
	return &IdentData{
		PartNumber: string(part),
		EgsMode:    EgsMode(uint16(payload[15])<<8 | uint16(payload[16])),
		BoardVer:   boardFromDate(hwWeek, hwYear),
		HwWeek:     hwWeek,
		HwYear:     hwYear,
		SwWeek:     DecodeBCD(payload[12]),
		SwYear:     DecodeBCD(payload[13]),
		Supplier:   payload[14],
		ManfYear:   DecodeBCD(payload[17]),
		ManfMonth:  DecodeBCD(payload[18]),
		ManfDay:    DecodeBCD(payload[19]),
	}, nil
}

// Query reads and decodes the identification record over an open session.
func Query(d *nag52.Diag) (*IdentData, error) {
	var data *IdentData
	err := d.Execute(func(s *nag52.Session) error {
		payload, err := s.ReadECUIdentification(kwp2000.IDENT_DAIMLER)
		if err != nil {
			return err
		}
		data, err = Decode(payload)
		return err
	})
	return data, err
}
