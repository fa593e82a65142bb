// Package records reads the TCU's live telemetry records (local identifiers
// 0x20-0x27) and decodes them into typed structs. All records are packed
// little-endian with no padding; 0xFF/0xFFFF/i16 max are the firmware's
// "signal not available" sentinels and are preserved on decode.
package records

import (
	"fmt"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/binstruct"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/kwp2000"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// RecordID selects one telemetry record.
type RecordID byte

const (
	GearboxSensorsID RecordID = kwp2000.LID_GEARBOX_SENSORS
	SolenoidStatusID RecordID = kwp2000.LID_SOLENOID_STATUS
	CanDataDumpID    RecordID = kwp2000.LID_CAN_DATA_DUMP
	SysUsageID       RecordID = kwp2000.LID_SYS_USAGE
	PressureStatusID RecordID = kwp2000.LID_PRESSURE_STATUS
	ShiftMonitorID   RecordID = kwp2000.LID_SHIFT_MONITOR
)

// All lists every queryable record in wire order.
var All = []RecordID{
	GearboxSensorsID,
	SolenoidStatusID,
	CanDataDumpID,
	SysUsageID,
	PressureStatusID,
	ShiftMonitorID,
}

func (r RecordID) String() string {
	switch r {
	case GearboxSensorsID:
		return "GearboxSensors"
	case SolenoidStatusID:
		return "SolenoidStatus"
	case CanDataDumpID:
		return "CanDataDump"
	case SysUsageID:
		return "SysUsage"
	case PressureStatusID:
		return "PressureStatus"
	case ShiftMonitorID:
		return "ShiftMonitor"
	default:
		return fmt.Sprintf("Record(0x%02X)", byte(r))
	}
}

// Record is any decoded telemetry record. Rows gives a UI-free rendering of
// the record with the sentinel checks already applied.
type Record interface {
	RecordID() RecordID
	Rows() []Row
}

// Row is one labelled value. Err marks sensor faults and unavailable
// signals so callers can highlight them.
type Row struct {
	Label string
	Value string
	Err   bool
}

// GearboxSensors is record 0x20: the RPM sensor block plus battery voltage
// and ATF temperature.
type GearboxSensors struct {
	N2Rpm         uint16
	N3Rpm         uint16
	CalculatedRpm uint16
	CalcRatio     uint16 // ratio * 100
	VBatt         uint16 // mV
	AtfTempC      uint32 // degrees C, signed on display
	ParkingLock   uint8
	OutputRpm     uint16
}

func (GearboxSensors) RecordID() RecordID { return GearboxSensorsID }

// Solenoids is record 0x21: PWM duty, measured and target current for all
// six solenoids, plus the constant-current trim factors.
type Solenoids struct {
	SpcPwm        uint16
	MpcPwm        uint16
	TccPwm        uint16
	Y3Pwm         uint16
	Y4Pwm         uint16
	Y5Pwm         uint16
	SpcCurrent    uint16
	MpcCurrent    uint16
	TccCurrent    uint16
	TargSpc       uint16
	TargMpc       uint16
	AdjustmentSpc uint16 // trim * 10, offset +100 %
	AdjustmentMpc uint16
	Y3Current     uint16
	Y4Current     uint16
	Y5Current     uint16
}

func (Solenoids) RecordID() RecordID { return SolenoidStatusID }

// TorqueReqType is the EGS torque request kind in CanDataDump.
type TorqueReqType uint8

const (
	TorqueReqNone TorqueReqType = iota
	TorqueReqLessThan
	TorqueReqMoreThan
	TorqueReqExact
	TorqueReqLessThanFast
	TorqueReqMoreThanFast
	TorqueReqExactFast
)

func (t TorqueReqType) String() string {
	switch t {
	case TorqueReqNone:
		return "None"
	case TorqueReqLessThan:
		return "LessThan"
	case TorqueReqMoreThan:
		return "MoreThan"
	case TorqueReqExact:
		return "Exact"
	case TorqueReqLessThanFast:
		return "LessThanFast"
	case TorqueReqMoreThanFast:
		return "MoreThanFast"
	case TorqueReqExactFast:
		return "ExactFast"
	default:
		return fmt.Sprintf("TorqueReqType(%d)", uint8(t))
	}
}

// PaddlePosition is the steering wheel shift paddle state. 0xFF means the
// signal is not available on this vehicle.
type PaddlePosition uint8

const (
	PaddleNone         PaddlePosition = 0
	PaddlePlus         PaddlePosition = 1
	PaddleMinus        PaddlePosition = 2
	PaddlePlusAndMinus PaddlePosition = 3
	PaddleSNV          PaddlePosition = 0xFF
)

func (p PaddlePosition) String() string {
	switch p {
	case PaddleNone:
		return "None"
	case PaddlePlus:
		return "Plus"
	case PaddleMinus:
		return "Minus"
	case PaddlePlusAndMinus:
		return "PlusAndMinus"
	case PaddleSNV:
		return "SNV"
	default:
		return fmt.Sprintf("PaddlePosition(%d)", uint8(p))
	}
}

// ShifterPosition is the EWM gear selector state, including the transition
// positions between detents.
type ShifterPosition uint8

const (
	ShifterPark           ShifterPosition = 0
	ShifterParkReverse    ShifterPosition = 1
	ShifterReverse        ShifterPosition = 2
	ShifterReverseNeutral ShifterPosition = 3
	ShifterNeutral        ShifterPosition = 4
	ShifterNeutralDrive   ShifterPosition = 5
	ShifterDrive          ShifterPosition = 6
	ShifterPlus           ShifterPosition = 7
	ShifterMinus          ShifterPosition = 8
	ShifterFour           ShifterPosition = 9
	ShifterThree          ShifterPosition = 10
	ShifterTwo            ShifterPosition = 11
	ShifterOne            ShifterPosition = 12
	ShifterSNV            ShifterPosition = 0xFF
)

func (p ShifterPosition) String() string {
	switch p {
	case ShifterPark:
		return "Park"
	case ShifterParkReverse:
		return "ParkReverse"
	case ShifterReverse:
		return "Reverse"
	case ShifterReverseNeutral:
		return "ReverseNeutral"
	case ShifterNeutral:
		return "Neutral"
	case ShifterNeutralDrive:
		return "NeutralDrive"
	case ShifterDrive:
		return "Drive"
	case ShifterPlus:
		return "Plus"
	case ShifterMinus:
		return "Minus"
	case ShifterFour:
		return "Four"
	case ShifterThree:
		return "Three"
	case ShifterTwo:
		return "Two"
	case ShifterOne:
		return "One"
	case ShifterSNV:
		return "SNV"
	default:
		return fmt.Sprintf("ShifterPosition(%d)", uint8(p))
	}
}

// CanDataDump is record 0x22: the TCU's view of the vehicle CAN layer.
// Torque fields are in the Mercedes (x/4)-500 Nm encoding; wheel speeds are
// half-RPM.
type CanDataDump struct {
	PedalPosition      uint8
	MinTorqueMs        uint16
	MaxTorqueMs        uint16
	StaticTorque       uint16
	DriverTorque       uint16
	LeftRearRpm        uint16
	RightRearRpm       uint16
	ShiftProfilePressed uint8
	SelectorPosition   ShifterPosition
	PaddlePosition     PaddlePosition
	EngineRpm          uint16
	FuelFlow           uint16
	EgsReqTorque       uint16
	EgsTorqueReqType   TorqueReqType
	EngineIatTemp      int16
	EngineOilTemp      int16
	EngineCoolantTemp  int16
}

func (CanDataDump) RecordID() RecordID { return CanDataDumpID }

// SysUsage is record 0x23: ESP32 CPU and memory statistics.
type SysUsage struct {
	Core1Usage uint16 // permille of 100 %, i.e. value/10 = percent
	Core2Usage uint16
	FreeRam    uint32
	TotalRam   uint32
	FreePsram  uint32
	TotalPsram uint32
	NumTasks   uint32
}

func (SysUsage) RecordID() RecordID { return SysUsageID }

// Pressures is record 0x25: requested solenoid PWM and line pressures.
type Pressures struct {
	SpcPwm      uint16
	MpcPwm      uint16
	TccPwm      uint16
	SpcPressure uint16 // mBar
	MpcPressure uint16
	TccPressure uint16
}

func (Pressures) RecordID() RecordID { return PressureStatusID }

// ShiftMonitor is record 0x27: the live shift manager state.
type ShiftMonitor struct {
	SpcPressureMbar uint16
	MpcPressureMbar uint16
	TccPressureMbar uint16
	ShiftSolenoidPos uint8
	InputRpm        uint16
	EngineRpm       uint16
	OutputRpm       uint16
	EngineTorque    uint16
	ReqEngineTorque uint16
	AtfTemp         uint8
	ShiftIdx        uint8
}

func (ShiftMonitor) RecordID() RecordID { return ShiftMonitorID }

// shiftNames maps ShiftMonitor.ShiftIdx to the shift in progress.
var shiftNames = map[uint8]string{
	0: "None",
	1: "1 -> 2",
	2: "2 -> 3",
	3: "3 -> 4",
	4: "4 -> 5",
	5: "5 -> 4",
	6: "4 -> 3",
	7: "3 -> 2",
	8: "2 -> 1",
}

// ShiftName resolves a ShiftIdx value, "UNKNOWN" for anything unmapped.
func ShiftName(idx uint8) string {
	if n, ok := shiftNames[idx]; ok {
		return n
	}
	return "UNKNOWN"
}

// decode unpacks payload into the typed record for id.
func decode(id RecordID, payload []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch id {
	case GearboxSensorsID:
		v := &GearboxSensors{}
		err = binstruct.Unpack(payload, v)
		rec = v
	case SolenoidStatusID:
		v := &Solenoids{}
		err = binstruct.Unpack(payload, v)
		rec = v
	case CanDataDumpID:
		v := &CanDataDump{}
		err = binstruct.Unpack(payload, v)
		rec = v
	case SysUsageID:
		v := &SysUsage{}
		err = binstruct.Unpack(payload, v)
		rec = v
	case PressureStatusID:
		v := &Pressures{}
		err = binstruct.Unpack(payload, v)
		rec = v
	case ShiftMonitorID:
		v := &ShiftMonitor{}
		err = binstruct.Unpack(payload, v)
		rec = v
	default:
		return nil, fmt.Errorf("records: no layout for %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("records: decode %s: %w", id, err)
	}
	return rec, nil
}

// Query reads and decodes one record over an open session.
func Query(d *nag52.Diag, id RecordID) (Record, error) {
	var rec Record
	err := d.Execute(func(s *nag52.Session) error {
		payload, err := s.ReadDataByLocalIdentifier(byte(id))
		if err != nil {
			return err
		}
		rec, err = decode(id, payload)
		return err
	})
	return rec, err
}
