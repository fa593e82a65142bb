package settings

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// The vehicle/gearbox configuration block (local identifier 0xFE) and the
// one-time EFUSE block (0xFD). Unlike the SCN program blocks these are read
// and written whole, without the id-prefix framing, and a write only takes
// effect after a power-on reset in reprogramming mode.

// enum8 backs the closed one-byte enumerations. Each concrete enum keeps its
// own name table; YAML carries the names so a backup stays readable and a
// typo fails to restore instead of writing a wrong raw value.
func enumMarshal(names map[uint8]string, v uint8) (any, error) {
	if n, ok := names[v]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("settings: no name for enum value %d", v)
}

func enumUnmarshal(names map[uint8]string, node *yaml.Node, out *uint8) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	for v, n := range names {
		if n == s {
			*out = v
			return nil
		}
	}
	return fmt.Errorf("settings: %q is not a legal value", s)
}

func enumString(names map[uint8]string, v uint8) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(%d)", v)
}

func enumEntries(names map[uint8]string) []string {
	out := make([]string, 0, len(names))
	for v := uint8(0); int(v) < len(names); v++ {
		if n, ok := names[v]; ok {
			out = append(out, n)
		}
	}
	return out
}

// DefaultProfile is the drive profile selected at ignition.
type DefaultProfile uint8

const (
	ProfileStandard DefaultProfile = iota
	ProfileComfort
	ProfileWinter
	ProfileAgility
	ProfileManual
)

var profileNames = map[uint8]string{
	0: "Standard", 1: "Comfort", 2: "Winter", 3: "Agility", 4: "Manual",
}

func (p DefaultProfile) String() string { return enumString(profileNames, uint8(p)) }
func (p DefaultProfile) MarshalYAML() (any, error) { return enumMarshal(profileNames, uint8(p)) }
func (p *DefaultProfile) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(profileNames, node, (*uint8)(p))
}

// EngineType selects which redline field applies.
type EngineType uint8

const (
	EngineDiesel EngineType = iota
	EnginePetrol
)

var engineNames = map[uint8]string{0: "Diesel", 1: "Petrol"}

func (e EngineType) String() string { return enumString(engineNames, uint8(e)) }
func (e EngineType) MarshalYAML() (any, error) { return enumMarshal(engineNames, uint8(e)) }
func (e *EngineType) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(engineNames, node, (*uint8)(e))
}

// EgsCanType is the vehicle CAN layer the TCU emulates.
type EgsCanType uint8

const (
	EgsCanUnknown EgsCanType = iota
	EgsCan51
	EgsCan52
	EgsCan53
)

var egsCanNames = map[uint8]string{0: "UNKNOWN", 1: "EGS51", 2: "EGS52", 3: "EGS53"}

func (e EgsCanType) String() string { return enumString(egsCanNames, uint8(e)) }
func (e EgsCanType) MarshalYAML() (any, error) { return enumMarshal(egsCanNames, uint8(e)) }
func (e *EgsCanType) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(egsCanNames, node, (*uint8)(e))
}

// ShifterStyle is the gear selector hardware (V1.2+ boards).
type ShifterStyle uint8

const (
	ShifterEwmCan ShifterStyle = iota
	ShifterTrrs
	ShifterSlrMclaren
)

var shifterNames = map[uint8]string{0: "EWM_CAN", 1: "TRRS", 2: "SLR_MCLAREN"}

func (s ShifterStyle) String() string { return enumString(shifterNames, uint8(s)) }
func (s ShifterStyle) MarshalYAML() (any, error) { return enumMarshal(shifterNames, uint8(s)) }
func (s *ShifterStyle) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(shifterNames, node, (*uint8)(s))
}

// IOPinConfig is the V1.3 general purpose IO pin role.
type IOPinConfig uint8

const (
	IOPinNotConnected IOPinConfig = iota
	IOPinInput
	IOPinOutput
)

var ioPinNames = map[uint8]string{0: "NotConnected", 1: "Input", 2: "Output"}

func (i IOPinConfig) String() string { return enumString(ioPinNames, uint8(i)) }
func (i IOPinConfig) MarshalYAML() (any, error) { return enumMarshal(ioPinNames, uint8(i)) }
func (i *IOPinConfig) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(ioPinNames, node, (*uint8)(i))
}

// MosfetPurpose is the V1.3 general purpose MOSFET role.
type MosfetPurpose uint8

const (
	MosfetNotConnected MosfetPurpose = iota
	MosfetTorqueCutTrigger
	MosfetB3BrakeSolenoid
)

var mosfetNames = map[uint8]string{0: "NotConnected", 1: "TorqueCutTrigger", 2: "B3BrakeSolenoid"}

func (m MosfetPurpose) String() string { return enumString(mosfetNames, uint8(m)) }
func (m MosfetPurpose) MarshalYAML() (any, error) { return enumMarshal(mosfetNames, uint8(m)) }
func (m *MosfetPurpose) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(mosfetNames, node, (*uint8)(m))
}

// BoardType is the PCB variant burned into the EFUSE block.
type BoardType uint8

const (
	BoardTypeUnknown BoardType = iota
	BoardTypeV11
	BoardTypeV12
	BoardTypeV13
)

var boardNames = map[uint8]string{0: "Unknown", 1: "V11", 2: "V12", 3: "V13"}

func (b BoardType) String() string { return enumString(boardNames, uint8(b)) }
func (b BoardType) MarshalYAML() (any, error) { return enumMarshal(boardNames, uint8(b)) }
func (b *BoardType) UnmarshalYAML(node *yaml.Node) error {
	return enumUnmarshal(boardNames, node, (*uint8)(b))
}

// TcmCoreConfig is the vehicle and gearbox description the TCU needs before
// it can drive anything. IsLargeNag and IsFourMatic are u8 on the wire to
// match the firmware struct.
type TcmCoreConfig struct {
	IsLargeNag              uint8          `yaml:"is_large_nag"`
	DefaultProfile          DefaultProfile `yaml:"default_profile"`
	DiffRatioRaw            uint16         `yaml:"diff_ratio"`
	WheelCircumference      uint16         `yaml:"wheel_circumference"`
	EngineType              EngineType     `yaml:"engine_type"`
	RedLineDieselRpm        uint16         `yaml:"red_line_dieselrpm"`
	RedLinePetrolRpm        uint16         `yaml:"red_line_petrolrpm"`
	IsFourMatic             uint8          `yaml:"is_four_matic"`
	TransferCaseHighRatio   uint16         `yaml:"transfer_case_high_ratio"`
	TransferCaseLowRatio    uint16         `yaml:"transfer_case_low_ratio"`
	EngineDragTorqueRaw     uint16         `yaml:"engine_drag_torque"`
	EgsCanType              EgsCanType     `yaml:"egs_can_type"`
	ShifterStyle            ShifterStyle   `yaml:"shifter_style"`
	IO0Usage                IOPinConfig    `yaml:"io_0_usage"`
	InputSensorPulsesPerRev uint8          `yaml:"input_sensor_pulses_per_rev"`
	OutputPulseWidthPerKmh  uint8          `yaml:"output_pulse_width_per_kmh"`
	MosfetPurpose           MosfetPurpose  `yaml:"mosfet_purpose"`
}

func (TcmCoreConfig) ScnID() byte          { return 0xFE }
func (TcmCoreConfig) Name() string         { return "CoreConfig" }
func (TcmCoreConfig) RevisionName() string { return "A2" }
func (TcmCoreConfig) WikiURL() string {
	return "https://docs.ultimate-nag52.net/en/gettingstarted/configuration"
}
func (TcmCoreConfig) EffectImmediate() bool { return false }

func (TcmCoreConfig) EnumEntries(field string) []string {
	switch field {
	case "default_profile":
		return enumEntries(profileNames)
	case "engine_type":
		return enumEntries(engineNames)
	case "egs_can_type":
		return enumEntries(egsCanNames)
	case "shifter_style":
		return enumEntries(shifterNames)
	case "io_0_usage":
		return enumEntries(ioPinNames)
	case "mosfet_purpose":
		return enumEntries(mosfetNames)
	default:
		return nil
	}
}

// DiffRatio converts the x1000 fixed-point differential ratio.
func (c *TcmCoreConfig) DiffRatio() float32         { return RatioFromRaw(c.DiffRatioRaw) }
func (c *TcmCoreConfig) SetDiffRatio(r float32)     { c.DiffRatioRaw = RatioToRaw(r) }

// EngineDragTorque is stored as Nm*10.
func (c *TcmCoreConfig) EngineDragTorque() float32 { return float32(c.EngineDragTorqueRaw) / 10.0 }
func (c *TcmCoreConfig) SetEngineDragTorque(nm float32) {
	c.EngineDragTorqueRaw = uint16(nm*10.0 + 0.5)
}

// RedLineRpm returns the redline for the configured engine type.
func (c *TcmCoreConfig) RedLineRpm() uint16 {
	if c.EngineType == EngineDiesel {
		return c.RedLineDieselRpm
	}
	return c.RedLinePetrolRpm
}

// TcmEfuseConfig is the one-time hardware fuse block. The board variant and
// manufacture date can be written exactly once on a virgin board.
type TcmEfuseConfig struct {
	BoardVer  BoardType `yaml:"board_ver"`
	ManfDay   uint8     `yaml:"manf_day"`
	ManfWeek  uint8     `yaml:"manf_week"`
	ManfMonth uint8     `yaml:"manf_month"`
	ManfYear  uint8     `yaml:"manf_year"`
}

func (TcmEfuseConfig) ScnID() byte           { return 0xFD }
func (TcmEfuseConfig) Name() string          { return "EfuseConfig" }
func (TcmEfuseConfig) RevisionName() string  { return "A1" }
func (TcmEfuseConfig) WikiURL() string       { return "" }
func (TcmEfuseConfig) EffectImmediate() bool { return false }

func (TcmEfuseConfig) EnumEntries(field string) []string {
	if field == "board_ver" {
		return enumEntries(boardNames)
	}
	return nil
}
