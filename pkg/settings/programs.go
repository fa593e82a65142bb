package settings

// The seven tunable program blocks. Field layouts mirror the firmware's
// MODULE_SETTINGS structs byte for byte; a mismatch between app and firmware
// shows up as a CodecError length complaint rather than silent corruption.

const settingsWikiBase = "https://docs.ultimate-nag52.net/en/gettingstarted/configuration/settings"

// SCN block identifiers.
const (
	ScnTCC byte = 0x01
	ScnSOL byte = 0x02
	ScnSBS byte = 0x03
	ScnNAG byte = 0x04
	ScnPRM byte = 0x05
	ScnADP byte = 0x06
	ScnETS byte = 0x07
)

// TccSettings tunes the torque converter clutch lockup strategy.
type TccSettings struct {
	AdaptEnable              bool   `yaml:"adapt_enable"`
	EnableD1                 bool   `yaml:"enable_d1"`
	EnableD2                 bool   `yaml:"enable_d2"`
	EnableD3                 bool   `yaml:"enable_d3"`
	PrefillPressure          uint16 `yaml:"prefill_pressure"`
	LockRpmThreshold         uint16 `yaml:"lock_rpm_threshold"`
	MinLockingRpm            uint16 `yaml:"min_locking_rpm"`
	AdjustIntervalMs         uint16 `yaml:"adjust_interval_ms"`
	TccStallSpeed            uint16 `yaml:"tcc_stall_speed"`
	MinTorqueAdapt           uint16 `yaml:"min_torque_adapt"`
	MaxTorqueAdapt           uint16 `yaml:"max_torque_adapt"`
	PrefillMinTime           uint16 `yaml:"prefill_min_time"`
	BasePressureOffsetRamp   LinearInterp `yaml:"base_pressure_offset_ramp"`
	AdaptPressureStep        uint8  `yaml:"adapt_pressure_step"`
	AdaptLockupDetectTimeMs  uint16 `yaml:"adapt_lockup_detect_time_ms"`
	PulsingFlareAmplitudeRpm uint16 `yaml:"pulsing_flare_amplitude_rpm"`
	ForceLockAtKmh           uint16 `yaml:"force_lock_at_kmh"`
	LockingMaxPedalPos       uint8  `yaml:"locking_max_pedal_pos"`
}

func (TccSettings) ScnID() byte                  { return ScnTCC }
func (TccSettings) Name() string                 { return "TCC" }
func (TccSettings) RevisionName() string         { return "A4" }
func (TccSettings) WikiURL() string              { return settingsWikiBase + "/tcc" }
func (TccSettings) EffectImmediate() bool        { return true }
func (TccSettings) EnumEntries(string) []string  { return nil }

// SolSettings tunes the constant-current solenoid drivers.
type SolSettings struct {
	MinBattVoltageOnTest  uint16  `yaml:"min_batt_voltage_on_test"`
	CurrentThresholdError uint16  `yaml:"current_threshold_error"`
	CcVrefSolenoid        uint16  `yaml:"cc_vref_solenoid"`
	CcTempCoefficient     float32 `yaml:"cc_temp_coefficient"`
	CcReferenceResistance float32 `yaml:"cc_reference_resistance"`
	CcReferenceTemp       float32 `yaml:"cc_reference_temp"`
	CcMaxAdjustPerStep    uint16  `yaml:"cc_max_adjust_per_step"`
}

func (SolSettings) ScnID() byte                 { return ScnSOL }
func (SolSettings) Name() string                { return "SOL" }
func (SolSettings) RevisionName() string        { return "A1" }
func (SolSettings) WikiURL() string             { return settingsWikiBase + "/sol" }
func (SolSettings) EffectImmediate() bool       { return true }
func (SolSettings) EnumEntries(string) []string { return nil }

// SbsSettings tunes the shift basic strategy (timings and overlap behavior
// for every gear change).
type SbsSettings struct {
	MinUpshiftEndRpm        uint16       `yaml:"min_upshift_end_rpm"`
	ShiftTimeoutComfortMs   uint16       `yaml:"shift_timeout_comfort_ms"`
	ShiftTimeoutSportMs     uint16       `yaml:"shift_timeout_sport_ms"`
	SmoothingTimeMs         uint16       `yaml:"smoothing_time_ms"`
	TorqueReductionFactor   LinearInterp `yaml:"torque_reduction_factor"`
	MaxOverlapPressure      uint16       `yaml:"max_overlap_pressure"`
	GarageShiftMaxTimeoutMs uint16       `yaml:"garage_shift_max_timeout_ms"`
	FlareDetectAmplitudeRpm uint16       `yaml:"flare_detect_amplitude_rpm"`
}

func (SbsSettings) ScnID() byte                 { return ScnSBS }
func (SbsSettings) Name() string                { return "SBS" }
func (SbsSettings) RevisionName() string        { return "A5" }
func (SbsSettings) WikiURL() string             { return settingsWikiBase + "/sbs" }
func (SbsSettings) EffectImmediate() bool       { return true }
func (SbsSettings) EnumEntries(string) []string { return nil }

// GearRatios is one ratio table, stored as ratio*1000 fixed point.
type GearRatios struct {
	R1 uint16 `yaml:"r1"`
	R2 uint16 `yaml:"r2"`
	G1 uint16 `yaml:"g1"`
	G2 uint16 `yaml:"g2"`
	G3 uint16 `yaml:"g3"`
	G4 uint16 `yaml:"g4"`
	G5 uint16 `yaml:"g5"`
}

// NagSettings describes the gearbox itself: ratio tables for the small and
// large 722.6 variants and the mechanical torque limit.
type NagSettings struct {
	MaxTorque      uint16     `yaml:"max_torque"`
	RatiosSmallNag GearRatios `yaml:"ratios_small_nag"`
	RatiosLargeNag GearRatios `yaml:"ratios_large_nag"`
	PowerLossFwd   uint8      `yaml:"power_loss_fwd"`
	PowerLossRev   uint8      `yaml:"power_loss_rev"`
}

func (NagSettings) ScnID() byte                 { return ScnNAG }
func (NagSettings) Name() string                { return "NAG" }
func (NagSettings) RevisionName() string        { return "A1" }
func (NagSettings) WikiURL() string             { return settingsWikiBase + "/nag" }
func (NagSettings) EffectImmediate() bool       { return false }
func (NagSettings) EnumEntries(string) []string { return nil }

// PrmSettings holds the hydraulic pressure model: solenoid current to
// pressure maps and the working pressure curve.
type PrmSettings struct {
	MaxLinePressure        uint16       `yaml:"max_line_pressure"`
	SpcCurrentToPressure   LinearInterp `yaml:"spc_current_to_pressure"`
	MpcCurrentToPressure   LinearInterp `yaml:"mpc_current_to_pressure"`
	TccPwmToPressure       LinearInterp `yaml:"tcc_pwm_to_pressure"`
	WorkingPressureCompTemp LinearInterp `yaml:"working_pressure_comp_temp"`
	MinWorkingPressure     uint16       `yaml:"min_working_pressure"`
}

func (PrmSettings) ScnID() byte                 { return ScnPRM }
func (PrmSettings) Name() string                { return "PRM" }
func (PrmSettings) RevisionName() string        { return "A2" }
func (PrmSettings) WikiURL() string             { return settingsWikiBase + "/prm" }
func (PrmSettings) EffectImmediate() bool       { return false }
func (PrmSettings) EnumEntries(string) []string { return nil }

// AdpSettings gates and bounds the shift adaptation engine.
type AdpSettings struct {
	AdaptEnable       bool   `yaml:"adapt_enable"`
	MinAtfTemp        int16  `yaml:"min_atf_temp"`
	MaxAtfTemp        int16  `yaml:"max_atf_temp"`
	MinInputRpm       uint16 `yaml:"min_input_rpm"`
	MaxInputRpm       uint16 `yaml:"max_input_rpm"`
	PrefillAdaptLimit uint16 `yaml:"prefill_adapt_limit"`
	TorqueAdaptLimit  uint16 `yaml:"torque_adapt_limit"`
}

func (AdpSettings) ScnID() byte                 { return ScnADP }
func (AdpSettings) Name() string                { return "ADP" }
func (AdpSettings) RevisionName() string        { return "A3" }
func (AdpSettings) WikiURL() string             { return settingsWikiBase + "/adp" }
func (AdpSettings) EffectImmediate() bool       { return true }
func (AdpSettings) EnumEntries(string) []string { return nil }

// EtsSettings tunes the electronic shifter input handling.
type EtsSettings struct {
	DebounceTimeMs      uint16 `yaml:"debounce_time_ms"`
	ProfileBtnHoldMs    uint16 `yaml:"profile_btn_hold_ms"`
	TrrsIdleDetectMs    uint16 `yaml:"trrs_idle_detect_ms"`
	EnablePaddles       bool   `yaml:"enable_paddles"`
	KickdownEnable      bool   `yaml:"kickdown_enable"`
	KickdownPedalPos    uint8  `yaml:"kickdown_pedal_pos"`
}

func (EtsSettings) ScnID() byte                 { return ScnETS }
func (EtsSettings) Name() string                { return "ETS" }
func (EtsSettings) RevisionName() string        { return "A1" }
func (EtsSettings) WikiURL() string             { return settingsWikiBase + "/ets" }
func (EtsSettings) EffectImmediate() bool       { return true }
func (EtsSettings) EnumEntries(string) []string { return nil }
