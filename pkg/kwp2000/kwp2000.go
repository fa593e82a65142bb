// Package kwp2000 holds the KWP2000 (ISO 14230) service identifiers, session
// modes and negative response codes used by the Ultimate-NAG52 TCU.
//
// The TCU speaks a vendor subset of KWP2000 over ISO-TP. Local identifiers
// 0x20-0x27 carry live telemetry, 0xFC the tunable setting blocks, 0xFD the
// one-time EFUSE block and 0xFE the vehicle/gearbox configuration block.
package kwp2000

const (
	START_DIAGNOSTIC_SESSION       = 0x10
	ECU_RESET                      = 0x11
	READ_ECU_IDENTIFICATION        = 0x1A
	READ_DATA_BY_LOCAL_IDENTIFIER  = 0x21
	REQUEST_UPLOAD                 = 0x35
	TRANSFER_DATA                  = 0x36
	REQUEST_TRANSFER_EXIT          = 0x37
	WRITE_DATA_BY_LOCAL_IDENTIFIER = 0x3B
	TESTER_PRESENT                 = 0x3E

	/* READ_ECU_IDENTIFICATION sub identifiers */
	IDENT_DAIMLER = 0x86

	/* TESTER_PRESENT sub functions */
	TP_RESPONSE_REQUIRED = 0x01
	TP_NO_RESPONSE       = 0x02

	/* ECU_RESET sub functions */
	RESET_POWER_ON = 0x01

	/* Positive responses are request SID | 0x40, negatives always 0x7F */
	POSITIVE_RESPONSE_OFFSET = 0x40
	NEGATIVE_RESPONSE        = 0x7F
)

// SessionMode selects the diagnostic session for START_DIAGNOSTIC_SESSION.
// SessionDevelopment (0x93) is the Ultimate-NAG52 developer mode, required
// for reading and writing SCN setting blocks.
type SessionMode byte

const (
	SessionNormal        SessionMode = 0x81
	SessionReprogramming SessionMode = 0x85
	SessionStandby       SessionMode = 0x89
	SessionPassive       SessionMode = 0x90
	SessionExtendedDiag  SessionMode = 0x92
	SessionDevelopment   SessionMode = 0x93
)

func (s SessionMode) String() string {
	switch s {
	case SessionNormal:
		return "Normal"
	case SessionReprogramming:
		return "Reprogramming"
	case SessionStandby:
		return "Standby"
	case SessionPassive:
		return "Passive"
	case SessionExtendedDiag:
		return "ExtendedDiagnostics"
	case SessionDevelopment:
		return "UN52DevMode"
	default:
		return "Unknown"
	}
}

/* Local identifiers served by the TCU */
const (
	LID_GEARBOX_SENSORS = 0x20
	LID_SOLENOID_STATUS = 0x21
	LID_CAN_DATA_DUMP   = 0x22
	LID_SYS_USAGE       = 0x23
	LID_COREDUMP_INFO   = 0x24
	LID_PRESSURE_STATUS = 0x25
	LID_SHIFT_MONITOR   = 0x27
	LID_SETTINGS        = 0xFC
	LID_EFUSE_CONFIG    = 0xFD
	LID_CORE_CONFIG     = 0xFE
)
