package records

import (
	"fmt"
	"math"
)

const (
	snvU8  = math.MaxUint8
	snvU16 = math.MaxUint16
	snvI16 = math.MaxInt16
)

func row(label, value string) Row     { return Row{Label: label, Value: value} }
func errRow(label, value string) Row  { return Row{Label: label, Value: value, Err: true} }

// u16Row renders a u16 reading, flagging the 0xFFFF sensor fault sentinel.
func u16Row(label string, v uint16, format string, scale float64) Row {
	if v == snvU16 {
		return errRow(label, "ERROR")
	}
	return row(label, fmt.Sprintf(format, float64(v)*scale))
}

// torque renders a CAN torque in the (x/4)-500 Nm encoding.
func torque(label string, v uint16) Row {
	if v == snvU16 {
		return errRow(label, "Signal not available")
	}
	return row(label, fmt.Sprintf("%.1f Nm", float64(v)/4.0-500.0))
}

func i16Temp(label string, v int16) Row {
	if v == snvI16 {
		return errRow(label, "Signal not available")
	}
	return row(label, fmt.Sprintf("%d C", v))
}

func (d *GearboxSensors) Rows() []Row {
	rows := []Row{
		u16Row("N2 pulse counter", d.N2Rpm, "%.0f pulses/min", 1),
		u16Row("N3 pulse counter", d.N3Rpm, "%.0f pulses/min", 1),
		u16Row("Calculated input RPM", d.CalculatedRpm, "%.0f RPM", 1),
		u16Row("Calculated output RPM", d.OutputRpm, "%.0f RPM", 1),
		u16Row("Calculated ratio", d.CalcRatio, "%.2f", 0.01),
		u16Row("Battery voltage", d.VBatt, "%.1f V", 0.001),
	}
	if d.ParkingLock != 0x00 {
		rows = append(rows,
			errRow("ATF oil temperature", "Cannot read, parking lock engaged"),
			row("Parking lock", "Yes"),
		)
	} else {
		rows = append(rows,
			row("ATF oil temperature", fmt.Sprintf("%d C", int32(d.AtfTempC))),
			row("Parking lock", "No"),
		)
	}
	return rows
}

// trim converts the stored adjustment factor to a percentage delta.
func trim(v uint16) float64 { return float64(v)/10.0 - 100.0 }

func (d *Solenoids) Rows() []Row {
	sol := func(name string, pwm, current uint16) Row {
		return row(name, fmt.Sprintf("PWM %4d/4096, est current %d mA", pwm, current))
	}
	total := uint32(d.SpcCurrent) + uint32(d.MpcCurrent) + uint32(d.TccCurrent) +
		uint32(d.Y3Current) + uint32(d.Y4Current) + uint32(d.Y5Current)
	return []Row{
		row("MPC solenoid", fmt.Sprintf("PWM %4d/4096, est current %d mA, targ %d mA, trim %.2f %%",
			d.MpcPwm, d.MpcCurrent, d.TargMpc, trim(d.AdjustmentMpc))),
		row("SPC solenoid", fmt.Sprintf("PWM %4d/4096, est current %d mA, targ %d mA, trim %.2f %%",
			d.SpcPwm, d.SpcCurrent, d.TargSpc, trim(d.AdjustmentSpc))),
		sol("TCC solenoid", d.TccPwm, d.TccCurrent),
		sol("Y3 shift solenoid", d.Y3Pwm, d.Y3Current),
		sol("Y4 shift solenoid", d.Y4Pwm, d.Y4Current),
		sol("Y5 shift solenoid", d.Y5Pwm, d.Y5Current),
		row("Total current consumption", fmt.Sprintf("%d mA", total)),
	}
}

func (d *CanDataDump) Rows() []Row {
	rows := make([]Row, 0, 14)
	if d.PedalPosition == snvU8 {
		rows = append(rows, errRow("Accelerator pedal position", "Signal not available"))
	} else {
		rows = append(rows, row("Accelerator pedal position", fmt.Sprintf("%.1f %%", float64(d.PedalPosition)/250.0*100.0)))
	}
	rows = append(rows,
		u16Row("Engine RPM", d.EngineRpm, "%.0f RPM", 1),
		torque("Engine minimum torque", d.MinTorqueMs),
		torque("Engine maximum torque", d.MaxTorqueMs),
		torque("Engine static torque", d.StaticTorque),
		torque("Driver req torque", d.DriverTorque),
		u16Row("Rear right wheel speed", d.RightRearRpm, "%.1f RPM", 0.5),
		u16Row("Rear left wheel speed", d.LeftRearRpm, "%.1f RPM", 0.5),
	)
	if d.SelectorPosition == ShifterSNV {
		rows = append(rows, errRow("Gear selector position", "Signal not available"))
	} else {
		rows = append(rows, row("Gear selector position", d.SelectorPosition.String()))
	}
	if d.PaddlePosition == PaddleSNV {
		rows = append(rows, errRow("Shift paddle position", "Signal not available"))
	} else {
		rows = append(rows, row("Shift paddle position", d.PaddlePosition.String()))
	}
	rows = append(rows, row("Fuel flow", fmt.Sprintf("%d ul/s", d.FuelFlow)))
	if d.EgsTorqueReqType == TorqueReqNone {
		rows = append(rows, row("Torque request", "None"))
	} else {
		rows = append(rows, row("Torque request",
			fmt.Sprintf("%.1f Nm (%s)", float64(d.EgsReqTorque)/4.0-500.0, d.EgsTorqueReqType)))
	}
	rows = append(rows,
		i16Temp("Engine intake air temp", d.EngineIatTemp),
		i16Temp("Engine coolant temp", d.EngineCoolantTemp),
		i16Temp("Engine oil temp", d.EngineOilTemp),
	)
	return rows
}

func (d *SysUsage) Rows() []Row {
	usedRam := 100 * (float64(d.TotalRam) - float64(d.FreeRam)) / float64(d.TotalRam)
	usedPsram := 100 * (float64(d.TotalPsram) - float64(d.FreePsram)) / float64(d.TotalPsram)
	return []Row{
		row("Core 1 usage", fmt.Sprintf("%.1f %%", float64(d.Core1Usage)/10.0)),
		row("Core 2 usage", fmt.Sprintf("%.1f %%", float64(d.Core2Usage)/10.0)),
		row("Free internal RAM", fmt.Sprintf("%.1f Kb (%.1f%% used)", float64(d.FreeRam)/1024.0, usedRam)),
		row("Free PSRAM", fmt.Sprintf("%.1f Kb (%.1f%% used)", float64(d.FreePsram)/1024.0, usedPsram)),
		row("Num. OS tasks", fmt.Sprintf("%d", d.NumTasks)),
	}
}

func (d *Pressures) Rows() []Row {
	return []Row{
		u16Row("Shift pressure", d.SpcPressure, "%.0f mBar", 1),
		u16Row("Modulating pressure", d.MpcPressure, "%.0f mBar", 1),
		u16Row("Torque converter pressure", d.TccPressure, "%.0f mBar", 1),
	}
}

func (d *ShiftMonitor) Rows() []Row {
	return []Row{
		row("SPC pressure", fmt.Sprintf("%d mBar", d.SpcPressureMbar)),
		row("MPC pressure", fmt.Sprintf("%d mBar", d.MpcPressureMbar)),
		row("TCC pressure", fmt.Sprintf("%d mBar", d.TccPressureMbar)),
		row("Shift solenoid pos", fmt.Sprintf("%d/255", d.ShiftSolenoidPos)),
		row("Input shaft speed", fmt.Sprintf("%d RPM", d.InputRpm)),
		row("Engine speed", fmt.Sprintf("%d RPM", d.EngineRpm)),
		row("Output shaft speed", fmt.Sprintf("%d RPM", d.OutputRpm)),
		row("Shift state", ShiftName(d.ShiftIdx)),
	}
}
