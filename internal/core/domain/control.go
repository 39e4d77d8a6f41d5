package domain

type NetZeroResult struct {
	Setpoint   int
	Adjustment int
	Reason     ZeroReason
}

type GuardResult struct {
	Setpoint   int
	LimitState LimitState
	Forced     bool
}

// TickDecision is what one control tick wants to do with the device.
type TickDecision struct {
	Target      ScheduleValue
	Setpoint    int
	Adjustment  int
	ZeroReason  ZeroReason
	Command     DeviceCommand
	Send        bool
	LimitState  LimitState
	LimitForced bool
}

type TickOutcome struct {
	Changed      bool
	OldSetpoint  int
	NewSetpoint  int
	EnterStandby bool
}
