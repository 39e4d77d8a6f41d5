package port

import (
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
)

type ScheduleResolver interface {
	Resolve(entries map[string]domain.ScheduleValue, date string) []domain.ResolvedSlot
	ValueAt(slots []domain.ResolvedSlot, hhmm string) *domain.ResolvedSlot
}

type PowerAccumulator interface {
	AddSample(channel domain.AccumulatorChannel, watts int, now time.Time) []domain.CompletedPeriod
	ResetManual(now time.Time)
	Snapshot() domain.AccumulatorSnapshot
}

type NetZeroCalculator interface {
	Calculate(target domain.ScheduleValue, gridWatts int, current int) domain.NetZeroResult
}

type BatteryLimitGuard interface {
	Guard(setpoint int, soc int) domain.GuardResult
	ClampPower(setpoint int) int
}

type DeviceCommandBuilder interface {
	Build(setpoint int, reason domain.ZeroReason) domain.DeviceCommand
}

// AutomationController is one pure step of the control loop.
type AutomationController interface {
	Decide(state *domain.AutomationState, target domain.ScheduleValue, fromOverride bool, tel domain.Telemetry) domain.TickDecision
	Apply(state *domain.AutomationState, decision domain.TickDecision, sendErr error) domain.TickOutcome
	StandbyCommands() (domain.DeviceCommand, domain.DeviceCommand)
	StandbyWakeSent(state *domain.AutomationState, cmd domain.DeviceCommand)
	AbortStandby(state *domain.AutomationState)
	FinishStandby(state *domain.AutomationState, cmd domain.DeviceCommand)
	ShutdownCommand() domain.DeviceCommand
}
