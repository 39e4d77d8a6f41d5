package service

import (
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"

	"go.uber.org/zap"
)

const (
	DEFAULT_ZERO_THRESHOLD = 10
	STANDBY_WAKE_POWER     = 1
)

// DefaultAutomationController runs the per-tick pipeline:
// calculator -> guard -> builder -> send suppression.
type DefaultAutomationController struct {
	Calculator    port.NetZeroCalculator
	Guard         port.BatteryLimitGuard
	Builder       port.DeviceCommandBuilder
	ZeroThreshold int
	Logger        *zap.Logger
}

func (c *DefaultAutomationController) Decide(state *domain.AutomationState, target domain.ScheduleValue, fromOverride bool, tel domain.Telemetry) domain.TickDecision {
	decision := domain.TickDecision{Target: target}

	if target.IsFeedback() {
		nz := c.Calculator.Calculate(target, tel.GridWatts, state.CurrentSetpoint)
		decision.Setpoint = nz.Setpoint
		decision.Adjustment = nz.Adjustment
		decision.ZeroReason = nz.Reason
	} else {
		decision.Setpoint = c.Guard.ClampPower(target.Watts)
		decision.Adjustment = decision.Setpoint - state.CurrentSetpoint
		if decision.Setpoint == 0 {
			switch {
			case fromOverride:
				decision.ZeroReason = domain.ZeroReasonManualStop
			case state.CurrentSetpoint < 0:
				decision.ZeroReason = domain.ZeroReasonDischargeStop
			default:
				decision.ZeroReason = domain.ZeroReasonScheduled
			}
		}
	}

	guarded := c.Guard.Guard(decision.Setpoint, tel.SoC)
	decision.LimitState = guarded.LimitState
	if guarded.Forced {
		c.Logger.Info("automation@tick battery limit forces standby",
			zap.Int("requested", decision.Setpoint),
			zap.Int("soc", tel.SoC),
			zap.Bool("atMaxSoc", guarded.LimitState.AtMaxSoc),
			zap.Bool("atMinSoc", guarded.LimitState.AtMinSoc))
		decision.Setpoint = 0
		decision.Adjustment = -state.CurrentSetpoint
		decision.ZeroReason = domain.ZeroReasonLimit
		decision.LimitForced = true
	}

	if decision.ZeroReason == domain.ZeroReasonDeadband && state.CurrentSetpoint == 0 && isZeroCommand(state.LastSentCommand) {
		// already at zero, whatever the device mode
		decision.Command = *state.LastSentCommand
		return decision
	}

	decision.Command = c.Builder.Build(decision.Setpoint, decision.ZeroReason)
	decision.Send = state.LastSentCommand == nil || !decision.Command.Equal(*state.LastSentCommand)
	return decision
}

// Apply folds a decision into the state. A failed send keeps the previous
// setpoint so the next tick retries.
func (c *DefaultAutomationController) Apply(state *domain.AutomationState, decision domain.TickDecision, sendErr error) domain.TickOutcome {
	state.LimitState = decision.LimitState
	outcome := domain.TickOutcome{
		OldSetpoint: state.CurrentSetpoint,
		NewSetpoint: state.CurrentSetpoint,
	}
	if decision.Send && sendErr != nil {
		return outcome
	}

	if decision.Send {
		cmd := decision.Command
		setpoint := decision.Setpoint
		state.LastSentCommand = &cmd
		state.LastSentSetpoint = &setpoint
	}
	state.CurrentSetpoint = decision.Setpoint
	state.LastZeroReason = decision.ZeroReason
	outcome.NewSetpoint = decision.Setpoint
	outcome.Changed = outcome.OldSetpoint != outcome.NewSetpoint

	if decision.Setpoint != 0 {
		state.ConsecutiveZeroIterations = 0
		state.Activity = domain.ACTIVITY_ACTIVE
		return outcome
	}

	state.ConsecutiveZeroIterations++
	switch {
	case state.ConsecutiveZeroIterations == c.zeroThreshold():
		state.Activity = domain.ACTIVITY_STANDBY_TRANSITION
		state.StandbyPending = true
		outcome.EnterStandby = true
	case state.Activity != domain.ACTIVITY_IDLE:
		state.Activity = domain.ACTIVITY_IDLE_AT_ZERO
	}
	return outcome
}

// StandbyCommands returns the wake and latch commands of the standby sequence.
func (c *DefaultAutomationController) StandbyCommands() (domain.DeviceCommand, domain.DeviceCommand) {
	return c.Builder.Build(STANDBY_WAKE_POWER, domain.ZeroReasonNone), c.Builder.Build(0, domain.ZeroReasonStandby)
}

// StandbyWakeSent records the wake command as the device's last applied
// command, so a failed latch is not mistaken for a zeroed device.
func (c *DefaultAutomationController) StandbyWakeSent(state *domain.AutomationState, cmd domain.DeviceCommand) {
	wake := STANDBY_WAKE_POWER
	state.LastSentCommand = &cmd
	state.LastSentSetpoint = &wake
}

// AbortStandby rearms the standby sequence: the zero count starts over.
func (c *DefaultAutomationController) AbortStandby(state *domain.AutomationState) {
	state.StandbyPending = false
	state.ConsecutiveZeroIterations = 0
	state.Activity = domain.ACTIVITY_IDLE_AT_ZERO
}

func (c *DefaultAutomationController) FinishStandby(state *domain.AutomationState, cmd domain.DeviceCommand) {
	zero := 0
	state.LastSentCommand = &cmd
	state.LastSentSetpoint = &zero
	state.CurrentSetpoint = 0
	state.LastZeroReason = domain.ZeroReasonStandby
	state.StandbyPending = false
	state.Activity = domain.ACTIVITY_IDLE
}

func (c *DefaultAutomationController) ShutdownCommand() domain.DeviceCommand {
	return c.Builder.Build(0, domain.ZeroReasonShutdown)
}

func (c *DefaultAutomationController) zeroThreshold() int {
	if c.ZeroThreshold <= 0 {
		return DEFAULT_ZERO_THRESHOLD
	}
	return c.ZeroThreshold
}

func isZeroCommand(cmd *domain.DeviceCommand) bool {
	return cmd != nil && cmd.InputLimit == 0 && cmd.OutputLimit == 0
}

// ensure interface compliance
var _ port.AutomationController = (*DefaultAutomationController)(nil)
