package service

import (
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

type DefaultDeviceCommandBuilder struct {
}

func (b *DefaultDeviceCommandBuilder) Build(setpoint int, reason domain.ZeroReason) domain.DeviceCommand {
	cmd := domain.DeviceCommand{SmartMode: domain.SMART_MODE_ON}
	switch {
	case setpoint > 0:
		cmd.ACMode = acMode(domain.AC_MODE_INPUT)
		cmd.InputLimit = setpoint
	case setpoint < 0:
		cmd.ACMode = acMode(domain.AC_MODE_OUTPUT)
		cmd.OutputLimit = -setpoint
	case reason.EntersStandby():
		cmd.ACMode = acMode(domain.AC_MODE_STANDBY)
	}
	// zero limits without acMode keep the device in its last mode
	return cmd
}

func acMode(mode int) *int {
	return &mode
}

// ensure interface compliance
var _ port.DeviceCommandBuilder = (*DefaultDeviceCommandBuilder)(nil)
