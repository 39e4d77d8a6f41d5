package service

import (
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

// DefaultBatteryLimitGuard blocks charging at the top of the SoC range and
// discharging at the bottom. Discharging at MaxChargeLevel and charging at
// MinChargeLevel stay allowed.
type DefaultBatteryLimitGuard struct {
	MinChargeLevel    int
	MaxChargeLevel    int
	MaxChargePower    int
	MaxDischargePower int
}

func (cfg *DefaultBatteryLimitGuard) Guard(setpoint int, soc int) domain.GuardResult {
	result := domain.GuardResult{
		Setpoint: setpoint,
		LimitState: domain.LimitState{
			AtMaxSoc: soc >= cfg.MaxChargeLevel,
			AtMinSoc: soc <= cfg.MinChargeLevel,
		},
	}
	if (setpoint > 0 && result.LimitState.AtMaxSoc) || (setpoint < 0 && result.LimitState.AtMinSoc) {
		result.Setpoint = 0
		result.Forced = true
	}
	return result
}

// ClampPower bounds a fixed setpoint to the device power caps.
func (cfg *DefaultBatteryLimitGuard) ClampPower(setpoint int) int {
	return clamp(setpoint, -cfg.MaxDischargePower, cfg.MaxChargePower)
}

// ensure interface compliance
var _ port.BatteryLimitGuard = (*DefaultBatteryLimitGuard)(nil)
