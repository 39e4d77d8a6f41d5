package events

import (
	. "github.com/berfenger/zenschedule/internal/core/domain"
)

func TelemetryToUpdateEvents(tel Telemetry) []any {
	return []any{
		NewFloatSensorUpdate(SENSOR_ID_GRID_POWER, float64(tel.GridWatts), 0),
		NewFloatSensorUpdate(SENSOR_ID_BATTERY_SOC, float64(tel.SoC), 0),
	}
}

func AutomationStateToUpdateEvents(state AutomationState) []any {
	return []any{
		NewFloatSensorUpdate(SENSOR_ID_SETPOINT, float64(state.CurrentSetpoint), 0),
		NewTextSensorUpdate(SENSOR_ID_ACTIVITY, string(state.Activity)),
		NewBinarySensorUpdate(SENSOR_ID_AT_MAX_SOC, state.LimitState.AtMaxSoc),
		NewBinarySensorUpdate(SENSOR_ID_AT_MIN_SOC, state.LimitState.AtMinSoc),
	}
}

// ScheduleTargetToUpdateEvents reports the target in effect. The auto mode
// switch is on while no manual override is active.
func ScheduleTargetToUpdateEvents(target *ScheduleValue, override *ScheduleValue) []any {
	text := "none"
	if override != nil {
		text = override.String()
	} else if target != nil {
		text = target.String()
	}
	events := []any{
		NewTextSensorUpdate(SENSOR_ID_SCHEDULE_VALUE, text),
		NewSwitchSensorUpdate(SWITCH_ID_AUTO_MODE, override == nil),
	}
	if override != nil && override.Kind == ValueFixed {
		events = append(events, NewInputNumberSensorUpdate(INPUT_NUMBER_ID_POWER_OVERRIDE, float64(override.Watts)))
	}
	return events
}

func AccumulatorsToUpdateEvents(snapshot AccumulatorSnapshot) []any {
	var events []any
	energy := func(id string, channel AccumulatorChannel, period AccumulatorPeriod) {
		if bucket, ok := snapshot[channel][period]; ok {
			events = append(events, NewFloatSensorUpdate(id, bucket.EnergyWh, 1))
		}
	}
	energy(SENSOR_ID_FEED_ENERGY_HOUR, CHANNEL_POWER_FEED, PERIOD_HOUR)
	energy(SENSOR_ID_FEED_ENERGY_DAY, CHANNEL_POWER_FEED, PERIOD_DAY)
	energy(SENSOR_ID_METER_ENERGY_HOUR, CHANNEL_METER, PERIOD_HOUR)
	energy(SENSOR_ID_METER_ENERGY_DAY, CHANNEL_METER, PERIOD_DAY)
	return events
}
