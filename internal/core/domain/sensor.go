package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE         = "bridge"
	SENSOR_ID_SETPOINT             = "setpoint"
	SENSOR_ID_GRID_POWER           = "grid_power"
	SENSOR_ID_BATTERY_SOC          = "battery_soc"
	SENSOR_ID_ACTIVITY             = "activity"
	SENSOR_ID_SCHEDULE_VALUE       = "schedule_value"
	SENSOR_ID_AT_MAX_SOC           = "at_max_soc"
	SENSOR_ID_AT_MIN_SOC           = "at_min_soc"
	SENSOR_ID_FEED_ENERGY_HOUR     = "feed_energy_hour"
	SENSOR_ID_FEED_ENERGY_DAY      = "feed_energy_day"
	SENSOR_ID_METER_ENERGY_HOUR    = "meter_energy_hour"
	SENSOR_ID_METER_ENERGY_DAY     = "meter_energy_day"
	SWITCH_ID_AUTO_MODE            = "auto_mode"
	INPUT_NUMBER_ID_POWER_OVERRIDE = "power_override"
	STATE_CLASS_MEASUREMENT        = "measurement"
	STATE_CLASS_TOTAL_INCREASING   = "total_increasing"
	DEVICE_CLASS_BATTERY           = "battery"
	DEVICE_CLASS_ENERGY            = "energy"
	DEVICE_CLASS_POWER             = "power"
	DEVICE_CLASS_CONNECTIVITY      = "connectivity"
	DEVICE_CLASS_PROBLEM           = "problem"
	DEVICE_CLASS_ENUM              = "enum"
	ENTITY_CLASS_DIAGNOSTIC        = "diagnostic"
	ENTITY_CLASS_CONFIG            = "config"
	SENSOR_TYPE_SENSOR             = "sensor"
	SENSOR_TYPE_BINARY             = "binary_sensor"
	INPUT_NUMBER_MODE_BOX          = "box"
	POWER_OVERRIDE_STEP            = 10
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing
	DeviceClass       string // power, energy, battery, enum
	EntityCategory    string // diagnostic, config, nil
	Precision         *int
	Options           []string // enum states
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericInputNumber struct {
	Device       Device
	Id           string
	Name         string
	UniqueId     string
	Icon              string
	UnitOfMeasurement string
	DeviceClass       string
	Max               float64
	Min               float64
	Step              float64
	Mode              string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("zenschedule_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "zenschedule",
		Model:        "Schedule automation",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Zenschedule %s", md5HashShort(baseTopic)),
	}
}

func BatteryDevice(serialNumber string) Device {
	return Device{
		Id:           fmt.Sprintf("zen_battery_%s", md5HashShort(serialNumber)),
		Manufacturer: "Zendure",
		Model:        "SolarFlow",
		Name:         fmt.Sprintf("Zendure battery %s", md5HashShort(serialNumber)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// AutomationSensors lists the entities published by the automation loop.
// Only the first one carries the full device description.
func AutomationSensors(batteryDevice Device) []GenericSensor {
	idDevice := IdDevice(batteryDevice)

	watts, wattHours := 0, 1
	power := func(id, name, icon string) GenericSensor {
		return GenericSensor{
			Device:            idDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: "W",
			Precision:         &watts,
			Icon:              icon,
			UniqueId:          uniqueId(batteryDevice.Id, id),
		}
	}
	energy := func(id, name string) GenericSensor {
		return GenericSensor{
			Device:            idDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_TOTAL_INCREASING,
			DeviceClass:       DEVICE_CLASS_ENERGY,
			UnitOfMeasurement: "Wh",
			Precision:         &wattHours,
			UniqueId:          uniqueId(batteryDevice.Id, id),
		}
	}
	limit := func(id, name string) GenericSensor {
		return GenericSensor{
			Device:         idDevice,
			Id:             id,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           name,
			DeviceClass:    DEVICE_CLASS_PROBLEM,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(batteryDevice.Id, id),
		}
	}

	setpoint := power(SENSOR_ID_SETPOINT, "Battery setpoint", "mdi:battery-charging")
	setpoint.Device = batteryDevice

	return []GenericSensor{
		setpoint,
		power(SENSOR_ID_GRID_POWER, "Grid power", "mdi:transmission-tower"),
		{
			Device:            idDevice,
			Id:                SENSOR_ID_BATTERY_SOC,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Battery SoC",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_BATTERY,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_SOC),
		},
		{
			Device:      idDevice,
			Id:          SENSOR_ID_ACTIVITY,
			SensorType:  SENSOR_TYPE_SENSOR,
			Name:        "Automation activity",
			DeviceClass: DEVICE_CLASS_ENUM,
			Options: []string{
				string(ACTIVITY_ACTIVE),
				string(ACTIVITY_IDLE_AT_ZERO),
				string(ACTIVITY_STANDBY_TRANSITION),
				string(ACTIVITY_IDLE),
			},
			Icon:     "mdi:state-machine",
			UniqueId: uniqueId(batteryDevice.Id, SENSOR_ID_ACTIVITY),
		},
		{
			Device:     idDevice,
			Id:         SENSOR_ID_SCHEDULE_VALUE,
			SensorType: SENSOR_TYPE_SENSOR,
			Name:       "Schedule target",
			Icon:       "mdi:calendar-clock",
			UniqueId:   uniqueId(batteryDevice.Id, SENSOR_ID_SCHEDULE_VALUE),
		},
		limit(SENSOR_ID_AT_MAX_SOC, "Charge blocked at max SoC"),
		limit(SENSOR_ID_AT_MIN_SOC, "Discharge blocked at min SoC"),
		energy(SENSOR_ID_FEED_ENERGY_HOUR, "Battery energy this hour"),
		energy(SENSOR_ID_FEED_ENERGY_DAY, "Battery energy today"),
		energy(SENSOR_ID_METER_ENERGY_HOUR, "Grid energy this hour"),
		energy(SENSOR_ID_METER_ENERGY_DAY, "Grid energy today"),
	}
}

func AutomationSwitches(batteryDevice Device) []GenericSwitch {
	return []GenericSwitch{{
		Device:   IdDevice(batteryDevice),
		Id:       SWITCH_ID_AUTO_MODE,
		Name:     "Follow schedule",
		UniqueId: uniqueId(batteryDevice.Id, SWITCH_ID_AUTO_MODE),
		Icon:     "mdi:calendar-sync",
	}}
}

func AutomationInputNumbers(batteryDevice Device, maxDischarge, maxCharge int) []GenericInputNumber {
	// positive charges, negative discharges
	return []GenericInputNumber{{
		Device:            IdDevice(batteryDevice),
		Id:                INPUT_NUMBER_ID_POWER_OVERRIDE,
		Name:              "Manual power",
		UniqueId:          uniqueId(batteryDevice.Id, INPUT_NUMBER_ID_POWER_OVERRIDE),
		Icon:              "mdi:flash",
		UnitOfMeasurement: "W",
		DeviceClass:       DEVICE_CLASS_POWER,
		Min:               float64(-maxDischarge),
		Max:               float64(maxCharge),
		Step:              POWER_OVERRIDE_STEP,
		Mode:              INPUT_NUMBER_MODE_BOX,
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
