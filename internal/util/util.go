package util

import (
	"github.com/berfenger/zenschedule/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Device: config.DeviceConfig{
			IP:             "127.0.0.1",
			SN:             "TEST0000000001",
			TimeoutSeconds: 5,
		},
		Meter: config.MeterConfig{
			Source: config.METER_SOURCE_HTTP,
			IP:     "127.0.0.1",
			SunSpec: config.SunSpecConfig{
				Host:    "-.-.-.-",
				Port:    502,
				MeterId: 200,
			},
		},
		Schedule: config.ScheduleConfig{
			File:                "schedule.json",
			RefreshIntervalSecs: 300,
		},
		Control: config.ControlConfig{
			IntervalMillis:      15000,
			AdjustmentThreshold: 10,
			MaxStep:             200,
			FeedMin:             -800,
			FeedMax:             800,
			MinThreshold:        20,
			MinChargeLevel:      20,
			MaxChargeLevel:      90,
			MaxChargePower:      1200,
			MaxDischargePower:   800,
			ZeroThreshold:       10,
			StandbyDelayMillis:  2000,
		},
		Status: config.StatusConfig{
			HeartbeatCron: "0 */5 * * * *",
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "zenschedule",
		},
		Timezone: "Europe/Amsterdam",
		Port:     8080,
	}
}
