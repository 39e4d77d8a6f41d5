package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	METER_SOURCE_HTTP    = "http"
	METER_SOURCE_SUNSPEC = "sunspec"
)

type Config struct {
	LogLevel zapcore.Level
	Device   DeviceConfig   `mapstructure:"device"`
	Meter    MeterConfig    `mapstructure:"meter"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Control  ControlConfig  `mapstructure:"control"`
	Status   StatusConfig   `mapstructure:"status"`
	Store    StoreConfig    `mapstructure:"store"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Timezone string         `mapstructure:"timezone"`
	DryRun   bool           `mapstructure:"dry_run"`
	Console  bool           `mapstructure:"console"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type DeviceConfig struct {
	IP             string `mapstructure:"ip"`
	SN             string `mapstructure:"sn"`
	TimeoutSeconds uint   `mapstructure:"timeout_seconds"`
}

type MeterConfig struct {
	Source  string        `mapstructure:"source"`
	IP      string        `mapstructure:"ip"`
	SunSpec SunSpecConfig `mapstructure:"sunspec"`
}

type SunSpecConfig struct {
	Host          string
	Port          uint
	MeterId       uint `mapstructure:"meter_id"`
	IgnoreFronius bool `mapstructure:"ignore_fronius"`
}

type ScheduleConfig struct {
	File                string `mapstructure:"file"`
	ApiUrl              string `mapstructure:"api_url"`
	RefreshIntervalSecs uint32 `mapstructure:"refresh_interval_seconds"`
}

type ControlConfig struct {
	IntervalMillis      uint32 `mapstructure:"interval_millis"`
	AdjustmentThreshold int    `mapstructure:"adjustment_threshold"`
	MaxStep             int    `mapstructure:"max_step"`
	FeedMin             int    `mapstructure:"feed_min"`
	FeedMax             int    `mapstructure:"feed_max"`
	MinThreshold        int    `mapstructure:"min_threshold"`
	MinChargeLevel      int    `mapstructure:"min_charge_level"`
	MaxChargeLevel      int    `mapstructure:"max_charge_level"`
	MaxChargePower      int    `mapstructure:"max_charge_power"`
	MaxDischargePower   int    `mapstructure:"max_discharge_power"`
	ZeroThreshold       int    `mapstructure:"zero_threshold"`
	StandbyDelayMillis  uint32 `mapstructure:"standby_delay_millis"`
}

type StatusConfig struct {
	Url           string `mapstructure:"url"`
	HeartbeatCron string `mapstructure:"heartbeat_cron"`
}

type StoreConfig struct {
	MeterUrl  string `mapstructure:"meter_url"`
	DeviceUrl string `mapstructure:"device_url"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c ControlConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

func (c ControlConfig) StandbyDelay() time.Duration {
	return time.Duration(c.StandbyDelayMillis) * time.Millisecond
}

func (c ScheduleConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSecs) * time.Second
}

func (c DeviceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Location resolves the configured timezone used for schedule slots and
// accumulator boundaries.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks the bounds that cannot be expressed as defaults.
func (c Config) Validate() error {
	if c.Device.IP == "" {
		return errors.New("config param device.ip is required")
	}
	if c.Device.SN == "" {
		return errors.New("config param device.sn is required")
	}
	switch c.Meter.Source {
	case METER_SOURCE_HTTP:
		if c.Meter.IP == "" {
			return errors.New("config param meter.ip is required when meter.source is http")
		}
	case METER_SOURCE_SUNSPEC:
		if c.Meter.SunSpec.Host == "" {
			return errors.New("config param meter.sunspec.host is required when meter.source is sunspec")
		}
	default:
		return errors.New("config param meter.source must be http or sunspec")
	}
	if c.Schedule.File == "" && c.Schedule.ApiUrl == "" {
		return errors.New("config param schedule.file or schedule.api_url is required")
	}
	if c.Control.IntervalMillis < 1000 {
		return errors.New("config param control.interval_millis should be >= 1000")
	}
	if c.Control.MaxStep <= 0 {
		return errors.New("config param control.max_step should be > 0")
	}
	if c.Control.FeedMin >= c.Control.FeedMax {
		return errors.New("config param control.feed_min must be < control.feed_max")
	}
	if c.Control.MinChargeLevel < 0 || c.Control.MaxChargeLevel > 100 || c.Control.MinChargeLevel >= c.Control.MaxChargeLevel {
		return errors.New("config params control.min_charge_level and control.max_charge_level must satisfy 0 <= min < max <= 100")
	}
	if c.Control.ZeroThreshold <= 0 {
		return errors.New("config param control.zero_threshold should be > 0")
	}
	return nil
}
