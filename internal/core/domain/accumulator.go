package domain

import "time"

type AccumulatorChannel string

const (
	CHANNEL_POWER_FEED AccumulatorChannel = "powerFeed"
	CHANNEL_METER      AccumulatorChannel = "meter"
)

type AccumulatorPeriod string

const (
	PERIOD_QUARTER_HOUR AccumulatorPeriod = "quarterHour"
	PERIOD_HOUR         AccumulatorPeriod = "hour"
	PERIOD_DAY          AccumulatorPeriod = "day"
	PERIOD_MANUAL       AccumulatorPeriod = "manual"
)

var (
	AccumulatorChannels = []AccumulatorChannel{CHANNEL_POWER_FEED, CHANNEL_METER}
	AccumulatorPeriods  = []AccumulatorPeriod{PERIOD_QUARTER_HOUR, PERIOD_HOUR, PERIOD_DAY, PERIOD_MANUAL}
)

type AccumulatorBucket struct {
	EnergyWh        float64   `json:"energyWh"`
	PeriodStart     time.Time `json:"periodStart"`
	LastCompletedWh *float64  `json:"lastCompletedWh,omitempty"`
}

type AccumulatorSnapshot map[AccumulatorChannel]map[AccumulatorPeriod]AccumulatorBucket

// CompletedPeriod is emitted when a bucket crosses its boundary.
type CompletedPeriod struct {
	Channel  AccumulatorChannel
	Period   AccumulatorPeriod
	Start    time.Time
	End      time.Time
	EnergyWh float64
}
