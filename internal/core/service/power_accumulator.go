package service

import (
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

type bucketState struct {
	energyWh      float64
	periodStart   time.Time
	lastCompleted *float64
}

type channelState struct {
	initialized bool
	lastPower   int
	lastSample  time.Time
	buckets     map[domain.AccumulatorPeriod]*bucketState
}

// DefaultPowerAccumulator integrates power samples into energy buckets.
// Each sample's power is held until the next sample arrives.
type DefaultPowerAccumulator struct {
	Location *time.Location
	channels map[domain.AccumulatorChannel]*channelState
}

func NewPowerAccumulator(loc *time.Location) *DefaultPowerAccumulator {
	if loc == nil {
		loc = time.Local
	}
	acc := &DefaultPowerAccumulator{
		Location: loc,
		channels: make(map[domain.AccumulatorChannel]*channelState, len(domain.AccumulatorChannels)),
	}
	for _, ch := range domain.AccumulatorChannels {
		acc.channels[ch] = &channelState{
			buckets: make(map[domain.AccumulatorPeriod]*bucketState, len(domain.AccumulatorPeriods)),
		}
	}
	return acc
}

func (acc *DefaultPowerAccumulator) AddSample(channel domain.AccumulatorChannel, watts int, now time.Time) []domain.CompletedPeriod {
	ch, ok := acc.channels[channel]
	if !ok {
		return nil
	}
	if !ch.initialized {
		for _, period := range domain.AccumulatorPeriods {
			ch.buckets[period] = &bucketState{periodStart: acc.periodStart(period, now)}
		}
		ch.initialized = true
		ch.lastPower = watts
		ch.lastSample = now
		return nil
	}
	if !now.After(ch.lastSample) {
		ch.lastPower = watts
		return nil
	}

	var completed []domain.CompletedPeriod
	power := float64(ch.lastPower)
	for _, period := range domain.AccumulatorPeriods {
		bucket := ch.buckets[period]
		from := ch.lastSample
		if period != domain.PERIOD_MANUAL {
			for {
				boundary := acc.nextBoundary(period, bucket.periodStart)
				if boundary.After(now) {
					break
				}
				bucket.energyWh += energyWh(power, from, boundary)
				total := bucket.energyWh
				completed = append(completed, domain.CompletedPeriod{
					Channel:  channel,
					Period:   period,
					Start:    bucket.periodStart,
					End:      boundary,
					EnergyWh: total,
				})
				bucket.lastCompleted = &total
				bucket.energyWh = 0
				bucket.periodStart = boundary
				from = boundary
			}
		}
		bucket.energyWh += energyWh(power, from, now)
	}
	ch.lastPower = watts
	ch.lastSample = now
	return completed
}

func (acc *DefaultPowerAccumulator) ResetManual(now time.Time) {
	for _, ch := range acc.channels {
		bucket, ok := ch.buckets[domain.PERIOD_MANUAL]
		if !ok {
			continue
		}
		total := bucket.energyWh
		bucket.lastCompleted = &total
		bucket.energyWh = 0
		bucket.periodStart = now
	}
}

func (acc *DefaultPowerAccumulator) Snapshot() domain.AccumulatorSnapshot {
	snapshot := make(domain.AccumulatorSnapshot, len(acc.channels))
	for channel, ch := range acc.channels {
		buckets := make(map[domain.AccumulatorPeriod]domain.AccumulatorBucket, len(ch.buckets))
		for period, bucket := range ch.buckets {
			b := domain.AccumulatorBucket{
				EnergyWh:    bucket.energyWh,
				PeriodStart: bucket.periodStart,
			}
			if bucket.lastCompleted != nil {
				last := *bucket.lastCompleted
				b.LastCompletedWh = &last
			}
			buckets[period] = b
		}
		snapshot[channel] = buckets
	}
	return snapshot
}

func (acc *DefaultPowerAccumulator) periodStart(period domain.AccumulatorPeriod, t time.Time) time.Time {
	l := t.In(acc.Location)
	switch period {
	case domain.PERIOD_QUARTER_HOUR:
		return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute()-l.Minute()%15, 0, 0, acc.Location)
	case domain.PERIOD_HOUR:
		return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), 0, 0, 0, acc.Location)
	case domain.PERIOD_DAY:
		return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, acc.Location)
	default:
		return t
	}
}

func (acc *DefaultPowerAccumulator) nextBoundary(period domain.AccumulatorPeriod, start time.Time) time.Time {
	switch period {
	case domain.PERIOD_QUARTER_HOUR:
		return start.Add(15 * time.Minute)
	case domain.PERIOD_HOUR:
		return start.Add(time.Hour)
	default:
		l := start.In(acc.Location)
		return time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, acc.Location)
	}
}

func energyWh(watts float64, from, to time.Time) float64 {
	return watts * to.Sub(from).Hours()
}

// ensure interface compliance
var _ port.PowerAccumulator = (*DefaultPowerAccumulator)(nil)
