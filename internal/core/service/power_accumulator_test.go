package service

import (
	"testing"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func amsterdam(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	return loc
}

func TestAccumulatorFirstSampleInitialises(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 10, 2, 0, 0, loc)
	completed := acc.AddSample(domain.CHANNEL_METER, 1000, start)
	require.Empty(completed)

	snap := acc.Snapshot()
	require.Equal(0.0, snap[domain.CHANNEL_METER][domain.PERIOD_HOUR].EnergyWh)
	require.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, loc), snap[domain.CHANNEL_METER][domain.PERIOD_QUARTER_HOUR].PeriodStart)
	require.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, loc), snap[domain.CHANNEL_METER][domain.PERIOD_DAY].PeriodStart)
	require.Empty(snap[domain.CHANNEL_POWER_FEED][domain.PERIOD_HOUR])
}

func TestAccumulatorIntegratesPreviousPower(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)
	acc.AddSample(domain.CHANNEL_POWER_FEED, 600, start)
	acc.AddSample(domain.CHANNEL_POWER_FEED, -300, start.Add(6*time.Minute))
	acc.AddSample(domain.CHANNEL_POWER_FEED, 0, start.Add(12*time.Minute))

	snap := acc.Snapshot()[domain.CHANNEL_POWER_FEED]
	// 600 W for 6 min, then -300 W for 6 min
	require.InDelta(60.0-30.0, snap[domain.PERIOD_QUARTER_HOUR].EnergyWh, 1e-9)
	require.InDelta(30.0, snap[domain.PERIOD_MANUAL].EnergyWh, 1e-9)
	require.InDelta(30.0, snap[domain.PERIOD_DAY].EnergyWh, 1e-9)
}

func TestAccumulatorBoundarySplitConservesEnergy(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 10, 10, 0, 0, loc)
	acc.AddSample(domain.CHANNEL_METER, 1200, start)
	// crosses 10:15
	completed := acc.AddSample(domain.CHANNEL_METER, 1200, start.Add(10*time.Minute))

	require.Len(completed, 1)
	require.Equal(domain.PERIOD_QUARTER_HOUR, completed[0].Period)
	require.Equal(time.Date(2026, 1, 1, 10, 15, 0, 0, loc), completed[0].End)
	require.InDelta(100.0, completed[0].EnergyWh, 1e-9)

	snap := acc.Snapshot()[domain.CHANNEL_METER]
	quarter := snap[domain.PERIOD_QUARTER_HOUR]
	require.NotNil(quarter.LastCompletedWh)
	require.InDelta(100.0, *quarter.LastCompletedWh, 1e-9)
	require.InDelta(100.0, quarter.EnergyWh, 1e-9)
	require.Equal(time.Date(2026, 1, 1, 10, 15, 0, 0, loc), quarter.PeriodStart)

	// split totals equal the un-split accumulation
	require.InDelta(snap[domain.PERIOD_MANUAL].EnergyWh, *quarter.LastCompletedWh+quarter.EnergyWh, 1e-9)
	require.InDelta(snap[domain.PERIOD_HOUR].EnergyWh, *quarter.LastCompletedWh+quarter.EnergyWh, 1e-9)
}

func TestAccumulatorCrossesSeveralBoundaries(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 23, 50, 0, 0, loc)
	acc.AddSample(domain.CHANNEL_METER, -600, start)
	completed := acc.AddSample(domain.CHANNEL_METER, 0, start.Add(45*time.Minute))

	periods := map[domain.AccumulatorPeriod]int{}
	for _, c := range completed {
		periods[c.Period]++
	}
	// 00:00, 00:15, 00:30 for quarters; midnight closes hour and day
	require.Equal(3, periods[domain.PERIOD_QUARTER_HOUR])
	require.Equal(1, periods[domain.PERIOD_HOUR])
	require.Equal(1, periods[domain.PERIOD_DAY])
	require.Zero(periods[domain.PERIOD_MANUAL])

	snap := acc.Snapshot()[domain.CHANNEL_METER]
	require.InDelta(-100.0, *snap[domain.PERIOD_DAY].LastCompletedWh, 1e-9)
	require.InDelta(-350.0, snap[domain.PERIOD_DAY].EnergyWh, 1e-9)
	require.InDelta(-50.0, snap[domain.PERIOD_QUARTER_HOUR].EnergyWh, 1e-9)
	require.InDelta(-450.0, snap[domain.PERIOD_MANUAL].EnergyWh, 1e-9)
	require.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, loc), snap[domain.PERIOD_DAY].PeriodStart)
}

func TestAccumulatorResetManual(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)
	acc.AddSample(domain.CHANNEL_POWER_FEED, 1000, start)
	acc.AddSample(domain.CHANNEL_POWER_FEED, 1000, start.Add(30*time.Minute))

	resetAt := start.Add(30 * time.Minute)
	acc.ResetManual(resetAt)
	snap := acc.Snapshot()[domain.CHANNEL_POWER_FEED]
	require.Zero(snap[domain.PERIOD_MANUAL].EnergyWh)
	require.InDelta(500.0, *snap[domain.PERIOD_MANUAL].LastCompletedWh, 1e-9)
	require.Equal(resetAt, snap[domain.PERIOD_MANUAL].PeriodStart)
	require.InDelta(500.0, snap[domain.PERIOD_HOUR].EnergyWh, 1e-9)

	// snapshot is not destructive
	require.Equal(snap, acc.Snapshot()[domain.CHANNEL_POWER_FEED])
}

func TestAccumulatorIgnoresNonIncreasingTime(t *testing.T) {
	require := require.New(t)
	loc := amsterdam(t)

	acc := NewPowerAccumulator(loc)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)
	acc.AddSample(domain.CHANNEL_METER, 100, start)
	acc.AddSample(domain.CHANNEL_METER, 5000, start)
	acc.AddSample(domain.CHANNEL_METER, 0, start.Add(-time.Minute))
	require.Zero(acc.Snapshot()[domain.CHANNEL_METER][domain.PERIOD_MANUAL].EnergyWh)
}
