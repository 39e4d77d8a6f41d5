package sunspec

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/zenschedule/pkg/sunspec_meter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMeterAdapterReadMeter(t *testing.T) {
	reader := &sunspec_meter.TestMeterReader{PowerWatt: -412.6}
	adapter := NewMeterAdapter(reader, zap.NewNop())

	reading, err := adapter.ReadMeter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -413, reading.TotalPower)
	assert.True(t, adapter.opened)
	assert.NoError(t, adapter.Close())
	assert.False(t, adapter.opened)
}

func TestMeterAdapterReadMeterFailure(t *testing.T) {
	boom := errors.New("connection refused")
	reader := &sunspec_meter.TestMeterReader{Err: boom}
	adapter := NewMeterAdapter(reader, zap.NewNop())

	_, err := adapter.ReadMeter(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, adapter.opened)

	reader.Err = nil
	reader.PowerWatt = 100
	reading, err := adapter.ReadMeter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, reading.TotalPower)
}

func TestMeterAdapterContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewMeterAdapter(&sunspec_meter.TestMeterReader{}, zap.NewNop())
	_, err := adapter.ReadMeter(ctx)
	// either the read or the cancellation may win the race
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
