package service

import (
	"testing"

	"github.com/berfenger/zenschedule/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calculator = NewNetZeroCalculator()

func TestNetZeroFixedPassthrough(t *testing.T) {
	assert := assert.New(t)

	r := calculator.Calculate(domain.FixedValue(-650), 1234, 100)
	assert.Equal(-650, r.Setpoint)
	assert.Equal(-750, r.Adjustment)
	assert.Equal(domain.ZeroReasonNone, r.Reason)
}

func TestNetZeroConvergence(t *testing.T) {
	require := require.New(t)

	r := calculator.Calculate(domain.NetZeroValue(), 150, 0)
	require.Equal(150, r.Setpoint)
	require.Equal(150, r.Adjustment)

	// grid error gone, the setpoint holds inside the deadband
	current := r.Setpoint
	for i := 0; i < 10; i++ {
		r = calculator.Calculate(domain.NetZeroValue(), i%2*5-2, current)
		require.Equal(current, r.Setpoint)
		require.Zero(r.Adjustment)
	}
}

func TestNetZeroStepLimit(t *testing.T) {
	require := require.New(t)

	current := 0
	var steps []int
	for i := 0; i < 6; i++ {
		r := calculator.Calculate(domain.NetZeroValue(), -700-current, current)
		require.LessOrEqual(abs(r.Adjustment), calculator.MaxStep)
		current = r.Setpoint
		steps = append(steps, current)
	}
	require.Equal([]int{-200, -400, -600, -700, -700, -700}, steps)
}

func TestNetZeroFeedRangeClamp(t *testing.T) {
	assert := assert.New(t)

	r := calculator.Calculate(domain.NetZeroValue(), 500, 700)
	assert.Equal(800, r.Setpoint)
	assert.Equal(100, r.Adjustment)

	r = calculator.Calculate(domain.NetZeroValue(), -3000, -750)
	assert.Equal(-800, r.Setpoint)
}

func TestNetZeroDeadband(t *testing.T) {
	assert := assert.New(t)

	r := calculator.Calculate(domain.NetZeroValue(), 9, 300)
	assert.Equal(300, r.Setpoint)
	assert.Zero(r.Adjustment)

	r = calculator.Calculate(domain.NetZeroValue(), -9, 0)
	assert.Equal(0, r.Setpoint)
	assert.Equal(domain.ZeroReasonDeadband, r.Reason)
}

func TestNetZeroNearZeroSnapsBack(t *testing.T) {
	assert := assert.New(t)

	// 100 - 85 = 15 is below MIN_THRESHOLD: keep the previous setpoint
	r := calculator.Calculate(domain.NetZeroValue(), -85, 100)
	assert.Equal(100, r.Setpoint)
	assert.Zero(r.Adjustment)

	// reaching exactly zero is allowed
	r = calculator.Calculate(domain.NetZeroValue(), -100, 100)
	assert.Equal(0, r.Setpoint)
	assert.Equal(domain.ZeroReasonDeadband, r.Reason)
}

func TestNetZeroPlusNeverDischarges(t *testing.T) {
	assert := assert.New(t)

	r := calculator.Calculate(domain.NetZeroPlusValue(), -400, 100)
	assert.Equal(0, r.Setpoint)
	assert.Equal(-100, r.Adjustment)
	assert.Equal(domain.ZeroReasonDeadband, r.Reason)

	r = calculator.Calculate(domain.NetZeroPlusValue(), 5, -200)
	assert.Equal(0, r.Setpoint)

	r = calculator.Calculate(domain.NetZeroPlusValue(), 250, 100)
	assert.Equal(300, r.Setpoint)
}
