package service

import (
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

const (
	DEFAULT_ADJUSTMENT_THRESHOLD = 10
	DEFAULT_MAX_STEP             = 200
	DEFAULT_FEED_MIN             = -800
	DEFAULT_FEED_MAX             = 800
	DEFAULT_MIN_THRESHOLD        = 20
)

type DefaultNetZeroCalculator struct {
	AdjustmentThreshold int
	MaxStep             int
	FeedMin             int
	FeedMax             int
	MinThreshold        int
}

func NewNetZeroCalculator() *DefaultNetZeroCalculator {
	return &DefaultNetZeroCalculator{
		AdjustmentThreshold: DEFAULT_ADJUSTMENT_THRESHOLD,
		MaxStep:             DEFAULT_MAX_STEP,
		FeedMin:             DEFAULT_FEED_MIN,
		FeedMax:             DEFAULT_FEED_MAX,
		MinThreshold:        DEFAULT_MIN_THRESHOLD,
	}
}

// Calculate returns the next setpoint for target. Fixed targets pass through.
// Feedback targets move current towards current+grid, rate limited and
// clamped to the feed range.
func (cfg *DefaultNetZeroCalculator) Calculate(target domain.ScheduleValue, gridWatts int, current int) domain.NetZeroResult {
	if !target.IsFeedback() {
		return domain.NetZeroResult{
			Setpoint:   target.Watts,
			Adjustment: target.Watts - current,
		}
	}

	desired := current + gridWatts
	adjustment := desired - current

	setpoint := current
	if abs(adjustment) >= cfg.AdjustmentThreshold {
		adjustment = clamp(adjustment, -cfg.MaxStep, cfg.MaxStep)
		setpoint = clamp(current+adjustment, cfg.FeedMin, cfg.FeedMax)
		if setpoint != 0 && abs(setpoint) < cfg.MinThreshold {
			setpoint = current
		}
	}
	if target.Kind == domain.ValueNetZeroPlus && setpoint < 0 {
		setpoint = 0
	}

	result := domain.NetZeroResult{
		Setpoint:   setpoint,
		Adjustment: setpoint - current,
	}
	if setpoint == 0 {
		result.Reason = domain.ZeroReasonDeadband
	}
	return result
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ensure interface compliance
var _ port.NetZeroCalculator = (*DefaultNetZeroCalculator)(nil)
