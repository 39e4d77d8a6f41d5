package sunspec

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/berfenger/zenschedule/pkg/sunspec_meter"
	"go.uber.org/zap"
)

// MeterAdapter exposes a SunSpec modbus meter as the grid meter. The modbus
// client is not safe for concurrent use, calls are serialised.
type MeterAdapter struct {
	Reader sunspec_meter.MeterReader
	Logger *zap.Logger
	mu     sync.Mutex
	opened bool
}

func NewMeterAdapter(reader sunspec_meter.MeterReader, logger *zap.Logger) *MeterAdapter {
	return &MeterAdapter{
		Reader: reader,
		Logger: logger,
	}
}

func (a *MeterAdapter) ReadMeter(ctx context.Context) (*domain.MeterReading, error) {
	type result struct {
		power float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		power, err := a.read()
		done <- result{power: power, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return &domain.MeterReading{
			TotalPower: int(math.Round(r.power)),
			ReadAt:     time.Now(),
			Raw:        map[string]any{"total_power": r.power},
		}, nil
	}
}

func (a *MeterAdapter) read() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		if err := a.Reader.Open(); err != nil {
			return 0, err
		}
		if err := a.Reader.Validate(); err != nil {
			a.Reader.Close()
			return 0, err
		}
		a.opened = true
		if info, err := a.Reader.GetInfo(); err == nil && a.Logger != nil {
			a.Logger.Info("sunspec meter connected",
				zap.String("manufacturer", info.Manufacturer),
				zap.String("model", info.Model),
				zap.String("version", info.Version))
		}
	}
	power, err := a.Reader.GetPowerWatt()
	if err != nil {
		// reconnect on the next read
		a.Reader.Close()
		a.opened = false
		return 0, err
	}
	return power, nil
}

func (a *MeterAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		return nil
	}
	a.opened = false
	return a.Reader.Close()
}

// ensure interface compliance
var _ port.MeterReader = (*MeterAdapter)(nil)
