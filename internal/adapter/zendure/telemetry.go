package zendure

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TelemetryReader reads the grid meter and the battery report concurrently.
// Both must succeed for a tick to have telemetry. Readings are forwarded to
// Store when one is configured; store failures are only logged.
type TelemetryReader struct {
	Meter  port.MeterReader
	Device port.DeviceClient
	Store  port.ReadingStore
	Logger *zap.Logger
}

func (r *TelemetryReader) ReadTelemetry(ctx context.Context) (*domain.Telemetry, error) {
	var meter *domain.MeterReading
	var report *domain.DeviceReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := r.Meter.ReadMeter(gctx)
		if err != nil {
			return fmt.Errorf("meter: %w", err)
		}
		meter = m
		return nil
	})
	g.Go(func() error {
		d, err := r.Device.ReadReport(gctx)
		if err != nil {
			return fmt.Errorf("device: %w", err)
		}
		report = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.Store != nil {
		r.store(ctx, *meter, *report)
	}

	return &domain.Telemetry{
		GridWatts: meter.TotalPower,
		SoC:       report.ElectricLevel,
		ReadAt:    time.Now(),
	}, nil
}

func (r *TelemetryReader) store(ctx context.Context, meter domain.MeterReading, report domain.DeviceReport) {
	if err := r.Store.StoreMeterReading(ctx, meter); err != nil && r.Logger != nil {
		r.Logger.Warn("failed to store meter reading", zap.Error(err))
	}
	if err := r.Store.StoreDeviceReport(ctx, report); err != nil && r.Logger != nil {
		r.Logger.Warn("failed to store device report", zap.Error(err))
	}
}

// ensure interface compliance
var _ port.TelemetryReader = (*TelemetryReader)(nil)
