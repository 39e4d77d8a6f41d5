package port

import (
	"context"

	"github.com/berfenger/zenschedule/internal/core/domain"
)

// ScheduleStore persists schedule entries. Writes must replace the backing
// file atomically so a concurrent Load never sees a partial write.
type ScheduleStore interface {
	Load() (map[string]domain.ScheduleValue, error)
	Upsert(key string, value domain.ScheduleValue, originalKey string) error
	Delete(key string) error
}

// ScheduleSource yields the resolved schedule of a date.
type ScheduleSource interface {
	ResolvedSlots(ctx context.Context, date string) ([]domain.ResolvedSlot, error)
}

type MeterReader interface {
	ReadMeter(ctx context.Context) (*domain.MeterReading, error)
}

type DeviceClient interface {
	ReadReport(ctx context.Context) (*domain.DeviceReport, error)
	WriteCommand(ctx context.Context, cmd domain.DeviceCommand) error
}

type TelemetryReader interface {
	ReadTelemetry(ctx context.Context) (*domain.Telemetry, error)
}

type StatusReporter interface {
	PostStatus(ctx context.Context, event domain.StatusEvent) error
}

type ReadingStore interface {
	StoreMeterReading(ctx context.Context, reading domain.MeterReading) error
	StoreDeviceReport(ctx context.Context, report domain.DeviceReport) error
}
