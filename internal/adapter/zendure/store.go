package zendure

import (
	"context"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/google/uuid"
)

// ReadingStore forwards raw readings to the data APIs. An empty url disables
// the corresponding channel.
type ReadingStore struct {
	MeterUrl  string
	DeviceUrl string
	Client    *http.Client
}

type meterRecord struct {
	Id         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	DeviceId   any    `json:"deviceId"`
	TotalPower int    `json:"total_power"`
	PhaseA     any    `json:"a_aprt_power"`
	PhaseB     any    `json:"b_aprt_power"`
	PhaseC     any    `json:"c_aprt_power"`
	MeterTime  any    `json:"meter_timestamp"`
}

type deviceRecord struct {
	Id         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Properties any    `json:"properties"`
	PackData   any    `json:"packData"`
}

func NewReadingStore(meterUrl, deviceUrl string, timeout time.Duration) *ReadingStore {
	return &ReadingStore{
		MeterUrl:  meterUrl,
		DeviceUrl: deviceUrl,
		Client:    HTTPClient(timeout),
	}
}

func (s *ReadingStore) StoreMeterReading(ctx context.Context, reading domain.MeterReading) error {
	if s.MeterUrl == "" {
		return nil
	}
	return s.post(ctx, s.MeterUrl, meterRecord{
		Id:         uuid.NewString(),
		Timestamp:  reading.ReadAt.Format(time.RFC3339),
		DeviceId:   reading.Raw["deviceId"],
		TotalPower: reading.TotalPower,
		PhaseA:     reading.Raw["a_aprt_power"],
		PhaseB:     reading.Raw["b_aprt_power"],
		PhaseC:     reading.Raw["c_aprt_power"],
		MeterTime:  reading.Raw["timestamp"],
	})
}

func (s *ReadingStore) StoreDeviceReport(ctx context.Context, report domain.DeviceReport) error {
	if s.DeviceUrl == "" {
		return nil
	}
	return s.post(ctx, s.DeviceUrl, deviceRecord{
		Id:         uuid.NewString(),
		Timestamp:  report.ReadAt.Format(time.RFC3339),
		Properties: report.Raw["properties"],
		PackData:   report.Raw["packData"],
	})
}

func (s *ReadingStore) post(ctx context.Context, url string, record any) error {
	body, err := newJSONBody(record)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	var resp apiResponse
	if err := doRequest(s.Client, req, &resp); err != nil {
		return err
	}
	return resp.err()
}

// ensure interface compliance
var _ port.ReadingStore = (*ReadingStore)(nil)
