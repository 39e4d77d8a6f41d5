package zendure

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

const FIELD_TOTAL_POWER = "total_power"

var ErrMissingTotalPower = errors.New("meter report has no total_power")

// MeterClient reads a P1 meter exposing /properties/report.
// Positive total_power means import from the grid.
type MeterClient struct {
	Host   string
	Client *http.Client
}

func NewMeterClient(host string, timeout time.Duration) *MeterClient {
	return &MeterClient{
		Host:   host,
		Client: HTTPClient(timeout),
	}
}

func (c *MeterClient) ReadMeter(ctx context.Context) (*domain.MeterReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hostURL(c.Host, API_ENDPOINT_PROPERTIES_REPORT), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := doRequest(c.Client, req, &raw); err != nil {
		return nil, err
	}
	power, ok := numberField(raw, FIELD_TOTAL_POWER)
	if !ok {
		return nil, ErrMissingTotalPower
	}
	return &domain.MeterReading{
		TotalPower: power,
		ReadAt:     time.Now(),
		Raw:        raw,
	}, nil
}

// ensure interface compliance
var _ port.MeterReader = (*MeterClient)(nil)
