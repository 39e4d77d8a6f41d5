package zendure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"go.uber.org/zap"
)

var ErrMissingElectricLevel = errors.New("device report has no properties.electricLevel")

// DeviceClient talks to the battery local HTTP API.
type DeviceClient struct {
	Host         string
	SerialNumber string
	Client       *http.Client
	Logger       *zap.Logger
}

func NewDeviceClient(host, serialNumber string, timeout time.Duration, logger *zap.Logger) *DeviceClient {
	return &DeviceClient{
		Host:         host,
		SerialNumber: serialNumber,
		Client:       HTTPClient(timeout),
		Logger:       logger,
	}
}

func (c *DeviceClient) ReadReport(ctx context.Context) (*domain.DeviceReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hostURL(c.Host, API_ENDPOINT_PROPERTIES_REPORT), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := doRequest(c.Client, req, &raw); err != nil {
		return nil, err
	}
	props, _ := raw["properties"].(map[string]any)
	level, ok := numberField(props, "electricLevel")
	if !ok {
		return nil, ErrMissingElectricLevel
	}
	input, _ := numberField(props, "inputLimit")
	output, _ := numberField(props, "outputLimit")
	return &domain.DeviceReport{
		ElectricLevel: level,
		InputLimit:    input,
		OutputLimit:   output,
		ReadAt:        time.Now(),
		Raw:           raw,
	}, nil
}

func (c *DeviceClient) WriteCommand(ctx context.Context, cmd domain.DeviceCommand) error {
	body, err := newJSONBody(domain.DeviceWriteRequest{
		SerialNumber: c.SerialNumber,
		Properties:   cmd,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hostURL(c.Host, API_ENDPOINT_PROPERTIES_WRITE), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := doRequest(c.Client, req, nil); err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Debug("device command written", zap.String("command", cmd.String()))
	}
	return nil
}

// numberField reads an integer out of a decoded JSON object.
func numberField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// ensure interface compliance
var _ port.DeviceClient = (*DeviceClient)(nil)
