package zendure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

// ScheduleAPIClient consumes the resolved schedule served by a remote
// schedule API instead of resolving a local file.
type ScheduleAPIClient struct {
	Url    string
	Client *http.Client
}

type scheduleAPIResponse struct {
	apiResponse
	Resolved    []domain.ResolvedSlot `json:"resolved"`
	CurrentTime string                `json:"currentTime"`
	CurrentHour string                `json:"currentHour"`
}

func NewScheduleAPIClient(apiUrl string, timeout time.Duration) *ScheduleAPIClient {
	return &ScheduleAPIClient{
		Url:    apiUrl,
		Client: HTTPClient(timeout),
	}
}

func (c *ScheduleAPIClient) ResolvedSlots(ctx context.Context, date string) ([]domain.ResolvedSlot, error) {
	u, err := url.Parse(c.Url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	var resp scheduleAPIResponse
	if err := doRequest(c.Client, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	if resp.CurrentTime == "" && resp.CurrentHour == "" {
		return nil, fmt.Errorf("schedule api response missing currentTime and currentHour")
	}
	return resp.Resolved, nil
}

// ensure interface compliance
var _ port.ScheduleSource = (*ScheduleAPIClient)(nil)
