package zendure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

// StatusClient posts automation lifecycle events to the status API.
// A redirect is followed once, re-posting the same body.
type StatusClient struct {
	Url    string
	Client *http.Client
}

func NewStatusClient(url string, timeout time.Duration) *StatusClient {
	client := HTTPClient(timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &StatusClient{
		Url:    url,
		Client: client,
	}
}

func (c *StatusClient) PostStatus(ctx context.Context, event domain.StatusEvent) error {
	resp, err := c.post(ctx, c.Url, event)
	if err != nil {
		return err
	}
	if isRedirect(resp.StatusCode) {
		loc, err := resp.Location()
		resp.Body.Close()
		if err != nil {
			return err
		}
		resp, err = c.post(ctx, loc.String(), event)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status api: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode status api response: %w", err)
	}
	return result.err()
}

func (c *StatusClient) post(ctx context.Context, url string, event domain.StatusEvent) (*http.Response, error) {
	body, err := newJSONBody(event)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Client.Do(req)
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// ensure interface compliance
var _ port.StatusReporter = (*StatusClient)(nil)
