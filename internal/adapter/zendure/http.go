package zendure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

const (
	API_ENDPOINT_PROPERTIES_REPORT = "/properties/report"
	API_ENDPOINT_PROPERTIES_WRITE  = "/properties/write"
	DEFAULT_REQUEST_TIMEOUT        = 5 * time.Second
)

var ErrAPIFailure = errors.New("api returned success=false")

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone, the original request may be retried by the caller
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client with a zenschedule user-agent.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DEFAULT_REQUEST_TIMEOUT
	}
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport,
			userAgent: "zenschedule/" + versioninfo.Short(),
		},
		Timeout: timeout,
	}
}

// apiResponse is the envelope used by the schedule, status and store APIs.
type apiResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (r apiResponse) err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return ErrAPIFailure
	}
	return fmt.Errorf("%w: %s", ErrAPIFailure, r.Error)
}

func newJSONBody(body any) (io.Reader, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func doRequest(client *http.Client, req *http.Request, dest any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Redacted(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", req.URL.Redacted(), err)
	}
	return nil
}

func hostURL(host, path string) string {
	return fmt.Sprintf("http://%s%s", host, path)
}
