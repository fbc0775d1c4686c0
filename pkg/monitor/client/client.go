package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/telco-platform/agent-deployer/pkg/monitor"
)

// Client consumes the internal monitoring endpoint exposed by a running
// deployer, over a unix socket or TCP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client for the monitoring server listening on the
// given endpoint.
func NewClient(_ context.Context, endpoint *url.URL) *Client {
	log.WithField("endpoint", endpoint.String()).Debug("configuring connection to the monitoring server..")

	httpClient := &http.Client{Timeout: 5 * time.Second}
	baseURL := "http://" + endpoint.Host

	if endpoint.Scheme == "unix" {
		socketPath := endpoint.Path

		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		}

		// The host part is ignored when dialing a unix socket, but the URL
		// still needs one to be well-formed.
		baseURL = "http://monitor"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// GetTelemetry fetches one telemetry snapshot from the monitoring server.
func (c *Client) GetTelemetry(ctx context.Context) (t monitor.Telemetry, err error) {
	body, err := c.get(ctx, "/telemetry")
	if err != nil {
		return
	}

	err = json.Unmarshal(body, &t)

	return
}

// GetConfig fetches the redacted configuration of the running deployer.
func (c *Client) GetConfig(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/config")

	return string(body), err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
