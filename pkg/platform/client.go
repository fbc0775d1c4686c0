package platform

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/paulbellamy/ratecounter"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"

	"github.com/telco-platform/agent-deployer/pkg/ratelimit"
)

const (
	userAgent  = "agent-deployer"
	tracerName = "agent-deployer"
)

// Client wraps an HTTP client for the model serving platform API (registry,
// serving endpoints and experiment tracker share one host and one credential),
// adding support for rate limiting, request counting and readiness checks.
type Client struct {
	// Readiness contains configuration to check if the platform is responsive
	// and healthy via an HTTP endpoint.
	Readiness struct {
		URL        string
		HTTPClient *http.Client
	}

	RateLimiter     ratelimit.Limiter        // RateLimiter controls the rate of API requests to stay within platform quotas.
	RateCounter     *ratecounter.RateCounter // RateCounter tracks the per-second request rate for telemetry.
	RequestsCounter atomic.Uint64            // RequestsCounter counts total requests sent.

	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	URL              string            // Base URL of the platform workspace
	Token            string            // API token for authentication
	UserAgentVersion string            // User agent string for client identification
	DisableTLSVerify bool              // Whether to skip TLS verification (e.g., for self-signed certs)
	ReadinessURL     string            // URL used for readiness checks
	RateLimiter      ratelimit.Limiter // Rate limiter implementation shared with the rest of the process
}

// NewHTTPClient creates an HTTP client with optional TLS verification
// disabling. It clones the default transport to preserve proxy settings and
// other defaults, then modifies TLS configuration as requested.
func NewHTTPClient(disableTLSVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: disableTLSVerify}

	return &http.Client{
		Transport: transport,
	}
}

// NewClient creates and returns a new Client instance configured with the
// provided ClientConfig. It sets up the authenticated HTTP client, readiness
// check, rate limiting and request counting.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing platform url")
	}

	// The token never changes over the lifetime of the process, so a static
	// token source layered under the otel instrumented transport is enough.
	base := NewHTTPClient(cfg.DisableTLSVerify)
	authTransport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		Base:   otelhttp.NewTransport(base.Transport),
	}

	httpClient := &http.Client{
		Transport: authTransport,
		Timeout:   60 * time.Second,
	}

	readinessCheckHTTPClient := NewHTTPClient(cfg.DisableTLSVerify)
	readinessCheckHTTPClient.Timeout = 5 * time.Second
	readinessCheckHTTPClient.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		Base:   readinessCheckHTTPClient.Transport,
	}

	c := &Client{
		RateLimiter: cfg.RateLimiter,
		RateCounter: ratecounter.NewRateCounter(time.Second),
		baseURL:     baseURL,
		userAgent:   fmt.Sprintf("%s-%s", userAgent, cfg.UserAgentVersion),
		httpClient:  httpClient,
	}

	c.Readiness.URL = cfg.ReadinessURL
	c.Readiness.HTTPClient = readinessCheckHTTPClient

	return c, nil
}

// ReadinessCheck returns a healthcheck.Check function that performs an HTTP
// GET request to the configured readiness URL to verify if the platform is
// ready to accept requests.
func (c *Client) ReadinessCheck(ctx context.Context) healthcheck.Check {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:ReadinessCheck")
	defer span.End()

	return func() error {
		if c.Readiness.HTTPClient == nil {
			return fmt.Errorf("readiness http client not configured")
		}

		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.Readiness.URL,
			nil,
		)
		if err != nil {
			return err
		}

		resp, err := c.Readiness.HTTPClient.Do(req)
		if err != nil {
			return err
		}

		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}

		return nil
	}
}

// rateLimit enforces rate limiting by blocking until a token is available
// from the configured RateLimiter. It also increments internal counters for
// monitoring requests made.
func (c *Client) rateLimit(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:rateLimit")
	defer span.End()

	ratelimit.Take(ctx, c.RateLimiter)

	c.RateCounter.Incr(1)
	c.RequestsCounter.Add(1)
}

// APIError is the error payload returned by the platform API.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("platform API error (HTTP %d / %s): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// IsNotFound reports whether err is a platform API "not found" response.
func IsNotFound(err error) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound || apiErr.ErrorCode == "RESOURCE_DOES_NOT_EXIST"
	}

	return false
}

// do issues one rate-limited JSON request against the platform API. The in
// payload is marshaled as the request body when non-nil, the response body is
// unmarshaled into out when non-nil. Non-2xx responses are returned as an
// APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	c.rateLimit(ctx)

	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshaling request body")
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}

		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "unmarshaling response body")
		}
	}

	return nil
}
