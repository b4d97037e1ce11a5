package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/examvault/harvester/internal/types"
)

// HTTPClient talks to the bank's record endpoint with a pre-provisioned
// session token. It implements both Prober and Fetcher. Each call gets its
// own deadline, independent of any run-level timeout; a stuck call is a
// timeout error, never a hang.
type HTTPClient struct {
	baseURL      string
	sessionToken string
	probeTimeout time.Duration
	fetchTimeout time.Duration
	http         *http.Client
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL      string
	SessionToken string
	ProbeTimeout time.Duration // default 5s: probes are cheap and short
	FetchTimeout time.Duration // default 30s: fetches carry full payloads
}

// NewHTTPClient validates the endpoint configuration and returns a ready
// client. A missing token is a configuration error, not a retryable one.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: bad base URL: %w", err)
	}
	if cfg.SessionToken == "" {
		return nil, fmt.Errorf("client: session token is required (provision one and set it in config)")
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:      cfg.BaseURL,
		sessionToken: cfg.SessionToken,
		probeTimeout: cfg.ProbeTimeout,
		fetchTimeout: cfg.FetchTimeout,
		http:         &http.Client{},
	}, nil
}

var _ Prober = (*HTTPClient)(nil)
var _ Fetcher = (*HTTPClient)(nil)

// Probe issues a HEAD against the record path. 200 means exists, 404 means
// absent; anything else is a classified error.
func (c *HTTPClient) Probe(ctx context.Context, id types.CandidateID) (ProbeStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, c.recordURL(id))
	if err != nil {
		return ProbeAbsent, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return ProbeExists, nil
	case resp.StatusCode == http.StatusNotFound:
		return ProbeAbsent, nil
	default:
		return ProbeAbsent, classifyStatus(resp.StatusCode, "probe "+id.String())
	}
}

// Fetch retrieves the full record payload.
func (c *HTTPClient) Fetch(ctx context.Context, id types.CandidateID) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.recordURL(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, "fetch "+id.String())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err, "fetch "+id.String())
	}
	return body, nil
}

func (c *HTTPClient) recordURL(id types.CandidateID) string {
	return fmt.Sprintf("%s/records/%s", c.baseURL, id.String())
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &RemoteError{Kind: KindBadRequest, Msg: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err, method+" "+rawURL)
	}
	return resp, nil
}

// classifyStatus maps an HTTP status to a RemoteError.
func classifyStatus(status int, op string) error {
	kind := KindServer
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = KindNotFound
	case status >= 400 && status < 500:
		kind = KindBadRequest
	}
	return &RemoteError{Kind: kind, Status: status, Msg: op}
}

// classifyTransport maps transport-level failures (no HTTP status) to a
// RemoteError.
func classifyTransport(err error, op string) error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &RemoteError{Kind: kind, Msg: fmt.Sprintf("%s: %v", op, err)}
}
