/*
Package gateway is the typed client for the backend's REST API.

Every call is a single request/response: there is no implicit retry. A non-2xx response
comes back as an *errs.CustomError carrying the HTTP status and raw body; 401 and 403
are AuthErrors, transport failures are NetworkErrors.
*/
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/metrics"
	"xalvion/internal/pkg/randx"

	"golang.org/x/time/rate"
)

// maxResponseSize caps how much of a response body is read (8 MB).
const maxResponseSize = 8 << 20

// CredentialSource supplies the bearer token for authenticated calls.
type CredentialSource interface {
	Credential() string
}

// Config holds the settings of a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8001.
	BaseURL string

	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration

	// Rate and Burst throttle outgoing requests. A zero Rate disables throttling.
	Rate  float64
	Burst int

	// HistoryLimit is the page size of ListMessages.
	HistoryLimit int

	// HTTPClient overrides the transport. Nil uses a fresh http.Client.
	HTTPClient *http.Client

	Metrics *metrics.Metrics
}

// Client performs REST calls against the backend. It is safe for concurrent use.
type Client struct {
	baseURL      string
	timeout      time.Duration
	historyLimit int
	http         *http.Client
	limiter      *rate.Limiter
	creds        CredentialSource
	metrics      *metrics.Metrics
}

// NewClient creates a Client. creds may be nil for a client that only authenticates.
func NewClient(cfg Config, creds CredentialSource) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      cfg.Timeout,
		historyLimit: cfg.HistoryLimit,
		http:         cfg.HTTPClient,
		creds:        creds,
		metrics:      cfg.Metrics,
	}

	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.historyLimit <= 0 {
		c.historyLimit = 50
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return c
}

// do sends one request. body, when non-nil, is encoded as JSON; a non-nil out receives the
// decoded response. An empty response body leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errs.Wrap(errs.ErrNetwork, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.ErrInvalidParams, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Wrap(errs.ErrNetwork, err)
	}

	requestID := randx.RequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if token := c.creds.Credential(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveREST(op, 0, time.Since(start))
		logx.Warn("Backend request failed", "op", op, "request_id", requestID, "error", err.Error())
		return errs.Wrap(errs.ErrNetwork, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	c.metrics.ObserveREST(op, res.StatusCode, time.Since(start))
	if err != nil {
		return errs.Wrap(errs.ErrNetwork, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		logx.Warn("Backend rejected request",
			"op", op,
			"request_id", requestID,
			"status", res.StatusCode,
		)
		return errs.FromResponse(res.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		customErr := errs.Wrap(errs.ErrDecodeResponse, fmt.Errorf("%s: %w", op, err))
		customErr.Status = res.StatusCode
		customErr.Body = string(raw)
		return customErr
	}

	return nil
}
