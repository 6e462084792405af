// Package httpx holds the HTTP plumbing shared by connectors and the content fetcher.
package httpx

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/utils"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	contentEncoding  = "gzip, deflate, br"
	contentTypeJSON  = "application/json"
	maxBodySnippet   = 400
)

// HTTPError carries status and body for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bad status: %s %s status=%d body=%s", e.Method, redact(e.URL), e.StatusCode, utils.TruncateForLog(string(e.Body), maxBodySnippet))
}

// StatusOf returns the status code carried by an HTTPError in err's chain, or 0.
func StatusOf(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retry5xx retries any 5xx status.
	Retry5xx bool

	RetryStatuses map[int]bool
}

// DefaultRetryConfig allows a single retry: connectors must stay inside their own timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Retry5xx:    true,
		RetryStatuses: map[int]bool{
			http.StatusRequestTimeout:     true,
			http.StatusBadGateway:         true,
			http.StatusServiceUnavailable: true,
			http.StatusGatewayTimeout:     true,
		},
	}
}

type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	Headers    map[string]string
	Retry      RetryConfig
	logger     *zap.Logger
}

func New(timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  DefaultUserAgent,
		Retry:      DefaultRetryConfig(),
		logger:     logger,
	}
}

// Do executes a request built by buildReq with retries. The body is always read and
// decoded so callers never deal with Content-Encoding.
func (c *Client) Do(ctx context.Context, buildReq func(context.Context) (*http.Request, error)) (*http.Response, []byte, error) {
	cfg := c.Retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, nil, err
		}
		c.setHeaders(req)

		c.logger.Debug("make request", zap.String("url", redact(req.URL.String())), zap.Int("attempt", attempt))

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < cfg.MaxAttempts && isRetryableNetErr(err) {
				if err := backoff(ctx, attempt, cfg, 0); err != nil {
					return nil, nil, err
				}
				continue
			}
			return nil, nil, err
		}

		body, err := readBody(resp)
		if err != nil {
			return resp, nil, fmt.Errorf("read body: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		herr := &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
		lastErr = herr

		if attempt < cfg.MaxAttempts && isRetryableStatus(resp.StatusCode, cfg) {
			if err := backoff(ctx, attempt, cfg, ParseRetryAfter(resp)); err != nil {
				return nil, nil, err
			}
			continue
		}

		return resp, body, herr
	}

	return nil, nil, lastErr
}

// GetJSON performs a GET request and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, rawURL string, q url.Values, headers map[string]string, target any) error {
	_, body, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if q != nil {
			req.URL.RawQuery = q.Encode()
		}
		req.Header.Set("Accept", contentTypeJSON)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	return decodeJSON(body, target)
}

// PostJSON sends payload as a JSON body and decodes the JSON response into target.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, body, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentTypeJSON)
		req.Header.Set("Accept", contentTypeJSON)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	return decodeJSON(body, target)
}

// GetHTML performs a GET request and returns the body as text.
func (c *Client) GetHTML(ctx context.Context, rawURL string, q url.Values, headers map[string]string) (string, error) {
	_, body, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if q != nil {
			req.URL.RawQuery = q.Encode()
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func (c *Client) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" && c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept-Encoding", contentEncoding)
	for key, value := range c.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
}

// DecodeBody wraps r according to the Content-Encoding header value.
func DecodeBody(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return zlib.NewReader(r)
	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

func decodeJSON(body []byte, target any) error {
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// ParseRetryAfter reads the Retry-After header as seconds or an HTTP date.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func isRetryableStatus(code int, cfg RetryConfig) bool {
	if cfg.RetryStatuses[code] {
		return true
	}
	return cfg.Retry5xx && code >= 500 && code <= 599
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func backoff(ctx context.Context, attempt int, cfg RetryConfig, retryAfter time.Duration) error {
	delay := retryAfter
	if delay <= 0 {
		delay = cfg.BaseDelay * time.Duration(1<<(attempt-1))
		delay += time.Duration(rand.Int64N(int64(200 * time.Millisecond)))
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return utils.WaitFor(ctx, delay)
}

// redact hides credentials passed in the query string or the path of known APIs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"app_key", "app_id", "key", "api_key", "token"} {
		if q.Has(key) {
			q.Set(key, "***")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
