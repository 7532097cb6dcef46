package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// BrowserUserAgent identifies requests as a desktop Firefox. Several document
// hosts reject clients that do not look like a browser.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:86.0) Gecko/20100101 Firefox/86.0"

// BrowserHeaders returns the header set sent to document hosts. cookie is
// omitted when empty.
func BrowserHeaders(cookie string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", BrowserUserAgent)
	h.Set("Upgrade-Insecure-Requests", "1")
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}

// Config configures a Client.
type Config struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// MaxRetries is the number of retries on 429 and 5xx responses and on
	// network errors. Zero disables retries.
	MaxRetries int

	// RetryDelay is the delay between retries when the server gives no
	// Retry-After hint.
	RetryDelay time.Duration

	// Headers are set on every request that does not already carry them.
	Headers http.Header

	// Limiter gates every attempt. Nil means unlimited.
	Limiter *HostLimiter

	// CheckRedirect is passed to the underlying http.Client.
	CheckRedirect func(req *http.Request, via []*http.Request) error

	// RoundTripper overrides http.DefaultTransport.
	RoundTripper http.RoundTripper
}

// Client wraps http.Client with host limits, default headers and retries.
// It is safe for concurrent use.
type Client struct {
	client *http.Client
	cfg    Config
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = Unlimited()
	}
	return &Client{
		client: &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: cfg.CheckRedirect,
			Transport:     cfg.RoundTripper,
		},
		cfg: cfg,
	}
}

// Get issues a GET for url. Responses of any status are returned to the
// caller; failures to obtain a response are *domain.TransportError.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewTransportError(RedactRawURL(url), 0, redactError(err))
	}
	return c.Do(req)
}

// Do executes req. The host slot acquired for the request is held until the
// response body is closed. URLs in returned errors are redacted.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for name, values := range c.cfg.Headers {
		if req.Header.Get(name) == "" {
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}
	}

	ctx := req.Context()
	url := RedactURL(req.URL)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := resetRequestBody(req); err != nil {
				return nil, domain.NewTransportError(url, 0, fmt.Errorf("cannot retry request: %w", err))
			}
		}

		release, err := c.cfg.Limiter.Acquire(ctx, req.URL.Hostname())
		if err != nil {
			return nil, domain.NewTransportError(url, 0, err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			release()
			err = redactError(err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, domain.NewTransportError(url, 0, err)
			}
			lastErr = domain.NewTransportError(url, 0, err)
			if attempt < c.cfg.MaxRetries {
				if err := waitForRetry(ctx, c.cfg.RetryDelay); err != nil {
					return nil, domain.NewTransportError(url, 0, err)
				}
				continue
			}
			return nil, lastErr
		}

		if shouldRetry(resp.StatusCode) && attempt < c.cfg.MaxRetries {
			delay := c.retryDelay(resp)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			release()

			lastErr = domain.NewTransportError(url, resp.StatusCode, nil)
			if err := waitForRetry(ctx, delay); err != nil {
				return nil, domain.NewTransportError(url, 0, err)
			}
			continue
		}

		resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.NewTransportError(url, 0, errors.New("no response received"))
}

func shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelay honours Retry-After and falls back to the configured delay.
func (c *Client) retryDelay(resp *http.Response) time.Duration {
	if d := RetryAfter(resp); d > 0 {
		return d
	}
	return c.cfg.RetryDelay
}

// RetryAfter returns the delay requested by a Retry-After header given in
// seconds or as an HTTP date, or zero when there is none.
func RetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}

func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("get request body: %w", err)
	}
	req.Body = body
	return nil
}

type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
