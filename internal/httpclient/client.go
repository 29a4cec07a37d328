// Package httpclient issues authenticated requests against the backend
// origin. It attaches the current CSRF token to every attempt, retries
// transient GETs, refreshes expired sessions once and surfaces outcomes
// through the notification boundary.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"maple-party/internal/config"
	"maple-party/internal/logging"
	"maple-party/internal/notify"
	"maple-party/internal/tokens"
)

const (
	HeaderCSRF    = "X-CSRF-TOKEN"
	HeaderRefresh = "REFRESH-TOKEN"
	// HeaderRTR marks a 401 the server allows to be recovered by refresh.
	HeaderRTR = "RTR"

	maxResponseBytes    = 4 << 20
	defaultProbeTimeout = 2 * time.Second
)

type TokenStore interface {
	Get() tokens.Tokens
	Replace(ctx context.Context, csrf, refresh string) error
}

type LoginLauncher interface {
	Open(ctx context.Context) error
}

type Options struct {
	Endpoints config.Endpoints
	Tokens    TokenStore
	Notifier  notify.Notifier
	Login     LoginLauncher
	Logger    *logging.Logger

	// Transport defaults to a clone of http.DefaultTransport.
	Transport http.RoundTripper
	Jar       http.CookieJar

	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	ProbeTimeout time.Duration
	// DuplexProbe overrides the loopback streaming check.
	DuplexProbe func(ctx context.Context, rt http.RoundTripper) bool
}

type Client struct {
	endpoints config.Endpoints
	tokens    TokenStore
	notifier  notify.Notifier
	login     LoginLauncher
	logger    *logging.Logger
	transport http.RoundTripper
	jar       http.CookieJar
	retry     retryPolicy

	probeTimeout time.Duration
	probe        func(ctx context.Context, rt http.RoundTripper) bool

	once      sync.Once
	base      *http.Client
	progress  atomic.Pointer[progressMiddleware]
	probeDone chan struct{}

	refreshes singleflight.Group
}

func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		panic("httpclient.New: logger must not be nil")
	}
	if opts.Tokens == nil {
		panic("httpclient.New: token store must not be nil")
	}
	if strings.TrimSpace(opts.Endpoints.Origin) == "" {
		return nil, fmt.Errorf("httpclient: origin is required")
	}
	jar := opts.Jar
	if jar == nil {
		created, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		jar = created
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: opts.Logger}
	}
	probe := opts.DuplexProbe
	if probe == nil {
		probe = loopbackDuplexProbe
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Client{
		endpoints:    opts.Endpoints,
		tokens:       opts.Tokens,
		notifier:     notifier,
		login:        opts.Login,
		logger:       opts.Logger,
		transport:    transport,
		jar:          jar,
		retry:        newRetryPolicy(opts.RetryInitialInterval, opts.RetryMaxInterval),
		probe:        probe,
		probeTimeout: probeTimeout,
		probeDone:    make(chan struct{}),
	}, nil
}

// HTTP returns the shared client. It is built on first use and carries the
// cookie jar, so the realtime handshake continues the same session.
func (c *Client) HTTP() *http.Client {
	c.once.Do(func() {
		c.base = &http.Client{
			Transport: &middlewareTransport{base: c.transport, progress: &c.progress},
			Jar:       c.jar,
		}
		go c.negotiateDuplex()
	})
	return c.base
}

func (c *Client) Jar() http.CookieJar {
	return c.jar
}

func (c *Client) Origin() string {
	return c.endpoints.Origin
}

// Response is a fully read response body.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return io.EOF
	}
	return json.Unmarshal(r.Body, v)
}

type RequestOption func(*requestOptions)

type requestOptions struct {
	header http.Header
}

// WithHeader sets a request header. X-CSRF-TOKEN set this way replaces the
// stored token for this call.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set(key, value)
	}
}

type requestSpec struct {
	method string
	path   string
	body   any
	opts   requestOptions
}

// Do sends one logical request. body is encoded as query parameters for GET
// and DELETE and as JSON otherwise. Non-2xx outcomes are notified once and
// returned as *HTTPStatusError.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	spec := requestSpec{method: strings.ToUpper(method), path: strings.TrimPrefix(path, "/"), body: body}
	for _, opt := range opts {
		opt(&spec.opts)
	}

	resp, err := c.sendWithRetry(ctx, spec)
	if err != nil {
		return nil, c.transportFailure(ctx, spec, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, spec, resp)
	}
	return c.finish(ctx, spec, resp)
}

// DoJSON sends a request and decodes the JSON body into T.
func DoJSON[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (T, error) {
	var out T
	resp, err := c.Do(ctx, method, path, body, opts...)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return out, nil
}

func (c *Client) finish(ctx context.Context, spec requestSpec, resp *Response) (*Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusFailure(ctx, spec, resp)
	}
	c.surfaceSuccess(ctx, resp)
	return resp, nil
}

// send performs a single attempt.
func (c *Client) send(ctx context.Context, spec requestSpec) (*Response, error) {
	req, err := c.newRequest(ctx, spec)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	httpResp, err := c.HTTP().Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			logging.Field("method", spec.method),
			logging.Field("url", req.URL.String()),
			logging.Field("error", err),
		)
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debugf("%s %s -> %s (%s)", spec.method, req.URL.Redacted(), httpResp.Status, time.Since(started).Round(time.Millisecond))
	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, spec requestSpec) (*http.Request, error) {
	target := c.endpoints.Origin + spec.path
	var reader io.Reader
	contentType := ""

	if !isEmptyBody(spec.body) {
		if spec.method == http.MethodGet || spec.method == http.MethodDelete {
			query, err := encodeQuery(spec.body)
			if err != nil {
				return nil, fmt.Errorf("encode query for %s %s: %w", spec.method, spec.path, err)
			}
			if encoded := query.Encode(); encoded != "" {
				sep := "?"
				if strings.Contains(target, "?") {
					sep = "&"
				}
				target += sep + encoded
			}
		} else {
			payload, err := json.Marshal(spec.body)
			if err != nil {
				return nil, fmt.Errorf("encode body for %s %s: %w", spec.method, spec.path, err)
			}
			reader = bytes.NewReader(payload)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// Re-read on every attempt so a replay after refresh carries the new token.
	req.Header.Set(HeaderCSRF, c.tokens.Get().CSRF)
	for key, values := range spec.opts.header {
		req.Header[key] = append([]string(nil), values...)
	}
	return req, nil
}
