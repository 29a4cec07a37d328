package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"maple-party/internal/logging"
)

// middlewareTransport routes through the progress middleware once the
// duplex probe has installed it. Requests before that go straight to base.
type middlewareTransport struct {
	base     http.RoundTripper
	progress *atomic.Pointer[progressMiddleware]
}

func (t *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if mw := t.progress.Load(); mw != nil {
		return mw.RoundTrip(req, t.base)
	}
	return t.base.RoundTrip(req)
}

// ProgressEnabled reports whether transfer progress logging is active.
func (c *Client) ProgressEnabled() bool {
	return c.progress.Load() != nil
}

func (c *Client) negotiateDuplex() {
	defer close(c.probeDone)
	ctx, cancel := context.WithTimeout(context.Background(), c.probeTimeout)
	defer cancel()

	if !c.probe(ctx, c.transport) {
		c.logger.Debug("streaming request bodies unsupported; progress logging disabled")
		return
	}
	c.progress.Store(&progressMiddleware{logger: c.logger})
	c.logger.Debug("streaming request bodies supported; progress logging enabled")
}

// loopbackDuplexProbe streams a body of unknown length to a throwaway local
// listener through rt and checks that it arrives intact.
func loopbackDuplexProbe(ctx context.Context, rt http.RoundTripper) bool {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return false
	}
	const payload = "test"
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(io.LimitReader(r.Body, 64))
			_, _ = w.Write(data)
		}),
		ReadHeaderTimeout: time.Second,
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	body, writer := io.Pipe()
	go func() {
		_, _ = writer.Write([]byte(payload))
		_ = writer.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+listener.Addr().String()+"/", body)
	if err != nil {
		return false
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	echoed, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return resp.StatusCode == http.StatusOK && strings.TrimSpace(string(echoed)) == payload
}

type progressMiddleware struct {
	logger *logging.Logger
}

// RoundTrip wraps the bodies of a clone of req. Upgraded connections keep
// their writable body untouched.
func (m *progressMiddleware) RoundTrip(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	target := req.URL.Redacted()
	if req.Body != nil && req.Body != http.NoBody {
		req = req.Clone(req.Context())
		req.Body = &progressReader{
			ReadCloser: req.Body,
			total:      req.ContentLength,
			report:     m.reporter("upload", target),
		}
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if streamingBody(resp) {
		return resp, nil
	}
	resp.Body = &progressReader{
		ReadCloser: resp.Body,
		total:      resp.ContentLength,
		report:     m.reporter("download", target),
	}
	return resp, nil
}

// streamingBody reports bodies that must not be wrapped: empty ones and the
// read-write stream of a protocol switch.
func streamingBody(resp *http.Response) bool {
	if resp.Body == nil || resp.Body == http.NoBody {
		return true
	}
	if resp.StatusCode == http.StatusSwitchingProtocols {
		return true
	}
	_, writable := resp.Body.(io.Writer)
	return writable
}

func (m *progressMiddleware) reporter(direction, target string) func(transferred, total int64) {
	return func(transferred, total int64) {
		percent := 0.0
		if total > 0 {
			percent = float64(transferred) * 100 / float64(total)
		}
		m.logger.Debug(direction+" progress",
			logging.Field("url", target),
			logging.Field("percent", int(percent)),
			logging.Field("transferred_bytes", transferred),
			logging.Field("total_bytes", total),
		)
	}
}

// progressReader reports at each quarter of a known length, and at EOF.
type progressReader struct {
	io.ReadCloser
	total       int64
	transferred int64
	nextQuarter int64
	report      func(transferred, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.transferred += int64(n)
	if r.total > 0 {
		for r.nextQuarter < 4 && r.transferred*4 >= r.total*(r.nextQuarter+1) {
			r.nextQuarter++
			r.report(r.transferred, r.total)
		}
	} else if errors.Is(err, io.EOF) {
		r.report(r.transferred, r.total)
	}
	return n, err
}
