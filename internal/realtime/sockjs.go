package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"maple-party/internal/logging"
)

// sockJSFrame is one decoded SockJS frame.
type sockJSFrame struct {
	kind     byte
	messages []string
	// closeCode and closeReason are set for 'c' frames.
	closeCode   int
	closeReason string
}

func parseSockJSFrame(data []byte) (sockJSFrame, error) {
	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return sockJSFrame{}, errors.New("empty sockjs frame")
	}
	frame := sockJSFrame{kind: data[0]}
	payload := data[1:]
	switch frame.kind {
	case 'o', 'h':
		return frame, nil
	case 'a', 'm':
		if frame.kind == 'm' {
			var single string
			if err := json.Unmarshal(payload, &single); err != nil {
				return sockJSFrame{}, fmt.Errorf("sockjs message frame: %w", err)
			}
			frame.kind = 'a'
			frame.messages = []string{single}
			return frame, nil
		}
		if err := json.Unmarshal(payload, &frame.messages); err != nil {
			return sockJSFrame{}, fmt.Errorf("sockjs array frame: %w", err)
		}
		return frame, nil
	case 'c':
		var reason []any
		if err := json.Unmarshal(payload, &reason); err != nil {
			return sockJSFrame{}, fmt.Errorf("sockjs close frame: %w", err)
		}
		if len(reason) > 0 {
			if code, ok := reason[0].(float64); ok {
				frame.closeCode = int(code)
			}
		}
		if len(reason) > 1 {
			frame.closeReason, _ = reason[1].(string)
		}
		return frame, nil
	default:
		return sockJSFrame{}, fmt.Errorf("unknown sockjs frame %q", frame.kind)
	}
}

type SockJSClosedError struct {
	Code   int
	Reason string
}

func (e *SockJSClosedError) Error() string {
	return fmt.Sprintf("sockjs session closed: %d %s", e.Code, e.Reason)
}

// xhrConn is a SockJS xhr-polling session presented as a byte stream. Reads
// come from a long-poll loop; every Write is one xhr_send.
type xhrConn struct {
	http   *http.Client
	base   string
	header http.Header
	logger *logging.Logger

	reader *io.PipeReader
	writer *io.PipeWriter
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func dialXHRPolling(ctx context.Context, client *http.Client, sockJSURL string, header http.Header, logger *logging.Logger) (*xhrConn, error) {
	server := fmt.Sprintf("%03d", rand.IntN(1000))
	session := strings.ReplaceAll(uuid.NewString(), "-", "")
	base := strings.TrimSuffix(sockJSURL, "/") + "/" + server + "/" + session

	pollCtx, cancel := context.WithCancel(context.Background())
	reader, writer := io.Pipe()
	c := &xhrConn{
		http:   client,
		base:   base,
		header: header,
		logger: logger,
		reader: reader,
		writer: writer,
		ctx:    pollCtx,
		cancel: cancel,
	}

	frame, err := c.poll(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	if frame.kind != 'o' {
		c.Close()
		return nil, fmt.Errorf("sockjs: expected open frame, got %q", frame.kind)
	}
	logger.Debug("sockjs polling session opened", logging.Field("session", server+"/"+session))
	go c.pollLoop()
	return c, nil
}

func (c *xhrConn) pollLoop() {
	for {
		frame, err := c.poll(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				err = io.EOF
			}
			_ = c.writer.CloseWithError(err)
			return
		}
		switch frame.kind {
		case 'h', 'o':
		case 'a':
			for _, message := range frame.messages {
				if _, err := io.WriteString(c.writer, message); err != nil {
					return
				}
			}
		case 'c':
			_ = c.writer.CloseWithError(&SockJSClosedError{Code: frame.closeCode, Reason: frame.closeReason})
			return
		}
	}
}

func (c *xhrConn) poll(ctx context.Context) (sockJSFrame, error) {
	data, err := c.post(ctx, "/xhr", nil)
	if err != nil {
		return sockJSFrame{}, err
	}
	return parseSockJSFrame(data)
}

func (c *xhrConn) post(ctx context.Context, suffix string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+suffix, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range c.header {
		req.Header[key] = values
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("sockjs %s: %s", suffix, resp.Status)
	}
	return data, nil
}

func (c *xhrConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *xhrConn) Write(p []byte) (int, error) {
	payload, err := json.Marshal([]string{string(p)})
	if err != nil {
		return 0, err
	}
	if _, err := c.post(c.ctx, "/xhr_send", payload); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *xhrConn) Close() error {
	c.once.Do(func() {
		c.cancel()
		_ = c.writer.Close()
		_ = c.reader.Close()
	})
	return nil
}
