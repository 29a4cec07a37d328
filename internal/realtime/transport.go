package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"maple-party/internal/logging"
)

const maxFrameBytes = 1 << 20

// TokenSource supplies the CSRF token for handshakes.
type TokenSource interface {
	CSRFToken() string
}

// Dialer picks the stream for each connection attempt: a raw WebSocket when
// the server's SockJS info allows it, else SockJS XHR polling.
type Dialer struct {
	HTTP *http.Client
	// SockJSURL is the SockJS base, e.g. https://maple-party.com/ws.
	SockJSURL    string
	WebSocketURL string
	Tokens       TokenSource
	ForcePolling bool
	Logger       *logging.Logger
}

type sockJSInfo struct {
	WebSocket    bool `json:"websocket"`
	CookieNeeded bool `json:"cookie_needed"`
}

func (d *Dialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	info, err := d.info(ctx)
	if err != nil {
		return nil, err
	}
	if info.WebSocket && !d.ForcePolling {
		conn, wsErr := d.dialWebSocket(ctx)
		if wsErr == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.Logger.Warn("websocket unavailable; falling back to polling", logging.Field("error", wsErr))
	}
	return dialXHRPolling(ctx, d.HTTP, d.SockJSURL, d.header(), d.Logger)
}

func (d *Dialer) header() http.Header {
	header := http.Header{}
	if d.Tokens != nil {
		if token := d.Tokens.CSRFToken(); token != "" {
			header.Set("X-CSRF-TOKEN", token)
		}
	}
	return header
}

func (d *Dialer) info(ctx context.Context) (sockJSInfo, error) {
	infoURL := strings.TrimSuffix(d.SockJSURL, "/") + "/info"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return sockJSInfo{}, err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return sockJSInfo{}, fmt.Errorf("sockjs info: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	d.Logger.Debugf("GET %s -> %s", infoURL, resp.Status)
	if resp.StatusCode != http.StatusOK {
		return sockJSInfo{}, fmt.Errorf("sockjs info: %s", resp.Status)
	}
	info := sockJSInfo{}
	if err := json.Unmarshal(data, &info); err != nil {
		return sockJSInfo{}, fmt.Errorf("sockjs info: %w", err)
	}
	return info, nil
}

func (d *Dialer) dialWebSocket(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, resp, err := websocket.Dial(ctx, d.WebSocketURL, &websocket.DialOptions{
		HTTPClient: d.HTTP,
		HTTPHeader: d.header(),
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)
	d.Logger.Debug("websocket transport established", logging.Field("url", d.WebSocketURL))
	// The stream outlives the dial context.
	return websocket.NetConn(context.Background(), conn, websocket.MessageText), nil
}
