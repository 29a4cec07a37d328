package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"

	"maple-party/internal/logging"
	"maple-party/internal/runctx"
)

const (
	disconnectTimeout = 2 * time.Second
	// settleTimeout bounds how long a dropped session waits for its
	// subscriptions to report the broker's reason.
	settleTimeout = 500 * time.Millisecond
)

// ErrConnectionLost is the reason recorded when the broker stream ends
// without an explanation.
var ErrConnectionLost = errors.New("realtime connection lost")

// Transport opens the byte stream that carries STOMP frames.
type Transport interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// STOMPConnector speaks STOMP over whatever stream the transport yields.
type STOMPConnector struct {
	Transport Transport
	// Host is sent in the CONNECT frame.
	Host      string
	HeartBeat time.Duration
	Logger    *logging.Logger
}

func NewSTOMPConnector(transport Transport, origin string, logger *logging.Logger) *STOMPConnector {
	host := ""
	if parsed, err := url.Parse(origin); err == nil {
		host = parsed.Hostname()
	}
	return &STOMPConnector{Transport: transport, Host: host, HeartBeat: HeartBeat, Logger: logger}
}

func (c *STOMPConnector) Open(ctx context.Context) (Session, error) {
	rwc, err := c.Transport.Dial(ctx)
	if err != nil {
		return nil, err
	}
	watched := newWatchedConn(rwc)

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.HeartBeat(c.HeartBeat, c.HeartBeat),
		stomp.ConnOpt.Logger(stompLogger{logger: c.Logger}),
	}
	if c.Host != "" {
		opts = append(opts, stomp.ConnOpt.Host(c.Host))
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(watched, opts...)
		done <- result{conn: conn, err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			_ = watched.Close()
			return nil, res.err
		}
		c.Logger.Debug("stomp session established", logging.Field("host", c.Host))
		return newSTOMPSession(res.conn, watched, c.Logger), nil
	case <-ctx.Done():
		// Closing the stream unblocks stomp.Connect.
		_ = watched.Close()
		return nil, ctx.Err()
	}
}

type stompSession struct {
	conn      *stomp.Conn
	transport *watchedConn
	logger    *logging.Logger
	closeOnce sync.Once
	closing   atomic.Bool
	done      chan struct{}

	mu        sync.Mutex
	pumps     []chan struct{}
	brokerErr error
}

func newSTOMPSession(conn *stomp.Conn, transport *watchedConn, logger *logging.Logger) *stompSession {
	s := &stompSession{conn: conn, transport: transport, logger: logger, done: make(chan struct{})}
	go s.settle()
	return s
}

// settle closes done once the stream has ended and every subscription has
// either reported a broker error or finished.
func (s *stompSession) settle() {
	<-s.transport.Done()
	s.mu.Lock()
	pumps := append([]chan struct{}(nil), s.pumps...)
	s.mu.Unlock()
	timeout := time.NewTimer(settleTimeout)
	defer timeout.Stop()
	for _, pump := range pumps {
		select {
		case <-pump:
		case <-timeout.C:
			close(s.done)
			return
		}
	}
	close(s.done)
}

func (s *stompSession) recordBrokerError(err error) {
	s.mu.Lock()
	if s.brokerErr == nil {
		s.brokerErr = err
	}
	s.mu.Unlock()
}

func (s *stompSession) Send(destination, contentType string, body []byte) error {
	return s.conn.Send(destination, contentType, body)
}

func (s *stompSession) Subscribe(destination string) (Subscription, error) {
	sub, err := s.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	settled := make(chan struct{})
	s.mu.Lock()
	s.pumps = append(s.pumps, settled)
	s.mu.Unlock()
	markSettled := sync.OnceFunc(func() { close(settled) })

	frames := make(chan Frame)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(frames)
		defer markSettled()
		for msg := range sub.C {
			frame := Frame{Err: msg.Err}
			if msg.Err != nil {
				s.recordBrokerError(brokerError(msg.Err))
				markSettled()
			} else {
				frame.Body = msg.Body
			}
			if !runctx.SendOrDone(ctx, "stomp subscription "+destination, s.logger, frames, frame) {
				return
			}
		}
	}()
	return &stompSubscription{sub: sub, frames: frames, cancel: cancel}, nil
}

// brokerError prefers the ERROR frame's message header.
func brokerError(err error) error {
	var ptr *stomp.Error
	if errors.As(err, &ptr) && ptr.Message != "" {
		return fmt.Errorf("broker error: %s", ptr.Message)
	}
	var val stomp.Error
	if errors.As(err, &val) && val.Message != "" {
		return fmt.Errorf("broker error: %s", val.Message)
	}
	return err
}

func (s *stompSession) Done() <-chan struct{} {
	return s.done
}

// Err is nil after a local Close. Any other end of the stream is a failure:
// the broker's ERROR message when one arrived, then the stream error, else
// ErrConnectionLost.
func (s *stompSession) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	if s.closing.Load() {
		return nil
	}
	s.mu.Lock()
	brokerErr := s.brokerErr
	s.mu.Unlock()
	if brokerErr != nil {
		return brokerErr
	}
	if err := s.transport.Err(); err != nil {
		return err
	}
	return ErrConnectionLost
}

func (s *stompSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		select {
		case <-s.transport.Done():
		default:
			s.closing.Store(true)
			disconnected := make(chan error, 1)
			go func() { disconnected <- s.conn.Disconnect() }()
			select {
			case err = <-disconnected:
			case <-time.After(disconnectTimeout):
				err = s.conn.MustDisconnect()
			}
		}
		if closeErr := s.transport.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

type stompSubscription struct {
	sub    *stomp.Subscription
	frames chan Frame
	cancel context.CancelFunc
}

func (s *stompSubscription) Frames() <-chan Frame {
	return s.frames
}

func (s *stompSubscription) Unsubscribe() error {
	s.cancel()
	if !s.sub.Active() {
		return nil
	}
	return s.sub.Unsubscribe()
}

// watchedConn records the first read or write failure so the session loop
// can tell when the stream is gone.
type watchedConn struct {
	io.ReadWriteCloser
	once sync.Once
	done chan struct{}
	err  error
}

func newWatchedConn(rwc io.ReadWriteCloser) *watchedConn {
	return &watchedConn{ReadWriteCloser: rwc, done: make(chan struct{})}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.ReadWriteCloser.Read(p)
	if err != nil {
		w.fail(err)
	}
	return n, err
}

func (w *watchedConn) Write(p []byte) (int, error) {
	n, err := w.ReadWriteCloser.Write(p)
	if err != nil {
		w.fail(err)
	}
	return n, err
}

func (w *watchedConn) Close() error {
	w.fail(nil)
	return w.ReadWriteCloser.Close()
}

func (w *watchedConn) fail(err error) {
	w.once.Do(func() {
		if err == io.EOF {
			err = nil
		}
		w.err = err
		close(w.done)
	})
}

func (w *watchedConn) Done() <-chan struct{} {
	return w.done
}

// Err is nil for a clean end of stream or a local close.
func (w *watchedConn) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// stompLogger routes go-stomp's diagnostics into the application logger
// instead of the standard library logger.
type stompLogger struct {
	logger *logging.Logger
}

func (l stompLogger) Debugf(format string, value ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, value...))
}

func (l stompLogger) Infof(format string, value ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, value...))
}

func (l stompLogger) Warningf(format string, value ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, value...))
}

func (l stompLogger) Errorf(format string, value ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, value...))
}

func (l stompLogger) Debug(message string)   { l.logger.Debug(message) }
func (l stompLogger) Info(message string)    { l.logger.Debug(message) }
func (l stompLogger) Warning(message string) { l.logger.Warn(message) }
func (l stompLogger) Error(message string)   { l.logger.Warn(message) }
