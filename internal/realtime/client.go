// Package realtime keeps the STOMP session to the chat broker: connection
// state, party topic subscriptions, outgoing chat lines and per-user
// application notifications.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"maple-party/internal/logging"
	"maple-party/internal/notify"
	"maple-party/internal/runctx"
)

const (
	HeartBeat      = 4 * time.Second
	ReconnectDelay = 5 * time.Second

	RejectedText = "Your application was not accepted by the party."
)

var (
	ErrNoIdentity    = errors.New("no signed-in user")
	ErrNotConnected  = errors.New("realtime session is not connected")
	ErrDisconnected  = errors.New("realtime client disconnected")
	ErrNoActiveParty = errors.New("no active party")

	errSessionClosed = errors.New("realtime session closed")
)

func JoinDestination(partyRecruitID int64) string {
	return fmt.Sprintf("/chat/%d/join", partyRecruitID)
}

func SendDestination(partyRecruitID int64) string {
	return fmt.Sprintf("/chat/%d/send", partyRecruitID)
}

func PartyTopic(partyRecruitID int64) string {
	return fmt.Sprintf("/topic/chat/%d", partyRecruitID)
}

func NotificationQueue(userID string) string {
	return "/queue/" + userID + "/notification"
}

type Options struct {
	Connector    Connector
	Identity     IdentityProvider
	Applications ApplicationTracker
	ActiveParty  ActiveParty
	Resume       ResumeLists
	Notifier     notify.Notifier
	Logger       *logging.Logger

	ReconnectDelay time.Duration

	OnStateChange func(State)
	OnMessage     func(ChatMessage)
}

type Client struct {
	connector      Connector
	identity       IdentityProvider
	applications   ApplicationTracker
	activeParty    ActiveParty
	resume         ResumeLists
	notifier       notify.Notifier
	logger         *logging.Logger
	reconnectDelay time.Duration
	onStateChange  func(State)
	onMessage      func(ChatMessage)

	log MessageLog

	mu         sync.Mutex
	state      State
	session    Session
	runCtx     context.Context
	cancel     context.CancelFunc
	generation uint64
	waiter     *waiter
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		panic("realtime.New: logger must not be nil")
	}
	if opts.Connector == nil || opts.Identity == nil {
		panic("realtime.New: connector and identity must not be nil")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: opts.Logger}
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = ReconnectDelay
	}
	return &Client{
		connector:      opts.Connector,
		identity:       opts.Identity,
		applications:   opts.Applications,
		activeParty:    opts.ActiveParty,
		resume:         opts.Resume,
		notifier:       notifier,
		logger:         opts.Logger,
		reconnectDelay: delay,
		onStateChange:  opts.OnStateChange,
		onMessage:      opts.OnMessage,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Messages() *MessageLog {
	return &c.log
}

// waiter releases Connect callers exactly once.
type waiter struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{})}
}

func (w *waiter) resolve(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.done)
	})
}

// Connect starts the session loop and waits for the first successful
// connection. It is a no-op while a loop is already running. Failed
// attempts are recorded in State and retried every reconnect delay; they do
// not fail Connect. If ctx ends first the loop keeps running.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil || c.state.Connected || c.state.Connecting {
		c.mu.Unlock()
		return nil
	}
	if c.identity.UserID() == "" {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.runCtx = runCtx
	c.cancel = cancel
	c.generation++
	gen := c.generation
	w := newWaiter()
	c.waiter = w
	c.mu.Unlock()

	go c.run(runCtx, gen, w)

	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect stops the session loop, closes the live session and resets the
// state. A pending Connect returns ErrDisconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	session := c.session
	w := c.waiter
	c.cancel = nil
	c.session = nil
	c.waiter = nil
	c.runCtx = nil
	c.generation++
	changed := c.state != State{}
	c.state = State{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session != nil {
		if err := session.Close(); err != nil {
			c.logger.Debug("closing realtime session", logging.Field("error", err))
		}
	}
	if w != nil {
		w.resolve(ErrDisconnected)
	}
	if changed {
		c.emitState(State{})
	}
	if cancel != nil {
		c.logger.Info("realtime disconnected")
	}
}

func (c *Client) run(ctx context.Context, gen uint64, w *waiter) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if !c.update(gen, func(s *State) { *s = State{Connecting: true} }) {
			return struct{}{}, backoff.Permanent(ErrDisconnected)
		}
		session, err := c.connector.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("realtime connection failed", logging.Field("error", err))
			c.update(gen, func(s *State) { *s = State{Error: err.Error()} })
			return struct{}{}, err
		}
		if !c.attach(gen, session) {
			_ = session.Close()
			return struct{}{}, backoff.Permanent(ErrDisconnected)
		}
		c.logger.Info("realtime connected")
		w.resolve(nil)

		select {
		case <-session.Done():
		case <-ctx.Done():
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, c.detach(gen, session)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.reconnectDelay)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("reconnecting realtime session",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()),
			)
		}),
	)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrDisconnected) {
		c.logger.Warn("realtime session loop stopped", logging.Field("error", err))
	}
}

// update applies fn to the state when gen is still current.
func (c *Client) update(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	before := c.state
	fn(&c.state)
	after := c.state
	c.mu.Unlock()
	if after != before {
		c.emitState(after)
	}
	return true
}

func (c *Client) attach(gen uint64, session Session) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	c.session = session
	c.state = State{Connected: true}
	c.mu.Unlock()
	c.emitState(State{Connected: true})
	return true
}

// detach clears a session that ended on its own and reports why.
func (c *Client) detach(gen uint64, session Session) error {
	reason := session.Err()
	c.mu.Lock()
	if c.generation != gen || c.session != session {
		c.mu.Unlock()
		return backoff.Permanent(ErrDisconnected)
	}
	c.session = nil
	next := State{}
	if reason != nil {
		next.Error = reason.Error()
	}
	c.state = next
	c.mu.Unlock()
	_ = session.Close()

	c.emitState(next)
	if reason != nil {
		c.logger.Warn("realtime session lost", logging.Field("error", reason))
		return reason
	}
	c.logger.Info("realtime session closed by server")
	return errSessionClosed
}

func (c *Client) emitState(s State) {
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// withSession runs fn against the live session. Without one it logs a
// warning and returns ErrNotConnected without side effects.
func (c *Client) withSession(operation string, fn func(ctx context.Context, s Session) error) error {
	c.mu.Lock()
	session := c.session
	ctx := c.runCtx
	c.mu.Unlock()
	if session == nil {
		c.logger.Warn("realtime not connected; ignoring "+operation, logging.Field("operation", operation))
		return ErrNotConnected
	}
	return fn(ctx, session)
}

// JoinParty announces the join, subscribes to the party topic and marks the
// client joined. Calling it twice subscribes twice.
func (c *Client) JoinParty(partyRecruitID int64) error {
	return c.withSession("join party", func(ctx context.Context, s Session) error {
		if err := s.Send(JoinDestination(partyRecruitID), "", nil); err != nil {
			return fmt.Errorf("join party %d: %w", partyRecruitID, err)
		}
		if err := c.subscribeParty(ctx, s, partyRecruitID); err != nil {
			return err
		}
		c.mu.Lock()
		joined := c.session == s && c.state.Connected
		if joined {
			c.state.Joined = true
		}
		state := c.state
		c.mu.Unlock()
		if joined {
			c.emitState(state)
		}
		c.logger.Info("joined party", logging.Field("party_recruit_id", partyRecruitID))
		return nil
	})
}

func (c *Client) subscribeParty(ctx context.Context, s Session, partyRecruitID int64) error {
	topic := PartyTopic(partyRecruitID)
	sub, err := s.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go c.consume(ctx, topic, sub, c.handlePartyFrame)
	return nil
}

func (c *Client) consume(ctx context.Context, topic string, sub Subscription, handle func(context.Context, []byte)) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Debug("unsubscribe", logging.Field("topic", topic), logging.Field("error", err))
		}
	}()
	for {
		frame, ok := runctx.RecvOrDone(ctx, "subscription "+topic, c.logger, sub.Frames())
		if !ok {
			return
		}
		if frame.Err != nil {
			c.logger.Warn("subscription error", logging.Field("topic", topic), logging.Field("error", frame.Err))
			continue
		}
		handle(ctx, frame.Body)
	}
}

func (c *Client) handlePartyFrame(ctx context.Context, body []byte) {
	inbound, err := DecodePartyFrame(body)
	if err != nil {
		c.logger.Warn("skipping malformed party frame",
			logging.Field("error", err),
			logging.Field("payload", logging.FormatHTTPPayload(body)),
		)
		return
	}
	switch msg := inbound.(type) {
	case ApplicationEvent:
		if msg.Application == nil || c.applications == nil {
			c.logger.Debug("application event without application", logging.Field("party_recruit_id", msg.PartyRecruitID))
			return
		}
		if err := c.applications.AddApplication(ctx, msg.Application); err != nil {
			c.logger.Warn("failed to record application", logging.Field("error", err))
		}
	case ChatMessage:
		c.log.Append(msg)
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// SendMessage publishes text to the active party's chat.
func (c *Client) SendMessage(text string) error {
	return c.withSession("send message", func(_ context.Context, s Session) error {
		partyRecruitID, ok := int64(0), false
		if c.activeParty != nil {
			partyRecruitID, ok = c.activeParty.PartyRecruitID()
		}
		if !ok {
			c.logger.Warn("no active party; message not sent")
			return ErrNoActiveParty
		}
		body, err := json.Marshal(struct {
			Contents string `json:"contents"`
		}{Contents: text})
		if err != nil {
			return err
		}
		if err := s.Send(SendDestination(partyRecruitID), "application/json", body); err != nil {
			return fmt.Errorf("send message to party %d: %w", partyRecruitID, err)
		}
		return nil
	})
}

// SubscribeNotify listens on the signed-in user's notification queue.
// Rejections move the party from the applied list to the rejected list;
// every other status joins the party.
func (c *Client) SubscribeNotify() error {
	return c.withSession("subscribe notifications", func(ctx context.Context, s Session) error {
		userID := c.identity.UserID()
		if userID == "" {
			return ErrNoIdentity
		}
		queue := NotificationQueue(userID)
		sub, err := s.Subscribe(queue)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", queue, err)
		}
		go c.consume(ctx, queue, sub, c.handleNotification)
		return nil
	})
}

func (c *Client) handleNotification(ctx context.Context, body []byte) {
	n, err := DecodeNotification(body)
	if err != nil {
		c.logger.Warn("skipping malformed notification",
			logging.Field("error", err),
			logging.Field("payload", logging.FormatHTTPPayload(body)),
		)
		return
	}
	c.logger.Debug("application notification",
		logging.Field("status", n.StatusType),
		logging.Field("party_recruit_id", n.PartyRecruitID),
	)

	if n.StatusType != StatusRejected {
		if err := c.JoinParty(n.PartyRecruitID); err != nil {
			c.logger.Warn("failed to join party after notification", logging.Field("error", err))
		}
		return
	}

	if c.resume != nil {
		if err := c.resume.RemoveApplied(ctx, n.PartyRecruitID); err != nil {
			c.logger.Warn("failed to update applied parties", logging.Field("error", err))
		}
		if err := c.resume.AddRejected(ctx, n.PartyRecruitID); err != nil {
			c.logger.Warn("failed to update rejected parties", logging.Field("error", err))
		}
	}
	go func() {
		if _, err := c.notifier.Alert(ctx, notify.Message{Text: RejectedText, Kind: notify.Info}); err != nil {
			c.logger.Debug("rejection alert not delivered", logging.Field("error", err))
		}
	}()
}
