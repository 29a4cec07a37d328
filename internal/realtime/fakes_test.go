package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"maple-party/internal/logging"
	"maple-party/internal/notify"
)

type sent struct {
	destination string
	contentType string
	body        string
}

type fakeSubscription struct {
	frames chan Frame
	once   sync.Once
}

func (s *fakeSubscription) Frames() <-chan Frame { return s.frames }

func (s *fakeSubscription) Unsubscribe() error { return nil }

func (s *fakeSubscription) close() { s.once.Do(func() { close(s.frames) }) }

type fakeSession struct {
	mu            sync.Mutex
	sent          []sent
	subscriptions map[string][]*fakeSubscription
	done          chan struct{}
	doneOnce      sync.Once
	err           error
	closed        atomic.Bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{subscriptions: map[string][]*fakeSubscription{}, done: make(chan struct{})}
}

func (s *fakeSession) Send(destination, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{destination: destination, contentType: contentType, body: string(body)})
	return nil
}

func (s *fakeSession) Subscribe(destination string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &fakeSubscription{frames: make(chan Frame, 16)}
	s.subscriptions[destination] = append(s.subscriptions[destination], sub)
	return sub, nil
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	s.drop(nil)
	return nil
}

// drop ends the session as if the transport failed with err.
func (s *fakeSession) drop(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		for _, subs := range s.subscriptions {
			for _, sub := range subs {
				sub.close()
			}
		}
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeSession) sentMessages() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

func (s *fakeSession) subs(destination string) []*fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeSubscription(nil), s.subscriptions[destination]...)
}

// fakeConnector hands out queued outcomes; when the queue is empty Open
// blocks until the context ends.
type fakeConnector struct {
	mu       sync.Mutex
	outcomes []func() (Session, error)
	opens    atomic.Int32
	opened   chan struct{}
}

func newFakeConnector(outcomes ...func() (Session, error)) *fakeConnector {
	return &fakeConnector{outcomes: outcomes, opened: make(chan struct{}, 16)}
}

func (c *fakeConnector) Open(ctx context.Context) (Session, error) {
	c.opens.Add(1)
	c.opened <- struct{}{}
	c.mu.Lock()
	if len(c.outcomes) == 0 {
		c.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := c.outcomes[0]
	c.outcomes = c.outcomes[1:]
	c.mu.Unlock()
	return next()
}

func sessionOutcome(s *fakeSession) func() (Session, error) {
	return func() (Session, error) { return s, nil }
}

func errorOutcome(msg string) func() (Session, error) {
	return func() (Session, error) { return nil, errors.New(msg) }
}

type staticIdentity string

func (s staticIdentity) UserID() string { return string(s) }

type fakeResume struct {
	mu       sync.Mutex
	applied  []int64
	rejected []int64
}

func (r *fakeResume) RemoveApplied(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.applied {
		if existing == id {
			r.applied = append(r.applied[:i], r.applied[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeResume) AddRejected(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, id)
	return nil
}

func (r *fakeResume) snapshot() ([]int64, []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.applied...), append([]int64(nil), r.rejected...)
}

type fakeApplications struct {
	added chan string
}

func (a *fakeApplications) AddApplication(_ context.Context, application []byte) error {
	a.added <- string(application)
	return nil
}

type fakeParty struct {
	id int64
	ok bool
}

func (p fakeParty) PartyRecruitID() (int64, bool) { return p.id, p.ok }

type alertRecorder struct {
	alerts chan notify.Message
}

func (a *alertRecorder) Alert(_ context.Context, msg notify.Message) (bool, error) {
	a.alerts <- msg
	return true, nil
}

func (a *alertRecorder) Confirm(ctx context.Context, msg notify.Message) (bool, error) {
	return a.Alert(ctx, msg)
}

type testDeps struct {
	connector    *fakeConnector
	resume       *fakeResume
	applications *fakeApplications
	alerts       *alertRecorder
	messages     chan ChatMessage
	states       chan State
}

func newTestClient(identity string, party fakeParty, connector *fakeConnector) (*Client, *testDeps) {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	deps := &testDeps{
		connector:    connector,
		resume:       &fakeResume{},
		applications: &fakeApplications{added: make(chan string, 8)},
		alerts:       &alertRecorder{alerts: make(chan notify.Message, 8)},
		messages:     make(chan ChatMessage, 16),
		states:       make(chan State, 64),
	}
	client := New(Options{
		Connector:      connector,
		Identity:       staticIdentity(identity),
		Applications:   deps.applications,
		ActiveParty:    party,
		Resume:         deps.resume,
		Notifier:       deps.alerts,
		Logger:         logger,
		ReconnectDelay: 10 * time.Millisecond,
		OnStateChange: func(s State) {
			select {
			case deps.states <- s:
			default:
			}
		},
		OnMessage: func(m ChatMessage) { deps.messages <- m },
	})
	return client, deps
}
