package realtime

import "context"

// Frame is one message delivered on a subscription. Err is set when the
// broker reported a failure on it.
type Frame struct {
	Body []byte
	Err  error
}

// Session is one live broker connection.
type Session interface {
	Send(destination, contentType string, body []byte) error
	Subscribe(destination string) (Subscription, error)
	// Done is closed once the connection is gone; Err then says why.
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Subscription delivers frames in broker order and is closed when the
// session ends.
type Subscription interface {
	Frames() <-chan Frame
	Unsubscribe() error
}

// Connector opens sessions. The client calls it once per connection attempt.
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

type IdentityProvider interface {
	// UserID is the signed-in user's unique id, or "" when signed out.
	UserID() string
}

type ApplicationTracker interface {
	AddApplication(ctx context.Context, application []byte) error
}

type ActiveParty interface {
	PartyRecruitID() (int64, bool)
}

type ResumeLists interface {
	RemoveApplied(ctx context.Context, partyRecruitID int64) error
	AddRejected(ctx context.Context, partyRecruitID int64) error
}
