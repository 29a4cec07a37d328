package notify

import "context"

// Request is one pending notification waiting for the user.
type Request struct {
	Message Message
	Confirm bool
	reply   chan bool
}

// Resolve answers the request. Only the first call has an effect.
func (r Request) Resolve(accepted bool) {
	select {
	case r.reply <- accepted:
	default:
	}
}

// Channel hands notifications to an interactive front-end through Requests
// and blocks each caller until the front-end resolves it.
type Channel struct {
	requests chan Request
}

func NewChannel(buffer int) *Channel {
	return &Channel{requests: make(chan Request, buffer)}
}

func (c *Channel) Requests() <-chan Request {
	return c.requests
}

func (c *Channel) Alert(ctx context.Context, msg Message) (bool, error) {
	return c.submit(ctx, msg, false)
}

func (c *Channel) Confirm(ctx context.Context, msg Message) (bool, error) {
	return c.submit(ctx, msg, true)
}

func (c *Channel) submit(ctx context.Context, msg Message, confirm bool) (bool, error) {
	req := Request{Message: msg, Confirm: confirm, reply: make(chan bool, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case accepted := <-req.reply:
		return accepted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
