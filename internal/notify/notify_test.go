package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"maple-party/internal/logging"
)

func TestLogNotifier_LogsAtKindLevel(t *testing.T) {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	var events []logging.Event
	logger.Subscribe(func(e logging.Event) { events = append(events, e) })

	n := LogNotifier{Logger: logger}
	accepted, err := n.Alert(context.Background(), Message{Text: "boom", Kind: Error})
	if err != nil || !accepted {
		t.Fatalf("Alert() = %v, %v", accepted, err)
	}
	if len(events) != 1 || events[0].Message != "boom" || events[0].Level.String() != "ERROR" {
		t.Fatalf("events = %+v", events)
	}
}

func TestChannel_BlocksUntilResolved(t *testing.T) {
	ch := NewChannel(1)
	done := make(chan bool, 1)
	go func() {
		accepted, _ := ch.Confirm(context.Background(), Message{Text: "leave party?"})
		done <- accepted
	}()

	var req Request
	select {
	case req = <-ch.Requests():
	case <-time.After(time.Second):
		t.Fatalf("no request delivered")
	}
	if !req.Confirm || req.Message.Text != "leave party?" {
		t.Fatalf("request = %+v", req)
	}
	select {
	case <-done:
		t.Fatalf("Confirm returned before resolve")
	case <-time.After(20 * time.Millisecond):
	}

	req.Resolve(false)
	req.Resolve(true)
	if accepted := <-done; accepted {
		t.Fatalf("Confirm() = true, want first resolution false")
	}
}

func TestChannel_HonorsContext(t *testing.T) {
	ch := NewChannel(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.Alert(ctx, Message{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Alert() error = %v, want context.Canceled", err)
	}
}

func TestConsole_AlertRendersAndConfirmUsesAsk(t *testing.T) {
	var out bytes.Buffer
	asked := false
	c := &Console{Out: &out, Ask: func(_ context.Context, msg Message) (bool, error) {
		asked = true
		return msg.Kind == Warning, nil
	}}

	if _, err := c.Alert(context.Background(), Message{Text: "party full", Kind: Warning}); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	if !strings.Contains(out.String(), "party full") || !strings.Contains(out.String(), "Warning") {
		t.Fatalf("rendered = %q", out.String())
	}

	accepted, err := c.Confirm(context.Background(), Message{Text: "sign in?", Kind: Warning})
	if err != nil || !accepted || !asked {
		t.Fatalf("Confirm() = %v, %v (asked=%v)", accepted, err, asked)
	}
}
