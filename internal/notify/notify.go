// Package notify is the user-facing alert and confirm boundary. Calls may
// block until the user answers, so every call takes a context.
package notify

import (
	"context"
	"log/slog"

	"maple-party/internal/logging"
)

type Kind int

const (
	Info Kind = iota
	Success
	Warning
	Error
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

type Message struct {
	Title string
	Text  string
	Kind  Kind
}

// Notifier reports whether the user accepted. Alert resolves true once the
// user dismisses it.
type Notifier interface {
	Alert(ctx context.Context, msg Message) (bool, error)
	Confirm(ctx context.Context, msg Message) (bool, error)
}

// LogNotifier writes notifications to the logger and accepts everything.
// Used when no interactive surface is attached.
type LogNotifier struct {
	Logger *logging.Logger
}

func (n LogNotifier) Alert(ctx context.Context, msg Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n.log(msg)
	return true, nil
}

func (n LogNotifier) Confirm(ctx context.Context, msg Message) (bool, error) {
	return n.Alert(ctx, msg)
}

func (n LogNotifier) log(msg Message) {
	fields := []slog.Attr{logging.Field("kind", msg.Kind.String())}
	if msg.Title != "" {
		fields = append(fields, logging.Field("title", msg.Title))
	}
	switch msg.Kind {
	case Error:
		n.Logger.Error(msg.Text, fields...)
	case Warning:
		n.Logger.Warn(msg.Text, fields...)
	default:
		n.Logger.Info(msg.Text, fields...)
	}
}
