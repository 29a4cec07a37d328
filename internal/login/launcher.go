// Package login starts the out-of-band Discord authorization flow in the
// user's browser.
package login

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"maple-party/internal/logging"
)

const doubleOpenWindow = 2 * time.Second

// Opener opens url outside this process.
type Opener func(ctx context.Context, url string) error

type Launcher struct {
	url    string
	open   Opener
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	openedAt time.Time
}

func NewLauncher(url string, open Opener, logger *logging.Logger) *Launcher {
	if logger == nil {
		panic("login.NewLauncher: logger must not be nil")
	}
	if open == nil {
		open = OpenBrowser
	}
	return &Launcher{url: url, open: open, logger: logger, now: time.Now}
}

// Open launches the authorization page. A second call within two seconds of
// the last launch is ignored so a double click opens one window.
func (l *Launcher) Open(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	if !l.openedAt.IsZero() && now.Sub(l.openedAt) < doubleOpenWindow {
		l.mu.Unlock()
		l.logger.Debug("ignoring repeated login launch")
		return nil
	}
	l.openedAt = now
	l.mu.Unlock()

	l.logger.Info("opening sign-in page", logging.Field("url", l.url))
	if err := l.open(ctx, l.url); err != nil {
		l.logger.Warn("failed to open sign-in page", logging.Field("error", err))
		return fmt.Errorf("open sign-in page: %w", err)
	}
	return nil
}

// OpenBrowser hands url to the platform's default URL handler.
func OpenBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
