// Package app wires the stores, the request client and the realtime client
// into one running session and drives the terminal view.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"maple-party/internal/config"
	"maple-party/internal/httpclient"
	"maple-party/internal/logging"
	"maple-party/internal/login"
	"maple-party/internal/notify"
	"maple-party/internal/partyapi"
	"maple-party/internal/persist"
	"maple-party/internal/persist/boltdb"
	"maple-party/internal/persist/jsonfile"
	"maple-party/internal/realtime"
	"maple-party/internal/runctx"
	"maple-party/internal/session"
	"maple-party/internal/tokens"
	"maple-party/internal/ui/chat"
)

const (
	jsonStateFile = "state.json"
	boltStateFile = "state.db"

	expiryCheckInterval = time.Minute
	notificationBuffer  = 8
)

type App struct {
	opts   config.Options
	logger *logging.Logger

	local   persist.Backend
	watched *jsonfile.Store
	closers []func() error

	Tokens   *tokens.Store
	Session  *session.Session
	Login    *login.Launcher
	HTTP     *httpclient.Client
	API      *partyapi.Service
	Realtime *realtime.Client
	Notices  *notify.Channel
	Feed     *chat.Feed

	// prompt receives notifications when no chat view is running.
	prompt notify.Notifier

	expiryOnce sync.Once
}

// New opens persisted state and builds every client. Nothing contacts the
// backend until Run.
func New(ctx context.Context, opts config.Options, logger *logging.Logger) (*App, error) {
	return newWithOverrides(ctx, opts, logger, nil, nil)
}

func newWithOverrides(ctx context.Context, opts config.Options, logger *logging.Logger, tune func(*httpclient.Options), open login.Opener) (*App, error) {
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	opts = config.WithDefaults(opts)
	if err := config.Validate(opts); err != nil {
		return nil, err
	}
	endpoints, err := config.BuildEndpoints(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	a := &App{opts: opts, logger: logger.Named("app")}
	if err := a.openLocal(); err != nil {
		return nil, err
	}

	sessionTier := persist.NewMemory()
	a.Tokens, err = tokens.New(ctx, sessionTier, a.local, logger.Named("tokens"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Session, err = session.Open(ctx, sessionTier, a.local)
	if err != nil {
		a.Close()
		return nil, err
	}

	if open == nil {
		open = login.OpenBrowser
	}
	a.Login = login.NewLauncher(opts.LoginURL, open, logger.Named("login"))
	a.Notices = notify.NewChannel(notificationBuffer)
	var notifier notify.Notifier = a.Notices
	if opts.SignOut {
		a.prompt = &notify.Console{Out: os.Stderr}
		notifier = a.prompt
	}

	httpOpts := httpclient.Options{
		Endpoints: endpoints,
		Tokens:    a.Tokens,
		Notifier:  notifier,
		Login:     a.Login,
		Logger:    logger.Named("http"),
	}
	if tune != nil {
		tune(&httpOpts)
	}
	a.HTTP, err = httpclient.New(httpOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.API = partyapi.New(a.HTTP, a.Tokens, a.Session, logger)

	a.Feed = chat.NewFeed()
	dialer := &realtime.Dialer{
		HTTP:         a.HTTP.HTTP(),
		SockJSURL:    endpoints.SockJSURL,
		WebSocketURL: endpoints.WebSocketURL,
		Tokens:       a.Tokens,
		ForcePolling: opts.ForcePolling,
		Logger:       logger.Named("transport"),
	}
	a.Realtime = realtime.New(realtime.Options{
		Connector:     realtime.NewSTOMPConnector(dialer, endpoints.Origin, logger.Named("stomp")),
		Identity:      a.Session.Identity,
		Applications:  a.Session.Applications,
		ActiveParty:   a.Session.ActiveParty,
		Resume:        a.Session.Resume,
		Notifier:      notifier,
		Logger:        logger.Named("realtime"),
		OnStateChange: a.Feed.OnState,
		OnMessage:     a.Feed.OnMessage,
	})

	if opts.Party > 0 {
		if err := a.Session.ActiveParty.Enter(ctx, opts.Party, false); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) openLocal() error {
	if err := os.MkdirAll(a.opts.StateDir, 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrStateDirUnavailable, err)
	}
	switch a.opts.Store {
	case config.StoreBolt:
		store, err := boltdb.Open(filepath.Join(a.opts.StateDir, boltStateFile))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStoreOpen, err)
		}
		a.local = store
		a.closers = append(a.closers, store.Close)
	default:
		store := jsonfile.New(filepath.Join(a.opts.StateDir, jsonStateFile), a.logger.Named("state"))
		a.local = store
		a.watched = store
	}
	a.logger.Debug("persisted state opened",
		logging.Field("store", a.opts.Store),
		logging.Field("dir", a.opts.StateDir),
	)
	return nil
}

// Run starts the background watchers and shows the chat until the user
// quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.watched != nil {
		wg.Go(func() {
			if err := a.watched.Watch(ctx, func(container string) { a.reload(ctx, container) }); err != nil && ctx.Err() == nil {
				a.logger.Warn("state watcher stopped", logging.Field("error", err))
			}
		})
	}
	wg.Go(func() { a.runExpiryWatch(ctx) })
	wg.Go(func() { a.startSession(ctx) })

	err := chat.Run(ctx, chat.Deps{
		Chat:            a.Realtime,
		Party:           a.Session.ActiveParty,
		Feed:            a.Feed,
		Notifications:   a.Notices.Requests(),
		Logger:          a.logger,
		SubscribeNotify: a.Session.Identity.Authenticated(),
	})
	a.Realtime.Disconnect()
	cancel()
	wg.Wait()
	return err
}

// SignOut confirms with the user and ends the stored session without
// starting the chat.
func (a *App) SignOut(ctx context.Context) error {
	if !a.Session.Identity.Authenticated() {
		a.logger.Info("no signed-in user")
		return nil
	}
	prompt := a.prompt
	if prompt == nil {
		prompt = a.Notices
	}
	ok, err := prompt.Confirm(ctx, notify.Message{
		Title: "Sign out",
		Text:  "Sign out of maple-party as " + a.Session.Identity.Name() + "?",
		Kind:  notify.Warning,
	})
	if err != nil || !ok {
		return err
	}
	if err := a.API.Logout(ctx); err != nil {
		return err
	}
	a.logger.Info("signed out")
	return nil
}

// startSession refreshes the profile of a known user or starts sign-in for
// an anonymous one.
func (a *App) startSession(ctx context.Context) {
	if !a.Session.Identity.Authenticated() {
		a.logger.Info("no signed-in user; opening sign-in page")
		if err := a.Login.Open(ctx); err != nil {
			a.logger.Warn("failed to open sign-in page", logging.Field("error", err))
		}
		return
	}
	if first, err := a.Session.Flags.MarkVisited(ctx); err == nil && first {
		a.logger.Info("welcome to maple-party", logging.Field("user", a.Session.Identity.Name()))
	}
	if err := a.API.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("failed to refresh profile", logging.Field("error", err))
	}
}

// reload applies a change another process made to the shared state file.
func (a *App) reload(ctx context.Context, container string) {
	var err error
	if container == tokens.ContainerName {
		err = a.Tokens.Reload(ctx)
	} else {
		err = a.Session.Reload(ctx, container)
	}
	if err != nil {
		a.logger.Warn("failed to reload state", logging.Field("container", container), logging.Field("error", err))
		return
	}
	a.logger.Debug("state reloaded", logging.Field("container", container))
}

// runExpiryWatch warns once when the stored refresh token has expired.
func (a *App) runExpiryWatch(ctx context.Context) {
	for {
		a.checkRefreshExpiry(ctx, time.Now())
		if runctx.Sleep(ctx, expiryCheckInterval) != nil {
			return
		}
	}
}

func (a *App) checkRefreshExpiry(ctx context.Context, now time.Time) bool {
	expiry, ok := a.Tokens.RefreshExpiry()
	if !ok || now.Before(expiry) {
		return false
	}
	a.expiryOnce.Do(func() {
		a.logger.Warn("refresh token expired", logging.Field("expired_at", expiry))
		go func() {
			_, _ = a.Notices.Alert(ctx, notify.Message{
				Title: httpclient.TitleSignIn,
				Text:  "Your session has expired. " + httpclient.MsgSignInRequired,
				Kind:  notify.Warning,
			})
		}()
	})
	return true
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", logging.Field("error", err))
		}
	}
	a.closers = nil
}
