package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"maple-party/internal/app"
	"maple-party/internal/config"
	"maple-party/internal/logging"
	"maple-party/internal/notify"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if saved, loadErr := config.LoadSettings(); loadErr == nil {
		opts = config.MergeOptionsWithSettings(opts, saved)
	}
	opts = config.WithDefaults(opts)
	if err := config.Validate(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var lock *instanceLock
	if needsInstanceLock(opts) {
		var lockedByOther bool
		var lockErr error
		lock, lockedByOther, lockErr = acquireInstanceLock(opts.StateDir)
		if lockErr != nil {
			fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", lockErr)
			os.Exit(2)
		}
		if lockedByOther {
			console := &notify.Console{Out: os.Stderr}
			_, _ = console.Alert(rootCtx, notify.Message{
				Title: "Already running",
				Text:  "maple-party is already running for " + opts.StateDir,
				Kind:  notify.Warning,
			})
			os.Exit(1)
		}
	}

	code := run(rootCtx, opts)
	_ = lock.Release()
	stopSignals()
	os.Exit(code)
}

// needsInstanceLock reports whether opts start the chat. A --sign-out run
// may share the state directory with a running chat, which picks the change
// up through its state watcher.
func needsInstanceLock(opts config.Options) bool {
	return !opts.SignOut
}

func run(ctx context.Context, opts config.Options) int {
	logger := logging.New(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()
	if err := logger.EnableFilePersistence(0); err != nil {
		logger.Warn("failed to enable file log persistence", logging.Field("error", err))
	}
	logger.Info("starting maple-party", logging.Field("version", BuildVersion))

	a, err := app.New(ctx, opts, logger)
	if err != nil {
		logger.Error("startup failed", logging.Field("error", err))
		return 1
	}
	defer a.Close()

	if err := config.SaveSettings(config.SettingsFromOptions(opts)); err != nil {
		logger.Warn("failed to save settings", logging.Field("error", err))
	}

	if opts.SignOut {
		if err := a.SignOut(ctx); err != nil {
			logger.Error("sign out failed", logging.Field("error", err))
			return 1
		}
		return 0
	}

	// The chat view owns the terminal from here on.
	logger.SetTerminalOutputEnabled(false)
	runErr := a.Run(ctx)
	logger.SetTerminalOutputEnabled(true)
	if runErr != nil {
		logger.Error("maple-party stopped with error", logging.Field("error", runErr))
		return 1
	}
	return 0
}
