package jsonfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"maple-party/internal/logging"
	"maple-party/internal/persist"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return New(path, logger)
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.json"))

	empty, err := store.Load(ctx, "tokens")
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Load() = %v, want empty", empty)
	}

	if err := store.Save(ctx, "tokens", persist.Fields{"refreshToken": []byte(`"r1"`)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "resume", persist.Fields{"appliedParties": []byte(`[1,2]`)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened := newTestStore(t, store.Path())
	got, err := reopened.Load(ctx, "tokens")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got["refreshToken"]) != `"r1"` {
		t.Fatalf("refreshToken = %s", got["refreshToken"])
	}
	resume, _ := reopened.Load(ctx, "resume")
	if string(resume["appliedParties"]) != `[1,2]` {
		t.Fatalf("appliedParties = %s", resume["appliedParties"])
	}
}

func TestStore_WatchReportsForeignWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "state.json")
	watched := newTestStore(t, path)
	if err := watched.Save(ctx, "tokens", persist.Fields{"refreshToken": []byte(`"old"`)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	changes := make(chan string, 8)
	go func() {
		_ = watched.Watch(ctx, func(name string) { changes <- name })
	}()
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	other := newTestStore(t, path)
	if err := other.Save(ctx, "tokens", persist.Fields{"refreshToken": []byte(`"new"`)}); err != nil {
		t.Fatalf("foreign Save() error = %v", err)
	}

	select {
	case name := <-changes:
		if name != "tokens" {
			t.Fatalf("changed container = %q, want tokens", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("watcher did not report foreign write")
	}
}
