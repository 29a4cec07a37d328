// Package jsonfile is the local persisted tier backed by a single JSON
// document. Writers in other processes are serialized with a lock file and
// observed through a filesystem watcher.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"maple-party/internal/logging"
	"maple-party/internal/persist"
)

type document struct {
	Containers map[string]persist.Fields `json:"containers"`
}

type Store struct {
	path   string
	lock   *flock.Flock
	logger *logging.Logger

	mu sync.Mutex
	// seen holds the last serialized form of each container this process
	// read or wrote, so the watcher reports only foreign changes.
	seen map[string][]byte
}

func New(path string, logger *logging.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		seen:   map[string][]byte{},
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context, container string) (persist.Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc document
	err := s.withLock(false, func() error {
		var loadErr error
		doc, loadErr = s.read()
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	fields := doc.Containers[container]
	s.remember(container, fields)
	if fields == nil {
		fields = persist.Fields{}
	}
	return fields, nil
}

func (s *Store) Save(_ context.Context, container string, fields persist.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withLock(true, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		doc.Containers[container] = fields
		if err := s.write(doc); err != nil {
			return err
		}
		s.remember(container, fields)
		return nil
	})
}

// Watch calls onChange with the container name whenever another process
// rewrites that container. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(container string)) error {
	if onChange == nil {
		panic("jsonfile.Store.Watch: onChange must not be nil")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: the document is replaced by rename on every save.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Debug("watching persisted state", logging.Field("path", s.path))

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			for _, name := range s.changedContainers() {
				onChange(name)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("persisted state watcher error", logging.Field("error", watchErr))
		}
	}
}

func (s *Store) changedContainers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc document
	err := s.withLock(false, func() error {
		var loadErr error
		doc, loadErr = s.read()
		return loadErr
	})
	if err != nil {
		s.logger.Warn("failed to reload persisted state", logging.Field("path", s.path), logging.Field("error", err))
		return nil
	}

	var changed []string
	for name, fields := range doc.Containers {
		encoded, _ := json.Marshal(fields)
		if prev, ok := s.seen[name]; ok && bytes.Equal(prev, encoded) {
			continue
		}
		s.seen[name] = encoded
		changed = append(changed, name)
	}
	return changed
}

func (s *Store) remember(container string, fields persist.Fields) {
	encoded, _ := json.Marshal(fields)
	s.seen[container] = encoded
}

func (s *Store) withLock(exclusive bool, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	var err error
	if exclusive {
		err = s.lock.Lock()
	} else {
		err = s.lock.RLock()
	}
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	return fn()
}

func (s *Store) read() (document, error) {
	doc := document{Containers: map[string]persist.Fields{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read state file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse state file: %w", err)
	}
	if doc.Containers == nil {
		doc.Containers = map[string]persist.Fields{}
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
