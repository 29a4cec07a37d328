// Package persist stores small state containers as JSON objects, split across
// a session tier (gone when the process exits) and a local tier (survives
// restarts). Each container persists an explicit allow-list of fields per
// tier, never its whole state.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

type Tier int

const (
	Session Tier = iota
	Local
)

func (t Tier) String() string {
	switch t {
	case Session:
		return "session"
	case Local:
		return "local"
	default:
		return "unknown"
	}
}

// Fields is one container's persisted document keyed by JSON field name.
type Fields map[string]json.RawMessage

// Backend holds one Fields document per container name. Load returns an
// empty document for containers that were never saved.
type Backend interface {
	Load(ctx context.Context, container string) (Fields, error)
	Save(ctx context.Context, container string, fields Fields) error
}

// Binding routes an allow-list of fields to a backend.
type Binding struct {
	Backend Backend
	Pick    []string
}

type Container struct {
	name     string
	bindings []Binding
}

func NewContainer(name string, bindings ...Binding) *Container {
	if name == "" {
		panic("persist.NewContainer: name must not be empty")
	}
	for _, b := range bindings {
		if b.Backend == nil {
			panic("persist.NewContainer: binding backend must not be nil")
		}
	}
	return &Container{name: name, bindings: bindings}
}

func (c *Container) Name() string {
	return c.name
}

// Save writes the allow-listed fields of state to each bound backend.
func (c *Container) Save(ctx context.Context, state any) error {
	all, err := toFields(state)
	if err != nil {
		return fmt.Errorf("persist %s: %w", c.name, err)
	}
	for _, b := range c.bindings {
		if err := b.Backend.Save(ctx, c.name, pick(all, b.Pick)); err != nil {
			return fmt.Errorf("persist %s: %w", c.name, err)
		}
	}
	return nil
}

// Restore merges the allow-listed fields found in each backend into state.
// Fields absent from storage keep their current value.
func (c *Container) Restore(ctx context.Context, state any) error {
	merged := Fields{}
	for _, b := range c.bindings {
		stored, err := b.Backend.Load(ctx, c.name)
		if err != nil {
			return fmt.Errorf("restore %s: %w", c.name, err)
		}
		for key, value := range pick(stored, b.Pick) {
			merged[key] = value
		}
	}
	if len(merged) == 0 {
		return nil
	}
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("restore %s: %w", c.name, err)
	}
	if err := json.Unmarshal(payload, state); err != nil {
		return fmt.Errorf("restore %s: %w", c.name, err)
	}
	return nil
}

func toFields(state any) (Fields, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	fields := Fields{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("state must encode as a JSON object: %w", err)
	}
	return fields, nil
}

func pick(fields Fields, allow []string) Fields {
	out := Fields{}
	for key, value := range fields {
		if slices.Contains(allow, key) {
			out[key] = value
		}
	}
	return out
}

// Memory is the session tier: it lives exactly as long as the process.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Fields
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]Fields{}}
}

func (m *Memory) Load(_ context.Context, container string) (Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneFields(m.docs[container]), nil
}

func (m *Memory) Save(_ context.Context, container string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[container] = cloneFields(fields)
	return nil
}

func cloneFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for key, value := range fields {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}
