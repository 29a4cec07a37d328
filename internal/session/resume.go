package session

import (
	"context"
	"encoding/json"
	"slices"

	"maple-party/internal/persist"
)

const resumeContainer = "resume"

type resumeState struct {
	Resume          json.RawMessage `json:"resume"`
	AppliedParties  []int64         `json:"appliedParties"`
	RejectedParties []int64         `json:"rejectedParties"`
}

// Resume tracks the user's resume document and the parties applied to or
// rejected from.
type Resume struct {
	store *store[resumeState]
}

func NewResume(ctx context.Context, local persist.Backend) (*Resume, error) {
	s, err := newStore(ctx, persist.NewContainer(resumeContainer,
		persist.Binding{Backend: local, Pick: []string{"resume", "appliedParties", "rejectedParties"}},
	), resumeState{})
	if err != nil {
		return nil, err
	}
	return &Resume{store: s}, nil
}

// Document returns the stored resume, nil when there is none.
func (r *Resume) Document() json.RawMessage {
	var doc json.RawMessage
	r.store.view(func(s *resumeState) {
		if len(s.Resume) > 0 && string(s.Resume) != "null" {
			doc = append(json.RawMessage(nil), s.Resume...)
		}
	})
	return doc
}

func (r *Resume) SetDocument(ctx context.Context, doc json.RawMessage) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		s.Resume = append(json.RawMessage(nil), doc...)
		return true
	})
}

func (r *Resume) Applied() []int64 {
	var out []int64
	r.store.view(func(s *resumeState) { out = slices.Clone(s.AppliedParties) })
	return out
}

func (r *Resume) Rejected() []int64 {
	var out []int64
	r.store.view(func(s *resumeState) { out = slices.Clone(s.RejectedParties) })
	return out
}

func (r *Resume) SetApplied(ctx context.Context, ids []int64) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		s.AppliedParties = slices.Clone(ids)
		return true
	})
}

func (r *Resume) AddApplied(ctx context.Context, id int64) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		if slices.Contains(s.AppliedParties, id) {
			return false
		}
		s.AppliedParties = append(s.AppliedParties, id)
		return true
	})
}

// RemoveApplied drops id from the applied list. Absent ids leave the list
// untouched.
func (r *Resume) RemoveApplied(ctx context.Context, id int64) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		idx := slices.Index(s.AppliedParties, id)
		if idx < 0 {
			return false
		}
		s.AppliedParties = slices.Delete(s.AppliedParties, idx, idx+1)
		return true
	})
}

func (r *Resume) AddRejected(ctx context.Context, id int64) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		s.RejectedParties = append(s.RejectedParties, id)
		return true
	})
}

func (r *Resume) IsApplied(id int64) bool {
	var ok bool
	r.store.view(func(s *resumeState) { ok = slices.Contains(s.AppliedParties, id) })
	return ok
}

// Reset forgets the resume and applied parties. Rejections are kept.
func (r *Resume) Reset(ctx context.Context) error {
	return r.store.mutate(ctx, func(s *resumeState) bool {
		s.Resume = nil
		s.AppliedParties = nil
		return true
	})
}
