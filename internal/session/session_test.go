package session

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"maple-party/internal/persist"
)

func openTest(t *testing.T, sessionTier, localTier persist.Backend) *Session {
	t.Helper()
	s, err := Open(context.Background(), sessionTier, localTier)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestIdentitySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	local := persist.NewMemory()
	s := openTest(t, persist.NewMemory(), local)

	if s.Identity.Authenticated() || s.Identity.UserID() != "" {
		t.Fatalf("fresh identity should be anonymous")
	}
	if err := s.Identity.SignIn(ctx, "maple", 9007199254740993); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	restarted := openTest(t, persist.NewMemory(), local)
	if !restarted.Identity.Authenticated() {
		t.Fatalf("identity should survive a restart")
	}
	if got := restarted.Identity.UserID(); got != "9007199254740993" {
		t.Fatalf("UserID() = %q", got)
	}
	if got := restarted.Identity.Name(); got != "maple" {
		t.Fatalf("Name() = %q", got)
	}

	if err := restarted.Identity.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if restarted.Identity.Authenticated() || restarted.Identity.UserID() != "" {
		t.Fatalf("identity should be cleared after SignOut")
	}
}

func TestResumeAppliedList(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, persist.NewMemory(), persist.NewMemory())
	r := s.Resume

	for _, id := range []int64{3, 5, 3} {
		if err := r.AddApplied(ctx, id); err != nil {
			t.Fatalf("AddApplied(%d) error = %v", id, err)
		}
	}
	if got := r.Applied(); !slices.Equal(got, []int64{3, 5}) {
		t.Fatalf("Applied() = %v, want [3 5]", got)
	}
	if !r.IsApplied(5) || r.IsApplied(7) {
		t.Fatalf("IsApplied mismatch")
	}

	if err := r.RemoveApplied(ctx, 7); err != nil {
		t.Fatalf("RemoveApplied(absent) error = %v", err)
	}
	if got := r.Applied(); !slices.Equal(got, []int64{3, 5}) {
		t.Fatalf("removing an absent id changed the list: %v", got)
	}
	if err := r.RemoveApplied(ctx, 3); err != nil {
		t.Fatalf("RemoveApplied() error = %v", err)
	}
	if err := r.AddRejected(ctx, 3); err != nil {
		t.Fatalf("AddRejected() error = %v", err)
	}
	if got := r.Applied(); !slices.Equal(got, []int64{5}) {
		t.Fatalf("Applied() = %v, want [5]", got)
	}

	if err := r.SetDocument(ctx, json.RawMessage(`{"job":"bishop"}`)); err != nil {
		t.Fatalf("SetDocument() error = %v", err)
	}
	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if r.Document() != nil || len(r.Applied()) != 0 {
		t.Fatalf("Reset should clear resume and applied parties")
	}
	if got := r.Rejected(); !slices.Equal(got, []int64{3}) {
		t.Fatalf("Reset should keep rejections, got %v", got)
	}
}

func TestResumeApplyAndRejectLeavesBothListsPersisted(t *testing.T) {
	ctx := context.Background()
	local := persist.NewMemory()
	s := openTest(t, persist.NewMemory(), local)
	if err := s.Resume.SetApplied(ctx, []int64{1, 2}); err != nil {
		t.Fatalf("SetApplied() error = %v", err)
	}
	if err := s.Resume.RemoveApplied(ctx, 1); err != nil {
		t.Fatalf("RemoveApplied() error = %v", err)
	}
	if err := s.Resume.AddRejected(ctx, 1); err != nil {
		t.Fatalf("AddRejected() error = %v", err)
	}

	fields, err := local.Load(ctx, resumeContainer)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(fields["appliedParties"]) != "[2]" || string(fields["rejectedParties"]) != "[1]" {
		t.Fatalf("persisted fields = %s / %s", fields["appliedParties"], fields["rejectedParties"])
	}
}

func TestApplications(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, persist.NewMemory(), persist.NewMemory())
	a := s.Applications

	if err := a.AddApplication(ctx, []byte(`{"id":4,"status":"WAITING","nickname":"x"}`)); err != nil {
		t.Fatalf("AddApplication() error = %v", err)
	}
	if err := a.AddApplication(ctx, []byte(`not json`)); err == nil {
		t.Fatalf("AddApplication should reject invalid JSON")
	}
	list := a.List()
	if len(list) != 1 || list[0].ID != 4 || list[0].Status != "WAITING" {
		t.Fatalf("List() = %+v", list)
	}
	if string(list[0].Raw) != `{"id":4,"status":"WAITING","nickname":"x"}` {
		t.Fatalf("Raw = %s", list[0].Raw)
	}
	if err := a.Clean(ctx); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(a.List()) != 0 {
		t.Fatalf("Clean should empty the list")
	}
}

func TestActiveParty(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, persist.NewMemory(), persist.NewMemory())
	p := s.ActiveParty

	if _, ok := p.PartyRecruitID(); ok {
		t.Fatalf("fresh store should have no active party")
	}
	if err := p.Enter(ctx, 12, true); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	if id, ok := p.PartyRecruitID(); !ok || id != 12 || !p.IsMine() {
		t.Fatalf("PartyRecruitID() = %d, %v", id, ok)
	}
	if err := p.Leave(ctx); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if _, ok := p.PartyRecruitID(); ok {
		t.Fatalf("Leave should clear the active party")
	}
}

func TestFlagsTiers(t *testing.T) {
	ctx := context.Background()
	local := persist.NewMemory()
	s := openTest(t, persist.NewMemory(), local)

	first, err := s.Flags.MarkVisited(ctx)
	if err != nil || !first {
		t.Fatalf("MarkVisited() = %v, %v; want first visit", first, err)
	}
	if err := s.Flags.ReadTerms(ctx); err != nil {
		t.Fatalf("ReadTerms() error = %v", err)
	}
	if err := s.Flags.SetActiveParty(ctx, true); err != nil {
		t.Fatalf("SetActiveParty() error = %v", err)
	}
	restarted, err := s.Flags.CheckRestart(ctx)
	if err != nil || restarted {
		t.Fatalf("CheckRestart() = %v, %v", restarted, err)
	}

	// A new process keeps the local tier and starts with an empty session tier.
	next := openTest(t, persist.NewMemory(), local)
	if !next.Flags.TermsRead() {
		t.Fatalf("terms flag should survive a restart")
	}
	if next.Flags.HasActiveParty() {
		t.Fatalf("session flag should not survive a restart")
	}
	if first, _ := next.Flags.MarkVisited(ctx); first {
		t.Fatalf("second MarkVisited should not be a first visit")
	}
	if restarted, _ := next.Flags.CheckRestart(ctx); !restarted {
		t.Fatalf("CheckRestart should detect the earlier run")
	}
}

func TestReloadPicksUpForeignWrite(t *testing.T) {
	ctx := context.Background()
	local := persist.NewMemory()
	s := openTest(t, persist.NewMemory(), local)
	other := openTest(t, persist.NewMemory(), local)

	if err := other.Resume.AddApplied(ctx, 8); err != nil {
		t.Fatalf("AddApplied() error = %v", err)
	}
	if s.Resume.IsApplied(8) {
		t.Fatalf("write should not be visible before Reload")
	}
	if err := s.Reload(ctx, "resume"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !s.Resume.IsApplied(8) {
		t.Fatalf("Reload should pick up the foreign write")
	}
	if err := s.Reload(ctx, "unknown"); err != nil {
		t.Fatalf("Reload(unknown) error = %v", err)
	}
}
