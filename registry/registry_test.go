package registry

import (
	"context"
	"testing"
	"time"

	"github.com/caasmo/acmerenew/model"
)

// fakeStore is a minimal in-memory Store used to exercise Registry's
// invariants independently of either SQLite backend.
type fakeStore struct {
	byIdentity map[string]model.ScheduledRenewal
}

func newFakeStore() *fakeStore {
	return &fakeStore{byIdentity: make(map[string]model.ScheduledRenewal)}
}

func (s *fakeStore) Find(ctx context.Context, identity string) (*model.ScheduledRenewal, error) {
	rec, ok := s.byIdentity[identity]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) Upsert(ctx context.Context, r model.ScheduledRenewal) error {
	s.byIdentity[r.Target.Identity()] = r
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, identity string) error {
	delete(s.byIdentity, identity)
	return nil
}

func (s *fakeStore) All(ctx context.Context) ([]model.ScheduledRenewal, error) {
	out := make([]model.ScheduledRenewal, 0, len(s.byIdentity))
	for _, rec := range s.byIdentity {
		out = append(out, rec)
	}
	return out, nil
}

func newRegistryAt(t time.Time) (*Registry, *fakeStore) {
	store := newFakeStore()
	r := &Registry{store: store, now: func() time.Time { return t }}
	return r, store
}

func TestSavePersistsAtMostOneRecordPerIdentity(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, store := newRegistryAt(start)
	ctx := context.Background()
	target := model.Target{PrimaryHost: "example.com", TargetPluginName: "manual"}

	if err := r.Save(ctx, model.ScheduledRenewal{Target: target, New: true}, model.RenewResult{Success: true}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := r.Save(ctx, model.ScheduledRenewal{Target: target, New: true}, model.RenewResult{Success: true}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one record for repeated saves of the same identity, got %d", len(all))
	}
}

func TestSaveOnSuccessAdvancesDueDateAndClearsNew(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, _ := newRegistryAt(start)
	ctx := context.Background()
	target := model.Target{PrimaryHost: "example.com", TargetPluginName: "manual"}

	if err := r.Save(ctx, model.ScheduledRenewal{Target: target, New: true}, model.RenewResult{
		Success:     true,
		Certificate: &model.CertRecord{Thumbprint: "abc123"},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := r.Find(ctx, target)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record to exist")
	}
	if rec.New {
		t.Fatalf("expected New to be cleared on success")
	}
	wantDue := start.Add(RenewalWindow)
	if !rec.DueDate.Equal(wantDue) {
		t.Fatalf("DueDate = %v, want %v", rec.DueDate, wantDue)
	}
	if rec.LastThumbprint != "abc123" {
		t.Fatalf("LastThumbprint = %q, want %q", rec.LastThumbprint, "abc123")
	}
}

func TestSaveOnFailureLeavesDueDateUnchanged(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, _ := newRegistryAt(start)
	ctx := context.Background()
	target := model.Target{PrimaryHost: "example.com", TargetPluginName: "manual"}
	originalDue := start.Add(24 * time.Hour)

	if err := r.Save(ctx, model.ScheduledRenewal{Target: target, DueDate: originalDue}, model.RenewResult{Success: false, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := r.Find(ctx, target)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !rec.DueDate.Equal(originalDue) {
		t.Fatalf("DueDate = %v, want unchanged %v after failed save", rec.DueDate, originalDue)
	}
}

func TestCancelRemovesMatchingRecord(t *testing.T) {
	r, store := newRegistryAt(time.Now())
	ctx := context.Background()
	target := model.Target{PrimaryHost: "example.com", TargetPluginName: "manual"}

	if err := store.Upsert(ctx, model.ScheduledRenewal{Target: target}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	if err := r.Cancel(ctx, target); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rec, err := r.Find(ctx, target)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected record to be gone after cancel")
	}
}

func TestDueFiltersByDueDateUnlessForced(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, store := newRegistryAt(now)
	ctx := context.Background()

	due := model.Target{PrimaryHost: "due.example.com", TargetPluginName: "manual"}
	notDue := model.Target{PrimaryHost: "future.example.com", TargetPluginName: "manual"}

	if err := store.Upsert(ctx, model.ScheduledRenewal{Target: due, DueDate: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed due: %v", err)
	}
	if err := store.Upsert(ctx, model.ScheduledRenewal{Target: notDue, DueDate: now.Add(24 * time.Hour)}); err != nil {
		t.Fatalf("seed not due: %v", err)
	}

	gotDue, err := r.Due(ctx, now, false)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(gotDue) != 1 || gotDue[0].Target.PrimaryHost != due.PrimaryHost {
		t.Fatalf("Due(force=false) = %+v, want only %q", gotDue, due.PrimaryHost)
	}

	gotForced, err := r.Due(ctx, now, true)
	if err != nil {
		t.Fatalf("Due(force=true): %v", err)
	}
	if len(gotForced) != 2 {
		t.Fatalf("Due(force=true) returned %d records, want 2", len(gotForced))
	}
}
