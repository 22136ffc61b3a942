package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/notify"
	"github.com/caasmo/acmerenew/registry"
)

// fakeStore is a minimal in-memory registry.Store for driving the
// scheduler without either SQLite backend.
type fakeStore struct {
	mu         sync.Mutex
	byIdentity map[string]model.ScheduledRenewal
}

func newFakeStore(records ...model.ScheduledRenewal) *fakeStore {
	s := &fakeStore{byIdentity: make(map[string]model.ScheduledRenewal)}
	for _, r := range records {
		s.byIdentity[r.Target.Identity()] = r
	}
	return s
}

func (s *fakeStore) Find(ctx context.Context, identity string) (*model.ScheduledRenewal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byIdentity[identity]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) Upsert(ctx context.Context, r model.ScheduledRenewal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIdentity[r.Target.Identity()] = r
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byIdentity, identity)
	return nil
}

func (s *fakeStore) All(ctx context.Context) ([]model.ScheduledRenewal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduledRenewal, 0, len(s.byIdentity))
	for _, r := range s.byIdentity {
		out = append(out, r)
	}
	return out, nil
}

// fakeRenewer returns a scripted result for every host it sees, recording
// which hosts it was called with.
type fakeRenewer struct {
	mu       sync.Mutex
	results  map[string]model.RenewResult
	calledOn []string
}

func (f *fakeRenewer) Run(ctx context.Context, renewal model.ScheduledRenewal) model.RenewResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calledOn = append(f.calledOn, renewal.Target.PrimaryHost)
	if result, ok := f.results[renewal.Target.PrimaryHost]; ok {
		return result
	}
	return model.SuccessResult(&model.CertRecord{Thumbprint: "ok"})
}

// fakeNotifier records every notification sent to it.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceProcessesOnlyDueRecords(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	due := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "due.example.com"}, DueDate: now.Add(-time.Hour)}
	future := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "future.example.com"}, DueDate: now.Add(24 * time.Hour)}
	store := newFakeStore(due, future)
	reg := registry.New(store)
	renewer := &fakeRenewer{results: map[string]model.RenewResult{}}

	s := New(reg, renewer, nil, testLogger(), time.Minute)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background(), false)

	if len(renewer.calledOn) != 1 || renewer.calledOn[0] != "due.example.com" {
		t.Fatalf("calledOn = %v, want only due.example.com", renewer.calledOn)
	}
}

func TestRunOnceForceProcessesEveryRecord(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	due := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "due.example.com"}, DueDate: now.Add(-time.Hour)}
	future := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "future.example.com"}, DueDate: now.Add(24 * time.Hour)}
	store := newFakeStore(due, future)
	reg := registry.New(store)
	renewer := &fakeRenewer{results: map[string]model.RenewResult{}}

	s := New(reg, renewer, nil, testLogger(), time.Minute)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background(), true)

	if len(renewer.calledOn) != 2 {
		t.Fatalf("calledOn = %v, want both records processed under force", renewer.calledOn)
	}
}

func TestRunOnceNotifiesOnFailureButNotOnSuccess(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	failing := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "fail.example.com"}, DueDate: now.Add(-time.Hour)}
	succeeding := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "ok.example.com"}, DueDate: now.Add(-time.Hour)}
	store := newFakeStore(failing, succeeding)
	reg := registry.New(store)
	renewer := &fakeRenewer{results: map[string]model.RenewResult{
		"fail.example.com": model.Failure("simulated failure"),
	}}
	notifier := &fakeNotifier{}

	s := New(reg, renewer, notifier, testLogger(), time.Minute)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background(), false)

	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %d notifications, want exactly 1 for the failing host", len(notifier.sent))
	}
	if notifier.sent[0].Fields["host"] != "fail.example.com" {
		t.Fatalf("notification host field = %v, want fail.example.com", notifier.sent[0].Fields["host"])
	}
}

func TestRunOnceContinuesAfterOneFailure(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	first := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "first.example.com"}, DueDate: now.Add(-time.Hour)}
	second := model.ScheduledRenewal{Target: model.Target{PrimaryHost: "second.example.com"}, DueDate: now.Add(-time.Hour)}
	store := newFakeStore(first, second)
	reg := registry.New(store)
	renewer := &fakeRenewer{results: map[string]model.RenewResult{
		"first.example.com": model.Failure("boom"),
	}}

	s := New(reg, renewer, nil, testLogger(), time.Minute)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background(), false)

	if len(renewer.calledOn) != 2 {
		t.Fatalf("calledOn = %v, want both records attempted despite first failing", renewer.calledOn)
	}
}

func TestStartReturnsPromptlyAndStopSucceeds(t *testing.T) {
	store := newFakeStore()
	reg := registry.New(store)
	renewer := &fakeRenewer{results: map[string]model.RenewResult{}}
	s := New(reg, renewer, nil, testLogger(), time.Hour)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return promptly; it must launch its own goroutine")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
