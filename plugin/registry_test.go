package plugin

import (
	"context"
	"testing"

	"github.com/caasmo/acmerenew/model"
)

type fakeTargetFactory struct {
	name string
}

func (f fakeTargetFactory) Name() string                 { return f.name }
func (f fakeTargetFactory) Description() string          { return "fake" }
func (f fakeTargetFactory) Default(opts Options) (*model.Target, error) { return nil, nil }
func (f fakeTargetFactory) Acquire(ctx context.Context, opts Options, input InputService, level RunLevel) (*model.Target, error) {
	return nil, nil
}
func (f fakeTargetFactory) Instance() TargetPlugin { return nil }

type fakeInput struct {
	index int
	ok    bool
}

func (f fakeInput) Choose(ctx context.Context, prompt string, options []string) (int, bool) {
	return f.index, f.ok
}

func TestSelectTargetMatchesByNameCaseInsensitively(t *testing.T) {
	r := NewRegistry()
	r.RegisterTarget(fakeTargetFactory{name: "Manual"})

	sel := r.SelectTarget(context.Background(), "MANUAL", nil, Unattended)
	if !sel.IsOk() {
		t.Fatalf("expected a case-insensitive name match to succeed")
	}
	if sel.Factory().Name() != "Manual" {
		t.Fatalf("Factory().Name() = %q, want %q", sel.Factory().Name(), "Manual")
	}
}

func TestSelectTargetUnattendedFailsClosedOnNoMatch(t *testing.T) {
	r := NewRegistry()
	r.RegisterTarget(fakeTargetFactory{name: "manual"})

	sel := r.SelectTarget(context.Background(), "nonexistent", nil, Unattended)
	if !sel.IsUnavailable() {
		t.Fatalf("expected Unavailable for an unattended run with no matching factory")
	}
}

func TestSelectTargetInteractiveFallsBackToChoose(t *testing.T) {
	r := NewRegistry()
	r.RegisterTarget(fakeTargetFactory{name: "manual"})

	sel := r.SelectTarget(context.Background(), "nonexistent", fakeInput{index: 0, ok: true}, Interactive)
	if !sel.IsOk() {
		t.Fatalf("expected interactive selection to succeed via Choose")
	}
}

func TestSelectTargetInteractiveCancelledWhenUserDeclines(t *testing.T) {
	r := NewRegistry()
	r.RegisterTarget(fakeTargetFactory{name: "manual"})

	sel := r.SelectTarget(context.Background(), "nonexistent", fakeInput{ok: false}, Interactive)
	if !sel.IsCancelled() {
		t.Fatalf("expected Cancelled when the input service reports ok=false")
	}
}

func TestSelectInstallationsEmptyNamesUnattendedReturnsEmptyOk(t *testing.T) {
	r := NewRegistry()

	out, ok := r.SelectInstallations(context.Background(), nil, nil, Unattended)
	if !ok {
		t.Fatalf("expected ok=true for an empty, unattended installation selection")
	}
	if len(out) != 0 {
		t.Fatalf("expected no installation factories, got %d", len(out))
	}
}

func TestSelectInstallationsSkipsUnknownNames(t *testing.T) {
	r := NewRegistry()

	out, ok := r.SelectInstallations(context.Background(), []string{"does-not-exist"}, nil, Unattended)
	if !ok {
		t.Fatalf("expected ok=true even when a named factory is not registered")
	}
	if len(out) != 0 {
		t.Fatalf("expected unknown names to be silently skipped, got %d factories", len(out))
	}
}
