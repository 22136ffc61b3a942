// Package registry implements the C2 renewal registry (§4.2): persisting
// the set of scheduled renewals, locating one by Target identity, and
// computing the due set. Two interchangeable SQLite-backed Store
// implementations are provided (registry/zombiezen, registry/crawshaw),
// mirroring the dual-driver shape the rest of the stack uses for its own
// application database.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/caasmo/acmerenew/model"
)

// RenewalWindow is the default interval added to "now" to compute a
// record's next due date on success (§4.2).
const RenewalWindow = 60 * 24 * time.Hour

// Store is the persistence contract a SQLite backend implements. Registry
// itself contains no SQL — it only enforces the "at most one record per
// Target identity" invariant and the due-date computation, so the
// invariant holds identically regardless of which backend is wired in
// (§8 invariant 11).
type Store interface {
	Find(ctx context.Context, identity string) (*model.ScheduledRenewal, error)
	Upsert(ctx context.Context, r model.ScheduledRenewal) error
	Delete(ctx context.Context, identity string) error
	All(ctx context.Context) ([]model.ScheduledRenewal, error)
}

// Registry is the renewal registry (C2), backed by a Store.
type Registry struct {
	store Store
	now   func() time.Time
}

// New builds a Registry over the given Store.
func New(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Find matches by Target equality (primary host and plugin coordinates),
// per §4.2.
func (r *Registry) Find(ctx context.Context, target model.Target) (*model.ScheduledRenewal, error) {
	rec, err := r.store.Find(ctx, target.Identity())
	if err != nil {
		return nil, fmt.Errorf("registry: find failed: %w", err)
	}
	return rec, nil
}

// Save persists the outcome of one renewal attempt. On success it clears
// the New flag, records LastRun, and advances DueDate by RenewalWindow. On
// failure, the stored record is left pointing at its previous DueDate so
// the scheduler retries it on the next run rather than waiting a full
// window.
func (r *Registry) Save(ctx context.Context, renewal model.ScheduledRenewal, result model.RenewResult) error {
	now := r.now()
	renewal.LastRun = now

	existing, err := r.store.Find(ctx, renewal.Target.Identity())
	if err != nil {
		return fmt.Errorf("registry: save failed to check existing record: %w", err)
	}
	renewal.Updated = existing != nil

	if result.Success {
		renewal.New = false
		renewal.DueDate = now.Add(RenewalWindow)
		if result.Certificate != nil {
			renewal.LastThumbprint = result.Certificate.Thumbprint
		}
	}

	if err := r.store.Upsert(ctx, renewal); err != nil {
		return fmt.Errorf("registry: upsert failed: %w", err)
	}
	return nil
}

// Cancel removes the record matching target, per §4.2/§6 (`--cancel`).
func (r *Registry) Cancel(ctx context.Context, target model.Target) error {
	if err := r.store.Delete(ctx, target.Identity()); err != nil {
		return fmt.Errorf("registry: cancel failed: %w", err)
	}
	return nil
}

// Renewals returns a snapshot of all scheduled records, ordered by primary
// host for determinism across reads within a run.
func (r *Registry) Renewals(ctx context.Context) ([]model.ScheduledRenewal, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list failed: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Target.PrimaryHost < all[j].Target.PrimaryHost
	})
	return all, nil
}

// Due returns the subset of Renewals that are due at the given time,
// unless force is set, in which case every record is returned (§4.7).
func (r *Registry) Due(ctx context.Context, now time.Time, force bool) ([]model.ScheduledRenewal, error) {
	all, err := r.Renewals(ctx)
	if err != nil {
		return nil, err
	}
	if force {
		return all, nil
	}
	due := make([]model.ScheduledRenewal, 0, len(all))
	for _, rec := range all {
		if rec.Due(now) {
			due = append(due, rec)
		}
	}
	return due, nil
}
