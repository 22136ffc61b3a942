// Package scheduler implements the C7 scheduler loop (§4.7): a ticking
// driver over the renewal registry that processes due records serially.
// The ticker/context shutdown shape is grounded on job.JobScheduler; unlike
// that scheduler, jobs are never fanned out with an errgroup — §5 requires
// renewal processing to stay single-threaded so one target's failure
// cannot race another's install/prune steps against a shared plugin
// instance.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/notify"
	"github.com/caasmo/acmerenew/registry"
)

// sourceName identifies this package's notifications to a Notifier.
const sourceName = "acmerenew.scheduler"

// Renewer is the C6 renewal driver's contract, as consumed by the
// scheduler.
type Renewer interface {
	Run(ctx context.Context, renewal model.ScheduledRenewal) model.RenewResult
}

// Scheduler ticks over the registry's due set and runs each one through a
// Renewer.
type Scheduler struct {
	Registry *registry.Registry
	Renewer  Renewer
	Notifier notify.Notifier
	Logger   *slog.Logger
	Interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// New builds a Scheduler ticking at interval.
func New(reg *registry.Registry, renewer Renewer, notifier notify.Notifier, logger *slog.Logger, interval time.Duration) *Scheduler {
	if notifier == nil {
		notifier = notify.NewNilNotifier()
	}
	return &Scheduler{
		Registry: reg,
		Renewer:  renewer,
		Notifier: notifier,
		Logger:   logger.With("component", "scheduler"),
		Interval: interval,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs the tick loop in a goroutine until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		defer close(s.done)

		for {
			select {
			case <-ctx.Done():
				s.Logger.Info("scheduler received shutdown signal")
				return
			case <-ticker.C:
				s.RunOnce(ctx, false)
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce processes every due record (or every record, if force) serially,
// per §4.7. A failure on one record is logged and the loop continues to
// the next rather than aborting the run.
func (s *Scheduler) RunOnce(ctx context.Context, force bool) {
	due, err := s.Registry.Due(ctx, s.now(), force)
	if err != nil {
		s.Logger.Error("failed to load due renewals", "error", err)
		return
	}
	if len(due) == 0 {
		s.Logger.Debug("no renewals due")
		return
	}

	s.Logger.Info("processing due renewals", "count", len(due))
	for _, renewal := range due {
		logger := s.Logger.With("host", renewal.Target.PrimaryHost)
		result := s.Renewer.Run(ctx, renewal)

		if err := s.Registry.Save(ctx, renewal, result); err != nil {
			logger.Error("failed to persist renewal outcome", "error", err)
		}

		if !result.Success {
			logger.Warn("renewal failed, will retry on next run", "error", result.ErrorMessage)
			if err := s.Notifier.Send(ctx, notify.Notification{
				Timestamp: s.now(),
				Type:      notify.Alarm,
				Source:    sourceName,
				Message:   "renewal failed for " + renewal.Target.PrimaryHost,
				Fields:    map[string]interface{}{"host": renewal.Target.PrimaryHost, "error": result.ErrorMessage},
			}); err != nil {
				logger.Warn("failed to send renewal failure notification", "error", err)
			}
			continue
		}
		logger.Info("renewal succeeded")
	}
}
