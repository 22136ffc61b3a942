// Package renew implements the C6 renewal driver (§4.6): the per-target
// pipeline that turns a due ScheduledRenewal into an issued, stored, and
// installed certificate (or a classified failure).
package renew

import (
	"context"
	"log/slog"
	"os"

	"github.com/caasmo/acmerenew/authorize"
	"github.com/caasmo/acmerenew/certcache"
	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/plugin"
	"github.com/caasmo/acmerenew/scope"
	"github.com/caasmo/acmerenew/taskscheduler"
)

// Driver runs the eleven-step renewal pipeline for one ScheduledRenewal.
type Driver struct {
	Services      *scope.Services
	Authorize     *authorize.Driver
	Certs         *certcache.Service
	RunLevel      plugin.RunLevel
	TaskScheduler taskscheduler.TaskScheduler
	TaskSchedule  string
}

// New builds a Driver. taskSched may be nil, which disables step 10
// entirely regardless of a renewal's NoTaskScheduler setting.
func New(svc *scope.Services, az *authorize.Driver, certs *certcache.Service, level plugin.RunLevel, taskSched taskscheduler.TaskScheduler) *Driver {
	return &Driver{
		Services:      svc,
		Authorize:     az,
		Certs:         certs,
		RunLevel:      level,
		TaskScheduler: taskSched,
		TaskSchedule:  taskscheduler.DefaultSchedule,
	}
}

// Run executes §4.6's pipeline for one renewal record and returns the
// outcome. Every step converts its own failure into a model.RenewResult and
// returns immediately — no further steps run after a caught error — with
// one exception: the installation loop (step 8) runs every installation
// plugin regardless of an earlier plugin's failure (§8 invariant 6); if any
// of them failed, the run then returns without pruning.
func (d *Driver) Run(ctx context.Context, renewal model.ScheduledRenewal) model.RenewResult {
	renewalScope, err := scope.New(ctx, d.Services, renewal, d.RunLevel)
	if err != nil {
		d.Services.Logger.Error("failed to build renewal scope", "host", renewal.Target.PrimaryHost, "error", err)
		return model.Failure(err.Error())
	}
	defer renewalScope.Close(ctx)

	logger := renewalScope.Logger

	// Step 1: refresh target. A nil return without error means the target
	// no longer exists (§4.6 step 1 / TargetGone).
	refreshed, err := renewalScope.Target.Refresh(ctx, renewal.Target)
	if err != nil {
		logger.Error("failed to refresh target", "error", err)
		return model.Failure("failed to refresh target: " + err.Error())
	}
	if refreshed == nil {
		logger.Warn("target no longer exists, cancelling renewal")
		return model.Failure("target no longer exists")
	}

	// Step 2: split into sub-targets.
	subTargets, err := renewalScope.Target.Split(ctx, *refreshed)
	if err != nil {
		logger.Error("failed to split target", "error", err)
		return model.Failure("failed to split target: " + err.Error())
	}
	if len(subTargets) == 0 {
		return model.Failure("target split produced no sub-targets")
	}

	var finalResult model.RenewResult
	for _, subTarget := range subTargets {
		finalResult = d.runSubTarget(ctx, renewalScope, renewal, subTarget, logger)
		if !finalResult.Success {
			return finalResult
		}
	}

	// Step 10: on a new renewal, not suppressed and not a test run (S5: a
	// failure anywhere above already returned before this point, so the
	// task scheduler is never ensured on install failure), make sure the
	// OS invokes this binary again on its own.
	if renewal.New && !renewal.NoTaskScheduler && !renewal.TestMode && d.TaskScheduler != nil {
		if binary, err := os.Executable(); err != nil {
			logger.Warn("failed to resolve own binary path, skipping task scheduler setup", "error", err)
		} else if err := d.TaskScheduler.Ensure(ctx, binary, d.TaskSchedule); err != nil {
			logger.Warn("failed to ensure OS task scheduler entry", "error", err)
		}
	}

	return finalResult
}

func (d *Driver) runSubTarget(ctx context.Context, renewalScope *scope.RenewalScope, renewal model.ScheduledRenewal, subTarget model.Target, logger *slog.Logger) model.RenewResult {
	hosts := subTarget.GetHosts(false)

	// Step 3: create order.
	order, err := d.Services.Acme.CreateOrder(ctx, hosts)
	if err != nil {
		logger.Error("failed to create order", "hosts", hosts, "error", err)
		return model.Failure("failed to create order: " + err.Error())
	}

	// Step 4: authorize every identifier. The authorization's own Identifier
	// is used rather than indexing hosts by position: RFC 8555 does not
	// guarantee order.AuthorizationURLs is returned in the submitted
	// identifier order.
	for _, authURL := range order.AuthorizationURLs {
		authz, err := d.Services.Acme.GetAuthorizationDetails(ctx, authURL)
		if err != nil {
			logger.Error("failed to fetch authorization", "url", authURL, "error", err)
			return model.Failure("failed to fetch authorization at " + authURL)
		}
		identifier := authz.Identifier
		result := d.Authorize.Authorize(ctx, renewalScope, subTarget, identifier, renewal.TestMode, authz)
		if result.Status != model.StatusValid {
			return model.Failure("authorization failed for " + identifier + ": " + result.Error)
		}
	}

	// Step 5: request certificate (C8, cache + singleflight around finalize).
	cert, err := d.Certs.RequestCertificate(ctx, subTarget, order)
	if err != nil {
		logger.Error("failed to request certificate", "error", err)
		return model.Failure("failed to request certificate: " + err.Error())
	}
	if cert == nil {
		return model.Failure("no certificate was generated")
	}

	// Step 6: test-mode gate — a test run validates the pipeline up to
	// issuance but never stores or installs; it still returns a success.
	if renewal.TestMode {
		logger.Info("test mode renewal completed without storing or installing", "thumbprint", cert.Thumbprint)
		return model.SuccessResult(cert)
	}

	var oldCert *model.CertRecord
	if renewal.LastThumbprint != "" {
		oldCert, _ = renewalScope.Store.FindByThumbprint(ctx, renewal.LastThumbprint)
	}

	// Step 7: look up the new thumbprint in the store before saving (§8
	// invariant 3). A hit means this exact certificate is already held —
	// adopt its store reference rather than writing a duplicate; a miss
	// saves it.
	if found, _ := renewalScope.Store.FindByThumbprint(ctx, cert.Thumbprint); found != nil {
		logger.Debug("certificate already in store", "thumbprint", cert.Thumbprint)
		cert.StoreName = found.StoreName
	} else {
		cert.StoreName = renewalScope.Store.Name()
		if err := renewalScope.Store.Save(ctx, *cert); err != nil {
			logger.Error("failed to store certificate", "error", err)
			return model.Failure("failed to store certificate: " + err.Error())
		}
	}

	// Step 8: install — every plugin runs regardless of an earlier
	// plugin's failure within this loop (§8 invariant 6); only a failure
	// elsewhere in the pipeline short-circuits subsequent steps.
	var installErr error
	for _, factory := range renewalScope.Installations {
		inst, err := factory.Default(renewal, plugin.Options{})
		if err != nil {
			logger.Error("failed to resolve installation plugin", "plugin", factory.Name(), "error", err)
			if installErr == nil {
				installErr = err
			}
			continue
		}
		if err := inst.Install(ctx, *cert, oldCert); err != nil {
			logger.Error("installation plugin failed", "plugin", inst.Name(), "error", err)
			if installErr == nil {
				installErr = err
			}
		}
	}
	if installErr != nil {
		return model.Failure("one or more installation plugins failed: " + installErr.Error())
	}

	// Step 9: prune the previous certificate, unless KeepExisting or the
	// thumbprint is unchanged.
	if !renewal.KeepExistingOrDefault() && oldCert != nil && oldCert.Thumbprint != cert.Thumbprint {
		if err := renewalScope.Store.Delete(ctx, *oldCert); err != nil {
			logger.Warn("failed to prune previous certificate", "thumbprint", oldCert.Thumbprint, "error", err)
		}
	}

	// Step 10 (ensuring the OS task scheduler) runs once per renewal in Run,
	// after every sub-target succeeds, not per sub-target here. Step 11
	// (persisting the result) is the caller's responsibility (C2).
	return model.SuccessResult(cert)
}
