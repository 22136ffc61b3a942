// Package scope implements the C3 scope factory: per-renewal and
// per-identifier contexts that bind selected plugins and shared services,
// with a guaranteed release point for any resources a plugin prepares
// (§4.3, §5 "prepared challenge artifacts are scoped to the Identifier
// scope").
package scope

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caasmo/acmerenew/acmeclient"
	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/plugin"
)

// Services is the global, read-mostly service container threaded through
// scope construction — the explicit replacement for the "process-wide
// static state" pattern flagged in §9's design notes.
type Services struct {
	Registry *plugin.Registry
	Acme     *acmeclient.Client
	Logger   *slog.Logger
	Input    plugin.InputService
}

// RenewalScope binds the plugins selected for one ScheduledRenewal.
type RenewalScope struct {
	Services *Services
	Renewal  model.ScheduledRenewal

	TargetFactory   plugin.TargetPluginFactory
	Target          plugin.TargetPlugin
	ValidationFactory plugin.ValidationPluginFactory
	Store           plugin.StorePlugin
	Installations   []plugin.InstallationPluginFactory

	Logger *slog.Logger

	closers []func(context.Context) error
}

// New builds a RenewalScope by resolving every plugin family named on the
// renewal's Target/record against the registry, at the given run level.
func New(ctx context.Context, svc *Services, renewal model.ScheduledRenewal, level plugin.RunLevel) (*RenewalScope, error) {
	logger := svc.Logger.With("host", renewal.Target.PrimaryHost)

	opts := plugin.Options{
		Plugin:           renewal.Target.TargetPluginName,
		Validation:       renewal.Target.ValidationPluginName,
		ValidationMode:   renewal.Target.ChallengeType,
		Installation:     renewal.Target.InstallationPluginNames,
		Script:           renewal.ScriptPath,
		ScriptParameters: renewal.ScriptParameters,
		CentralSslStore:  renewal.CentralSslStore,
		CertificateStore: renewal.CertificateStore,
		KeepExisting:     renewal.KeepExisting,
		SSLPort:          renewal.Target.SSLPort,
		SSLIPAddress:     renewal.Target.SSLIPAddress,
		ValidationPort:   renewal.Target.ValidationPort,
	}

	targetSel := svc.Registry.SelectTarget(ctx, renewal.Target.TargetPluginName, svc.Input, level)
	if !targetSel.IsOk() {
		return nil, model.NewKindError(model.PluginUnavailable, nil, "no target plugin could be selected")
	}

	storeName := renewal.CertificateStore
	if storeName == "" {
		storeName = "sqlite"
	}
	storeSel := svc.Registry.SelectStore(ctx, storeName, svc.Input, level)
	if !storeSel.IsOk() {
		return nil, model.NewKindError(model.PluginUnavailable, nil, "no store plugin could be selected")
	}

	installations, ok := svc.Registry.SelectInstallations(ctx, renewal.Target.InstallationPluginNames, svc.Input, level)
	if !ok {
		return nil, model.NewKindError(model.PluginUnavailable, nil, "installation selection was cancelled")
	}
	installations = append(installations, plugin.NewNullInstallationFactory())

	validationSel := svc.Registry.SelectValidation(ctx, renewal.Target, renewal.Target.ValidationPluginName, svc.Input, level)
	if !validationSel.IsOk() {
		return nil, model.NewKindError(model.PluginUnavailable, nil, "no validation plugin could be selected")
	}

	scope := &RenewalScope{
		Services:          svc,
		Renewal:           renewal,
		TargetFactory:     targetSel.Factory(),
		Target:            targetSel.Factory().Instance(),
		ValidationFactory: validationSel.Factory(),
		Store:             storeSel.Factory().Instance(),
		Installations:     installations,
		Logger:            logger,
	}
	_ = opts // retained for future factories that need Options explicitly
	return scope, nil
}

// Close releases every resource registered by nested scopes. The renewal
// driver must defer this immediately after construction.
func (s *RenewalScope) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// IdentifierScope further binds a validation plugin instance specialized
// for one DNS identifier (§4.3).
type IdentifierScope struct {
	parent     *RenewalScope
	Identifier string
	Validation plugin.ValidationPlugin
}

// Identifier builds a nested scope for one DNS identifier within the given
// sub-target, resolving a validation plugin instance bound to it.
func Identifier(ctx context.Context, parent *RenewalScope, subTarget model.Target, identifier string, level plugin.RunLevel) (*IdentifierScope, error) {
	opts := plugin.Options{
		Validation:     parent.Renewal.Target.ValidationPluginName,
		ValidationMode: parent.Renewal.Target.ChallengeType,
		ValidationPort: subTarget.ValidationPort,
	}

	single := model.Target{PrimaryHost: identifier}
	var (
		v   plugin.ValidationPlugin
		err error
	)
	if level == plugin.Interactive {
		v, err = parent.ValidationFactory.Acquire(ctx, single, opts, parent.Services.Input, level)
	} else {
		v, err = parent.ValidationFactory.Default(single, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("identifier scope: failed to acquire validation plugin: %w", err)
	}

	is := &IdentifierScope{parent: parent, Identifier: identifier, Validation: v}
	parent.closers = append(parent.closers, is.Close)
	return is, nil
}

// Close releases the validation plugin's prepared artifact. Safe to call
// more than once.
func (s *IdentifierScope) Close(ctx context.Context) error {
	if s.Validation == nil {
		return nil
	}
	err := s.Validation.Close(ctx)
	s.Validation = nil
	return err
}
