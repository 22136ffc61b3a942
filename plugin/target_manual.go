package plugin

import (
	"context"
	"fmt"

	"github.com/caasmo/acmerenew/model"
)

// ManualTargetFactory builds Targets from hosts supplied directly on the
// CLI/config — the simplest possible TargetPlugin, grounded on the
// ambient "manual" binding every ACME client ships as a fallback when it
// has no web-server or orchestrator integration to enumerate hosts from.
type ManualTargetFactory struct {
	PrimaryHost      string
	AlternativeNames []string
}

func (f ManualTargetFactory) Name() string        { return "manual" }
func (f ManualTargetFactory) Description() string { return "manually specified hosts" }

func (f ManualTargetFactory) Default(opts Options) (*model.Target, error) {
	if f.PrimaryHost == "" {
		return nil, fmt.Errorf("manual target: no primary host configured")
	}
	return &model.Target{
		PrimaryHost:             f.PrimaryHost,
		AlternativeNames:        append([]string(nil), f.AlternativeNames...),
		TargetPluginName:        f.Name(),
		InstallationPluginNames: opts.Installation,
		SSLPort:                 opts.SSLPort,
		SSLIPAddress:            opts.SSLIPAddress,
		ValidationPort:          opts.ValidationPort,
	}, nil
}

func (f ManualTargetFactory) Acquire(ctx context.Context, opts Options, input InputService, level RunLevel) (*model.Target, error) {
	// Manual targets have nothing further to ask interactively beyond the
	// already-supplied hosts; acquire degrades to default.
	return f.Default(opts)
}

func (f ManualTargetFactory) Instance() TargetPlugin { return manualTargetPlugin{} }

// manualTargetPlugin implements TargetPlugin for manually specified hosts:
// refresh is a no-op identity (the host list cannot drift on its own) and
// split never subdivides (a manual target is always requested as one
// order).
type manualTargetPlugin struct{}

func (manualTargetPlugin) Refresh(ctx context.Context, t model.Target) (*model.Target, error) {
	clone := t.Clone()
	return &clone, nil
}

func (manualTargetPlugin) Split(ctx context.Context, t model.Target) ([]model.Target, error) {
	return []model.Target{t.Clone()}, nil
}
