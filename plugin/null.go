package plugin

import (
	"context"

	"github.com/caasmo/acmerenew/model"
)

// nullInstallation is the always-present installation plugin: it performs
// no action and guarantees that a successful installation-plugin selection
// is never empty (§4.1).
type nullInstallation struct{}

func NewNullInstallationFactory() InstallationPluginFactory { return nullInstallationFactory{} }

type nullInstallationFactory struct{}

func (nullInstallationFactory) Name() string { return "null" }

func (nullInstallationFactory) Default(model.ScheduledRenewal, Options) (InstallationPlugin, error) {
	return nullInstallation{}, nil
}

func (nullInstallationFactory) Acquire(context.Context, model.ScheduledRenewal, InputService, Options, RunLevel) (InstallationPlugin, error) {
	return nullInstallation{}, nil
}

func (nullInstallationFactory) Instance() InstallationPlugin { return nullInstallation{} }

func (nullInstallation) Name() string { return "null" }

func (nullInstallation) Install(context.Context, model.CertRecord, *model.CertRecord) error {
	return nil
}
