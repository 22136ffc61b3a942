package plugin

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/caasmo/acmerenew/model"
)

// ScriptInstallationFactory runs an operator-supplied script after
// issuance (§3's ScriptPath/ScriptParameters fields), passing the new
// certificate's thumbprint and then ScriptParameters (as one argument).
type ScriptInstallationFactory struct{}

func (ScriptInstallationFactory) Name() string { return "script" }

func (ScriptInstallationFactory) Default(renewal model.ScheduledRenewal, opts Options) (InstallationPlugin, error) {
	if renewal.ScriptPath == "" {
		return nil, fmt.Errorf("script installation: no script path configured")
	}
	return &scriptInstallation{path: renewal.ScriptPath, params: renewal.ScriptParameters}, nil
}

func (f ScriptInstallationFactory) Acquire(ctx context.Context, renewal model.ScheduledRenewal, input InputService, opts Options, level RunLevel) (InstallationPlugin, error) {
	return f.Default(renewal, opts)
}

func (ScriptInstallationFactory) Instance() InstallationPlugin { return &scriptInstallation{} }

type scriptInstallation struct {
	path   string
	params string
}

func (s *scriptInstallation) Name() string { return "script" }

func (s *scriptInstallation) Install(ctx context.Context, newCert model.CertRecord, oldCert *model.CertRecord) error {
	cmd := exec.CommandContext(ctx, s.path, newCert.Thumbprint, s.params)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("script installation: %s failed: %w: %s", s.path, err, out)
	}
	return nil
}
