// Package taskscheduler implements the optional OS-level scheduling hook
// (§4.6 step 10 / §6's NoTaskScheduler flag): ensuring the host's own task
// scheduler (cron) invokes this binary periodically, so a renewal still
// runs even if the long-lived C7 scheduler process is not kept alive.
// Grounded on plugin/install_script.go's exec.CommandContext pattern — the
// only place in the teacher/pack corpus that shells out to the OS.
package taskscheduler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TaskScheduler installs or removes a periodic invocation of this binary.
type TaskScheduler interface {
	Ensure(ctx context.Context, binaryPath string, schedule string) error
	Remove(ctx context.Context) error
}

// marker tags the crontab line this package manages, so Remove can find it
// without disturbing any of the user's own entries.
const marker = "# acmerenew-managed-entry"

// DefaultSchedule is the cron expression used when ensuring the managed
// entry: once daily, off-peak.
const DefaultSchedule = "0 3 * * *"

// Cron manages a single crontab line for the current user via the system
// crontab binary.
type Cron struct{}

// NewCron builds a Cron task scheduler.
func NewCron() *Cron { return &Cron{} }

// Ensure installs (or replaces) a crontab line running binaryPath --renew
// on the given cron schedule expression (e.g. "0 3 * * *").
func (c *Cron) Ensure(ctx context.Context, binaryPath string, schedule string) error {
	existing, err := c.currentLines(ctx)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("%s %s --renew %s", schedule, binaryPath, marker)
	lines := filterManaged(existing)
	lines = append(lines, line)

	return c.install(ctx, lines)
}

// Remove drops the managed crontab line, leaving any other entries intact.
func (c *Cron) Remove(ctx context.Context) error {
	existing, err := c.currentLines(ctx)
	if err != nil {
		return err
	}
	return c.install(ctx, filterManaged(existing))
}

func (c *Cron) currentLines(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "crontab", "-l").CombinedOutput()
	if err != nil {
		// An empty/absent crontab exits non-zero; treat as "no entries".
		return nil, nil
	}
	return strings.Split(strings.TrimRight(string(out), "\n"), "\n"), nil
}

func (c *Cron) install(ctx context.Context, lines []string) error {
	content := strings.Join(nonEmpty(lines), "\n")
	if content != "" {
		content += "\n"
	}

	cmd := exec.CommandContext(ctx, "crontab", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("taskscheduler: failed to open crontab stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("taskscheduler: failed to start crontab: %w", err)
	}
	if _, err := stdin.Write([]byte(content)); err != nil {
		stdin.Close()
		return fmt.Errorf("taskscheduler: failed to write crontab input: %w", err)
	}
	stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("taskscheduler: crontab install failed: %w", err)
	}
	return nil
}

func filterManaged(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(l, marker) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
