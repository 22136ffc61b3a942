package zombiezen

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caasmo/acmerenew/model"
)

const timeLayout = time.RFC3339

func parseTimes(lastRun, dueDate string, r *model.ScheduledRenewal) error {
	if lastRun != "" {
		t, err := time.Parse(timeLayout, lastRun)
		if err != nil {
			return fmt.Errorf("registry/zombiezen: failed to parse last_run: %w", err)
		}
		r.LastRun = t
	}
	if dueDate != "" {
		t, err := time.Parse(timeLayout, dueDate)
		if err != nil {
			return fmt.Errorf("registry/zombiezen: failed to parse due_date: %w", err)
		}
		r.DueDate = t
	}
	return nil
}

func toArgs(r model.ScheduledRenewal, altNames, installs json.RawMessage) []interface{} {
	var keepExisting interface{}
	if r.KeepExisting != nil {
		keepExisting = *r.KeepExisting
	}
	return []interface{}{
		r.Target.Identity(),
		r.Target.PrimaryHost,
		string(altNames),
		r.Target.TargetPluginName,
		r.Target.ValidationPluginName,
		r.Target.ChallengeType,
		string(installs),
		r.Target.SSLPort,
		r.Target.SSLIPAddress,
		r.Target.ValidationPort,
		formatTime(r.LastRun),
		formatTime(r.DueDate),
		r.New,
		r.Updated,
		r.TestMode,
		r.Warmup,
		r.ScriptPath,
		r.ScriptParameters,
		r.CentralSslStore,
		r.CertificateStore,
		keepExisting,
		r.LastThumbprint,
		r.NoTaskScheduler,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
