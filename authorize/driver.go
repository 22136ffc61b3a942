// Package authorize implements the C5 authorization driver: the
// per-identifier validation state machine described in §4.5.
package authorize

import (
	"context"
	"time"

	"github.com/caasmo/acmerenew/acmeclient"
	"github.com/caasmo/acmerenew/model"
	"github.com/caasmo/acmerenew/plugin"
	"github.com/caasmo/acmerenew/scope"
)

// Default poll parameters, per §4.5 step 7.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxTries     = 4
)

// Driver drives one identifier's authorization to a terminal state.
type Driver struct {
	Acme         *acmeclient.Client
	PollInterval time.Duration
	MaxTries     int
	RunLevel     plugin.RunLevel

	// sleep is overridable in tests so the poll loop does not actually
	// block for PollInterval*MaxTries.
	sleep func(time.Duration)
}

// New builds a Driver with the §4.5 defaults, filling in zero-valued
// fields.
func New(acme *acmeclient.Client, level plugin.RunLevel) *Driver {
	return &Driver{
		Acme:         acme,
		PollInterval: DefaultPollInterval,
		MaxTries:     DefaultMaxTries,
		RunLevel:     level,
		sleep:        time.Sleep,
	}
}

// Authorize runs the CACHED-CHECK..CLASSIFY state machine for one
// (sub-target, identifier) pair and returns a terminal Challenge (status
// valid or invalid). It never returns a Go error: every failure mode is
// represented as an invalid challenge with a Status/Error to log, per
// §4.5's "any exception ... is caught at the driver boundary".
func (d *Driver) Authorize(ctx context.Context, parent *scope.RenewalScope, subTarget model.Target, identifier string, testMode bool, authz model.Authorization) model.Challenge {
	logger := parent.Logger.With("identifier", identifier, "authz", authz.URL)

	// CACHED-CHECK
	if authz.Status == model.StatusValid && !testMode {
		logger.Debug("authorization already valid, skipping challenge")
		return model.Challenge{Status: model.StatusValid}
	}

	// PLUGIN-RESOLVE
	idScope, err := scope.Identifier(ctx, parent, subTarget, identifier, d.RunLevel)
	if err != nil {
		logger.Error("failed to resolve validation plugin", "error", err)
		return invalid("failed to resolve validation plugin")
	}
	defer idScope.Close(ctx)

	// CHALLENGE-SELECT
	challengeType := parent.ValidationFactory.ChallengeType()
	chlg, found := authz.ChallengeByType(challengeType)
	if !found {
		logger.Error("expected challenge type not available", "type", challengeType)
		return invalid("expected challenge type not available")
	}

	// EARLY-VALID
	if chlg.Status == model.StatusValid {
		return chlg
	}

	// PREPARE
	keyAuth, err := d.Acme.GetChallengeDetails(ctx, chlg)
	if err != nil {
		logger.Error("failed to fetch challenge details", "error", err)
		return invalid("failed to fetch challenge details")
	}
	details := plugin.ChallengeDetails{Challenge: chlg, KeyAuthorization: keyAuth}
	if err := idScope.Validation.PrepareChallenge(ctx, details); err != nil {
		logger.Error("failed to prepare challenge", "error", err)
		return invalid("failed to prepare challenge")
	}

	// SUBMIT
	submitted, err := d.Acme.SubmitChallengeAnswer(ctx, chlg)
	if err != nil {
		logger.Error("failed to submit challenge answer", "error", err)
		return invalid("failed to submit challenge answer")
	}

	// POLL
	current := submitted
	tries := 0
	for current.Status == model.StatusPending && tries < d.MaxTries {
		d.sleep(d.PollInterval)
		current, err = d.Acme.DecodeChallenge(ctx, chlg.URL)
		if err != nil {
			logger.Error("failed to decode challenge", "error", err)
			return invalid("failed to decode challenge")
		}
		tries++
	}
	if current.Status == model.StatusPending {
		logger.Warn("authorization timed out")
		return invalid("authorization timed out")
	}

	// CLASSIFY
	if current.Status == model.StatusValid {
		return current
	}
	logger.Warn("authorization failed", "server_status", current.Status, "server_error", current.Error)
	return current
}

func invalid(msg string) model.Challenge {
	return model.Challenge{Status: model.StatusInvalid, Error: msg}
}
