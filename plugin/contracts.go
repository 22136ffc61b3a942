// Package plugin defines the four plugin families the renewal engine
// consumes (target, validation, store, installation) and the registry that
// enumerates and resolves their factories, per §4.1/§6 of the spec.
//
// The concrete implementations shipped alongside the contracts (manual
// target, http-01 webroot, dns-01 Cloudflare, sqlite/pemfile store, script
// installer) are defaults a small deployment can run unattended; larger
// deployments are expected to register their own factories with the same
// interfaces.
package plugin

import (
	"context"

	"github.com/caasmo/acmerenew/model"
)

// RunLevel selects how the registry resolves an ambiguous or missing
// selection: Unattended fails closed, Interactive asks the input service.
type RunLevel int

const (
	Unattended RunLevel = iota
	Interactive
)

// InputService is the narrow contract onto the interactive menu mentioned
// in §1's out-of-scope list: the core only ever asks it to choose among a
// list of named options.
type InputService interface {
	// Choose presents prompt and the given option names and returns the
	// index chosen, or ok=false if the user cancelled.
	Choose(ctx context.Context, prompt string, options []string) (index int, ok bool)
}

// Options is the narrow slice of CLI/config fields (§6) plugins need to
// construct a default or acquire a target/validation/installation
// instance. It is intentionally a grab-bag, mirroring the option-binding
// surface described as "consumed, not defined here" in §6.
type Options struct {
	Plugin           string
	Validation       string
	ValidationMode   string
	Installation     []string
	Script           string
	ScriptParameters string
	CentralSslStore  string
	CertificateStore string
	KeepExisting     *bool
	SSLPort          int
	SSLIPAddress     string
	ValidationPort   int
}

// TargetPlugin describes how to discover, refresh and split a certificate
// target (§6).
type TargetPlugin interface {
	// Refresh re-derives the Target from its live source (e.g. re-reading
	// a web-server binding list). A nil return models "target no longer
	// exists" (§4.6 step 1 / TargetGone).
	Refresh(ctx context.Context, t model.Target) (*model.Target, error)

	// Split divides a Target into one or more sub-targets whose combined
	// hosts equal the Target's own identifier set (§3, §8 invariant 1).
	Split(ctx context.Context, t model.Target) ([]model.Target, error)
}

// TargetPluginFactory names and constructs TargetPlugin instances.
type TargetPluginFactory interface {
	Name() string
	Description() string

	Default(opts Options) (*model.Target, error)
	Acquire(ctx context.Context, opts Options, input InputService, level RunLevel) (*model.Target, error)

	Instance() TargetPlugin
}

// ChallengeDetails is the opaque object the CA hands back (via
// get_challenge_details) that a validation plugin needs to prepare its
// proof — token plus key authorization for http-01, zone/record
// information for dns-01, etc.
type ChallengeDetails struct {
	Challenge model.Challenge
	// KeyAuthorization is duplicated here (alongside Challenge) because
	// some validation plugins derive their own record value from it
	// (e.g. DNS-01's base64url(SHA-256(keyAuth))).
	KeyAuthorization string
}

// ValidationPlugin prepares the proof for one identifier's challenge. It is
// scoped to a single Identifier scope (§4.3) and must release any prepared
// artifact (file, DNS record) when that scope closes.
type ValidationPlugin interface {
	PrepareChallenge(ctx context.Context, details ChallengeDetails) error

	// Close releases resources prepared by PrepareChallenge. Called
	// exactly once, by the owning Identifier scope's Close.
	Close(ctx context.Context) error
}

// ValidationPluginFactory names a validation mechanism, the challenge type
// it answers, and whether it can handle a given target.
type ValidationPluginFactory interface {
	Name() string
	ChallengeType() string
	CanValidate(t model.Target) bool

	Default(t model.Target, opts Options) (ValidationPlugin, error)
	Acquire(ctx context.Context, t model.Target, opts Options, input InputService, level RunLevel) (ValidationPlugin, error)
}

// StorePlugin persists and retrieves issued certificates by thumbprint
// (§6).
type StorePlugin interface {
	Name() string
	FindByThumbprint(ctx context.Context, thumbprint string) (*model.CertRecord, error)
	Save(ctx context.Context, cert model.CertRecord) error
	Delete(ctx context.Context, cert model.CertRecord) error
}

// StorePluginFactory constructs StorePlugin instances.
type StorePluginFactory interface {
	Name() string
	Description() string
	Instance() StorePlugin
}

// InstallationPlugin installs a newly issued certificate, optionally given
// the certificate it replaces.
type InstallationPlugin interface {
	Name() string
	Install(ctx context.Context, newCert model.CertRecord, oldCert *model.CertRecord) error
}

// InstallationPluginFactory names and constructs InstallationPlugin
// instances.
type InstallationPluginFactory interface {
	Name() string

	Default(renewal model.ScheduledRenewal, opts Options) (InstallationPlugin, error)
	Acquire(ctx context.Context, renewal model.ScheduledRenewal, input InputService, opts Options, level RunLevel) (InstallationPlugin, error)

	Instance() InstallationPlugin
}
