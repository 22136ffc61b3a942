package plugin

import (
	"context"
	"fmt"

	"github.com/caasmo/acmerenew/model"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/providers/dns/cloudflare"
)

// DNS01CloudflareFactory implements the dns-01 challenge by driving
// Cloudflare's API to create and remove the TXT record, via lego's own
// Cloudflare DNS provider (the same provider the teacher's job handler
// configures directly on a lego.Client).
type DNS01CloudflareFactory struct {
	APIToken string
}

func (f DNS01CloudflareFactory) Name() string          { return "dns-01-cloudflare" }
func (f DNS01CloudflareFactory) ChallengeType() string { return "dns-01" }

func (f DNS01CloudflareFactory) CanValidate(t model.Target) bool { return true }

func (f DNS01CloudflareFactory) newProvider() (challenge.Provider, error) {
	if f.APIToken == "" {
		return nil, fmt.Errorf("dns-01-cloudflare: missing API token")
	}
	cfg := cloudflare.NewDefaultConfig()
	cfg.AuthToken = f.APIToken
	return cloudflare.NewDNSProviderConfig(cfg)
}

// Default and Acquire are called by the Identifier scope (§4.3) with a
// synthetic single-host Target whose PrimaryHost is the DNS identifier
// being validated, so the plugin instance is already bound to its domain
// before PrepareChallenge runs.
func (f DNS01CloudflareFactory) Default(t model.Target, opts Options) (ValidationPlugin, error) {
	provider, err := f.newProvider()
	if err != nil {
		return nil, err
	}
	return &dns01CloudflarePlugin{provider: provider, domain: t.PrimaryHost}, nil
}

func (f DNS01CloudflareFactory) Acquire(ctx context.Context, t model.Target, opts Options, input InputService, level RunLevel) (ValidationPlugin, error) {
	return f.Default(t, opts)
}

type dns01CloudflarePlugin struct {
	provider challenge.Provider
	domain   string
	token    string
	keyAuth  string
	prepared bool
}

func (p *dns01CloudflarePlugin) PrepareChallenge(ctx context.Context, details ChallengeDetails) error {
	p.token = details.Challenge.Token
	p.keyAuth = details.KeyAuthorization
	if err := p.provider.Present(p.domain, p.token, p.keyAuth); err != nil {
		return fmt.Errorf("dns-01-cloudflare: present failed: %w", err)
	}
	p.prepared = true
	return nil
}

func (p *dns01CloudflarePlugin) Close(ctx context.Context) error {
	if !p.prepared {
		return nil
	}
	err := p.provider.CleanUp(p.domain, p.token, p.keyAuth)
	p.prepared = false
	if err != nil {
		return fmt.Errorf("dns-01-cloudflare: cleanup failed: %w", err)
	}
	return nil
}
