package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caasmo/acmerenew/model"
)

// HTTP01Factory implements the http-01 "webroot" validation mechanism: it
// drops the challenge response under <webroot>/.well-known/acme-challenge/
// where the target host's web server is expected to serve it.
type HTTP01Factory struct {
	Webroot string
}

func (f HTTP01Factory) Name() string          { return "http-01" }
func (f HTTP01Factory) ChallengeType() string { return "http-01" }

func (f HTTP01Factory) CanValidate(t model.Target) bool { return true }

func (f HTTP01Factory) Default(t model.Target, opts Options) (ValidationPlugin, error) {
	root := f.Webroot
	if root == "" {
		return nil, fmt.Errorf("http-01: no webroot configured")
	}
	return &http01Plugin{webroot: root}, nil
}

func (f HTTP01Factory) Acquire(ctx context.Context, t model.Target, opts Options, input InputService, level RunLevel) (ValidationPlugin, error) {
	return f.Default(t, opts)
}

type http01Plugin struct {
	webroot  string
	filePath string
}

func (p *http01Plugin) PrepareChallenge(ctx context.Context, details ChallengeDetails) error {
	dir := filepath.Join(p.webroot, ".well-known", "acme-challenge")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("http-01: failed to create challenge directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, details.Challenge.Token)
	if err := os.WriteFile(path, []byte(details.KeyAuthorization), 0644); err != nil {
		return fmt.Errorf("http-01: failed to write challenge file %s: %w", path, err)
	}
	p.filePath = path
	return nil
}

func (p *http01Plugin) Close(ctx context.Context) error {
	if p.filePath == "" {
		return nil
	}
	err := os.Remove(p.filePath)
	p.filePath = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("http-01: failed to remove challenge file: %w", err)
	}
	return nil
}
