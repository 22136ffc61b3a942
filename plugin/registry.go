package plugin

import (
	"context"
	"strings"

	"github.com/caasmo/acmerenew/model"
)

// Selection is the tagged result of resolving a plugin factory by name or
// by interactive choice (§9 design note: "null sentinel factories denoting
// cancellation"). Exactly one of its three states holds: Ok (a factory was
// matched), Cancelled (the user backed out of an interactive prompt), or
// Unavailable (no factory matched and there was nothing to prompt with).
type Selection[F any] struct {
	state     selectionState
	factory   F
	reason    string
}

type selectionState int

const (
	selUnavailable selectionState = iota
	selCancelled
	selOk
)

func Ok[F any](f F) Selection[F]              { return Selection[F]{state: selOk, factory: f} }
func Cancelled[F any]() Selection[F]          { return Selection[F]{state: selCancelled} }
func Unavailable[F any](reason string) Selection[F] {
	return Selection[F]{state: selUnavailable, reason: reason}
}

func (s Selection[F]) IsOk() bool          { return s.state == selOk }
func (s Selection[F]) IsCancelled() bool   { return s.state == selCancelled }
func (s Selection[F]) IsUnavailable() bool { return s.state == selUnavailable }
func (s Selection[F]) Factory() F          { return s.factory }
func (s Selection[F]) Reason() string      { return s.reason }

// Registry enumerates the four plugin families and resolves factories by
// name (unattended) or by interactive choice.
type Registry struct {
	targets       map[string]TargetPluginFactory
	validations   map[string]ValidationPluginFactory
	stores        map[string]StorePluginFactory
	installations map[string]InstallationPluginFactory
}

// NewRegistry builds an empty Registry; use the Register* methods to
// populate it.
func NewRegistry() *Registry {
	return &Registry{
		targets:       make(map[string]TargetPluginFactory),
		validations:   make(map[string]ValidationPluginFactory),
		stores:        make(map[string]StorePluginFactory),
		installations: make(map[string]InstallationPluginFactory),
	}
}

func (r *Registry) RegisterTarget(f TargetPluginFactory)             { r.targets[lower(f.Name())] = f }
func (r *Registry) RegisterValidation(f ValidationPluginFactory)     { r.validations[lower(f.Name())] = f }
func (r *Registry) RegisterStore(f StorePluginFactory)               { r.stores[lower(f.Name())] = f }
func (r *Registry) RegisterInstallation(f InstallationPluginFactory) { r.installations[lower(f.Name())] = f }

func lower(s string) string { return strings.ToLower(s) }

// SelectTarget resolves a TargetPluginFactory by name (case-insensitive).
// Interactive callers pass an InputService; unattended callers pass nil and
// get Unavailable on no match, per §4.1.
func (r *Registry) SelectTarget(ctx context.Context, name string, input InputService, level RunLevel) Selection[TargetPluginFactory] {
	if f, ok := r.targets[lower(name)]; ok {
		return Ok(f)
	}
	if level == Interactive && input != nil {
		return chooseFrom(ctx, input, "Select target plugin", r.targets)
	}
	return Unavailable[TargetPluginFactory]("no target plugin could be selected")
}

// SelectValidation resolves a ValidationPluginFactory by name, additionally
// filtering candidates offered interactively to those whose CanValidate
// accepts the target.
func (r *Registry) SelectValidation(ctx context.Context, t model.Target, name string, input InputService, level RunLevel) Selection[ValidationPluginFactory] {
	if f, ok := r.validations[lower(name)]; ok {
		return Ok(f)
	}
	if level == Interactive && input != nil {
		candidates := make(map[string]ValidationPluginFactory)
		for k, f := range r.validations {
			if f.CanValidate(t) {
				candidates[k] = f
			}
		}
		return chooseFrom(ctx, input, "Select validation plugin", candidates)
	}
	return Unavailable[ValidationPluginFactory]("no validation plugin could be selected")
}

// SelectStore resolves a StorePluginFactory by name.
func (r *Registry) SelectStore(ctx context.Context, name string, input InputService, level RunLevel) Selection[StorePluginFactory] {
	if f, ok := r.stores[lower(name)]; ok {
		return Ok(f)
	}
	if level == Interactive && input != nil {
		return chooseFrom(ctx, input, "Select store plugin", r.stores)
	}
	return Unavailable[StorePluginFactory]("no store plugin could be selected")
}

// SelectInstallations resolves an ordered list of InstallationPluginFactory
// by name, silently skipping names that are not registered. ok=false models
// user cancellation (§4.1); an empty result with ok=true means nothing was
// selected. The caller is responsible for appending the always-present null
// installer so a successful selection is never empty.
func (r *Registry) SelectInstallations(ctx context.Context, names []string, input InputService, level RunLevel) ([]InstallationPluginFactory, bool) {
	if len(names) > 0 {
		out := make([]InstallationPluginFactory, 0, len(names))
		for _, name := range names {
			if f, ok := r.installations[lower(name)]; ok {
				out = append(out, f)
			}
		}
		return out, true
	}
	if level == Interactive && input != nil {
		chosen, ok := chooseMultiFrom(ctx, input, "Select installation plugins", r.installations)
		return chosen, ok
	}
	return nil, true
}

func chooseFrom[F any](ctx context.Context, input InputService, prompt string, candidates map[string]F) Selection[F] {
	if len(candidates) == 0 {
		return Unavailable[F]("no candidates available")
	}
	names := make([]string, 0, len(candidates))
	values := make([]F, 0, len(candidates))
	for k, v := range candidates {
		names = append(names, k)
		values = append(values, v)
	}
	idx, ok := input.Choose(ctx, prompt, names)
	if !ok {
		return Cancelled[F]()
	}
	return Ok(values[idx])
}

func chooseMultiFrom[F any](ctx context.Context, input InputService, prompt string, candidates map[string]F) ([]F, bool) {
	names := make([]string, 0, len(candidates))
	values := make([]F, 0, len(candidates))
	for k, v := range candidates {
		names = append(names, k)
		values = append(values, v)
	}
	idx, ok := input.Choose(ctx, prompt, names)
	if !ok {
		return nil, false
	}
	return []F{values[idx]}, true
}
