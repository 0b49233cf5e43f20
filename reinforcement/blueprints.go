package reinforcement

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"mariorl/game"
)

// Environment is what training workers step. Wrappers decorate it.
type Environment interface {
	Reset() game.Observation
	Step(game.Action) (game.Observation, float64, bool)
}

// BlueprintKind distinguishes environment wrappers from episode callbacks.
type BlueprintKind string

const (
	KindWrapper  BlueprintKind = "wrapper"
	KindCallback BlueprintKind = "callback"
)

// WrapperFactory decorates an environment per the training config.
type WrapperFactory func(Environment, *TrainingConfig) Environment

// Callback observes each processed episode on the estimator goroutine; it
// must complete quickly.
type Callback interface {
	OnEpisode(EpisodeStats)
}

// CallbackFactory builds a callback per the training config.
type CallbackFactory func(*TrainingConfig, *log.Logger) Callback

// EpisodeStats summarizes one completed episode for callbacks and the
// stats feed.
type EpisodeStats struct {
	Episode int
	Steps   int
	Return  float64
}

// Blueprint describes one registerable training component. Exactly one of
// Wrapper or Callback is set, per Kind. Required blueprints are always
// enabled; others are enabled by name in the training config.
type Blueprint struct {
	Name        string
	Kind        BlueprintKind
	Required    bool
	Description string
	Wrapper     WrapperFactory
	Callback    CallbackFactory
}

// Registry holds the known blueprints. Registration is explicit and happens
// at startup, so the enabled set is inspectable and misconfigured names
// fail fast instead of silently no-opping.
type Registry struct {
	mu         sync.RWMutex
	blueprints map[string]Blueprint
}

func NewRegistry() *Registry {
	return &Registry{blueprints: map[string]Blueprint{}}
}

// Register adds a blueprint; duplicate names and kind/factory mismatches
// are rejected.
func (r *Registry) Register(bp Blueprint) error {
	switch bp.Kind {
	case KindWrapper:
		if bp.Wrapper == nil {
			return fmt.Errorf("register blueprint %q: wrapper kind requires a wrapper factory", bp.Name)
		}
	case KindCallback:
		if bp.Callback == nil {
			return fmt.Errorf("register blueprint %q: callback kind requires a callback factory", bp.Name)
		}
	default:
		return fmt.Errorf("register blueprint %q: unknown kind %q", bp.Name, bp.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.blueprints[bp.Name]; exists {
		return fmt.Errorf("register blueprint %q: already registered", bp.Name)
	}
	r.blueprints[bp.Name] = bp
	return nil
}

// Names lists registered blueprints, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.blueprints))
	for name := range r.blueprints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled resolves the blueprints active for a training session: every
// required blueprint plus those the config names. Unknown names are an
// error, not a warning.
func (r *Registry) Enabled(cfg *TrainingConfig) ([]Blueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requested := map[string]bool{}
	for _, name := range cfg.Wrappers {
		requested[name] = true
	}
	for _, name := range cfg.Callbacks {
		requested[name] = true
	}

	var enabled []Blueprint
	for _, name := range r.sortedNamesLocked() {
		bp := r.blueprints[name]
		if bp.Required || requested[name] {
			enabled = append(enabled, bp)
			delete(requested, name)
		}
	}
	for name := range requested {
		return nil, fmt.Errorf("enable blueprints: %q is not registered", name)
	}
	return enabled, nil
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.blueprints))
	for name := range r.blueprints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinRegistry returns a registry preloaded with the stock wrappers and
// callbacks.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	// Stock blueprints cannot collide; any error here is a programming bug.
	for _, bp := range []Blueprint{
		{
			Name:        "step_limit",
			Kind:        KindWrapper,
			Required:    true,
			Description: "ends episodes at the configured step cap",
			Wrapper:     newStepLimitWrapper,
		},
		{
			Name:        "reward_scale",
			Kind:        KindWrapper,
			Description: "scales rewards by the rewardScale hyperparameter",
			Wrapper:     newRewardScaleWrapper,
		},
		{
			Name:        "episode_logger",
			Kind:        KindCallback,
			Description: "logs aggregate episode stats periodically",
			Callback:    newEpisodeLogger,
		},
	} {
		if err := r.Register(bp); err != nil {
			panic(err)
		}
	}
	return r
}

// stepLimitEnv truncates episodes at a step cap so a wandering policy
// cannot wedge a worker forever.
type stepLimitEnv struct {
	inner Environment
	limit int
	steps int
}

func newStepLimitWrapper(inner Environment, cfg *TrainingConfig) Environment {
	limit := cfg.MaxEpisodeSteps
	if limit <= 0 {
		limit = 1000
	}
	return &stepLimitEnv{inner: inner, limit: limit}
}

func (e *stepLimitEnv) Reset() game.Observation {
	e.steps = 0
	return e.inner.Reset()
}

func (e *stepLimitEnv) Step(a game.Action) (game.Observation, float64, bool) {
	obs, reward, done := e.inner.Step(a)
	e.steps++
	if e.steps >= e.limit {
		done = true
	}
	return obs, reward, done
}

// rewardScaleEnv multiplies rewards by a constant factor.
type rewardScaleEnv struct {
	inner Environment
	scale float64
}

func newRewardScaleWrapper(inner Environment, cfg *TrainingConfig) Environment {
	return &rewardScaleEnv{
		inner: inner,
		scale: cfg.GetHyperParamOrDefault("rewardScale", 1.0),
	}
}

func (e *rewardScaleEnv) Reset() game.Observation {
	return e.inner.Reset()
}

func (e *rewardScaleEnv) Step(a game.Action) (game.Observation, float64, bool) {
	obs, reward, done := e.inner.Step(a)
	return obs, reward * e.scale, done
}

// episodeLogger logs a windowed mean return every logInterval episodes.
type episodeLogger struct {
	log      *log.Logger
	interval int
	count    int
	sum      float64
}

func newEpisodeLogger(cfg *TrainingConfig, logger *log.Logger) Callback {
	interval := int(cfg.GetHyperParamOrDefault("logInterval", 100))
	if interval <= 0 {
		interval = 100
	}
	return &episodeLogger{log: logger, interval: interval}
}

func (el *episodeLogger) OnEpisode(stats EpisodeStats) {
	el.count++
	el.sum += stats.Return
	if el.count%el.interval == 0 {
		if el.log != nil {
			el.log.Printf("episode %d: mean return %.3f over last %d",
				stats.Episode, el.sum/float64(el.interval), el.interval)
		}
		el.sum = 0
	}
}
