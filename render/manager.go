// render coordinates live display of the training policy: a render/logic
// loop steps a dedicated environment with a cached policy snapshot and
// publishes shader-processed frames into the frame buffer, while a refresh
// loop bounds the snapshot's staleness. Both loops run as background
// goroutines supervised by the Manager and share nothing with the training
// goroutines except the snapshot source and the flags handed in at
// construction.
package render

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"mariorl/atomicflag"
	"mariorl/framebuffer"
	"mariorl/game"
	"mariorl/policy"
	"mariorl/shader"
)

// Environment is the steppable/resettable/renderable display environment,
// distinct from the training environments and single-instance.
type Environment interface {
	Reset() game.Observation
	Step(game.Action) (game.Observation, float64, bool)
	Render() *shader.Frame
}

// Config carries the loop cadences and intervals. Zero values take the
// defaults.
type Config struct {
	// LogicHz is the environment stepping rate.
	LogicHz float64
	// RenderHz is the frame publish rate; faster than LogicHz so frames
	// interpolate smoothly between logic ticks.
	RenderHz float64
	// CacheUpdateInterval bounds policy snapshot staleness.
	CacheUpdateInterval time.Duration
	// JoinTimeout bounds how long Stop waits for the render loop.
	JoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.LogicHz <= 0 {
		c.LogicHz = 12
	}
	if c.RenderHz <= 0 {
		c.RenderHz = 60
	}
	if c.CacheUpdateInterval <= 0 {
		c.CacheUpdateInterval = 120 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
	return c
}

// ErrAlreadyStarted is returned when Start is called on a running manager.
var ErrAlreadyStarted = errors.New("render manager already started")

// Manager owns and supervises the render/logic loop and the policy refresh
// loop. A manager serves one training session; construct a fresh one per
// session.
type Manager struct {
	cfg      Config
	env      Environment
	cache    *policy.Cache
	frames   *framebuffer.Buffer
	shaders  *shader.Settings
	pipeline *shader.Pipeline

	trainingActive func() bool
	modelUpdated   *atomicflag.Flag

	renderingActive atomicflag.Flag
	done            chan struct{}
	renderDone      chan struct{}
	stopOnce        sync.Once

	mu      sync.Mutex
	started bool

	log *log.Logger
}

// NewManager validates its collaborators and takes the first policy
// snapshot. A failed first snapshot is fatal: the manager is not usable and
// the error propagates out of construction.
func NewManager(
	cfg Config,
	env Environment,
	source policy.Snapshotter,
	netCfg policy.Config,
	frames *framebuffer.Buffer,
	shaders *shader.Settings,
	trainingActive func() bool,
	modelUpdated *atomicflag.Flag,
	logger *log.Logger,
) (*Manager, error) {
	if env == nil || source == nil {
		return nil, errors.New("render manager requires both an environment and a policy source")
	}
	if trainingActive == nil {
		trainingActive = func() bool { return true }
	}
	if modelUpdated == nil {
		modelUpdated = &atomicflag.Flag{}
	}

	cache, err := policy.NewCache(source, netCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("render manager construction: %w", err)
	}

	return &Manager{
		cfg:            cfg.withDefaults(),
		env:            env,
		cache:          cache,
		frames:         frames,
		shaders:        shaders,
		pipeline:       shader.NewPipeline(),
		trainingActive: trainingActive,
		modelUpdated:   modelUpdated,
		done:           make(chan struct{}),
		renderDone:     make(chan struct{}),
		log:            logger,
	}, nil
}

// Start performs one synchronous snapshot refresh, then launches the
// render/logic loop and the policy refresh loop. A failed initial refresh
// aborts the start and leaves rendering inactive.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.cache.Refresh(); err != nil {
		return fmt.Errorf("start render manager: %w", err)
	}

	m.started = true
	go m.renderLoop()
	go m.refreshLoop()
	m.log.Printf("render manager started")
	return nil
}

// Stop signals both loops, joins the render loop within the configured
// bound, then clears the frame buffer so stale frames cannot leak into a
// subsequent session. Safe to call even if Start never succeeded, and safe
// to call more than once. The refresh loop is fire-and-forget: it
// self-terminates on the same signal.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		select {
		case <-m.renderDone:
		case <-time.After(m.cfg.JoinTimeout):
			m.log.Printf("render loop join timed out after %v", m.cfg.JoinTimeout)
		}
	}

	discarded := m.frames.Clear()
	m.log.Printf("render manager stopped, %d buffered frames discarded", discarded)
}

// IsRendering reports whether the render loop is between its start and
// termination. Non-blocking; used for external status polling.
func (m *Manager) IsRendering() bool {
	return m.renderingActive.IsSet()
}

// Cache exposes the snapshot cache, for status reporting and tests.
func (m *Manager) Cache() *policy.Cache {
	return m.cache
}

// refreshLoop periodically refreshes the policy snapshot, guaranteeing
// bounded staleness even if the model-updated signal is missed or
// coalesced. Terminates on the shared stop signal or when training goes
// inactive.
func (m *Manager) refreshLoop() {
	for range channerics.NewTicker(m.done, m.cfg.CacheUpdateInterval) {
		if !m.trainingActive() {
			m.log.Printf("training inactive, halting policy refresh loop")
			return
		}
		// Refresh failures are logged by the cache; the previous snapshot
		// stays usable.
		_ = m.cache.Refresh()
	}
}
