// reinforcement is the training coordinator: it owns the live policy, the
// shared session flags, the shader settings, and the frame buffer, and it
// supervises both the training goroutines (agent workers fanned into a
// single estimator) and the render manager that mirrors training progress
// to the browser.
package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"mariorl/atomicflag"
	"mariorl/framebuffer"
	"mariorl/game"
	"mariorl/policy"
	"mariorl/render"
	"mariorl/shader"
)

// ErrTrainingActive is returned when a start request arrives while a
// session is already running.
var ErrTrainingActive = errors.New("training already active")

// Manager coordinates one training session at a time. The live policy is
// the single source of truth for parameters: workers clone it per episode,
// the estimator updates it behind the write lock, and the render subsystem
// copies it through Snapshot.
type Manager struct {
	cfg      *TrainingConfig
	netCfg   policy.Config
	course   *game.Course
	registry *Registry

	// netMu guards the live net: the estimator's update step takes the
	// write lock, snapshots take the read lock, so a snapshot never
	// observes a half-applied update.
	netMu sync.RWMutex
	live  *policy.Policy

	trainingActive atomicflag.Flag
	modelUpdated   atomicflag.Flag
	shaders        *shader.Settings
	frames         *framebuffer.Buffer

	episodes  atomicflag.Counter
	avgReturn *atomicflag.AtomicFloat64

	// mu guards session start/stop state. session identifies the current
	// (or most recent) session so trailing goroutines from a stopped
	// session cannot tear down a newer one.
	mu       sync.Mutex
	session  uint64
	renderer *render.Manager
	cancel   context.CancelFunc

	log *log.Logger
}

// NewManager builds an idle coordinator. Training starts on request, not at
// construction.
func NewManager(
	cfg *TrainingConfig,
	course *game.Course,
	registry *Registry,
	logger *log.Logger,
) (*Manager, error) {
	if cfg == nil || course == nil {
		return nil, errors.New("manager requires a training config and a course")
	}
	if registry == nil {
		registry = BuiltinRegistry()
	}

	netCfg := policy.Config{
		Inputs:  game.ObservationSize,
		Hidden:  cfg.HiddenLayout(),
		Outputs: game.NumActions,
	}

	return &Manager{
		cfg:       cfg,
		netCfg:    netCfg,
		course:    course,
		registry:  registry,
		live:      policy.New(netCfg),
		shaders:   shader.NewSettings(),
		frames:    framebuffer.New(framebuffer.DefaultCapacity, logger),
		avgReturn: atomicflag.NewAtomicFloat64(0),
		log:       logger,
	}, nil
}

// Snapshot deep-copies the live policy's parameters. Callable from any
// goroutine; the render cache and the workers both source from here.
func (m *Manager) Snapshot() (policy.Weights, error) {
	m.netMu.RLock()
	defer m.netMu.RUnlock()
	return m.live.Snapshot()
}

// StartTraining begins a session: resolves enabled blueprints, applies the
// configured deadline, starts the render manager, then launches the
// training workers and estimator. A second start while active returns
// ErrTrainingActive.
func (m *Manager) StartTraining(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trainingActive.IsSet() {
		return ErrTrainingActive
	}

	enabled, err := m.registry.Enabled(m.cfg)
	if err != nil {
		return fmt.Errorf("start training: %w", err)
	}

	sessionCtx, cancel, err := m.cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return fmt.Errorf("start training: bad deadline: %w", err)
	}

	renderer, err := render.NewManager(
		render.Config{},
		game.NewWorld(m.course),
		m,
		m.netCfg,
		m.frames,
		m.shaders,
		m.trainingActive.IsSet,
		&m.modelUpdated,
		m.log,
	)
	if err != nil {
		cancel()
		return fmt.Errorf("start training: %w", err)
	}

	// The render loop gates on training-active, so raise it before Start.
	m.trainingActive.Set()
	m.modelUpdated.Clear()

	if err := renderer.Start(); err != nil {
		m.trainingActive.Clear()
		cancel()
		return fmt.Errorf("start training: %w", err)
	}

	m.session++
	m.renderer = renderer
	m.cancel = cancel
	m.runTraining(sessionCtx, enabled, m.session)
	m.log.Printf("training started: %d workers, %d blueprints enabled",
		m.cfg.WorkerCount(), len(enabled))
	return nil
}

// StopTraining ends the active session: clears the flag, cancels the
// training goroutines, and stops the render manager. No-op when idle; safe
// from any goroutine, including the estimator on budget exhaustion.
func (m *Manager) StopTraining() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// stopSession tears the session down only if id still names the live
// session. The estimator calls this on exit so a trailing goroutine from a
// stopped session can never take down its successor.
func (m *Manager) stopSession(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.session {
		return
	}
	m.stopLocked()
}

// stopLocked is the shared teardown; callers hold m.mu.
func (m *Manager) stopLocked() {
	if !m.trainingActive.IsSet() {
		return
	}

	m.trainingActive.Clear()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.renderer != nil {
		m.renderer.Stop()
		m.renderer = nil
	}
	m.log.Printf("training stopped after %d episodes", m.episodes.Count())
}

// IsTrainingActive reports whether a session is running.
func (m *Manager) IsTrainingActive() bool {
	return m.trainingActive.IsSet()
}

// IsModelUpdated reports whether an un-consumed parameter update is pending.
func (m *Manager) IsModelUpdated() bool {
	return m.modelUpdated.IsSet()
}

// SetModelUpdated raises the pending-update signal. The estimator calls
// this after each update step; exposed for tests and manual refresh.
func (m *Manager) SetModelUpdated() {
	m.modelUpdated.Set()
}

// ClearModelUpdated consumes the pending-update signal.
func (m *Manager) ClearModelUpdated() {
	m.modelUpdated.Clear()
}

// IsRendering reports whether the current session's render loop is live.
func (m *Manager) IsRendering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renderer != nil && m.renderer.IsRendering()
}

// ShaderSettings exposes the session's shader toggles.
func (m *Manager) ShaderSettings() *shader.Settings {
	return m.shaders
}

// Frames exposes the frame buffer the render loop publishes into.
func (m *Manager) Frames() *framebuffer.Buffer {
	return m.frames
}

// Stats is the live status snapshot served over http and the stats socket.
type Stats struct {
	TrainingActive  bool    `json:"trainingActive"`
	RenderingActive bool    `json:"renderingActive"`
	ModelUpdated    bool    `json:"modelUpdated"`
	Episodes        uint64  `json:"episodes"`
	AvgReturn       float64 `json:"avgReturn"`
	BufferedFrames  int     `json:"bufferedFrames"`
	DroppedFrames   uint64  `json:"droppedFrames"`
}

// Stats assembles the current session statistics without blocking any loop.
func (m *Manager) Stats() Stats {
	return Stats{
		TrainingActive:  m.IsTrainingActive(),
		RenderingActive: m.IsRendering(),
		ModelUpdated:    m.IsModelUpdated(),
		Episodes:        m.episodes.Count(),
		AvgReturn:       m.avgReturn.AtomicRead(),
		BufferedFrames:  m.frames.Len(),
		DroppedFrames:   m.frames.Dropped(),
	}
}
