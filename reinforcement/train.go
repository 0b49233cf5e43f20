package reinforcement

import (
	"context"
	"math/rand"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/patrikeh/go-deep/training"

	"mariorl/game"
	"mariorl/policy"
)

// traceStep is one (observation, action, reward) transition.
type traceStep struct {
	obs    game.Observation
	action int
	reward float64
}

// episodeTrace is a complete episode generated by one worker.
type episodeTrace struct {
	steps []traceStep
}

// runTraining deploys the agent workers and the estimator:
//   - each worker owns its own environment and policy clone and streams
//     complete episodes
//   - the workers fan into a single channel, which serializes parameter
//     updates since there is exactly one estimator
//   - the estimator scores episodes, trains the live net under the write
//     lock, and raises the model-updated signal between update steps
func (m *Manager) runTraining(ctx context.Context, enabled []Blueprint, session uint64) {
	var wrappers []WrapperFactory
	var callbacks []Callback
	for _, bp := range enabled {
		switch bp.Kind {
		case KindWrapper:
			wrappers = append(wrappers, bp.Wrapper)
		case KindCallback:
			callbacks = append(callbacks, bp.Callback(m.cfg, m.log))
		}
	}

	nworkers := m.cfg.WorkerCount()
	traces := make([]<-chan *episodeTrace, 0, nworkers)
	for i := 0; i < nworkers; i++ {
		env := Environment(game.NewWorld(m.course))
		for _, wrap := range wrappers {
			env = wrap(env, m.cfg)
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		traces = append(traces, m.agentWorker(ctx.Done(), env, rng))
	}

	merged := channerics.Merge(ctx.Done(), traces...)
	go m.estimator(merged, callbacks, session)
}

// agentWorker generates episodes until cancellation. The worker acts on its
// own clone of the live policy, re-synced before each episode, so inference
// never contends with the estimator's updates.
func (m *Manager) agentWorker(
	done <-chan struct{},
	env Environment,
	rng *rand.Rand,
) <-chan *episodeTrace {
	traces := make(chan *episodeTrace)
	go func() {
		defer close(traces)

		actor := policy.New(m.netCfg)
		for {
			// done-guard
			select {
			case <-done:
				return
			default:
			}

			// Pick up the freshest parameters before each episode.
			if w, err := m.Snapshot(); err == nil {
				actor.Apply(w)
			} else {
				m.log.Printf("worker snapshot failed, acting on stale parameters: %v", err)
			}

			trace := &episodeTrace{}
			obs := env.Reset()
			for {
				action := actor.Sample(obs, rng)
				next, reward, episodeDone := env.Step(game.Action(action))
				trace.steps = append(trace.steps, traceStep{
					obs:    obs,
					action: action,
					reward: reward,
				})
				obs = next
				if episodeDone {
					break
				}
			}

			select {
			case traces <- trace:
			case <-done:
				return
			}
		}
	}()
	return traces
}

// estimator consumes episodes and improves the live policy: discounted
// returns are computed per step, steps that beat the running baseline
// become training examples toward their taken action, and one SGD pass
// applies them under the write lock. The model-updated signal is raised
// only after the lock is released, never mid-update.
func (m *Manager) estimator(traces <-chan *episodeTrace, callbacks []Callback, session uint64) {
	gamma := m.cfg.GetHyperParamOrDefault("gamma", 0.99)
	eta := m.cfg.GetHyperParamOrDefault("eta", 0.01)
	baselineDecay := m.cfg.GetHyperParamOrDefault("baselineDecay", 0.95)

	trainer := training.NewTrainer(training.NewSGD(eta, 0.5, 0.0, false), 0)
	baseline := 0.0
	epCount := 0

	for trace := range traces {
		if len(trace.steps) == 0 {
			continue
		}

		// Discounted return per step, propagated backward.
		returns := make([]float64, len(trace.steps))
		g := 0.0
		total := 0.0
		for t := len(trace.steps) - 1; t >= 0; t-- {
			g = trace.steps[t].reward + gamma*g
			returns[t] = g
			total += trace.steps[t].reward
		}

		// Train toward the actions taken wherever the return beat the
		// baseline; below-baseline steps contribute nothing.
		var batch training.Examples
		for t, step := range trace.steps {
			if returns[t] <= baseline {
				continue
			}
			response := make([]float64, m.netCfg.Outputs)
			response[step.action] = 1.0
			batch = append(batch, training.Example{Input: step.obs, Response: response})
		}

		if len(batch) > 0 {
			m.netMu.Lock()
			trainer.Train(m.live.Net(), batch, nil, 1)
			m.netMu.Unlock()
			m.modelUpdated.Set()
		}

		baseline = baselineDecay*baseline + (1-baselineDecay)*returns[0]
		m.avgReturn.AtomicSet(baselineDecay*m.avgReturn.AtomicRead() + (1-baselineDecay)*total)
		m.episodes.Add(1)

		epCount++
		stats := EpisodeStats{Episode: epCount, Steps: len(trace.steps), Return: total}
		for _, cb := range callbacks {
			cb.OnEpisode(stats)
		}

		if m.cfg.EpisodeBudget > 0 && epCount >= m.cfg.EpisodeBudget {
			m.log.Printf("episode budget of %d reached", m.cfg.EpisodeBudget)
			break
		}
	}

	// Reached on budget exhaustion, deadline expiry, or an external stop.
	// Teardown is keyed to this estimator's session id: after an external
	// stop the merged channel drains asynchronously, and by the time this
	// line runs a new session may already be live. A mismatched id makes
	// this a no-op instead of stopping the successor.
	m.stopSession(session)
}
