// policy wraps the feed-forward network the agent acts with, and the
// snapshot/clone operations the render subsystem uses to run inference
// decoupled from the actively-training parameter set.
package policy

import (
	"fmt"
	"math/rand"

	deep "github.com/patrikeh/go-deep"
)

// Weights is a whole-state parameter dump: per layer, per neuron, per input.
type Weights [][][]float64

// Config sizes the network. Outputs is the action count; the output layer
// is softmax so Predict yields an action distribution.
type Config struct {
	Inputs  int
	Hidden  []int
	Outputs int
}

// Policy is a trainable action policy over feature-vector observations.
type Policy struct {
	net *deep.Neural
	cfg Config
}

// New builds a policy network per the config, randomly initialized.
func New(cfg Config) *Policy {
	layout := append(append([]int{}, cfg.Hidden...), cfg.Outputs)
	net := deep.NewNeural(&deep.Config{
		Inputs:     cfg.Inputs,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeMultiClass,
		Weight:     deep.NewNormal(0.0, 0.1),
		Bias:       true,
	})
	return &Policy{net: net, cfg: cfg}
}

// Net exposes the underlying network for the trainer's update step.
func (p *Policy) Net() *deep.Neural {
	return p.net
}

// Config returns the sizing this policy was built with.
func (p *Policy) Config() Config {
	return p.cfg
}

// Probs runs a forward pass and returns the action distribution.
func (p *Policy) Probs(obs []float64) []float64 {
	return p.net.Predict(obs)
}

// Greedy returns the argmax action. Used for deterministic display play.
func (p *Policy) Greedy(obs []float64) int {
	probs := p.net.Predict(obs)
	best := 0
	for i, v := range probs {
		if v > probs[best] {
			best = i
		}
	}
	return best
}

// Sample draws an action from the predicted distribution using the given
// source. Used by training workers for exploration.
func (p *Policy) Sample(obs []float64, rng *rand.Rand) int {
	probs := p.net.Predict(obs)
	r := rng.Float64()
	acc := 0.0
	for i, v := range probs {
		acc += v
		if r <= acc {
			return i
		}
	}
	return len(probs) - 1
}

// Snapshot returns a deep copy of the full parameter state.
func (p *Policy) Snapshot() (Weights, error) {
	dump := p.net.Dump()
	if dump == nil || len(dump.Weights) == 0 {
		return nil, fmt.Errorf("policy snapshot: empty weight dump")
	}
	return cloneWeights(dump.Weights), nil
}

// Apply replaces the network's parameters wholesale with the given
// snapshot. The caller owns any synchronization against concurrent readers.
func (p *Policy) Apply(w Weights) {
	p.net.ApplyWeights(w)
}

// Clone builds an independent policy carrying a copy of this one's state.
func (p *Policy) Clone() (*Policy, error) {
	w, err := p.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("clone policy: %w", err)
	}
	out := New(p.cfg)
	out.Apply(w)
	return out, nil
}

func cloneWeights(w [][][]float64) Weights {
	out := make(Weights, len(w))
	for i, layer := range w {
		out[i] = make([][]float64, len(layer))
		for j, neuron := range layer {
			out[i][j] = append([]float64{}, neuron...)
		}
	}
	return out
}
