package reinforcement

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the top-level config envelope: a kind selector and an
// untyped def decoded per-kind.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the training-session parameters read from yaml:
// hyperparameters as key-val pairs, worker and episode sizing, network
// layout, and which blueprints to enable.
// Note: keys pass through viper before the inner yaml decode, which
// lowercases them, hence the lowercase tags.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Algorithm is an alg selector.
	Algorithm map[string]string `yaml:"algorithm"`
	// TrainingDeadline is a duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	// Workers is the number of episode-generating agents.
	Workers int `yaml:"workers"`
	// MaxEpisodeSteps caps episode length; the step-limit wrapper enforces it.
	MaxEpisodeSteps int `yaml:"maxepisodesteps"`
	// EpisodeBudget ends training after this many processed episodes;
	// zero means unbounded (deadline or stop request terminates instead).
	EpisodeBudget int `yaml:"episodebudget"`
	// HiddenLayers is the policy net's hidden layout.
	HiddenLayers []int `yaml:"hiddenlayers"`
	// Wrappers and Callbacks name the optional blueprints to enable, in
	// addition to any marked required.
	Wrappers  []string `yaml:"wrappers"`
	Callbacks []string `yaml:"callbacks"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WorkerCount returns the configured worker count, defaulted when unset.
func (cfg *TrainingConfig) WorkerCount() int {
	if cfg.Workers <= 0 {
		return 4
	}
	return cfg.Workers
}

// HiddenLayout returns the configured hidden layers, defaulted when unset.
func (cfg *TrainingConfig) HiddenLayout() []int {
	if len(cfg.HiddenLayers) == 0 {
		return []int{64, 64}
	}
	return cfg.HiddenLayers
}

// WithTrainingDeadline returns a context extended by the training deadline,
// if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		if duration, err := time.ParseDuration(val); err != nil {
			return nil, nil, err
		} else {
			innerCtx, cancel := context.WithTimeout(ctx, duration)
			return innerCtx, cancel, nil
		}
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// LinearSchedule interpolates a hyperparameter from start to end as training
// progress runs 0 to 1. Progress outside [0,1] clamps.
func LinearSchedule(start, end float64) func(progress float64) float64 {
	return func(progress float64) float64 {
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}
		return start + (end-start)*progress
	}
}

// FromYaml reads a kind/def config file and decodes the def as a
// TrainingConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(filepath.Base(path))
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}
