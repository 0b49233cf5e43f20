package reinforcement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHyperParams(t *testing.T) {
	Convey("Given a config with hyperparameters", t, func() {
		cfg := &TrainingConfig{
			HyperParams: []HyperParameter{
				{Key: "gamma", Val: 0.97},
				{Key: "eta", Val: 0.02},
			},
		}

		Convey("Known params resolve to their value", func() {
			So(cfg.GetHyperParamOrDefault("gamma", 0.5), ShouldEqual, 0.97)
		})

		Convey("Unknown params resolve to the default", func() {
			So(cfg.GetHyperParamOrDefault("epsilon", 0.1), ShouldEqual, 0.1)
		})

		Convey("Worker count and hidden layout default when unset", func() {
			So(cfg.WorkerCount(), ShouldEqual, 4)
			So(cfg.HiddenLayout(), ShouldResemble, []int{64, 64})
		})
	})
}

func TestLinearSchedule(t *testing.T) {
	Convey("Given a decaying schedule", t, func() {
		sched := LinearSchedule(1.0, 0.1)

		Convey("Endpoints and midpoint interpolate", func() {
			So(sched(0), ShouldEqual, 1.0)
			So(sched(1), ShouldEqual, 0.1)
			So(sched(0.5), ShouldAlmostEqual, 0.55, 1e-9)
		})

		Convey("Out-of-range progress clamps", func() {
			So(sched(-3), ShouldEqual, 1.0)
			So(sched(7), ShouldEqual, 0.1)
		})
	})
}

func TestTrainingDeadline(t *testing.T) {
	Convey("Given deadline configurations", t, func() {
		Convey("A duration yields a deadline-bearing context", func() {
			cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "250ms"}}
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(deadline.After(time.Now()), ShouldBeTrue)
		})

		Convey("An unparsable duration errors", func() {
			cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "whenever"}}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("No deadline yields a plain cancelable context", func() {
			cfg := &TrainingConfig{}
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, ok := ctx.Deadline()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestFromYaml(t *testing.T) {
	Convey("Given a training config file", t, func() {
		raw := `
kind: training
def:
  workers: 3
  maxEpisodeSteps: 500
  hiddenLayers: [32, 16]
  hyperParams:
    - key: gamma
      val: 0.95
  trainingDeadline:
    duration: 2m
  wrappers: [reward_scale]
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte(raw), 0o644), ShouldBeNil)

		Convey("It decodes through the kind/def envelope", func() {
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Workers, ShouldEqual, 3)
			So(cfg.MaxEpisodeSteps, ShouldEqual, 500)
			So(cfg.HiddenLayout(), ShouldResemble, []int{32, 16})
			So(cfg.GetHyperParamOrDefault("gamma", 0), ShouldEqual, 0.95)
			So(cfg.TrainingDeadline["duration"], ShouldEqual, "2m")
			So(cfg.Wrappers, ShouldResemble, []string{"reward_scale"})
		})
	})

	Convey("A missing file errors", t, func() {
		_, err := FromYaml("/nonexistent/config.yaml")
		So(err, ShouldNotBeNil)
	})
}
