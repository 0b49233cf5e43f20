package policy

import (
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var testCfg = Config{Inputs: 4, Hidden: []int{8}, Outputs: 3}

// failingSource forces snapshot failures to exercise the fatal and
// best-effort paths.
type failingSource struct {
	mu    sync.Mutex
	fails bool
	inner *Policy
}

func (fs *failingSource) Snapshot() (Weights, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.fails {
		return nil, errors.New("forced snapshot failure")
	}
	return fs.inner.Snapshot()
}

func (fs *failingSource) setFails(fails bool) {
	fs.mu.Lock()
	fs.fails = fails
	fs.mu.Unlock()
}

func TestCacheConstruction(t *testing.T) {
	Convey("Given a live policy source", t, func() {
		live := New(testCfg)

		Convey("Construction succeeds with a working source", func() {
			cache, err := NewCache(live, testCfg, nil)
			So(err, ShouldBeNil)
			So(cache, ShouldNotBeNil)
			So(cache.Version(), ShouldEqual, uint64(0))
		})

		Convey("A failing first snapshot propagates out of construction", func() {
			src := &failingSource{fails: true, inner: live}
			cache, err := NewCache(src, testCfg, nil)
			So(err, ShouldNotBeNil)
			So(cache, ShouldBeNil)
		})
	})
}

func TestCacheRefresh(t *testing.T) {
	Convey("Given a cache over a live policy", t, func() {
		live := New(testCfg)
		src := &failingSource{inner: live}
		cache, err := NewCache(src, testCfg, nil)
		So(err, ShouldBeNil)

		Convey("Each successful refresh advances the version", func() {
			So(cache.Refresh(), ShouldBeNil)
			So(cache.Refresh(), ShouldBeNil)
			So(cache.Version(), ShouldEqual, uint64(2))
		})

		Convey("A failed refresh keeps the stale snapshot usable", func() {
			obs := []float64{0.1, 0.2, 0.3, 0.4}
			before := cache.Infer(obs)

			src.setFails(true)
			So(cache.Refresh(), ShouldNotBeNil)
			So(cache.Version(), ShouldEqual, uint64(0))
			So(cache.Infer(obs), ShouldEqual, before)
		})

		Convey("Inference is safe concurrently with refresh", func() {
			obs := []float64{0.5, -0.5, 0.25, 0.0}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_ = cache.Refresh()
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					action := cache.Infer(obs)
					if action < 0 || action >= testCfg.Outputs {
						t.Errorf("inference returned out-of-range action %d", action)
						return
					}
				}
			}()
			wg.Wait()
			So(cache.Version(), ShouldEqual, uint64(200))
		})
	})
}

func TestPolicyClone(t *testing.T) {
	Convey("Given a policy", t, func() {
		p := New(testCfg)

		Convey("A clone predicts identically but is independent state", func() {
			clone, err := p.Clone()
			So(err, ShouldBeNil)

			obs := []float64{0.3, 0.1, -0.2, 0.9}
			So(clone.Probs(obs), ShouldResemble, p.Probs(obs))

			// Mutating the original's weights must not leak into the clone:
			// capture the clone's output first, shift every input weight of
			// the original's first hidden neuron, and re-check both nets.
			before := append([]float64(nil), clone.Probs(obs)...)
			w, err := p.Snapshot()
			So(err, ShouldBeNil)
			for i := range w[0][0] {
				w[0][0][i] += 10.0
			}
			p.Apply(w)
			So(p.Probs(obs), ShouldNotResemble, before)
			So(clone.Probs(obs), ShouldResemble, before)
		})
	})
}
