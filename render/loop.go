package render

import (
	"fmt"
	"time"

	"mariorl/game"
	"mariorl/shader"
)

// renderLoop runs the dual-cadence display loop: logic ticks step the
// environment with the cached policy, render ticks interpolate between the
// last two logic frames, push the result through the shader pipeline, and
// publish it. Non-fatal errors are logged and the loop survives them; the
// loop terminates on the stop signal or when training goes inactive.
func (m *Manager) renderLoop() {
	defer close(m.renderDone)
	defer m.renderingActive.Clear()

	obs, lastFrame, curFrame, err := m.initLoop()
	if err != nil {
		m.log.Printf("render loop init failed: %v", err)
		return
	}

	m.renderingActive.Set()
	m.log.Printf("render loop started: logic %.0fhz, render %.0fhz", m.cfg.LogicHz, m.cfg.RenderHz)

	logicInterval := time.Duration(float64(time.Second) / m.cfg.LogicHz)
	renderInterval := time.Duration(float64(time.Second) / m.cfg.RenderHz)
	lastLogic := time.Now()
	lastRender := lastLogic

	for {
		select {
		case <-m.done:
			m.log.Printf("render loop stopping")
			return
		default:
		}

		if !m.trainingActive() {
			m.log.Printf("training inactive, ending render loop")
			return
		}

		// Edge-triggered: a coalesced burst of update signals costs one
		// refresh, and the periodic refresh loop backstops a missed one.
		if m.modelUpdated.IsSet() {
			_ = m.cache.Refresh()
			m.modelUpdated.Clear()
		}

		now := time.Now()

		if now.Sub(lastLogic) >= logicInterval {
			if err := safely(func() {
				action := m.cache.Infer(obs)
				next, _, episodeDone := m.env.Step(game.Action(action))
				lastFrame = curFrame
				curFrame = m.env.Render()
				if episodeDone {
					obs = m.env.Reset()
				} else {
					obs = next
				}
			}); err != nil {
				m.log.Printf("logic tick failed: %v", err)
			}
			lastLogic = now
		}

		if now.Sub(lastRender) >= renderInterval {
			if err := safely(func() {
				alpha := float64(now.Sub(lastLogic)) / float64(logicInterval)
				frame := shader.Lerp(lastFrame, curFrame, alpha)
				m.frames.Push(m.pipeline.Apply(frame, now, m.shaders))
			}); err != nil {
				m.log.Printf("render tick failed: %v", err)
			}
			lastRender = now
		}

		time.Sleep(time.Millisecond)
	}
}

// initLoop primes the loop state: an initial observation and two identical
// frames so the first interpolation has endpoints.
func (m *Manager) initLoop() (obs game.Observation, last, cur *shader.Frame, err error) {
	err = safely(func() {
		obs = m.env.Reset()
		cur = m.env.Render()
		last = cur.Clone()
	})
	return
}

// safely converts a panic in fn into an error so a bad frame or step cannot
// take down the loop goroutine.
func safely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	fn()
	return
}
