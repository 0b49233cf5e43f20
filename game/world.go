package game

import (
	"math"

	"mariorl/shader"
)

// Action is a discrete joypad-style input.
type Action int

const (
	ActionNoop Action = iota
	ActionLeft
	ActionRight
	ActionJump
	ActionRightJump
	ActionLeftJump

	NumActions = 6
)

// Observation is the feature vector the policy consumes: a forward-biased
// local tile window plus normalized kinematics.
type Observation []float64

// Observation window dimensions, biased toward the direction of travel.
const (
	obsBack    = 2
	obsAhead   = 6
	obsBelow   = 2
	obsAbove   = 2
	obsWindowW = obsBack + obsAhead + 1
	obsWindowH = obsBelow + obsAbove + 1
)

// ObservationSize is the fixed feature count NewWorld's observations carry.
const ObservationSize = obsWindowW*obsWindowH + 4

// Kinematic constants, in tile units per logic tick.
const (
	walkAccel = 0.15
	friction  = 0.85
	maxVX     = 0.6
	gravity   = 0.12
	jumpVel   = 0.55
	agentSize = 0.8
)

// Reward shaping constants.
const (
	stepReward     = -0.01
	progressReward = 1.0
	coinReward     = 2.0
	flagReward     = 50.0
	deathReward    = -5.0
)

// World is a single-instance steppable/resettable/renderable environment.
// It is not safe for concurrent use; each training worker and the render
// loop own their own instance.
type World struct {
	course *Course

	x, y, vx, vy float64
	grounded     bool
	bestX        float64
	collected    map[[2]int]bool
	steps        int
	episodes     int
	deaths       int
}

// NewWorld returns a world positioned at the course start.
func NewWorld(course *Course) *World {
	w := &World{course: course}
	w.Reset()
	return w
}

// Reset returns the agent to the start tile and begins a new episode.
func (w *World) Reset() Observation {
	w.x = float64(w.course.StartX)
	w.y = float64(w.course.StartY)
	w.vx, w.vy = 0, 0
	w.grounded = false
	w.bestX = w.x
	w.collected = make(map[[2]int]bool)
	w.steps = 0
	w.episodes++
	return w.observe()
}

// Step advances one logic tick: apply the action's acceleration, integrate
// kinematics against the course's solid tiles, and score the transition.
func (w *World) Step(action Action) (Observation, float64, bool) {
	w.steps++

	switch action {
	case ActionLeft, ActionLeftJump:
		w.vx -= walkAccel
	case ActionRight, ActionRightJump:
		w.vx += walkAccel
	}
	switch action {
	case ActionJump, ActionRightJump, ActionLeftJump:
		if w.grounded {
			w.vy = jumpVel
			w.grounded = false
		}
	}

	w.vx *= friction
	w.vx = math.Max(math.Min(w.vx, maxVX), -maxVX)
	w.vy -= gravity

	w.integrate()

	reward := stepReward
	done := false

	// Progress pays only for new ground, so backtracking cannot farm it.
	if w.x > w.bestX {
		reward += (w.x - w.bestX) * progressReward
		w.bestX = w.x
	}

	tx, ty := int(math.Round(w.x)), int(math.Round(w.y))
	switch w.course.Tile(tx, ty) {
	case COIN:
		key := [2]int{tx, ty}
		if !w.collected[key] {
			w.collected[key] = true
			reward += coinReward
		}
	case FLAG:
		reward += flagReward
		done = true
	case HAZARD:
		reward += deathReward
		w.deaths++
		done = true
	}

	// Falling off the course bottom is a death.
	if w.y < -1 {
		reward += deathReward
		w.deaths++
		done = true
	}

	return w.observe(), reward, done
}

// integrate moves the agent one tick, axis-separated so a wall hit on one
// axis does not cancel motion on the other.
func (w *World) integrate() {
	half := agentSize / 2

	nx := w.x + w.vx
	if w.vx > 0 {
		if wall := int(math.Round(nx + half)); w.course.Solid(wall, int(math.Round(w.y))) {
			nx = float64(wall) - 0.5 - half
			w.vx = 0
		}
	} else if w.vx < 0 {
		if wall := int(math.Round(nx - half)); w.course.Solid(wall, int(math.Round(w.y))) {
			nx = float64(wall) + 0.5 + half
			w.vx = 0
		}
	}
	w.x = math.Max(nx, 0)

	ny := w.y + w.vy
	if w.vy <= 0 {
		if floor := int(math.Round(ny - half)); w.course.Solid(int(math.Round(w.x)), floor) {
			ny = float64(floor) + 0.5 + half
			w.vy = 0
			w.grounded = true
		} else {
			w.grounded = false
		}
	} else {
		if ceil := int(math.Round(ny + half)); w.course.Solid(int(math.Round(w.x)), ceil) {
			ny = float64(ceil) - 0.5 - half
			w.vy = 0
		}
		w.grounded = false
	}
	w.y = ny
}

// observe encodes the local tile window and kinematics as features in
// [-1, 1].
func (w *World) observe() Observation {
	obs := make(Observation, 0, ObservationSize)
	cx, cy := int(math.Round(w.x)), int(math.Round(w.y))

	for dy := obsAbove; dy >= -obsBelow; dy-- {
		for dx := -obsBack; dx <= obsAhead; dx++ {
			tx, ty := cx+dx, cy+dy
			var v float64
			switch {
			case w.course.Solid(tx, ty):
				v = 0.5
			case w.course.Tile(tx, ty) == COIN && !w.collected[[2]int{tx, ty}]:
				v = 0.75
			case w.course.Tile(tx, ty) == HAZARD:
				v = -1
			case w.course.Tile(tx, ty) == FLAG:
				v = 1
			}
			obs = append(obs, v)
		}
	}

	obs = append(obs,
		w.vx/maxVX,
		w.vy/jumpVel,
		w.y/float64(w.course.H),
		w.x/float64(w.course.W))
	return obs
}

// Steps reports ticks taken this episode.
func (w *World) Steps() int { return w.steps }

// Deaths reports total deaths since construction. A statistic only; no
// death cap ends training or an episode early.
func (w *World) Deaths() int { return w.deaths }

// Episodes reports resets since construction.
func (w *World) Episodes() int { return w.episodes }

// Tile size in pixels for rendered frames.
const tileSize = 8

// Palette, loosely NES-flavored.
var (
	colSky    = [3]uint8{104, 136, 252}
	colGround = [3]uint8{136, 88, 24}
	colBrick  = [3]uint8{200, 76, 12}
	colCoin   = [3]uint8{252, 188, 0}
	colHazard = [3]uint8{176, 32, 32}
	colFlag   = [3]uint8{0, 168, 68}
	colAgent  = [3]uint8{228, 52, 52}
)

// Render rasterizes the course and agent to an RGB frame. Rows are emitted
// top-down so the frame displays upright.
func (w *World) Render() *shader.Frame {
	frame := shader.NewFrame(w.course.W*tileSize, w.course.H*tileSize)

	for ty := 0; ty < w.course.H; ty++ {
		for tx := 0; tx < w.course.W; tx++ {
			col := colSky
			switch w.course.Tile(tx, ty) {
			case GROUND:
				col = colGround
			case BRICK:
				col = colBrick
			case COIN:
				if w.collected[[2]int{tx, ty}] {
					col = colSky
				} else {
					col = colCoin
				}
			case HAZARD:
				col = colHazard
			case FLAG:
				col = colFlag
			}
			fillTile(frame, tx, w.course.H-ty-1, col)
		}
	}

	// Agent, drawn last so it overlays tiles.
	ax := int(math.Round(w.x * tileSize))
	ay := (w.course.H-1)*tileSize - int(math.Round(w.y*tileSize))
	fillRect(frame, ax, ay, tileSize, tileSize, colAgent)

	return frame
}

func fillTile(f *shader.Frame, tx, ty int, col [3]uint8) {
	fillRect(f, tx*tileSize, ty*tileSize, tileSize, tileSize, col)
}

func fillRect(f *shader.Frame, x0, y0, w, h int, col [3]uint8) {
	for y := y0; y < y0+h; y++ {
		if y < 0 || y >= f.H {
			continue
		}
		for x := x0; x < x0+w; x++ {
			if x < 0 || x >= f.W {
				continue
			}
			f.Set(x, y, col[0], col[1], col[2])
		}
	}
}
