// game implements the side-scrolling platformer world the policy trains on
// and the render loop displays. It is a deterministic stand-in for a
// console emulator: steppable, resettable, and renderable to RGB frames.
package game

import "fmt"

// Course cell types.
const (
	AIR    = '.'
	GROUND = '#'
	BRICK  = 'B'
	COIN   = 'c'
	HAZARD = '^'
	FLAG   = 'F'
	START  = '-'
)

// Course is a tile grid with bottom-left origin: tile (0,0) is the bottom
// left corner when the course is drawn, so +y is up and +x is rightward
// travel, matching the world kinematics.
type Course struct {
	W, H  int
	tiles [][]rune // indexed [x][y]
	// Start is the agent spawn tile.
	StartX, StartY int
}

// The standard course and a smaller one for development and tests.
var (
	DebugCourse = []string{
		"..........F",
		"...........",
		"....B......",
		"...........",
		"-..c...c...",
		"####.######",
	}

	FullCourse = []string{
		"................................................................",
		"..........................................................F.....",
		"................................................................",
		"..........BBcB..............BB..................................",
		"................................................................",
		"......................c.c.........B..B.....c....................",
		"................BBcB............................................",
		"...............................BB.......c......cc...............",
		"-........c......................................................",
		"################..####^^####..######^^^#########..####^^^#######",
	}
)

// Convert parses a top-down string map into a Course. Rows must share a
// width; exactly one START marker is expected (defaulting to (1,1) when
// absent). Unknown runes parse as AIR.
func Convert(rows []string) (*Course, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("convert course: empty map")
	}
	w := len(rows[0])
	h := len(rows)
	for i, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("convert course: row %d width %d != %d", i, len(row), w)
		}
	}

	course := &Course{
		W:      w,
		H:      h,
		StartX: 1,
		StartY: 1,
	}
	course.tiles = make([][]rune, w)
	for x := 0; x < w; x++ {
		course.tiles[x] = make([]rune, h)
		for y := 0; y < h; y++ {
			// Flip so the bottom row of the input is y=0.
			cell := rune(rows[h-y-1][x])
			switch cell {
			case GROUND, BRICK, COIN, HAZARD, FLAG:
				course.tiles[x][y] = cell
			case START:
				course.tiles[x][y] = AIR
				course.StartX, course.StartY = x, y
			default:
				course.tiles[x][y] = AIR
			}
		}
	}
	return course, nil
}

// Tile returns the cell at (x, y); out-of-bounds reads are AIR so the
// kinematics never index past the grid.
func (c *Course) Tile(x, y int) rune {
	if x < 0 || x >= c.W || y < 0 || y >= c.H {
		return AIR
	}
	return c.tiles[x][y]
}

// Solid reports whether the tile blocks movement.
func (c *Course) Solid(x, y int) bool {
	t := c.Tile(x, y)
	return t == GROUND || t == BRICK
}
