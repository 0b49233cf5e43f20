package shader

import (
	"fmt"

	"mariorl/atomicflag"
)

// Stage names, in pipeline order. Later stages assume the color/luminance
// range produced by earlier ones, so the order is fixed.
const (
	StageRadialDistortion = "radial_distortion"
	StageScanlines        = "scanlines"
	StageDotMask          = "dot_mask"
	StageRollingLines     = "rolling_lines"
	StageGammaCorrection  = "gamma_correction"
)

// StageNames returns the stage names in pipeline order.
func StageNames() []string {
	return []string{
		StageRadialDistortion,
		StageScanlines,
		StageDotMask,
		StageRollingLines,
		StageGammaCorrection,
	}
}

// ErrUnknownStage is returned when a caller names a stage that does not exist;
// a user input error, reported back rather than crashing any loop.
type ErrUnknownStage struct {
	Name string
}

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown shader stage: %q", e.Name)
}

// Settings maps stage names to enabled-state. Flags are mutated by the http
// layer at any time and read by the render loop every frame; per-flag
// visibility is sufficient since a stale read only affects one frame's
// cosmetic output, so no cross-map synchronization is performed.
type Settings struct {
	flags map[string]*atomicflag.Flag
}

// NewSettings returns settings with every stage disabled.
func NewSettings() *Settings {
	flags := make(map[string]*atomicflag.Flag, len(StageNames()))
	for _, name := range StageNames() {
		flags[name] = &atomicflag.Flag{}
	}
	return &Settings{flags: flags}
}

// Set enables or disables a single stage.
func (s *Settings) Set(name string, enabled bool) error {
	flag, ok := s.flags[name]
	if !ok {
		return &ErrUnknownStage{Name: name}
	}
	if enabled {
		flag.Set()
	} else {
		flag.Clear()
	}
	return nil
}

// Toggle flips a single stage, returning its new state.
func (s *Settings) Toggle(name string) (bool, error) {
	flag, ok := s.flags[name]
	if !ok {
		return false, &ErrUnknownStage{Name: name}
	}
	if flag.IsSet() {
		flag.Clear()
		return false, nil
	}
	flag.Set()
	return true, nil
}

// SetAll enables or disables every stage.
func (s *Settings) SetAll(enabled bool) {
	for _, name := range StageNames() {
		_ = s.Set(name, enabled)
	}
}

// Enabled reads a single stage's state; unknown names read as disabled.
func (s *Settings) Enabled(name string) bool {
	flag, ok := s.flags[name]
	return ok && flag.IsSet()
}

// Snapshot returns a point-in-time copy of all stage states.
func (s *Settings) Snapshot() map[string]bool {
	out := make(map[string]bool, len(s.flags))
	for _, name := range StageNames() {
		out[name] = s.flags[name].IsSet()
	}
	return out
}
