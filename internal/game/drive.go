package game

import (
	"sort"

	"github.com/Faultbox/midgard-physics/internal/physics/vehicle"
)

// Cue presses or releases a control at a frame.
type Cue struct {
	Frame   int
	Control vehicle.Control
	On      bool
}

// Script is a list of cues, kept sorted by frame.
type Script []Cue

// DriveScript accelerates, turns left for a while, boosts, then brakes to
// a stop over the given number of frames.
func DriveScript(frames int) Script {
	at := func(f float64) int { return int(f * float64(frames)) }
	s := Script{
		{Frame: 0, Control: vehicle.Accelerate, On: true},
		{Frame: at(0.25), Control: vehicle.Left, On: true},
		{Frame: at(0.40), Control: vehicle.Left, On: false},
		{Frame: at(0.45), Control: vehicle.Boost, On: true},
		{Frame: at(0.60), Control: vehicle.Boost, On: false},
		{Frame: at(0.70), Control: vehicle.Accelerate, On: false},
		{Frame: at(0.70), Control: vehicle.Brake, On: true},
		{Frame: at(0.90), Control: vehicle.Brake, On: false},
		{Frame: at(0.90), Control: vehicle.Handbrake, On: true},
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].Frame < s[j].Frame })
	return s
}

// Apply sets every cue scheduled for frame.
func (s Script) Apply(v *vehicle.Vehicle, frame int) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Frame >= frame })
	for ; i < len(s) && s[i].Frame == frame; i++ {
		v.SetControl(s[i].Control, s[i].On)
	}
}

// Driver plays a script against a vehicle, one frame per update, and
// records the speed after each frame.
type Driver struct {
	Vehicle *vehicle.Vehicle
	Script  Script

	frame  int
	speeds []float64
}

// Update applies this frame's cues. Add the driver to a loop before the
// vehicle so the cues take effect in the same frame.
func (d *Driver) Update(float32) {
	d.Script.Apply(d.Vehicle, d.frame)
	d.frame++
	if n := d.Vehicle.Native(); n != nil {
		d.speeds = append(d.speeds, float64(n.CurrentSpeedKmHour()))
	}
}

// Speeds returns the recorded speeds in km/h.
func (d *Driver) Speeds() []float64 { return d.speeds }
