// Package wheel holds the per-wheel control pieces of the drivetrain: the
// speed/angle state, the minimal-rotation optimizer, native-unit conversions
// and the controller that turns a target state into actuator commands.
package wheel

// State is one wheel's speed and direction, either measured or commanded.
// The sign of Speed encodes direction along Angle, which is what lets the
// optimizer reverse the drive instead of swinging the azimuth half a turn.
type State struct {
	Speed float64 `json:"speed"` // meters per second, signed
	Angle float64 `json:"angle"` // degrees; continuous, not wrapped
}

// Target is a desired State plus the control mode used to reach it.
type Target struct {
	State
	OpenLoop bool `json:"open_loop"`
}
