package wheel

// Feedforward is a simple permanent-magnet motor model. Gains are in output
// fraction per unit: KS covers static friction, KV the back-EMF slope, KA
// the inertia term.
type Feedforward struct {
	KS float64
	KV float64
	KA float64
}

// Calculate returns the open-loop output fraction predicted for the given
// velocity (m/s) and acceleration (m/s²):
//
//	out = KS*sgn(v) + KV*v + KA*a
func (f Feedforward) Calculate(velocity, acceleration float64) float64 {
	var sign float64
	if velocity > 0 {
		sign = 1
	} else if velocity < 0 {
		sign = -1
	}
	return f.KS*sign + f.KV*velocity + f.KA*acceleration
}
