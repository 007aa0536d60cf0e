package wheel

import "math"

// Optimize returns the state equivalent to desired that needs the least
// azimuth rotation from current: either desired itself or its 180°-shifted
// twin with the speed sign flipped. The result never differs from the
// current angle by more than 90°; at exactly 90° the unshifted target wins.
//
// The azimuth position sensor is continuous rather than modular, so the
// wrap handling here is explicit instead of relying on a wrapping position
// controller.
func Optimize(desired, current State) State {
	targetAngle := placeInScope(current.Angle, desired.Angle)
	targetSpeed := desired.Speed

	delta := targetAngle - current.Angle
	if math.Abs(delta) > 90 {
		targetSpeed = -targetSpeed
		if delta > 90 {
			targetAngle -= 180
		} else {
			targetAngle += 180
		}
	}
	return State{Speed: targetSpeed, Angle: targetAngle}
}

// placeInScope maps angle into the full-turn window containing reference,
// then snaps it to within a half turn of the reference.
func placeInScope(reference, angle float64) float64 {
	var lowerBound, upperBound float64
	lowerOffset := math.Mod(reference, 360)
	if lowerOffset >= 0 {
		lowerBound = reference - lowerOffset
		upperBound = reference + (360 - lowerOffset)
	} else {
		upperBound = reference - lowerOffset
		lowerBound = reference - (360 + lowerOffset)
	}
	for angle < lowerBound {
		angle += 360
	}
	for angle > upperBound {
		angle -= 360
	}
	if angle-reference > 180 {
		angle -= 360
	} else if angle-reference < -180 {
		angle += 360
	}
	return angle
}
