package dynworld

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/dynworld/solver"
)

// HeadingToQuat is the rotation of heading radians about the vertical axis.
// Heading 0 faces +Y.
func HeadingToQuat(heading float32) mgl32.Quat {
	return mgl32.QuatRotate(heading, solver.AxisUp)
}

// DirectionToQuat converts a horizontal facing direction into a quaternion
// laid out as x, y, z, w. The direction does not need to be normalised; a
// zero direction gives the identity rotation.
func DirectionToQuat(dir [2]float32) [4]float32 {
	if dir[0] == 0 && dir[1] == 0 {
		return [4]float32{0, 0, 0, 1}
	}
	heading := float32(math.Atan2(float64(-dir[0]), float64(dir[1])))
	q := HeadingToQuat(heading)
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

// QuatToDirection rotates the forward axis by q (x, y, z, w) and returns its
// normalised projection onto the horizontal plane.
func QuatToDirection(q [4]float32) [2]float32 {
	quat := mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
	return forwardOf(quat)
}

func forwardOf(q mgl32.Quat) [2]float32 {
	f := q.Rotate(solver.AxisFwd)
	flat := mgl32.Vec2{f.X(), f.Y()}
	if l := flat.Len(); l > 1e-6 {
		flat = flat.Mul(1 / l)
	}
	return [2]float32(flat)
}
