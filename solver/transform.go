package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	AxisUp  = mgl32.Vec3{0, 0, 1}
	AxisFwd = mgl32.Vec3{0, 1, 0}
)

// Transform is a rigid placement: rotation followed by translation.
type Transform struct {
	Origin   mgl32.Vec3
	Rotation mgl32.Quat
}

func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

func NewTransform(origin mgl32.Vec3, rot mgl32.Quat) Transform {
	return Transform{Origin: origin, Rotation: rot}
}

// Apply maps a local point into the space of t.
func (t Transform) Apply(p mgl32.Vec3) mgl32.Vec3 {
	return t.Origin.Add(t.Rotation.Rotate(p))
}

// InverseApply maps a point in the space of t back to local coordinates.
func (t Transform) InverseApply(p mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Conjugate().Rotate(p.Sub(t.Origin))
}

// Mul composes t with a child transform o, so (t*o).Apply(p) == t.Apply(o.Apply(p)).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Origin:   t.Apply(o.Origin),
		Rotation: t.Rotation.Mul(o.Rotation).Normalize(),
	}
}

// Axes returns the local X, Y and Z axes expressed in world space.
func (t Transform) Axes() [3]mgl32.Vec3 {
	m := t.Rotation.Mat4()
	return [3]mgl32.Vec3{
		m.Col(0).Vec3(),
		m.Col(1).Vec3(),
		m.Col(2).Vec3(),
	}
}

// integrateTransform predicts a transform after dt with constant velocities.
func integrateTransform(t Transform, linVel, angVel mgl32.Vec3, dt float32) Transform {
	out := t
	out.Origin = t.Origin.Add(linVel.Mul(dt))

	angle := angVel.Len() * dt
	if angle > 1e-6 && !math.IsNaN(float64(angle)) {
		dq := mgl32.QuatRotate(angle, angVel.Normalize())
		out.Rotation = dq.Mul(t.Rotation).Normalize()
	}
	return out
}

func absf(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

func isFinite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

func pow32(b, e float32) float32 {
	return float32(math.Pow(float64(b), float64(e)))
}
