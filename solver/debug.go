package solver

import (
	"fmt"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/colornames"
)

type DebugDrawModes int

const (
	DrawWireframe DebugDrawModes = 1 << iota
	DrawAabb
	DrawContactPoints
)

// DebugDrawer receives primitives during DebugDrawWorld. Calls happen
// synchronously on the caller's goroutine.
type DebugDrawer interface {
	DrawLine(from, to, color mgl32.Vec3)
	DrawContactPoint(point, normal mgl32.Vec3, distance float32, lifetime int, color mgl32.Vec3)
	ReportErrorWarning(warning string)
	Draw3DText(location mgl32.Vec3, text string)
	DebugMode() DebugDrawModes
}

var (
	ColorDynamic   = rgb(colornames.White)
	ColorStatic    = rgb(colornames.Green)
	ColorKinematic = rgb(colornames.Yellow)
	ColorAabb      = rgb(colornames.Red)
	ColorContact   = rgb(colornames.Orange)
)

func rgb(c color.RGBA) mgl32.Vec3 {
	return mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}

func (w *DynamicsWorld) SetDebugDrawer(d DebugDrawer) { w.debugDrawer = d }

func (w *DynamicsWorld) DebugDrawer() DebugDrawer { return w.debugDrawer }

// DebugDrawWorld walks every registered object and emits its primitives
// according to the drawer's mode.
func (w *DynamicsWorld) DebugDrawWorld() {
	d := w.debugDrawer
	if w.closed || d == nil {
		return
	}
	mode := d.DebugMode()

	for _, o := range w.objects {
		if mode&DrawWireframe != 0 {
			w.debugDrawObject(d, o, objectColor(o))
		}
		if mode&DrawAabb != 0 {
			lo, hi := o.AABB()
			drawBox(d, lo.Add(hi).Mul(0.5), [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, hi.Sub(lo).Mul(0.5), ColorAabb)
		}
	}

	if mode&DrawContactPoints != 0 {
		for _, b := range w.dynamicBodies() {
			for _, other := range w.broadphase.query(b.proxy.min, b.proxy.max) {
				if other.obj == &b.CollisionObject || !NeedsCollision(&b.CollisionObject, other.obj) {
					continue
				}
				w.dispatcher.Collide(&b.CollisionObject, other.obj, func(cp ContactPoint) {
					d.DrawContactPoint(cp.PositionWorldOnB, cp.NormalWorldOnB, cp.Distance, 0, ColorContact)
				})
			}
		}
	}
}

func (w *DynamicsWorld) debugDrawObject(d DebugDrawer, o *CollisionObject, c mgl32.Vec3) {
	switch s := o.shape.(type) {
	case *BoxShape:
		t := o.worldTransform
		drawBox(d, t.Origin, t.Axes(), s.halfExtents, c)
	case *TriangleMeshShape:
		if s.mesh == nil {
			d.ReportErrorWarning("debug draw: triangle mesh shape without mesh")
			return
		}
		t := o.worldTransform
		for i := 0; i < s.mesh.NumTriangles(); i++ {
			tri := s.mesh.Triangle(i)
			a, b, cc := t.Apply(tri[0]), t.Apply(tri[1]), t.Apply(tri[2])
			d.DrawLine(a, b, c)
			d.DrawLine(b, cc, c)
			d.DrawLine(cc, a, c)
		}
	case nil:
		d.ReportErrorWarning("debug draw: object without shape")
	default:
		d.ReportErrorWarning(fmt.Sprintf("debug draw: unsupported shape %T", s))
	}
}

func objectColor(o *CollisionObject) mgl32.Vec3 {
	switch {
	case o.IsKinematic() || o.ghost != nil:
		return ColorKinematic
	case o.IsStatic():
		return ColorStatic
	default:
		return ColorDynamic
	}
}

// drawBox emits the twelve edges of an oriented box.
func drawBox(d DebugDrawer, center mgl32.Vec3, axes [3]mgl32.Vec3, halfExtents mgl32.Vec3, c mgl32.Vec3) {
	corners := boxCorners(center, axes, halfExtents)
	for i := 0; i < 8; i++ {
		for a := 0; a < 3; a++ {
			j := i | 1<<a
			if j != i {
				d.DrawLine(corners[i], corners[j], c)
			}
		}
	}
}
