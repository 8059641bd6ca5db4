package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ContactPoint describes one contact between object A and object B.
// NormalWorldOnB points from B towards A; moving A along it by -Distance
// separates the pair.
type ContactPoint struct {
	PositionWorldOnA mgl32.Vec3
	PositionWorldOnB mgl32.Vec3
	NormalWorldOnB   mgl32.Vec3
	Distance         float32
	// TriangleIndex is the mesh triangle involved, or -1.
	TriangleIndex int
}

func (cp ContactPoint) Depth() float32 { return -cp.Distance }

// flip swaps the roles of A and B.
func (cp ContactPoint) flip() ContactPoint {
	return ContactPoint{
		PositionWorldOnA: cp.PositionWorldOnB,
		PositionWorldOnB: cp.PositionWorldOnA,
		NormalWorldOnB:   cp.NormalWorldOnB.Mul(-1),
		Distance:         cp.Distance,
		TriangleIndex:    cp.TriangleIndex,
	}
}

// Dispatcher selects and runs the narrowphase test for a pair of shapes.
type Dispatcher struct {
	config *CollisionConfiguration
	closed bool
}

func NewDispatcher(config *CollisionConfiguration) *Dispatcher {
	return &Dispatcher{config: config}
}

// Collide emits every contact between a and b. Pairs without a supported
// shape combination produce nothing.
func (d *Dispatcher) Collide(a, b *CollisionObject, fn func(cp ContactPoint)) {
	if d.closed || a.shape == nil || b.shape == nil {
		return
	}
	switch sa := a.shape.(type) {
	case *BoxShape:
		switch sb := b.shape.(type) {
		case *BoxShape:
			if cp, ok := boxBox(sa, a.worldTransform, sb, b.worldTransform); ok {
				fn(cp)
			}
		case *TriangleMeshShape:
			boxMesh(sa, a.worldTransform, sb, b.worldTransform, fn)
		}
	case *TriangleMeshShape:
		if sb, ok := b.shape.(*BoxShape); ok {
			boxMesh(sb, b.worldTransform, sa, a.worldTransform, func(cp ContactPoint) {
				fn(cp.flip())
			})
		}
	}
}

func (d *Dispatcher) Close() { d.closed = true }

func (d *Dispatcher) Closed() bool { return d.closed }

// boxBox is a separating axis test between two oriented boxes.
func boxBox(a *BoxShape, ta Transform, b *BoxShape, tb Transform) (ContactPoint, bool) {
	axesA := ta.Axes()
	axesB := tb.Axes()
	L := tb.Origin.Sub(ta.Origin)

	testAxes := make([]mgl32.Vec3, 0, 15)
	for i := 0; i < 3; i++ {
		testAxes = append(testAxes, axesA[i], axesB[i])
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cross := axesA[i].Cross(axesB[j])
			if cross.LenSqr() > 0.0001 {
				testAxes = append(testAxes, cross.Normalize())
			}
		}
	}

	minOverlap := float32(math.MaxFloat32)
	var normal mgl32.Vec3
	for _, axis := range testAxes {
		overlap := projectBox(axesA, a.halfExtents, axis) + projectBox(axesB, b.halfExtents, axis) - absf(L.Dot(axis))
		if overlap <= 0 {
			return ContactPoint{}, false
		}
		if overlap < minOverlap {
			minOverlap = overlap
			normal = axis
		}
	}

	// Normal points from B to A.
	if L.Dot(normal) > 0 {
		normal = normal.Mul(-1)
	}

	point := boxContactPoint(ta.Origin, axesA, a.halfExtents, tb.Origin, axesB, b.halfExtents)
	return ContactPoint{
		PositionWorldOnA: point,
		PositionWorldOnB: point.Add(normal.Mul(minOverlap)),
		NormalWorldOnB:   normal,
		Distance:         -minOverlap,
		TriangleIndex:    -1,
	}, true
}

func projectBox(axes [3]mgl32.Vec3, halfExtents mgl32.Vec3, axis mgl32.Vec3) float32 {
	return absf(axes[0].Dot(axis))*halfExtents[0] +
		absf(axes[1].Dot(axis))*halfExtents[1] +
		absf(axes[2].Dot(axis))*halfExtents[2]
}

// boxContactPoint averages the corners of each box that lie inside the other.
func boxContactPoint(posA mgl32.Vec3, axesA [3]mgl32.Vec3, heA mgl32.Vec3, posB mgl32.Vec3, axesB [3]mgl32.Vec3, heB mgl32.Vec3) mgl32.Vec3 {
	var sum mgl32.Vec3
	n := 0
	for _, p := range boxCorners(posA, axesA, heA) {
		if pointInBox(p, posB, axesB, heB) {
			sum = sum.Add(p)
			n++
		}
	}
	for _, p := range boxCorners(posB, axesB, heB) {
		if pointInBox(p, posA, axesA, heA) {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return posA.Add(posB).Mul(0.5)
	}
	return sum.Mul(1.0 / float32(n))
}

func pointInBox(p, pos mgl32.Vec3, axes [3]mgl32.Vec3, halfExtents mgl32.Vec3) bool {
	d := p.Sub(pos)
	for i := 0; i < 3; i++ {
		if absf(d.Dot(axes[i])) > halfExtents[i]+0.01 {
			return false
		}
	}
	return true
}

// boxMesh tests a box against every mesh triangle near it.
func boxMesh(box *BoxShape, tBox Transform, mesh *TriangleMeshShape, tMesh Transform, fn func(cp ContactPoint)) {
	// Bounds of the box in mesh-local space for the BVH query.
	corners := box.Corners(tBox)
	lo := tMesh.InverseApply(corners[0])
	hi := lo
	for _, c := range corners[1:] {
		l := tMesh.InverseApply(c)
		lo = mgl32.Vec3{min(lo.X(), l.X()), min(lo.Y(), l.Y()), min(lo.Z(), l.Z())}
		hi = mgl32.Vec3{max(hi.X(), l.X()), max(hi.Y(), l.Y()), max(hi.Z(), l.Z())}
	}

	axes := tBox.Axes()
	mesh.ProcessTriangles(lo, hi, func(index int, tri [3]mgl32.Vec3) bool {
		world := [3]mgl32.Vec3{tMesh.Apply(tri[0]), tMesh.Apply(tri[1]), tMesh.Apply(tri[2])}
		normal, depth, ok := boxTriangle(tBox.Origin, axes, box.halfExtents, world)
		if !ok {
			return true
		}
		// Deepest box corner along -normal.
		onA := tBox.Origin
		for i := 0; i < 3; i++ {
			if axes[i].Dot(normal) > 0 {
				onA = onA.Sub(axes[i].Mul(box.halfExtents[i]))
			} else {
				onA = onA.Add(axes[i].Mul(box.halfExtents[i]))
			}
		}
		fn(ContactPoint{
			PositionWorldOnA: onA,
			PositionWorldOnB: onA.Add(normal.Mul(depth)),
			NormalWorldOnB:   normal,
			Distance:         -depth,
			TriangleIndex:    index,
		})
		return true
	})
}

// boxTriangle runs the 13-axis separating axis test between an oriented box
// and a triangle. When they intersect the contact normal is the triangle face
// normal facing the box centre, which keeps boxes from catching on the
// internal edges between neighbouring triangles.
func boxTriangle(center mgl32.Vec3, axes [3]mgl32.Vec3, halfExtents mgl32.Vec3, tri [3]mgl32.Vec3) (mgl32.Vec3, float32, bool) {
	v := [3]mgl32.Vec3{tri[0].Sub(center), tri[1].Sub(center), tri[2].Sub(center)}
	edges := [3]mgl32.Vec3{v[1].Sub(v[0]), v[2].Sub(v[1]), v[0].Sub(v[2])}

	faceNormal := edges[0].Cross(edges[1])
	if faceNormal.LenSqr() < 1e-12 {
		return mgl32.Vec3{}, 0, false // degenerate
	}
	faceNormal = faceNormal.Normalize()

	separated := func(axis mgl32.Vec3) (float32, bool) {
		p0, p1, p2 := v[0].Dot(axis), v[1].Dot(axis), v[2].Dot(axis)
		pMin := min(p0, min(p1, p2))
		pMax := max(p0, max(p1, p2))
		r := projectBox(axes, halfExtents, axis)
		if pMin > r || pMax < -r {
			return 0, true
		}
		return min(r-pMin, pMax+r), false
	}

	for i := 0; i < 3; i++ {
		if _, sep := separated(axes[i]); sep {
			return mgl32.Vec3{}, 0, false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := axes[i].Cross(edges[j])
			if axis.LenSqr() < 1e-10 {
				continue
			}
			if _, sep := separated(axis.Normalize()); sep {
				return mgl32.Vec3{}, 0, false
			}
		}
	}

	// Signed distance of the plane from the box centre along the face normal.
	d := v[0].Dot(faceNormal)
	r := projectBox(axes, halfExtents, faceNormal)
	if d > r || d < -r {
		return mgl32.Vec3{}, 0, false
	}
	if d > 0 {
		// Box centre is behind the face; push it out the back.
		return faceNormal.Mul(-1), r - d, true
	}
	return faceNormal, r + d, true
}
