package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/dynworld/solver/bvh"
)

type ShapeType int

const (
	ShapeBox ShapeType = iota
	ShapeTriangleMesh
)

func (s ShapeType) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeTriangleMesh:
		return "triangle-mesh"
	default:
		return "unknown"
	}
}

// Shape is the collision geometry of an object, expressed in its local space.
type Shape interface {
	Type() ShapeType
	// AABB returns the world bounds of the shape placed at t.
	AABB(t Transform) (mgl32.Vec3, mgl32.Vec3)
}

// BoxShape is a box centred on its local origin.
type BoxShape struct {
	halfExtents mgl32.Vec3
}

func NewBoxShape(halfExtents mgl32.Vec3) *BoxShape {
	return &BoxShape{halfExtents: halfExtents}
}

func (b *BoxShape) Type() ShapeType { return ShapeBox }

func (b *BoxShape) HalfExtents() mgl32.Vec3 { return b.halfExtents }

func (b *BoxShape) AABB(t Transform) (mgl32.Vec3, mgl32.Vec3) {
	axes := t.Axes()
	var ext mgl32.Vec3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ext[i] += absf(axes[j][i]) * b.halfExtents[j]
		}
	}
	return t.Origin.Sub(ext), t.Origin.Add(ext)
}

// Corners returns the eight world-space corners of the box placed at t.
func (b *BoxShape) Corners(t Transform) [8]mgl32.Vec3 {
	return boxCorners(t.Origin, t.Axes(), b.halfExtents)
}

func boxCorners(pos mgl32.Vec3, axes [3]mgl32.Vec3, halfExtents mgl32.Vec3) [8]mgl32.Vec3 {
	var corners [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		p := pos
		for a := 0; a < 3; a++ {
			off := axes[a].Mul(halfExtents[a])
			if i&(1<<a) != 0 {
				p = p.Add(off)
			} else {
				p = p.Sub(off)
			}
		}
		corners[i] = p
	}
	return corners
}

// TriangleIndexVertexArray owns a vertex buffer (xyz triples) and an index
// buffer (one triple per triangle). Shapes built over it only read through it,
// so the buffers live exactly as long as the array.
type TriangleIndexVertexArray struct {
	vertices []float32
	indices  []uint32
}

// NewTriangleIndexVertexArray deep-copies the given buffers.
func NewTriangleIndexVertexArray(vertices []float32, indices []uint32) *TriangleIndexVertexArray {
	m := &TriangleIndexVertexArray{
		vertices: make([]float32, len(vertices)),
		indices:  make([]uint32, len(indices)),
	}
	copy(m.vertices, vertices)
	copy(m.indices, indices)
	return m
}

func (m *TriangleIndexVertexArray) NumVertices() int { return len(m.vertices) / 3 }

func (m *TriangleIndexVertexArray) NumTriangles() int { return len(m.indices) / 3 }

func (m *TriangleIndexVertexArray) Vertex(i uint32) mgl32.Vec3 {
	return mgl32.Vec3{m.vertices[i*3], m.vertices[i*3+1], m.vertices[i*3+2]}
}

// Triangle returns the local-space corners of triangle i.
func (m *TriangleIndexVertexArray) Triangle(i int) [3]mgl32.Vec3 {
	return [3]mgl32.Vec3{
		m.Vertex(m.indices[i*3]),
		m.Vertex(m.indices[i*3+1]),
		m.Vertex(m.indices[i*3+2]),
	}
}

// Release drops both buffers. The array must not be used afterwards.
func (m *TriangleIndexVertexArray) Release() {
	m.vertices = nil
	m.indices = nil
}

// TriangleMeshShape is a static concave shape over a triangle array, with a
// BVH over the triangles for mid-phase queries.
type TriangleMeshShape struct {
	mesh *TriangleIndexVertexArray
	tree *bvh.Tree
}

func NewTriangleMeshShape(mesh *TriangleIndexVertexArray) *TriangleMeshShape {
	boxes := make([][2]mgl32.Vec3, mesh.NumTriangles())
	for i := range boxes {
		tri := mesh.Triangle(i)
		lo, hi := tri[0], tri[0]
		for _, v := range tri[1:] {
			lo = mgl32.Vec3{min(lo.X(), v.X()), min(lo.Y(), v.Y()), min(lo.Z(), v.Z())}
			hi = mgl32.Vec3{max(hi.X(), v.X()), max(hi.Y(), v.Y()), max(hi.Z(), v.Z())}
		}
		boxes[i] = [2]mgl32.Vec3{lo, hi}
	}
	return &TriangleMeshShape{mesh: mesh, tree: bvh.Build(boxes)}
}

func (s *TriangleMeshShape) Type() ShapeType { return ShapeTriangleMesh }

func (s *TriangleMeshShape) Mesh() *TriangleIndexVertexArray { return s.mesh }

func (s *TriangleMeshShape) AABB(t Transform) (mgl32.Vec3, mgl32.Vec3) {
	lo, hi, ok := s.tree.Bounds()
	if !ok {
		return t.Origin, t.Origin
	}
	center := lo.Add(hi).Mul(0.5)
	half := hi.Sub(lo).Mul(0.5)
	return NewBoxShape(half).AABB(t.Mul(NewTransform(center, mgl32.QuatIdent())))
}

// ProcessTriangles calls fn with every triangle whose local bounds overlap
// [localMin, localMax]. Iteration stops when fn returns false.
func (s *TriangleMeshShape) ProcessTriangles(localMin, localMax mgl32.Vec3, fn func(index int, tri [3]mgl32.Vec3) bool) {
	if s.mesh == nil {
		return
	}
	s.tree.Query(localMin, localMax, func(item int) bool {
		return fn(item, s.mesh.Triangle(item))
	})
}

// Release detaches the shape from its mesh. The mesh itself is released by its owner.
func (s *TriangleMeshShape) Release() {
	s.mesh = nil
	s.tree = &bvh.Tree{}
}
