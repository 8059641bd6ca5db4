package dynworld

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/dynworld/solver"
)

// Slab is the static triangle-mesh terrain of a world. A slab is immutable
// once built; changing the terrain means building a new one with UpdateSlab.
type Slab struct {
	id     uuid.UUID
	world  *World
	origin mgl32.Vec3

	// mesh owns the vertex and index buffers the shape reads from; both are
	// released together.
	mesh  *solver.TriangleIndexVertexArray
	shape *solver.TriangleMeshShape
	body  *solver.RigidBody
}

// UpdateSlab replaces the world's terrain. prev must be the world's live slab
// (or nil when it has none); it is unregistered and destroyed before the new
// slab is built, so the world never holds two. The buffers are validated
// first and copied: on error nothing changes and prev stays live.
//
// vertices holds x,y,z triples, indices holds one triple per triangle. The
// mesh is placed at origin lowered by the tuned half thickness so authored
// ground level lines up with the slab's top face.
func UpdateSlab(w *World, prev *Slab, origin mgl32.Vec3, vertices []float32, indices []uint32) (*Slab, error) {
	if w == nil {
		return nil, ErrInvalidHandle
	}
	if w.closed {
		return nil, ErrClosed
	}
	if prev != nil && (prev.world != w || w.slab != prev) {
		return nil, fmt.Errorf("update slab: previous slab: %w", ErrInvalidHandle)
	}
	if prev == nil && w.slab != nil {
		return nil, fmt.Errorf("update slab %s: %w", w.slab.id, ErrSlabAlreadyLive)
	}
	if err := validateMesh(vertices, indices); err != nil {
		return nil, fmt.Errorf("update slab: %w", err)
	}

	if prev != nil {
		prev.destroy()
		w.log.Debugf("slab %s destroyed", prev.id)
	}

	t := w.tuning.Current().Slab
	s := &Slab{
		id:     uuid.New(),
		world:  w,
		origin: origin,
		mesh:   solver.NewTriangleIndexVertexArray(vertices, indices),
	}
	s.shape = solver.NewTriangleMeshShape(s.mesh)

	info := solver.NewRigidBodyConstructionInfo(0, s.shape)
	info.StartWorldTransform = solver.NewTransform(origin.Sub(mgl32.Vec3{0, 0, t.HalfThickness}), mgl32.QuatIdent())
	info.Friction = t.Friction
	s.body = solver.NewRigidBody(info)
	s.body.SetUserData(KindSlab)

	if err := w.addBody(s.body, GroupWorld); err != nil {
		s.release()
		return nil, fmt.Errorf("update slab: %w", err)
	}
	w.slab = s
	w.log.Debugf("slab %s created: %d triangles at %v", s.id, s.TriangleCount(), origin)
	return s, nil
}

func validateMesh(vertices []float32, indices []uint32) error {
	if len(vertices)%3 != 0 {
		return fmt.Errorf("%w: %d vertex floats is not a multiple of 3", ErrInvalidMesh, len(vertices))
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidMesh, len(indices))
	}
	numVerts := uint32(len(vertices) / 3)
	for i, idx := range indices {
		if idx >= numVerts {
			return fmt.Errorf("%w: index %d references vertex %d of %d", ErrInvalidMesh, i, idx, numVerts)
		}
	}
	for i, v := range vertices {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: vertex component %d is not finite", ErrInvalidMesh, i)
		}
	}
	return nil
}

// destroy unregisters the slab and frees its geometry.
func (s *Slab) destroy() {
	if w := s.world; w != nil {
		if w.dynamics != nil {
			w.dynamics.RemoveRigidBody(s.body)
		}
		if w.slab == s {
			w.slab = nil
		}
	}
	s.release()
}

func (s *Slab) release() {
	if s.shape != nil {
		s.shape.Release()
	}
	if s.mesh != nil {
		s.mesh.Release()
	}
	s.shape = nil
	s.mesh = nil
	s.body = nil
	s.world = nil
}

func (s *Slab) ID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.id
}

func (s *Slab) Origin() mgl32.Vec3 {
	if s == nil {
		return mgl32.Vec3{}
	}
	return s.origin
}

func (s *Slab) TriangleCount() int {
	if s == nil || s.mesh == nil {
		return 0
	}
	return s.mesh.NumTriangles()
}

// Live reports whether the slab is still registered in its world.
func (s *Slab) Live() bool {
	return s != nil && s.world != nil && s.world.slab == s
}
