package solver

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CollisionConfiguration holds the tunables shared by the dispatcher and solver.
type CollisionConfiguration struct {
	// SolverIterations is the number of contact passes per substep.
	SolverIterations int
	// LinearSlop is penetration left uncorrected to keep resting contacts stable.
	LinearSlop float32
	closed     bool
}

func NewDefaultCollisionConfiguration() *CollisionConfiguration {
	return &CollisionConfiguration{
		SolverIterations: 4,
		LinearSlop:       0.001,
	}
}

func (c *CollisionConfiguration) Close() { c.closed = true }

func (c *CollisionConfiguration) Closed() bool { return c.closed }

// SequentialImpulseSolver resolves contacts one pair at a time: positional
// correction along the contact normal, an inelastic normal impulse and a
// Coulomb friction impulse.
type SequentialImpulseSolver struct {
	closed bool
}

func NewSequentialImpulseSolver() *SequentialImpulseSolver {
	return &SequentialImpulseSolver{}
}

func (s *SequentialImpulseSolver) Close() { s.closed = true }

func (s *SequentialImpulseSolver) Closed() bool { return s.closed }

// solveGroup runs the configured number of passes over every dynamic body.
func (s *SequentialImpulseSolver) solveGroup(bodies []*RigidBody, bp *Broadphase, d *Dispatcher, cfg *CollisionConfiguration) {
	if s.closed {
		return
	}
	iterations := max(1, cfg.SolverIterations)
	for iter := 0; iter < iterations; iter++ {
		resolved := 0
		for _, a := range bodies {
			resolved += s.solveBody(a, bp, d, cfg)
		}
		if resolved == 0 {
			return
		}
	}
}

func (s *SequentialImpulseSolver) solveBody(a *RigidBody, bp *Broadphase, d *Dispatcher, cfg *CollisionConfiguration) int {
	p := a.proxy
	if p == nil || !a.HasContactResponse() {
		return 0
	}
	resolved := 0
	for _, other := range bp.query(p.min, p.max) {
		b := other.obj
		if b == &a.CollisionObject || !NeedsCollision(&a.CollisionObject, b) || !b.HasContactResponse() {
			continue
		}

		var deepest ContactPoint
		found := false
		d.Collide(&a.CollisionObject, b, func(cp ContactPoint) {
			if !found || cp.Distance < deepest.Distance {
				deepest = cp
				found = true
			}
		})
		if !found {
			continue
		}
		s.resolve(a, b, deepest, cfg)
		resolved++
	}
	return resolved
}

func (s *SequentialImpulseSolver) resolve(a *RigidBody, b *CollisionObject, cp ContactPoint, cfg *CollisionConfiguration) {
	n := cp.NormalWorldOnB
	depth := cp.Depth() - cfg.LinearSlop

	invA := a.invMass
	var invB float32
	var vB mgl32.Vec3
	bBody := b.body
	if bBody != nil && bBody.IsDynamic() {
		invB = bBody.invMass
		vB = bBody.linearVelocity
	}
	invSum := invA + invB
	if invSum == 0 {
		return
	}

	if depth > 0 {
		a.worldTransform.Origin = a.worldTransform.Origin.Add(n.Mul(depth * invA / invSum))
		if invB > 0 {
			bBody.worldTransform.Origin = bBody.worldTransform.Origin.Sub(n.Mul(depth * invB / invSum))
		}
	}

	rel := a.linearVelocity.Sub(vB)
	vn := rel.Dot(n)
	if vn < 0 {
		jn := -vn / invSum
		a.linearVelocity = a.linearVelocity.Add(n.Mul(jn * invA))
		if invB > 0 {
			bBody.linearVelocity = bBody.linearVelocity.Sub(n.Mul(jn * invB))
		}

		mu := a.friction * b.friction
		tangent := rel.Sub(n.Mul(vn))
		if speed := tangent.Len(); speed > 1e-6 && mu > 0 {
			jt := min(speed/invSum, mu*jn)
			dir := tangent.Mul(1 / speed)
			a.linearVelocity = a.linearVelocity.Sub(dir.Mul(jt * invA))
			if invB > 0 {
				bBody.linearVelocity = bBody.linearVelocity.Add(dir.Mul(jt * invB))
			}
		}
	}

	if p := a.proxy; p != nil && a.world != nil {
		a.world.broadphase.setAabb(p)
	}
	if invB > 0 && bBody.proxy != nil && bBody.world != nil {
		bBody.world.broadphase.setAabb(bBody.proxy)
	}
}
