package solver

import (
	"github.com/go-gl/mathgl/mgl32"
)

type CollisionFlags uint32

const (
	FlagStaticObject CollisionFlags = 1 << iota
	FlagKinematicObject
	FlagNoContactResponse
)

// CollisionObject is anything that can be registered in a DynamicsWorld.
// Rigid bodies and ghost objects embed it.
type CollisionObject struct {
	shape                  Shape
	worldTransform         Transform
	interpolationTransform Transform
	flags                  CollisionFlags
	friction               float32
	group                  uint32
	mask                   uint32
	userData               any

	world *DynamicsWorld
	proxy *proxy
	body  *RigidBody
	ghost *GhostObject
}

func (o *CollisionObject) init(shape Shape, t Transform) {
	o.shape = shape
	o.worldTransform = t
	o.interpolationTransform = t
	o.friction = 0.5
}

func (o *CollisionObject) CollisionShape() Shape { return o.shape }

func (o *CollisionObject) SetCollisionShape(s Shape) {
	o.shape = s
	if o.world != nil {
		o.world.UpdateSingleAabb(o)
	}
}

func (o *CollisionObject) WorldTransform() Transform { return o.worldTransform }

// SetWorldTransform teleports the object. Registered objects have their
// broadphase entry refreshed immediately so overlap queries see the new place.
func (o *CollisionObject) SetWorldTransform(t Transform) {
	o.worldTransform = t
	o.interpolationTransform = t
	if o.world != nil {
		o.world.UpdateSingleAabb(o)
	}
}

// InterpolationWorldTransform is the transform predicted for render time.
func (o *CollisionObject) InterpolationWorldTransform() Transform { return o.interpolationTransform }

func (o *CollisionObject) Flags() CollisionFlags { return o.flags }

func (o *CollisionObject) SetFlags(f CollisionFlags) { o.flags = f }

func (o *CollisionObject) IsStatic() bool { return o.flags&FlagStaticObject != 0 }

func (o *CollisionObject) IsKinematic() bool { return o.flags&FlagKinematicObject != 0 }

func (o *CollisionObject) IsStaticOrKinematic() bool {
	return o.flags&(FlagStaticObject|FlagKinematicObject) != 0
}

func (o *CollisionObject) HasContactResponse() bool { return o.flags&FlagNoContactResponse == 0 }

func (o *CollisionObject) Friction() float32 { return o.friction }

func (o *CollisionObject) SetFriction(f float32) { o.friction = f }

func (o *CollisionObject) UserData() any { return o.userData }

func (o *CollisionObject) SetUserData(v any) { o.userData = v }

// Group and Mask are only meaningful while the object is registered.
func (o *CollisionObject) Group() uint32 { return o.group }

func (o *CollisionObject) Mask() uint32 { return o.mask }

func (o *CollisionObject) InWorld() bool { return o.world != nil }

// RigidBody returns the owning rigid body, or nil for plain/ghost objects.
func (o *CollisionObject) RigidBody() *RigidBody { return o.body }

// Ghost returns the owning ghost object, or nil.
func (o *CollisionObject) Ghost() *GhostObject { return o.ghost }

func (o *CollisionObject) AABB() (mgl32.Vec3, mgl32.Vec3) {
	if o.shape == nil {
		return o.worldTransform.Origin, o.worldTransform.Origin
	}
	return o.shape.AABB(o.worldTransform)
}

type RigidBodyConstructionInfo struct {
	Mass                float32
	Shape               Shape
	StartWorldTransform Transform
	Friction            float32
	LinearDamping       float32
	AngularDamping      float32
}

func NewRigidBodyConstructionInfo(mass float32, shape Shape) RigidBodyConstructionInfo {
	return RigidBodyConstructionInfo{
		Mass:                mass,
		Shape:               shape,
		StartWorldTransform: IdentityTransform(),
		Friction:            0.5,
	}
}

// RigidBody is a collision object with mass. Zero mass makes it static.
type RigidBody struct {
	CollisionObject

	mass            float32
	invMass         float32
	linearVelocity  mgl32.Vec3
	angularVelocity mgl32.Vec3
	angularFactor   mgl32.Vec3
	totalForce      mgl32.Vec3
	gravity         mgl32.Vec3
	linearDamping   float32
	angularDamping  float32
}

func NewRigidBody(info RigidBodyConstructionInfo) *RigidBody {
	rb := &RigidBody{
		mass:           info.Mass,
		angularFactor:  mgl32.Vec3{1, 1, 1},
		linearDamping:  clamp01(info.LinearDamping),
		angularDamping: clamp01(info.AngularDamping),
	}
	rb.init(info.Shape, info.StartWorldTransform)
	rb.friction = info.Friction
	rb.body = rb
	if info.Mass > 0 {
		rb.invMass = 1.0 / info.Mass
	} else {
		rb.flags |= FlagStaticObject
	}
	return rb
}

func (rb *RigidBody) Mass() float32 { return rb.mass }

func (rb *RigidBody) InvMass() float32 { return rb.invMass }

// IsDynamic reports whether the solver integrates this body.
func (rb *RigidBody) IsDynamic() bool { return !rb.IsStaticOrKinematic() && rb.invMass > 0 }

func (rb *RigidBody) LinearVelocity() mgl32.Vec3 { return rb.linearVelocity }

func (rb *RigidBody) SetLinearVelocity(v mgl32.Vec3) { rb.linearVelocity = v }

func (rb *RigidBody) AngularVelocity() mgl32.Vec3 { return rb.angularVelocity }

func (rb *RigidBody) SetAngularVelocity(v mgl32.Vec3) {
	rb.angularVelocity = mgl32.Vec3{v[0] * rb.angularFactor[0], v[1] * rb.angularFactor[1], v[2] * rb.angularFactor[2]}
}

func (rb *RigidBody) AngularFactor() mgl32.Vec3 { return rb.angularFactor }

// SetAngularFactor scales angular motion per axis; (0,0,1) allows yaw only.
func (rb *RigidBody) SetAngularFactor(f mgl32.Vec3) {
	rb.angularFactor = f
	rb.SetAngularVelocity(rb.angularVelocity)
}

func (rb *RigidBody) LinearDamping() float32 { return rb.linearDamping }

// ApplyCentralForce accumulates a force applied for every substep of the next step.
func (rb *RigidBody) ApplyCentralForce(f mgl32.Vec3) {
	if !isFinite(f) {
		return
	}
	rb.totalForce = rb.totalForce.Add(f)
}

func (rb *RigidBody) ApplyCentralImpulse(impulse mgl32.Vec3) {
	if rb.invMass == 0 || !isFinite(impulse) {
		return
	}
	rb.linearVelocity = rb.linearVelocity.Add(impulse.Mul(rb.invMass))
}

func (rb *RigidBody) TotalForce() mgl32.Vec3 { return rb.totalForce }

func (rb *RigidBody) ClearForces() { rb.totalForce = mgl32.Vec3{} }

// SetCenterOfMassTransform is SetWorldTransform for bodies.
func (rb *RigidBody) SetCenterOfMassTransform(t Transform) { rb.SetWorldTransform(t) }

func (rb *RigidBody) integrateVelocities(dt float32) {
	if !rb.IsDynamic() {
		return
	}
	accel := rb.gravity.Add(rb.totalForce.Mul(rb.invMass))
	rb.linearVelocity = rb.linearVelocity.Add(accel.Mul(dt))
}

func (rb *RigidBody) applyDamping(dt float32) {
	rb.linearVelocity = rb.linearVelocity.Mul(pow32(1-rb.linearDamping, dt))
	rb.angularVelocity = rb.angularVelocity.Mul(pow32(1-rb.angularDamping, dt))
}

// GhostObject is a collision object that never responds to contacts but keeps
// a cache of the objects whose bounds overlap its own.
type GhostObject struct {
	CollisionObject

	overlapping []*CollisionObject
}

func NewGhostObject() *GhostObject {
	g := &GhostObject{}
	g.init(nil, IdentityTransform())
	g.ghost = g
	return g
}

func (g *GhostObject) NumOverlappingObjects() int { return len(g.overlapping) }

// OverlappingObjects returns the current overlap cache. The slice is owned by
// the ghost and only valid until the next broadphase update.
func (g *GhostObject) OverlappingObjects() []*CollisionObject { return g.overlapping }

func (g *GhostObject) addOverlappingObject(o *CollisionObject) {
	for _, existing := range g.overlapping {
		if existing == o {
			return
		}
	}
	g.overlapping = append(g.overlapping, o)
}

func (g *GhostObject) removeOverlappingObject(o *CollisionObject) {
	for i, existing := range g.overlapping {
		if existing == o {
			last := len(g.overlapping) - 1
			g.overlapping[i] = g.overlapping[last]
			g.overlapping[last] = nil
			g.overlapping = g.overlapping[:last]
			return
		}
	}
}

func clamp01(v float32) float32 {
	return max(0, min(1, v))
}
