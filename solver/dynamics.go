package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DynamicsWorld owns the simulation state of every registered object. It does
// not own the objects themselves: callers add and remove them and are
// responsible for removing an object before dropping it.
type DynamicsWorld struct {
	dispatcher *Dispatcher
	broadphase *Broadphase
	solver     *SequentialImpulseSolver
	config     *CollisionConfiguration

	gravity mgl32.Vec3
	objects []*CollisionObject

	localTime  float32
	renderTime float32
	fixedStep  float32

	debugDrawer DebugDrawer
	closed      bool
}

func NewDynamicsWorld(dispatcher *Dispatcher, broadphase *Broadphase, solver *SequentialImpulseSolver, config *CollisionConfiguration) *DynamicsWorld {
	return &DynamicsWorld{
		dispatcher: dispatcher,
		broadphase: broadphase,
		solver:     solver,
		config:     config,
		gravity:    mgl32.Vec3{0, 0, -10},
		fixedStep:  1.0 / 60.0,
	}
}

func (w *DynamicsWorld) Broadphase() *Broadphase { return w.broadphase }

func (w *DynamicsWorld) Gravity() mgl32.Vec3 { return w.gravity }

// SetGravity updates the world gravity and every registered dynamic body.
func (w *DynamicsWorld) SetGravity(g mgl32.Vec3) {
	w.gravity = g
	for _, o := range w.objects {
		if o.body != nil && o.body.IsDynamic() {
			o.body.gravity = g
		}
	}
}

// AddRigidBody registers a body with the given collision group and mask.
func (w *DynamicsWorld) AddRigidBody(b *RigidBody, group, mask uint32) error {
	if err := w.AddCollisionObject(&b.CollisionObject, group, mask); err != nil {
		return err
	}
	if b.IsDynamic() {
		b.gravity = w.gravity
	}
	return nil
}

// AddCollisionObject registers any collision object. Adding an object that
// is already registered is a no-op.
func (w *DynamicsWorld) AddCollisionObject(o *CollisionObject, group, mask uint32) error {
	if w.closed {
		return ErrClosed
	}
	if o.world == w {
		return nil
	}
	o.group = group
	o.mask = mask
	o.world = w
	w.objects = append(w.objects, o)
	w.broadphase.createProxy(o)
	return nil
}

// RemoveCollisionObject unregisters o. Unknown objects are ignored.
func (w *DynamicsWorld) RemoveCollisionObject(o *CollisionObject) {
	if o == nil || o.world != w {
		return
	}
	for i, existing := range w.objects {
		if existing == o {
			w.objects = append(w.objects[:i], w.objects[i+1:]...)
			break
		}
	}
	if !w.broadphase.closed {
		w.broadphase.destroyProxy(o)
	}
	o.proxy = nil
	o.world = nil
}

func (w *DynamicsWorld) RemoveRigidBody(b *RigidBody) {
	if b == nil {
		return
	}
	w.RemoveCollisionObject(&b.CollisionObject)
}

// CollisionObjects returns a snapshot of the registered objects in insertion order.
func (w *DynamicsWorld) CollisionObjects() []*CollisionObject {
	out := make([]*CollisionObject, len(w.objects))
	copy(out, w.objects)
	return out
}

func (w *DynamicsWorld) NumCollisionObjects() int { return len(w.objects) }

// UpdateSingleAabb refreshes the broadphase entry of a registered object.
func (w *DynamicsWorld) UpdateSingleAabb(o *CollisionObject) {
	if w.closed || o.world != w || o.proxy == nil {
		return
	}
	w.broadphase.setAabb(o.proxy)
}

// StepSimulation advances the world by dt using fixed substeps of fixedStep,
// running at most maxSubSteps of them. Leftover time is kept for the next call
// and used to predict interpolation transforms. Forces are cleared afterwards.
// It returns the number of substeps simulated.
func (w *DynamicsWorld) StepSimulation(dt float32, maxSubSteps int, fixedStep float32) int {
	if w.closed {
		return 0
	}

	numSteps := 0
	if maxSubSteps > 0 {
		w.fixedStep = fixedStep
		w.localTime += dt
		if w.localTime >= fixedStep {
			// float64 keeps the step count finite for tiny steps and huge spikes.
			steps := float64(w.localTime) / float64(fixedStep)
			if steps > float64(maxSubSteps) {
				// Time beyond the substep budget is dropped, not carried.
				numSteps = maxSubSteps
				w.localTime = float32(math.Mod(float64(w.localTime), float64(fixedStep)))
				if !(w.localTime >= 0 && w.localTime < fixedStep) {
					w.localTime = 0
				}
			} else {
				numSteps = int(steps)
				w.localTime -= float32(numSteps) * fixedStep
			}
		}
	} else {
		// Variable step: simulate exactly dt.
		w.fixedStep = dt
		w.localTime = 0
		maxSubSteps = 1
		if dt > 1e-7 {
			numSteps = 1
		}
	}
	w.renderTime = 0

	clamped := min(numSteps, maxSubSteps)
	for i := 0; i < clamped; i++ {
		w.internalSingleStep(w.fixedStep)
	}

	w.synchronizeInterpolation()
	w.clearForces()
	return clamped
}

// StepRenderOnly moves interpolation time forward without simulating.
func (w *DynamicsWorld) StepRenderOnly(dt float32) {
	if w.closed || dt <= 0 {
		return
	}
	w.renderTime += dt
	w.synchronizeInterpolation()
}

func (w *DynamicsWorld) internalSingleStep(h float32) {
	bodies := w.dynamicBodies()

	for _, b := range bodies {
		b.integrateVelocities(h)
		b.applyDamping(h)
	}
	for _, b := range bodies {
		next := integrateTransform(b.worldTransform, b.linearVelocity, b.angularVelocity, h)
		if !isFinite(next.Origin) {
			b.linearVelocity = mgl32.Vec3{}
			continue
		}
		b.worldTransform = next
		w.broadphase.setAabb(b.proxy)
	}

	w.solver.solveGroup(bodies, w.broadphase, w.dispatcher, w.config)
}

func (w *DynamicsWorld) dynamicBodies() []*RigidBody {
	var bodies []*RigidBody
	for _, o := range w.objects {
		if o.body != nil && o.body.IsDynamic() && o.proxy != nil {
			bodies = append(bodies, o.body)
		}
	}
	return bodies
}

func (w *DynamicsWorld) synchronizeInterpolation() {
	ahead := min(w.localTime+w.renderTime, w.fixedStep)
	for _, o := range w.objects {
		if o.body != nil && o.body.IsDynamic() {
			o.interpolationTransform = integrateTransform(o.worldTransform, o.body.linearVelocity, o.body.angularVelocity, ahead)
			continue
		}
		o.interpolationTransform = o.worldTransform
	}
}

func (w *DynamicsWorld) clearForces() {
	for _, o := range w.objects {
		if o.body != nil {
			o.body.ClearForces()
		}
	}
}

// ContactResultCallback receives each contact found by ContactPairTest.
type ContactResultCallback func(cp ContactPoint, a, b *CollisionObject)

// ContactPairTest runs the narrowphase between a and b right now, regardless
// of collision filtering, and reports every contact.
func (w *DynamicsWorld) ContactPairTest(a, b *CollisionObject, cb ContactResultCallback) {
	if w.closed || a == nil || b == nil {
		return
	}
	w.dispatcher.Collide(a, b, func(cp ContactPoint) {
		cb(cp, a, b)
	})
}

// Close drops every registration. Objects stay valid but unregistered.
func (w *DynamicsWorld) Close() {
	if w.closed {
		return
	}
	for _, o := range w.objects {
		o.world = nil
		o.proxy = nil
	}
	w.objects = nil
	w.debugDrawer = nil
	w.closed = true
}

func (w *DynamicsWorld) Closed() bool { return w.closed }
