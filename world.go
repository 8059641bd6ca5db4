package dynworld

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/dynworld/solver"
	"github.com/gekko3d/dynworld/tuning"
)

// World owns the physics context: collision configuration, dispatcher,
// broadphase, solver and dynamics world, plus the optional debug renderer.
// Slabs and entities are registered in it but owned by the caller.
//
// A World is not safe for concurrent use.
type World struct {
	id          uuid.UUID
	log         Logger
	tuning      tuning.Source
	maxSubSteps int
	strict      bool
	cellSize    float32

	config        *solver.CollisionConfiguration
	dispatcher    *solver.Dispatcher
	broadphase    *solver.Broadphase
	solver        *solver.SequentialImpulseSolver
	dynamics      *solver.DynamicsWorld
	ghostCallback *solver.GhostPairCallback
	debugRenderer *debugRenderer

	slab     *Slab
	entities map[*Entity]struct{}
	closed   bool
}

// NewWorld builds a world with gravity along the vertical (Z) axis.
func NewWorld(gravity float32, opts ...Option) (*World, error) {
	w := &World{
		id:          uuid.New(),
		log:         NewNopLogger(),
		tuning:      tuning.NewStatic(tuning.Default()),
		maxSubSteps: 1,
		cellSize:    4,
		entities:    make(map[*Entity]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if math.IsNaN(float64(gravity)) || math.IsInf(float64(gravity), 0) {
		return nil, fmt.Errorf("create world: gravity %v is not finite", gravity)
	}
	if w.cellSize <= 0 || math.IsInf(float64(w.cellSize), 0) {
		return nil, fmt.Errorf("create world: broadphase cell size %v must be positive", w.cellSize)
	}

	w.config = solver.NewDefaultCollisionConfiguration()
	w.dispatcher = solver.NewDispatcher(w.config)
	w.broadphase = solver.NewBroadphase(w.cellSize)
	w.solver = solver.NewSequentialImpulseSolver()
	w.dynamics = solver.NewDynamicsWorld(w.dispatcher, w.broadphase, w.solver, w.config)
	w.dynamics.SetGravity(mgl32.Vec3{0, 0, gravity})

	w.ghostCallback = solver.NewGhostPairCallback()
	w.broadphase.SetOverlappingPairCallback(w.ghostCallback)

	w.log.Debugf("world %s created: gravity=%.3f max_substeps=%d", w.id, gravity, w.maxSubSteps)
	return w, nil
}

func (w *World) ID() uuid.UUID {
	if w == nil {
		return uuid.Nil
	}
	return w.id
}

// Tuning returns the tuning in effect right now, or the defaults on a nil world.
func (w *World) Tuning() tuning.Tuning {
	if w == nil || w.tuning == nil {
		return tuning.Default()
	}
	return w.tuning.Current()
}

// Step advances the simulation by dt seconds in fixed substeps of fixedRate
// seconds, running at most the configured number of substeps. It returns the
// number of substeps simulated.
func (w *World) Step(dt, fixedRate float32) (int, error) {
	if w == nil {
		return 0, ErrInvalidHandle
	}
	if w.closed {
		return 0, ErrClosed
	}
	if !(dt >= 0) || math.IsInf(float64(dt), 0) {
		return 0, fmt.Errorf("step: invalid dt %v", dt)
	}
	if !(fixedRate > 0) || math.IsInf(float64(fixedRate), 0) {
		return 0, fmt.Errorf("step: invalid fixed rate %v", fixedRate)
	}
	return w.dynamics.StepSimulation(dt, w.maxSubSteps, fixedRate), nil
}

// StepRenderOnly moves interpolated poses forward by dt without running a
// physics substep.
func (w *World) StepRenderOnly(dt float32) error {
	if w == nil {
		return ErrInvalidHandle
	}
	if w.closed {
		return ErrClosed
	}
	if !(dt >= 0) || math.IsInf(float64(dt), 0) {
		return fmt.Errorf("step render only: invalid dt %v", dt)
	}
	w.dynamics.StepRenderOnly(dt)
	return nil
}

// Slab returns the live slab, or nil.
func (w *World) Slab() *Slab {
	if w == nil {
		return nil
	}
	return w.slab
}

// BodyCount is the number of objects registered in the dynamics world.
func (w *World) BodyCount() int {
	if w == nil || w.closed {
		return 0
	}
	return w.dynamics.NumCollisionObjects()
}

// StaticBodyCount is the number of registered zero-mass bodies.
func (w *World) StaticBodyCount() int {
	if w == nil || w.closed {
		return 0
	}
	n := 0
	for _, o := range w.dynamics.CollisionObjects() {
		if o.IsStatic() {
			n++
		}
	}
	return n
}

// CountInGroup is the number of registered objects whose group intersects g.
func (w *World) CountInGroup(g CollisionGroup) int {
	if w == nil || w.closed {
		return 0
	}
	n := 0
	for _, o := range w.dynamics.CollisionObjects() {
		if CollisionGroup(o.Group())&g != 0 {
			n++
		}
	}
	return n
}

// RemoveEntity unregisters e and its jump sensor from the world. The entity
// handle stays valid until Destroy.
func (w *World) RemoveEntity(e *Entity) error {
	if w == nil || e == nil || e.world != w {
		return ErrInvalidHandle
	}
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.entities[e]; !ok {
		return ErrInvalidHandle
	}
	w.dynamics.RemoveRigidBody(e.body)
	if e.sensor != nil {
		w.dynamics.RemoveCollisionObject(&e.sensor.ghost.CollisionObject)
	}
	delete(w.entities, e)
	w.log.Debugf("entity %s removed", e.id)
	return nil
}

func (w *World) addBody(b *solver.RigidBody, g CollisionGroup) error {
	return w.dynamics.AddRigidBody(b, uint32(g), uint32(g.Mask()))
}

func (w *World) addObject(o *solver.CollisionObject, g CollisionGroup) error {
	return w.dynamics.AddCollisionObject(o, uint32(g), uint32(g.Mask()))
}

// Close tears the world down in reverse order of construction. Slabs and
// entities still registered are unregistered but not destroyed. Closing an
// already closed world does nothing.
func (w *World) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true

	if w.dynamics != nil {
		w.dynamics.Close()
		w.dynamics = nil
		w.log.Debugf("world %s: dynamics world closed", w.id)
	}
	if w.solver != nil {
		w.solver.Close()
		w.solver = nil
		w.log.Debugf("world %s: solver closed", w.id)
	}
	if w.broadphase != nil {
		w.broadphase.Close()
		w.broadphase = nil
		w.log.Debugf("world %s: broadphase closed", w.id)
	}
	if w.dispatcher != nil {
		w.dispatcher.Close()
		w.dispatcher = nil
		w.log.Debugf("world %s: dispatcher closed", w.id)
	}
	if w.config != nil {
		w.config.Close()
		w.config = nil
		w.log.Debugf("world %s: collision configuration closed", w.id)
	}
	if w.ghostCallback != nil {
		w.ghostCallback = nil
		w.log.Debugf("world %s: ghost pair callback released", w.id)
	}
	if w.debugRenderer != nil {
		w.debugRenderer.detach()
		w.debugRenderer = nil
		w.log.Debugf("world %s: debug renderer released", w.id)
	}

	w.slab = nil
	w.entities = nil
	return nil
}
