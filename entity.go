package dynworld

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/dynworld/solver"
)

// EntityMass is the mass of every entity body.
const EntityMass = 2.0

type JumpAction int

const (
	JumpNone JumpAction = iota
	JumpUnconditional
	// JumpIfSensorUnoccluded jumps only when the jump sensor, polled after
	// the new pose is written, reports no world geometry ahead.
	JumpIfSensorUnoccluded
)

func (a JumpAction) String() string {
	switch a {
	case JumpNone:
		return "none"
	case JumpUnconditional:
		return "unconditional"
	case JumpIfSensorUnoccluded:
		return "if-sensor-unoccluded"
	default:
		return fmt.Sprintf("JumpAction(%d)", int(a))
	}
}

type EntityDesc struct {
	Center        mgl32.Vec3
	HalfExtents   mgl32.Vec3
	Friction      float32
	LinearDamping float32
	JumpSensor    bool
}

// NewEntityDesc fills friction and damping from the world's tuning. A nil
// world gets the default tuning; NewEntity then rejects it.
func NewEntityDesc(w *World, center, halfExtents mgl32.Vec3, jumpSensor bool) EntityDesc {
	t := w.Tuning().Simulation
	return EntityDesc{
		Center:        center,
		HalfExtents:   halfExtents,
		Friction:      t.Friction,
		LinearDamping: t.LinearDamping,
		JumpSensor:    jumpSensor,
	}
}

// Pose is an entity's interpolated placement as read by the render loop.
type Pose struct {
	Position mgl32.Vec3
	// Forward is the horizontal facing direction.
	Forward   mgl32.Vec2
	HasSensor bool
	// Occluded reports whether the jump sensor touched world geometry. Always
	// false without a sensor.
	Occluded bool
}

// Entity is a dynamic box that only rotates about the vertical axis, with an
// optional jump sensor.
type Entity struct {
	id          uuid.UUID
	world       *World
	halfExtents mgl32.Vec3
	shape       *solver.BoxShape
	body        *solver.RigidBody
	sensor      *jumpSensor
	destroyed   bool
}

func NewEntity(w *World, desc EntityDesc) (*Entity, error) {
	if w == nil {
		return nil, ErrInvalidHandle
	}
	if w.closed {
		return nil, ErrClosed
	}
	he := desc.HalfExtents
	if !finite3(he) || he[0] <= 0 || he[1] <= 0 || he[2] <= 0 {
		return nil, fmt.Errorf("create entity: half extents %v must be positive", he)
	}
	if !finite3(desc.Center) {
		return nil, fmt.Errorf("create entity: center %v is not finite", desc.Center)
	}

	e := &Entity{
		id:          uuid.New(),
		world:       w,
		halfExtents: he,
		shape:       solver.NewBoxShape(he),
	}

	info := solver.NewRigidBodyConstructionInfo(EntityMass, e.shape)
	info.Friction = desc.Friction
	info.LinearDamping = desc.LinearDamping
	info.StartWorldTransform = solver.NewTransform(desc.Center, mgl32.QuatIdent())
	e.body = solver.NewRigidBody(info)
	e.body.SetAngularFactor(solver.AxisUp)
	e.body.SetUserData(KindEntity)

	if err := w.addBody(e.body, GroupEntities); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}

	if desc.JumpSensor {
		e.sensor = newJumpSensor(he)
		e.sensor.place(he, e.body.WorldTransform(), w.tuning.Current().PerTick)
		if err := w.addObject(&e.sensor.ghost.CollisionObject, GroupJumpSensor); err != nil {
			w.dynamics.RemoveRigidBody(e.body)
			return nil, fmt.Errorf("create entity: jump sensor: %w", err)
		}
	}

	w.entities[e] = struct{}{}
	w.log.Debugf("entity %s created at %v (sensor=%t)", e.id, desc.Center, desc.JumpSensor)
	return e, nil
}

func (e *Entity) ID() uuid.UUID {
	if e == nil {
		return uuid.Nil
	}
	return e.id
}

func (e *Entity) HalfExtents() mgl32.Vec3 {
	if e == nil {
		return mgl32.Vec3{}
	}
	return e.halfExtents
}

func (e *Entity) HasJumpSensor() bool { return e != nil && e.sensor != nil }

// Body exposes the underlying rigid body for inspection. Nil on a nil entity.
func (e *Entity) Body() *solver.RigidBody {
	if e == nil {
		return nil
	}
	return e.body
}

func (e *Entity) check() error {
	if e == nil || e.destroyed || e.world == nil {
		return ErrInvalidHandle
	}
	if e.world.closed {
		return ErrClosed
	}
	return nil
}

// Pose reads the interpolated transform. With a jump sensor, the sensor is
// placed against the current body transform and polled, which consumes its
// occlusion bit.
func (e *Entity) Pose() (Pose, error) {
	if err := e.check(); err != nil {
		return Pose{}, err
	}
	t := e.body.InterpolationWorldTransform()
	p := Pose{
		Position: t.Origin,
		Forward:  mgl32.Vec2(forwardOf(t.Rotation)),
	}
	if e.sensor != nil {
		p.HasSensor = true
		e.placeSensor()
		occluded, err := e.sensor.poll(e.world)
		if err != nil {
			return p, err
		}
		p.Occluded = occluded
	}
	return p, nil
}

// Position reads the interpolated position only. The sensor is left alone.
func (e *Entity) Position() (mgl32.Vec3, error) {
	if err := e.check(); err != nil {
		return mgl32.Vec3{}, err
	}
	return e.body.InterpolationWorldTransform().Origin, nil
}

// SetPose teleports the entity to pos facing heading radians about the
// vertical axis, then moves the jump sensor, then applies velocity as a force
// for the next step. A jump adds the tuned jump force on the vertical axis.
// The order guarantees the sensor is never evaluated against a stale pose.
func (e *Entity) SetPose(pos mgl32.Vec3, heading float32, velocity mgl32.Vec3, jump JumpAction) error {
	if err := e.check(); err != nil {
		return err
	}
	if !finite3(pos) || !finite3(velocity) || !finite(heading) {
		return fmt.Errorf("set pose: non-finite input")
	}
	if jump < JumpNone || jump > JumpIfSensorUnoccluded {
		return fmt.Errorf("set pose: unknown jump action %d", jump)
	}
	tun := e.world.tuning.Current().PerTick

	e.body.SetCenterOfMassTransform(solver.NewTransform(pos, HeadingToQuat(heading)))
	if e.sensor != nil {
		e.sensor.place(e.halfExtents, e.body.WorldTransform(), tun)
	}

	force := velocity
	switch jump {
	case JumpNone:
	case JumpUnconditional:
		force[2] += tun.JumpForce
	case JumpIfSensorUnoccluded:
		if e.sensor == nil {
			e.world.log.Debugf("entity %s: conditional jump without a jump sensor", e.id)
			break
		}
		occluded, err := e.sensor.poll(e.world)
		if err != nil {
			return fmt.Errorf("set pose: %w", err)
		}
		if !occluded {
			force[2] += tun.JumpForce
		}
	}

	e.body.ApplyCentralForce(force)
	return nil
}

// PlaceJumpSensor moves the sensor to follow the entity's current transform.
func (e *Entity) PlaceJumpSensor() error {
	if err := e.check(); err != nil {
		return err
	}
	if e.sensor == nil {
		return fmt.Errorf("place jump sensor: %w", ErrInvalidHandle)
	}
	e.placeSensor()
	return nil
}

func (e *Entity) placeSensor() {
	e.sensor.place(e.halfExtents, e.body.WorldTransform(), e.world.tuning.Current().PerTick)
}

// PollJumpSensor reports and clears the sensor's occlusion bit. The sensor
// must have been placed since the last poll; otherwise ErrSensorNotPlaced is
// returned, or the call panics with strict sequencing.
func (e *Entity) PollJumpSensor() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	if e.sensor == nil {
		return false, fmt.Errorf("poll jump sensor: %w", ErrInvalidHandle)
	}
	occluded, err := e.sensor.poll(e.world)
	if err != nil {
		if e.world.strict && errors.Is(err, ErrSensorNotPlaced) {
			panic(fmt.Errorf("entity %s: %w", e.id, err))
		}
		e.world.log.Debugf("entity %s: %v", e.id, err)
		return false, err
	}
	return occluded, nil
}

// JumpSensorState returns the sensor state, or false without a sensor.
func (e *Entity) JumpSensorState() (SensorState, bool) {
	if e == nil || e.sensor == nil {
		return SensorIdle, false
	}
	return e.sensor.state, true
}

// Destroy releases the entity's shape and jump sensor. It does not unregister
// the entity: call World.RemoveEntity first, or the body stays simulated.
func (e *Entity) Destroy() {
	if e == nil || e.destroyed {
		return
	}
	e.destroyed = true
	if w := e.world; w != nil && !w.closed {
		if _, registered := w.entities[e]; registered {
			w.log.Warnf("entity %s destroyed while still registered", e.id)
		}
	}
	if e.sensor != nil {
		e.sensor.state = SensorIdle
		e.sensor.occluded = false
		e.sensor.shape = nil
	}
	e.shape = nil
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func finite3(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
