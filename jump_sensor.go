package dynworld

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/dynworld/solver"
	"github.com/gekko3d/dynworld/tuning"
)

type SensorState int

const (
	// SensorIdle is a sensor that has never been placed.
	SensorIdle SensorState = iota
	// SensorPlaced follows its entity; its overlaps have not been evaluated yet.
	SensorPlaced
	// SensorPolled has had its occlusion bit read and cleared. It must be
	// placed again before the next poll.
	SensorPolled
)

func (s SensorState) String() string {
	switch s {
	case SensorIdle:
		return "idle"
	case SensorPlaced:
		return "placed"
	case SensorPolled:
		return "polled"
	default:
		return fmt.Sprintf("SensorState(%d)", int(s))
	}
}

// Sensor box size relative to the entity half extents.
var sensorScale = mgl32.Vec3{0.8, 0.8, 0.25}

// jumpSensor is a kinematic ghost box kept ahead of an entity's feet. It
// never pushes anything; it only reports whether world geometry is inside it.
type jumpSensor struct {
	ghost *solver.GhostObject
	shape *solver.BoxShape
	state SensorState
	// occluded is set by contact results during a poll and cleared when the
	// poll returns.
	occluded bool
	// contactTests counts narrowphase runs, for tests.
	contactTests int
}

func newJumpSensor(entityHalfExtents mgl32.Vec3) *jumpSensor {
	s := &jumpSensor{ghost: solver.NewGhostObject()}
	s.shape = solver.NewBoxShape(sensorHalfExtents(entityHalfExtents))
	s.ghost.SetCollisionShape(s.shape)
	s.ghost.SetFlags(s.ghost.Flags() | solver.FlagKinematicObject | solver.FlagNoContactResponse)
	s.ghost.SetUserData(KindJumpSensor)
	return s
}

func sensorHalfExtents(he mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{he[0] * sensorScale[0], he[1] * sensorScale[1], he[2] * sensorScale[2]}
}

// sensorOffset is the sensor centre in entity space: LengthScale forward half
// extents ahead and DropScale vertical half extents down. The default drop of
// one half extent puts the sensor level with the entity's base, so the lower
// half of the sensor sits below its feet.
func sensorOffset(he mgl32.Vec3, t tuning.PerTick) mgl32.Vec3 {
	return mgl32.Vec3{0, he[1] * t.JumpSensorLengthScale, -he[2] * t.JumpSensorDropScale}
}

// place moves the sensor to follow the entity transform. Always legal.
func (s *jumpSensor) place(he mgl32.Vec3, entity solver.Transform, t tuning.PerTick) {
	if want := sensorHalfExtents(he); want != s.shape.HalfExtents() {
		s.shape = solver.NewBoxShape(want)
		s.ghost.SetCollisionShape(s.shape)
	}
	local := solver.NewTransform(sensorOffset(he, t), mgl32.QuatIdent())
	s.ghost.SetWorldTransform(entity.Mul(local))
	s.state = SensorPlaced
}

// poll runs a contact test against every object overlapping the sensor and
// returns whether any touched it. The result is consumed: the bit is cleared
// and the sensor must be placed again before the next poll.
func (s *jumpSensor) poll(w *World) (bool, error) {
	if s.state != SensorPlaced {
		return false, fmt.Errorf("poll in state %s: %w", s.state, ErrSensorNotPlaced)
	}

	overlapping := s.ghost.OverlappingObjects()
	if len(overlapping) > 0 {
		others := make([]*solver.CollisionObject, len(overlapping))
		copy(others, overlapping)
		for _, other := range others {
			s.contactTests++
			w.dynamics.ContactPairTest(&s.ghost.CollisionObject, other, func(cp solver.ContactPoint, a, b *solver.CollisionObject) {
				s.occluded = true
			})
		}
	}

	hit := s.occluded
	s.occluded = false
	s.state = SensorPolled
	return hit, nil
}

func (s *jumpSensor) Transform() solver.Transform { return s.ghost.WorldTransform() }

func (s *jumpSensor) HalfExtents() mgl32.Vec3 { return s.shape.HalfExtents() }
