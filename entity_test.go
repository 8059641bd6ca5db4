package dynworld

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/dynworld/solver"
	"github.com/gekko3d/dynworld/tuning"
)

var entityHalfExtents = mgl32.Vec3{0.5, 0.5, 1}

func newEntity(t *testing.T, w *World, center mgl32.Vec3, sensor bool) *Entity {
	t.Helper()
	e, err := NewEntity(w, NewEntityDesc(w, center, entityHalfExtents, sensor))
	require.NoError(t, err)
	return e
}

func TestNewEntityBody(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{1, 2, 3}, false)

	b := e.Body()
	assert.Equal(t, float32(EntityMass), b.Mass())
	assert.True(t, b.IsDynamic())
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, b.AngularFactor())
	assert.Equal(t, float32(0.2), b.Friction())
	assert.Equal(t, float32(0.8), b.LinearDamping())
	assert.Equal(t, KindEntity, b.UserData())
	assert.Equal(t, uint32(GroupEntities), b.Group())
	assert.Equal(t, uint32(GroupWorld), b.Mask())
	assert.False(t, e.HasJumpSensor())

	pos, err := e.Position()
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, pos)
}

func TestNewEntityRejectsBadExtents(t *testing.T) {
	w := newTestWorld(t)
	for _, he := range []mgl32.Vec3{{0, 1, 1}, {1, -1, 1}, {1, 1, float32(math.NaN())}} {
		_, err := NewEntity(w, EntityDesc{HalfExtents: he})
		assert.Error(t, err, "%v", he)
	}
	assert.Equal(t, 0, w.BodyCount())
}

func TestNoSensorGroupWithoutSensor(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 3; i++ {
		newEntity(t, w, mgl32.Vec3{float32(i) * 3, 0, 0}, false)
	}
	assert.Equal(t, 0, w.CountInGroup(GroupJumpSensor))
	assert.Equal(t, 3, w.CountInGroup(GroupEntities))

	newEntity(t, w, mgl32.Vec3{0, 10, 0}, true)
	assert.Equal(t, 1, w.CountInGroup(GroupJumpSensor))
}

func TestPoseReportsForward(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{}, false)

	require.NoError(t, e.SetPose(mgl32.Vec3{4, 5, 6}, math.Pi/2, mgl32.Vec3{}, JumpNone))
	p, err := e.Pose()
	require.NoError(t, err)

	assert.Equal(t, mgl32.Vec3{4, 5, 6}, p.Position)
	assert.InDelta(t, -1, p.Forward.X(), 1e-5)
	assert.InDelta(t, 0, p.Forward.Y(), 1e-5)
	assert.False(t, p.HasSensor)
	assert.False(t, p.Occluded)
}

func TestSetPoseAppliesVelocityAsForce(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{0, 0, 10}, false)

	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 10}, 0, mgl32.Vec3{3, 0, 0}, JumpNone))
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, e.Body().TotalForce())

	stepN(t, w, 1)
	assert.Greater(t, e.Body().WorldTransform().Origin.X(), float32(0))
	assert.Equal(t, mgl32.Vec3{}, e.Body().TotalForce(), "forces last one step")
}

func TestSetPoseRejectsNonFinite(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{}, false)
	nan := float32(math.NaN())

	assert.Error(t, e.SetPose(mgl32.Vec3{nan, 0, 0}, 0, mgl32.Vec3{}, JumpNone))
	assert.Error(t, e.SetPose(mgl32.Vec3{}, nan, mgl32.Vec3{}, JumpNone))
	assert.Error(t, e.SetPose(mgl32.Vec3{}, 0, mgl32.Vec3{}, JumpAction(9)))
}

func TestUnconditionalJumpReadsLiveTuning(t *testing.T) {
	src := tuning.NewStatic(tuning.Default())
	w := newTestWorld(t, WithTuning(src))
	e := newEntity(t, w, mgl32.Vec3{0, 0, 10}, false)

	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 10}, 0, mgl32.Vec3{1, 0, 0}, JumpUnconditional))
	assert.Equal(t, mgl32.Vec3{1, 0, 600}, e.Body().TotalForce())
	stepN(t, w, 1)

	next := tuning.Default()
	next.PerTick.JumpForce = 50
	src.Set(next)

	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 10}, 0, mgl32.Vec3{}, JumpUnconditional))
	assert.Equal(t, mgl32.Vec3{0, 0, 50}, e.Body().TotalForce())
}

func TestConditionalJumpWithoutSensorNeverJumps(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{0, 0, 10}, false)

	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 10}, 0, mgl32.Vec3{}, JumpIfSensorUnoccluded))
	assert.Equal(t, mgl32.Vec3{}, e.Body().TotalForce())
}

func TestConditionalJumpOverOpenGround(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{0, 0, 10}, true)

	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 10}, 0, mgl32.Vec3{}, JumpIfSensorUnoccluded))
	assert.Equal(t, mgl32.Vec3{0, 0, 600}, e.Body().TotalForce())
	assert.Equal(t, 0, e.sensor.contactTests, "no overlaps means no contact tests")
}

func TestSetPoseMovesSensorBeforePolling(t *testing.T) {
	w := newTestWorld(t)
	v, i := flatQuad(5)
	_, err := UpdateSlab(w, nil, mgl32.Vec3{}, v, i)
	require.NoError(t, err)

	// Created far above the slab, then teleported onto it: the conditional
	// poll must see the slab under the new pose.
	e := newEntity(t, w, mgl32.Vec3{0, 0, 20}, true)
	require.NoError(t, e.SetPose(mgl32.Vec3{0, 0, 0.5}, 0, mgl32.Vec3{}, JumpIfSensorUnoccluded))

	assert.Equal(t, mgl32.Vec3{}, e.Body().TotalForce(), "ground ahead blocks the jump")
	assert.Positive(t, e.sensor.contactTests)
}

func TestSensorFollowsEntity(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{}, true)

	require.NoError(t, e.SetPose(mgl32.Vec3{1, 1, 5}, math.Pi, mgl32.Vec3{}, JumpNone))

	st := e.sensor.Transform()
	// Facing -Y after half a turn; 0.5*1.6 ahead and 1 down.
	assert.InDelta(t, 1, st.Origin.X(), 1e-5)
	assert.InDelta(t, 1-0.8, st.Origin.Y(), 1e-5)
	assert.InDelta(t, 4, st.Origin.Z(), 1e-5)
	assert.Equal(t, mgl32.Vec3{0.4, 0.4, 0.25}, e.sensor.HalfExtents())

	g := e.sensor.ghost
	assert.True(t, g.IsKinematic())
	assert.False(t, g.HasContactResponse())
	assert.Equal(t, KindJumpSensor, g.UserData())
	assert.Equal(t, uint32(GroupJumpSensor), g.Group())
	assert.Equal(t, uint32(GroupWorld), g.Mask())
}

func TestSensorLengthScaleIsLive(t *testing.T) {
	src := tuning.NewStatic(tuning.Default())
	w := newTestWorld(t, WithTuning(src))
	e := newEntity(t, w, mgl32.Vec3{}, true)

	next := tuning.Default()
	next.PerTick.JumpSensorLengthScale = 3
	src.Set(next)
	require.NoError(t, e.PlaceJumpSensor())

	assert.InDelta(t, 1.5, e.sensor.Transform().Origin.Y(), 1e-5)
}

func TestSensorDropScale(t *testing.T) {
	src := tuning.NewStatic(tuning.Default())
	w := newTestWorld(t, WithTuning(src))
	e := newEntity(t, w, mgl32.Vec3{0, 0, 5}, true)

	// Default drop puts the sensor centre on the entity's base plane.
	assert.InDelta(t, 4, e.sensor.Transform().Origin.Z(), 1e-5)

	next := tuning.Default()
	next.PerTick.JumpSensorDropScale = 0.5
	src.Set(next)
	require.NoError(t, e.PlaceJumpSensor())
	assert.InDelta(t, 4.5, e.sensor.Transform().Origin.Z(), 1e-5)

	next.PerTick.JumpSensorDropScale = 0
	src.Set(next)
	require.NoError(t, e.PlaceJumpSensor())
	assert.InDelta(t, 5, e.sensor.Transform().Origin.Z(), 1e-5)
}

func TestPlaceThenPollWithoutGeometry(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{}, true)

	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, e.PlaceJumpSensor())
		state, ok := e.JumpSensorState()
		require.True(t, ok)
		assert.Equal(t, SensorPlaced, state)

		occluded, err := e.PollJumpSensor()
		require.NoError(t, err)
		assert.False(t, occluded)

		state, _ = e.JumpSensorState()
		assert.Equal(t, SensorPolled, state)
	}
	assert.Equal(t, 0, e.sensor.contactTests)
}

func TestPollBeforePlacementIsRejected(t *testing.T) {
	w := newTestWorld(t)
	e := newEntity(t, w, mgl32.Vec3{}, true)

	_, err := e.PollJumpSensor()
	require.NoError(t, err, "creation places the sensor")

	_, err = e.PollJumpSensor()
	assert.ErrorIs(t, err, ErrSensorNotPlaced)

	noSensor := newEntity(t, w, mgl32.Vec3{5, 0, 0}, false)
	_, err = noSensor.PollJumpSensor()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, noSensor.PlaceJumpSensor(), ErrInvalidHandle)
}

func TestStrictSequencingPanics(t *testing.T) {
	w := newTestWorld(t, WithStrictSequencing(true))
	e := newEntity(t, w, mgl32.Vec3{}, true)

	_, err := e.PollJumpSensor()
	require.NoError(t, err)
	assert.Panics(t, func() { _, _ = e.PollJumpSensor() })
}

func TestSameGroupPairsNeverContact(t *testing.T) {
	w := newTestWorld(t)
	a := newEntity(t, w, mgl32.Vec3{0, 0, 10}, true)
	b := newEntity(t, w, mgl32.Vec3{0.2, 0, 10}, true)

	// Overlapping entities and overlapping sensors.
	assert.Equal(t, 0, w.broadphase.PairCount())
	assert.Equal(t, 0, a.sensor.ghost.NumOverlappingObjects())
	assert.Equal(t, 0, b.sensor.ghost.NumOverlappingObjects())

	stepN(t, w, 30)

	pa, err := a.Position()
	require.NoError(t, err)
	pb, err := b.Position()
	require.NoError(t, err)
	assert.Equal(t, float32(0), pa.X(), "entities pass through each other")
	assert.Equal(t, float32(0.2), pb.X())
	assert.Equal(t, pa.Z(), pb.Z())

	objs := w.dynamics.CollisionObjects()
	for i, x := range objs {
		for _, y := range objs[i+1:] {
			if x.Group() != y.Group() {
				continue
			}
			var contacts int
			if solver.NeedsCollision(x, y) {
				w.dynamics.ContactPairTest(x, y, func(solver.ContactPoint, *solver.CollisionObject, *solver.CollisionObject) {
					contacts++
				})
			}
			assert.Zero(t, contacts)
		}
	}
}

func TestEntitiesDoNotSeeSensors(t *testing.T) {
	w := newTestWorld(t)
	v, i := flatQuad(5)
	_, err := UpdateSlab(w, nil, mgl32.Vec3{}, v, i)
	require.NoError(t, err)

	// b stands where a's sensor is.
	a := newEntity(t, w, mgl32.Vec3{0, 0, 0.5}, true)
	newEntity(t, w, mgl32.Vec3{0, 0.8, -0.5}, false)

	others := a.sensor.ghost.OverlappingObjects()
	require.Len(t, others, 1)
	assert.Equal(t, KindSlab, others[0].UserData())
}
