package solver

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGroupStatic  = 1 << 0
	testGroupDynamic = 1 << 1
	testGroupGhost   = 1 << 2
)

func newTestWorld(t *testing.T) *DynamicsWorld {
	t.Helper()
	cfg := NewDefaultCollisionConfiguration()
	bp := NewBroadphase(4)
	bp.SetOverlappingPairCallback(NewGhostPairCallback())
	w := NewDynamicsWorld(NewDispatcher(cfg), bp, NewSequentialImpulseSolver(), cfg)
	w.SetGravity(mgl32.Vec3{0, 0, -9.8})
	return w
}

// flatQuad is a 2-triangle square of the given half size at z=0.
func flatQuad(half float32) ([]float32, []uint32) {
	vertices := []float32{
		-half, -half, 0,
		half, -half, 0,
		half, half, 0,
		-half, half, 0,
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return vertices, indices
}

func addGround(t *testing.T, w *DynamicsWorld) *RigidBody {
	t.Helper()
	v, i := flatQuad(5)
	shape := NewTriangleMeshShape(NewTriangleIndexVertexArray(v, i))
	ground := NewRigidBody(NewRigidBodyConstructionInfo(0, shape))
	require.NoError(t, w.AddRigidBody(ground, testGroupStatic, testGroupDynamic|testGroupGhost))
	return ground
}

func addBox(t *testing.T, w *DynamicsWorld, pos mgl32.Vec3) *RigidBody {
	t.Helper()
	info := NewRigidBodyConstructionInfo(2, NewBoxShape(mgl32.Vec3{0.5, 0.5, 1}))
	info.StartWorldTransform = NewTransform(pos, mgl32.QuatIdent())
	b := NewRigidBody(info)
	require.NoError(t, w.AddRigidBody(b, testGroupDynamic, testGroupStatic))
	return b
}

func TestBodyFallsUnderGravity(t *testing.T) {
	w := newTestWorld(t)
	b := addBox(t, w, mgl32.Vec3{0, 0, 10})

	for i := 0; i < 10; i++ {
		w.StepSimulation(0.1, 1, 0.1)
	}

	assert.Less(t, b.WorldTransform().Origin.Z(), float32(10))
	assert.Less(t, b.LinearVelocity().Z(), float32(0))
}

func TestBodyRestsOnMesh(t *testing.T) {
	w := newTestWorld(t)
	addGround(t, w)
	b := addBox(t, w, mgl32.Vec3{0.3, -0.2, 3})

	for i := 0; i < 180; i++ {
		w.StepSimulation(1.0/60, 1, 1.0/60)
	}

	z := b.WorldTransform().Origin.Z()
	assert.InDelta(t, 1.0, z, 0.05, "box should rest with its base on the mesh")
	assert.InDelta(t, 0, b.LinearVelocity().Z(), 0.01)
}

func TestStaticBodiesDoNotMove(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(t, w)
	before := ground.WorldTransform()

	w.StepSimulation(1, 2, 1.0/60)

	assert.Equal(t, before, ground.WorldTransform())
	assert.False(t, ground.IsDynamic())
}

func TestStepSimulationClampsSubsteps(t *testing.T) {
	tests := []struct {
		name        string
		dt          float32
		maxSubSteps int
		want        int
	}{
		{"clamped to two", 1.0, 2, 2},
		{"clamped to one", 1.0, 1, 1},
		{"accumulates", 0.001, 1, 0},
		{"variable step", 0.05, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t)
			addBox(t, w, mgl32.Vec3{0, 0, 10})
			assert.Equal(t, tt.want, w.StepSimulation(tt.dt, tt.maxSubSteps, 1.0/60))
		})
	}
}

func TestStepSimulationSurvivesTimeSpikes(t *testing.T) {
	w := newTestWorld(t)
	addBox(t, w, mgl32.Vec3{0, 0, 10})

	assert.Equal(t, 1, w.StepSimulation(3e38, 1, 1e-38), "step count must not overflow")
	assert.Equal(t, 1, w.StepSimulation(1.0/60, 1, 1.0/60))

	assert.Equal(t, 2, w.StepSimulation(1e7, 2, 1.0/60))
	for i := 0; i < 600; i++ {
		require.Equal(t, 1, w.StepSimulation(1.0/60, 1, 1.0/60), "tick %d after the spike", i)
	}
}

func TestStepRenderOnlyKeepsDynamics(t *testing.T) {
	w := newTestWorld(t)
	b := addBox(t, w, mgl32.Vec3{0, 0, 10})
	w.StepSimulation(1.0/60, 1, 1.0/60)

	pos := b.WorldTransform().Origin
	vel := b.LinearVelocity()
	w.StepRenderOnly(0.008)

	assert.Equal(t, pos, b.WorldTransform().Origin)
	assert.Equal(t, vel, b.LinearVelocity())
	assert.Less(t, b.InterpolationWorldTransform().Origin.Z(), pos.Z(), "interpolation should lead a falling body")
}

func TestForcesClearedAfterStep(t *testing.T) {
	w := newTestWorld(t)
	b := addBox(t, w, mgl32.Vec3{0, 0, 10})

	b.ApplyCentralForce(mgl32.Vec3{10, 0, 0})
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, b.TotalForce())

	w.StepSimulation(1.0/60, 1, 1.0/60)
	assert.Equal(t, mgl32.Vec3{}, b.TotalForce())
	assert.Greater(t, b.LinearVelocity().X(), float32(0))
}

func TestAngularFactorLocksAxes(t *testing.T) {
	b := NewRigidBody(NewRigidBodyConstructionInfo(1, NewBoxShape(mgl32.Vec3{1, 1, 1})))
	b.SetAngularFactor(mgl32.Vec3{0, 0, 1})
	b.SetAngularVelocity(mgl32.Vec3{3, 4, 5})

	assert.Equal(t, mgl32.Vec3{0, 0, 5}, b.AngularVelocity())
}

func TestNeedsCollisionRequiresBothDirections(t *testing.T) {
	a := &CollisionObject{group: 1, mask: 2}
	b := &CollisionObject{group: 2, mask: 1}
	c := &CollisionObject{group: 2, mask: 4}

	assert.True(t, NeedsCollision(a, b))
	assert.False(t, NeedsCollision(a, c), "c does not accept a")
	assert.False(t, NeedsCollision(b, c), "same group without self bits")
}

func TestGhostTracksOverlapsThroughCallback(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(t, w)

	ghost := NewGhostObject()
	ghost.SetCollisionShape(NewBoxShape(mgl32.Vec3{0.5, 0.5, 0.5}))
	ghost.SetFlags(FlagKinematicObject | FlagNoContactResponse)
	ghost.SetWorldTransform(NewTransform(mgl32.Vec3{0, 0, 10}, mgl32.QuatIdent()))
	require.NoError(t, w.AddCollisionObject(&ghost.CollisionObject, testGroupGhost, testGroupStatic))

	assert.Equal(t, 0, ghost.NumOverlappingObjects())

	ghost.SetWorldTransform(NewTransform(mgl32.Vec3{0, 0, 0.25}, mgl32.QuatIdent()))
	require.Equal(t, 1, ghost.NumOverlappingObjects())
	assert.Same(t, &ground.CollisionObject, ghost.OverlappingObjects()[0])

	ghost.SetWorldTransform(NewTransform(mgl32.Vec3{0, 0, 10}, mgl32.QuatIdent()))
	assert.Equal(t, 0, ghost.NumOverlappingObjects())
}

func TestGhostWithoutCallbackSeesNothing(t *testing.T) {
	cfg := NewDefaultCollisionConfiguration()
	w := NewDynamicsWorld(NewDispatcher(cfg), NewBroadphase(4), NewSequentialImpulseSolver(), cfg)
	addGround(t, w)

	ghost := NewGhostObject()
	ghost.SetCollisionShape(NewBoxShape(mgl32.Vec3{0.5, 0.5, 0.5}))
	require.NoError(t, w.AddCollisionObject(&ghost.CollisionObject, testGroupGhost, testGroupStatic))

	assert.Equal(t, 0, ghost.NumOverlappingObjects())
	assert.Equal(t, 1, w.Broadphase().PairCount(), "pair is cached even without observers")
}

func TestRemoveCollisionObjectDropsPairs(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(t, w)

	ghost := NewGhostObject()
	ghost.SetCollisionShape(NewBoxShape(mgl32.Vec3{0.5, 0.5, 0.5}))
	require.NoError(t, w.AddCollisionObject(&ghost.CollisionObject, testGroupGhost, testGroupStatic))
	require.Equal(t, 1, ghost.NumOverlappingObjects())

	w.RemoveRigidBody(ground)
	assert.Equal(t, 0, ghost.NumOverlappingObjects())
	assert.False(t, ground.InWorld())
	assert.Equal(t, 1, w.NumCollisionObjects())
}

func TestStaticMeshStaysOutOfGrid(t *testing.T) {
	w := newTestWorld(t)
	v, i := flatQuad(2048)
	shape := NewTriangleMeshShape(NewTriangleIndexVertexArray(v, i))
	ground := NewRigidBody(NewRigidBodyConstructionInfo(0, shape))
	require.NoError(t, w.AddRigidBody(ground, testGroupStatic, testGroupDynamic|testGroupGhost))
	assert.Equal(t, 0, w.Broadphase().CellCount(), "terrain size must not cost grid cells")

	box := addBox(t, w, mgl32.Vec3{1000, -1000, 0.9})
	assert.Positive(t, w.Broadphase().CellCount())
	assert.Equal(t, 1, w.Broadphase().PairCount())
	assert.Contains(t, w.Broadphase().QueryAABB(mgl32.Vec3{999, -1001, -1}, mgl32.Vec3{1001, -999, 1}), &ground.CollisionObject)

	for n := 0; n < 120; n++ {
		w.StepSimulation(1.0/60, 1, 1.0/60)
	}
	assert.InDelta(t, 1.0, box.WorldTransform().Origin.Z(), 0.05, "box rests on the far corner of the mesh")

	w.RemoveRigidBody(ground)
	assert.Equal(t, 0, w.Broadphase().PairCount())
}

func TestContactPairTestBoxAgainstMesh(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(t, w)

	sensor := NewGhostObject()
	sensor.SetCollisionShape(NewBoxShape(mgl32.Vec3{0.4, 0.4, 0.25}))

	sensor.SetWorldTransform(NewTransform(mgl32.Vec3{1, 1, 0.1}, mgl32.QuatIdent()))
	var contacts []ContactPoint
	w.ContactPairTest(&sensor.CollisionObject, &ground.CollisionObject, func(cp ContactPoint, a, b *CollisionObject) {
		assert.Same(t, &sensor.CollisionObject, a)
		assert.Same(t, &ground.CollisionObject, b)
		contacts = append(contacts, cp)
	})
	require.NotEmpty(t, contacts)
	assert.InDelta(t, 1, contacts[0].NormalWorldOnB.Z(), 1e-5)
	assert.InDelta(t, 0.15, contacts[0].Depth(), 1e-4)

	sensor.SetWorldTransform(NewTransform(mgl32.Vec3{1, 1, 3}, mgl32.QuatIdent()))
	contacts = nil
	w.ContactPairTest(&sensor.CollisionObject, &ground.CollisionObject, func(cp ContactPoint, a, b *CollisionObject) {
		contacts = append(contacts, cp)
	})
	assert.Empty(t, contacts)
}

func TestBoxBoxSeparatingAxis(t *testing.T) {
	shape := NewBoxShape(mgl32.Vec3{0.5, 0.5, 0.5})
	ta := NewTransform(mgl32.Vec3{0, 0, 0.9}, mgl32.QuatIdent())
	tb := NewTransform(mgl32.Vec3{0, 0, 0}, mgl32.QuatIdent())

	cp, ok := boxBox(shape, ta, shape, tb)
	require.True(t, ok)
	assert.InDelta(t, 1, cp.NormalWorldOnB.Z(), 1e-5, "normal should push A up, away from B")
	assert.InDelta(t, 0.1, cp.Depth(), 1e-5)

	rotated := NewTransform(mgl32.Vec3{0, 0, 1.15}, mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{1, 0, 0}))
	_, ok = boxBox(shape, rotated, shape, tb)
	assert.True(t, ok, "a box on its edge reaches further down")

	far := NewTransform(mgl32.Vec3{0, 0, 1.8}, mgl32.QuatIdent())
	_, ok = boxBox(shape, far, shape, tb)
	assert.False(t, ok)
}

func TestBoxTriangleIgnoresWinding(t *testing.T) {
	axes := IdentityTransform().Axes()
	he := mgl32.Vec3{0.5, 0.5, 0.5}
	ccw := [3]mgl32.Vec3{{-5, -5, 0}, {5, -5, 0}, {0, 5, 0}}
	cw := [3]mgl32.Vec3{ccw[0], ccw[2], ccw[1]}

	for _, tri := range [][3]mgl32.Vec3{ccw, cw} {
		n, depth, ok := boxTriangle(mgl32.Vec3{0, 0, 0.4}, axes, he, tri)
		require.True(t, ok)
		assert.InDelta(t, 1, n.Z(), 1e-5)
		assert.InDelta(t, 0.1, depth, 1e-5)
	}
}

func TestCloseUnregistersEverything(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(t, w)
	b := addBox(t, w, mgl32.Vec3{0, 0, 5})

	w.Close()

	assert.True(t, w.Closed())
	assert.False(t, ground.InWorld())
	assert.False(t, b.InWorld())
	assert.Equal(t, 0, w.StepSimulation(1, 1, 1.0/60))
	assert.ErrorIs(t, w.AddRigidBody(b, testGroupDynamic, testGroupStatic), ErrClosed)
}
