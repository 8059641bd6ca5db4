package dynworld

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupMasks(t *testing.T) {
	assert.Equal(t, GroupEntities|GroupJumpSensor, GroupWorld.Mask())
	assert.Equal(t, GroupWorld, GroupEntities.Mask())
	assert.Equal(t, GroupWorld, GroupJumpSensor.Mask())
	assert.Equal(t, CollisionGroup(0), CollisionGroup(8).Mask())
}

func TestShouldCollide(t *testing.T) {
	groups := []CollisionGroup{GroupWorld, GroupEntities, GroupJumpSensor}
	want := map[[2]CollisionGroup]bool{
		{GroupWorld, GroupEntities}:   true,
		{GroupWorld, GroupJumpSensor}: true,
		{GroupEntities, GroupWorld}:   true,
		{GroupJumpSensor, GroupWorld}: true,
	}
	for _, a := range groups {
		for _, b := range groups {
			got := ShouldCollide(a, a.Mask(), b, b.Mask())
			assert.Equal(t, want[[2]CollisionGroup{a, b}], got, "%s vs %s", a, b)
		}
	}
}

func TestGroupAndKindStrings(t *testing.T) {
	assert.Equal(t, "world", GroupWorld.String())
	assert.Equal(t, "entities|jump-sensor", (GroupEntities | GroupJumpSensor).String())
	assert.Equal(t, "none", CollisionGroup(0).String())

	assert.Equal(t, "slab", KindSlab.String())
	assert.Equal(t, "jump-sensor", KindJumpSensor.String())
	assert.Equal(t, "unknown", Kind(1).String())
	assert.Equal(t, "if-sensor-unoccluded", JumpIfSensorUnoccluded.String())
	assert.Equal(t, "polled", SensorPolled.String())
}
