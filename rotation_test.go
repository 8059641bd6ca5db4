package dynworld

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestDirectionRoundTrip(t *testing.T) {
	for deg := -180; deg < 180; deg += 5 {
		rad := float64(deg) * math.Pi / 180
		dir := [2]float32{float32(-math.Sin(rad)), float32(math.Cos(rad))}

		got := QuatToDirection(DirectionToQuat(dir))
		assert.InDelta(t, dir[0], got[0], 1e-5, "heading %d", deg)
		assert.InDelta(t, dir[1], got[1], 1e-5, "heading %d", deg)
	}
}

func TestDirectionToQuatNormalises(t *testing.T) {
	got := QuatToDirection(DirectionToQuat([2]float32{3, 0}))
	assert.InDelta(t, 1, got[0], 1e-5)
	assert.InDelta(t, 0, got[1], 1e-5)
}

func TestZeroDirectionIsIdentity(t *testing.T) {
	assert.Equal(t, [4]float32{0, 0, 0, 1}, DirectionToQuat([2]float32{}))
	assert.Equal(t, [2]float32{0, 1}, QuatToDirection([4]float32{0, 0, 0, 1}))
}

func TestHeadingToQuatTurnsAboutVertical(t *testing.T) {
	q := HeadingToQuat(math.Pi / 2)
	f := q.Rotate(mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, -1, f.X(), 1e-5)
	assert.InDelta(t, 0, f.Y(), 1e-5)
	assert.InDelta(t, 0, f.Z(), 1e-5)

	up := q.Rotate(mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 1, up.Z(), 1e-5)
}
