package dynworld

import "strings"

// CollisionGroup is the category bit of a registered object.
type CollisionGroup uint32

const (
	GroupWorld CollisionGroup = 1 << iota
	GroupEntities
	GroupJumpSensor
)

// Mask returns the groups g is allowed to touch. Entities and sensors only
// see the world, never each other or themselves.
func (g CollisionGroup) Mask() CollisionGroup {
	switch g {
	case GroupWorld:
		return GroupEntities | GroupJumpSensor
	case GroupEntities, GroupJumpSensor:
		return GroupWorld
	default:
		return 0
	}
}

func (g CollisionGroup) String() string {
	var parts []string
	if g&GroupWorld != 0 {
		parts = append(parts, "world")
	}
	if g&GroupEntities != 0 {
		parts = append(parts, "entities")
	}
	if g&GroupJumpSensor != 0 {
		parts = append(parts, "jump-sensor")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ShouldCollide is the symmetric pair filter: each side's group must be in
// the other side's mask.
func ShouldCollide(aGroup, aMask, bGroup, bMask CollisionGroup) bool {
	return aGroup&bMask != 0 && bGroup&aMask != 0
}

// Kind tags the user data of registered objects so contact callbacks can tell
// world geometry from entities.
type Kind int

const (
	KindSlab       Kind = 500
	KindEntity     Kind = 600
	KindJumpSensor Kind = 700
)

func (k Kind) String() string {
	switch k {
	case KindSlab:
		return "slab"
	case KindEntity:
		return "entity"
	case KindJumpSensor:
		return "jump-sensor"
	default:
		return "unknown"
	}
}
