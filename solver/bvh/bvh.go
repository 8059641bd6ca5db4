package bvh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Node is one entry of a flattened tree. Leaves have LeafCount > 0 and
// reference Items[LeafFirst:LeafFirst+LeafCount] of the owning Tree.
type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

type AABBItem struct {
	Min      mgl32.Vec3
	Max      mgl32.Vec3
	Centroid mgl32.Vec3
	Index    int
}

// Tree is an immutable bounding volume hierarchy over a set of boxes.
type Tree struct {
	Nodes []Node
	Items []int
}

// MaxLeafSize bounds how many items a leaf may hold before it is split.
const MaxLeafSize = 4

// Build constructs a tree with a median split on the widest centroid axis.
func Build(aabbs [][2]mgl32.Vec3) *Tree {
	t := &Tree{}
	if len(aabbs) == 0 {
		return t
	}

	items := make([]AABBItem, len(aabbs))
	for i, bounds := range aabbs {
		items[i] = AABBItem{
			Min:      bounds[0],
			Max:      bounds[1],
			Centroid: bounds[0].Add(bounds[1]).Mul(0.5),
			Index:    i,
		}
	}

	t.recursiveBuild(items)
	return t
}

func (t *Tree) recursiveBuild(items []AABBItem) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, LeafFirst: -1})

	minB, maxB := emptyBounds()
	cMin, cMax := emptyBounds()
	for _, it := range items {
		minB, maxB = grow(minB, maxB, it.Min, it.Max)
		cMin, cMax = grow(cMin, cMax, it.Centroid, it.Centroid)
	}

	t.Nodes[idx].Min = minB
	t.Nodes[idx].Max = maxB

	if len(items) <= MaxLeafSize {
		t.Nodes[idx].LeafFirst = int32(len(t.Items))
		t.Nodes[idx].LeafCount = int32(len(items))
		for _, it := range items {
			t.Items = append(t.Items, it.Index)
		}
		return idx
	}

	extent := cMax.Sub(cMin)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Centroid[axis] < items[j].Centroid[axis]
	})

	mid := len(items) / 2
	left := t.recursiveBuild(items[:mid])
	right := t.recursiveBuild(items[mid:])
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right

	return idx
}

// Bounds returns the box enclosing every item. ok is false for an empty tree.
func (t *Tree) Bounds() (minB, maxB mgl32.Vec3, ok bool) {
	if len(t.Nodes) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	return t.Nodes[0].Min, t.Nodes[0].Max, true
}

// Query calls fn with the index of every item whose box overlaps [qMin, qMax].
// Traversal stops early when fn returns false.
func (t *Tree) Query(qMin, qMax mgl32.Vec3, fn func(item int) bool) {
	if len(t.Nodes) == 0 {
		return
	}
	stack := make([]int32, 0, 32)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[ni]
		if !Overlaps(n.Min, n.Max, qMin, qMax) {
			continue
		}
		if n.LeafCount > 0 {
			for _, item := range t.Items[n.LeafFirst : n.LeafFirst+n.LeafCount] {
				if !fn(item) {
					return
				}
			}
			continue
		}
		stack = append(stack, n.Left, n.Right)
	}
}

// Overlaps reports whether two closed boxes intersect.
func Overlaps(aMin, aMax, bMin, bMax mgl32.Vec3) bool {
	return aMin.X() <= bMax.X() && aMax.X() >= bMin.X() &&
		aMin.Y() <= bMax.Y() && aMax.Y() >= bMin.Y() &&
		aMin.Z() <= bMax.Z() && aMax.Z() >= bMin.Z()
}

func emptyBounds() (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(math.Inf(1))
	return mgl32.Vec3{inf, inf, inf}, mgl32.Vec3{-inf, -inf, -inf}
}

func grow(minB, maxB, lo, hi mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	return mgl32.Vec3{min(minB.X(), lo.X()), min(minB.Y(), lo.Y()), min(minB.Z(), lo.Z())},
		mgl32.Vec3{max(maxB.X(), hi.X()), max(maxB.Y(), hi.Y()), max(maxB.Z(), hi.Z())}
}
