package solver

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/dynworld/solver/bvh"
)

var ErrClosed = errors.New("solver: use of closed subsystem")

// OverlappingPairCallback is notified whenever the pair cache gains or loses a pair.
type OverlappingPairCallback interface {
	AddOverlappingPair(a, b *CollisionObject)
	RemoveOverlappingPair(a, b *CollisionObject)
}

// GhostPairCallback forwards pair changes into the overlap caches of ghost objects.
// Without it installed, ghosts never see anything.
type GhostPairCallback struct{}

func NewGhostPairCallback() *GhostPairCallback { return &GhostPairCallback{} }

func (GhostPairCallback) AddOverlappingPair(a, b *CollisionObject) {
	if a.ghost != nil {
		a.ghost.addOverlappingObject(b)
	}
	if b.ghost != nil {
		b.ghost.addOverlappingObject(a)
	}
}

func (GhostPairCallback) RemoveOverlappingPair(a, b *CollisionObject) {
	if a.ghost != nil {
		a.ghost.removeOverlappingObject(b)
	}
	if b.ghost != nil {
		b.ghost.removeOverlappingObject(a)
	}
}

// NeedsCollision is the group/mask filter: both objects must accept each other.
func NeedsCollision(a, b *CollisionObject) bool {
	return a.group&b.mask != 0 && b.group&a.mask != 0
}

type proxy struct {
	uid      uint64
	obj      *CollisionObject
	min, max mgl32.Vec3
	// static proxies are never written into the grid.
	static   bool
	cells    []uint64
	overlaps map[*proxy]struct{}
}

// Broadphase is a spatial hash grid over the bounds of moving objects plus a
// cache of overlapping, filter-accepted pairs. Static objects are kept in a
// flat list and tested against moving bounds directly, so a large terrain
// mesh costs one entry rather than one per cell it covers. Two static
// objects never form a pair.
type Broadphase struct {
	cellSize float32
	cells    map[uint64][]*proxy
	statics  []*proxy
	moving   []*proxy
	nextUID  uint64
	callback OverlappingPairCallback
	closed   bool
}

func NewBroadphase(cellSize float32) *Broadphase {
	if cellSize <= 0 {
		cellSize = 4
	}
	return &Broadphase{
		cellSize: cellSize,
		cells:    make(map[uint64][]*proxy),
	}
}

func (bp *Broadphase) CellSize() float32 { return bp.cellSize }

// SetOverlappingPairCallback installs the pair observer; nil removes it.
func (bp *Broadphase) SetOverlappingPairCallback(cb OverlappingPairCallback) {
	bp.callback = cb
}

func (bp *Broadphase) createProxy(o *CollisionObject) {
	bp.nextUID++
	p := &proxy{uid: bp.nextUID, obj: o, static: o.IsStatic(), overlaps: make(map[*proxy]struct{})}
	o.proxy = p
	if p.static {
		bp.statics = append(bp.statics, p)
	} else {
		bp.moving = append(bp.moving, p)
	}
	bp.setAabb(p)
}

func (bp *Broadphase) destroyProxy(o *CollisionObject) {
	p := o.proxy
	if p == nil {
		return
	}
	for other := range p.overlaps {
		bp.removePair(p, other)
	}
	bp.removeFromCells(p)
	if p.static {
		bp.statics = removeProxy(bp.statics, p)
	} else {
		bp.moving = removeProxy(bp.moving, p)
	}
	o.proxy = nil
}

func removeProxy(list []*proxy, p *proxy) []*proxy {
	for i, q := range list {
		if q == p {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// setAabb refreshes the bounds of p and reconciles every pair it takes part in.
func (bp *Broadphase) setAabb(p *proxy) {
	bp.removeFromCells(p)
	p.min, p.max = p.obj.AABB()
	if !isFinite(p.min) || !isFinite(p.max) {
		return
	}

	var candidates []*proxy
	if p.static {
		candidates = bp.queryMoving(p.min, p.max)
	} else {
		bp.forEachCell(p.min, p.max, func(key uint64) {
			bp.cells[key] = append(bp.cells[key], p)
			p.cells = append(p.cells, key)
		})
		candidates = bp.query(p.min, p.max)
	}

	want := make(map[*proxy]struct{})
	for _, other := range candidates {
		if other == p || !NeedsCollision(p.obj, other.obj) {
			continue
		}
		want[other] = struct{}{}
	}
	for other := range p.overlaps {
		if _, ok := want[other]; !ok {
			bp.removePair(p, other)
		}
	}
	// Add in uid order so overlap caches fill deterministically.
	added := make([]*proxy, 0, len(want))
	for other := range want {
		if _, ok := p.overlaps[other]; !ok {
			added = append(added, other)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].uid < added[j].uid })
	for _, other := range added {
		bp.addPair(p, other)
	}
}

func (bp *Broadphase) addPair(a, b *proxy) {
	a.overlaps[b] = struct{}{}
	b.overlaps[a] = struct{}{}
	if bp.callback != nil {
		bp.callback.AddOverlappingPair(a.obj, b.obj)
	}
}

func (bp *Broadphase) removePair(a, b *proxy) {
	delete(a.overlaps, b)
	delete(b.overlaps, a)
	if bp.callback != nil {
		bp.callback.RemoveOverlappingPair(a.obj, b.obj)
	}
}

func (bp *Broadphase) removeFromCells(p *proxy) {
	for _, key := range p.cells {
		list := bp.cells[key]
		for i, q := range list {
			if q == p {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(bp.cells, key)
		} else {
			bp.cells[key] = list
		}
	}
	p.cells = p.cells[:0]
}

// query returns proxies whose bounds overlap [lo, hi], sorted by uid.
func (bp *Broadphase) query(lo, hi mgl32.Vec3) []*proxy {
	unique := make(map[*proxy]struct{})
	var results []*proxy
	for _, p := range bp.statics {
		if bvh.Overlaps(p.min, p.max, lo, hi) {
			results = append(results, p)
		}
	}
	bp.forEachCell(lo, hi, func(key uint64) {
		for _, p := range bp.cells[key] {
			if _, ok := unique[p]; ok {
				continue
			}
			unique[p] = struct{}{}
			// Hash collisions can put unrelated proxies in a cell.
			if bvh.Overlaps(p.min, p.max, lo, hi) {
				results = append(results, p)
			}
		}
	})
	sort.Slice(results, func(i, j int) bool { return results[i].uid < results[j].uid })
	return results
}

// queryMoving returns the moving proxies whose bounds overlap [lo, hi]
// without walking the grid, sorted by uid.
func (bp *Broadphase) queryMoving(lo, hi mgl32.Vec3) []*proxy {
	var results []*proxy
	for _, p := range bp.moving {
		if bvh.Overlaps(p.min, p.max, lo, hi) {
			results = append(results, p)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].uid < results[j].uid })
	return results
}

// QueryAABB returns the registered objects whose bounds overlap [lo, hi].
func (bp *Broadphase) QueryAABB(lo, hi mgl32.Vec3) []*CollisionObject {
	var out []*CollisionObject
	for _, p := range bp.query(lo, hi) {
		out = append(out, p.obj)
	}
	return out
}

// PairCount returns the number of cached overlapping pairs.
func (bp *Broadphase) PairCount() int {
	n := 0
	for _, p := range bp.statics {
		n += len(p.overlaps)
	}
	for _, p := range bp.moving {
		n += len(p.overlaps)
	}
	return n / 2
}

// CellCount is the number of occupied grid cells.
func (bp *Broadphase) CellCount() int { return len(bp.cells) }

func (bp *Broadphase) forEachCell(lo, hi mgl32.Vec3, fn func(key uint64)) {
	minX, maxX := bp.cellIndex(lo.X()), bp.cellIndex(hi.X())
	minY, maxY := bp.cellIndex(lo.Y()), bp.cellIndex(hi.Y())
	minZ, maxZ := bp.cellIndex(lo.Z()), bp.cellIndex(hi.Z())
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				fn(hashKey(x, y, z))
			}
		}
	}
}

func (bp *Broadphase) cellIndex(v float32) int {
	return int(math.Floor(float64(v / bp.cellSize)))
}

func hashKey(x, y, z int) uint64 {
	// large primes for mixing
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}

func (bp *Broadphase) Close() {
	if bp.closed {
		return
	}
	bp.closed = true
	bp.callback = nil
	bp.cells = nil
	bp.statics = nil
	bp.moving = nil
}

func (bp *Broadphase) Closed() bool { return bp.closed }
