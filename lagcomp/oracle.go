package lagcomp

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftcade/tracefire/entity"
	"github.com/riftcade/tracefire/game"
)

// traceEpsilon is the minimum distance from the segment start for an
// intersection to count. A hit at the start point itself is the surface a
// penetration or ricochet placed the projectile on during the previous tick.
const traceEpsilon = 1e-5

// TraceResult is the outcome of a rewind trace that intersected a historical
// target surface.
type TraceResult struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Material game.MaterialTag

	// Exit is where the trace's extension leaves the struck volume, so a
	// penetrating projectile continues from the far side. Implementations must
	// set it to Position for zero-thickness surfaces.
	Exit mgl32.Vec3

	// TargetID identifies the struck entity, so damage can later be resolved
	// back to it on the main thread.
	TargetID uint64
}

// Oracle answers collision queries against historical target state. It is treated
// as a pure function: implementations must have no side effects, and a query that
// cannot be answered (no history for the given tick) reports a miss rather than
// an error. Intersections at the segment's start point must be ignored: that is
// the surface a previous penetration or ricochet left the projectile on, not a
// new collision.
type Oracle interface {
	RewindTrace(start, end mgl32.Vec3, radius float32, tick int64) (TraceResult, bool)
}

// HistoryOracle is an Oracle backed by a set of rewindable entities with recorded
// position history. It is safe for concurrent use: the simulation worker queries
// it while the main thread moves entities.
type HistoryOracle struct {
	mu       sync.RWMutex
	entities map[uint64]*entity.Entity
}

func NewHistoryOracle() *HistoryOracle {
	return &HistoryOracle{entities: make(map[uint64]*entity.Entity)}
}

// Add registers an entity under the given id, replacing any previous entity
// registered under it.
func (o *HistoryOracle) Add(id uint64, e *entity.Entity) {
	o.mu.Lock()
	o.entities[id] = e
	o.mu.Unlock()
}

// Remove unregisters the entity with the given id.
func (o *HistoryOracle) Remove(id uint64) {
	o.mu.Lock()
	delete(o.entities, id)
	o.mu.Unlock()
}

// Find returns the entity registered under the given id.
func (o *HistoryOracle) Find(id uint64) *entity.Entity {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.entities[id]
}

// Move updates the position of the entity with the given id at the given tick,
// recording it into the entity's history.
func (o *HistoryOracle) Move(id uint64, pos mgl32.Vec3, tick int64, teleport bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e, ok := o.entities[id]; ok {
		e.Move(pos, tick, teleport)
	}
}

// RewindTrace traces the segment from start to end against every entity's
// position at the given historical tick, and returns the intersection closest to
// the start point. A radius above zero performs a swept-sphere trace by growing
// each target box by the radius. Entities without history for the tick are
// skipped, which surfaces as a miss rather than an error. Intersections at the
// start point itself are skipped too, so a projectile continuing from a surface
// it already resolved never re-strikes it.
func (o *HistoryOracle) RewindTrace(start, end mgl32.Vec3, radius float32, tick int64) (TraceResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var (
		closest     TraceResult
		closestBox  cube.BBox
		closestDist = float32(math32.MaxFloat32)
		found       bool
	)
	span := end.Sub(start)
	maxDist := span.Len()
	for id, e := range o.entities {
		hp, ok := e.Rewind(tick)
		if !ok {
			continue
		}

		bb := e.Box(hp.Position)
		if radius > 0 {
			bb = bb.Grow(radius)
		}
		if game.AABBVectorDistance(bb, start) > maxDist {
			continue
		}

		result, ok := trace.BBoxIntercept(bb, start, end)
		if !ok {
			continue
		}

		dist := result.Position().Sub(start).Len()
		if dist <= traceEpsilon || dist >= closestDist {
			continue
		}

		closestDist = dist
		closestBox = bb
		closest = TraceResult{
			Position: result.Position(),
			Normal:   game.FaceNormal(result.Face()),
			Material: e.Material,
			TargetID: id,
		}
		found = true
	}
	if found {
		closest.Exit = boxExit(closestBox, closest.Position, span)
	}

	return closest, found
}

// boxExit continues the trace through the struck box and returns where it leaves
// on the far side. The reverse trace starts from a point guaranteed to be beyond
// the box along the travel direction.
func boxExit(bb cube.BBox, entry, span mgl32.Vec3) mgl32.Vec3 {
	length := span.Len()
	if length == 0 {
		return entry
	}

	far := entry.Add(span.Mul((bb.Max().Sub(bb.Min()).Len() + 1) / length))
	if res, ok := trace.BBoxIntercept(bb, far, entry); ok {
		return res.Position()
	}

	return entry
}
