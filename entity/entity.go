package entity

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftcade/tracefire/game"
)

// DefaultHistorySize is the default amount of ticks an entity's position history
// is retained for. It bounds how much latency a rewind trace can compensate.
const DefaultHistorySize = 20

// Entity is a rewindable target: anything a trace projectile can strike. That
// includes players as well as static cover surfaces, which simply never move.
type Entity struct {
	Position     mgl32.Vec3
	PrevPosition mgl32.Vec3

	// Material is the physical material reported for impacts on this entity.
	Material game.MaterialTag

	aabb cube.BBox

	PositionHistory    *History
	TicksSinceTeleport int64
}

// New creates an entity at the given position with the given bounding box
// dimensions. The spawn position is recorded as the first history entry at
// the given tick.
func New(pos mgl32.Vec3, width, height float32, mat game.MaterialTag, historySize int, tick int64) *Entity {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	e := &Entity{
		Position:        pos,
		PrevPosition:    pos,
		Material:        mat,
		aabb:            game.AABBFromDimensions(width, height),
		PositionHistory: NewHistory(historySize),
	}
	e.PositionHistory.Add(HistoricalPosition{
		Position:     pos,
		PrevPosition: pos,
		Tick:         tick,
	})

	return e
}

// Move updates the entity's position at the given tick and records it into the
// position history.
func (e *Entity) Move(pos mgl32.Vec3, tick int64, teleport bool) {
	e.PrevPosition = e.Position
	e.Position = pos

	if teleport {
		e.TicksSinceTeleport = 0
	} else {
		e.TicksSinceTeleport++
	}

	e.PositionHistory.Add(HistoricalPosition{
		Position:     pos,
		PrevPosition: e.PrevPosition,
		Teleport:     teleport,
		Tick:         tick,
	})
}

// AABB returns the entity's bounding box, unpositioned.
func (e *Entity) AABB() cube.BBox {
	return e.aabb
}

// Box returns the entity's bounding box translated to the given position.
func (e *Entity) Box(pos mgl32.Vec3) cube.BBox {
	return e.aabb.Translate(pos)
}
