package entity

import "github.com/riftcade/tracefire/game"

// Rewind looks back in the position history of the entity, and returns the position
// at the given tick. If no record exists for the exact tick, the closest recorded
// tick is returned instead. The second return value is false only when the entity
// has no history at all.
func (e *Entity) Rewind(tick int64) (HistoricalPosition, bool) {
	if e.PositionHistory.Len() == 0 {
		return HistoricalPosition{}, false
	}

	if hp, ok := e.PositionHistory.At(tick); ok {
		return hp, true
	}

	var (
		result HistoricalPosition
		delta  int64 = 1 << 62
	)
	for hp := range e.PositionHistory.Iter() {
		currentDelta := game.AbsInt64(hp.Tick - tick)
		if currentDelta <= delta {
			result = hp
			delta = currentDelta
		}
	}

	return result, true
}
