package entity

import (
	"iter"

	"github.com/go-gl/mathgl/mgl32"
)

// HistoricalPosition is a position of an entity that was recorded at a certain tick.
type HistoricalPosition struct {
	Position     mgl32.Vec3
	PrevPosition mgl32.Vec3

	Teleport bool
	Tick     int64
}

// History is a fixed-size circular buffer of historical positions. Old records are
// overwritten once the buffer is full, bounding how far back a rewind can reach.
type History struct {
	records []HistoricalPosition
	head    int
	size    int
}

func NewHistory(capacity int) *History {
	return &History{records: make([]HistoricalPosition, capacity)}
}

// Add inserts a new position record, evicting the oldest one if the buffer is full.
func (h *History) Add(hp HistoricalPosition) {
	h.records[h.head] = hp
	h.head = (h.head + 1) % len(h.records)
	if h.size < len(h.records) {
		h.size++
	}
}

// At retrieves the record for an exact tick, searching backwards from the most
// recent record.
func (h *History) At(tick int64) (HistoricalPosition, bool) {
	for i := 0; i < h.size; i++ {
		idx := (h.head - 1 - i + len(h.records)) % len(h.records)
		if h.records[idx].Tick == tick {
			return h.records[idx], true
		}
		if h.records[idx].Tick < tick {
			break
		}
	}

	return HistoricalPosition{}, false
}

// Latest returns the most recently added record.
func (h *History) Latest() (HistoricalPosition, bool) {
	if h.size == 0 {
		return HistoricalPosition{}, false
	}
	return h.records[(h.head-1+len(h.records))%len(h.records)], true
}

// Iter yields all records, oldest first.
func (h *History) Iter() iter.Seq[HistoricalPosition] {
	return func(yield func(HistoricalPosition) bool) {
		for i := 0; i < h.size; i++ {
			idx := (h.head - h.size + i + len(h.records)) % len(h.records)
			if !yield(h.records[idx]) {
				return
			}
		}
	}
}

// Len returns the current number of records in the buffer.
func (h *History) Len() int {
	return h.size
}

// Clear removes all records from the buffer.
func (h *History) Clear() {
	h.head = 0
	h.size = 0
}
