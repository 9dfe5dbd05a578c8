package session

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/projectile"
)

// BatchKey is the effect signature of an impact. Two impacts with an identical
// key are visually indistinguishable and always safe to merge into one outbound
// effect call.
type BatchKey struct {
	ImpactCue    game.CueTag
	InstigatorID uint64
	CauserID     uint64
	DamageEffect game.EffectRef
}

func keyOf(rec projectile.ImpactRecord) BatchKey {
	return BatchKey{
		ImpactCue:    rec.ImpactCue,
		InstigatorID: rec.InstigatorID,
		CauserID:     rec.CauserID,
		DamageEffect: rec.DamageEffect,
	}
}

// ImpactBatch carries all impacts that shared a key within one tick. The
// position, normal and material slices are index-aligned.
type ImpactBatch struct {
	Key BatchKey

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Materials []game.MaterialTag
}

// EffectSink receives one call per flushed batch. Calls are dispatched off the
// game thread; implementations only need to be safe for concurrent use with
// themselves.
type EffectSink interface {
	TriggerImpactBatch(batch ImpactBatch)
}

// Aggregator groups the impacts of a single tick by effect signature, so a
// 30-hit burst leaves the process as one effect call carrying 30 impact points
// rather than 30 separate calls. Accumulation lasts exactly one tick: nothing
// is emitted until Flush.
type Aggregator struct {
	groups *orderedmap.OrderedMap[BatchKey, *ImpactBatch]
}

func NewAggregator() *Aggregator {
	return &Aggregator{groups: orderedmap.NewOrderedMap[BatchKey, *ImpactBatch]()}
}

// Insert files the record under its effect signature.
func (a *Aggregator) Insert(rec projectile.ImpactRecord) {
	key := keyOf(rec)
	batch, ok := a.groups.Get(key)
	if !ok {
		batch = &ImpactBatch{Key: key}
		a.groups.Set(key, batch)
	}

	batch.Positions = append(batch.Positions, rec.Position)
	batch.Normals = append(batch.Normals, rec.Normal)
	batch.Materials = append(batch.Materials, rec.Material)
}

// Len returns the amount of distinct effect signatures accumulated so far.
func (a *Aggregator) Len() int {
	return a.groups.Len()
}

// Flush emits every accumulated batch to the sink in insertion order and resets
// the aggregator for the next tick. It returns the amount of batches emitted.
func (a *Aggregator) Flush(sink EffectSink) int {
	flushed := 0
	for _, key := range a.groups.Keys() {
		batch, _ := a.groups.Get(key)
		sink.TriggerImpactBatch(*batch)
		flushed++
	}
	a.groups = orderedmap.NewOrderedMap[BatchKey, *ImpactBatch]()

	return flushed
}
