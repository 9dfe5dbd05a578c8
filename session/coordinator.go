package session

import (
	"github.com/sirupsen/logrus"

	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/projectile"
	"github.com/riftcade/tracefire/worker"
)

// DamageApplicator resolves an opaque damage effect reference against the struck
// target. Called on the game thread only, so implementations may touch live
// gameplay objects freely.
type DamageApplicator interface {
	ApplyDamageEffect(target uint64, effect game.EffectRef, instigator, causer uint64)
}

// HitConfirmer delivers a hit notice to the instigator of a shot, used for
// feedback such as hit markers. Fire-and-forget: calls arrive off the game
// thread and no acknowledgement is expected.
type HitConfirmer interface {
	ConfirmHit(instigator uint64, rec projectile.ImpactRecord)
}

// Coordinator runs on the game thread. It accepts spawn requests from gameplay
// code, keeps the simulation worker in lockstep with the game tick, applies the
// outcomes of impacts, and batches their visual effects for the end of the tick.
type Coordinator struct {
	log *logrus.Logger

	worker     *projectile.SimWorker
	dispatcher *worker.Dispatcher
	agg        *Aggregator

	damage    DamageApplicator
	effects   EffectSink
	confirmer HitConfirmer

	tick   int64
	nextID uint64

	spawned  int64
	rejected int64
	dropped  int64
	impacts  int64
	batches  int64

	latencySum   float32
	latencyCount int64
}

// Stats is a snapshot of the coordinator's counters, for diagnostics only.
type Stats struct {
	Tick              int64
	Spawned           int64
	Rejected          int64
	Dropped           int64
	Impacts           int64
	Batches           int64
	Live              int64
	MissedPulses      int64
	DroppedDispatches int64

	// AvgLatencyHint is the mean client-reported latency across all accepted
	// spawns, in seconds. Tuning visibility only.
	AvgLatencyHint float32
}

func NewCoordinator(log *logrus.Logger, w *projectile.SimWorker, d *worker.Dispatcher, damage DamageApplicator, effects EffectSink, confirmer HitConfirmer) *Coordinator {
	return &Coordinator{
		log:        log,
		worker:     w,
		dispatcher: d,
		agg:        NewAggregator(),
		damage:     damage,
		effects:    effects,
		confirmer:  confirmer,
	}
}

// Spawn validates the request, converts it into a live projectile and hands it
// to the simulation worker. It never blocks: under extreme backpressure the
// request is dropped with a warning instead of stalling gameplay.
func (c *Coordinator) Spawn(req projectile.SpawnRequest) error {
	if err := req.Validate(); err != nil {
		c.rejected++
		c.log.WithError(err).Warn("rejected projectile spawn request")
		return err
	}

	c.nextID++
	if !c.worker.Enqueue(projectile.FromRequest(c.nextID, req)) {
		c.dropped++
		c.log.Warnf("spawn queue full, dropping projectile %d", c.nextID)
		return nil
	}

	c.spawned++
	c.latencySum += req.LatencyHint
	c.latencyCount++

	return nil
}

// OnTickBegin delivers the impacts from the last pulse the worker has finished,
// then raises this tick's pulse. The one-tick pipeline is deliberate: impacts
// produced during tick N arrive at the start of tick N+1, never mid-tick. When
// the worker is still busy with the previous pulse, delivery slips one further
// tick rather than stalling the game thread; the worker carries the records
// until they are collected, so none are lost.
func (c *Coordinator) OnTickBegin(dt float32) {
	recs := c.worker.CollectImpacts()
	for _, rec := range recs {
		c.HandleImpact(rec)
	}
	c.worker.Recycle(recs)

	c.tick++
	c.worker.Pulse(c.tick, dt)
}

// HandleImpact applies the damage effect to the struck target, sends a hit
// confirmation to the instigator, and files the record for the end-of-tick
// effect flush.
func (c *Coordinator) HandleImpact(rec projectile.ImpactRecord) {
	c.impacts++

	if c.damage != nil {
		c.damage.ApplyDamageEffect(rec.TargetID, rec.DamageEffect, rec.InstigatorID, rec.CauserID)
	}
	if c.confirmer != nil {
		c.dispatcher.Submit(func() {
			c.confirmer.ConfirmHit(rec.InstigatorID, rec)
		})
	}

	c.agg.Insert(rec)
}

// OnTickEnd flushes the tick's accumulated impact batches, one outbound effect
// call per distinct effect signature. Calls run on the dispatcher so the game
// thread is never held up by effect delivery.
func (c *Coordinator) OnTickEnd() {
	if c.agg.Len() == 0 {
		return
	}

	c.batches += int64(c.agg.Flush(&dispatchSink{dispatcher: c.dispatcher, sink: c.effects}))
}

// CurrentTick returns the tick of the most recent pulse. Gameplay code uses it
// as the clock for spawn timestamps and entity movement recording.
func (c *Coordinator) CurrentTick() int64 {
	return c.tick
}

// Stats returns a snapshot of the coordinator's counters.
func (c *Coordinator) Stats() Stats {
	s := Stats{
		Tick:              c.tick,
		Spawned:           c.spawned,
		Rejected:          c.rejected,
		Dropped:           c.dropped,
		Impacts:           c.impacts,
		Batches:           c.batches,
		Live:              c.worker.LiveCount(),
		MissedPulses:      c.worker.MissedPulses(),
		DroppedDispatches: c.dispatcher.Dropped(),
	}
	if c.latencyCount > 0 {
		s.AvgLatencyHint = game.Round32(c.latencySum/float32(c.latencyCount), 4)
	}

	return s
}

// dispatchSink forwards batches onto the dispatcher, keeping the actual sink
// call off the game thread.
type dispatchSink struct {
	dispatcher *worker.Dispatcher
	sink       EffectSink
}

func (d *dispatchSink) TriggerImpactBatch(batch ImpactBatch) {
	if d.sink == nil {
		return
	}
	d.dispatcher.Submit(func() {
		d.sink.TriggerImpactBatch(batch)
	})
}
