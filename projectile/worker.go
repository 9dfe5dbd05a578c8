package projectile

import (
	"github.com/chewxy/math32"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/riftcade/tracefire/assert"
	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/internal"
	"github.com/riftcade/tracefire/lagcomp"
)

// DefaultSpawnQueueSize is the default capacity of the enqueue channel. Spawn
// requests beyond it in a single tick are dropped rather than blocking gameplay.
const DefaultSpawnQueueSize = 1024

type pulse struct {
	tick int64
	dt   float32
}

// SimWorker owns the live set of in-flight projectiles and advances them on a
// dedicated goroutine, one step per tick pulse. It is the only goroutine that
// ever touches a live projectile; the only data crossing threads are the spawn
// queue in and the impact list out.
type SimWorker struct {
	log    *logrus.Logger
	oracle lagcomp.Oracle

	// tickRate converts a projectile's elapsed simulated seconds into ticks when
	// computing the rewind instant for a trace.
	tickRate float32

	live map[uint64]*TraceProjectile

	spawnQueue chan *TraceProjectile
	pulses     chan pulse
	results    chan []ImpactRecord
	closed     chan struct{}

	// carry holds impacts the coordinator has not collected yet, so a slow
	// collection never loses a record.
	carry []ImpactRecord

	pool *internal.SlicePool[ImpactRecord]

	liveCount    atomic.Int64
	missedPulses atomic.Int64
	pulsesDone   atomic.Int64
}

// NewSimWorker creates a simulation worker and starts its goroutine. The worker
// runs until Close is called.
func NewSimWorker(log *logrus.Logger, oracle lagcomp.Oracle, tickRate float32, queueSize int) *SimWorker {
	assert.IsTrue(oracle != nil, "sim worker created without an oracle")
	assert.IsTrue(tickRate > 0, "sim worker created with tick rate %v", tickRate)

	if queueSize <= 0 {
		queueSize = DefaultSpawnQueueSize
	}

	w := &SimWorker{
		log:      log,
		oracle:   oracle,
		tickRate: tickRate,

		live: make(map[uint64]*TraceProjectile),

		spawnQueue: make(chan *TraceProjectile, queueSize),
		pulses:     make(chan pulse, 1),
		results:    make(chan []ImpactRecord, 1),
		closed:     make(chan struct{}),

		pool: internal.NewSlicePool[ImpactRecord](32),
	}
	go w.loop()

	return w
}

// Enqueue hands a projectile to the worker. It never blocks: if the queue is
// full, the projectile is discarded and false is returned.
func (w *SimWorker) Enqueue(p *TraceProjectile) bool {
	select {
	case w.spawnQueue <- p:
		return true
	default:
		return false
	}
}

// Pulse wakes the worker to advance the simulation by dt seconds at the given
// tick. The signal is single-slot: if the worker has fallen a full pulse behind,
// the extra pulse is discarded so the calling thread never stalls.
func (w *SimWorker) Pulse(tick int64, dt float32) {
	select {
	case w.pulses <- pulse{tick: tick, dt: dt}:
	default:
		w.missedPulses.Inc()
		w.log.Debugf("sim worker missed pulse at tick %d", tick)
	}
}

// CollectImpacts returns the impact records produced by the previous pulse, or
// nil if the worker has not finished it yet. The returned slice must be handed
// back via Recycle once consumed.
func (w *SimWorker) CollectImpacts() []ImpactRecord {
	select {
	case recs := <-w.results:
		return recs
	default:
		return nil
	}
}

// Recycle returns a consumed impact slice to the worker's pool.
func (w *SimWorker) Recycle(recs []ImpactRecord) {
	if recs != nil {
		w.pool.Put(recs)
	}
}

// LiveCount returns the amount of projectiles currently being simulated.
func (w *SimWorker) LiveCount() int64 {
	return w.liveCount.Load()
}

// MissedPulses returns the amount of tick pulses discarded because the worker
// was still busy with a previous one.
func (w *SimWorker) MissedPulses() int64 {
	return w.missedPulses.Load()
}

// PulsesProcessed returns the amount of tick pulses the worker has fully
// simulated and published results for.
func (w *SimWorker) PulsesProcessed() int64 {
	return w.pulsesDone.Load()
}

// Close stops the worker goroutine. In-flight projectiles are discarded
// unresolved.
func (w *SimWorker) Close() {
	close(w.closed)
}

func (w *SimWorker) loop() {
	defer sentry.Recover()

	for {
		select {
		case <-w.closed:
			return
		case p := <-w.pulses:
			w.drainSpawnQueue()
			w.publish(w.advance(p.dt))
			w.pulsesDone.Inc()
		}
	}
}

// drainSpawnQueue moves every queued projectile into the live set. Projectiles
// queued during a tick start simulating on that same tick's pulse.
func (w *SimWorker) drainSpawnQueue() {
	for {
		select {
		case p := <-w.spawnQueue:
			w.live[p.ID] = p
		default:
			w.liveCount.Store(int64(len(w.live)))
			return
		}
	}
}

// advance steps every live projectile by dt seconds and returns the impact
// records of all terminal collisions resolved this pulse.
func (w *SimWorker) advance(dt float32) []ImpactRecord {
	out := w.pool.Get()
	for id, p := range w.live {
		rec, terminal := w.step(p, dt)
		if terminal {
			delete(w.live, id)
			if rec != nil {
				out = append(out, *rec)
			}
		}
	}
	w.liveCount.Store(int64(len(w.live)))

	return out
}

// step advances a single projectile by dt. It returns whether the projectile is
// done, and an impact record if it ended in a terminal collision rather than an
// exhausted budget.
func (w *SimWorker) step(p *TraceProjectile, dt float32) (*ImpactRecord, bool) {
	p.Velocity[1] -= p.Gravity * dt
	candidate := p.Position.Add(p.Velocity.Mul(dt))

	// The rewind instant moves forward with the bullet: a shot that has flown
	// for 200ms is checked against where the target was 200ms after fire time.
	p.Elapsed += dt
	rewindTick := p.SpawnTick + int64(math32.Round(p.Elapsed*w.tickRate))

	p.RemainingLifetime -= dt

	res, hit := w.oracle.RewindTrace(p.Position, candidate, p.Radius, rewindTick)
	if !hit {
		p.Traveled += candidate.Sub(p.Position).Len()
		p.Position = candidate
		return nil, w.exhausted(p)
	}

	p.Traveled += res.Position.Sub(p.Position).Len()
	p.Position = res.Position

	rule := p.Materials.Lookup(res.Material)
	switch {
	case rule.CanPenetrate && p.PenetrationsRemaining != 0:
		if p.PenetrationsRemaining > 0 {
			p.PenetrationsRemaining--
		}
		p.Velocity = p.Velocity.Mul(1 - rule.SpeedLoss)
		// The projectile crosses the struck volume within this pulse and
		// continues from its far side on the next one, keeping its id and
		// penetration chain intact. Starting past the surface also keeps the
		// next trace from re-entering the volume it already passed through.
		p.Traveled += res.Exit.Sub(p.Position).Len()
		p.Position = res.Exit
		return nil, w.exhausted(p)
	case rule.CanRicochet:
		p.Velocity = game.Reflect(p.Velocity, res.Normal).Mul(1 - rule.SpeedLoss)
		return nil, w.exhausted(p)
	default:
		rec := recordFor(p, res)
		return &rec, true
	}
}

// exhausted reports whether the projectile's range or lifetime budget has run
// out, despawning it with no impact.
func (w *SimWorker) exhausted(p *TraceProjectile) bool {
	return p.RemainingLifetime <= 0 || p.Traveled >= p.MaxRange
}

func (w *SimWorker) publish(out []ImpactRecord) {
	if len(w.carry) > 0 {
		out = append(w.carry, out...)
		w.carry = nil
	}
	if len(out) == 0 {
		w.pool.Put(out)
		return
	}

	select {
	case w.results <- out:
	default:
		// The previous pulse's impacts have not been collected yet; hold on to
		// these until the next pulse so none are dropped.
		w.carry = out
	}
}
