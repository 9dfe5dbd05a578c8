package tracefire

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/riftcade/tracefire/config"
	"github.com/riftcade/tracefire/entity"
	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/lagcomp"
	"github.com/riftcade/tracefire/oerror"
	"github.com/riftcade/tracefire/projectile"
	"github.com/riftcade/tracefire/session"
	"github.com/riftcade/tracefire/worker"
)

// Options configures a new engine. Log and the three outbound interfaces are
// optional; Oracle defaults to a history-backed oracle owned by the engine.
type Options struct {
	Log    *logrus.Logger
	Config config.Config

	// Oracle answers rewind traces. Leave nil to let the engine own a
	// HistoryOracle, reachable via Engine.Oracle for entity recording.
	Oracle lagcomp.Oracle

	Damage  session.DamageApplicator
	Effects session.EffectSink
	Confirm session.HitConfirmer
}

// Engine is the per-session ownership handle for the trace-projectile
// simulation. A match owns exactly one engine, constructed with the session and
// torn down with it; there is no global instance.
type Engine struct {
	id  uuid.UUID
	log *logrus.Logger

	cfg    config.Config
	oracle lagcomp.Oracle

	worker      *projectile.SimWorker
	dispatcher  *worker.Dispatcher
	coordinator *session.Coordinator

	closed atomic.Bool
}

// New creates an engine and starts its simulation worker and dispatch pool.
func New(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logrus.New()
	}

	oracle := opts.Oracle
	if oracle == nil {
		oracle = lagcomp.NewHistoryOracle()
	}

	w := projectile.NewSimWorker(log, oracle, opts.Config.TickRate, opts.Config.SpawnQueueSize)
	d := worker.NewDispatcher(log, opts.Config.DispatchWorkers)

	e := &Engine{
		id:          uuid.New(),
		log:         log,
		cfg:         opts.Config,
		oracle:      oracle,
		worker:      w,
		dispatcher:  d,
		coordinator: session.NewCoordinator(log, w, d, opts.Damage, opts.Effects, opts.Confirm),
	}
	log.Debugf("tracefire engine %s started at %v ticks/s", e.id, opts.Config.TickRate)

	return e, nil
}

// ID returns the engine's session identity.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Oracle returns the engine's lag compensation oracle. When the engine owns a
// HistoryOracle, gameplay code records entity movement through it.
func (e *Engine) Oracle() lagcomp.Oracle {
	return e.oracle
}

// Track registers a rewindable target with the engine's history oracle, with
// position history sized by the configured history depth. It returns an error
// when the engine's oracle is not history-backed.
func (e *Engine) Track(id uint64, pos mgl32.Vec3, width, height float32, mat game.MaterialTag) error {
	h, ok := e.oracle.(*lagcomp.HistoryOracle)
	if !ok {
		return oerror.New("engine %s: cannot track targets on a custom oracle", e.id)
	}

	h.Add(id, entity.New(pos, width, height, mat, e.cfg.HistoryTicks, e.CurrentTick()))
	return nil
}

// MoveTarget records a tracked target's position for the current tick. Teleports
// are flagged so the movement is not treated as continuous.
func (e *Engine) MoveTarget(id uint64, pos mgl32.Vec3, teleport bool) {
	if h, ok := e.oracle.(*lagcomp.HistoryOracle); ok {
		h.Move(id, pos, e.CurrentTick(), teleport)
	}
}

// Untrack removes a target from the engine's history oracle. Projectiles still
// in flight stop colliding with it immediately.
func (e *Engine) Untrack(id uint64) {
	if h, ok := e.oracle.(*lagcomp.HistoryOracle); ok {
		h.Remove(id)
	}
}

// Spawn fires one trace projectile. The request's gravity defaults to the
// configured gravity when unset.
func (e *Engine) Spawn(req projectile.SpawnRequest) error {
	if e.closed.Load() {
		return oerror.New("engine %s: spawn after close", e.id)
	}

	if req.NoDrop {
		req.Gravity = 0
	} else if req.Gravity == 0 {
		req.Gravity = e.cfg.Gravity
	}
	return e.coordinator.Spawn(req)
}

// BeginTick delivers last tick's impacts and pulses the simulation worker. Call
// once at the start of every game tick, before gameplay logic runs.
func (e *Engine) BeginTick(dt float32) {
	if e.closed.Load() {
		return
	}
	e.coordinator.OnTickBegin(dt)
}

// EndTick flushes the tick's batched impact effects. Call once at the end of
// every game tick.
func (e *Engine) EndTick() {
	if e.closed.Load() {
		return
	}
	e.coordinator.OnTickEnd()
}

// CurrentTick returns the engine's tick clock, to be used for spawn timestamps
// and entity movement recording.
func (e *Engine) CurrentTick() int64 {
	return e.coordinator.CurrentTick()
}

// Stats returns a diagnostics snapshot.
func (e *Engine) Stats() session.Stats {
	return e.coordinator.Stats()
}

// Close tears the engine down. In-flight projectiles are discarded unresolved;
// Close is safe to call more than once.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}

	e.worker.Close()
	e.dispatcher.Close()
	e.log.Debugf("tracefire engine %s closed", e.id)
}
