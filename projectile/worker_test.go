package projectile

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftcade/tracefire/entity"
	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/lagcomp"
)

// wallOracle is an oracle made of infinite planes perpendicular to the X axis.
// A trace hits the nearest wall strictly after its start and at or before its
// end, which makes multi-surface penetration scenarios trivial to script.
type wallOracle struct {
	mu    sync.Mutex
	walls []wall

	queries     int
	rewindTicks []int64
}

type wall struct {
	x        float32
	material game.MaterialTag
	targetID uint64
}

func (o *wallOracle) RewindTrace(start, end mgl32.Vec3, radius float32, tick int64) (lagcomp.TraceResult, bool) {
	o.mu.Lock()
	o.queries++
	o.rewindTicks = append(o.rewindTicks, tick)
	o.mu.Unlock()

	deltaX := end.X() - start.X()
	if deltaX <= 0 {
		return lagcomp.TraceResult{}, false
	}

	var (
		hit   lagcomp.TraceResult
		bestT = float32(2)
		found bool
	)
	for _, w := range o.walls {
		if start.X() >= w.x || end.X() < w.x {
			continue
		}
		t := (w.x - start.X()) / deltaX
		if t < bestT {
			bestT = t
			pos := start.Add(end.Sub(start).Mul(t))
			hit = lagcomp.TraceResult{
				Position: pos,
				Normal:   mgl32.Vec3{-1, 0, 0},
				Material: w.material,
				// Walls are zero-thickness planes.
				Exit:     pos,
				TargetID: w.targetID,
			}
			found = true
		}
	}

	return hit, found
}

func (o *wallOracle) queryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queries
}

func (o *wallOracle) ticksQueried() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int64(nil), o.rewindTicks...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// pulseAndWait raises a tick pulse and blocks until the oracle has answered the
// expected total amount of queries, which proves the worker finished the pulse.
func pulseAndWait(t *testing.T, w *SimWorker, oracle *wallOracle, tick int64, wantQueries int) {
	t.Helper()

	w.Pulse(tick, 1)
	require.Eventually(t, func() bool {
		return oracle.queryCount() >= wantQueries
	}, time.Second, time.Millisecond, "worker did not process pulse %d", tick)
}

func collectEventually(t *testing.T, w *SimWorker) []ImpactRecord {
	t.Helper()

	var recs []ImpactRecord
	require.Eventually(t, func() bool {
		recs = w.CollectImpacts()
		return recs != nil
	}, time.Second, time.Millisecond)

	return recs
}

func waitLive(t *testing.T, w *SimWorker, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return w.LiveCount() == want
	}, time.Second, time.Millisecond)
}

func straightShot(id uint64, speed float32) *TraceProjectile {
	return FromRequest(id, SpawnRequest{
		Origin:       mgl32.Vec3{},
		Velocity:     mgl32.Vec3{speed, 0, 0},
		SpawnTick:    1,
		MaxRange:     1000,
		Lifetime:     60,
		NoDrop:       true,
		DamageEffect: 1,
		ImpactCue:    "cue.rifle",
	})
}

// A thin straight shot at a stationary surface 10 units away, moving 10 units
// per tick, must resolve exactly one impact on the surface after one pulse.
func TestWorkerDirectHit(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 10, material: "concrete", targetID: 7}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	require.True(t, w.Enqueue(straightShot(1, 10)))
	w.Pulse(1, 1)

	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{10, 0, 0}, recs[0].Position), "impact should be on the wall surface, got %v", recs[0].Position)
	assert.Equal(t, game.MaterialTag("concrete"), recs[0].Material)
	assert.Equal(t, uint64(7), recs[0].TargetID)
	assert.Equal(t, uint64(1), recs[0].ProjectileID)
	assert.EqualValues(t, 0, w.LiveCount())
	w.Recycle(recs)
}

// Gravity integrates into velocity before translation, so a 10 unit/s shot with
// 1 unit/s² of drop lands 1 unit low on a wall 10 units out after one 1s pulse.
func TestWorkerGravityDrop(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 10, material: "concrete"}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.Gravity = 1
	require.True(t, w.Enqueue(p))
	w.Pulse(1, 1)

	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{10, -1, 0}, recs[0].Position), "expected drop-adjusted impact, got %v", recs[0].Position)
	w.Recycle(recs)
}

// Two penetrations through three sequential penetrable surfaces must exhaust the
// budget and terminate on the third surface, with the one impact record placed
// exactly at that surface: the penetration chain introduces no positional drift.
func TestWorkerPenetrationChain(t *testing.T) {
	oracle := &wallOracle{walls: []wall{
		{x: 1, material: "plywood"},
		{x: 2, material: "plywood"},
		{x: 3, material: "plywood"},
	}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.PenetrationsRemaining = 2
	p.Materials = game.MaterialRules{
		"plywood": {CanPenetrate: true},
	}
	require.True(t, w.Enqueue(p))

	// One surface resolves per pulse; the exit point of pulse K is the entry
	// point of pulse K+1.
	pulseAndWait(t, w, oracle, 1, 1)
	require.Nil(t, w.CollectImpacts(), "first penetration must not produce an impact")
	require.EqualValues(t, 1, w.LiveCount())

	pulseAndWait(t, w, oracle, 2, 2)
	require.Nil(t, w.CollectImpacts(), "second penetration must not produce an impact")
	require.EqualValues(t, 1, w.LiveCount())

	pulseAndWait(t, w, oracle, 3, 3)
	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{3, 0, 0}, recs[0].Position), "exhausted chain must stop exactly on the third surface, got %v", recs[0].Position)
	assert.EqualValues(t, 0, w.LiveCount())
	w.Recycle(recs)
}

// Penetration speed loss scales velocity down at the transition point.
func TestWorkerPenetrationSpeedLoss(t *testing.T) {
	oracle := &wallOracle{walls: []wall{
		{x: 5, material: "steel"},
		{x: 20, material: "steel"},
	}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.PenetrationsRemaining = -1
	p.Materials = game.MaterialRules{
		"steel": {CanPenetrate: true, SpeedLoss: 0.5},
	}
	require.True(t, w.Enqueue(p))

	// Pulse 1 penetrates at x=5 and halves the speed to 5/s. Pulses 2 and 3
	// advance to x=10 and x=15, short of the far wall at x=20.
	for tick := int64(1); tick <= 3; tick++ {
		pulseAndWait(t, w, oracle, tick, int(tick))
		require.Nil(t, w.CollectImpacts())
	}

	pulseAndWait(t, w, oracle, 4, 4)
	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{20, 0, 0}, recs[0].Position))
	w.Recycle(recs)
}

// A ricochet reflects velocity about the impact normal and keeps the projectile
// alive, so it never reaches anything behind the surface it bounced off.
func TestWorkerRicochet(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 5, material: "steel"}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.RemainingLifetime = 3
	p.Materials = game.MaterialRules{
		"steel": {CanRicochet: true},
	}
	require.True(t, w.Enqueue(p))

	pulseAndWait(t, w, oracle, 1, 1)
	require.Nil(t, w.CollectImpacts(), "ricochet must not produce an impact")
	require.EqualValues(t, 1, w.LiveCount())

	// Reflected about {-1,0,0} the projectile now flies in -X, away from the
	// wall, until its lifetime expires with no further impacts.
	pulseAndWait(t, w, oracle, 2, 2)
	pulseAndWait(t, w, oracle, 3, 3)
	waitLive(t, w, 0)
	assert.Nil(t, w.CollectImpacts())
}

// pulseWorker raises a tick pulse and blocks until the worker has fully
// simulated it, for oracles without a query counter to sync on.
func pulseWorker(t *testing.T, w *SimWorker, tick int64) {
	t.Helper()

	before := w.PulsesProcessed()
	w.Pulse(tick, 1)
	require.Eventually(t, func() bool {
		return w.PulsesProcessed() > before
	}, time.Second, time.Millisecond, "worker did not process pulse %d", tick)
}

// Penetrating a real history-oracle box must carry the projectile out its far
// side: the next pulse's trace starts past the volume, never stalled on the
// entry face it already resolved.
func TestWorkerPenetratesThroughBox(t *testing.T) {
	oracle := lagcomp.NewHistoryOracle()
	// A penetrable box spanning x 9.5..10.5 with a stopping box behind it.
	oracle.Add(1, entity.New(mgl32.Vec3{10, -1, 0}, 1, 2, "plywood", 4, 0))
	oracle.Add(2, entity.New(mgl32.Vec3{15, -1, 0}, 1, 2, "concrete", 4, 0))

	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 20)
	p.PenetrationsRemaining = 1
	p.Materials = game.MaterialRules{
		"plywood": {CanPenetrate: true},
	}
	require.True(t, w.Enqueue(p))

	// Pulse 1 enters the plywood at x=9.5 and exits at x=10.5 with the
	// penetration spent, producing no impact.
	pulseWorker(t, w, 1)
	require.Nil(t, w.CollectImpacts(), "penetration must not produce an impact")
	require.EqualValues(t, 1, w.LiveCount())

	// Pulse 2 continues from the far side and terminates on the concrete box.
	pulseWorker(t, w, 2)
	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{14.5, 0, 0}, recs[0].Position), "expected a clean hit behind the penetrated box, got %v", recs[0].Position)
	assert.Equal(t, game.MaterialTag("concrete"), recs[0].Material)
	assert.EqualValues(t, 2, recs[0].TargetID)
	assert.EqualValues(t, 0, w.LiveCount())
	w.Recycle(recs)
}

// A ricochet off a real history-oracle box must leave the surface: the reflected
// shot flies back past the shooter and lands on a box behind them instead of
// re-striking the face it bounced off every pulse.
func TestWorkerRicochetsOffBox(t *testing.T) {
	oracle := lagcomp.NewHistoryOracle()
	oracle.Add(1, entity.New(mgl32.Vec3{5, -1, 0}, 1, 2, "steel", 4, 0))
	oracle.Add(2, entity.New(mgl32.Vec3{-10, -1, 0}, 1, 2, "concrete", 4, 0))

	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.Materials = game.MaterialRules{
		"steel": {CanRicochet: true},
	}
	require.True(t, w.Enqueue(p))

	// Pulse 1 bounces off the steel face at x=4.5 and reflects the velocity.
	pulseWorker(t, w, 1)
	require.Nil(t, w.CollectImpacts(), "ricochet must not produce an impact")
	require.EqualValues(t, 1, w.LiveCount())

	// Pulse 2 flies to x=-5.5, clear of both boxes.
	pulseWorker(t, w, 2)
	require.Nil(t, w.CollectImpacts())
	require.EqualValues(t, 1, w.LiveCount())

	// Pulse 3 reaches the concrete box behind the shooter, entering through
	// its +X face.
	pulseWorker(t, w, 3)
	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{-9.5, 0, 0}, recs[0].Position), "expected the bounced shot to land behind the shooter, got %v", recs[0].Position)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, recs[0].Normal)
	w.Recycle(recs)
}

// A projectile whose range runs out with no hit despawns exactly once and
// produces zero impact records.
func TestWorkerRangeDespawn(t *testing.T) {
	oracle := &wallOracle{}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 10)
	p.MaxRange = 50
	require.True(t, w.Enqueue(p))

	// 10 units per pulse; the 50 unit budget is reached exactly on pulse 5.
	for tick := int64(1); tick <= 5; tick++ {
		pulseAndWait(t, w, oracle, tick, int(tick))
	}
	waitLive(t, w, 0)

	assert.Nil(t, w.CollectImpacts(), "range despawn must not produce impacts")
	assert.Equal(t, 5, oracle.queryCount(), "despawned projectile must stop being traced")
}

// Lifetime expiry behaves like range expiry: silent removal, no impacts.
func TestWorkerLifetimeDespawn(t *testing.T) {
	oracle := &wallOracle{}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 1)
	p.RemainingLifetime = 2
	require.True(t, w.Enqueue(p))

	pulseAndWait(t, w, oracle, 1, 1)
	require.EqualValues(t, 1, w.LiveCount())
	pulseAndWait(t, w, oracle, 2, 2)
	waitLive(t, w, 0)
	assert.Nil(t, w.CollectImpacts())
}

// The rewind instant must advance with the projectile's flight time: a bullet
// fired at tick 5 checks tick 6 on its first pulse, tick 7 on its second.
func TestWorkerRewindInstantAdvances(t *testing.T) {
	oracle := &wallOracle{}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	p := straightShot(1, 1)
	p.SpawnTick = 5
	require.True(t, w.Enqueue(p))

	pulseAndWait(t, w, oracle, 1, 1)
	pulseAndWait(t, w, oracle, 2, 2)
	pulseAndWait(t, w, oracle, 3, 3)

	assert.Equal(t, []int64{6, 7, 8}, oracle.ticksQueried())
}

// An oracle miss is not an error: the projectile keeps flying and is re-checked
// on the next pulse, where it may still land its hit.
func TestWorkerOracleMissIsSoft(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 25, material: "concrete"}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	require.True(t, w.Enqueue(straightShot(1, 10)))

	pulseAndWait(t, w, oracle, 1, 1)
	require.Nil(t, w.CollectImpacts())
	pulseAndWait(t, w, oracle, 2, 2)
	require.Nil(t, w.CollectImpacts())

	pulseAndWait(t, w, oracle, 3, 3)
	recs := collectEventually(t, w)
	require.Len(t, recs, 1)
	assert.True(t, game.Vec3ApproxEq(mgl32.Vec3{25, 0, 0}, recs[0].Position))
	w.Recycle(recs)
}

// Enqueue never blocks: once the spawn queue is full, further projectiles are
// refused until the worker drains it.
func TestWorkerEnqueueBackpressure(t *testing.T) {
	oracle := &wallOracle{}
	w := NewSimWorker(quietLogger(), oracle, 1, 2)
	defer w.Close()

	require.True(t, w.Enqueue(straightShot(1, 1)))
	require.True(t, w.Enqueue(straightShot(2, 1)))
	assert.False(t, w.Enqueue(straightShot(3, 1)), "third enqueue should be refused")

	w.Pulse(1, 1)
	waitLive(t, w, 2)
	assert.True(t, w.Enqueue(straightShot(4, 1)), "queue should accept again after draining")
}

// Projectiles enqueued before a pulse start simulating on that same pulse.
func TestWorkerSpawnSimulatesSameTick(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 1, material: "concrete"}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	require.True(t, w.Enqueue(straightShot(1, 5)))
	w.Pulse(1, 1)

	recs := collectEventually(t, w)
	require.Len(t, recs, 1, "a projectile queued this tick must be traced this tick")
	w.Recycle(recs)
}

// Impacts survive a slow collector: records not collected before the next pulse
// are carried over and delivered later, never dropped.
func TestWorkerImpactsCarryOver(t *testing.T) {
	oracle := &wallOracle{walls: []wall{{x: 1, material: "concrete"}}}
	w := NewSimWorker(quietLogger(), oracle, 1, 0)
	defer w.Close()

	// Two shots, two pulses, zero collections in between: the second pulse's
	// impact cannot be published while the first sits uncollected.
	require.True(t, w.Enqueue(straightShot(1, 5)))
	pulseAndWait(t, w, oracle, 1, 1)
	require.True(t, w.Enqueue(straightShot(2, 5)))
	pulseAndWait(t, w, oracle, 2, 2)

	total := 0
	tick := int64(3)
	require.Eventually(t, func() bool {
		if recs := w.CollectImpacts(); recs != nil {
			total += len(recs)
			w.Recycle(recs)
		}
		// Idle pulses republish anything the worker had to hold back.
		w.Pulse(tick, 1)
		tick++
		return total == 2
	}, time.Second, time.Millisecond, "both impacts must eventually be delivered")
}

func TestSpawnRequestValidate(t *testing.T) {
	valid := SpawnRequest{
		Velocity:     mgl32.Vec3{1, 0, 0},
		MaxRange:     100,
		Lifetime:     5,
		DamageEffect: 1,
	}
	require.NoError(t, valid.Validate())

	for name, tc := range map[string]struct {
		mutate func(*SpawnRequest)
		want   error
	}{
		"zero lifetime":     {func(r *SpawnRequest) { r.Lifetime = 0 }, ErrNegativeLifetime},
		"negative lifetime": {func(r *SpawnRequest) { r.Lifetime = -1 }, ErrNegativeLifetime},
		"zero range":        {func(r *SpawnRequest) { r.MaxRange = 0 }, ErrNegativeRange},
		"negative radius":   {func(r *SpawnRequest) { r.Radius = -0.5 }, ErrNegativeRadius},
		"missing effect":    {func(r *SpawnRequest) { r.DamageEffect = 0 }, ErrMissingDamageEffect},
		"zero velocity":     {func(r *SpawnRequest) { r.Velocity = mgl32.Vec3{} }, ErrZeroVelocity},
	} {
		t.Run(name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.ErrorIs(t, req.Validate(), tc.want)
		})
	}
}
