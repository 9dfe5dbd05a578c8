package projectile

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftcade/tracefire/game"
	"github.com/riftcade/tracefire/lagcomp"
)

var (
	ErrNegativeLifetime    = errors.New("projectile: spawn request has a non-positive lifetime")
	ErrNegativeRange       = errors.New("projectile: spawn request has a non-positive max range")
	ErrNegativeRadius      = errors.New("projectile: spawn request has a negative radius")
	ErrMissingDamageEffect = errors.New("projectile: spawn request is missing a damage effect reference")
	ErrZeroVelocity        = errors.New("projectile: spawn request has a zero velocity")
)

// SpawnRequest carries everything gameplay code needs to hand over to fire one
// trace projectile. It is consumed once: the coordinator converts it into a
// TraceProjectile at enqueue time.
type SpawnRequest struct {
	Origin   mgl32.Vec3
	Velocity mgl32.Vec3

	// SpawnTick is the server tick the shot was fired on, used as the base of
	// every lag-compensation rewind for this projectile.
	SpawnTick int64

	MaxRange float32
	Lifetime float32

	// Radius of 0 traces an infinitely thin line; above 0 traces a swept sphere.
	Radius float32

	// Gravity is the downward acceleration applied to the projectile, in units
	// per second squared. When zero, the engine substitutes its configured
	// default unless NoDrop is set.
	Gravity float32

	// NoDrop disables gravity entirely, regardless of Gravity or the engine's
	// configured default.
	NoDrop bool

	// Penetrations is the amount of surfaces the projectile may pass through
	// before it is forced to stop or ricochet. -1 is unlimited.
	Penetrations int

	Materials game.MaterialRules

	InstigatorID uint64
	CauserID     uint64

	DamageEffect game.EffectRef
	ImpactCue    game.CueTag

	// LatencyHint is the client-reported latency at fire time. Diagnostics only;
	// correctness of the rewind depends solely on SpawnTick.
	LatencyHint float32
}

// Aim returns a velocity of the given speed pointing along the shooter's view
// yaw and pitch, in degrees, for filling SpawnRequest.Velocity.
func Aim(yaw, pitch, speed float32) mgl32.Vec3 {
	return game.DirectionVector(yaw, pitch).Mul(speed)
}

// Validate rejects malformed requests before a projectile is ever created.
func (r SpawnRequest) Validate() error {
	if r.Lifetime <= 0 {
		return ErrNegativeLifetime
	}
	if r.MaxRange <= 0 {
		return ErrNegativeRange
	}
	if r.Radius < 0 {
		return ErrNegativeRadius
	}
	if r.DamageEffect == 0 {
		return ErrMissingDamageEffect
	}
	if r.Velocity.LenSqr() == 0 {
		return ErrZeroVelocity
	}

	return nil
}

// TraceProjectile is a live in-flight projectile. Once enqueued to the simulation
// worker, it is owned and mutated exclusively by the worker goroutine.
type TraceProjectile struct {
	ID uint64

	Position mgl32.Vec3
	Velocity mgl32.Vec3

	SpawnTick int64

	// Elapsed is the accumulated simulated seconds since fire. Added to
	// SpawnTick on every trace so a bullet that has flown for 200ms is checked
	// against where its target was 200ms after the shot, not at fire time.
	Elapsed float32

	Traveled          float32
	MaxRange          float32
	RemainingLifetime float32

	Radius  float32
	Gravity float32

	PenetrationsRemaining int
	Materials             game.MaterialRules

	InstigatorID uint64
	CauserID     uint64

	DamageEffect game.EffectRef
	ImpactCue    game.CueTag
}

// FromRequest converts a validated spawn request into a live projectile with the
// given id.
func FromRequest(id uint64, r SpawnRequest) *TraceProjectile {
	if r.NoDrop {
		r.Gravity = 0
	}
	return &TraceProjectile{
		ID:                    id,
		Position:              r.Origin,
		Velocity:              r.Velocity,
		SpawnTick:             r.SpawnTick,
		MaxRange:              r.MaxRange,
		RemainingLifetime:     r.Lifetime,
		Radius:                r.Radius,
		Gravity:               r.Gravity,
		PenetrationsRemaining: r.Penetrations,
		Materials:             r.Materials,
		InstigatorID:          r.InstigatorID,
		CauserID:              r.CauserID,
		DamageEffect:          r.DamageEffect,
		ImpactCue:             r.ImpactCue,
	}
}

// ImpactRecord is produced by the simulation worker for every terminal collision
// and consumed by the coordinator one tick later. Attribution and effect fields
// are passed through from the spawn request untouched.
type ImpactRecord struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3

	Material game.MaterialTag
	TargetID uint64

	ProjectileID uint64
	InstigatorID uint64
	CauserID     uint64

	DamageEffect game.EffectRef
	ImpactCue    game.CueTag
}

func recordFor(p *TraceProjectile, res lagcomp.TraceResult) ImpactRecord {
	return ImpactRecord{
		Position:     res.Position,
		Normal:       res.Normal,
		Material:     res.Material,
		TargetID:     res.TargetID,
		ProjectileID: p.ID,
		InstigatorID: p.InstigatorID,
		CauserID:     p.CauserID,
		DamageEffect: p.DamageEffect,
		ImpactCue:    p.ImpactCue,
	}
}
