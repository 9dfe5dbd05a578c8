package game

// MaterialTag identifies the physical material of a struck surface at the time of
// impact. Tags are data, not code: the engine never interprets them beyond looking
// up the rule configured for them.
type MaterialTag string

// CueTag identifies the visual/audio cue set to play for an impact. Opaque to the
// engine; carried from spawn request to the outbound effect call untouched.
type CueTag string

// EffectRef is an opaque handle to a damage effect. The engine never dereferences
// it; gameplay code resolves it back to a live effect on the main thread.
type EffectRef uint32

// MaterialRule decides what a projectile does when it strikes a surface of a given
// material. SpeedLoss is the fraction of speed lost on a penetration or ricochet
// transition, in the range [0, 1].
type MaterialRule struct {
	CanPenetrate bool    `yaml:"can_penetrate"`
	CanRicochet  bool    `yaml:"can_ricochet"`
	SpeedLoss    float32 `yaml:"speed_loss"`
}

// MaterialRules maps material tags to their rules. Unknown tags resolve to the
// zero rule, which stops the projectile.
type MaterialRules map[MaterialTag]MaterialRule

// Lookup returns the rule for the given tag, or the stopping rule if none is
// configured for it.
func (r MaterialRules) Lookup(tag MaterialTag) MaterialRule {
	if r == nil {
		return MaterialRule{}
	}
	return r[tag]
}
