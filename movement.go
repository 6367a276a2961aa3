package main

import "math"

// Direction is a movement intent relative to the opponent, not world axes
type Direction string

const (
	DirForward  Direction = "forward"
	DirBackward Direction = "backward"
	DirLeft     Direction = "left"
	DirRight    Direction = "right"
)

// ParseDirection validates a wire direction
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case DirForward, DirBackward, DirLeft, DirRight:
		return d, true
	}
	return "", false
}

// MoveResult reports what a single move changed
type MoveResult struct {
	Moved   []*Participant // actor always, opponent only if pushed
	LoserID string         // set when someone left the ring
}

// RoundEnded reports whether the move pushed someone out of the ring
func (r MoveResult) RoundEnded() bool {
	return r.LoserID != ""
}

// Resolver turns movement intents into positions, enforces the ring
// boundary and resolves fighter contact. Humans and bots share it.
type Resolver struct {
	RingRadius       float64
	BaseSpeed        float64 // units per second
	ContactThreshold float64
	PushForward      float64
	PushOther        float64
}

// NewResolver builds a resolver from arena config
func NewResolver(cfg ArenaConfig) *Resolver {
	return &Resolver{
		RingRadius:       cfg.RingRadius,
		BaseSpeed:        cfg.BaseSpeed,
		ContactThreshold: cfg.ContactThreshold,
		PushForward:      cfg.PushForward,
		PushOther:        cfg.PushOther,
	}
}

// TowardOpponent returns the unit vector from actor to other on the floor.
// Coincident fighters fall back to the actor's facing.
func (r *Resolver) TowardOpponent(actor, other *Participant) Vec2 {
	v := Vec2{X: other.Position.X - actor.Position.X, Z: other.Position.Z - actor.Position.Z}
	if v.Len() == 0 {
		return Vec2{X: math.Sin(actor.Rotation), Z: math.Cos(actor.Rotation)}
	}
	return v.Normalize()
}

// IntentVector maps a direction onto the toward-opponent frame
func IntentVector(frame Vec2, dir Direction) Vec2 {
	switch dir {
	case DirForward:
		return frame
	case DirBackward:
		return frame.Scale(-1)
	case DirLeft:
		return frame.Perp()
	case DirRight:
		return frame.Perp().Scale(-1)
	}
	return Vec2{}
}

// ApplyMove moves actor by a discrete intent for dt seconds
func (r *Resolver) ApplyMove(actor, other *Participant, dir Direction, dt float64) MoveResult {
	frame := r.TowardOpponent(actor, other)
	return r.apply(actor, other, frame, IntentVector(frame, dir), dir == DirForward, dt)
}

// ApplyVector moves actor along an arbitrary floor direction. forward selects
// the stronger push on contact.
func (r *Resolver) ApplyVector(actor, other *Participant, v Vec2, forward bool, dt float64) MoveResult {
	frame := r.TowardOpponent(actor, other)
	return r.apply(actor, other, frame, v, forward, dt)
}

func (r *Resolver) apply(actor, other *Participant, frame, v Vec2, forward bool, dt float64) MoveResult {
	step := v.Normalize().Scale(r.BaseSpeed * dt)
	actor.Position.X += step.X
	actor.Position.Z += step.Z
	// Always face the opponent, whatever the movement direction.
	actor.Rotation = frame.Heading()

	res := MoveResult{Moved: []*Participant{actor}}
	if r.OutOfRing(actor.Position) {
		res.LoserID = actor.ID
		return res
	}

	sep := Vec2{X: other.Position.X - actor.Position.X, Z: other.Position.Z - actor.Position.Z}
	if sep.Len() >= r.ContactThreshold {
		return res
	}
	push := sep.Normalize()
	if sep.Len() == 0 {
		push = frame
	}
	strength := r.PushOther
	if forward {
		strength = r.PushForward
	}
	other.Position.X += push.X * strength
	other.Position.Z += push.Z * strength
	res.Moved = append(res.Moved, other)

	// The pusher does not move during the exchange, so only the pushed
	// fighter needs a boundary re-check.
	if r.OutOfRing(other.Position) {
		res.LoserID = other.ID
	}
	return res
}

// OutOfRing reports whether p lies beyond the ring radius
func (r *Resolver) OutOfRing(p Vec3) bool {
	return DistanceFromCenter(p) > r.RingRadius
}

// EdgeFactor ramps from 0 at 60% of the radius to 1 at the rope
func (r *Resolver) EdgeFactor(p Vec3) float64 {
	frac := DistanceFromCenter(p) / r.RingRadius
	return Clamp((frac-0.6)/0.4, 0, 1)
}
