package main

import (
	"math/rand"

	"github.com/rs/zerolog"
)

const (
	// OpponentEdgeRatio is where the opponent counts as near the rope
	OpponentEdgeRatio = 0.7
	// EdgeAvoidThreshold is the edge factor above which a bot steers home
	EdgeAvoidThreshold = 0.7
)

// Autopilot drives bot fighters through the same resolver humans use.
// Every bot gets a slow decision timer and a fast movement timer, both
// registered under the bot's owner key so Stop can cancel them all.
type Autopilot struct {
	cfg   AutopilotConfig
	reg   *Registry
	res   *Resolver
	sched Scheduler
	rng   *rand.Rand
	log   zerolog.Logger

	active func() bool          // movement only while this holds
	apply  func(res MoveResult) // broadcast and boundary handling

	intents map[string]Direction // bot id -> last sampled intent
}

// NewAutopilot creates a stopped autopilot
func NewAutopilot(cfg AutopilotConfig, reg *Registry, res *Resolver, sched Scheduler, rng *rand.Rand, log zerolog.Logger, active func() bool, apply func(MoveResult)) *Autopilot {
	return &Autopilot{
		cfg:     cfg,
		reg:     reg,
		res:     res,
		sched:   sched,
		rng:     rng,
		log:     log,
		active:  active,
		apply:   apply,
		intents: make(map[string]Direction),
	}
}

func botOwner(id string) string {
	return "bot:" + id
}

// Start (re)arms timers for every bot fighter currently holding a slot
func (a *Autopilot) Start() {
	a.Stop()
	for _, f := range a.reg.Fighters() {
		if f.Kind != KindFighterBot {
			continue
		}
		id := f.ID
		a.intents[id] = DirForward
		a.sched.Every(botOwner(id), a.cfg.DecisionInterval, func() { a.decide(id) })
		a.sched.Every(botOwner(id), a.cfg.TickInterval, func() { a.tick(id) })
	}
	if n := len(a.intents); n > 0 {
		a.log.Debug().Int("bots", n).Msg("autopilot started")
	}
}

// Stop cancels every bot timer and forgets sampled intents. Calling it with
// nothing running is a no-op.
func (a *Autopilot) Stop() {
	for id := range a.intents {
		a.sched.CancelOwner(botOwner(id))
		delete(a.intents, id)
	}
}

// Running returns the number of bots being driven
func (a *Autopilot) Running() int {
	return len(a.intents)
}

// Intent returns the last sampled intent for a bot
func (a *Autopilot) Intent(id string) (Direction, bool) {
	d, ok := a.intents[id]
	return d, ok
}

// SampleIntent draws from the weighted intent distribution
func (a *Autopilot) SampleIntent() Direction {
	c := a.cfg
	total := c.ForwardWeight + c.LeftWeight + c.RightWeight + c.BackwardWeight
	r := a.rng.Float64() * total
	switch {
	case r < c.ForwardWeight:
		return DirForward
	case r < c.ForwardWeight+c.LeftWeight:
		return DirLeft
	case r < c.ForwardWeight+c.LeftWeight+c.RightWeight:
		return DirRight
	}
	return DirBackward
}

func (a *Autopilot) decide(id string) {
	if _, ok := a.intents[id]; !ok {
		return
	}
	a.intents[id] = a.SampleIntent()
}

func (a *Autopilot) tick(id string) {
	if a.active != nil && !a.active() {
		return
	}
	bot := a.reg.FindByID(id)
	if bot == nil || bot.Role != RoleFighter {
		return
	}
	opp := a.reg.Opponent(id)
	if opp == nil {
		return
	}
	dir, forward := a.Steer(bot, opp, a.intents[id])
	res := a.res.ApplyVector(bot, opp, dir, forward, a.cfg.TickInterval.Seconds())
	if a.apply != nil {
		a.apply(res)
	}
}

// Steer layers edge behaviour over the sampled intent. A cornered opponent
// is pressed straight on; a bot near the rope blends toward the centre.
func (a *Autopilot) Steer(bot, opp *Participant, intent Direction) (Vec2, bool) {
	frame := a.res.TowardOpponent(bot, opp)
	if DistanceFromCenter(opp.Position) > OpponentEdgeRatio*a.res.RingRadius {
		return frame, true
	}

	v := IntentVector(frame, intent)
	edge := a.res.EdgeFactor(bot.Position)
	if edge <= EdgeAvoidThreshold {
		return v, intent == DirForward
	}
	home := Vec2{X: -bot.Position.X, Z: -bot.Position.Z}.Normalize()
	blended := v.Scale(1 - edge).Add(home.Scale(edge))
	if blended.Len() == 0 {
		blended = home
	}
	return blended.Normalize(), intent == DirForward
}
