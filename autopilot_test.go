package main

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func botFighterIDs(a *Arena) []string {
	var ids []string
	for _, f := range a.reg.Fighters() {
		if f.Kind == KindFighterBot {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func TestAutopilotStartsOnlyForBotFighters(t *testing.T) {
	a, sched, _ := newTestArena(t)
	joinHumans(a, "h1")
	a.stage.TransitionTo(StageSelection)

	ids := botFighterIDs(a)
	require.Len(t, ids, 1)
	assert.Equal(t, 1, a.auto.Running())
	assert.Equal(t, 2, sched.Pending(botOwner(ids[0])), "decision and movement timers")
	assert.Zero(t, sched.Pending(botOwner("h1")))
}

func TestAutopilotStopIsIdempotent(t *testing.T) {
	a, sched, _ := newTestArena(t)
	a.stage.TransitionTo(StageSelection)
	ids := botFighterIDs(a)
	require.Len(t, ids, 2)

	a.auto.Stop()
	a.auto.Stop()
	assert.Zero(t, a.auto.Running())
	for _, id := range ids {
		assert.Zero(t, sched.Pending(botOwner(id)))
		_, ok := a.auto.Intent(id)
		assert.False(t, ok)
	}

	// Nothing running at all
	idle := NewAutopilot(DefaultConfig().Autopilot, NewRegistry(), testResolver(), sched, rand.New(rand.NewSource(1)), zerolog.Nop(), nil, nil)
	assert.NotPanics(t, func() {
		idle.Stop()
		idle.Stop()
	})
}

func TestAutopilotIdleOutsideMatch(t *testing.T) {
	a, sched, obs := newTestArena(t)
	a.stage.TransitionTo(StageSelection)
	before := map[string]Vec3{}
	for _, f := range a.reg.Fighters() {
		before[f.ID] = f.Position
	}

	sched.Advance(time.Second)
	for _, f := range a.reg.Fighters() {
		assert.Equal(t, before[f.ID], f.Position)
	}
	assert.Empty(t, obs.ofType(MsgPlayerMoved))
}

func TestAutopilotMovesBotsDuringMatch(t *testing.T) {
	a, sched, obs := newTestArena(t)
	startMatch(t, a)
	f1 := a.reg.Fighters()[0]
	start := f1.Position

	sched.Advance(30 * time.Millisecond)
	assert.NotEqual(t, start, f1.Position)
	assert.NotEmpty(t, obs.ofType(MsgPlayerMoved))
	// First tick uses the initial forward intent: straight at the opponent
	assert.InDelta(t, 0.0, f1.Position.Z, 1e-9)
	assert.InDelta(t, math.Pi/2, f1.Rotation, 1e-9)
}

func TestAutopilotSkipsMissingOpponent(t *testing.T) {
	a, sched, _ := newTestArena(t)
	joinHumans(a, "h1")
	startMatch(t, a)
	bot := a.reg.Fighters()[1]
	require.True(t, bot.IsBot())
	pos := bot.Position

	// Drop the human behind the stage machine's back
	_, ok := a.reg.Remove("h1")
	require.True(t, ok)

	assert.NotPanics(t, func() { sched.Advance(100 * time.Millisecond) })
	assert.Equal(t, pos, bot.Position)
}

func TestSampleIntentDistribution(t *testing.T) {
	ap := NewAutopilot(DefaultConfig().Autopilot, NewRegistry(), testResolver(), newManualScheduler(), rand.New(rand.NewSource(42)), zerolog.Nop(), nil, nil)
	counts := map[Direction]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[ap.SampleIntent()]++
	}
	assert.InDelta(t, 0.70, float64(counts[DirForward])/n, 0.02)
	assert.InDelta(t, 0.15, float64(counts[DirLeft])/n, 0.02)
	assert.InDelta(t, 0.15, float64(counts[DirRight])/n, 0.02)
	assert.Zero(t, counts[DirBackward])
}

func TestSteerPressesCorneredOpponent(t *testing.T) {
	ap := NewAutopilot(DefaultConfig().Autopilot, NewRegistry(), testResolver(), newManualScheduler(), rand.New(rand.NewSource(1)), zerolog.Nop(), nil, nil)
	bot := fighterAt("bot", 0, 0)
	opp := fighterAt("opp", 5.5, 0) // beyond 0.7R

	dir, forward := ap.Steer(bot, opp, DirLeft)
	assert.True(t, forward)
	assert.InDelta(t, 1.0, dir.X, 1e-9)
	assert.InDelta(t, 0.0, dir.Z, 1e-9)
}

func TestSteerBlendsTowardCenterNearEdge(t *testing.T) {
	ap := NewAutopilot(DefaultConfig().Autopilot, NewRegistry(), testResolver(), newManualScheduler(), rand.New(rand.NewSource(1)), zerolog.Nop(), nil, nil)
	bot := fighterAt("bot", 6.8, 0)
	opp := fighterAt("opp", 4, 2) // ~4.5 from centre, not cornered

	raw := IntentVector(ap.res.TowardOpponent(bot, opp), DirRight)
	dir, forward := ap.Steer(bot, opp, DirRight)
	assert.False(t, forward)
	assert.InDelta(t, 1.0, dir.Len(), 1e-9)
	assert.Less(t, dir.X, raw.X, "blend pulls toward the centre")
	assert.Less(t, dir.X, 0.0)

	// Away from the rope the intent is untouched
	bot.Position = Vec3{X: 1, Y: FloorHeight}
	raw = IntentVector(ap.res.TowardOpponent(bot, opp), DirRight)
	dir, _ = ap.Steer(bot, opp, DirRight)
	assert.InDelta(t, raw.X, dir.X, 1e-9)
	assert.InDelta(t, raw.Z, dir.Z, 1e-9)
}
