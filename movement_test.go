package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testResolver() *Resolver {
	return NewResolver(DefaultConfig().Arena)
}

func fighterAt(id string, x, z float64) *Participant {
	return &Participant{ID: id, Kind: KindHuman, Role: RoleFighter, Position: Vec3{X: x, Y: FloorHeight, Z: z}}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"forward", "backward", "left", "right"} {
		d, ok := ParseDirection(s)
		assert.True(t, ok)
		assert.Equal(t, Direction(s), d)
	}
	_, ok := ParseDirection("up")
	assert.False(t, ok)
}

func TestMoveDirectionsAreRelativeToOpponent(t *testing.T) {
	r := testResolver()
	// Opponent sits on +z, so forward is +z regardless of world axes
	tests := []struct {
		dir    Direction
		dx, dz float64
	}{
		{DirForward, 0, 1},
		{DirBackward, 0, -1},
		{DirLeft, -1, 0},
		{DirRight, 1, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			a := fighterAt("a", 0, 0)
			b := fighterAt("b", 0, 5)
			res := r.ApplyMove(a, b, tt.dir, 0.1)

			step := r.BaseSpeed * 0.1
			assert.InDelta(t, tt.dx*step, a.Position.X, 1e-9)
			assert.InDelta(t, tt.dz*step, a.Position.Z, 1e-9)
			assert.InDelta(t, 0.0, a.Rotation, 1e-9, "actor always faces the opponent")
			assert.Equal(t, []*Participant{a}, res.Moved)
			assert.False(t, res.RoundEnded())
		})
	}
}

func TestMoveOutOfRingLosesRound(t *testing.T) {
	r := testResolver()
	a := fighterAt("a", 6.9, 0)
	b := fighterAt("b", 0, 0)

	res := r.ApplyMove(a, b, DirBackward, 0.1)
	assert.Equal(t, "a", res.LoserID)
	assert.Greater(t, DistanceFromCenter(a.Position), r.RingRadius)
	assert.Len(t, res.Moved, 1)
	assert.Equal(t, Vec3{X: 0, Y: FloorHeight, Z: 0}, b.Position)
}

func TestOutOfRingBoundary(t *testing.T) {
	r := testResolver()
	assert.False(t, r.OutOfRing(Vec3{X: 7, Y: 3, Z: 0}), "on the rope is still inside")
	assert.True(t, r.OutOfRing(Vec3{X: 8, Y: 3, Z: 0}))
	assert.True(t, r.OutOfRing(Vec3{X: 5, Y: 3, Z: 5}))
}

func TestContactPushesOpponent(t *testing.T) {
	tests := []struct {
		dir  Direction
		push float64
	}{
		{DirForward, 0.25},
		{DirLeft, 0.15},
		{DirBackward, 0.15},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			r := testResolver()
			r.BaseSpeed = 0 // isolate the push from the actor's own step
			a := fighterAt("a", 0, 0)
			b := fighterAt("b", 1, 0)

			res := r.ApplyMove(a, b, tt.dir, 0.1)
			assert.Equal(t, []*Participant{a, b}, res.Moved)
			assert.InDelta(t, 1+tt.push, b.Position.X, 1e-9)
			assert.InDelta(t, 0.0, b.Position.Z, 1e-9)
			assert.False(t, res.RoundEnded())
		})
	}
}

func TestNoContactBeyondThreshold(t *testing.T) {
	r := testResolver()
	a := fighterAt("a", -3, 0)
	b := fighterAt("b", 3, 0)
	res := r.ApplyMove(a, b, DirForward, 0.1)
	assert.Len(t, res.Moved, 1)
	assert.Equal(t, 3.0, b.Position.X)
}

func TestPushOutOfRingLosesForOpponent(t *testing.T) {
	r := testResolver()
	a := fighterAt("a", 5.8, 0)
	b := fighterAt("b", 6.9, 0)

	res := r.ApplyMove(a, b, DirForward, 0.02)
	assert.Equal(t, "b", res.LoserID)
	assert.Len(t, res.Moved, 2)
	assert.LessOrEqual(t, DistanceFromCenter(a.Position), r.RingRadius)
}

func TestCoincidentFightersUseFacing(t *testing.T) {
	r := testResolver()
	a := fighterAt("a", 0, 0)
	a.Rotation = math.Pi / 2 // facing +x
	b := fighterAt("b", 0, 0)

	res := r.ApplyMove(a, b, DirForward, 0.1)
	assert.InDelta(t, r.BaseSpeed*0.1, a.Position.X, 1e-9)
	assert.Len(t, res.Moved, 2, "still in contact after the step")
}

func TestEdgeFactor(t *testing.T) {
	r := testResolver()
	assert.InDelta(t, 0.0, r.EdgeFactor(Vec3{X: 0.6 * 7}), 1e-9)
	assert.InDelta(t, 0.5, r.EdgeFactor(Vec3{X: 0.8 * 7}), 1e-9)
	assert.InDelta(t, 1.0, r.EdgeFactor(Vec3{X: 7}), 1e-9)
	assert.InDelta(t, 1.0, r.EdgeFactor(Vec3{X: 9}), 1e-9)
	assert.InDelta(t, 0.0, r.EdgeFactor(Vec3{}), 1e-9)
}
