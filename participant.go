package main

import "math/rand"

// Role is the slot a participant currently occupies
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleFighter Role = "fighter"
	RoleReferee Role = "referee"
)

// Kind discriminates humans from the two bot types
type Kind int

const (
	KindHuman Kind = iota
	KindFighterBot
	KindRefereeBot
)

// Wire names for bot kinds
const (
	BotTypeFighter = "fighter-bot"
	BotTypeReferee = "referee-bot"
)

// BotType returns the wire name of a bot kind, "" for humans
func (k Kind) BotType() string {
	switch k {
	case KindFighterBot:
		return BotTypeFighter
	case KindRefereeBot:
		return BotTypeReferee
	}
	return ""
}

// Cosmetics are carried through to clients and never read by game logic
type Cosmetics struct {
	Face  int `json:"face" msgpack:"face"`
	Color int `json:"color" msgpack:"color"`
}

const (
	faceCount  = 8
	colorCount = 12
)

func randomCosmetics(rng *rand.Rand) Cosmetics {
	return Cosmetics{Face: rng.Intn(faceCount), Color: rng.Intn(colorCount)}
}

// Participant is anyone holding a slot in the arena, human or bot
type Participant struct {
	ID         string
	Name       string
	Role       Role
	Kind       Kind
	Position   Vec3
	Rotation   float64
	Cosmetics  Cosmetics
	ViewerOnly bool
	AccountID  int64 // 0 = guest or bot
}

// IsBot reports whether the participant is synthetic
func (p *Participant) IsBot() bool {
	return p.Kind != KindHuman
}

// Place sets position and rotation in one go
func (p *Participant) Place(pos Vec3, rot float64) {
	p.Position = pos
	p.Rotation = rot
}

// ParticipantState is the sanitized wire form of a participant
type ParticipantState struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Position   Vec3      `json:"position"`
	Rotation   float64   `json:"rotation"`
	Cosmetics  Cosmetics `json:"cosmetics"`
	IsBot      bool      `json:"isBot"`
	BotType    string    `json:"botType,omitempty"`
	ViewerOnly bool      `json:"viewerOnly,omitempty"`
}

// ToState converts to protocol state
func (p *Participant) ToState() ParticipantState {
	return ParticipantState{
		ID:   p.ID,
		Name: p.Name,
		Role: p.Role,
		Position: Vec3{
			X: round2(p.Position.X),
			Y: round2(p.Position.Y),
			Z: round2(p.Position.Z),
		},
		Rotation:   round2(p.Rotation),
		Cosmetics:  p.Cosmetics,
		IsBot:      p.IsBot(),
		BotType:    p.Kind.BotType(),
		ViewerOnly: p.ViewerOnly,
	}
}

// statesOf converts a slice for broadcasting
func statesOf(ps []*Participant) []ParticipantState {
	out := make([]ParticipantState, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ToState())
	}
	return out
}

// stateOf is ToState that tolerates nil
func stateOf(p *Participant) *ParticipantState {
	if p == nil {
		return nil
	}
	s := p.ToState()
	return &s
}
