package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Spawn layout on the ring floor
const (
	FloorHeight    = 3.0
	FighterSpread  = 3.0 // |x| of each fighter at match start
	CeremonySpread = 5.0 // |x| of each fighter during the ceremony
	CeremonyHeight = 4.0
)

// RefereeSpot is where the referee stands, behind centre
var RefereeSpot = Vec3{X: 0, Y: FloorHeight, Z: -2}

// BotNames is the display name pool for synthetic participants
var BotNames = []string{
	"Iron Mike", "Glass Joe", "Piston", "Bald Bull", "King Hippo",
	"Soda Pop", "Great Tiger", "Mr. Sandman", "Super Macho", "Aran",
	"Bear Hugger", "Von Kaiser", "Dragon Chan", "Masked Muscle", "Kid Quick",
	"Rumble", "Haymaker", "Southpaw", "Uppercut", "Jab Jr.",
}

// Selection is the roster chosen when entering fighter selection
type Selection struct {
	Fighters [2]*Participant
	Referee  *Participant
}

// BotAllocator fills fighter and referee slots from real viewers first and
// recycles bots from the pool when humans are missing.
type BotAllocator struct {
	reg *Registry
	rng *rand.Rand
	now func() time.Time
	log zerolog.Logger
}

// NewBotAllocator creates an allocator over reg
func NewBotAllocator(reg *Registry, rng *rand.Rand, log zerolog.Logger) *BotAllocator {
	return &BotAllocator{reg: reg, rng: rng, now: time.Now, log: log}
}

// CreateBot returns an idle bot of kind from the pool, or a fresh one when the
// pool is empty. The bot is moved into role before return.
func (a *BotAllocator) CreateBot(kind Kind, role Role) (*Participant, error) {
	b := a.reg.PopBot(kind)
	if b == nil {
		b = &Participant{
			ID:        fmt.Sprintf("%s-%d-%s", kind.BotType(), a.now().UnixMilli(), GenerateID(3)),
			Name:      "[BOT] " + BotNames[a.rng.Intn(len(BotNames))],
			Kind:      kind,
			Cosmetics: randomCosmetics(a.rng),
		}
		a.log.Debug().Str("bot", b.ID).Msg("bot created")
	}
	if err := a.reg.MoveToRole(b, role); err != nil {
		// Put it back so the identity is not lost.
		_ = a.reg.MoveToRole(b, RoleViewer)
		return nil, eris.Wrapf(err, "assign %s", b.ID)
	}
	return b, nil
}

// SelectFightersAndReferee assigns two fighters and a referee from viewers,
// falling back to bots. The registry must have empty role slots.
func (a *BotAllocator) SelectFightersAndReferee(viewers []*Participant) (Selection, error) {
	var reals, eligible []*Participant
	for _, p := range viewers {
		if p.IsBot() {
			continue
		}
		reals = append(reals, p)
		if !p.ViewerOnly {
			eligible = append(eligible, p)
		}
	}

	var picks [3]*Participant
	if len(reals) >= 3 && len(eligible) >= 3 {
		perm := a.rng.Perm(len(eligible))
		for i := range picks {
			picks[i] = eligible[perm[i]]
		}
	} else {
		// Order dependent: earliest eligible joiner takes fighter slot 1.
		queue := eligible
		for i := range picks {
			if len(queue) > 0 {
				picks[i] = queue[0]
				queue = queue[1:]
			}
		}
	}

	var sel Selection
	for i := 0; i < 2; i++ {
		f, err := a.assign(picks[i], KindFighterBot, RoleFighter)
		if err != nil {
			return sel, err
		}
		sel.Fighters[i] = f
	}
	ref, err := a.assign(picks[2], KindRefereeBot, RoleReferee)
	if err != nil {
		return sel, err
	}
	sel.Referee = ref

	PlaceFighters(sel.Fighters[:], FighterSpread, FloorHeight)
	PlaceReferee(sel.Referee)
	return sel, nil
}

func (a *BotAllocator) assign(p *Participant, botKind Kind, role Role) (*Participant, error) {
	if p == nil {
		return a.CreateBot(botKind, role)
	}
	if err := a.reg.MoveToRole(p, role); err != nil {
		return nil, eris.Wrapf(err, "assign %s", p.ID)
	}
	return p, nil
}

// PlaceFighters puts fighter 1 on the negative x edge facing +x and fighter 2
// on the positive x edge facing -x.
func PlaceFighters(fighters []*Participant, spread, height float64) {
	for i, f := range fighters {
		if f == nil {
			continue
		}
		switch i {
		case 0:
			f.Place(Vec3{X: -spread, Y: height, Z: 0}, math.Pi/2)
		case 1:
			f.Place(Vec3{X: spread, Y: height, Z: 0}, -math.Pi/2)
		}
	}
}

// PlaceReferee stands the referee behind centre facing the middle of the ring
func PlaceReferee(ref *Participant) {
	if ref == nil {
		return
	}
	ref.Place(RefereeSpot, FacingCenter(RefereeSpot))
}
