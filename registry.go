package main

import (
	"github.com/rotisserie/eris"
)

const (
	maxFighters = 2
	maxReferees = 1
)

// Registry holds the three population buckets and the idle bot pool.
// Every role change goes through MoveToRole so a participant is never in two
// buckets at once.
type Registry struct {
	fighters []*Participant
	referee  *Participant
	viewers  []*Participant
	pool     map[Kind][]*Participant
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		pool: make(map[Kind][]*Participant),
	}
}

// AddViewer registers a new participant in the viewer bucket
func (r *Registry) AddViewer(p *Participant) error {
	if r.FindByID(p.ID) != nil || r.inPool(p.ID) {
		return eris.Wrapf(ErrDuplicate, "add viewer %s", p.ID)
	}
	p.Role = RoleViewer
	r.viewers = append(r.viewers, p)
	return r.check()
}

// Remove deletes a participant from whichever bucket or pool holds it and
// returns the role it held.
func (r *Registry) Remove(id string) (Role, bool) {
	for i, p := range r.fighters {
		if p.ID == id {
			r.fighters = append(r.fighters[:i], r.fighters[i+1:]...)
			return RoleFighter, true
		}
	}
	if r.referee != nil && r.referee.ID == id {
		r.referee = nil
		return RoleReferee, true
	}
	for i, p := range r.viewers {
		if p.ID == id {
			r.viewers = append(r.viewers[:i], r.viewers[i+1:]...)
			return RoleViewer, true
		}
	}
	for kind, bots := range r.pool {
		for i, b := range bots {
			if b.ID == id {
				r.pool[kind] = append(bots[:i], bots[i+1:]...)
				return RoleViewer, true
			}
		}
	}
	return "", false
}

// FindByID searches fighters, then the referee slot, then viewers
func (r *Registry) FindByID(id string) *Participant {
	for _, p := range r.fighters {
		if p.ID == id {
			return p
		}
	}
	if r.referee != nil && r.referee.ID == id {
		return r.referee
	}
	for _, p := range r.viewers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// MoveToRole takes p out of its current bucket (or the pool), sets its role
// and inserts it into the target bucket.
func (r *Registry) MoveToRole(p *Participant, role Role) error {
	switch role {
	case RoleFighter:
		if !r.holds(r.fighters, p) && len(r.fighters) >= maxFighters {
			return eris.Wrapf(ErrRoleFull, "fighter slot for %s", p.ID)
		}
	case RoleReferee:
		if r.referee != nil && r.referee != p {
			return eris.Wrapf(ErrRoleFull, "referee slot for %s", p.ID)
		}
	}

	r.detach(p)
	p.Role = role
	switch role {
	case RoleFighter:
		r.fighters = append(r.fighters, p)
	case RoleReferee:
		r.referee = p
	default:
		if p.IsBot() {
			r.pool[p.Kind] = append(r.pool[p.Kind], p)
		} else {
			r.viewers = append(r.viewers, p)
		}
	}
	return r.check()
}

// PopBot takes an idle bot of the given kind out of the pool
func (r *Registry) PopBot(kind Kind) *Participant {
	bots := r.pool[kind]
	if len(bots) == 0 {
		return nil
	}
	b := bots[len(bots)-1]
	r.pool[kind] = bots[:len(bots)-1]
	return b
}

// Reset returns every fighter and the referee to the viewer bucket (humans)
// or the pool (bots). It returns the participants whose role changed.
func (r *Registry) Reset() []*Participant {
	changed := make([]*Participant, 0, maxFighters+maxReferees)
	held := append([]*Participant(nil), r.fighters...)
	if r.referee != nil {
		held = append(held, r.referee)
	}
	for _, p := range held {
		// Cannot fail: viewer and pool buckets are unbounded.
		_ = r.MoveToRole(p, RoleViewer)
		changed = append(changed, p)
	}
	return changed
}

// Fighters returns the fighter bucket in slot order
func (r *Registry) Fighters() []*Participant {
	return append([]*Participant(nil), r.fighters...)
}

// Referee returns the referee or nil
func (r *Registry) Referee() *Participant {
	return r.referee
}

// Viewers returns the viewer bucket in join order
func (r *Registry) Viewers() []*Participant {
	return append([]*Participant(nil), r.viewers...)
}

// Opponent returns the fighter that is not id, or nil
func (r *Registry) Opponent(id string) *Participant {
	for _, p := range r.fighters {
		if p.ID != id {
			return p
		}
	}
	return nil
}

// PoolSize returns the number of idle bots of a kind
func (r *Registry) PoolSize(kind Kind) int {
	return len(r.pool[kind])
}

// PopulationCounts summarises the registry for playerCountUpdate
type PopulationCounts struct {
	Total     int       `json:"total"`
	Viewers   int       `json:"viewers"`
	Fighters  int       `json:"fighters"`
	Referee   int       `json:"referee"`
	RealUsers int       `json:"realUserCount"`
	BotCount  BotCounts `json:"botCount"`
}

// BotCounts splits active bots by type
type BotCounts struct {
	Fighters int `json:"fighters"`
	Referees int `json:"referees"`
	Total    int `json:"total"`
}

// Counts returns the aggregate population of the active buckets
func (r *Registry) Counts() PopulationCounts {
	c := PopulationCounts{
		Viewers:  len(r.viewers),
		Fighters: len(r.fighters),
	}
	if r.referee != nil {
		c.Referee = 1
	}
	r.each(func(p *Participant) {
		c.Total++
		switch p.Kind {
		case KindHuman:
			c.RealUsers++
		case KindFighterBot:
			c.BotCount.Fighters++
		case KindRefereeBot:
			c.BotCount.Referees++
		}
	})
	c.BotCount.Total = c.BotCount.Fighters + c.BotCount.Referees
	return c
}

// RealCount returns the number of humans across all buckets
func (r *Registry) RealCount() int {
	n := 0
	r.each(func(p *Participant) {
		if !p.IsBot() {
			n++
		}
	})
	return n
}

func (r *Registry) each(fn func(p *Participant)) {
	for _, p := range r.fighters {
		fn(p)
	}
	if r.referee != nil {
		fn(r.referee)
	}
	for _, p := range r.viewers {
		fn(p)
	}
}

func (r *Registry) holds(bucket []*Participant, p *Participant) bool {
	for _, q := range bucket {
		if q == p {
			return true
		}
	}
	return false
}

func (r *Registry) inPool(id string) bool {
	for _, bots := range r.pool {
		for _, b := range bots {
			if b.ID == id {
				return true
			}
		}
	}
	return false
}

// detach removes p by identity from every bucket and the pool
func (r *Registry) detach(p *Participant) {
	r.fighters = without(r.fighters, p)
	if r.referee == p {
		r.referee = nil
	}
	r.viewers = without(r.viewers, p)
	for kind, bots := range r.pool {
		r.pool[kind] = without(bots, p)
	}
}

func without(ps []*Participant, p *Participant) []*Participant {
	for i, q := range ps {
		if q == p {
			return append(ps[:i], ps[i+1:]...)
		}
	}
	return ps
}

// check verifies bucket sizes and that no id appears twice
func (r *Registry) check() error {
	if len(r.fighters) > maxFighters {
		return eris.Wrapf(ErrInvariant, "%d fighters", len(r.fighters))
	}
	seen := make(map[string]bool)
	var dup string
	r.each(func(p *Participant) {
		if seen[p.ID] {
			dup = p.ID
		}
		seen[p.ID] = true
	})
	for _, bots := range r.pool {
		for _, b := range bots {
			if seen[b.ID] {
				dup = b.ID
			}
			seen[b.ID] = true
		}
	}
	if dup != "" {
		return eris.Wrapf(ErrInvariant, "participant %s held twice", dup)
	}
	return nil
}
