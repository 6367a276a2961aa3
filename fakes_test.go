package main

import (
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster captures sent messages for testing
type mockBroadcaster struct {
	mu       sync.Mutex
	messages []interface{}
}

func (m *mockBroadcaster) SendJSON(msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// ofType returns the payloads of every envelope with type t
func (m *mockBroadcaster) ofType(t string) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interface{}
	for _, msg := range m.messages {
		if env, ok := msg.(Envelope); ok && env.T == t {
			out = append(out, env.Data)
		}
	}
	return out
}

// stages returns the sequence of announced stages
func (m *mockBroadcaster) stages() []Stage {
	var out []Stage
	for _, d := range m.ofType(MsgStageChange) {
		out = append(out, d.(StageChangeMsg).Stage)
	}
	return out
}

func (m *mockBroadcaster) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// manualTimer is a timer on the virtual clock
type manualTimer struct {
	t     *Timer
	at    time.Time
	every time.Duration
	fn    func()
}

// manualScheduler runs callbacks synchronously when the test advances its
// virtual clock.
type manualScheduler struct {
	now    time.Time
	nextID uint64
	timers map[uint64]*manualTimer
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{
		now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		timers: make(map[uint64]*manualTimer),
	}
}

func (s *manualScheduler) Now() time.Time {
	return s.now
}

func (s *manualScheduler) arm(owner string, d, every time.Duration, fn func()) *Timer {
	s.nextID++
	t := &Timer{owner: owner, id: s.nextID}
	s.timers[t.id] = &manualTimer{t: t, at: s.now.Add(d), every: every, fn: fn}
	return t
}

func (s *manualScheduler) After(owner string, d time.Duration, fn func()) *Timer {
	return s.arm(owner, d, 0, fn)
}

func (s *manualScheduler) Every(owner string, d time.Duration, fn func()) *Timer {
	return s.arm(owner, d, d, fn)
}

func (s *manualScheduler) Cancel(t *Timer) {
	if t == nil {
		return
	}
	t.cancelled = true
	delete(s.timers, t.id)
}

func (s *manualScheduler) CancelOwner(owner string) int {
	n := 0
	for id, mt := range s.timers {
		if mt.t.owner == owner {
			mt.t.cancelled = true
			delete(s.timers, id)
			n++
		}
	}
	return n
}

func (s *manualScheduler) Pending(owner string) int {
	n := 0
	for _, mt := range s.timers {
		if mt.t.owner == owner {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due timers in order
func (s *manualScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for {
		next := s.due(target)
		if next == nil {
			break
		}
		s.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			delete(s.timers, next.t.id)
		}
		next.fn()
	}
	s.now = target
}

func (s *manualScheduler) due(target time.Time) *manualTimer {
	var due []*manualTimer
	for _, mt := range s.timers {
		if !mt.at.After(target) {
			due = append(due, mt)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].t.id < due[j].t.id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

// ledgerSpy collects match records in memory
type ledgerSpy struct {
	records []MatchRecord
}

func (l *ledgerSpy) Record(rec MatchRecord) {
	l.records = append(l.records, rec)
}

// newTestArena builds an arena on a manual clock with an observer client.
// Tests drive it through the unexported loop methods directly.
func newTestArena(t *testing.T) (*Arena, *manualScheduler, *mockBroadcaster) {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	a := newArena(cfg, zerolog.Nop(), nil)
	sched := newManualScheduler()
	a.wire(sched, rand.New(rand.NewSource(1)), nil)
	a.stage.now = sched.Now

	obs := &mockBroadcaster{}
	a.clients["observer"] = obs
	return a, sched, obs
}

func joinHumans(a *Arena, ids ...string) {
	for _, id := range ids {
		a.join(JoinRequest{ID: id, Name: "Human " + id})
	}
}

// startMatch drives the machine straight into MATCH_IN_PROGRESS without
// advancing the clock.
func startMatch(t *testing.T, a *Arena) {
	t.Helper()
	a.stage.TransitionTo(StageSelection)
	a.stage.TransitionTo(StageCeremony)
	a.stage.TransitionTo(StageMatch)
	require.Equal(t, StageMatch, a.stage.Current())
	require.Len(t, a.reg.Fighters(), 2)
}
