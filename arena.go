package main

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	inboxSize     = 256
	viewerRingGap = 3.0 // viewers stand this far outside the ropes
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
}

// BinaryReceiver is a Broadcaster that asked for msgpack movement frames
type BinaryReceiver interface {
	WantsBinary() bool
	SendBinary(data []byte)
}

// Arena is the single owned world: registry, stage machine, resolver and
// autopilot all live here and are only touched from the loop goroutine.
// Public methods post closures into the inbox.
type Arena struct {
	cfg Config
	log zerolog.Logger

	inbox   chan func()
	done    chan struct{}
	stopped sync.Once

	reg     *Registry
	alloc   *BotAllocator
	res     *Resolver
	auto    *Autopilot
	stage   *StageMachine
	sched   Scheduler
	rng     *rand.Rand
	metrics *Metrics

	clients map[string]Broadcaster // participant id -> client
}

// NewArena creates an arena driven by wall-clock timers
func NewArena(cfg Config, log zerolog.Logger, metrics *Metrics, ledger MatchRecorder) *Arena {
	a := newArena(cfg, log, metrics)
	a.wire(newLoopScheduler(a.post), rand.New(rand.NewSource(time.Now().UnixNano())), ledger)
	return a
}

func newArena(cfg Config, log zerolog.Logger, metrics *Metrics) *Arena {
	return &Arena{
		cfg:     cfg,
		log:     log,
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
		metrics: metrics,
		clients: make(map[string]Broadcaster),
	}
}

func (a *Arena) wire(sched Scheduler, rng *rand.Rand, ledger MatchRecorder) {
	a.sched = sched
	a.rng = rng
	a.reg = NewRegistry()
	a.res = NewResolver(a.cfg.Arena)
	a.alloc = NewBotAllocator(a.reg, rng, componentLogger(a.log, "allocator"))
	a.auto = NewAutopilot(a.cfg.Autopilot, a.reg, a.res, sched, rng, componentLogger(a.log, "autopilot"),
		func() bool { return a.stage.Current() == StageMatch },
		func(res MoveResult) { a.applyResult(res, true) },
	)
	a.stage = NewStageMachine(a.cfg.Arena, a.reg, a.alloc, sched, a.auto, a, componentLogger(a.log, "stage"))
	a.stage.metrics = a.metrics
	a.stage.ledger = ledger
}

// Run processes the inbox until ctx is cancelled or Stop is called
func (a *Arena) Run(ctx context.Context) {
	a.log.Info().Str("stage", string(a.stage.Current())).Msg("arena loop started")
	for {
		select {
		case fn := <-a.inbox:
			fn()
		case <-ctx.Done():
			a.Stop()
			return
		case <-a.done:
			return
		}
	}
}

// Stop terminates the loop. Pending timers post into a closed arena and are
// discarded.
func (a *Arena) Stop() {
	a.stopped.Do(func() {
		close(a.done)
	})
}

// post queues fn for the loop. It gives up once the arena is stopped.
func (a *Arena) post(fn func()) {
	select {
	case a.inbox <- fn:
	case <-a.done:
	}
}

// call runs fn on the loop and waits for it
func (a *Arena) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	a.post(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return nil
	case <-a.done:
		return eris.New("arena stopped")
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "arena call")
	}
}

// JoinRequest carries everything needed to admit a human
type JoinRequest struct {
	ID         string
	Name       string
	ViewerOnly bool
	AccountID  int64
	Client     Broadcaster
}

// Join admits a human as a viewer
func (a *Arena) Join(req JoinRequest) {
	a.post(func() { a.join(req) })
}

// Leave removes a human; the same path serves an explicit leave and a
// dropped socket.
func (a *Arena) Leave(id string) {
	a.post(func() { a.leave(id) })
}

// Move applies a fighter's movement intent
func (a *Arena) Move(id, direction string, dt float64) {
	a.post(func() { a.move(id, direction, dt) })
}

// ToggleViewerOnly opts a participant in or out of the next selection
func (a *Arena) ToggleViewerOnly(id string, viewerOnly bool) {
	a.post(func() { a.toggleViewerOnly(id, viewerOnly) })
}

// LinkAccount attaches an authenticated account to a joined participant
func (a *Arena) LinkAccount(id string, accountID int64, name string) {
	a.post(func() { a.linkAccount(id, accountID, name) })
}

// Snapshot returns the sanitized arena view
func (a *Arena) Snapshot(ctx context.Context) (SnapshotMsg, error) {
	var snap SnapshotMsg
	err := a.call(ctx, func() { snap = a.snapshot() })
	return snap, err
}

func (a *Arena) join(req JoinRequest) {
	p := &Participant{
		ID:         req.ID,
		Name:       req.Name,
		Kind:       KindHuman,
		Cosmetics:  randomCosmetics(a.rng),
		ViewerOnly: req.ViewerOnly,
		AccountID:  req.AccountID,
	}
	angle := a.rng.Float64() * 2 * math.Pi
	spot := Vec3{
		X: math.Sin(angle) * (a.cfg.Arena.RingRadius + viewerRingGap),
		Y: 0,
		Z: math.Cos(angle) * (a.cfg.Arena.RingRadius + viewerRingGap),
	}
	p.Place(spot, FacingCenter(spot))

	if err := a.reg.AddViewer(p); err != nil {
		a.log.Warn().Err(err).Str("id", req.ID).Msg("join rejected")
		if req.Client != nil {
			req.Client.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "already joined"}})
		}
		return
	}
	if req.Client != nil {
		a.clients[p.ID] = req.Client
		req.Client.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
			ID:          p.ID,
			Participant: p.ToState(),
			RingRadius:  a.cfg.Arena.RingRadius,
		}})
		req.Client.SendJSON(Envelope{T: MsgSnapshot, Data: a.snapshot()})
	}
	a.log.Info().Str("id", p.ID).Str("name", p.Name).Int("real", a.reg.RealCount()).Msg("participant joined")
	a.broadcastCounts()
	a.stage.OnJoin()
}

func (a *Arena) leave(id string) {
	p := a.reg.FindByID(id)
	delete(a.clients, id)
	if p == nil || p.IsBot() {
		return
	}
	prev, _ := a.reg.Remove(id)
	a.log.Info().Str("id", id).Str("role", string(prev)).Int("real", a.reg.RealCount()).Msg("participant left")
	a.broadcastCounts()
	a.stage.OnLeave(p, prev)
}

func (a *Arena) move(id, direction string, dt float64) {
	if a.stage.Current() != StageMatch {
		a.drop(id, "stage")
		return
	}
	actor := a.reg.FindByID(id)
	if actor == nil || actor.Role != RoleFighter || actor.IsBot() {
		a.drop(id, "role")
		return
	}
	opp := a.reg.Opponent(id)
	if opp == nil {
		a.drop(id, "opponent")
		return
	}
	dir, ok := ParseDirection(direction)
	if !ok {
		a.drop(id, "direction")
		return
	}
	dt = Clamp(dt, 0, a.cfg.Arena.MaxMoveDelta)
	a.applyResult(a.res.ApplyMove(actor, opp, dir, dt), false)
}

// applyResult broadcasts every moved participant and ends the round on a
// ring-out. Shared by human moves and autopilot ticks.
func (a *Arena) applyResult(res MoveResult, bot bool) {
	a.metrics.MoveApplied(bot)
	for _, p := range res.Moved {
		a.Broadcast(MsgPlayerMoved, PlayerMovedMsg{
			ID: p.ID,
			Position: Vec3{
				X: round2(p.Position.X),
				Y: round2(p.Position.Y),
				Z: round2(p.Position.Z),
			},
			Rotation: round2(p.Rotation),
		})
	}
	if res.RoundEnded() {
		a.stage.EndRound(res.LoserID, ReasonRingOut)
	}
}

func (a *Arena) drop(id, reason string) {
	a.metrics.IntentDropped(reason)
	a.log.Debug().Str("id", id).Str("reason", reason).Msg("move dropped")
}

func (a *Arena) toggleViewerOnly(id string, viewerOnly bool) {
	p := a.reg.FindByID(id)
	if p == nil || p.IsBot() {
		return
	}
	p.ViewerOnly = viewerOnly
	a.log.Debug().Str("id", id).Bool("viewerOnly", viewerOnly).Msg("viewer-only toggled")
}

func (a *Arena) linkAccount(id string, accountID int64, name string) {
	p := a.reg.FindByID(id)
	if p == nil || p.IsBot() {
		return
	}
	p.AccountID = accountID
	if name != "" {
		p.Name = name
	}
}

func (a *Arena) snapshot() SnapshotMsg {
	return SnapshotMsg{
		Fighters:      statesOf(a.reg.Fighters()),
		Referee:       stateOf(a.reg.Referee()),
		Viewers:       statesOf(a.reg.Viewers()),
		Stage:         a.stage.Current(),
		TimeRemaining: a.stage.TimeRemaining().Milliseconds(),
		Counts:        a.reg.Counts(),
	}
}

func (a *Arena) broadcastCounts() {
	c := a.reg.Counts()
	a.metrics.Population(c)
	a.Broadcast(MsgPlayerCount, c)
}

// Broadcast sends an envelope to every client. The JSON is marshalled once;
// binary clients get movement as msgpack.
func (a *Arena) Broadcast(t string, data interface{}) {
	if len(a.clients) == 0 {
		return
	}
	env := Envelope{T: t, Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		a.log.Error().Err(err).Str("type", t).Msg("marshal broadcast")
		return
	}
	var packed []byte
	for _, c := range a.clients {
		if br, ok := c.(BinaryReceiver); ok && t == MsgPlayerMoved && br.WantsBinary() {
			if packed == nil {
				if packed, err = msgpack.Marshal(env); err != nil {
					a.log.Error().Err(err).Msg("msgpack broadcast")
					continue
				}
			}
			br.SendBinary(packed)
			continue
		}
		if rs, ok := c.(rawSender); ok {
			rs.SendRaw(raw)
			continue
		}
		c.SendJSON(env)
	}
}

// rawSender lets Broadcast reuse a single marshalled payload
type rawSender interface {
	SendRaw(data []byte)
}
