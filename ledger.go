package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	ledgerQueueSize  = 1024
	ledgerBatchSize  = 50
	ledgerFlushEvery = 5 * time.Second
)

// MatchSide identifies one participant of a finished round
type MatchSide struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID int64  `json:"accountId,omitempty"`
	Bot       bool   `json:"bot"`
}

func sideOf(p *Participant) MatchSide {
	if p == nil {
		return MatchSide{}
	}
	return MatchSide{ID: p.ID, Name: p.Name, AccountID: p.AccountID, Bot: p.IsBot()}
}

// MatchRecord is one finished round. WinnerID is empty for a draw.
type MatchRecord struct {
	StartedAt time.Time
	EndedAt   time.Time
	Fighters  [2]MatchSide
	Referee   MatchSide
	WinnerID  string
	Reason    string
}

// Draw reports whether nobody won
func (r MatchRecord) Draw() bool {
	return r.WinnerID == ""
}

// MatchRecorder receives finished rounds from the arena loop. Record must
// never block.
type MatchRecorder interface {
	Record(rec MatchRecord)
}

// Ledger persists match records with batched background writes
type Ledger struct {
	db      *DB
	log     zerolog.Logger
	metrics *Metrics
	records chan MatchRecord
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewLedger creates and starts the background writer
func NewLedger(db *DB, log zerolog.Logger, metrics *Metrics) *Ledger {
	l := &Ledger{
		db:      db,
		log:     log,
		metrics: metrics,
		records: make(chan MatchRecord, ledgerQueueSize),
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Record enqueues a round for async persistence (non-blocking)
func (l *Ledger) Record(rec MatchRecord) {
	select {
	case l.records <- rec:
	default:
		// Queue full: drop rather than stall the arena loop.
		l.log.Warn().Str("reason", rec.Reason).Msg("ledger queue full, record dropped")
		l.metrics.LedgerWrite(false, 1)
	}
}

// Stop drains pending records and waits for the writer to exit
func (l *Ledger) Stop() {
	l.once.Do(func() { close(l.stop) })
	l.wg.Wait()
}

func (l *Ledger) writer() {
	defer l.wg.Done()

	batch := make([]MatchRecord, 0, ledgerBatchSize)
	ticker := time.NewTicker(ledgerFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case rec := <-l.records:
			batch = append(batch, rec)
			if len(batch) >= ledgerBatchSize {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-l.stop:
			for {
				select {
				case rec := <-l.records:
					batch = append(batch, rec)
				default:
					l.flush(batch)
					return
				}
			}
		}
	}
}

func (l *Ledger) flush(batch []MatchRecord) {
	if l.db == nil || len(batch) == 0 {
		return
	}
	if err := l.db.InsertMatches(batch); err != nil {
		l.log.Error().Err(err).Int("records", len(batch)).Msg("ledger flush failed")
		l.metrics.LedgerWrite(false, len(batch))
		return
	}
	l.log.Debug().Int("records", len(batch)).Msg("ledger flushed")
	l.metrics.LedgerWrite(true, len(batch))
}
