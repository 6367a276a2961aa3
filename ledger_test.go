package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerFlushesOnStop(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, zerolog.Nop(), NewMetrics())

	now := time.Now()
	for i := 0; i < 3; i++ {
		l.Record(MatchRecord{
			StartedAt: now, EndedAt: now,
			Fighters: [2]MatchSide{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
			WinnerID: "a", Reason: ReasonRingOut,
		})
	}
	l.Stop()
	l.Stop()

	rows, err := db.RecentMatches(10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestLedgerFlushesFullBatch(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, zerolog.Nop(), nil)
	t.Cleanup(l.Stop)

	now := time.Now()
	for i := 0; i < ledgerBatchSize; i++ {
		l.Record(MatchRecord{StartedAt: now, EndedAt: now, Reason: ReasonTimeout})
	}
	assert.Eventually(t, func() bool {
		rows, err := db.RecentMatches(ledgerBatchSize + 1)
		return err == nil && len(rows) == ledgerBatchSize
	}, 3*time.Second, 20*time.Millisecond)
}

func TestLedgerWithoutDatabase(t *testing.T) {
	l := NewLedger(nil, zerolog.Nop(), nil)
	assert.NotPanics(t, func() {
		l.Record(MatchRecord{Reason: ReasonTimeout})
		l.Stop()
	})
}

func TestSideOf(t *testing.T) {
	assert.Equal(t, MatchSide{}, sideOf(nil))
	p := &Participant{ID: "fighter-bot-1", Name: "[BOT] Brick", Kind: KindFighterBot}
	assert.Equal(t, MatchSide{ID: p.ID, Name: p.Name, Bot: true}, sideOf(p))
}
