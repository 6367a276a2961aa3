package main

import (
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// AccountRow represents an account record in the database
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow represents an account's fight record
type StatsRow struct {
	AccountID int64
	Wins      int
	Losses    int
	Draws     int
	Matches   int
	Refereed  int
}

// MatchRow is a persisted round as returned by the API
type MatchRow struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Fighter1  string    `json:"fighter1"`
	Fighter2  string    `json:"fighter2"`
	Referee   string    `json:"referee"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason"`
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Matches  int    `json:"matches"`
	Refereed int    `json:"refereed"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}

	// WAL lets API reads run while the ledger writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "enable WAL")
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "enable foreign keys")
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		matches INTEGER NOT NULL DEFAULT 0,
		refereed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		fighter1_id TEXT NOT NULL,
		fighter1_name TEXT NOT NULL,
		fighter2_id TEXT NOT NULL,
		fighter2_name TEXT NOT NULL,
		referee_name TEXT NOT NULL DEFAULT '',
		winner_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return eris.Wrap(err, "migrate schema")
	}
	return nil
}

// CreateAccount creates a new account and its stats row
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO accounts (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, eris.Wrapf(err, "insert account %s", username)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "account id")
	}
	if _, err := tx.Exec("INSERT INTO stats (account_id) VALUES (?)", id); err != nil {
		return 0, eris.Wrap(err, "insert stats")
	}
	return id, eris.Wrap(tx.Commit(), "commit account")
}

// GetAccountByUsername returns an account by username, nil if absent
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE username = ?",
		username,
	)
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, eris.Wrap(err, "scan account")
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	return count > 0, eris.Wrap(err, "count accounts")
}

// GetStats returns an account's record, nil if absent
func (db *DB) GetStats(accountID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT account_id, wins, losses, draws, matches, refereed FROM stats WHERE account_id = ?",
		accountID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.AccountID, &s.Wins, &s.Losses, &s.Draws, &s.Matches, &s.Refereed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, eris.Wrap(err, "scan stats")
}

// GetSetting returns a stored setting or ""
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return eris.Wrapf(err, "set %s", key)
}

// InsertMatches writes a batch of rounds and folds them into account stats
// in one transaction.
func (db *DB) InsertMatches(recs []MatchRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	ins, err := tx.Prepare(`INSERT INTO matches
		(started_at, ended_at, fighter1_id, fighter1_name, fighter2_id, fighter2_name, referee_name, winner_id, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "prepare match insert")
	}
	defer ins.Close()

	upd, err := tx.Prepare(`UPDATE stats SET
		wins = wins + ?, losses = losses + ?, draws = draws + ?, matches = matches + 1
		WHERE account_id = ?`)
	if err != nil {
		return eris.Wrap(err, "prepare stats update")
	}
	defer upd.Close()

	for _, r := range recs {
		f1, f2 := r.Fighters[0], r.Fighters[1]
		if _, err := ins.Exec(
			r.StartedAt.UTC().Format(time.RFC3339), r.EndedAt.UTC().Format(time.RFC3339),
			f1.ID, f1.Name, f2.ID, f2.Name, r.Referee.Name, r.WinnerID, r.Reason,
		); err != nil {
			return eris.Wrap(err, "insert match")
		}
		for _, f := range r.Fighters {
			if f.AccountID == 0 {
				continue
			}
			var win, loss, draw int
			switch {
			case r.Draw():
				draw = 1
			case f.ID == r.WinnerID:
				win = 1
			default:
				loss = 1
			}
			if _, err := upd.Exec(win, loss, draw, f.AccountID); err != nil {
				return eris.Wrapf(err, "update stats for %d", f.AccountID)
			}
		}
		if r.Referee.AccountID != 0 {
			if _, err := tx.Exec("UPDATE stats SET refereed = refereed + 1 WHERE account_id = ?", r.Referee.AccountID); err != nil {
				return eris.Wrapf(err, "update referee stats for %d", r.Referee.AccountID)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "commit matches")
}

// RecentMatches returns the latest rounds, newest first
func (db *DB) RecentMatches(limit int) ([]MatchRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, started_at, ended_at, fighter1_name, fighter2_name, referee_name,
			CASE winner_id WHEN '' THEN ''
				WHEN fighter1_id THEN fighter1_name
				ELSE fighter2_name END,
			reason
		FROM matches ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "query matches")
	}
	defer rows.Close()

	var result []MatchRow
	for rows.Next() {
		var m MatchRow
		var started, ended string
		if err := rows.Scan(&m.ID, &started, &ended, &m.Fighter1, &m.Fighter2, &m.Referee, &m.Winner, &m.Reason); err != nil {
			return nil, eris.Wrap(err, "scan match")
		}
		m.StartedAt, _ = time.Parse(time.RFC3339, started)
		m.EndedAt, _ = time.Parse(time.RFC3339, ended)
		result = append(result, m)
	}
	return result, eris.Wrap(rows.Err(), "iterate matches")
}

// GetLeaderboard returns top accounts sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	// Whitelist valid order columns
	validCols := map[string]string{
		"wins": "s.wins", "matches": "s.matches", "draws": "s.draws", "refereed": "s.refereed",
	}
	col, ok := validCols[orderBy]
	if !ok {
		col = "s.wins"
	}

	query := `SELECT a.username, s.wins, s.losses, s.draws, s.matches, s.refereed
		FROM stats s JOIN accounts a ON a.id = s.account_id
		WHERE s.matches > 0 OR s.refereed > 0
		ORDER BY ` + col + ` DESC, a.username ASC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "query leaderboard")
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.Losses, &e.Draws, &e.Matches, &e.Refereed); err != nil {
			return nil, eris.Wrap(err, "scan leaderboard")
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, eris.Wrap(rows.Err(), "iterate leaderboard")
}
