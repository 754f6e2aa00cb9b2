package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wireplan-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id     TEXT NOT NULL,
	number      INTEGER NOT NULL,
	revealed_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS round_estimates (
	round_id       INTEGER NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	participant_id TEXT NOT NULL,
	name           TEXT NOT NULL,
	value          TEXT NOT NULL,
	PRIMARY KEY (round_id, position)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and creates the archive schema if missing.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, migrate)
}

// NewWithSetup opens the database and runs setup before the first ping.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRound persists a round and its estimates in one transaction.
func (s *SQLiteStore) SaveRound(ctx context.Context, round *store.Round) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`INSERT INTO rounds (room_id, number, revealed_at) VALUES (?, ?, ?)`,
		round.RoomID, round.Number, round.RevealedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO round_estimates (round_id, position, participant_id, name, value) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare estimate insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range round.Estimates {
		if _, err := stmt.ExecContext(ctx, id, i, e.ParticipantID, e.Name, e.Value); err != nil {
			return fmt.Errorf("insert estimate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round: %w", err)
	}
	round.ID = id
	return nil
}

// ListRounds returns archived rounds newest first, each with estimates in member order.
func (s *SQLiteStore) ListRounds(ctx context.Context, limit int, beforeID *int64) ([]*store.Round, error) {
	var query string
	var args []interface{}

	if beforeID != nil {
		query = `
			SELECT id, room_id, number, revealed_at
			FROM rounds
			WHERE id < ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []interface{}{*beforeID, limit}
	} else {
		query = `
			SELECT id, room_id, number, revealed_at
			FROM rounds
			ORDER BY id DESC
			LIMIT ?
		`
		args = []interface{}{limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}

	var rounds []*store.Round
	byID := make(map[int64]*store.Round)
	for rows.Next() {
		var r store.Round
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Number, &r.RevealedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	rows.Close()

	if len(rounds) == 0 {
		return rounds, nil
	}

	// Rounds are listed by descending id, so the page spans [last.ID, first.ID].
	erows, err := s.db.QueryContext(ctx, `
		SELECT round_id, participant_id, name, value
		FROM round_estimates
		WHERE round_id BETWEEN ? AND ?
		ORDER BY round_id, position
	`, rounds[len(rounds)-1].ID, rounds[0].ID)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var roundID int64
		var e store.Estimate
		if err := erows.Scan(&roundID, &e.ParticipantID, &e.Name, &e.Value); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		if r, ok := byID[roundID]; ok {
			r.Estimates = append(r.Estimates, e)
		}
	}

	return rounds, erows.Err()
}
