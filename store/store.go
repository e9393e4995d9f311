// Package store persists users, the color token ledger and per-level
// progress in SQLite.
//
// The database must be opened with dbopen.WithImmediateTx: the ledger's
// read-check-delete debit relies on transactions taking the write lock at
// begin time, so two concurrent shots by the same user can never both see
// the same tokens as available.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/paintshot/idgen"
)

// Schema creates the three tables. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	nickname   TEXT NOT NULL UNIQUE,
	token      TEXT NOT NULL UNIQUE,
	level      INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE TABLE IF NOT EXISTS color_tokens (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	color   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_color_tokens_user_color ON color_tokens(user_id, color);
CREATE TABLE IF NOT EXISTS level_progress (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	level   INTEGER NOT NULL,
	shots   INTEGER NOT NULL DEFAULT 0,
	misses  INTEGER NOT NULL DEFAULT 0,
	score   REAL NOT NULL DEFAULT 0,
	UNIQUE (user_id, level)
);
`

// ErrNoUser is returned when a user id does not exist.
var ErrNoUser = errors.New("store: no such user")

// Store is the persistence layer for the shot pipeline.
type Store struct {
	db       *sql.DB
	newToken idgen.Generator
}

// New creates a Store backed by the given database connection.
// Call Init once at startup.
func New(db *sql.DB) *Store {
	return &Store{db: db, newToken: idgen.NanoID(32)}
}

// Init creates the tables if they don't exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// CreateUser registers a user at level 1 with its first progress row and
// returns the new id and API token.
func (s *Store) CreateUser(ctx context.Context, nickname string) (id int64, token string, err error) {
	token = s.newToken()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (nickname, token) VALUES (?, ?)`, nickname, token)
	if err != nil {
		return 0, "", fmt.Errorf("store: create user %q: %w", nickname, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, "", fmt.Errorf("store: create user %q: %w", nickname, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO level_progress (user_id, level) VALUES (?, 1)`, id); err != nil {
		return 0, "", fmt.Errorf("store: create user %q: %w", nickname, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, "", fmt.Errorf("store: commit: %w", err)
	}
	return id, token, nil
}

// UserLevel returns the user's current level number.
func (s *Store) UserLevel(ctx context.Context, userID int64) (int64, error) {
	var level int64
	err := s.db.QueryRowContext(ctx,
		`SELECT level FROM users WHERE id = ?`, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoUser
	}
	if err != nil {
		return 0, fmt.Errorf("store: user level: %w", err)
	}
	return level, nil
}

// AdvanceLevel moves the user to the next level, capped at maxLevel, and
// ensures a progress row for it. It returns the user's new level. Advancing
// cannot be undone.
func (s *Store) AdvanceLevel(ctx context.Context, userID, maxLevel int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var level int64
	err = tx.QueryRowContext(ctx, `SELECT level FROM users WHERE id = ?`, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoUser
	}
	if err != nil {
		return 0, fmt.Errorf("store: advance level: %w", err)
	}

	if level < maxLevel {
		level++
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET level = ? WHERE id = ?`, level, userID); err != nil {
		return 0, fmt.Errorf("store: advance level: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO level_progress (user_id, level) VALUES (?, ?)`,
		userID, level); err != nil {
		return 0, fmt.Errorf("store: advance level: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return level, nil
}
