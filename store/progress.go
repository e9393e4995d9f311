package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Progress is one user's record for one level.
type Progress struct {
	UserID int64   `json:"user_id"`
	Level  int64   `json:"level"`
	Shots  int64   `json:"shots"`
	Misses int64   `json:"misses"`
	Score  float64 `json:"score"`
}

// ErrNoProgress is returned when no progress row exists for (user, level).
var ErrNoProgress = errors.New("store: no progress row")

// EnterLevel ensures a progress row exists for (user, level).
func (s *Store) EnterLevel(ctx context.Context, userID, level int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO level_progress (user_id, level) VALUES (?, ?)`,
		userID, level)
	if err != nil {
		return fmt.Errorf("store: enter level: %w", err)
	}
	return nil
}

// RecordShot increments the shot counter, and the miss counter when miss
// is set, for (user, level). The increments happen in a single upsert
// statement so concurrent shots never lose counts, and a shot against a
// level without a progress row still registers.
func (s *Store) RecordShot(ctx context.Context, userID, level int64, miss bool) error {
	m := 0
	if miss {
		m = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO level_progress (user_id, level, shots, misses) VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id, level) DO UPDATE SET
			shots  = shots + 1,
			misses = misses + excluded.misses`,
		userID, level, m)
	if err != nil {
		return fmt.Errorf("store: record shot: %w", err)
	}
	return nil
}

// SetScore overwrites the similarity score for (user, level).
func (s *Store) SetScore(ctx context.Context, userID, level int64, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO level_progress (user_id, level, score) VALUES (?, ?, ?)
		ON CONFLICT (user_id, level) DO UPDATE SET score = excluded.score`,
		userID, level, score)
	if err != nil {
		return fmt.Errorf("store: set score: %w", err)
	}
	return nil
}

// Progress returns the row for (user, level), or ErrNoProgress.
func (s *Store) Progress(ctx context.Context, userID, level int64) (Progress, error) {
	p := Progress{UserID: userID, Level: level}
	err := s.db.QueryRowContext(ctx, `
		SELECT shots, misses, score FROM level_progress
		WHERE user_id = ? AND level = ?`,
		userID, level).Scan(&p.Shots, &p.Misses, &p.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNoProgress
	}
	if err != nil {
		return p, fmt.Errorf("store: progress: %w", err)
	}
	return p, nil
}
