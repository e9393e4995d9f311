package store

import (
	"context"
	"fmt"
	"strings"
)

// InsufficientError reports a debit that could not be funded. It is a
// normal outcome, not a fault: no tokens were deleted.
type InsufficientError struct {
	// Colors lists the requested colors the user does not own enough of,
	// in request order.
	Colors []string
}

func (e *InsufficientError) Error() string {
	return "store: insufficient colors: " + strings.Join(e.Colors, ", ")
}

// GrantColors inserts one owned token per entry of colors.
func (s *Store) GrantColors(ctx context.Context, userID int64, colors []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO color_tokens (user_id, color) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: grant colors: %w", err)
	}
	defer stmt.Close()

	for _, c := range colors {
		if _, err := stmt.ExecContext(ctx, userID, c); err != nil {
			return fmt.Errorf("store: grant color %s: %w", c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ColorCounts returns the user's owned token count per color.
func (s *Store) ColorCounts(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT color, COUNT(*) FROM color_tokens WHERE user_id = ? GROUP BY color`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: color counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var color string
		var n int
		if err := rows.Scan(&color, &n); err != nil {
			return nil, fmt.Errorf("store: color counts: %w", err)
		}
		counts[color] = n
	}
	return counts, rows.Err()
}

// DebitColors atomically consumes one token per entry of colors from the
// user's inventory. Either every requested token is deleted or none are:
// if any color is short, the whole debit aborts with *InsufficientError
// listing the short colors.
//
// Tokens are consumed oldest-first, so repeated identical requests delete
// the same rows in the same order. The transaction runs with the database
// write lock held from the start (see the package comment), which rules
// out double-spending by interleaved shots.
func (s *Store) DebitColors(ctx context.Context, userID int64, colors []string) error {
	requested, order := countColors(colors)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var short []string
	for _, color := range order {
		var owned int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM color_tokens WHERE user_id = ? AND color = ?`,
			userID, color).Scan(&owned); err != nil {
			return fmt.Errorf("store: debit check %s: %w", color, err)
		}
		if owned < requested[color] {
			short = append(short, color)
		}
	}
	if len(short) > 0 {
		return &InsufficientError{Colors: short}
	}

	for _, color := range order {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM color_tokens WHERE id IN (
				SELECT id FROM color_tokens
				WHERE user_id = ? AND color = ?
				ORDER BY id
				LIMIT ?
			)`, userID, color, requested[color])
		if err != nil {
			return fmt.Errorf("store: debit %s: %w", color, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: debit %s: %w", color, err)
		}
		if n != int64(requested[color]) {
			// Unreachable while the write lock is held; abort loudly
			// rather than commit a partial debit.
			return fmt.Errorf("store: debit %s: deleted %d of %d tokens", color, n, requested[color])
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// countColors collapses a color list into per-color counts, keeping the
// first-seen order for deterministic processing and error reporting.
func countColors(colors []string) (map[string]int, []string) {
	counts := make(map[string]int, len(colors))
	var order []string
	for _, c := range colors {
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	return counts, order
}
