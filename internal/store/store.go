// Package store provides database access methods for all EventCraft
// entities. Each store struct wraps a *sql.DB and exposes typed query
// methods. Finders return (nil, nil) when no row matches.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits is returned when a debit would take a
	// balance below zero.
	ErrInsufficientCredits = errors.New("store: insufficient credits")

	// ErrNotFound is returned by mutations whose target row is missing.
	ErrNotFound = errors.New("store: not found")
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, name string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// debit subtracts amount from the user's balance inside tx and returns
// the new balance. A zero amount only reads the balance.
func debit(ctx context.Context, tx *sql.Tx, userID any, amount int) (int, error) {
	var balance int
	if amount == 0 {
		err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("read balance: %w", err)
		}
		return balance, nil
	}

	err := tx.QueryRowContext(ctx, `
		UPDATE users SET credits = credits - $1
		WHERE id = $2 AND credits >= $1
		RETURNING credits
	`, amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	return balance, nil
}

// nullString returns nil for an empty string so it is stored as NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
