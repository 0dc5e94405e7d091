package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"eventcraft/internal/models"
)

// CreditStore manages balance adjustments outside of generations.
type CreditStore struct {
	db *sql.DB
}

// NewCreditStore creates a new CreditStore with the given database connection.
func NewCreditStore(db *sql.DB) *CreditStore {
	return &CreditStore{db: db}
}

// Grant adds amount credits to the user and records a ledger entry.
// Returns the new balance.
func (s *CreditStore) Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if reason == "" {
		reason = models.ReasonGrant
	}

	var balance int
	err := withTx(ctx, s.db, "grant credits", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE users SET credits = credits + $1 WHERE id = $2 RETURNING credits
		`, amount, userID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		return insertLedger(ctx, tx, &models.LedgerEntry{
			UserID:  userID,
			Delta:   amount,
			Balance: balance,
			Reason:  reason,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Ledger returns the user's most recent ledger entries, newest first.
func (s *CreditStore) Ledger(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, delta, balance, reason, generation_id, carousel_id, created_at
		FROM credit_ledger WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Balance, &e.Reason, &e.GenerationID, &e.CarouselID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
