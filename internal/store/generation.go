// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"eventcraft/internal/models"
)

// GenerationStore persists generations and carousels. Completing one
// debits the owner's credits in the same transaction.
type GenerationStore struct {
	db *sql.DB
}

// NewGenerationStore creates a new GenerationStore with the given database connection.
func NewGenerationStore(db *sql.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

const generationColumns = `id, user_id, carousel_id, slide_index, kind, status, prompt, event_type,
	style, aspect_ratio, provider, model, s3_key, url, content_type, width, height,
	original_bytes, stored_bytes, watermarked, cost, error, created_at`

func scanGeneration(s scanner) (*models.Generation, error) {
	g := &models.Generation{}
	err := s.Scan(
		&g.ID, &g.UserID, &g.CarouselID, &g.SlideIndex, &g.Kind, &g.Status, &g.Prompt, &g.EventType,
		&g.Style, &g.AspectRatio, &g.Provider, &g.Model, &g.S3Key, &g.URL, &g.ContentType, &g.Width, &g.Height,
		&g.OriginalBytes, &g.StoredBytes, &g.Watermarked, &g.Cost, &g.Error, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// insertGeneration writes g (whose ID is set by the caller) and fills in
// CreatedAt.
func insertGeneration(ctx context.Context, tx *sql.Tx, g *models.Generation) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO generations (id, user_id, carousel_id, slide_index, kind, status, prompt, event_type,
			style, aspect_ratio, provider, model, s3_key, url, content_type, width, height,
			original_bytes, stored_bytes, watermarked, cost, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at
	`,
		g.ID, g.UserID, g.CarouselID, g.SlideIndex, g.Kind, g.Status, g.Prompt, g.EventType,
		g.Style, g.AspectRatio, g.Provider, g.Model, g.S3Key, g.URL, g.ContentType, g.Width, g.Height,
		g.OriginalBytes, g.StoredBytes, g.Watermarked, g.Cost, g.Error,
	).Scan(&g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e *models.LedgerEntry) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO credit_ledger (user_id, delta, balance, reason, generation_id, carousel_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.UserID, e.Delta, e.Balance, e.Reason, e.GenerationID, e.CarouselID).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Complete records a successful generation and debits g.Cost from the
// owner in one transaction. Returns the new balance, or
// ErrInsufficientCredits if the balance no longer covers the cost.
func (s *GenerationStore) Complete(ctx context.Context, g *models.Generation) (int, error) {
	g.Status = models.StatusCompleted
	var balance int
	err := withTx(ctx, s.db, "complete generation", func(tx *sql.Tx) error {
		var err error
		if balance, err = debit(ctx, tx, g.UserID, g.Cost); err != nil {
			return err
		}
		if err := insertGeneration(ctx, tx, g); err != nil {
			return err
		}
		if g.Cost == 0 {
			return nil
		}
		id := g.ID
		return insertLedger(ctx, tx, &models.LedgerEntry{
			UserID:       g.UserID,
			Delta:        -g.Cost,
			Balance:      balance,
			Reason:       models.ReasonGeneration,
			GenerationID: &id,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// RecordFailed stores a failed generation. Nothing is charged.
func (s *GenerationStore) RecordFailed(ctx context.Context, g *models.Generation, reason string) error {
	g.Status = models.StatusFailed
	g.Cost = 0
	g.Error = nullString(reason)
	return withTx(ctx, s.db, "record failed generation", func(tx *sql.Tx) error {
		return insertGeneration(ctx, tx, g)
	})
}

// CompleteCarousel records a carousel and all of its slides and debits
// c.Cost in one transaction. Slides get the carousel's ID and their
// index. Returns the new balance.
func (s *GenerationStore) CompleteCarousel(ctx context.Context, c *models.Carousel) (int, error) {
	c.Status = models.StatusCompleted
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	var balance int
	err := withTx(ctx, s.db, "complete carousel", func(tx *sql.Tx) error {
		var err error
		if balance, err = debit(ctx, tx, c.UserID, c.Cost); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO carousels (id, user_id, title, slide_count, status, cost)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, c.ID, c.UserID, c.Title, c.SlideCount, c.Status, c.Cost).Scan(&c.CreatedAt); err != nil {
			return fmt.Errorf("insert carousel: %w", err)
		}

		for i := range c.Slides {
			slide := &c.Slides[i]
			id, idx := c.ID, i
			slide.CarouselID = &id
			slide.SlideIndex = &idx
			slide.Kind = models.KindSlide
			slide.Status = models.StatusCompleted
			if err := insertGeneration(ctx, tx, slide); err != nil {
				return fmt.Errorf("slide %d: %w", i, err)
			}
		}

		if c.Cost == 0 {
			return nil
		}
		id := c.ID
		return insertLedger(ctx, tx, &models.LedgerEntry{
			UserID:     c.UserID,
			Delta:      -c.Cost,
			Balance:    balance,
			Reason:     models.ReasonCarousel,
			CarouselID: &id,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// RecordFailedCarousel stores a carousel that could not be completed.
// Its slides are not stored and nothing is charged.
func (s *GenerationStore) RecordFailedCarousel(ctx context.Context, c *models.Carousel) error {
	c.Status = models.StatusFailed
	c.Cost = 0
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO carousels (id, user_id, title, slide_count, status, cost)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING created_at
	`, c.ID, c.UserID, c.Title, c.SlideCount, c.Status).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("record failed carousel: %w", err)
	}
	return nil
}

// FindByID retrieves a generation. Returns nil if not found.
func (s *GenerationStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	g, err := scanGeneration(s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find generation: %w", err)
	}
	return g, nil
}

// ListFilter narrows List. A nil UserID lists every user's generations.
type ListFilter struct {
	UserID *uuid.UUID
	Status string // "" for any
	Kind   string // "" for any
	Limit  int
	Offset int
}

// List returns generations newest first and the total matching count.
func (s *GenerationStore) List(ctx context.Context, f ListFilter) ([]models.Generation, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count generations: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := max(f.Offset, 0)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM generations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		generationColumns, clause, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Delete removes a generation row.
func (s *GenerationStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindCarousel retrieves a carousel with its slides in order. Returns nil
// if not found.
func (s *GenerationStore) FindCarousel(ctx context.Context, id uuid.UUID) (*models.Carousel, error) {
	c := &models.Carousel{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, slide_count, status, cost, created_at
		FROM carousels WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Title, &c.SlideCount, &c.Status, &c.Cost, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find carousel: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+generationColumns+` FROM generations
		WHERE carousel_id = $1 ORDER BY slide_index ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list carousel slides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		c.Slides = append(c.Slides, *g)
	}
	return c, rows.Err()
}
