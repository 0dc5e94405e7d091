package store

import (
	"context"
	"database/sql"
	"fmt"

	"eventcraft/internal/models"
)

// StatsStore computes the admin dashboard aggregates.
type StatsStore struct {
	db *sql.DB
}

// NewStatsStore creates a new StatsStore with the given database connection.
func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db}
}

// topEventTypes is how many event types Overview reports.
const topEventTypes = 10

// Overview returns totals, per-provider figures, daily counts for the
// last days days (UTC), and the most common event types.
func (s *StatsStore) Overview(ctx context.Context, days int) (*models.Stats, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	st := &models.Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM generations WHERE status = 'completed'),
			(SELECT COUNT(*) FROM generations WHERE status = 'failed'),
			(SELECT COUNT(*) FROM carousels WHERE status = 'completed'),
			(SELECT COALESCE(-SUM(delta), 0) FROM credit_ledger WHERE delta < 0),
			(SELECT COALESCE(SUM(original_bytes - stored_bytes), 0) FROM generations WHERE status = 'completed')
	`).Scan(&st.Users, &st.Generations, &st.Failed, &st.Carousels, &st.CreditsSpent, &st.BytesSaved)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	if st.Providers, err = s.providers(ctx); err != nil {
		return nil, err
	}
	if st.Daily, err = s.daily(ctx, days); err != nil {
		return nil, err
	}
	if st.TopEventTypes, err = s.eventTypes(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *StatsStore) providers(ctx context.Context) ([]models.ProviderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider,
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(stored_bytes::float8 / NULLIF(original_bytes, 0)) FILTER (WHERE status = 'completed'), 0)
		FROM generations
		WHERE provider <> ''
		GROUP BY provider
		ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("stats providers: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderStats
	for rows.Next() {
		var p models.ProviderStats
		if err := rows.Scan(&p.Provider, &p.Completed, &p.Failed, &p.AvgCompression); err != nil {
			return nil, fmt.Errorf("scan provider stats: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *StatsStore) daily(ctx context.Context, days int) ([]models.DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(d.day, 'YYYY-MM-DD'),
			COUNT(g.id) FILTER (WHERE g.status = 'completed'),
			COUNT(g.id) FILTER (WHERE g.status = 'failed')
		FROM generate_series(
			(now() AT TIME ZONE 'UTC')::date - ($1::int - 1),
			(now() AT TIME ZONE 'UTC')::date,
			interval '1 day'
		) AS d(day)
		LEFT JOIN generations g ON (g.created_at AT TIME ZONE 'UTC')::date = d.day::date
		GROUP BY d.day
		ORDER BY d.day
	`, days)
	if err != nil {
		return nil, fmt.Errorf("stats daily: %w", err)
	}
	defer rows.Close()

	var out []models.DailyCount
	for rows.Next() {
		var d models.DailyCount
		if err := rows.Scan(&d.Day, &d.Completed, &d.Failed); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *StatsStore) eventTypes(ctx context.Context) ([]models.EventTypeStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lower(event_type), COUNT(*)
		FROM generations
		WHERE status = 'completed' AND event_type <> ''
		GROUP BY lower(event_type)
		ORDER BY COUNT(*) DESC, lower(event_type)
		LIMIT $1
	`, topEventTypes)
	if err != nil {
		return nil, fmt.Errorf("stats event types: %w", err)
	}
	defer rows.Close()

	var out []models.EventTypeStat
	for rows.Next() {
		var e models.EventTypeStat
		if err := rows.Scan(&e.EventType, &e.Count); err != nil {
			return nil, fmt.Errorf("scan event type stats: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
