// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

// newMock returns a sqlmock-backed *sql.DB. Expectations are verified
// when the test finishes.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var testTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func userRow(id uuid.UUID, credits int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name", "role", "plan", "credits", "created_at"}).
		AddRow(id.String(), "ana@example.com", "Ana", "user", "free", credits, testTime)
}

var generationCols = []string{
	"id", "user_id", "carousel_id", "slide_index", "kind", "status", "prompt", "event_type",
	"style", "aspect_ratio", "provider", "model", "s3_key", "url", "content_type", "width", "height",
	"original_bytes", "stored_bytes", "watermarked", "cost", "error", "created_at",
}

func generationRow(rows *sqlmock.Rows, id, userID uuid.UUID) *sqlmock.Rows {
	return rows.AddRow(
		id.String(), userID.String(), nil, nil, "image", "completed", "a poster", "concert",
		"neon", "1:1", "ideogram", "V_2", "generations/x.webp", "https://cdn/x.webp", "image/webp", 1024, 1024,
		int64(2000), int64(500), false, 1, nil, testTime,
	)
}
