// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"eventcraft/internal/models"
)

func TestGenerationStoreComplete_DebitsAndRecords(t *testing.T) {
	db, mock := newMock(t)
	userID, genID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits -").
		WithArgs(2, userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(8))
	mock.ExpectQuery("INSERT INTO generations").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	mock.ExpectQuery("INSERT INTO credit_ledger").
		WithArgs(userID.String(), -2, 8, models.ReasonGeneration, genID.String(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), testTime))
	mock.ExpectCommit()

	g := &models.Generation{ID: genID, UserID: userID, Kind: models.KindImage, Prompt: "p", Cost: 2}
	balance, err := NewGenerationStore(db).Complete(context.Background(), g)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if balance != 8 {
		t.Errorf("balance: got %d, want 8", balance)
	}
	if g.Status != models.StatusCompleted || !g.CreatedAt.Equal(testTime) {
		t.Errorf("generation: status=%q created=%v", g.Status, g.CreatedAt)
	}
}

func TestGenerationStoreComplete_InsufficientCredits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits -").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}))
	mock.ExpectRollback()

	g := &models.Generation{ID: uuid.New(), UserID: uuid.New(), Cost: 5}
	_, err := NewGenerationStore(db).Complete(context.Background(), g)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestGenerationStoreComplete_FreeGenerationSkipsLedger(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT credits FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO generations").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	mock.ExpectCommit()

	g := &models.Generation{ID: uuid.New(), UserID: uuid.New()}
	balance, err := NewGenerationStore(db).Complete(context.Background(), g)
	if err != nil || balance != 3 {
		t.Fatalf("Complete: got %d, %v", balance, err)
	}
}

func TestGenerationStoreRecordFailed(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO generations").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	mock.ExpectCommit()

	g := &models.Generation{ID: uuid.New(), UserID: uuid.New(), Cost: 3}
	if err := NewGenerationStore(db).RecordFailed(context.Background(), g, "all providers failed"); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	if g.Status != models.StatusFailed || g.Cost != 0 || g.Error == nil || *g.Error != "all providers failed" {
		t.Errorf("failed generation: %+v", g)
	}
}

func TestGenerationStoreCompleteCarousel(t *testing.T) {
	db, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits -").
		WithArgs(3, userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO carousels").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	for i := 0; i < 3; i++ {
		mock.ExpectQuery("INSERT INTO generations").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	}
	mock.ExpectQuery("INSERT INTO credit_ledger").
		WithArgs(userID.String(), -3, 1, models.ReasonCarousel, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), testTime))
	mock.ExpectCommit()

	c := &models.Carousel{
		UserID:     userID,
		Title:      "Launch",
		SlideCount: 3,
		Cost:       3,
		Slides:     make([]models.Generation, 3),
	}
	for i := range c.Slides {
		c.Slides[i] = models.Generation{ID: uuid.New(), UserID: userID}
	}

	balance, err := NewGenerationStore(db).CompleteCarousel(context.Background(), c)
	if err != nil {
		t.Fatalf("CompleteCarousel: %v", err)
	}
	if balance != 1 || c.ID == uuid.Nil || c.Status != models.StatusCompleted {
		t.Errorf("carousel: balance=%d %+v", balance, c)
	}
	for i, s := range c.Slides {
		if s.CarouselID == nil || *s.CarouselID != c.ID || s.SlideIndex == nil || *s.SlideIndex != i || s.Kind != models.KindSlide {
			t.Errorf("slide %d not linked: %+v", i, s)
		}
	}
}

func TestGenerationStoreCompleteCarousel_SlideFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits -").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(5))
	mock.ExpectQuery("INSERT INTO carousels").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(testTime))
	mock.ExpectQuery("INSERT INTO generations").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	c := &models.Carousel{UserID: uuid.New(), SlideCount: 2, Cost: 2, Slides: make([]models.Generation, 2)}
	if _, err := NewGenerationStore(db).CompleteCarousel(context.Background(), c); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerationStoreFindByID(t *testing.T) {
	db, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .* FROM generations WHERE id").
		WithArgs(id.String()).
		WillReturnRows(generationRow(sqlmock.NewRows(generationCols), id, userID))

	g, err := NewGenerationStore(db).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if g.ID != id || g.UserID != userID || g.CarouselID != nil || g.Error != nil {
		t.Errorf("generation: %+v", g)
	}
	if g.CompressionRatio() != 0.25 {
		t.Errorf("compression ratio: got %v", g.CompressionRatio())
	}
}

func TestGenerationStoreList(t *testing.T) {
	db, mock := newMock(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM generations WHERE user_id = \$1 AND status = \$2`).
		WithArgs(userID.String(), "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rows := sqlmock.NewRows(generationCols)
	generationRow(rows, uuid.New(), userID)
	generationRow(rows, uuid.New(), userID)
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(userID.String(), "completed", 20, 0).
		WillReturnRows(rows)

	list, total, err := NewGenerationStore(db).List(context.Background(), ListFilter{
		UserID: &userID,
		Status: models.StatusCompleted,
		Offset: -5,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("got total=%d len=%d", total, len(list))
	}
}

func TestGenerationStoreDelete_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("DELETE FROM generations").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewGenerationStore(db).Delete(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGenerationStoreFindCarousel(t *testing.T) {
	db, mock := newMock(t)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM carousels WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "slide_count", "status", "cost", "created_at"}).
			AddRow(id.String(), userID.String(), "Launch", 2, "completed", 2, testTime))
	rows := sqlmock.NewRows(generationCols)
	generationRow(rows, uuid.New(), userID)
	generationRow(rows, uuid.New(), userID)
	mock.ExpectQuery("WHERE carousel_id = \\$1 ORDER BY slide_index").WillReturnRows(rows)

	c, err := NewGenerationStore(db).FindCarousel(context.Background(), id)
	if err != nil {
		t.Fatalf("FindCarousel: %v", err)
	}
	if c.Title != "Launch" || len(c.Slides) != 2 {
		t.Errorf("carousel: %+v", c)
	}
}

func TestGenerationStoreFindCarousel_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("FROM carousels WHERE id").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := NewGenerationStore(db).FindCarousel(context.Background(), uuid.New())
	if err != nil || c != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", c, err)
	}
}
