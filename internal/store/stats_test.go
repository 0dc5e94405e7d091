package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatsStoreOverview(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"u", "g", "f", "c", "s", "b"}).
			AddRow(4, 20, 3, 2, 26, int64(1048576)))
	mock.ExpectQuery("GROUP BY provider").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "completed", "failed", "avg"}).
			AddRow("fal-qwen", 5, 1, 0.4).
			AddRow("ideogram", 15, 2, 0.3))
	mock.ExpectQuery("generate_series").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"day", "completed", "failed"}).
			AddRow("2026-02-28", 3, 0).
			AddRow("2026-03-01", 4, 1))
	mock.ExpectQuery("GROUP BY lower\\(event_type\\)").
		WithArgs(topEventTypes).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).AddRow("wedding", 9))

	st, err := NewStatsStore(db).Overview(context.Background(), 7)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if st.Users != 4 || st.Generations != 20 || st.Failed != 3 || st.Carousels != 2 || st.CreditsSpent != 26 {
		t.Errorf("totals: %+v", st)
	}
	if st.BytesSaved != 1048576 {
		t.Errorf("bytes saved: got %d", st.BytesSaved)
	}
	if len(st.Providers) != 2 || st.Providers[1].AvgCompression != 0.3 {
		t.Errorf("providers: %+v", st.Providers)
	}
	if len(st.Daily) != 2 || st.Daily[1].Failed != 1 {
		t.Errorf("daily: %+v", st.Daily)
	}
	if len(st.TopEventTypes) != 1 || st.TopEventTypes[0].EventType != "wedding" {
		t.Errorf("event types: %+v", st.TopEventTypes)
	}
}
