package violation

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "violations.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_OffenseCountAndRoundTrip(t *testing.T) {
	storage, err := NewSQLiteStorage(openTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(storage, DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var last *Violation
	for i := 1; i <= 3; i++ {
		last, err = r.Record(ctx, Report{
			Policy:        testPolicy(),
			SubjectID:     "driver-42",
			OperationType: "vehicle_dispatch",
			Context:       map[string]any{"speed": 92.5},
		})
		if err != nil {
			t.Fatal(err)
		}
		if last.OffenseCount != i {
			t.Errorf("insert %d: offense count %d", i, last.OffenseCount)
		}
	}

	stored, err := storage.Get(ctx, last.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.OffenseCount != 3 || !stored.IsRepeatOffense || stored.SuggestedAction != ActionSuspension {
		t.Errorf("round trip lost derived fields: %+v", stored)
	}
	if stored.Context["speed"] != 92.5 {
		t.Errorf("round trip lost context: %v", stored.Context)
	}

	open, err := storage.List(ctx, Filter{Status: StatusOpen, SubjectID: "driver-42"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 3 {
		t.Errorf("list returned %d violations, expected 3", len(open))
	}
}
