package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/leadsync/internal/convstore"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
	if result.Dirty {
		t.Error("schema marked dirty")
	}
}

func TestSnapshotRoundTripKeepsOrder(t *testing.T) {
	db := testDB(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	list := []convstore.Summary{
		{ID: "9", DisplayName: "Ana", LastMessagePreview: "oi", LastActivity: at, UnreadCount: 2, HasOffer: true},
		{ID: "3", DisplayName: "Bia", HasNewBank: true},
		{ID: "5"},
	}
	if err := db.SaveSnapshot(list); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d conversations, want 3", len(got))
	}
	for i, want := range list {
		if got[i] != want {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestSnapshotReplacesPrevious(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSnapshot([]convstore.Summary{{ID: "1"}, {ID: "2"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot([]convstore.Summary{{ID: "2"}}); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("snapshot = %+v, want only 2", got)
	}
}

func TestEmptySnapshot(t *testing.T) {
	db := testDB(t)
	got, err := db.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows from empty db", len(got))
	}
}

func TestSyncState(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.GetState("last_connected_at"); err != nil || ok {
		t.Fatalf("GetState() on empty = ok %v err %v", ok, err)
	}
	if err := db.SetState("last_connected_at", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState("last_connected_at", "b"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetState("last_connected_at")
	if err != nil || !ok || v != "b" {
		t.Errorf("GetState() = %q, %v, %v; want b", v, ok, err)
	}
}
