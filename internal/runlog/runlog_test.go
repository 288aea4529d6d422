package runlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord([]string{"sequential-js:report-only"}, time.Now())
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", rec.ID, err)
	}
	if len(rec.Rules) != 1 {
		t.Errorf("Rules = %v", rec.Rules)
	}
}

func TestRecentMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "history.jsonl"))
	got, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent = %v, want empty", got)
	}
}

func TestAppendAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	store := NewStore(path)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		rec := NewRecord([]string{"unattached-policy:report-only"}, base.Add(time.Duration(i)*time.Hour))
		rec.Bundles = []BundleEntry{{Name: "orders", Unattached: i}}
		if err := store.Append(rec); err != nil {
			t.Fatalf("Append error: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	got, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Errorf("Recent order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
	if got[0].Bundles[0].Unattached != 2 {
		t.Errorf("Unattached = %d", got[0].Bundles[0].Unattached)
	}

	all, _ := store.Recent(0)
	if len(all) != 3 {
		t.Errorf("len(Recent(0)) = %d, want 3", len(all))
	}
}

func TestRecentSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	store := NewStore(path)
	if err := store.Append(NewRecord(nil, time.Now())); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n\n")
	f.Close()

	got, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(Recent) = %d, want 1", len(got))
	}
}

func TestGet(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "history.jsonl"))
	rec := NewRecord(nil, time.Now())
	rec.Bundles = []BundleEntry{{Name: "a"}, {Name: "b", Error: "boom"}}
	if err := store.Append(rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(rec.ID[:8])
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.Failed() != 1 {
		t.Errorf("Failed = %d, want 1", got.Failed())
	}

	if _, err := store.Get("does-not-exist"); err == nil {
		t.Error("expected error for unknown run")
	}
}
