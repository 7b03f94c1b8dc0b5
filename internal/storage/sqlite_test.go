package storage

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies that the usage index is created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_usage_client_created").Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("index idx_usage_client_created not found in sqlite_master")
	}
}

func TestAppendAndRecentUsage(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []UsageRow{
		{CreatedAt: base, Client: "acme", Origin: "https://acme.no", Kind: "kb", InputLen: 12, OutputLen: 30, RequestID: "r1"},
		{CreatedAt: base.Add(time.Second), Client: "beta", Kind: "llm", InputLen: 5, OutputLen: 120},
		{CreatedAt: base.Add(2 * time.Second), Client: "acme", Kind: "llm", InputLen: 40, OutputLen: 200},
	}
	for _, u := range rows {
		if err := s.AppendUsage(u); err != nil {
			t.Fatalf("AppendUsage: %v", err)
		}
	}

	all, err := s.RecentUsage("", 10)
	if err != nil {
		t.Fatalf("RecentUsage: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d rows, want 3", len(all))
	}
	if all[0].Client != "acme" || all[0].Kind != "llm" {
		t.Errorf("newest row = %+v, want acme/llm", all[0])
	}

	acme, err := s.RecentUsage("acme", 10)
	if err != nil {
		t.Fatalf("RecentUsage(acme): %v", err)
	}
	if len(acme) != 2 {
		t.Fatalf("got %d acme rows, want 2", len(acme))
	}
	oldest := acme[1]
	if oldest.Origin != "https://acme.no" || oldest.InputLen != 12 || oldest.OutputLen != 30 || oldest.RequestID != "r1" {
		t.Errorf("oldest acme row = %+v", oldest)
	}
	if !oldest.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", oldest.CreatedAt, base)
	}

	limited, err := s.RecentUsage("", 1)
	if err != nil {
		t.Fatalf("RecentUsage limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d rows", len(limited))
	}
}

func TestAppendUsage_RejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	if err := s.AppendUsage(UsageRow{Client: "acme", Kind: "other"}); err == nil {
		t.Error("expected CHECK constraint failure for unknown kind")
	}
}

func TestUsageByClient(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, u := range []UsageRow{
		{CreatedAt: base.Add(-time.Hour), Client: "acme", Kind: "kb"},
		{CreatedAt: base, Client: "acme", Kind: "kb"},
		{CreatedAt: base, Client: "acme", Kind: "llm"},
		{CreatedAt: base.Add(time.Minute), Client: "beta", Kind: "kb"},
	} {
		if err := s.AppendUsage(u); err != nil {
			t.Fatalf("AppendUsage: %v", err)
		}
	}

	got, err := s.UsageByClient(base)
	if err != nil {
		t.Fatalf("UsageByClient: %v", err)
	}
	want := []ClientUsage{
		{Client: "acme", KB: 1, LLM: 1},
		{Client: "beta", KB: 1, LLM: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
