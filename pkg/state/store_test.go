package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := NewFileStore(filepath.Join(t.TempDir(), "missing.json"), "[test]")
	if st := s.Load(context.Background()); !st.Empty() {
		t.Fatalf("expected empty state, got %#v", st)
	}
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(p, []byte(`{"last_seen_id": "abc`), 0o644); err != nil {
		t.Fatal(err)
	}
	if st := NewFileStore(p, "[test]").Load(context.Background()); !st.Empty() {
		t.Fatalf("expected empty state, got %#v", st)
	}

	if err := os.WriteFile(p, []byte("not a shortcode at all\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st := NewFileStore(p, "[test]").Load(context.Background()); !st.Empty() {
		t.Fatalf("expected empty state for garbage, got %#v", st)
	}
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "a", "b", "state.json")
	s := NewFileStore(p, "[test]")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.Save(context.Background(), RunState{LastSeenID: "abc123", UpdatedAt: now}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := s.Load(context.Background())
	if got.LastSeenID != "abc123" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected state: %#v", got)
	}

	if err := s.Save(context.Background(), RunState{LastSeenID: "def456", UpdatedAt: now}); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if got := s.Load(context.Background()); got.LastSeenID != "def456" {
		t.Fatalf("unexpected state after overwrite: %#v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_StaleTempFileDoesNotAffectState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "state.json")
	s := NewFileStore(p, "[test]")
	if err := s.Save(context.Background(), RunState{LastSeenID: "old"}); err != nil {
		t.Fatal(err)
	}
	// A crash between temp write and rename leaves a partial sibling behind.
	if err := os.WriteFile(filepath.Join(dir, ".state.json.123.tmp"), []byte(`{"last_seen_id": "ne`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(context.Background()); got.LastSeenID != "old" {
		t.Fatalf("expected old state intact, got %#v", got)
	}
}

func TestDecodeState_LegacyFormats(t *testing.T) {
	t.Parallel()

	st, ok := decodeState([]byte(`{"last_seen_key": "C1a2b3", "updated_at": 1767225600}`))
	if !ok || st.LastSeenID != "C1a2b3" {
		t.Fatalf("legacy json: ok=%v st=%#v", ok, st)
	}
	if !st.UpdatedAt.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("legacy updated_at=%v", st.UpdatedAt)
	}

	st, ok = decodeState([]byte("DVDrXHCE2Z2\n"))
	if !ok || st.LastSeenID != "DVDrXHCE2Z2" {
		t.Fatalf("legacy text: ok=%v st=%#v", ok, st)
	}

	if _, ok := decodeState([]byte(`{"last_seen_id": 42}`)); ok {
		t.Fatalf("expected non-string id to be rejected")
	}
}

func TestResolveBackend(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path, backend, want string
	}{
		{"state.json", "", BackendJSON},
		{"state.db", "auto", BackendSQLite},
		{"state.SQLITE", "", BackendSQLite},
		{"state.db", "json", BackendJSON},
		{"state.json", "sqlite", BackendSQLite},
	}
	for _, tc := range cases {
		got, err := ResolveBackend(tc.path, tc.backend)
		if err != nil || got != tc.want {
			t.Fatalf("ResolveBackend(%q,%q)=%q,%v want %q", tc.path, tc.backend, got, err, tc.want)
		}
	}
	if _, err := ResolveBackend("x", "redis"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(p, "", "[test]")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
	if st := s.Load(context.Background()); !st.Empty() {
		t.Fatalf("expected empty state, got %#v", st)
	}

	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	if err := s.Save(context.Background(), RunState{LastSeenID: "abc123", UpdatedAt: now}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(context.Background(), RunState{LastSeenID: "def456", UpdatedAt: now}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got := s.Load(context.Background())
	if got.LastSeenID != "def456" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected state: %#v", got)
	}
}
