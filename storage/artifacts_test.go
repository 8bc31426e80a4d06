package storage

import (
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestWriteCSVAndStat(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.WriteCSV("data.csv",
		[]string{"id", "value"},
		[][]string{{"a", "1"}, {"b", "2"}})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if meta.Name != "data.csv" {
		t.Errorf("unexpected name: %s", meta.Name)
	}
	if meta.RowCount != 2 {
		t.Errorf("expected 2 data rows, got %d", meta.RowCount)
	}
	if len(meta.Columns) != 2 || meta.Columns[0] != "id" {
		t.Errorf("unexpected columns: %v", meta.Columns)
	}
	if meta.LineCount != 3 {
		t.Errorf("expected 3 lines, got %d", meta.LineCount)
	}
	if len(meta.Fingerprint) != 16 {
		t.Errorf("fingerprint should be 16 hex chars, got %q", meta.Fingerprint)
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	store := newTestStore(t)

	first, err := store.WriteCSV("data.csv", []string{"id"}, [][]string{{"a"}})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	same, err := store.WriteCSV("data.csv", []string{"id"}, [][]string{{"a"}})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if first.Fingerprint != same.Fingerprint {
		t.Error("identical content should produce identical fingerprints")
	}

	changed, err := store.WriteCSV("data.csv", []string{"id"}, [][]string{{"b"}})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if first.Fingerprint == changed.Fingerprint {
		t.Error("changed content should change the fingerprint")
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	bad := []string{"", "../escape.csv", "a/b.csv", `a\b.csv`, "./x.csv"}
	for _, name := range bad {
		if _, err := store.Path(name); err == nil {
			t.Errorf("Path(%q) should be rejected", name)
		}
	}

	if _, err := store.Path("fine.csv"); err != nil {
		t.Errorf("plain names should be allowed: %v", err)
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.WriteCSV("d.csv", []string{"x", "y"}, [][]string{{"1", "2"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	header, rows, err := store.ReadCSV("d.csv")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if header[1] != "y" || rows[0][0] != "1" {
		t.Errorf("round trip mismatch: header=%v rows=%v", header, rows)
	}
}

func TestLinesRange(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.WriteCSV("d.csv", []string{"h"}, [][]string{{"1"}, {"2"}, {"3"}}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines, err := store.Lines("d.csv", 2, 3)
	if err != nil {
		t.Fatalf("lines failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "1" || lines[1] != "2" {
		t.Errorf("unexpected lines: %v", lines)
	}

	// End past the file clamps instead of failing.
	lines, err = store.Lines("d.csv", 1, 100)
	if err != nil {
		t.Fatalf("clamped lines failed: %v", err)
	}
	if len(lines) != 4 {
		t.Errorf("expected all 4 lines, got %d", len(lines))
	}

	if _, err := store.Lines("d.csv", 10, 20); err == nil {
		t.Error("range past the end should fail")
	}
}

func TestListSortedByName(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"b.csv", "a.csv", "c.csv"} {
		if _, err := store.WriteCSV(name, []string{"h"}, nil); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var names []string
	for _, m := range metas {
		names = append(names, m.Name)
	}
	if strings.Join(names, ",") != "a.csv,b.csv,c.csv" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)

	if store.Exists("ghost.csv") {
		t.Error("missing artifact reported as existing")
	}
	if _, err := store.WriteCSV("real.csv", []string{"h"}, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !store.Exists("real.csv") {
		t.Error("stored artifact not found")
	}
}
