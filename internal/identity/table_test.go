package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "users.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLookupKeyAndGuest(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "1,PlayerOne,Player1,ABCDEF,ABCDEFGH,F\n# comment\n\n2,PlayerTwo,Player2,GHIJKL,IJKLMNOP,G\n")

	tbl, err := NewTable(path)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if id, ok := tbl.LookupKey("ABCDEF"); !ok || id != 1 {
		t.Fatalf("lookup ABCDEF = %d,%v want 1,true", id, ok)
	}
	if id, ok := tbl.LookupKey(GuestKey); !ok || id != GuestID {
		t.Fatalf("lookup guest = %d,%v want %d,true", id, ok, GuestID)
	}
	if _, ok := tbl.LookupKey("ZZZZZZ"); ok {
		t.Fatalf("lookup of unknown key should fail")
	}
	if _, ok := tbl.LookupUnencrypted("ABCDEFGH"); !ok {
		t.Fatalf("unencrypted match for user 1's password should succeed")
	}
}

func TestDuplicateUserIDSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "1,A,A1,AAAAAA,HASH1,F\n1,B,B1,BBBBBB,HASH2,F\n")

	tbl, err := NewTable(path)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, ok := tbl.LookupKey("BBBBBB"); ok {
		t.Fatalf("duplicate user id row should have been skipped")
	}
	rec, ok := tbl.LookupUserID(1)
	if !ok || rec.Name6 != "AAAAAA" {
		t.Fatalf("first row for user id 1 should have won, got %+v", rec)
	}
}

func TestMaybeReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "1,A,A1,AAAAAA,HASH1,F\n")

	tbl, err := NewTable(path)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, ok := tbl.LookupKey("ZZZZZZ"); ok {
		t.Fatalf("ZZZZZZ should not exist yet")
	}

	// Ensure a distinct mtime so MaybeReload notices the change.
	writeCSV(t, dir, "1,A,A1,AAAAAA,HASH1,F\n2,Z,Z1,ZZZZZZ,HASH2,G\n")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := tbl.MaybeReload(); err != nil {
		t.Fatalf("MaybeReload: %v", err)
	}
	if _, ok := tbl.LookupKey("ZZZZZZ"); !ok {
		t.Fatalf("ZZZZZZ should exist after reload")
	}
}
