package store

import "testing"

func TestRecordStrikeAccumulates(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	for i := 1; i <= 3; i++ {
		n, err := s.RecordStrike("203.0.113.9", int64(1000+i))
		if err != nil {
			t.Fatalf("RecordStrike: %v", err)
		}
		if n != i {
			t.Fatalf("strikes = %d, want %d", n, i)
		}
	}

	entries, err := s.LoadDenyList()
	if err != nil {
		t.Fatalf("LoadDenyList: %v", err)
	}
	if len(entries) != 1 || entries[0].Strikes != 3 {
		t.Fatalf("entries = %+v", entries)
	}

	if err := s.ClearDenyEntry("203.0.113.9"); err != nil {
		t.Fatalf("ClearDenyEntry: %v", err)
	}
	entries, err = s.LoadDenyList()
	if err != nil {
		t.Fatalf("LoadDenyList: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %+v", entries)
	}
}

func TestAuditLog(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.InsertAuditLog(1, "kick", "player:7", `{"reason":"abuse"}`); err != nil {
		t.Fatalf("InsertAuditLog: %v", err)
	}
	entries, err := s.RecentAuditLog(10)
	if err != nil {
		t.Fatalf("RecentAuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "kick" {
		t.Fatalf("entries = %+v", entries)
	}
}
