package vfs

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestCRC16XModemKnownVector(t *testing.T) {
	// "123456789" is the standard CRC-16/XMODEM test vector; the
	// well-known checksum for it is 0x31C3.
	got := CRC16XModem([]byte("123456789"))
	if got != 0x31C3 {
		t.Fatalf("CRC16XModem(123456789) = %#04x, want 0x31c3", got)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	root := "/srv/uzenetfs/user1"
	if _, err := resolve(root, "../etc/passwd"); err != ErrOutsideSandbox {
		t.Fatalf("expected ErrOutsideSandbox, got %v", err)
	}
	if _, err := resolve(root, "subdir/file.bin"); err != nil {
		t.Fatalf("legitimate descendant path should resolve: %v", err)
	}
	if p, err := resolve(root, "."); err != nil || p != filepath.Clean(root) {
		t.Fatalf("root itself should resolve cleanly, got %q, %v", p, err)
	}
}

func newReadySession(t *testing.T, userID uint16) *Session {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()
	tracker := NewTracker(log)
	tracker.Register(userID, dir)
	tracker.scanOne(userID, dir) // force a completed first pass
	return NewSession(userID, false, dir, tracker, log)
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	s := newReadySession(t, 7)
	defer s.Close()

	if status := s.cmdCreate("greeting.txt"); status != StatusOK {
		t.Fatalf("create status = %#x, want StatusOK", status)
	}
	if status := s.cmdWrite("greeting.txt", []byte("hello uzenet")); status != StatusOK {
		t.Fatalf("write status = %#x, want StatusOK", status)
	}
	if status := s.cmdOpen("greeting.txt"); status != StatusOK {
		t.Fatalf("open status = %#x, want StatusOK", status)
	}

	resp := s.cmdRead(0, 32)
	if resp[0] != StatusOK {
		t.Fatalf("read status = %#x, want StatusOK", resp[0])
	}
	n := int(resp[1])<<8 | int(resp[2])
	got := string(resp[3 : 3+n])
	if got != "hello uzenet" {
		t.Fatalf("read content = %q, want %q", got, "hello uzenet")
	}
}

func TestMountRejectsEscape(t *testing.T) {
	s := newReadySession(t, 1)
	defer s.Close()

	if status := s.cmdMount("../etc"); status != StatusFail {
		t.Fatalf("mount outside base should fail, got %#x", status)
	}
	if s.root != s.base {
		t.Fatalf("failed mount must not change the sandbox root")
	}
}

func TestWriteOverQuotaIsRejected(t *testing.T) {
	s := newReadySession(t, 9)
	defer s.Close()

	// Simulate a user already sitting at the quota ceiling.
	s.tracker.cache.Set(cacheKey(9), usage{UsedBytes: QuotaBytes, FileCount: 1}, -1)

	s.cmdCreate("f.bin")
	status := s.cmdWrite("f.bin", []byte("x"))
	if status != StatusQuotaBytes {
		t.Fatalf("write status = %#x, want StatusQuotaBytes", status)
	}
}
