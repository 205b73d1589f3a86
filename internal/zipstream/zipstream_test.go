package zipstream

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeTestArchive(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "bundle.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte("hello from the archive")); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return path
}

func TestMountReaddirOpenRead(t *testing.T) {
	dir := t.TempDir()
	writeTestArchive(t, dir)

	s := NewSession(dir, zap.NewNop())
	defer s.Close()

	mountResp := s.Feed(append([]byte{OpMountArchive, byte(len("bundle.zip"))}, []byte("bundle.zip")...))
	if mountResp[0] != StatusOK {
		t.Fatalf("mount status = %#x, want StatusOK", mountResp[0])
	}

	dir2 := s.Feed([]byte{OpReaddir})
	if dir2[0] != OpReaddir {
		t.Fatalf("unexpected readdir response header %#x", dir2[0])
	}

	openResp := s.Feed(append([]byte{OpOpen, byte(len("readme.txt"))}, []byte("readme.txt")...))
	if openResp[0] != StatusOK {
		t.Fatalf("open status = %#x, want StatusOK", openResp[0])
	}

	readMsg := []byte{OpRead, 0, 0, 0, 0, 0, 32}
	readResp := s.Feed(readMsg)
	if readResp[0] != StatusOK {
		t.Fatalf("read status = %#x, want StatusOK", readResp[0])
	}
	n := int(readResp[1])<<8 | int(readResp[2])
	got := string(readResp[3 : 3+n])
	if got != "hello from the archive" {
		t.Fatalf("read content = %q", got)
	}
}

func TestMountRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir, zap.NewNop())
	defer s.Close()

	resp := s.Feed(append([]byte{OpMountArchive, byte(len("../etc/passwd"))}, []byte("../etc/passwd")...))
	if resp[0] != StatusFail {
		t.Fatalf("mount escape should fail, got %#x", resp[0])
	}
}
