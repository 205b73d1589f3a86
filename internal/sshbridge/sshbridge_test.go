package sshbridge

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeTerminal records writes and resizes without spawning a subprocess.
type fakeTerminal struct {
	written    bytes.Buffer
	lastRows   int
	lastCols   int
	resizeErr  error
}

func (f *fakeTerminal) Write(p []byte) (int, error) {
	return f.written.Write(p)
}

func (f *fakeTerminal) Resize(rows, cols int) error {
	f.lastRows, f.lastCols = rows, cols
	return f.resizeErr
}

func TestFeedInputWritesToTerminal(t *testing.T) {
	term := &fakeTerminal{}
	s := NewSession(term, bytes.NewReader(nil), zap.NewNop())

	msg := append([]byte{OpInput}, []byte("ls -la\n")...)
	s.Feed(msg)

	if term.written.String() != "ls -la\n" {
		t.Fatalf("terminal received %q, want %q", term.written.String(), "ls -la\n")
	}
}

func TestFeedResizeUpdatesTerminal(t *testing.T) {
	term := &fakeTerminal{}
	s := NewSession(term, bytes.NewReader(nil), zap.NewNop())

	msg := make([]byte, 5)
	msg[0] = OpResize
	binary.BigEndian.PutUint16(msg[1:3], 24)
	binary.BigEndian.PutUint16(msg[3:5], 80)
	s.Feed(msg)

	if term.lastRows != 24 || term.lastCols != 80 {
		t.Fatalf("resize = %d/%d, want 24/80", term.lastRows, term.lastCols)
	}
}

func TestOutputIsRelayedOnOutbound(t *testing.T) {
	term := &fakeTerminal{}
	r, w := io.Pipe()
	s := NewSession(term, r, zap.NewNop())

	go w.Write([]byte("hello"))

	select {
	case chunk := <-s.Outbound():
		if string(chunk) != "hello" {
			t.Fatalf("outbound chunk = %q, want hello", string(chunk))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for relayed output")
	}
}
