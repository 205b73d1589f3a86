package sshbridge

import (
	"encoding/binary"
	"io"

	"go.uber.org/zap"
)

// Client->server message tags. Plain keystrokes arrive as OpInput with no
// framing overhead beyond the tag byte; OpResize carries the new size.
const (
	OpInput  byte = 1
	OpResize byte = 2
)

// Session couples a Terminal (input + resize) to its output reader and
// relays both directions across one tunnel connection.
type Session struct {
	term   Terminal
	output io.Reader
	log    *zap.Logger

	out chan []byte
}

// NewSession wraps term/output (typically a *LocalShell's Write and
// Output()) as one bridged session.
func NewSession(term Terminal, output io.Reader, log *zap.Logger) *Session {
	s := &Session{term: term, output: output, log: log, out: make(chan []byte, 8)}
	go s.pumpOutput()
	return s
}

func (s *Session) Outbound() <-chan []byte {
	return s.out
}

func (s *Session) pumpOutput() {
	defer close(s.out)
	buf := make([]byte, 4096)
	for {
		n, err := s.output.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.out <- chunk:
			default:
				s.log.Warn("sshbridge outbound queue full, dropping output chunk")
			}
		}
		if err != nil {
			return
		}
	}
}

// Feed processes one command message from the tunnel.
func (s *Session) Feed(msg []byte) {
	if len(msg) == 0 {
		return
	}
	switch msg[0] {
	case OpInput:
		if _, err := s.term.Write(msg[1:]); err != nil {
			s.log.Debug("terminal write failed", zap.Error(err))
		}
	case OpResize:
		if len(msg) < 5 {
			return
		}
		rows := int(binary.BigEndian.Uint16(msg[1:3]))
		cols := int(binary.BigEndian.Uint16(msg[3:5]))
		if err := s.term.Resize(rows, cols); err != nil {
			s.log.Debug("terminal resize failed", zap.Error(err))
		}
	default:
		s.log.Debug("unhandled sshbridge opcode")
	}
}
