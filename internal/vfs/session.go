package vfs

import (
	"encoding/binary"
	"os"
	"time"

	"go.uber.org/zap"
)

// Session is one connected player's VFS client context (spec.md §4.4): a
// sandbox root, at most one open file handle, a seek offset, feature
// flags, and the resolved user id. Exactly one goroutine (the connection's
// reader loop) ever touches a Session, so no locking is needed.
type Session struct {
	UserID uint16
	Guest  bool

	base string // immutable: the absolute directory this user can never leave
	root string // current sandbox root; always base or a descendant of it

	openFile *os.File
	openName string
	offset   uint32
	flags    byte

	rx []byte

	tracker *Tracker
	log     *zap.Logger
}

// NewSession creates a session rooted at base, which must already exist on
// disk (the caller creates per-user directories lazily on first connect).
func NewSession(userID uint16, guest bool, base string, tracker *Tracker, log *zap.Logger) *Session {
	tracker.Register(userID, base)
	return &Session{UserID: userID, Guest: guest, base: base, root: base, tracker: tracker, log: log}
}

// Close releases the session's open file handle, if any.
func (s *Session) Close() {
	if s.openFile != nil {
		s.openFile.Close()
		s.openFile = nil
	}
}

// Feed appends newly-arrived Data-frame bytes and returns as many response
// payloads as complete commands are now available. Each returned []byte is
// one Data frame's worth of reply bytes.
func (s *Session) Feed(data []byte) [][]byte {
	s.rx = append(s.rx, data...)
	var out [][]byte
	for {
		resp, n, ok := s.dispatchOne(s.rx)
		if !ok {
			return out
		}
		s.rx = s.rx[n:]
		if resp != nil {
			out = append(out, resp)
		}
	}
}

// dispatchOne parses and executes at most one command from buf, returning
// the response bytes (nil for none), how many bytes were consumed, and
// whether a complete command was available.
func (s *Session) dispatchOne(buf []byte) (resp []byte, consumed int, ok bool) {
	if len(buf) == 0 {
		return nil, 0, false
	}
	op := buf[0]
	rest := buf[1:]

	switch op {
	case OpMount:
		return s.withLenPrefixed(rest, 1, func(name string) []byte {
			return []byte{s.cmdMount(name)}
		})
	case OpReaddir:
		return append([]byte{op}, s.cmdReaddir()...), 1, true
	case OpOpen:
		return s.withLenPrefixed(rest, 1, func(name string) []byte {
			return []byte{s.cmdOpen(name)}
		})
	case OpRead:
		if len(rest) < 6 {
			return nil, 0, false
		}
		offset := binary.BigEndian.Uint32(rest[0:4])
		n := binary.BigEndian.Uint16(rest[4:6])
		return s.cmdRead(offset, n), 7, true
	case OpLseek:
		if len(rest) < 4 {
			return nil, 0, false
		}
		s.offset = binary.BigEndian.Uint32(rest[0:4])
		return []byte{StatusOK}, 5, true
	case OpClose:
		s.Close()
		return []byte{StatusOK}, 1, true
	case OpOpts:
		if len(rest) < 5 {
			return nil, 0, false
		}
		optByte := rest[0]
		val := binary.BigEndian.Uint32(rest[1:5])
		s.cmdOpts(optByte, val)
		return nil, 6, true
	case OpGetopt:
		return []byte{s.flags}, 1, true
	case OpHashIndex:
		return s.cmdHashIndex(), 1, true
	case OpStat:
		return s.withLenPrefixed(rest, 1, func(name string) []byte { return s.cmdStat(name) })
	case OpTime:
		var b [5]byte
		b[0] = StatusOK
		binary.BigEndian.PutUint32(b[1:], uint32(time.Now().Unix()))
		return b[:], 1, true
	case OpRename:
		return s.withTwoLenPrefixed(rest, func(oldName, newName string) []byte {
			return []byte{s.cmdRename(oldName, newName)}
		})
	case OpCreate:
		return s.withLenPrefixed(rest, 1, func(name string) []byte { return []byte{s.cmdCreate(name)} })
	case OpWrite:
		return s.dispatchWrite(rest)
	case OpDelete:
		return s.withLenPrefixed(rest, 1, func(name string) []byte { return []byte{statusFromErr(os.Remove(s.path(name)))} })
	case OpMkdir:
		return s.withLenPrefixed(rest, 1, func(name string) []byte { return []byte{statusFromErr(os.Mkdir(s.path(name), 0o755))} })
	case OpRmdir:
		return s.withLenPrefixed(rest, 1, func(name string) []byte { return []byte{statusFromErr(os.Remove(s.path(name)))} })
	case OpTruncate:
		return s.dispatchTruncate(rest)
	case OpLabel:
		label := "UZENETVOL"
		resp := append([]byte{StatusOK, byte(len(label))}, []byte(label)...)
		return resp, 1, true
	case OpFreespace:
		var b [9]byte
		b[0] = StatusOK
		binary.BigEndian.PutUint32(b[1:5], 0x7FFFFFFF)
		binary.BigEndian.PutUint32(b[5:9], 512)
		return b[:], 1, true
	}
	s.log.Debug("unhandled vfs opcode", zap.Int("opcode", int(op)))
	return nil, 1, true
}

// withLenPrefixed parses a single (len, name) argument and calls fn, used
// by every command whose argument is one length-prefixed string.
func (s *Session) withLenPrefixed(rest []byte, headerLen int, fn func(name string) []byte) ([]byte, int, bool) {
	if len(rest) < headerLen {
		return nil, 0, false
	}
	n := int(rest[headerLen-1])
	total := headerLen + n
	if len(rest) < total {
		return nil, 0, false
	}
	name := string(rest[headerLen:total])
	return fn(name), 1 + total, true
}

func (s *Session) withTwoLenPrefixed(rest []byte, fn func(oldName, newName string) []byte) ([]byte, int, bool) {
	if len(rest) < 1 {
		return nil, 0, false
	}
	n1 := int(rest[0])
	if len(rest) < 1+n1+1 {
		return nil, 0, false
	}
	name1 := string(rest[1 : 1+n1])
	n2 := int(rest[1+n1])
	total := 1 + n1 + 1 + n2
	if len(rest) < total {
		return nil, 0, false
	}
	name2 := string(rest[1+n1+1 : total])
	return fn(name1, name2), 1 + total, true
}

func statusFromErr(err error) byte {
	if err != nil {
		return StatusFail
	}
	return StatusOK
}
