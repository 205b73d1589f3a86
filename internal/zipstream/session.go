package zipstream

import (
	"archive/zip"
	"encoding/binary"
	"io"

	"go.uber.org/zap"
)

// Session holds one connected client's sandbox root, the currently mounted
// archive (if any), and at most one open entry. Exactly one goroutine (the
// connection's reader loop) ever calls Feed, so no locking is needed.
type Session struct {
	root string

	archive *zip.ReadCloser

	openEntry io.ReadCloser
	openName  string
	openPos   int64

	log *zap.Logger
}

func NewSession(root string, log *zap.Logger) *Session {
	return &Session{root: root, log: log}
}

func (s *Session) Close() {
	s.closeEntry()
	if s.archive != nil {
		s.archive.Close()
		s.archive = nil
	}
}

func (s *Session) closeEntry() {
	if s.openEntry != nil {
		s.openEntry.Close()
		s.openEntry = nil
		s.openName = ""
		s.openPos = 0
	}
}

// Feed parses and executes exactly one command from msg (one Data frame
// carries one command, the same convention internal/lichess uses).
func (s *Session) Feed(msg []byte) []byte {
	if len(msg) == 0 {
		return nil
	}
	op := msg[0]
	rest := msg[1:]

	switch op {
	case OpMountArchive:
		return s.withName(rest, func(name string) []byte { return []byte{s.cmdMountArchive(name)} })
	case OpReaddir:
		return s.cmdReaddir()
	case OpOpen:
		return s.withName(rest, func(name string) []byte { return []byte{s.cmdOpen(name)} })
	case OpRead:
		return s.cmdRead(rest)
	case OpClose:
		s.closeEntry()
		return []byte{StatusOK}
	}
	s.log.Debug("unhandled zipstream opcode")
	return nil
}

func (s *Session) withName(rest []byte, fn func(name string) []byte) []byte {
	if len(rest) < 1 {
		return []byte{StatusFail}
	}
	n := int(rest[0])
	if len(rest) < 1+n {
		return []byte{StatusFail}
	}
	return fn(string(rest[1 : 1+n]))
}

func (s *Session) cmdMountArchive(relpath string) byte {
	p, err := resolve(s.root, relpath)
	if err != nil {
		return StatusFail
	}
	if s.archive != nil {
		s.closeEntry()
		s.archive.Close()
		s.archive = nil
	}
	r, err := zip.OpenReader(p)
	if err != nil {
		return StatusFail
	}
	s.archive = r
	return StatusOK
}

// cmdReaddir streams (name_len, name, u32 uncompressed size, u8 attr)
// tuples terminated by a zero name_len, the same shape as the VFS
// service's READDIR response.
func (s *Session) cmdReaddir() []byte {
	out := []byte{OpReaddir}
	if s.archive == nil {
		return append(out, 0)
	}
	for _, f := range s.archive.File {
		name := f.Name
		if len(name) > 255 {
			name = name[:255]
		}
		out = append(out, byte(len(name)))
		out = append(out, []byte(name)...)
		var sizeBuf [4]byte
		binary.BigEndian.PutUint32(sizeBuf[:], uint32(f.UncompressedSize64))
		out = append(out, sizeBuf[:]...)
		var attr byte
		if f.FileInfo().IsDir() {
			attr = 0x01
		}
		out = append(out, attr)
	}
	out = append(out, 0)
	return out
}

func (s *Session) cmdOpen(name string) byte {
	if s.archive == nil {
		return StatusFail
	}
	s.closeEntry()
	for _, f := range s.archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return StatusFail
		}
		s.openEntry = rc
		s.openName = name
		s.openPos = 0
		return StatusOK
	}
	return StatusFail
}

// cmdRead streams the next bytes of the open entry. ZIP's deflate reader
// has no native seek, so a request that doesn't match the current
// position re-opens the entry and discards bytes up to it rather than
// failing the read outright.
func (s *Session) cmdRead(rest []byte) []byte {
	if len(rest) < 6 || s.openEntry == nil {
		return []byte{StatusFail, 0, 0}
	}
	offset := int64(binary.BigEndian.Uint32(rest[0:4]))
	n := int(binary.BigEndian.Uint16(rest[4:6]))
	if n > maxReadLen {
		n = maxReadLen
	}

	if offset != s.openPos {
		if offset < s.openPos {
			if s.cmdOpen(s.openName) != StatusOK {
				return []byte{StatusFail, 0, 0}
			}
		}
		if _, err := io.CopyN(io.Discard, s.openEntry, offset-s.openPos); err != nil {
			return []byte{StatusFail, 0, 0}
		}
		s.openPos = offset
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(s.openEntry, buf)
	if err != nil && read == 0 {
		return []byte{StatusFail, 0, 0}
	}
	s.openPos += int64(read)

	hdr := make([]byte, 3)
	hdr[0] = StatusOK
	binary.BigEndian.PutUint16(hdr[1:], uint16(read))
	return append(hdr, buf[:read]...)
}
