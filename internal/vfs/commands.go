package vfs

import (
	"encoding/binary"
	"os"
)

// path resolves name against the session's current sandbox root.
func (s *Session) path(name string) string {
	p, err := resolve(s.root, name)
	if err != nil {
		return "" // callers that reach an empty path fail the subsequent os call
	}
	return p
}

func (s *Session) cmdMount(relpath string) byte {
	p, err := resolve(s.base, relpath)
	if err != nil {
		return StatusFail
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return StatusFail
	}
	s.root = p
	return StatusOK
}

// cmdReaddir streams (name_len, name, u32 size, u8 attr[, u16 crc]) tuples
// terminated by a zero name_len.
func (s *Session) cmdReaddir() []byte {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return []byte{0}
	}
	var out []byte
	hashOn := s.flags&OptHash != 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		out = append(out, byte(len(name)))
		out = append(out, []byte(name)...)
		var sizeBuf [4]byte
		binary.BigEndian.PutUint32(sizeBuf[:], uint32(info.Size()))
		out = append(out, sizeBuf[:]...)
		var attr byte
		if e.IsDir() {
			attr = 0x01
		}
		out = append(out, attr)
		if hashOn {
			var crcBuf [2]byte
			binary.BigEndian.PutUint16(crcBuf[:], CRC16XModem([]byte(name)))
			out = append(out, crcBuf[:]...)
		}
	}
	out = append(out, 0)
	return out
}

func (s *Session) cmdHashIndex() []byte {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return []byte{0}
	}
	var out []byte
	for _, e := range entries {
		name := e.Name()
		out = append(out, byte(len(name)))
		out = append(out, []byte(name)...)
		var crcBuf [2]byte
		binary.BigEndian.PutUint16(crcBuf[:], CRC16XModem([]byte(name)))
		out = append(out, crcBuf[:]...)
	}
	out = append(out, 0)
	return out
}

func (s *Session) cmdOpen(name string) byte {
	p := s.path(name)
	if p == "" {
		return StatusFail
	}
	s.Close()
	f, err := os.OpenFile(p, os.O_RDWR, 0o644)
	if err != nil {
		return StatusFail
	}
	s.openFile = f
	s.openName = name
	s.offset = 0
	return StatusOK
}

// cmdRead seeks to offset and reads up to n bytes (clamped to maxReadLen),
// returning {u8 ok, u16 actual, bytes}.
func (s *Session) cmdRead(offset uint32, n uint16) []byte {
	if s.openFile == nil {
		return []byte{StatusFail, 0, 0}
	}
	if n > maxReadLen {
		n = maxReadLen
	}
	buf := make([]byte, n)
	read, err := s.openFile.ReadAt(buf, int64(offset))
	if err != nil && read == 0 {
		var hdr [3]byte
		hdr[0] = StatusFail
		return hdr[:]
	}
	s.offset = offset + uint32(read)
	var hdr [3]byte
	hdr[0] = StatusOK
	binary.BigEndian.PutUint16(hdr[1:], uint16(read))
	return append(hdr[:], buf[:read]...)
}

func (s *Session) cmdOpts(opt byte, val uint32) {
	if val != 0 {
		s.flags |= opt
	} else {
		s.flags &^= opt
	}
}

func (s *Session) cmdStat(name string) []byte {
	p := s.path(name)
	if p == "" {
		return []byte{StatusFail, 0, 0, 0, 0, 0}
	}
	info, err := os.Stat(p)
	if err != nil {
		return []byte{StatusFail, 0, 0, 0, 0, 0}
	}
	var out [6]byte
	out[0] = StatusOK
	binary.BigEndian.PutUint32(out[1:5], uint32(info.Size()))
	if info.IsDir() {
		out[5] = 0x01
	}
	return out[:]
}

func (s *Session) cmdRename(oldName, newName string) byte {
	oldPath := s.path(oldName)
	newPath := s.path(newName)
	if oldPath == "" || newPath == "" {
		return StatusFail
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return StatusFail
	}
	return StatusOK
}

func (s *Session) cmdCreate(name string) byte {
	ok, ready := s.tracker.CheckCreate(s.UserID)
	if !ready {
		return StatusOtherFailure
	}
	if !ok {
		return StatusQuotaFileCount
	}
	p := s.path(name)
	if p == "" {
		return StatusOtherFailure
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StatusOtherFailure
	}
	f.Close()
	return StatusOK
}

// dispatchWrite parses (name, u16 len, bytes) and performs the quota-
// checked write.
func (s *Session) dispatchWrite(rest []byte) ([]byte, int, bool) {
	if len(rest) < 1 {
		return nil, 0, false
	}
	nameLen := int(rest[0])
	if len(rest) < 1+nameLen+2 {
		return nil, 0, false
	}
	name := string(rest[1 : 1+nameLen])
	dataLen := int(binary.BigEndian.Uint16(rest[1+nameLen : 1+nameLen+2]))
	total := 1 + nameLen + 2 + dataLen
	if len(rest) < total {
		return nil, 0, false
	}
	data := rest[1+nameLen+2 : total]

	status := s.cmdWrite(name, data)
	return []byte{status}, 1 + total, true
}

func (s *Session) cmdWrite(name string, data []byte) byte {
	if len(data) > maxReadLen {
		return StatusLengthExceeded
	}
	ok, ready := s.tracker.CheckWrite(s.UserID, int64(len(data)))
	if !ready {
		return StatusOtherFailure
	}
	if !ok {
		return StatusQuotaBytes
	}
	p := s.path(name)
	if p == "" {
		return StatusOtherFailure
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return StatusOtherFailure
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return StatusOtherFailure
	}
	return StatusOK
}

// dispatchTruncate parses (name, u32 size).
func (s *Session) dispatchTruncate(rest []byte) ([]byte, int, bool) {
	if len(rest) < 1 {
		return nil, 0, false
	}
	nameLen := int(rest[0])
	total := 1 + nameLen + 4
	if len(rest) < total {
		return nil, 0, false
	}
	name := string(rest[1 : 1+nameLen])
	size := binary.BigEndian.Uint32(rest[1+nameLen : total])

	p := s.path(name)
	status := byte(StatusFail)
	if p != "" {
		if err := os.Truncate(p, int64(size)); err == nil {
			status = StatusOK
		}
	}
	return []byte{status}, 1 + total, true
}
