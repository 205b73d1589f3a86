// Package tunnel implements the framing protocol used between the room
// server and every backend service: a 4-byte header (type, flags, big-
// endian length) followed by that many payload bytes.
package tunnel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Type is the tunnel frame type.
type Type uint8

const (
	TypeLogin Type = 0x01
	TypeData  Type = 0x02
	TypePing  Type = 0x03
	TypePong  Type = 0x04
)

func (t Type) String() string {
	switch t {
	case TypeLogin:
		return "LOGIN"
	case TypeData:
		return "DATA"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	default:
		return fmt.Sprintf("Type(%#x)", uint8(t))
	}
}

const headerSize = 4

// ErrFrameTooLarge is returned by ReadFrame when a frame's declared length
// exceeds the caller-supplied cap. The caller must drain and drop the
// connection — the stream is no longer framing-aligned from the caller's
// point of view once this happens, since the oversized payload was never
// consumed.
var ErrFrameTooLarge = errors.New("tunnel: frame length exceeds cap")

// Frame is a single tunnel message.
type Frame struct {
	Type    Type
	Flags   uint8
	Payload []byte
}

// LoginPayload is the fixed-layout payload of a LOGIN frame.
type LoginPayload struct {
	UserID   uint16
	Reserved uint16
}

// Bytes encodes the login payload in the wire's big-endian layout.
func (p LoginPayload) Bytes() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], p.UserID)
	binary.BigEndian.PutUint16(buf[2:4], p.Reserved)
	return buf
}

// ParseLoginPayload decodes a LOGIN frame's payload.
func ParseLoginPayload(b []byte) (LoginPayload, error) {
	if len(b) < 4 {
		return LoginPayload{}, fmt.Errorf("tunnel: short login payload (%d bytes)", len(b))
	}
	return LoginPayload{
		UserID:   binary.BigEndian.Uint16(b[0:2]),
		Reserved: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// ReadFrame blocks until a complete frame has been read from r, or returns
// io.EOF if the peer closed before a complete frame arrived (a close partway
// through the header or the payload is reported as io.EOF too).
// maxLen is the caller-chosen payload cap; the daemons in this module pass
// 0xFF for the login frame and 0xFFFF for data frames, so no smaller
// per-service cap is enforced. A frame whose declared length exceeds it yields ErrFrameTooLarge
// without consuming the (unbounded) payload — callers must drop the
// connection rather than attempt to resynchronize.
func ReadFrame(r io.Reader, maxLen uint16) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}

	length := binary.BigEndian.Uint16(hdr[2:4])
	if length > maxLen {
		return Frame{}, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return Frame{}, err
		}
	}

	return Frame{
		Type:    Type(hdr[0]),
		Flags:   hdr[1],
		Payload: payload,
	}, nil
}

// WriteFrame writes f to w, retrying on short writes until the whole frame
// is flushed or an unrecoverable error occurs. Partial writes are
// transparent to the caller: only a complete-frame-written or error
// outcome is observable.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return fmt.Errorf("tunnel: payload too large (%d bytes)", len(f.Payload))
	}

	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = f.Flags
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	copy(buf[headerSize:], f.Payload)

	return writeAll(w, buf)
}

// writeAll retries Write until every byte of buf has been written.
// io.Writer implementations backed by a socket may perform a short write
// under backpressure or signal interruption; this loop makes that
// transparent to callers, mirroring the blocking "complete frame" contract
// spec'd for write_frame.
func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			return err
		}
	}
	return nil
}
