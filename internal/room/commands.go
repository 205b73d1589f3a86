package room

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// dispatch drains whatever raw bytes have arrived for p since the last
// tick, interpreting as many complete commands as are available and
// leaving any trailing partial command in p.rx for the next tick. This is
// the Go-idiomatic rendering of spec.md §4.3.3's "the interpreter saves
// the opcode and byte count so far, and returns; the next tick resumes":
// instead of a saved continuation, the unconsumed prefix of rx simply
// survives to the next call.
func (s *Server) dispatch(p *Player) {
	for {
		if len(p.rx) == 0 {
			return
		}
		op := p.rx[0]

		if op&0xF0 == tunnelOpMask {
			idx := int(op & 0x0F)
			n, ok := s.dispatchTunnelByte(p, idx, p.rx[1:])
			if !ok {
				return // wait for more bytes
			}
			p.rx = p.rx[1+n:]
			continue
		}

		need := argLen(op)
		if need < 0 {
			n, ok := s.dispatchVariable(p, op, p.rx[1:])
			if !ok {
				return
			}
			p.rx = p.rx[1+n:]
			continue
		}
		if len(p.rx) < 1+need {
			return // incomplete; wait for the rest
		}
		args := p.rx[1 : 1+need]
		p.rx = p.rx[1+need:]
		s.dispatchFixed(p, op, args)
	}
}

// dispatchTunnelByte forwards the n payload bytes named by rest's length
// prefix to tunnel idx once all of them are available.
// Framed tunnel bytes carry a 2-byte big-endian length prefix so the
// interpreter knows how many payload bytes to wait for, matching the
// {length, payload} shape internal/tunnel uses end to end.
func (s *Server) dispatchTunnelByte(p *Player, idx int, rest []byte) (consumed int, ok bool) {
	if len(rest) < 2 {
		return 0, false
	}
	n := int(binary.BigEndian.Uint16(rest))
	if len(rest) < 2+n {
		return 0, false
	}
	payload := rest[2 : 2+n]
	if idx < 0 || idx >= TunnelCount || p.Tunnels[idx] == nil {
		s.log.Debug("tunnel byte for unopened tunnel", zap.Int("player", int(p.ID)), zap.Int("tunnel", idx))
		return 2 + n, true
	}
	if err := p.Tunnels[idx].Forward(payload); err != nil {
		s.log.Warn("tunnel forward failed", zap.Error(err), zap.Int("tunnel", idx))
	}
	return 2 + n, true
}

func (s *Server) dispatchFixed(p *Player, op byte, args []byte) {
	switch op {
	case OpDisconnect:
		s.cmdDisconnect(p)
	case OpBreather:
		// No-op: a keepalive. Per-tick idle deadline is already refreshed
		// by the arrival of any bytes.
	case OpCheckMTU:
		s.enqueue(p, []byte{OpCheckMTU, byte(p.MTU >> 8), byte(p.MTU)})
	case OpGetActiveRooms:
		s.cmdGetActiveRooms(p)
	case OpCheckRSVP:
		s.cmdCheckRSVP(p, args)
	case OpSetMTU:
		p.MTU = binary.BigEndian.Uint16(args)
		s.enqueue(p, []byte{OpSetMTU, 0x00})
	case OpPingRequest:
		s.enqueue(p, append([]byte{OpPingRequest}, args...))
	case OpJoinRoom:
		s.cmdJoinRoom(p, RoomID(binary.BigEndian.Uint16(args)))
	case OpKickPlayer:
		s.cmdKickPlayer(p, PlayerID(binary.BigEndian.Uint16(args)))
	case OpSubscribePlayer:
		s.cmdSubscribe(p, PlayerID(binary.BigEndian.Uint16(args)))
	case OpExchangeIP:
		s.cmdExchangeIP(p, args)
	case OpSetTimer:
		s.cmdSetTimer(p, args)
	case OpGetFileChunk:
		s.cmdGetFileChunk(p, args)
	case OpPlayerInfoSimple:
		s.cmdPlayerInfoSimple(p, PlayerID(binary.BigEndian.Uint16(args)))
	case OpFontSpecCommon:
		s.cmdFontSpecCommon(p, args[0])
	case OpFontSpecify:
		p.FontTranslate = append([]byte(nil), args...)
		s.enqueue(p, []byte{OpFontSpecify, 0x00})
	case OpSendMatchReady:
		s.cmdSendMatchReady(p, args)
	case OpJoinMatch:
		s.cmdJoinMatch(p, binary.BigEndian.Uint16(args))
	case OpCheckMatchReady:
		s.cmdCheckMatchReady(p, MatchID(binary.BigEndian.Uint16(args)))
	case OpRomIdentify:
		s.cmdRomIdentify(p, args)
	case OpSetRoomGameOptions:
		s.cmdSetRoomGameOptions(p, args)
	case OpGetFilteredRooms:
		s.cmdGetFilteredRooms(p, args[0])
	case OpFlushBuffer:
		// Flush is implicit: the writer goroutine drains outboundCh as
		// fast as credits allow. Acknowledge so the client's buffered
		// writer can unblock.
		s.enqueue(p, []byte{OpFlushBuffer})
	default:
		s.log.Debug("unhandled fixed-length opcode", zap.Int("opcode", int(op)), zap.Int("player", int(p.ID)))
	}
}

// dispatchVariable handles opcodes whose argument block starts with one or
// more length-prefix bytes. Returns the number of bytes consumed after the
// opcode and whether a complete command was available.
func (s *Server) dispatchVariable(p *Player, op byte, rest []byte) (consumed int, ok bool) {
	switch op {
	case OpReqMatchSimple:
		if len(rest) < 1 {
			return 0, false
		}
		nameLen := int(rest[0])
		total := 1 + nameLen + 1 // name + trailing password-present byte
		if len(rest) < total {
			return 0, false
		}
		name := string(rest[1 : 1+nameLen])
		hasPassword := rest[1+nameLen] != 0
		s.cmdReqMatchSimple(p, name, hasPassword)
		return total, true

	case OpHostUnusedRoom, OpSetRoomName, OpSetRoomPassword:
		if len(rest) < 1 {
			return 0, false
		}
		n := int(rest[0])
		if len(rest) < 1+n {
			return 0, false
		}
		str := string(rest[1 : 1+n])
		switch op {
		case OpHostUnusedRoom:
			s.cmdHostUnusedRoom(p, str)
		case OpSetRoomName:
			s.cmdSetRoomField(p, "name", str)
		case OpSetRoomPassword:
			s.cmdSetRoomField(p, "password", str)
		}
		return 1 + n, true

	case OpBroadcast, OpUnicast:
		if len(rest) < 3 {
			return 0, false
		}
		target := binary.BigEndian.Uint16(rest)
		n := int(rest[2])
		if len(rest) < 3+n {
			return 0, false
		}
		payload := rest[3 : 3+n]
		if op == OpBroadcast {
			s.cmdBroadcast(p, payload)
		} else {
			s.cmdUnicast(p, PlayerID(target), payload)
		}
		return 3 + n, true

	case OpStartService:
		if len(rest) < 2 {
			return 0, false
		}
		idx := int(rest[0])
		n := int(rest[1])
		if len(rest) < 2+n {
			return 0, false
		}
		name := string(rest[2 : 2+n])
		s.cmdStartService(p, idx, name)
		return 2 + n, true
	}
	s.log.Debug("unhandled variable-length opcode", zap.Int("opcode", int(op)))
	return 0, true
}

// enqueue appends bytes to p's outbound queue via the writer goroutine's
// channel, consuming credits per the rate limiter (spec.md §4.3.6). spend
// itself implements the suppress-vs-sleep split; enqueue only drops here if
// the outbound channel is separately full, meaning the writer can't keep up
// with its TCP peer regardless of credits — the disconnect grace timer will
// eventually drop a peer that never drains.
func (s *Server) enqueue(p *Player, b []byte) {
	if !p.spend(len(b)) {
		return
	}
	select {
	case p.outboundCh <- b:
	default:
		s.log.Warn("outbound queue full, dropping frame", zap.Int("player", int(p.ID)))
	}
}

func (s *Server) cmdDisconnect(p *Player) {
	s.enqueue(p, []byte{OpDisconnect})
	p.State = StateDisconnecting
}
