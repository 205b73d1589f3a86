package room

import (
	"encoding/binary"
	"time"
)

// cmdReqMatchSimple implements spec.md §4.3.4's two-pass join/create scan:
// the first pass looks for an existing, not-full match for the same ROM
// (and password, if one was supplied) and reserves a slot in it; only if
// no candidate exists does the second pass allocate a brand new match.
// The reservation is an RSVP, not a full join — it holds the slot for
// RSVPExpiry so a client that never follows up with JOIN_MATCH does not
// wedge the slot forever (evicted by eliminateOldRSVP on the tick loop).
func (s *Server) cmdReqMatchSimple(p *Player, romName string, hasPassword bool) {
	// Only a full JOIN_MATCH blocks a fresh request; a player who merely
	// holds a pending RSVP elsewhere is allowed to request again (e.g. a
	// different ROM), and eliminateUserRSVP below drops the stale RSVP in
	// whatever match they abandon, per spec.md §4.3.4.
	if p.MatchSlot != 0 {
		s.enqueue(p, []byte{OpReqMatchSimple, 0x01, 0x00, 0x00})
		return
	}

	now := time.Now()
	for _, m := range s.reg.ListMatches() {
		if m.ROMName != romName || m.isFull() {
			continue
		}
		if hasPassword != (m.Password != "") {
			continue
		}
		if slot, ok := reserveSlot(m, p.UserID, now); ok {
			p.MatchID = m.ID
			s.eliminateUserRSVP(p.UserID, m.ID)
			s.respondMatchReserved(p, m.ID, slot)
			return
		}
	}

	m, err := s.reg.AllocMatch()
	if err != nil {
		s.enqueue(p, []byte{OpReqMatchSimple, 0x02, 0x00, 0x00})
		return
	}
	m.ROMName = romName
	genSeeds(s.rng, &m.Seeds)
	slot, _ := reserveSlot(m, p.UserID, now)
	p.MatchID = m.ID
	s.eliminateUserRSVP(p.UserID, m.ID)
	s.respondMatchReserved(p, m.ID, slot)
}

func (s *Server) respondMatchReserved(p *Player, id MatchID, slot int) {
	var resp [4]byte
	resp[0] = OpReqMatchSimple
	resp[1] = 0x00
	binary.BigEndian.PutUint16(resp[2:], uint16(id))
	_ = slot
	s.enqueue(p, resp[:])
}

// reserveSlot finds the first empty slot in m and RSVPs it for userID.
func reserveSlot(m *Match, userID uint16, now time.Time) (int, bool) {
	limit := m.MaxPlayers
	if limit == 0 || limit > MatchSlots {
		limit = MatchSlots
	}
	for i := 0; i < limit; i++ {
		if m.Players[i] == 0 && m.RSVP[i] == 0 {
			m.RSVP[i] = userID
			m.RSVPExpiry[i] = now.Add(RSVPExpiry)
			return i, true
		}
	}
	return 0, false
}

// cmdCheckRSVP implements the opcode table's literal "scan matches for an
// RSVP whose user_id equals this player's" (spec.md §4.3.3): unlike
// CHECK_MATCH_READY/SEND_MATCH_READY, which operate on the caller's own
// remembered p.MatchID, this is how a player who never issued
// REQ_MATCH_SIMPLE itself — e.g. scenario S2's second client — discovers a
// match id to hand to JOIN_MATCH.
func (s *Server) cmdCheckRSVP(p *Player, _ []byte) {
	for _, m := range s.reg.ListMatches() {
		for i := 0; i < MatchSlots; i++ {
			if m.RSVP[i] == p.UserID || m.Players[i] == p.ID {
				var resp [4]byte
				resp[0] = OpCheckRSVP
				resp[1] = 0x00
				binary.BigEndian.PutUint16(resp[2:], uint16(m.ID))
				s.enqueue(p, resp[:])
				return
			}
		}
	}
	s.enqueue(p, []byte{OpCheckRSVP, 0x02}) // expired or never reserved
}

// cmdJoinMatch converts an RSVP into an actual occupied slot.
func (s *Server) cmdJoinMatch(p *Player, matchID uint16) {
	m, ok := s.reg.GetMatch(MatchID(matchID))
	if !ok {
		s.enqueue(p, []byte{OpJoinMatch, 0x01, 0x00})
		return
	}
	for i := 0; i < MatchSlots; i++ {
		if m.RSVP[i] == p.UserID && m.Players[i] == 0 {
			m.Players[i] = p.ID
			p.MatchID = m.ID
			p.MatchSlot = i + 1
			s.enqueue(p, []byte{OpJoinMatch, 0x00, byte(i)})
			return
		}
	}
	s.enqueue(p, []byte{OpJoinMatch, 0x02, 0x00})
}

func (s *Server) cmdSendMatchReady(p *Player, args []byte) {
	matchID := MatchID(binary.BigEndian.Uint16(args))
	m, ok := s.reg.GetMatch(matchID)
	if !ok || p.MatchSlot == 0 {
		s.enqueue(p, []byte{OpSendMatchReady, 0x01})
		return
	}
	m.Ready[p.MatchSlot-1] = true
	s.enqueue(p, []byte{OpSendMatchReady, 0x00})
}

// cmdCheckMatchReady reports whether every occupied slot in id has signaled
// ready; once true, every LFSR seed is returned so the match's peer-to-peer
// game loop can start deterministically.
func (s *Server) cmdCheckMatchReady(p *Player, id MatchID) {
	m, ok := s.reg.GetMatch(id)
	if !ok {
		s.enqueue(p, []byte{OpCheckMatchReady, 0x01})
		return
	}
	allReady := true
	for i := 0; i < MatchSlots; i++ {
		if m.Players[i] != 0 && !m.Ready[i] {
			allReady = false
			break
		}
	}
	if !allReady {
		s.enqueue(p, []byte{OpCheckMatchReady, 0x00})
		return
	}
	resp := []byte{OpCheckMatchReady, 0x02}
	for _, seed := range m.Seeds {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], seed)
		resp = append(resp, b[:]...)
	}
	s.enqueue(p, resp)
}

// eliminateUserRSVP removes userID's RSVP from every match other than
// keep, per spec.md §4.3.4's "Eliminates this player's RSVPs in other
// matches": a fresh REQ_MATCH_SIMPLE reservation is meant to be the only
// live RSVP a player holds, so a player who keeps re-requesting a match
// doesn't accumulate reservations across every match they ever scanned
// past. A match that loses its last occupant or reservation this way
// retires to None immediately rather than waiting for the next tick's
// expiry sweep.
func (s *Server) eliminateUserRSVP(userID uint16, keep MatchID) {
	for _, m := range s.reg.ListMatches() {
		if m.ID == keep {
			continue
		}
		changed := false
		for i := 0; i < MatchSlots; i++ {
			if m.RSVP[i] == userID {
				m.RSVP[i] = 0
				changed = true
			}
		}
		if changed && m.numOccupied() == 0 {
			s.reg.FreeMatch(m.ID)
		}
	}
}

// eliminateOldRSVP evicts any RSVP whose expiry has passed without a
// matching JOIN_MATCH, and frees a match entirely once it has neither
// occupants nor live reservations. Run once per tick from the server loop.
func (s *Server) eliminateOldRSVP(now time.Time) {
	for _, m := range s.reg.ListMatches() {
		empty := true
		for i := 0; i < MatchSlots; i++ {
			if m.Players[i] != 0 {
				empty = false
				continue
			}
			if m.RSVP[i] != 0 {
				if now.After(m.RSVPExpiry[i]) {
					m.RSVP[i] = 0
				} else {
					empty = false
				}
			}
		}
		if empty {
			s.reg.FreeMatch(m.ID)
		}
	}
}
