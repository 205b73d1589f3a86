package room

import (
	"encoding/binary"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer() (*Server, *Registry) {
	reg := NewRegistry(nil, zap.NewNop())
	return &Server{
		reg: reg,
		log: zap.NewNop(),
		rng: rand.New(rand.NewSource(1)),
	}, reg
}

func newTestPlayer(reg *Registry, userID uint16) *Player {
	p, err := reg.AllocPlayer()
	if err != nil {
		panic(err)
	}
	p.UserID = userID
	p.State = StateConnected
	p.outboundCh = make(chan []byte, 16)
	p.credits = 1 << 20
	p.lastRefill = time.Now()
	return p
}

func lastFrame(t *testing.T, p *Player) []byte {
	t.Helper()
	select {
	case b := <-p.outboundCh:
		return b
	default:
		t.Fatalf("expected a queued frame, got none")
		return nil
	}
}

func TestReqMatchSimpleSecondPlayerJoinsFirstsMatch(t *testing.T) {
	s, reg := newTestServer()
	a := newTestPlayer(reg, 1)
	b := newTestPlayer(reg, 2)

	s.cmdReqMatchSimple(a, "tetris.rom", false)
	fa := lastFrame(t, a)
	if fa[1] != 0x00 {
		t.Fatalf("first reservation should succeed, got status %d", fa[1])
	}
	matchID := binary.BigEndian.Uint16(fa[2:4])

	s.cmdReqMatchSimple(b, "tetris.rom", false)
	fb := lastFrame(t, b)
	if fb[1] != 0x00 {
		t.Fatalf("second reservation should succeed, got status %d", fb[1])
	}
	if got := binary.BigEndian.Uint16(fb[2:4]); got != matchID {
		t.Fatalf("second player should join the same match: got %d want %d", got, matchID)
	}
}

func TestJoinMatchThenReadyUnlocksSeeds(t *testing.T) {
	s, reg := newTestServer()
	a := newTestPlayer(reg, 1)
	b := newTestPlayer(reg, 2)

	s.cmdReqMatchSimple(a, "tetris.rom", false)
	fa := lastFrame(t, a)
	matchID := MatchID(binary.BigEndian.Uint16(fa[2:4]))

	s.cmdReqMatchSimple(b, "tetris.rom", false)
	lastFrame(t, b)

	s.cmdJoinMatch(a, uint16(matchID))
	ja := lastFrame(t, a)
	if ja[1] != 0x00 {
		t.Fatalf("a's join should succeed, got status %d", ja[1])
	}
	s.cmdJoinMatch(b, uint16(matchID))
	jb := lastFrame(t, b)
	if jb[1] != 0x00 {
		t.Fatalf("b's join should succeed, got status %d", jb[1])
	}

	var idBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], uint16(matchID))

	s.cmdCheckMatchReady(a, matchID)
	notReady := lastFrame(t, a)
	if notReady[1] != 0x00 {
		t.Fatalf("match should not be ready yet, got status %d", notReady[1])
	}

	s.cmdSendMatchReady(a, idBuf[:])
	lastFrame(t, a)
	s.cmdSendMatchReady(b, idBuf[:])
	lastFrame(t, b)

	s.cmdCheckMatchReady(a, matchID)
	ready := lastFrame(t, a)
	if ready[1] != 0x02 {
		t.Fatalf("match should be ready, got status %d", ready[1])
	}
	if len(ready) != 2+MaxLFSRSeeds*4 {
		t.Fatalf("ready response length = %d, want %d", len(ready), 2+MaxLFSRSeeds*4)
	}
}

func TestEliminateOldRSVPFreesExpiredSlotsAndEmptyMatches(t *testing.T) {
	s, reg := newTestServer()
	a := newTestPlayer(reg, 1)

	s.cmdReqMatchSimple(a, "pong.rom", false)
	fa := lastFrame(t, a)
	matchID := MatchID(binary.BigEndian.Uint16(fa[2:4]))

	m, ok := reg.GetMatch(matchID)
	if !ok {
		t.Fatalf("match should exist")
	}
	// Force the RSVP to look expired without waiting out RSVPExpiry.
	for i := range m.RSVPExpiry {
		if m.RSVP[i] != 0 {
			m.RSVPExpiry[i] = time.Now().Add(-time.Second)
		}
	}

	s.eliminateOldRSVP(time.Now())

	if _, ok := reg.GetMatch(matchID); ok {
		t.Fatalf("match with only an expired RSVP should have been freed")
	}
}

func TestReqMatchSimpleEliminatesOldRSVPInOtherMatches(t *testing.T) {
	s, reg := newTestServer()
	a := newTestPlayer(reg, 1)

	s.cmdReqMatchSimple(a, "pong.rom", false)
	fa := lastFrame(t, a)
	if fa[1] != 0x00 {
		t.Fatalf("first reservation should succeed, got status %d", fa[1])
	}
	firstMatch := MatchID(binary.BigEndian.Uint16(fa[2:4]))

	s.cmdReqMatchSimple(a, "tetris.rom", false)
	fb := lastFrame(t, a)
	if fb[1] != 0x00 {
		t.Fatalf("second reservation should succeed, got status %d", fb[1])
	}
	secondMatch := MatchID(binary.BigEndian.Uint16(fb[2:4]))
	if secondMatch == firstMatch {
		t.Fatalf("a different ROM should allocate a new match, not reuse the first")
	}

	if _, ok := reg.GetMatch(firstMatch); ok {
		t.Fatalf("a's RSVP in the abandoned match should have been eliminated, freeing it")
	}

	m2, ok := reg.GetMatch(secondMatch)
	if !ok {
		t.Fatalf("second match should exist")
	}
	found := false
	for i := 0; i < MatchSlots; i++ {
		if m2.RSVP[i] == a.UserID {
			found = true
		}
	}
	if !found {
		t.Fatalf("a should hold an RSVP in the new match")
	}
}
