package lichess

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDecodeMoveKnownSquares(t *testing.T) {
	// square 12 = file 4 (e), rank 1 (2) -> e2; square 28 = file 4, rank 3 -> e4.
	uci, err := decodeMove(12, 28, 0)
	if err != nil {
		t.Fatalf("decodeMove: %v", err)
	}
	if uci != "e2e4" {
		t.Fatalf("decodeMove(12,28,0) = %q, want e2e4", uci)
	}
}

func TestDecodeMoveRejectsOutOfRange(t *testing.T) {
	if _, err := decodeMove(64, 0, 0); err == nil {
		t.Fatalf("expected an error for an out-of-range square")
	}
}

func TestEncodeMoveRoundTrip(t *testing.T) {
	mv, err := encodeMove("e7e8q")
	if err != nil {
		t.Fatalf("encodeMove: %v", err)
	}
	uci, err := decodeMove(mv.From, mv.To, mv.Promo)
	if err != nil {
		t.Fatalf("decodeMove: %v", err)
	}
	if uci != "e7e8q" {
		t.Fatalf("round trip = %q, want e7e8q", uci)
	}
}

func waitFor(t *testing.T, s *Session, tag byte, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-s.Outbound():
			if msg[0] == tag {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for tag %d", tag)
		}
	}
}

func TestNewGameThenMoveReachesUpstream(t *testing.T) {
	mock := NewMockChallenge()
	s := NewSession(mock, zap.NewNop())
	defer s.Close()
	ctx := context.Background()

	s.Feed(ctx, []byte{MsgNewGame, 0, 10, 5})
	start := waitFor(t, s, RespGameStart, time.Second)
	idLen := int(start[5])
	gameID := string(start[6 : 6+idLen])
	if gameID == "" {
		t.Fatalf("expected a non-empty game id in GAME_START")
	}

	// e2e4 as from=12 to=28
	s.Feed(ctx, []byte{MsgMove, 12, 28, 0})
	// Our own move is echoed on the stream but shouldn't surface as an
	// OPP_MOVE (parity check against mySide=white=0).
	time.Sleep(20 * time.Millisecond)

	mock.InjectOpponentMove(gameID, "e7e5")
	opp := waitFor(t, s, RespOppMove, time.Second)
	if opp[1] != 52 || opp[2] != 36 {
		t.Fatalf("OPP_MOVE from/to = %d/%d, want 52/36", opp[1], opp[2])
	}
}

func TestResignEndsGameLocally(t *testing.T) {
	mock := NewMockChallenge()
	s := NewSession(mock, zap.NewNop())
	defer s.Close()
	ctx := context.Background()

	s.Feed(ctx, []byte{MsgNewGame, 0, 5, 0})
	waitFor(t, s, RespGameStart, time.Second)

	s.Feed(ctx, []byte{MsgResign})
	end := waitFor(t, s, RespGameEnd, time.Second)
	if end[2] != ReasonResign {
		t.Fatalf("GAME_END reason = %d, want ReasonResign", end[2])
	}
}

func TestMoveWithNoActiveGameErrors(t *testing.T) {
	mock := NewMockChallenge()
	s := NewSession(mock, zap.NewNop())
	defer s.Close()

	s.Feed(context.Background(), []byte{MsgMove, 0, 1, 0})
	errMsg := waitFor(t, s, RespError, time.Second)
	if errMsg[1] != ErrNoActiveGame {
		t.Fatalf("ERROR code = %d, want ErrNoActiveGame", errMsg[1])
	}
}

func TestReqMovesReplaysHistory(t *testing.T) {
	h := &moveHistory{}
	for i := 0; i < 5; i++ {
		h.Append(moveRecord{from: byte(i), to: byte(i + 1)})
	}
	got := h.Slice(1, 2)
	if len(got) != 2 || got[0].from != 1 || got[1].from != 2 {
		t.Fatalf("Slice(1,2) = %+v, want moves starting at seq 1", got)
	}
}

func TestReqMovesEvictsBeyondRingCapacity(t *testing.T) {
	h := &moveHistory{}
	for i := 0; i < historyRing+3; i++ {
		h.Append(moveRecord{from: byte(i % 256)})
	}
	// The first 3 entries (seq 0,1,2) have been evicted by the 16-slot ring.
	got := h.Slice(0, 100)
	if len(got) != historyRing {
		t.Fatalf("Slice after overflow returned %d entries, want %d", len(got), historyRing)
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	mock := NewMockChallenge()
	s := NewSession(mock, zap.NewNop())
	defer s.Close()
	ctx := context.Background()

	chat := []byte{MsgChat, 5}
	chat = append(chat, []byte("hello")...)
	s.Feed(ctx, chat)

	req := make([]byte, 4)
	req[0] = MsgReqChat
	binary.BigEndian.PutUint16(req[1:3], 0)
	req[3] = 1
	s.Feed(ctx, req)

	resp := waitFor(t, s, RespChat, time.Second)
	n := int(resp[2])
	if string(resp[3:3+n]) != "hello" {
		t.Fatalf("replayed chat = %q, want hello", string(resp[3:3+n]))
	}
}
