package lichess

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateActive
)

// Session is one connected client's Lichess-bridge state machine (spec.md
// §4.5): at most one active game, a move/chat history ring for replay, and
// an outbound ring buffer draining into the tunnel connection. Feed runs on
// the connection's reader goroutine while pumpEvents runs on its own
// goroutine per game; mu guards the handful of fields both sides touch
// (state, gameID, cancelStream, lastMoveCount).
type Session struct {
	client ChallengeClient
	log    *zap.Logger

	state  sessionState
	gameID string
	mySide byte // 0 = white, 1 = black

	moves moveHistory
	chats chatHistory

	lastMoveCount int // number of half-moves already reflected to the client

	// out is the 16-slot outbound ring buffer: the connection's writer
	// loop drains it into Data frames, mirroring internal/room's
	// Player.outboundCh channel-as-queue idiom.
	out chan []byte

	cancelStream context.CancelFunc
	mu           sync.Mutex // guards gameID/state swaps from the stream goroutine's perspective
}

// NewSession builds a Session bound to client (real Lichess or a test
// double).
func NewSession(client ChallengeClient, log *zap.Logger) *Session {
	return &Session{
		client: client,
		log:    log,
		out:    make(chan []byte, historyRing),
	}
}

// Close ends any in-flight game stream.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancelStream != nil {
		s.cancelStream()
	}
	s.mu.Unlock()
}

// Outbound returns the channel the connection's writer loop should drain.
func (s *Session) Outbound() <-chan []byte {
	return s.out
}

func (s *Session) send(payload []byte) {
	select {
	case s.out <- payload:
	default:
		s.log.Warn("lichess outbound ring full, dropping message")
	}
}

// Feed processes one already-framed command message (the caller is
// responsible for Data-frame boundaries, so unlike the room/VFS services
// there is no partial-buffer accumulation here: one Data frame carries
// exactly one client message).
func (s *Session) Feed(ctx context.Context, msg []byte) {
	if len(msg) == 0 {
		return
	}
	tag := msg[0]
	body := msg[1:]

	switch tag {
	case MsgHello:
		s.send([]byte{RespHello, protoVersion})

	case MsgNewGame:
		s.handleNewGame(ctx, body)

	case MsgMove:
		s.handleMove(ctx, body)

	case MsgResign:
		s.endLocalGame(ReasonResign)

	case MsgAbort:
		s.endLocalGame(ReasonAbort)

	case MsgPing:
		if len(body) < 1 {
			return
		}
		s.send([]byte{RespPong, body[0]})

	case MsgChat:
		s.handleChat(body)

	case MsgReqMoves:
		s.handleReqMoves(body)

	case MsgReqChat:
		s.handleReqChat(body)

	default:
		s.log.Debug("unhandled lichess message tag", zap.Int("tag", int(tag)))
	}
}

func (s *Session) handleNewGame(ctx context.Context, body []byte) {
	if len(body) < 3 {
		return
	}
	s.mu.Lock()
	alreadyActive := s.state == stateActive
	s.mu.Unlock()
	if alreadyActive {
		s.send([]byte{RespError, ErrAlreadyInGame, 0, 0})
		return
	}

	minutes := int(body[1])
	increment := int(body[2])

	gameID, err := s.client.CreateOpenChallenge(ctx, minutes, increment)
	if err != nil {
		s.send([]byte{RespError, ErrUpstream, 0, 0})
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := s.client.StreamGame(streamCtx, gameID)
	if err != nil {
		cancel()
		s.send([]byte{RespError, ErrUpstream, 0, 0})
		return
	}

	s.mu.Lock()
	s.state = stateActive
	s.gameID = gameID
	s.mySide = 0
	s.lastMoveCount = 0
	s.cancelStream = cancel
	s.mu.Unlock()

	go s.pumpEvents(events)

	idBytes := []byte(gameID)
	idLen := len(idBytes)
	if idLen > 8 {
		idLen = 8
	}
	resp := make([]byte, 0, 6+idLen)
	resp = append(resp, RespGameStart, body[0], body[1], body[2], s.mySide, byte(idLen))
	resp = append(resp, idBytes[:idLen]...)
	s.send(resp)
	s.send([]byte{RespInfo, InfoWaitingForOpponent, 0, 0})
}

// pumpEvents runs for the lifetime of one game, translating upstream
// GameEvents into OPP_MOVE / GAME_END wire messages. The Session fields it
// updates (move count, move list, game state) are changed under s.mu by
// applyMoves and emitGameEnd; output goes out through send.
func (s *Session) pumpEvents(events <-chan GameEvent) {
	for ev := range events {
		if ev.Moves != "" {
			s.applyMoves(ev.Moves)
		}
		if ev.Status != "" && ev.Status != "started" {
			s.emitGameEnd(ev.Status, ev.Winner)
			return
		}
	}
}

func (s *Session) applyMoves(moveList string) {
	fields := strings.Fields(moveList)
	s.mu.Lock()
	start := s.lastMoveCount
	s.lastMoveCount = len(fields)
	s.mu.Unlock()

	for i := start; i < len(fields); i++ {
		mv, err := encodeMove(fields[i])
		if err != nil {
			s.log.Warn("lichess upstream sent malformed move", zap.String("uci", fields[i]))
			continue
		}
		s.mu.Lock()
		s.moves.Append(moveRecord{from: mv.From, to: mv.To, promo: mv.Promo})
		s.mu.Unlock()
		// Our own moves are echoed back in the stream too; only the
		// opponent's half of each pair needs an OPP_MOVE, which on an
		// open challenge is every other entry starting from index 1
		// relative to our assigned side.
		if i%2 == int(s.mySide) {
			continue
		}
		s.send([]byte{RespOppMove, mv.From, mv.To, mv.Promo})
	}
}

func (s *Session) handleMove(ctx context.Context, body []byte) {
	if len(body) < 3 {
		return
	}
	s.mu.Lock()
	active := s.state == stateActive
	gameID := s.gameID
	s.mu.Unlock()
	if !active {
		s.send([]byte{RespError, ErrNoActiveGame, 0, 0})
		return
	}

	uci, err := decodeMove(body[0], body[1], body[2])
	if err != nil {
		s.send([]byte{RespError, ErrBadMove, 0, 0})
		return
	}
	if err := s.client.SendMove(ctx, gameID, uci); err != nil {
		s.send([]byte{RespError, ErrUpstream, 0, 0})
	}
}

func (s *Session) endLocalGame(reason byte) {
	s.mu.Lock()
	if s.state != stateActive {
		s.mu.Unlock()
		return
	}
	s.state = stateIdle
	if s.cancelStream != nil {
		s.cancelStream()
		s.cancelStream = nil
	}
	s.mu.Unlock()
	s.send([]byte{RespGameEnd, 0, reason})
}

func (s *Session) emitGameEnd(status, winner string) {
	reason := ReasonUpstream
	switch status {
	case "resign":
		reason = ReasonResign
	case "aborted":
		reason = ReasonAbort
	case "outoftime":
		reason = ReasonFlag
	case "mate":
		reason = ReasonCheckmate
	case "draw", "stalemate":
		reason = ReasonDraw
	}
	result := byte(0)
	switch winner {
	case "white":
		result = 1
	case "black":
		result = 2
	}

	s.mu.Lock()
	s.state = stateIdle
	s.mu.Unlock()
	s.send([]byte{RespGameEnd, result, reason})
}

func (s *Session) handleChat(body []byte) {
	if len(body) < 1 {
		return
	}
	n := int(body[0])
	if n > chatMaxLen || len(body) < 1+n {
		return
	}
	text := string(body[1 : 1+n])
	s.mu.Lock()
	s.chats.Append(chatRecord{text: text})
	s.mu.Unlock()
}

func (s *Session) handleReqMoves(body []byte) {
	if len(body) < 3 {
		return
	}
	start := int(binary.BigEndian.Uint16(body[0:2]))
	count := int(body[2])
	s.mu.Lock()
	recs := s.moves.Slice(start, count)
	s.mu.Unlock()
	for _, rec := range recs {
		s.send([]byte{RespOppMove, rec.from, rec.to, rec.promo})
	}
}

func (s *Session) handleReqChat(body []byte) {
	if len(body) < 3 {
		return
	}
	start := int(binary.BigEndian.Uint16(body[0:2]))
	count := int(body[2])
	s.mu.Lock()
	recs := s.chats.Slice(start, count)
	s.mu.Unlock()
	for _, rec := range recs {
		n := len(rec.text)
		if n > chatMaxLen {
			n = chatMaxLen
		}
		msg := append([]byte{RespChat, 0, byte(n)}, rec.text[:n]...)
		s.send(msg)
	}
}
