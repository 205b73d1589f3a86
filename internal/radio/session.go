package radio

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Session runs one client's station selection lifecycle: at most one
// decode in flight at a time, torn down and replaced whenever a new
// SELECT_STATION or STOP command arrives.
type Session struct {
	decoder Decoder
	log     *zap.Logger

	out chan []byte

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession builds a Session backed by decoder. SineDecoder, the only
// Decoder in this package, is what both the tests and uzenet-radiod use.
func NewSession(decoder Decoder, log *zap.Logger) *Session {
	return &Session{decoder: decoder, log: log, out: make(chan []byte, 8)}
}

// Outbound returns the channel the connection's writer loop drains.
func (s *Session) Outbound() <-chan []byte {
	return s.out
}

// Close stops any in-flight decode.
func (s *Session) Close() {
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Session) send(payload []byte) {
	select {
	case s.out <- payload:
	default:
		s.log.Warn("radio outbound queue full, dropping chunk")
	}
}

// Feed processes one command message.
func (s *Session) Feed(ctx context.Context, msg []byte) {
	if len(msg) == 0 {
		return
	}
	tag := msg[0]
	body := msg[1:]

	switch tag {
	case MsgSelectStation:
		s.handleSelectStation(ctx, body)
	case MsgStop:
		s.stopLocked()
		s.send([]byte{RespStopped})
	default:
		s.log.Debug("unhandled radio message tag")
	}
}

func (s *Session) handleSelectStation(ctx context.Context, body []byte) {
	if len(body) < 1 {
		return
	}
	n := int(body[0])
	if n > maxStationURLLen || len(body) < 1+n {
		s.send([]byte{RespError, 1})
		return
	}
	url := string(body[1 : 1+n])

	s.stopLocked()
	streamCtx, cancel := context.WithCancel(ctx)
	chunks, err := s.decoder.Decode(streamCtx, url)
	if err != nil {
		cancel()
		s.send([]byte{RespError, 2})
		return
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		for chunk := range chunks {
			msg := append([]byte{RespChunk}, chunk...)
			s.send(msg)
		}
	}()
}
