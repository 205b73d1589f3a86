package lichess

import (
	"context"
	"net"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// Server accepts tunnel connections from the room server (one per client
// that opens the Lichess tunnel slot) and runs each through a Session. One
// Data frame carries exactly one client message; one Data frame is written
// back per outbound message.
type Server struct {
	client ChallengeClient
	log    *zap.Logger
}

// NewServer builds a Server backed by client, which is either a
// production stdhttp client or a mockchallenge test double.
func NewServer(client ChallengeClient, log *zap.Logger) *Server {
	return &Server{client: client, log: log}
}

// Serve accepts connections on ln until ctx is canceled.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			srv.log.Warn("accept error", zap.Error(err))
			continue
		}
		go srv.handleConn(ctx, conn)
	}
}

func (srv *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	login, err := tunnel.ReadFrame(conn, 0xFF)
	if err != nil || login.Type != tunnel.TypeLogin {
		srv.log.Debug("lichess connection missing login frame", zap.Error(err))
		return
	}
	if _, err := tunnel.ParseLoginPayload(login.Payload); err != nil {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := NewSession(srv.client, srv.log)
	defer session.Close()

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case payload := <-session.Outbound():
				if err := tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypeData, Payload: payload}); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		f, err := tunnel.ReadFrame(conn, 0xFFFF)
		if err != nil {
			return
		}
		if f.Type != tunnel.TypeData {
			continue
		}
		session.Feed(connCtx, f.Payload)
	}
}
