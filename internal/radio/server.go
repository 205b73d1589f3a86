package radio

import (
	"context"
	"net"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// Server accepts tunnel connections from the room server's radio tunnel
// slot, one Session per connection.
type Server struct {
	decoder Decoder
	log     *zap.Logger
}

func NewServer(decoder Decoder, log *zap.Logger) *Server {
	return &Server{decoder: decoder, log: log}
}

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
		srv.log.Debug("radio connection missing login frame", zap.Error(err))
		return
	}
	if _, err := tunnel.ParseLoginPayload(login.Payload); err != nil {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := NewSession(srv.decoder, srv.log)
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
