package sshbridge

import (
	"context"
	"net"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// Server accepts tunnel connections from the room server's SSH-bridge
// tunnel slot, starting one LocalShell per connection.
type Server struct {
	shellPath string
	log       *zap.Logger
}

func NewServer(shellPath string, log *zap.Logger) *Server {
	return &Server{shellPath: shellPath, log: log}
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
		srv.log.Debug("sshbridge connection missing login frame", zap.Error(err))
		return
	}
	if _, err := tunnel.ParseLoginPayload(login.Payload); err != nil {
		return
	}

	shell, err := NewLocalShell(srv.shellPath, srv.log)
	if err != nil {
		srv.log.Warn("failed to start local shell", zap.Error(err))
		return
	}
	defer shell.Close()

	session := NewSession(shell, shell.Output(), srv.log)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case payload, ok := <-session.Outbound():
				if !ok {
					cancel()
					return
				}
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
		session.Feed(f.Payload)
	}
}
