package zipstream

import (
	"context"
	"net"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// Server accepts tunnel connections from the room server's ZIP-extractor
// tunnel slot. Every client shares one sandboxed root directory holding
// browsable archives.
type Server struct {
	rootDir string
	log     *zap.Logger
}

func NewServer(rootDir string, log *zap.Logger) *Server {
	return &Server{rootDir: rootDir, log: log}
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
		go srv.handleConn(conn)
	}
}

func (srv *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	login, err := tunnel.ReadFrame(conn, 0xFF)
	if err != nil || login.Type != tunnel.TypeLogin {
		srv.log.Debug("zipstream connection missing login frame", zap.Error(err))
		return
	}
	if _, err := tunnel.ParseLoginPayload(login.Payload); err != nil {
		return
	}

	session := NewSession(srv.rootDir, srv.log)
	defer session.Close()

	for {
		f, err := tunnel.ReadFrame(conn, 0xFFFF)
		if err != nil {
			return
		}
		if f.Type != tunnel.TypeData {
			continue
		}
		resp := session.Feed(f.Payload)
		if resp == nil {
			continue
		}
		if err := tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypeData, Payload: resp}); err != nil {
			return
		}
	}
}
