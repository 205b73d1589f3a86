package vfs

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// Server accepts tunnel-framed connections from the room server (one per
// player tunnel opened against the VFS service) and runs each through the
// LOGIN -> handshake -> command-stream protocol in spec.md §4.4.
type Server struct {
	rootDir string
	tracker *Tracker
	log     *zap.Logger
}

// NewServer builds a Server rooted at rootDir; per-user sandboxes are
// lazily created as rootDir/<user_id> (or rootDir/uzenetfs-guest).
func NewServer(rootDir string, log *zap.Logger) *Server {
	return &Server{rootDir: rootDir, tracker: NewTracker(log), log: log}
}

// Serve accepts connections on ln until ctx is canceled, grounded on the
// same Unix-socket accept loop shape internal/identity uses.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	go srv.tracker.Run(done)
	go func() {
		<-ctx.Done()
		close(done)
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
		srv.log.Debug("vfs connection missing login frame", zap.Error(err))
		return
	}
	lp, err := tunnel.ParseLoginPayload(login.Payload)
	if err != nil {
		return
	}

	userID := lp.UserID
	guest := userID == 0xFFFF
	userDir := fmt.Sprintf("%d", userID)
	if guest {
		userDir = "uzenetfs-guest"
	}
	base := filepath.Join(srv.rootDir, userDir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		srv.log.Warn("create sandbox dir failed", zap.String("dir", base), zap.Error(err))
		return
	}

	session := NewSession(userID, guest, base, srv.tracker, srv.log)
	defer session.Close()

	handshakeSeen := false
	handshakeBuf := make([]byte, 0, len(handshakeGreeting))

	for {
		f, err := tunnel.ReadFrame(conn, 0xFFFF)
		if err != nil {
			return
		}
		if f.Type != tunnel.TypeData {
			continue
		}
		payload := f.Payload
		if !handshakeSeen {
			handshakeBuf = append(handshakeBuf, payload...)
			if len(handshakeBuf) < len(handshakeGreeting) {
				continue
			}
			if !bytes.HasPrefix(handshakeBuf, []byte(handshakeGreeting)) {
				srv.log.Debug("vfs handshake mismatch")
				return
			}
			payload = handshakeBuf[len(handshakeGreeting):]
			handshakeSeen = true
		}

		for _, resp := range session.Feed(payload) {
			if err := tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypeData, Payload: resp}); err != nil {
				return
			}
		}
	}
}
