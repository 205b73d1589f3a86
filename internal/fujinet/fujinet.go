// Package fujinet implements the tunnel login/echo contract and a single
// DEVICE_STATUS opcode for the virtual network-peripheral emulator tunnel
// service (spec.md §4.6/§5.6). Real SIO/peripheral emulation is out of
// scope: this package only proves the tunnel handshake and one status
// query work end to end.
package fujinet

import (
	"context"
	"net"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// OpDeviceStatus is the only recognized opcode; any other Data frame is
// echoed back unchanged.
const OpDeviceStatus byte = 0xF1

// capabilityByte is a fixed bitmask describing which virtual devices this
// stand-in claims to support. Every bit is fabricated for the echo
// contract's sake; no real disk/printer/modem emulation backs it.
const capabilityByte = 0x00

// Server accepts tunnel connections, validates the LOGIN frame, then
// echoes Data frames back except for DEVICE_STATUS queries.
type Server struct {
	log *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{log: log}
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
		srv.log.Debug("fujinet connection missing login frame", zap.Error(err))
		return
	}
	if _, err := tunnel.ParseLoginPayload(login.Payload); err != nil {
		return
	}

	for {
		f, err := tunnel.ReadFrame(conn, 0xFFFF)
		if err != nil {
			return
		}
		if f.Type == tunnel.TypePing {
			tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypePong})
			continue
		}
		if f.Type != tunnel.TypeData {
			continue
		}

		resp := srv.handleData(f.Payload)
		if err := tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypeData, Payload: resp}); err != nil {
			return
		}
	}
}

func (srv *Server) handleData(payload []byte) []byte {
	if len(payload) == 1 && payload[0] == OpDeviceStatus {
		return []byte{OpDeviceStatus, capabilityByte}
	}
	return payload
}
