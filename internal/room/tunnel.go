package room

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"uzenet/internal/tunnel"
)

// serviceSockets maps a backend service name (as named by START_SERVICE) to
// its Unix domain socket path. Populated from config at startup.
type serviceSockets map[string]string

// Tunnel is one of a Player's 16 logical channels to a backend service,
// multiplexed over the client's single TCP connection by prefixing payload
// bytes with a 0xF0|index marker (spec.md §4.3's "framed tunnel byte
// passthrough"). Internally, bytes are re-framed with the {type, flags,
// length, payload} header from internal/tunnel when relayed to the
// backend's Unix socket, so backend services share one wire codec
// regardless of which service they are.
type Tunnel struct {
	Index   int
	Service string
	backend net.Conn
}

// Open dials the backend Unix socket for service and sends the LOGIN frame
// identifying the player, mirroring the room server's own accept-then-
// identify handshake (spec.md §4.3.1) one layer down.
func (t *Tunnel) Open(sockets serviceSockets, service string, userID uint16, log *zap.Logger) error {
	path, ok := sockets[service]
	if !ok {
		return fmt.Errorf("room: unknown backend service %q", service)
	}
	conn, err := net.DialTimeout("unix", path, 3*time.Second)
	if err != nil {
		return fmt.Errorf("room: dial backend %q: %w", service, err)
	}
	login := tunnel.Frame{
		Type:    tunnel.TypeLogin,
		Payload: tunnel.LoginPayload{UserID: userID}.Bytes(),
	}
	if err := tunnel.WriteFrame(conn, login); err != nil {
		conn.Close()
		return fmt.Errorf("room: tunnel login to %q: %w", service, err)
	}
	t.Service = service
	t.backend = conn
	return nil
}

// Forward relays a payload chunk from the client to the backend as a DATA
// frame.
func (t *Tunnel) Forward(payload []byte) error {
	if t.backend == nil {
		return fmt.Errorf("room: tunnel %d not open", t.Index)
	}
	return tunnel.WriteFrame(t.backend, tunnel.Frame{Type: tunnel.TypeData, Payload: payload})
}

// Close tears down the backend connection. A concurrently running
// pumpBackend observes this as a read error on the next frame and returns.
func (t *Tunnel) Close() {
	if t.backend != nil {
		t.backend.Close()
		t.backend = nil
	}
}

// pumpBackend reads DATA frames from the backend and hands each payload to
// deliver, until the backend closes. Runs on its own goroutine, one per
// open tunnel, analogous to a per-connection reader in the room server's
// own accept path.
func (t *Tunnel) pumpBackend(deliver func(index int, payload []byte), log *zap.Logger) {
	conn := t.backend
	if conn == nil {
		return
	}
	for {
		f, err := tunnel.ReadFrame(conn, 0xFFFF)
		if err != nil {
			return
		}
		switch f.Type {
		case tunnel.TypeData:
			deliver(t.Index, f.Payload)
		case tunnel.TypePing:
			tunnel.WriteFrame(conn, tunnel.Frame{Type: tunnel.TypePong})
		}
	}
}
