// Server ties the Registry, the command interpreter, and the network
// accept loop together into the single cooperative tick loop spec.md §4.3
// describes, adapted to Go by moving socket I/O onto per-connection reader
// and writer goroutines that communicate with the tick loop over channels
// rather than through non-blocking syscalls. Grounded on rustyguts-bken/
// server's accept-loop-plus-broadcast-goroutine shape in server.go/room.go.
package room

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	tickInterval   = 100 * time.Millisecond
	inboundChanCap = 64
	readChunkSize  = 4096
)

// Server is the room server's top-level driver.
type Server struct {
	reg     *Registry
	log     *zap.Logger
	sockets serviceSockets
	users   UserAuthenticator
	rng     *rand.Rand
	tls     *tls.Config
}

// NewServer builds a Server. users and sockets are the named external
// collaborators (the in-process user table and the backend Unix-socket
// services); both can be swapped for test doubles without touching the
// tick loop.
func NewServer(reg *Registry, log *zap.Logger, users UserAuthenticator, sockets map[string]string, tlsConfig *tls.Config) *Server {
	return &Server{
		reg:     reg,
		log:     log,
		sockets: serviceSockets(sockets),
		users:   users,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		tls:     tlsConfig,
	}
}

// Serve accepts connections on ln, sniffing the first byte to decide
// whether the connection is a TLS ClientHello (0x16) or a plaintext tunnel
// connection, and runs the tick loop until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.tickLoop(ctx)

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
			s.log.Warn("accept error", zap.Error(err))
			continue
		}
		go s.accept(conn, false)
	}
}

// ServeTelnet is identical to Serve but sends a human-readable banner
// before handing the connection into the same Player pipeline, for the
// classic telnet-on-port-23 diagnostic entry point named in SPEC_FULL.md
// §5.3.
func (s *Server) ServeTelnet(ctx context.Context, ln net.Listener) error {
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
			s.log.Warn("telnet accept error", zap.Error(err))
			continue
		}
		conn.Write([]byte("uzenet room server\r\n"))
		go s.accept(conn, true)
	}
}

// peekedConn lets Serve inspect a connection's first byte to distinguish a
// TLS ClientHello from a plaintext stream without consuming it, by routing
// all subsequent reads through the same bufio.Reader that performed the
// peek.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c peekedConn) Read(b []byte) (int, error) { return c.r.Read(b) }

func (s *Server) accept(conn net.Conn, telnet bool) {
	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		conn.Close()
		return
	}
	pc := peekedConn{Conn: conn, r: br}

	var finalConn net.Conn = pc
	if !telnet && s.tls != nil && first[0] == 0x16 {
		finalConn = tls.Server(pc, s.tls)
	}

	ip := remoteIP(conn)
	if s.reg.IsDenied(ip) {
		conn.Close()
		return
	}

	p, err := s.reg.AllocPlayer()
	if err != nil {
		s.log.Warn("player registry full, dropping connection", zap.String("ip", ip))
		conn.Close()
		return
	}
	p.Conn = finalConn
	p.IP = ip
	p.Telnet = telnet
	p.State = StateConnecting
	p.connectedAt = time.Now()
	p.lastActivity = p.connectedAt
	p.inboundCh = make(chan []byte, inboundChanCap)
	p.outboundCh = make(chan []byte, inboundChanCap)
	p.closeCh = make(chan struct{})

	go s.readLoop(p)
	go s.writeLoop(p)
}

func (s *Server) readLoop(p *Player) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := p.Conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.inboundCh <- chunk:
			case <-p.closeCh:
				return
			}
		}
		if err != nil {
			s.disconnectSignal(p)
			return
		}
	}
}

func (s *Server) writeLoop(p *Player) {
	for {
		select {
		case b, ok := <-p.outboundCh:
			if !ok {
				return
			}
			if _, err := p.Conn.Write(b); err != nil {
				s.disconnectSignal(p)
				return
			}
		case <-p.closeCh:
			return
		}
	}
}

// disconnectSignal is safe to call from either the reader or writer
// goroutine, or from the tick loop; exactly one of them wins the race to
// close closeCh.
func (s *Server) disconnectSignal(p *Player) {
	p.closeOnce.Do(func() { close(p.closeCh) })
}

func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) tick() {
	now := time.Now()
	s.eliminateOldRSVP(now)

	for _, p := range s.reg.ListPlayers() {
		s.tickPlayer(p, now)
	}
}

func (s *Server) tickPlayer(p *Player, now time.Time) {
	select {
	case <-p.closeCh:
		s.cleanupPlayer(p)
		return
	default:
	}

	p.refillCredits(now)

drain:
	for {
		select {
		case chunk := <-p.inboundCh:
			p.rx = append(p.rx, chunk...)
			p.lastActivity = now
		default:
			break drain
		}
	}

	switch p.State {
	case StateConnecting:
		s.tickLogin(p, now)
	case StateConnected:
		s.dispatch(p)
		if now.Sub(p.lastActivity) > IdleTimeout {
			s.log.Info("idle timeout", zap.Int("player", int(p.ID)))
			s.enqueue(p, []byte{OpDisconnect})
			p.State = StateDisconnecting
		}
	case StateDisconnecting:
		p.disconnectGrace++
		if p.disconnectGrace > DisconnectGraceTicks || len(p.outboundCh) == 0 {
			s.disconnectSignal(p)
		}
	}
}

// tickLogin accumulates the 8-byte short key (spec.md §4.3.1's
// USER_KEY_LEN) and, once complete, scans the user table for an exact
// unencrypted match against the accumulated key — "scan registered users
// for an exact unencrypted match" per spec.md §4.3.1, which is an in-
// process table lookup against the password-hash field, not a round trip
// to the identity daemon's separate 6-byte short-key oracle (§4.2).
func (s *Server) tickLogin(p *Player, now time.Time) {
	if len(p.rx) < UserKeyLen {
		if now.Sub(p.connectedAt) > time.Duration(LoginGraceTicks)*tickInterval {
			s.disconnectSignal(p)
		}
		return
	}
	key := string(p.rx[:UserKeyLen])
	p.rx = p.rx[UserKeyLen:]

	rec, ok := s.users.LookupUnencrypted(key)
	if !ok {
		s.log.Info("login failed, unknown key", zap.String("ip", p.IP))
		s.disconnectSignal(p)
		return
	}
	p.UserID = rec.UserID
	p.State = StateConnected
	s.enqueue(p, []byte{OpRomIdentify, 0x00})
}

// cleanupPlayer releases every resource a Player held: its tunnels, its
// room/match slot memberships, and finally its registry slot.
func (s *Server) cleanupPlayer(p *Player) {
	for i := range p.Tunnels {
		if p.Tunnels[i] != nil {
			p.Tunnels[i].Close()
			p.Tunnels[i] = nil
		}
	}
	if room, ok := s.reg.GetRoom(p.RoomID); ok {
		for i, occ := range room.Players {
			if occ == p.ID {
				room.Players[i] = 0
			}
		}
		if room.Players[0] == 0 {
			s.reg.FreeRoom(room.ID)
		}
	}
	if m, ok := s.reg.GetMatch(p.MatchID); ok && p.MatchSlot > 0 {
		m.Players[p.MatchSlot-1] = 0
		m.RSVP[p.MatchSlot-1] = 0
	}
	p.Conn.Close()
	s.reg.FreePlayer(p.ID)
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}

func ipv4Bytes(ip string) []byte {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil
	}
	v4 := addr.To4()
	if v4 == nil {
		return nil
	}
	return []byte(v4)
}

// StatusLine formats a one-line per-player summary. The `uzenet-roomd
// status` CLI subcommand does not use it; that command reads the store.
func StatusLine(p *Player) string {
	return fmt.Sprintf("player=%d user=%d ip=%s state=%s room=%d match=%d",
		p.ID, p.UserID, p.IP, p.State, p.RoomID, p.MatchID)
}
