package identity

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// Daemon serves the identity protocol over a Unix socket: one query per
// connection, 6 bytes in, 2 bytes out, then close. Grounded on the
// accept-loop shape documented in the pack's nabbar-golib Unix socket
// server reference (context-aware Accept, one goroutine per connection).
type Daemon struct {
	table        *Table
	log          *zap.Logger
	reloadPeriod time.Duration
}

// NewDaemon constructs a Daemon over an already-loaded Table.
func NewDaemon(table *Table, log *zap.Logger, reloadPeriod time.Duration) *Daemon {
	if reloadPeriod <= 0 {
		reloadPeriod = 5 * time.Second
	}
	return &Daemon{table: table, log: log, reloadPeriod: reloadPeriod}
}

// Serve accepts connections on ln until ctx is canceled. Each connection
// reads exactly 6 key bytes and writes back a 2-byte big-endian user id.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	go d.reloadLoop(ctx)

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
			d.log.Warn("accept error", zap.Error(err))
			continue
		}
		go d.handleConn(conn)
	}
}

func (d *Daemon) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(d.reloadPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.table.MaybeReload(); err != nil {
				d.log.Warn("reload failed, keeping previous table", zap.Error(err))
			}
		}
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var key [6]byte
	if _, err := io.ReadFull(conn, key[:]); err != nil {
		if !errors.Is(err, io.EOF) {
			d.log.Debug("short read on identity query", zap.Error(err))
		}
		return
	}

	id, _ := d.table.LookupKey(string(key[:]))

	var resp [2]byte
	binary.BigEndian.PutUint16(resp[:], id)
	conn.Write(resp[:])
}
