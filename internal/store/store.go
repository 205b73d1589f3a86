// Package store provides persistent operational state backed by an
// embedded SQLite database: the IP deny list and the administration audit
// log. It deliberately does not persist game state (rooms, matches,
// players) — spec.md's non-goals exclude durable storage of that — only
// the ops bookkeeping that should survive a restart.
//
// Migration design follows the teacher's: an ordered slice of DDL
// statements, each applied exactly once and tracked in schema_migrations.
// Append new statements; never edit or reorder existing ones.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	// v1 — IP deny list
	`CREATE TABLE IF NOT EXISTS ip_denies (
		ip         TEXT PRIMARY KEY,
		strikes    INTEGER NOT NULL DEFAULT 0,
		first_seen INTEGER NOT NULL DEFAULT (unixepoch()),
		last_seen  INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — administration audit log
	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id   INTEGER NOT NULL,
		action     TEXT NOT NULL,
		target     TEXT NOT NULL DEFAULT '',
		details    TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — WAL mode for concurrent readers
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and exposes the room server's persistence
// operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral storage in tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var applied int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		return err
	}
	for i := applied; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i+1); err != nil {
			return err
		}
	}
	return nil
}

// DenyEntry mirrors spec.md's IP deny entry.
type DenyEntry struct {
	IP        string
	Strikes   int
	FirstSeen int64
	LastSeen  int64
}

// RecordStrike increments the strike count for ip (inserting a fresh row if
// needed) and returns the new total.
func (s *Store) RecordStrike(ip string, nowUnix int64) (int, error) {
	_, err := s.db.Exec(`
		INSERT INTO ip_denies (ip, strikes, first_seen, last_seen) VALUES (?, 1, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET strikes = strikes + 1, last_seen = excluded.last_seen
	`, ip, nowUnix, nowUnix)
	if err != nil {
		return 0, fmt.Errorf("store: record strike: %w", err)
	}
	var strikes int
	if err := s.db.QueryRow(`SELECT strikes FROM ip_denies WHERE ip = ?`, ip).Scan(&strikes); err != nil {
		return 0, fmt.Errorf("store: read strikes: %w", err)
	}
	return strikes, nil
}

// LoadDenyList returns every persisted IP deny entry. The room server's
// Registry.IsDenied reads it on each check, and the admin CLI lists it.
func (s *Store) LoadDenyList() ([]DenyEntry, error) {
	rows, err := s.db.Query(`SELECT ip, strikes, first_seen, last_seen FROM ip_denies`)
	if err != nil {
		return nil, fmt.Errorf("store: load deny list: %w", err)
	}
	defer rows.Close()

	var out []DenyEntry
	for rows.Next() {
		var e DenyEntry
		if err := rows.Scan(&e.IP, &e.Strikes, &e.FirstSeen, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("store: scan deny entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearDenyEntry removes a single IP from the deny list (operator override).
func (s *Store) ClearDenyEntry(ip string) error {
	_, err := s.db.Exec(`DELETE FROM ip_denies WHERE ip = ?`, ip)
	if err != nil {
		return fmt.Errorf("store: clear deny entry: %w", err)
	}
	return nil
}

// InsertAuditLog records an administration action.
func (s *Store) InsertAuditLog(actorID int, action, target, details string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_log (actor_id, action, target, details) VALUES (?, ?, ?, ?)`,
		actorID, action, target, details,
	)
	if err != nil {
		return fmt.Errorf("store: insert audit log: %w", err)
	}
	return nil
}

// AuditEntry is a single row from the audit log.
type AuditEntry struct {
	ID        int64
	ActorID   int
	Action    string
	Target    string
	Details   string
	CreatedAt int64
}

// RecentAuditLog returns the most recent audit entries, newest first.
func (s *Store) RecentAuditLog(limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, actor_id, action, target, details, created_at FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Target, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
