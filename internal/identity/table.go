// Package identity implements the identity daemon's stateless lookup
// oracle: a CSV-backed user table hot-reloaded on mtime change, indexed
// both by short name and by user id.
package identity

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// GuestID is the reserved anonymous-guest identity.
const GuestID uint16 = 0xFFFF

// GuestKey is the reserved short key that maps to GuestID.
const GuestKey = "000000"

// Flag is a user's privilege flag.
type Flag byte

const (
	FlagAdmin      Flag = 'A'
	FlagFull       Flag = 'F'
	FlagGuest      Flag = 'G'
	FlagRestricted Flag = 'R'
)

// Record is a single row of the user table.
type Record struct {
	UserID   uint16
	Name13   string
	Name8    string
	Name6    string
	PassHash string
	Flag     Flag
}

// index is an immutable snapshot of the loaded table, swapped in atomically
// on reload so readers never observe a half-built table.
type index struct {
	byKey    map[string]*Record // Name6 (the short key) -> record
	byUserID map[uint16]*Record
}

// Table is a hot-reloadable, concurrency-safe user table.
type Table struct {
	path string

	mu      sync.Mutex // serializes reload attempts
	lastMod int64      // unix nanos of the mtime last successfully loaded

	cur atomic.Pointer[index]
}

// NewTable loads path immediately and returns a Table ready for concurrent
// lookups. A load failure on construction is fatal to the caller (there is
// no prior snapshot to fall back to).
func NewTable(path string) (*Table, error) {
	t := &Table{path: path}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// MaybeReload re-reads the CSV file if its mtime has changed since the last
// successful load. Safe to call frequently (e.g. from a poll ticker); it is
// a cheap os.Stat when nothing has changed.
func (t *Table) MaybeReload() error {
	fi, err := os.Stat(t.path)
	if err != nil {
		return fmt.Errorf("identity: stat %s: %w", t.path, err)
	}
	modNanos := fi.ModTime().UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()
	if modNanos == t.lastMod {
		return nil
	}
	if err := t.reloadLocked(modNanos); err != nil {
		return err
	}
	return nil
}

func (t *Table) reload() error {
	fi, err := os.Stat(t.path)
	if err != nil {
		return fmt.Errorf("identity: stat %s: %w", t.path, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reloadLocked(fi.ModTime().UnixNano())
}

// reloadLocked parses the CSV file and swaps in a fresh index. Duplicate
// user ids are rejected: parseCSV skips the offending row and returns a
// warning for it, which is logged here, so a malformed row is reported
// without being fatal to the whole load.
func (t *Table) reloadLocked(modNanos int64) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("identity: open %s: %w", t.path, err)
	}
	defer f.Close()

	idx, warnings, err := parseCSV(f)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("identity: %s: %s", t.path, w)
	}

	t.cur.Store(idx)
	t.lastMod = modNanos
	return nil
}

// parseCSV parses the "id,name13,name8,name6,hash,flag" CSV format. Blank
// lines and '#' comments are ignored. A duplicate user id is skipped and
// recorded in the returned warnings slice rather than aborting the load.
func parseCSV(f *os.File) (*index, []string, error) {
	idx := &index{
		byKey:    make(map[string]*Record),
		byUserID: make(map[uint16]*Record),
	}
	var warnings []string

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 6 {
			warnings = append(warnings, fmt.Sprintf("line %d: expected 6 fields, got %d", lineNo, len(fields)))
			continue
		}
		id64, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 16)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: bad user id %q: %v", lineNo, fields[0], err))
			continue
		}
		id := uint16(id64)
		if _, dup := idx.byUserID[id]; dup {
			warnings = append(warnings, fmt.Sprintf("line %d: duplicate user id %d, row skipped", lineNo, id))
			continue
		}
		flagField := strings.TrimSpace(fields[5])
		if len(flagField) != 1 {
			warnings = append(warnings, fmt.Sprintf("line %d: bad flag %q", lineNo, fields[5]))
			continue
		}
		rec := &Record{
			UserID:   id,
			Name13:   strings.TrimSpace(fields[1]),
			Name8:    strings.TrimSpace(fields[2]),
			Name6:    strings.TrimSpace(fields[3]),
			PassHash: strings.TrimSpace(fields[4]),
			Flag:     Flag(flagField[0]),
		}
		idx.byUserID[id] = rec
		idx.byKey[rec.Name6] = rec
	}
	if err := sc.Err(); err != nil {
		return nil, warnings, fmt.Errorf("identity: scan csv: %w", err)
	}
	return idx, warnings, nil
}

// LookupKey resolves a 6-byte short key to a user id. The reserved guest
// key always resolves to GuestID regardless of table contents.
func (t *Table) LookupKey(key string) (uint16, bool) {
	if key == GuestKey {
		return GuestID, true
	}
	idx := t.cur.Load()
	rec, ok := idx.byKey[key]
	if !ok {
		return 0, false
	}
	return rec.UserID, true
}

// LookupUserID resolves a user id to its full record.
func (t *Table) LookupUserID(id uint16) (*Record, bool) {
	idx := t.cur.Load()
	rec, ok := idx.byUserID[id]
	return rec, ok
}

// LookupUnencrypted scans for a record whose PassHash equals key exactly —
// the "scan registered users for an exact unencrypted match" authentication
// described in spec.md §4.3.1 for the room server's 8-byte short key login.
// This is a linear scan, matching the small embedded-fleet user tables the
// spec targets (hundreds, not millions, of rows).
func (t *Table) LookupUnencrypted(key string) (*Record, bool) {
	idx := t.cur.Load()
	for _, rec := range idx.byUserID {
		if rec.PassHash == key {
			return rec, true
		}
	}
	return nil, false
}
