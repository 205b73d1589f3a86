// Package vfs implements the sandboxed per-user virtual filesystem service
// (spec.md §4.4): path-sandboxed command dispatch over tunnel frames, a
// background disk-usage scanner, and the CRC-16/XMODEM name-hash index.
package vfs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// QuotaBytes is the maximum bytes a user's sandbox may hold.
	QuotaBytes = 8 * 1024 * 1024 * 1024
	// FileLimit is the maximum file count per user's sandbox.
	FileLimit = 65535
	// WarnThreshold logs a warning once a user's file count crosses this.
	WarnThreshold = 20000

	scanInterval = 60 * time.Second
	scanWorkers  = 4
)

// usage is one user's most recently scanned disk footprint.
type usage struct {
	UsedBytes int64
	FileCount int
}

// Tracker answers "is this user's quota known yet, and what is it" without
// blocking a WRITE/CREATE command on a live directory walk. A cache miss
// means the background scanner has not completed a first pass for that
// user, matching spec.md §4.4's "a user whose scanner has not yet
// completed a first pass is treated as not-ready".
type Tracker struct {
	cache *gocache.Cache
	log   *zap.Logger

	mu     sync.Mutex
	active map[uint16]string // userID -> sandbox base dir, registered on session open
}

// NewTracker constructs an empty Tracker. Entries never expire on their own
// (NoExpiration); only a fresh scan replaces a stale one.
func NewTracker(log *zap.Logger) *Tracker {
	return &Tracker{
		cache:  gocache.New(gocache.NoExpiration, 10*time.Minute),
		log:    log,
		active: make(map[uint16]string),
	}
}

// Register marks userID as active so the background scanner picks it up.
func (t *Tracker) Register(userID uint16, baseDir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[userID] = baseDir
}

// Status reports whether userID's quota usage is known, and if so, what it
// is.
func (t *Tracker) Status(userID uint16) (usage, bool) {
	v, ok := t.cache.Get(cacheKey(userID))
	if !ok {
		return usage{}, false
	}
	return v.(usage), true
}

func cacheKey(userID uint16) string {
	return fmt.Sprintf("u%d", userID)
}

// Run scans every active user's sandbox once per scanInterval until done is
// closed, using a bounded pool of scanWorkers goroutines so a fleet of
// quota-holding users cannot spawn unbounded disk-walk goroutines at once.
func (t *Tracker) Run(done <-chan struct{}) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.scanAll()
		}
	}
}

func (t *Tracker) scanAll() {
	t.mu.Lock()
	users := make(map[uint16]string, len(t.active))
	for id, dir := range t.active {
		users[id] = dir
	}
	t.mu.Unlock()

	type job struct {
		id  uint16
		dir string
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < scanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				t.scanOne(j.id, j.dir)
			}
		}()
	}
	for id, dir := range users {
		jobs <- job{id, dir}
	}
	close(jobs)
	wg.Wait()
}

func (t *Tracker) scanOne(userID uint16, baseDir string) {
	var u usage
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // tolerate a transient stat error; scan continues
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		u.UsedBytes += info.Size()
		u.FileCount++
		return nil
	})
	if err != nil {
		t.log.Warn("quota scan failed", zap.Uint16("user", userID), zap.Error(err))
		return
	}
	if u.FileCount >= WarnThreshold {
		t.log.Warn("user approaching file count limit", zap.Uint16("user", userID), zap.Int("files", u.FileCount))
	}
	t.cache.Set(cacheKey(userID), u, gocache.NoExpiration)
}

// CheckWrite reports whether adding extraBytes would fit in quota for
// userID. A not-ready user is always rejected with ready=false rather than
// silently allowed an unmetered write. There is no separate "quota not
// ready" status code: cmdWrite and cmdCreate answer StatusOtherFailure in
// that case.
func (t *Tracker) CheckWrite(userID uint16, extraBytes int64) (ok bool, ready bool) {
	u, ok2 := t.Status(userID)
	if !ok2 {
		return false, false
	}
	return u.UsedBytes+extraBytes <= QuotaBytes, true
}

// CheckCreate reports whether one more file would fit in the file-count
// limit for userID.
func (t *Tracker) CheckCreate(userID uint16) (ok bool, ready bool) {
	u, ok2 := t.Status(userID)
	if !ok2 {
		return false, false
	}
	return u.FileCount < FileLimit, true
}
