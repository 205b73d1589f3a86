package room

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"uzenet/internal/store"
)

// Registry is the room server's arena: fixed-capacity tables of Players,
// Rooms, and Matches addressed by validated index types, plus the IP deny
// list. Grounded on rustyguts-bken/server's Room struct, which guards a
// map of connected clients behind a single mutex; here the map becomes
// three fixed-size arrays per design note §9's "arena + index" guidance,
// so a PlayerID/RoomID/MatchID carried in a stale command can be bounds-
// and occupancy-checked instead of dereferenced.
//
// The tick-loop goroutine is the sole mutator of individual Player/RoomObj/
// Match contents once allocated; Registry's mutex only guards the slot
// arrays themselves (allocation, free and lookup) and the in-memory strike
// map.
type Registry struct {
	mu sync.RWMutex

	players [MaxPlayers + 1]*Player
	rooms   [MaxRooms + 1]*RoomObj
	matches [MaxMatches + 1]*Match

	store *store.Store
	log   *zap.Logger

	ipStrikes map[string]int
}

// NewRegistry constructs an empty Registry. st may be nil, in which case IP
// strikes are tracked in memory only and never persisted (used by tests).
func NewRegistry(st *store.Store, log *zap.Logger) *Registry {
	return &Registry{
		store:     st,
		log:       log,
		ipStrikes: make(map[string]int),
	}
}

// ErrRegistryFull is returned when an arena has no free slot.
var ErrRegistryFull = fmt.Errorf("room: registry full")

// AllocPlayer claims the lowest-numbered free player slot.
func (r *Registry) AllocPlayer() (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i <= MaxPlayers; i++ {
		if r.players[i] == nil {
			p := &Player{ID: PlayerID(i), Subscribed: make(map[PlayerID]bool)}
			r.players[i] = p
			return p, nil
		}
	}
	return nil, ErrRegistryFull
}

// FreePlayer releases a player slot.
func (r *Registry) FreePlayer(id PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= 0 && int(id) < len(r.players) {
		r.players[id] = nil
	}
}

// GetPlayer validates id and returns the occupant, if any.
func (r *Registry) GetPlayer(id PlayerID) (*Player, bool) {
	if id == 0 || int(id) >= len(r.players) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.players[id]
	return p, p != nil
}

// ListPlayers returns a snapshot slice of all occupied player slots, used by
// the tick loop to visit every connected player.
func (r *Registry) ListPlayers() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, MaxPlayers)
	for _, p := range r.players {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// AllocRoom claims the lowest-numbered free room slot.
func (r *Registry) AllocRoom() (*RoomObj, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i <= MaxRooms; i++ {
		if r.rooms[i] == nil {
			room := &RoomObj{ID: RoomID(i), State: RoomOpen, MaxUsers: RoomSlots}
			r.rooms[i] = room
			return room, nil
		}
	}
	return nil, ErrRegistryFull
}

// FreeRoom releases a room slot.
func (r *Registry) FreeRoom(id RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) < len(r.rooms) {
		r.rooms[id] = nil
	}
}

// GetRoom validates id and returns the occupant, if any.
func (r *Registry) GetRoom(id RoomID) (*RoomObj, bool) {
	if id == 0 || int(id) >= len(r.rooms) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[id]
	return rm, rm != nil
}

// ListRooms returns a snapshot slice of all occupied room slots.
func (r *Registry) ListRooms() []*RoomObj {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RoomObj, 0, MaxRooms)
	for _, rm := range r.rooms {
		if rm != nil {
			out = append(out, rm)
		}
	}
	return out
}

// AllocMatch claims the lowest-numbered free match slot.
func (r *Registry) AllocMatch() (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i <= MaxMatches; i++ {
		if r.matches[i] == nil {
			m := &Match{ID: MatchID(i), State: MatchSimple, MaxPlayers: MatchSlots, MinPlayers: 2}
			r.matches[i] = m
			return m, nil
		}
	}
	return nil, ErrRegistryFull
}

// FreeMatch releases a match slot.
func (r *Registry) FreeMatch(id MatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) < len(r.matches) {
		r.matches[id] = nil
	}
}

// GetMatch validates id and returns the occupant, if any.
func (r *Registry) GetMatch(id MatchID) (*Match, bool) {
	if id == 0 || int(id) >= len(r.matches) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.matches[id]
	return m, m != nil
}

// ListMatches returns a snapshot slice of all occupied match slots.
func (r *Registry) ListMatches() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Match, 0, MaxMatches)
	for _, m := range r.matches {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Strike records a protocol violation from ip and reports whether ip has now
// crossed IPStrikeLimit and should be denied. When a store is configured
// every strike is written to its ip_denies table, so a restart does not
// forget an offender mid-ban; without one strikes are counted in memory.
func (r *Registry) Strike(ip string, nowUnix int64) (denied bool, err error) {
	if r.store != nil {
		n, err := r.store.RecordStrike(ip, nowUnix)
		if err != nil {
			return false, err
		}
		return n >= IPStrikeLimit, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ipStrikes[ip]++
	return r.ipStrikes[ip] >= IPStrikeLimit, nil
}

// IsDenied reports whether ip is currently on the deny list.
func (r *Registry) IsDenied(ip string) bool {
	if r.store != nil {
		entries, err := r.store.LoadDenyList()
		if err != nil {
			r.log.Warn("deny list load failed, failing open", zap.Error(err))
			return false
		}
		for _, e := range entries {
			if e.IP == ip && e.Strikes >= IPStrikeLimit {
				return true
			}
		}
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ipStrikes[ip] >= IPStrikeLimit
}
