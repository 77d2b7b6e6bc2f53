package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

// Config bundles the per-room tunables.
type Config struct {
	// IdleTimeout is how long an actor may sit without commands before it
	// suspends itself. Zero or negative disables suspension in practice only
	// for very chatty rooms; use a sensible positive value.
	IdleTimeout time.Duration
	// MaxSessionsPerRoom caps concurrent sessions per room. Zero means
	// unlimited.
	MaxSessionsPerRoom int
}

// DefaultIdleTimeout is how long a room actor stays resident with no traffic.
const DefaultIdleTimeout = 2 * time.Minute

// Directory maps room names to their handles. The same name always resolves
// to the same Room for the lifetime of the process; creation is lazy and safe
// under concurrent first references. Rooms are never destroyed, only their
// actors are suspended while idle.
type Directory struct {
	cfg            Config
	clock          clockwork.Clock
	onFirstSession func(roomID string)
	onLastSession  func(roomID string)

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewDirectory creates a room directory. onFirstSession and onLastSession are
// invoked (asynchronously) when a room gains its first live session or loses
// its last one; either may be nil.
func NewDirectory(cfg Config, onFirstSession, onLastSession func(roomID string), clock clockwork.Clock) *Directory {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Directory{
		cfg:            cfg,
		clock:          clock,
		onFirstSession: onFirstSession,
		onLastSession:  onLastSession,
		rooms:          make(map[string]*Room),
	}
}

// Resolve returns the handle for a room name, creating it on first reference.
func (d *Directory) Resolve(name string) *Room {
	d.mu.RLock()
	rm, ok := d.rooms[name]
	d.mu.RUnlock()
	if ok {
		return rm
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rm, ok := d.rooms[name]; ok {
		return rm
	}
	rm = newRoom(name, d.cfg, d.onFirstSession, d.onLastSession, d.clock)
	d.rooms[name] = rm
	return rm
}

// Broadcast resolves the room and fans the event out to its sessions.
func (d *Directory) Broadcast(roomID string, ev domain.Event) error {
	return d.Resolve(roomID).Broadcast(ev)
}

// ConnectionCount returns the room's current registry size.
func (d *Directory) ConnectionCount(roomID string) int {
	return d.Resolve(roomID).ConnectionCount()
}

// Stop closes every room's sessions. Used during process shutdown.
func (d *Directory) Stop() {
	d.mu.Lock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, rm := range d.rooms {
		rooms = append(rooms, rm)
	}
	d.mu.Unlock()

	for _, rm := range rooms {
		rm.stop()
	}
}

var _ domain.Broadcaster = (*Directory)(nil)
