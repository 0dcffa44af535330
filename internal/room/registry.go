// Package room owns the in-memory table of signaling rooms: creation,
// listener admission, departures and time-based eviction.
package room

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRoomNotFound is returned by JoinRoom for codes with no live room.
var ErrRoomNotFound = errors.New("room not found")

const defaultListenerName = "Anonymous"

// Conn is the registry's view of a signaling connection. The registry holds
// Conns only for routing and membership; it never controls their lifetime.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// Role tags what a connection currently is within a room.
type Role int

const (
	RoleUnassigned Role = iota
	RoleBroadcaster
	RoleListener
)

func (r Role) String() string {
	switch r {
	case RoleBroadcaster:
		return "broadcaster"
	case RoleListener:
		return "listener"
	default:
		return "unassigned"
	}
}

// ListenerInfo is the wire-facing snapshot of one listener's membership.
type ListenerInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinedAt int64  `json:"joinedAt"`
}

type listenerEntry struct {
	conn     Conn
	name     string
	joinedAt time.Time
}

func (e *listenerEntry) info() ListenerInfo {
	return ListenerInfo{
		ID:       e.conn.ID(),
		Name:     e.name,
		JoinedAt: e.joinedAt.UnixMilli(),
	}
}

// Room is one signaling session. All mutable state is guarded by the owning
// Registry's mutex; callers outside this package treat it as read-only.
type Room struct {
	code        string
	broadcaster Conn
	// listeners keeps join order so snapshots are stable.
	listeners []*listenerEntry

	createdAt      time.Time
	lastActivityAt time.Time
	// abandonedAt is zero while the room has a broadcaster or at least one
	// listener.
	abandonedAt time.Time
}

func (r *Room) Code() string { return r.code }

// Broadcaster returns the current broadcaster connection, or nil.
func (r *Room) Broadcaster() Conn { return r.broadcaster }

func (r *Room) ListenerCount() int { return len(r.listeners) }

func (r *Room) CreatedAt() time.Time      { return r.createdAt }
func (r *Room) LastActivityAt() time.Time { return r.lastActivityAt }

// AbandonedAt reports when the room became empty. ok is false while the room
// is in use.
func (r *Room) AbandonedAt() (time.Time, bool) {
	return r.abandonedAt, !r.abandonedAt.IsZero()
}

// Listeners returns the listener snapshot in join order.
func (r *Room) Listeners() []ListenerInfo {
	out := make([]ListenerInfo, 0, len(r.listeners))
	for _, e := range r.listeners {
		out = append(out, e.info())
	}
	return out
}

func (r *Room) listenerConns() []Conn {
	out := make([]Conn, 0, len(r.listeners))
	for _, e := range r.listeners {
		out = append(out, e.conn)
	}
	return out
}

func (r *Room) findListener(id string) *listenerEntry {
	for _, e := range r.listeners {
		if e.conn.ID() == id {
			return e
		}
	}
	return nil
}

func (r *Room) removeListener(id string) *listenerEntry {
	for i, e := range r.listeners {
		if e.conn.ID() == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return e
		}
	}
	return nil
}

func (r *Room) recomputeAbandoned(now time.Time) {
	if r.broadcaster == nil && len(r.listeners) == 0 {
		if r.abandonedAt.IsZero() {
			r.abandonedAt = now
		}
		return
	}
	r.abandonedAt = time.Time{}
}

type connState struct {
	role     Role
	roomCode string
}

// Registry is the process-wide room table. A single mutex guards the rooms
// map, the connection side-table and every Room's mutable fields, because
// each operation is a read-then-write sequence that must be atomic per room
// code.
type Registry struct {
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]connState

	now     func() time.Time
	newCode func() string
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		rooms:   make(map[string]*Room),
		conns:   make(map[string]connState),
		now:     time.Now,
		newCode: NewCode,
	}
}

// CreateRoom registers a new room with conn as its broadcaster and returns
// the room code. Codes are regenerated until unused, so an existing room is
// never silently overwritten.
func (g *Registry) CreateRoom(conn Conn) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for {
		code = g.newCode()
		if _, taken := g.rooms[code]; !taken {
			break
		}
	}

	now := g.now()
	g.rooms[code] = &Room{
		code:           code,
		broadcaster:    conn,
		createdAt:      now,
		lastActivityAt: now,
	}
	g.conns[conn.ID()] = connState{role: RoleBroadcaster, roomCode: code}

	g.log.Info("room created", "room", code, "broadcaster", conn.ID())
	return code
}

// JoinResult carries everything the caller needs to notify the room about a
// successful join.
type JoinResult struct {
	RoomCode   string
	ListenerID string
	Name       string
	// Listeners is the post-join snapshot, in join order.
	Listeners []ListenerInfo
	// Broadcaster is the room's broadcaster connection, nil if it has left.
	Broadcaster Conn
	// Others are the listener connections that were already in the room.
	Others []Conn
}

// JoinRoom admits conn as a listener in the room named by code. The room is
// joinable even without an active broadcaster: a room inside its persistence
// window accepts listeners so a broadcaster can reconnect under the same
// code.
func (g *Registry) JoinRoom(conn Conn, code, name string) (JoinResult, error) {
	code = NormalizeCode(code)
	if name == "" {
		name = defaultListenerName
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[code]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}

	now := g.now()
	others := r.listenerConns()

	if existing := r.findListener(conn.ID()); existing != nil {
		// Re-join under the same identity updates the entry in place.
		existing.name = name
	} else {
		r.listeners = append(r.listeners, &listenerEntry{
			conn:     conn,
			name:     name,
			joinedAt: now,
		})
	}
	r.lastActivityAt = now
	r.recomputeAbandoned(now)

	g.conns[conn.ID()] = connState{role: RoleListener, roomCode: code}

	g.log.Info("listener joined", "room", code, "listener", conn.ID(), "name", name)
	return JoinResult{
		RoomCode:    code,
		ListenerID:  conn.ID(),
		Name:        name,
		Listeners:   r.Listeners(),
		Broadcaster: r.broadcaster,
		Others:      others,
	}, nil
}

// Departure describes the aftermath of a connection leaving its room.
type Departure struct {
	Role     Role
	RoomCode string
	// Removed is set when a listener left.
	Removed *ListenerInfo
	// Listeners is the post-departure snapshot.
	Listeners []ListenerInfo
	// Broadcaster is the broadcaster still in the room, nil otherwise.
	Broadcaster Conn
	// Notify are the listener connections that should hear about the
	// departure.
	Notify []Conn
}

// Leave removes conn from its room according to its recorded role. A
// broadcaster departure clears the broadcaster reference but keeps the room
// alive; only the eviction sweeps ever delete rooms, so a broadcaster can
// reconnect within the persistence window. A no-op if conn has no room.
func (g *Registry) Leave(conn Conn) Departure {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.conns[conn.ID()]
	if !ok || st.roomCode == "" {
		delete(g.conns, conn.ID())
		return Departure{}
	}
	delete(g.conns, conn.ID())

	r, ok := g.rooms[st.roomCode]
	if !ok {
		// The room was already evicted; nothing left to update.
		return Departure{}
	}

	now := g.now()
	switch st.role {
	case RoleBroadcaster:
		if r.broadcaster != nil && r.broadcaster.ID() == conn.ID() {
			r.broadcaster = nil
		}
		r.lastActivityAt = now
		r.recomputeAbandoned(now)
		g.log.Info("broadcaster left", "room", r.code, "broadcaster", conn.ID(), "listeners", len(r.listeners))
		return Departure{
			Role:      RoleBroadcaster,
			RoomCode:  r.code,
			Listeners: r.Listeners(),
			Notify:    r.listenerConns(),
		}

	case RoleListener:
		removed := r.removeListener(conn.ID())
		r.lastActivityAt = now
		r.recomputeAbandoned(now)
		dep := Departure{
			Role:        RoleListener,
			RoomCode:    r.code,
			Listeners:   r.Listeners(),
			Broadcaster: r.broadcaster,
			Notify:      r.listenerConns(),
		}
		if removed != nil {
			info := removed.info()
			dep.Removed = &info
		}
		g.log.Info("listener left", "room", r.code, "listener", conn.ID(), "listeners", len(r.listeners))
		return dep
	}

	return Departure{}
}

// Get is a pure lookup by room code.
func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[NormalizeCode(code)]
	return r, ok
}

// RouteInfo reports the recorded role and room code for a connection.
func (g *Registry) RouteInfo(conn Conn) (Role, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.conns[conn.ID()]
	if !ok {
		return RoleUnassigned, "", false
	}
	return st.role, st.roomCode, true
}

// BroadcasterConn returns the broadcaster connection for a room, if both the
// room and its broadcaster exist.
func (g *Registry) BroadcasterConn(code string) (Conn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[NormalizeCode(code)]
	if !ok || r.broadcaster == nil {
		return nil, false
	}
	return r.broadcaster, true
}

// ListenerConn resolves a listener connection by identity within a room.
func (g *Registry) ListenerConn(code, listenerID string) (Conn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[NormalizeCode(code)]
	if !ok {
		return nil, false
	}
	e := r.findListener(listenerID)
	if e == nil {
		return nil, false
	}
	return e.conn, true
}

// Participants returns the broadcaster (nil if absent) and all listener
// connections of a room, for fan-out delivery.
func (g *Registry) Participants(code string) (Conn, []Conn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[NormalizeCode(code)]
	if !ok {
		return nil, nil, false
	}
	return r.broadcaster, r.listenerConns(), true
}

// CleanupOldRooms evicts every room that has been abandoned for longer than
// persistenceTimeout. Rooms still in use are never touched, regardless of
// age. Returns the number of rooms evicted.
func (g *Registry) CleanupOldRooms(persistenceTimeout time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	evicted := 0
	for code, r := range g.rooms {
		if r.abandonedAt.IsZero() {
			continue
		}
		if now.Sub(r.abandonedAt) <= persistenceTimeout {
			continue
		}
		delete(g.rooms, code)
		evicted++
		g.log.Info("room evicted", "room", code, "abandoned_for", now.Sub(r.abandonedAt))
	}
	return evicted
}

// CleanupMaxAge force-evicts rooms older than maxAge, abandoned or not. This
// is a safety net for rooms that never drain; member connections left behind
// degrade to no-ops on their next registry operation.
func (g *Registry) CleanupMaxAge(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	evicted := 0
	for code, r := range g.rooms {
		if now.Sub(r.createdAt) <= maxAge {
			continue
		}
		delete(g.rooms, code)
		evicted++
		g.log.Warn("room evicted past max age", "room", code, "age", now.Sub(r.createdAt),
			"listeners", len(r.listeners), "has_broadcaster", r.broadcaster != nil)
	}
	return evicted
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
