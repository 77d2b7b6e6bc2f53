package room

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	"github.com/petodopoderoso/cc-liveboard/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // attendees join from arbitrary origins
	},
}

// Room is the stable per-room handle. It owns the transport arena and the
// current actor instance. The actor suspends itself after an idle period;
// every operation on the handle transparently resumes it first, so callers
// never observe the suspension beyond added latency.
type Room struct {
	name  string
	clock clockwork.Clock
	cfg   Config
	arena *arena

	mu    sync.Mutex
	actor *actor

	onFirstSession func(roomID string)
	onLastSession  func(roomID string)
}

func newRoom(name string, cfg Config, onFirst, onLast func(string), clock clockwork.Clock) *Room {
	return &Room{
		name:           name,
		clock:          clock,
		cfg:            cfg,
		arena:          newArena(),
		onFirstSession: onFirst,
		onLastSession:  onLast,
	}
}

// Accept validates and completes a WebSocket upgrade, registers the session
// with a fresh id, attaches the id to the transport for recovery after
// suspension, and sends the connected event. Returns domain.ErrNotAnUpgrade
// for plain HTTP requests.
func (rm *Room) Accept(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if !websocket.IsWebSocketUpgrade(r) {
		return uuid.Nil, domain.ErrNotAnUpgrade
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("websocket upgrade: %w", err)
	}

	id := uuid.New()
	tr := newTransport(conn, rm.clock)
	if err := tr.storeAttachment(attachment{SessionID: id}); err != nil {
		tr.stop()
		return uuid.Nil, fmt.Errorf("store session attachment: %w", err)
	}

	// The actor adds the transport to the arena on successful registration.
	// Doing it here instead would let a cold actor restore the joiner before
	// handleRegister runs, counting it against the session cap.
	replyCh := make(chan registerReply, 1)
	rm.post(registerCmd{tr: tr, id: id, replyCh: replyCh})
	reply := <-replyCh
	if reply.err != nil {
		tr.stop()
		return uuid.Nil, reply.err
	}

	go rm.readLoop(tr)
	return id, nil
}

// Broadcast serializes the event once and fans it out to every open session.
// Per-session delivery failures are swallowed by the actor; only an encoding
// failure is reported.
func (rm *Room) Broadcast(ev domain.Event) error {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventType(), err)
	}
	rm.post(broadcastCmd{eventType: string(ev.EventType()), data: data})
	return nil
}

// ConnectionCount returns the current registry size.
func (rm *Room) ConnectionCount() int {
	replyCh := make(chan int, 1)
	rm.post(countCmd{replyCh: replyCh})
	return <-replyCh
}

// SessionIDs returns the ids of all registered sessions.
func (rm *Room) SessionIDs() []uuid.UUID {
	replyCh := make(chan []uuid.UUID, 1)
	rm.post(sessionsCmd{replyCh: replyCh})
	return <-replyCh
}

// Suspended reports whether the room currently has no running actor.
func (rm *Room) Suspended() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.actor == nil
}

// post delivers a command to the actor, resuming it first if suspended. The
// send happens under the handle mutex so it cannot race a suspension: the
// actor only suspends via trySuspend, which needs the same mutex.
func (rm *Room) post(cmd actorCmd) {
	rm.mu.Lock()
	a := rm.ensureActorLocked()
	a.cmdCh <- cmd
	rm.mu.Unlock()
}

func (rm *Room) ensureActorLocked() *actor {
	if rm.actor == nil {
		a := newActor(rm)
		a.restore(rm.arena.snapshot())
		rm.actor = a
		go a.run()
		metrics.RoomResumesTotal.Inc()
		slog.Debug("Room actor started", "room", rm.name, "restored_sessions", len(a.sessions))
	}
	return rm.actor
}

// trySuspend is called by the actor when its idle timer fires. It refuses if
// another goroutine holds the handle mutex (a command may be in flight) or if
// commands are already queued.
func (rm *Room) trySuspend(a *actor) bool {
	if !rm.mu.TryLock() {
		return false
	}
	defer rm.mu.Unlock()

	if rm.actor != a || len(a.cmdCh) > 0 {
		return false
	}
	rm.actor = nil
	return true
}

// readLoop pumps inbound frames for one transport. The raw keepalive pair is
// answered directly here so it never resumes a suspended actor; everything
// else is forwarded as an actor command. A read error finalizes the transport
// and removes the session.
func (rm *Room) readLoop(tr *transport) {
	for {
		_, payload, err := tr.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				slog.Debug("Session closed", "room", rm.name, "code", closeErr.Code, "reason", closeErr.Text)
			} else {
				slog.Warn("Session transport error", "room", rm.name, "error", err)
			}
			rm.dropTransport(tr)
			return
		}

		if bytes.Equal(bytes.TrimSpace(payload), keepaliveRequest) {
			_ = tr.send(keepaliveResponse)
			continue
		}

		rm.post(messageCmd{tr: tr, payload: payload})
	}
}

// dropTransport removes a departed session. The remove command is posted
// before the arena forgets the transport so that a resuming actor either
// restores the session and then removes it, or never sees it; either way the
// registry and the first/last-session notifications stay consistent.
func (rm *Room) dropTransport(tr *transport) {
	rm.post(removeCmd{tr: tr})
	rm.arena.remove(tr)
	tr.stop()
}

func (rm *Room) notifyFirstSession() {
	if rm.onFirstSession == nil {
		return
	}
	go rm.onFirstSession(rm.name)
}

func (rm *Room) notifyLastSession() {
	if rm.onLastSession == nil {
		return
	}
	go rm.onLastSession(rm.name)
}

// stop shuts the room down for process exit: the actor (if running) closes
// every session, then any transports left in the arena are closed directly.
func (rm *Room) stop() {
	rm.mu.Lock()
	a := rm.actor
	rm.actor = nil
	rm.mu.Unlock()

	if a != nil {
		replyCh := make(chan struct{})
		a.cmdCh <- stopCmd{replyCh: replyCh}
		<-replyCh
	}

	for _, tr := range rm.arena.snapshot() {
		rm.arena.remove(tr)
		tr.stop()
	}
}
