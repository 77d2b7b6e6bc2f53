package room

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	"github.com/petodopoderoso/cc-liveboard/internal/metrics"
)

// pongMessage answers a protocol-level {"type":"ping"} from a client. Distinct
// from the raw keepalive pair, which is handled below the actor.
var pongMessage = []byte(`{"type":"pong"}`)

// actorCmd is the command interface for the room actor.
type actorCmd interface{ isActorCmd() }

type baseActorCmd struct{}

func (baseActorCmd) isActorCmd() {}

type registerReply struct {
	connections int
	err         error
}

type registerCmd struct {
	baseActorCmd
	tr      *transport
	id      uuid.UUID
	replyCh chan registerReply
}

type broadcastCmd struct {
	baseActorCmd
	eventType string
	data      []byte
}

type messageCmd struct {
	baseActorCmd
	tr      *transport
	payload []byte
}

type removeCmd struct {
	baseActorCmd
	tr *transport
}

type countCmd struct {
	baseActorCmd
	replyCh chan int
}

type sessionsCmd struct {
	baseActorCmd
	replyCh chan []uuid.UUID
}

type stopCmd struct {
	baseActorCmd
	replyCh chan struct{}
}

type session struct {
	id uuid.UUID
}

// actor serializes every registry mutation and broadcast for one room. It is
// the only goroutine that touches the session map, so no locking is needed
// inside the handlers. When idle it hands its state back to the Room handle
// and exits; the next operation resumes it via restore.
type actor struct {
	room        *Room
	cmdCh       chan actorCmd
	sessions    map[*transport]session
	clock       clockwork.Clock
	idleTimeout time.Duration
	maxSessions int
}

func newActor(rm *Room) *actor {
	return &actor{
		room:        rm,
		cmdCh:       make(chan actorCmd, 256),
		sessions:    make(map[*transport]session),
		clock:       rm.clock,
		idleTimeout: rm.cfg.IdleTimeout,
		maxSessions: rm.cfg.MaxSessionsPerRoom,
	}
}

// restore rebuilds the session registry from the transports the arena still
// holds open, recovering each one's attached session id. Runs before the
// actor accepts any command; transports without a readable attachment are
// dropped rather than given a fresh identity.
func (a *actor) restore(transports []*transport) {
	for _, tr := range transports {
		att, err := tr.loadAttachment()
		if err != nil {
			slog.Warn("Dropping transport with unreadable attachment", "room", a.room.name, "error", err)
			a.room.arena.remove(tr)
			tr.stop()
			continue
		}
		a.sessions[tr] = session{id: att.SessionID}
	}
}

func (a *actor) run() {
	idle := a.clock.NewTimer(a.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case cmd := <-a.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				a.handleRegister(c)
			case broadcastCmd:
				a.handleBroadcast(c)
			case messageCmd:
				a.handleMessage(c)
			case removeCmd:
				a.handleRemove(c)
			case countCmd:
				c.replyCh <- len(a.sessions)
			case sessionsCmd:
				ids := make([]uuid.UUID, 0, len(a.sessions))
				for _, s := range a.sessions {
					ids = append(ids, s.id)
				}
				c.replyCh <- ids
			case stopCmd:
				a.handleStop()
				close(c.replyCh)
				return
			}
			idle.Reset(a.idleTimeout)
		case <-idle.Chan():
			if a.room.trySuspend(a) {
				metrics.RoomSuspendsTotal.Inc()
				slog.Debug("Room actor suspended", "room", a.room.name, "sessions", len(a.sessions))
				return
			}
			idle.Reset(a.idleTimeout)
		}
	}
}

func (a *actor) handleRegister(c registerCmd) {
	if a.maxSessions > 0 && len(a.sessions) >= a.maxSessions {
		slog.Warn("Rejecting session: room full", "room", a.room.name, "max_sessions", a.maxSessions)
		c.replyCh <- registerReply{err: domain.ErrRoomFull}
		return
	}

	// Arena membership and registry membership change together: a rejected
	// transport never enters the arena, so restore cannot resurrect it.
	a.room.arena.add(c.tr)
	a.sessions[c.tr] = session{id: c.id}
	metrics.RoomConnectedClients.Inc()
	if len(a.sessions) == 1 {
		a.room.notifyFirstSession()
	}

	data, err := domain.EncodeEvent(domain.NewConnectedEvent(c.id, len(a.sessions)))
	if err != nil {
		slog.Error("Failed to encode connected event", "room", a.room.name, "error", err)
	} else if err := c.tr.send(data); err != nil {
		slog.Debug("Connected event not delivered", "room", a.room.name, "session_id", c.id.String(), "error", err)
	}

	slog.Debug("Session registered", "room", a.room.name, "session_id", c.id.String(), "total_sessions", len(a.sessions))
	c.replyCh <- registerReply{connections: len(a.sessions)}
}

// handleBroadcast fans the event out to every registered session. Delivery is
// best effort and independent per session: a failed send is logged and skipped,
// never removed here. Reconciliation happens on that session's close or error
// signal.
func (a *actor) handleBroadcast(c broadcastCmd) {
	metrics.BroadcastsTotal.WithLabelValues(c.eventType).Inc()
	for tr, s := range a.sessions {
		if err := tr.send(c.data); err != nil {
			metrics.BroadcastSendFailuresTotal.Inc()
			slog.Debug("Broadcast send failed", "room", a.room.name, "session_id", s.id.String(), "error", err)
		}
	}
}

// handleMessage implements the minimal client-to-server protocol: a JSON ping
// gets a pong reply, everything else (including garbage) is silently dropped.
func (a *actor) handleMessage(c messageCmd) {
	s, ok := a.sessions[c.tr]
	if !ok {
		return
	}

	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(c.payload, &msg); err != nil {
		return
	}
	if msg.Type == "ping" {
		if err := c.tr.send(pongMessage); err != nil {
			slog.Debug("Pong not delivered", "room", a.room.name, "session_id", s.id.String(), "error", err)
		}
	}
}

func (a *actor) handleRemove(c removeCmd) {
	s, ok := a.sessions[c.tr]
	if !ok {
		return
	}

	delete(a.sessions, c.tr)
	metrics.RoomConnectedClients.Dec()
	slog.Debug("Session removed", "room", a.room.name, "session_id", s.id.String(), "remaining_sessions", len(a.sessions))

	if len(a.sessions) == 0 {
		a.room.notifyLastSession()
	}
}

func (a *actor) handleStop() {
	for tr := range a.sessions {
		a.room.arena.remove(tr)
		tr.stop()
		delete(a.sessions, tr)
		metrics.RoomConnectedClients.Dec()
	}
}
