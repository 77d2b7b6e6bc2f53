package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline  = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongDeadline   = 60 * time.Second
	sendBufferSize = 16
)

// Fixed keepalive pair answered at the transport layer. It never wakes a
// suspended actor and never appears in the event stream.
var (
	keepaliveRequest  = []byte("ping")
	keepaliveResponse = []byte("pong")
)

var (
	errTransportClosed = errors.New("transport closed")
	errSendBufferFull  = errors.New("send buffer full")
)

// attachment is the minimal recoverable metadata stored alongside each live
// connection. A resumed actor reads it back to rebuild its registry with the
// original session identities instead of minting new ones.
type attachment struct {
	SessionID uuid.UUID `json:"session_id"`
}

// transport owns one client connection: the write goroutine, protocol-level
// ping/pong deadlines, and the serialized attachment. Transports are held by
// the room's arena and outlive the actor.
type transport struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	sendCh   chan []byte
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	meta []byte
}

func newTransport(conn *websocket.Conn, clock clockwork.Clock) *transport {
	tr := &transport{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, sendBufferSize),
		doneCh: make(chan struct{}),
	}
	tr.updateReadDeadline()
	conn.SetPongHandler(func(string) error {
		tr.updateReadDeadline()
		return nil
	})
	tr.wg.Add(1)
	go tr.writeLoop()
	return tr
}

func (tr *transport) writeLoop() {
	ticker := tr.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer tr.wg.Done()

	for {
		select {
		case msg, ok := <-tr.sendCh:
			if !ok {
				return
			}
			tr.updateWriteDeadline()
			if err := tr.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			tr.updateWriteDeadline()
			if err := tr.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-tr.doneCh:
			return
		}
	}
}

// send queues a message for delivery. It never blocks: a full buffer or a
// closed transport reports an error the caller is expected to ignore, since a
// failing peer is reconciled via its close/error signal, not here.
func (tr *transport) send(msg []byte) error {
	select {
	case <-tr.doneCh:
		return errTransportClosed
	default:
	}

	select {
	case tr.sendCh <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (tr *transport) stop() {
	tr.stopOnce.Do(func() {
		close(tr.doneCh)
		_ = tr.conn.Close()
	})
	tr.wg.Wait()
}

func (tr *transport) storeAttachment(att attachment) error {
	data, err := json.Marshal(att)
	if err != nil {
		return err
	}
	tr.mu.Lock()
	tr.meta = data
	tr.mu.Unlock()
	return nil
}

func (tr *transport) loadAttachment() (attachment, error) {
	tr.mu.Lock()
	data := tr.meta
	tr.mu.Unlock()

	var att attachment
	if data == nil {
		return att, errors.New("no attachment")
	}
	if err := json.Unmarshal(data, &att); err != nil {
		return att, err
	}
	return att, nil
}

func (tr *transport) updateWriteDeadline() {
	_ = tr.conn.SetWriteDeadline(tr.clock.Now().Add(writeDeadline))
}

func (tr *transport) updateReadDeadline() {
	_ = tr.conn.SetReadDeadline(tr.clock.Now().Add(pongDeadline))
}

// arena tracks the open transports of one room independently of the actor's
// lifecycle. A suspended actor's registry is rebuilt by enumerating the arena
// and reading each transport's attachment back.
type arena struct {
	mu         sync.Mutex
	transports map[*transport]struct{}
}

func newArena() *arena {
	return &arena{transports: make(map[*transport]struct{})}
}

func (a *arena) add(tr *transport) {
	a.mu.Lock()
	a.transports[tr] = struct{}{}
	a.mu.Unlock()
}

func (a *arena) remove(tr *transport) {
	a.mu.Lock()
	delete(a.transports, tr)
	a.mu.Unlock()
}

func (a *arena) snapshot() []*transport {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*transport, 0, len(a.transports))
	for tr := range a.transports {
		out = append(out, tr)
	}
	return out
}
