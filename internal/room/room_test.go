package room

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

// testDirectory sets up a Directory behind a test HTTP server that joins
// connections to the room named in the path. Returns the directory and a dial
// function.
func testDirectory(t *testing.T, cfg Config, onFirst, onLast func(string)) (*Directory, func(roomName string) *ws.Conn) {
	t.Helper()

	d := NewDirectory(cfg, onFirst, onLast, clockwork.NewRealClock())
	t.Cleanup(func() { d.Stop() })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roomName := strings.TrimPrefix(r.URL.Path, "/ws/")
		_, err := d.Resolve(roomName).Accept(w, r)
		if err == domain.ErrNotAnUpgrade {
			w.WriteHeader(http.StatusUpgradeRequired)
		}
	}))
	t.Cleanup(func() { server.Close() })

	dial := func(roomName string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + roomName
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return d, dial
}

// readEvent reads one frame and decodes it as a generic JSON object.
func readEvent(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(msg, &result))
	return result
}

// waitForCount polls until the room reports the expected connection count.
func waitForCount(d *Directory, roomName string, expected int) bool {
	for range 200 {
		if d.ConnectionCount(roomName) == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// waitForSuspended polls until the room's actor has gone away.
func waitForSuspended(rm *Room) bool {
	for range 400 {
		if rm.Suspended() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestRoom_ConnectedEventOnJoin(t *testing.T) {
	_, dial := testDirectory(t, Config{}, nil, nil)

	conn := dial("all-hands")
	ev := readEvent(t, conn)

	assert.Equal(t, "connected", ev["type"])
	assert.Equal(t, float64(1), ev["connections"])
	_, err := uuid.Parse(ev["sessionId"].(string))
	assert.NoError(t, err)
}

func TestRoom_BroadcastReachesAllSessions(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	conn1 := dial("all-hands")
	conn2 := dial("all-hands")
	readEvent(t, conn1)
	readEvent(t, conn2)
	require.True(t, waitForCount(d, "all-hands", 2))

	questionID := uuid.New()
	require.NoError(t, d.Broadcast("all-hands", domain.NewQuestionVotedEvent(questionID, 7)))

	for _, conn := range []*ws.Conn{conn1, conn2} {
		ev := readEvent(t, conn)
		assert.Equal(t, "question:voted", ev["type"])
		assert.Equal(t, questionID.String(), ev["questionId"])
		assert.Equal(t, float64(7), ev["votes"])
	}
}

func TestRoom_BroadcastScopedToRoom(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	connA := dial("room-a")
	connB := dial("room-b")
	readEvent(t, connA)
	readEvent(t, connB)

	require.NoError(t, d.Broadcast("room-a", domain.NewQuestionAnsweredEvent(uuid.New())))

	ev := readEvent(t, connA)
	assert.Equal(t, "question:answered", ev["type"])

	// Nothing must arrive in room-b.
	require.NoError(t, connB.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err)
}

func TestRoom_BroadcastSurvivesFailingSession(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	conns := make([]*ws.Conn, 3)
	ids := make([]uuid.UUID, 3)
	for i := range conns {
		conns[i] = dial("all-hands")
		ev := readEvent(t, conns[i])
		id, err := uuid.Parse(ev["sessionId"].(string))
		require.NoError(t, err)
		ids[i] = id
	}
	require.True(t, waitForCount(d, "all-hands", 3))

	// Kill the writer of the last joiner without closing its connection, so
	// sends to it fail while the session stays registered.
	rm := d.Resolve("all-hands")
	var broken *transport
	for _, tr := range rm.arena.snapshot() {
		att, err := tr.loadAttachment()
		require.NoError(t, err)
		if att.SessionID == ids[2] {
			broken = tr
		}
	}
	require.NotNil(t, broken)
	broken.stopOnce.Do(func() { close(broken.doneCh) })
	broken.wg.Wait()

	questionID := uuid.New()
	require.NoError(t, d.Broadcast("all-hands", domain.NewQuestionVotedEvent(questionID, 4)))

	// The healthy sessions receive the event.
	for _, conn := range conns[:2] {
		ev := readEvent(t, conn)
		assert.Equal(t, "question:voted", ev["type"])
		assert.Equal(t, questionID.String(), ev["questionId"])
	}

	// The failing session got nothing, but fan-out did not evict it.
	require.NoError(t, conns[2].SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conns[2].ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 3, d.ConnectionCount("all-hands"))

	// Removal happens through the close signal instead.
	conns[2].Close()
	require.True(t, waitForCount(d, "all-hands", 2))
}

func TestRoom_BroadcastOrderPreserved(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	conn := dial("all-hands")
	readEvent(t, conn)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, d.Broadcast("all-hands", domain.NewQuestionAnsweredEvent(ids[i])))
	}

	for _, id := range ids {
		ev := readEvent(t, conn)
		assert.Equal(t, id.String(), ev["questionId"])
	}
}

func TestRoom_ConnectionCountTracksDisconnects(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	conn1 := dial("all-hands")
	conn2 := dial("all-hands")
	readEvent(t, conn1)
	readEvent(t, conn2)
	require.True(t, waitForCount(d, "all-hands", 2))

	conn1.Close()
	require.True(t, waitForCount(d, "all-hands", 1))

	conn2.Close()
	require.True(t, waitForCount(d, "all-hands", 0))
}

func TestRoom_FullRoomRejectsSession(t *testing.T) {
	d, dial := testDirectory(t, Config{MaxSessionsPerRoom: 1}, nil, nil)

	conn1 := dial("all-hands")
	readEvent(t, conn1)
	require.True(t, waitForCount(d, "all-hands", 1))

	// The second upgrade completes, then the server closes the connection
	// without registering it.
	conn2 := dial("all-hands")
	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn2.ReadMessage()
	assert.Error(t, err)

	assert.Equal(t, 1, d.ConnectionCount("all-hands"))

	// The rejected transport must not linger in the registry: once the
	// accepted client leaves, the room is empty.
	conn1.Close()
	require.True(t, waitForCount(d, "all-hands", 0))
}

func TestRoom_CapCountsOnlyLiveSessions(t *testing.T) {
	d, dial := testDirectory(t, Config{MaxSessionsPerRoom: 2, IdleTimeout: 50 * time.Millisecond}, nil, nil)

	conn1 := dial("all-hands")
	readEvent(t, conn1)

	rm := d.Resolve("all-hands")
	require.True(t, waitForSuspended(rm))

	// Joining a suspended room resumes the actor; the joiner must not be
	// counted against the cap by the restored registry.
	conn2 := dial("all-hands")
	ev := readEvent(t, conn2)
	assert.Equal(t, "connected", ev["type"])
	assert.Equal(t, float64(2), ev["connections"])
	require.True(t, waitForCount(d, "all-hands", 2))

	conn3 := dial("all-hands")
	require.NoError(t, conn3.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn3.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 2, d.ConnectionCount("all-hands"))
}

func TestRoom_JSONPingGetsPong(t *testing.T) {
	_, dial := testDirectory(t, Config{}, nil, nil)

	conn := dial("all-hands")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"ping"}`)))
	ev := readEvent(t, conn)
	assert.Equal(t, "pong", ev["type"])
}

func TestRoom_GarbageMessagesIgnored(t *testing.T) {
	d, dial := testDirectory(t, Config{}, nil, nil)

	conn := dial("all-hands")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"unknown"}`)))

	// The session survives and still receives broadcasts.
	require.True(t, waitForCount(d, "all-hands", 1))
	require.NoError(t, d.Broadcast("all-hands", domain.NewQuestionAnsweredEvent(uuid.New())))
	ev := readEvent(t, conn)
	assert.Equal(t, "question:answered", ev["type"])
}

func TestRoom_SuspendsWhenIdleAndResumesOnBroadcast(t *testing.T) {
	d, dial := testDirectory(t, Config{IdleTimeout: 50 * time.Millisecond}, nil, nil)

	conn := dial("all-hands")
	readEvent(t, conn)

	rm := d.Resolve("all-hands")
	idsBefore := rm.SessionIDs()
	require.Len(t, idsBefore, 1)

	require.True(t, waitForSuspended(rm), "actor should suspend after the idle timeout")

	// A broadcast resumes the actor, which rebuilds the registry from the
	// still-open transport and delivers as if nothing happened.
	require.NoError(t, d.Broadcast("all-hands", domain.NewQuestionVotedEvent(uuid.New(), 3)))
	ev := readEvent(t, conn)
	assert.Equal(t, "question:voted", ev["type"])

	idsAfter := rm.SessionIDs()
	assert.Equal(t, idsBefore, idsAfter, "session identity must survive suspension")
}

func TestRoom_RawKeepaliveDoesNotResume(t *testing.T) {
	d, dial := testDirectory(t, Config{IdleTimeout: 50 * time.Millisecond}, nil, nil)

	conn := dial("all-hands")
	readEvent(t, conn)

	rm := d.Resolve("all-hands")
	require.True(t, waitForSuspended(rm))

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))

	assert.True(t, rm.Suspended(), "raw keepalive must be answered below the actor")
}

func TestRoom_DisconnectWhileSuspended(t *testing.T) {
	var lastCalls atomic.Int32
	onLast := func(string) { lastCalls.Add(1) }

	d, dial := testDirectory(t, Config{IdleTimeout: 50 * time.Millisecond}, nil, onLast)

	conn := dial("all-hands")
	readEvent(t, conn)

	rm := d.Resolve("all-hands")
	require.True(t, waitForSuspended(rm))

	// Closing the client resumes the actor just long enough to remove the
	// restored session.
	conn.Close()
	require.True(t, waitForCount(d, "all-hands", 0))

	for range 100 {
		if lastCalls.Load() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(1), lastCalls.Load())
}

func TestRoom_FirstAndLastSessionCallbacks(t *testing.T) {
	var firstCalls, lastCalls atomic.Int32

	d, dial := testDirectory(t, Config{},
		func(string) { firstCalls.Add(1) },
		func(string) { lastCalls.Add(1) },
	)

	conn1 := dial("all-hands")
	readEvent(t, conn1)
	conn2 := dial("all-hands")
	readEvent(t, conn2)
	require.True(t, waitForCount(d, "all-hands", 2))

	// Only the first join triggers the callback.
	assert.Equal(t, int32(1), firstCalls.Load())
	assert.Equal(t, int32(0), lastCalls.Load())

	conn1.Close()
	require.True(t, waitForCount(d, "all-hands", 1))
	assert.Equal(t, int32(0), lastCalls.Load())

	conn2.Close()
	require.True(t, waitForCount(d, "all-hands", 0))

	for range 100 {
		if lastCalls.Load() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(1), lastCalls.Load())
	assert.Equal(t, int32(1), firstCalls.Load())
}

func TestDirectory_ResolveIsStable(t *testing.T) {
	d := NewDirectory(Config{}, nil, nil, clockwork.NewRealClock())
	t.Cleanup(func() { d.Stop() })

	rm1 := d.Resolve("all-hands")
	rm2 := d.Resolve("all-hands")
	other := d.Resolve("retro")

	assert.Same(t, rm1, rm2)
	assert.NotSame(t, rm1, other)
}

func TestDirectory_ConcurrentResolveSameRoom(t *testing.T) {
	d := NewDirectory(Config{}, nil, nil, clockwork.NewRealClock())
	t.Cleanup(func() { d.Stop() })

	const goroutines = 32
	results := make([]*Room, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Resolve("all-hands")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestDirectory_NotAnUpgrade(t *testing.T) {
	d := NewDirectory(Config{}, nil, nil, clockwork.NewRealClock())
	t.Cleanup(func() { d.Stop() })

	req := httptest.NewRequest(http.MethodGet, "/ws/all-hands", nil)
	rec := httptest.NewRecorder()

	_, err := d.Resolve("all-hands").Accept(rec, req)
	assert.ErrorIs(t, err, domain.ErrNotAnUpgrade)
}
