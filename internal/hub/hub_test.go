package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardroom/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialTestHub starts an httptest server that registers every incoming
// connection on the hub, and returns a connected client-side socket.
func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		h.Register(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_PublishBroadcastsSnapshot(t *testing.T) {
	snapshot := models.StateSnapshot{
		Players: []models.PlayerSnapshot{{ID: 1, Name: "alice", Balance: 100}},
	}
	h := New(func() models.StateSnapshot { return snapshot })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := dialTestHub(t, h)
	b := dialTestHub(t, h)

	h.Publish()

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, TypeState, env.Type)

		raw, err := json.Marshal(env.Data)
		require.NoError(t, err)
		var got models.StateSnapshot
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Len(t, got.Players, 1)
		assert.Equal(t, "alice", got.Players[0].Name)
	}
}

func TestHub_AnnounceReachesAllClients(t *testing.T) {
	h := New(func() models.StateSnapshot { return models.StateSnapshot{} })

	a := dialTestHub(t, h)
	b := dialTestHub(t, h)

	h.Announce("giveaway closed")

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, TypeNotice, env.Type)
		assert.Equal(t, "giveaway closed", env.Data)
	}
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	client := &Client{ID: 1, send: make(chan []byte, 2)}

	// Fill the queue; further sends must return immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			client.Send([]byte("frame"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full queue")
	}
	assert.Len(t, client.send, 2)
}

func TestHub_RemoveStopsDelivery(t *testing.T) {
	h := New(func() models.StateSnapshot { return models.StateSnapshot{} })

	conn := dialTestHub(t, h)
	h.Announce("first")
	env := readEnvelope(t, conn)
	assert.Equal(t, "first", env.Data)

	// The handler-side client has id 1 (first registration).
	h.Remove(1)
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after Remove")
}
