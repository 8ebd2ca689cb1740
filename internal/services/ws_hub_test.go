package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub registers the server side of a fresh connection under userID and
// returns the client side
func dialHub(t *testing.T, hub *WSHub, userID string) *websocket.Conn {
	t.Helper()

	registered := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	return client
}

func TestWSHub_PublishDeliversChange(t *testing.T) {
	hub := NewWSHub()
	client := dialHub(t, hub, "u1")
	require.True(t, hub.IsOnline("u1"))

	hub.Publish("u1", Change{Resource: ResourceRealm, ID: "r1", Action: ActionCreated})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeChange, msg.Type)
	require.NotNil(t, msg.Change)
	assert.Equal(t, Change{Resource: ResourceRealm, ID: "r1", Action: ActionCreated}, *msg.Change)
	assert.NotZero(t, msg.Timestamp)
}

func TestWSHub_OfflineUser(t *testing.T) {
	hub := NewWSHub()

	assert.False(t, hub.IsOnline("nobody"))
	assert.Error(t, hub.SendToUser("nobody", WSMessage{Type: MessageTypePong}))
	hub.Publish("nobody", Change{Resource: ResourceTag, ID: "t1", Action: ActionDeleted})
}

func TestWSHub_ReplacedConnectionIsNotUnregistered(t *testing.T) {
	hub := NewWSHub()

	var first, second *websocket.Conn
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register("u1", conn)
		conns <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c1.Close()
	first = <-conns

	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c2.Close()
	second = <-conns

	hub.Unregister("u1", first)
	assert.True(t, hub.IsOnline("u1"), "a stale connection must not drop its replacement")

	hub.Unregister("u1", second)
	assert.False(t, hub.IsOnline("u1"))
}
