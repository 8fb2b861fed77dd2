package handler

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
	"github.com/vmihailenco/msgpack/v5"

	"github.com/oneshare/signal-server-go/internal/lan"
	"github.com/oneshare/signal-server-go/internal/service"
	"github.com/oneshare/signal-server-go/internal/signaling"
	"github.com/oneshare/signal-server-go/internal/store"
)

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T) (*httptest.Server, *store.RoomStore) {
	t.Helper()

	rooms := store.New(time.Hour)
	t.Cleanup(rooms.Stop)

	relay := signaling.NewRelay(
		signaling.NewHub(),
		rooms,
		service.NewRateLimits(service.DefaultPolicies, service.MemoryLimiters),
		service.NewTokenService("", time.Minute),
		service.NewCredentialService([]string{"stun:stun.example.org:3478"}, nil, "", time.Minute),
		lan.NewRegistry(),
	)
	srv := httptest.NewServer(NewWSHandler(relay, "*"))
	t.Cleanup(func() {
		relay.Shutdown()
		srv.Close()
	})
	return srv, rooms
}

func dial(t *testing.T, srv *httptest.Server, subprotocol string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// readEvent reads frames until one named event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		msgType, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var got wireEvent
		if msgType == websocket.BinaryMessage {
			var raw struct {
				Event string `msgpack:"event"`
				Data  any    `msgpack:"data"`
			}
			require.NoError(t, msgpack.Unmarshal(msg, &raw))
			data, err := json.Marshal(raw.Data)
			require.NoError(t, err)
			got = wireEvent{Event: raw.Event, Data: data}
		} else {
			require.NoError(t, json.Unmarshal(msg, &got))
		}
		if got.Event == event {
			return got
		}
	}
}

func TestWSHandler(t *testing.T) {
	t.Run("negotiates subprotocol", func(t *testing.T) {
		srv, _ := newWSServer(t)

		conn := dial(t, srv, signaling.SubprotocolMsgpack)
		assert.Equal(t, signaling.SubprotocolMsgpack, conn.Subprotocol())

		conn = dial(t, srv, signaling.SubprotocolJSON)
		assert.Equal(t, signaling.SubprotocolJSON, conn.Subprotocol())
	})

	t.Run("sender disconnect closes the room for receivers", func(t *testing.T) {
		srv, rooms := newWSServer(t)

		sender := dial(t, srv, signaling.SubprotocolJSON)
		sendJSON(t, sender, signaling.EventCreateRoom, map[string]any{
			"files": []map[string]any{{"name": "a.bin", "size": 1000}},
		})
		var created struct {
			ShareID string `json:"shareId"`
		}
		require.NoError(t, json.Unmarshal(readEvent(t, sender, signaling.EventRoomCreated).Data, &created))
		require.NotEmpty(t, created.ShareID)

		receiver := dial(t, srv, signaling.SubprotocolMsgpack)
		frame, err := msgpack.Marshal(map[string]any{"event": signaling.EventJoinRoom, "data": created.ShareID})
		require.NoError(t, err)
		require.NoError(t, receiver.WriteMessage(websocket.BinaryMessage, frame))

		var joined signaling.RoomJoinOKPayload
		require.NoError(t, json.Unmarshal(readEvent(t, receiver, signaling.EventRoomJoinOK).Data, &joined))
		assert.Equal(t, created.ShareID, joined.ShareID)
		require.Len(t, joined.Peers, 1)
		readEvent(t, sender, signaling.EventPeerJoined)

		require.NoError(t, sender.Close())

		var closed signaling.RoomClosedPayload
		require.NoError(t, json.Unmarshal(readEvent(t, receiver, signaling.EventRoomClosed).Data, &closed))
		assert.Equal(t, created.ShareID, closed.ShareID)

		_, ok := rooms.Room(created.ShareID)
		assert.False(t, ok)
	})

	t.Run("rejects foreign origins", func(t *testing.T) {
		h := NewWSHandler(nil, "https://share.example.com")
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		assert.False(t, h.upgrader.CheckOrigin(req))

		req.Header.Set("Origin", "https://share.example.com")
		assert.True(t, h.upgrader.CheckOrigin(req))
	})
}
