package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneshare/signal-server-go/internal/lan"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/service"
	"github.com/oneshare/signal-server-go/internal/store"
)

type relayFixture struct {
	relay  *Relay
	store  *store.RoomStore
	tokens *service.TokenService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	secret   string
	policies map[service.Action]service.Policy
}

func withSecret(secret string) fixtureOption {
	return func(c *fixtureConfig) { c.secret = secret }
}

func withPolicies(p map[service.Action]service.Policy) fixtureOption {
	return func(c *fixtureConfig) { c.policies = p }
}

func newRelayFixture(t *testing.T, opts ...fixtureOption) *relayFixture {
	t.Helper()

	cfg := fixtureConfig{policies: service.DefaultPolicies}
	for _, opt := range opts {
		opt(&cfg)
	}

	rooms := store.New(time.Hour)
	t.Cleanup(rooms.Stop)

	tokens := service.NewTokenService(cfg.secret, 15*time.Minute)
	creds := service.NewCredentialService([]string{"stun:stun.example.org:3478"}, nil, "", time.Hour)
	relay := NewRelay(
		NewHub(),
		rooms,
		service.NewRateLimits(cfg.policies, service.MemoryLimiters),
		tokens,
		creds,
		lan.NewRegistry(),
	)
	return &relayFixture{relay: relay, store: rooms, tokens: tokens}
}

func (f *relayFixture) connect(id string) *Client {
	c := NewClient(id, "203.0.113.7", nil, JSONCodec{})
	f.relay.Connect(c)
	return c
}

func (f *relayFixture) emit(t *testing.T, c *Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.relay.Handle(c, Frame{Event: event, Data: raw})
}

// drain returns everything queued for c.
func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case env := <-c.send:
			out = append(out, env)
		default:
			return out
		}
	}
}

// expectOne drains c and requires exactly one event named event.
func expectOne(t *testing.T, c *Client, event string) Envelope {
	t.Helper()
	var found []Envelope
	for _, env := range drain(c) {
		if env.Event == event {
			found = append(found, env)
		}
	}
	require.Len(t, found, 1, "expected one %s for %s", event, c.ID)
	return found[0]
}

func events(envs []Envelope) []string {
	names := make([]string, 0, len(envs))
	for _, env := range envs {
		names = append(names, env.Event)
	}
	return names
}

func twoFiles() []model.FileMeta {
	return []model.FileMeta{
		{Name: "a.bin", Size: 600},
		{Name: "b.bin", Size: 400},
	}
}

func (f *relayFixture) createRoom(t *testing.T, sender *Client) RoomCreatedPayload {
	t.Helper()
	f.emit(t, sender, EventCreateRoom, map[string]any{"files": twoFiles()})
	env := expectOne(t, sender, EventRoomCreated)
	payload, ok := env.Data.(RoomCreatedPayload)
	require.True(t, ok)
	return payload
}

func TestRelayCreateRoom(t *testing.T) {
	t.Run("creates a room bound to the sender", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")

		created := f.createRoom(t, sender)
		assert.Len(t, created.ShareID, 6)
		assert.NotEmpty(t, created.DeletionKey)
		assert.Empty(t, created.RoomToken)
		require.Len(t, created.ICEServers, 1)
		assert.Nil(t, created.TURNCredentials)

		room, ok := f.store.Room(created.ShareID)
		require.True(t, ok)
		assert.Equal(t, "sender", room.SenderID)
		assert.Equal(t, int64(1000), model.TotalSize(room.Files))
	})

	t.Run("accepts a bare file list", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")

		f.emit(t, sender, EventCreateRoom, twoFiles())
		expectOne(t, sender, EventRoomCreated)
	})

	t.Run("issues a room token in signed mode", func(t *testing.T) {
		f := newRelayFixture(t, withSecret("secret"))
		sender := f.connect("sender")

		created := f.createRoom(t, sender)
		require.NotEmpty(t, created.RoomToken)
		assert.True(t, f.tokens.Verify(created.ShareID, created.RoomToken))
	})

	t.Run("rejects bad payloads", func(t *testing.T) {
		tests := []struct {
			name   string
			data   any
			reason string
		}{
			{name: "empty object", data: map[string]any{}, reason: ReasonInvalidPayload},
			{name: "not an object", data: 42, reason: ReasonInvalidPayload},
			{name: "empty file list", data: []model.FileMeta{}, reason: ReasonInvalidPayload},
			{
				name:   "unnamed file",
				data:   map[string]any{"files": []map[string]any{{"name": "", "size": 1}}},
				reason: "files[0].name must be non-empty string",
			},
			{
				name: "bad config",
				data: map[string]any{
					"files":  twoFiles(),
					"config": map[string]any{"erasure": map[string]any{"enabled": "yes"}},
				},
				reason: "erasure.enabled must be boolean",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newRelayFixture(t)
				sender := f.connect("sender")

				f.emit(t, sender, EventCreateRoom, tt.data)
				env := expectOne(t, sender, EventCreateRoomError)
				assert.Equal(t, ErrorPayload{Reason: tt.reason}, env.Data)
				assert.Equal(t, 0, f.store.Stats().Rooms)
			})
		}
	})

	t.Run("a connection creates at most one room", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		f.createRoom(t, sender)

		f.emit(t, sender, EventCreateRoom, twoFiles())
		env := expectOne(t, sender, EventCreateRoomError)
		assert.Equal(t, ErrorPayload{Reason: ReasonAlreadyInRoom}, env.Data)
		assert.Equal(t, 1, f.store.Stats().Rooms)
	})

	t.Run("attaches a sender to an existing room", func(t *testing.T) {
		f := newRelayFixture(t)
		keys, err := f.store.CreateRoom(twoFiles(), nil)
		require.NoError(t, err)

		receiver := f.connect("r1")
		f.emit(t, receiver, EventJoinRoom, keys.ShareID)
		drain(receiver)

		sender := f.connect("sender")
		f.emit(t, sender, EventCreateRoom, map[string]any{
			"shareId": keys.ShareID,
			"config":  map[string]any{"iceHints": map[string]any{"preferHost": true}},
		})

		created := expectOne(t, sender, EventRoomCreated).Data.(RoomCreatedPayload)
		assert.Equal(t, keys.ShareID, created.ShareID)
		assert.Equal(t, keys.DeletionKey, created.DeletionKey)

		got := drain(receiver)
		assert.ElementsMatch(t, []string{EventConfigUpdated, EventPeerJoined}, events(got))

		room, _ := f.store.Room(keys.ShareID)
		assert.Equal(t, "sender", room.SenderID)
		require.NotNil(t, room.TransferConfig.ICEHints)
		assert.True(t, *room.TransferConfig.ICEHints.PreferHost)
	})

	t.Run("attach to unknown room", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")

		f.emit(t, sender, EventCreateRoom, map[string]any{"shareId": "nope00"})
		env := expectOne(t, sender, EventCreateRoomError)
		assert.Equal(t, ErrorPayload{Reason: ReasonRoomNotFound}, env.Data)
	})

	t.Run("rate limited per address", func(t *testing.T) {
		f := newRelayFixture(t, withPolicies(map[service.Action]service.Policy{
			service.ActionWSCreate: {Capacity: 1, RefillPerSec: 0.001},
		}))
		first := f.connect("s1")
		second := f.connect("s2")

		f.createRoom(t, first)
		f.emit(t, second, EventCreateRoom, twoFiles())
		env := expectOne(t, second, EventCreateRoomError)
		assert.Equal(t, ErrorPayload{Reason: ReasonRateLimited}, env.Data)
	})
}

func TestRelayJoinRoom(t *testing.T) {
	t.Run("join by share id", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		created := f.createRoom(t, sender)

		r1 := f.connect("r1")
		f.emit(t, r1, EventJoinRoom, created.ShareID)

		ok := expectOne(t, r1, EventRoomJoinOK).Data.(RoomJoinOKPayload)
		assert.Equal(t, created.ShareID, ok.ShareID)
		assert.Equal(t, twoFiles(), ok.FileMetadata)
		assert.Equal(t, []string{"sender"}, ok.Peers)

		joined := expectOne(t, sender, EventPeerJoined)
		assert.Equal(t, PeerPayload{PeerID: "r1"}, joined.Data)

		r2 := f.connect("r2")
		f.emit(t, r2, EventJoinRoom, map[string]any{"shareId": created.ShareID})
		ok = expectOne(t, r2, EventRoomJoinOK).Data.(RoomJoinOKPayload)
		assert.Equal(t, []string{"r1", "sender"}, ok.Peers)
		expectOne(t, r1, EventPeerJoined)
		expectOne(t, sender, EventPeerJoined)
	})

	t.Run("failures", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		created := f.createRoom(t, sender)

		tests := []struct {
			name   string
			conn   string
			data   any
			reason string
		}{
			{name: "missing share id", conn: "r1", data: map[string]any{}, reason: ReasonInvalidPayload},
			{name: "unknown room", conn: "r1", data: "zzzzzz", reason: ReasonRoomNotFound},
			{name: "sender joins own room", conn: "sender", data: created.ShareID, reason: ReasonAlreadyInRoom},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c, ok := f.relay.hub.clients[tt.conn]
				if !ok {
					c = f.connect(tt.conn)
				}
				drain(c)

				f.emit(t, c, EventJoinRoom, tt.data)
				env := expectOne(t, c, EventJoinRoomError)
				assert.Equal(t, ErrorPayload{Reason: tt.reason}, env.Data)
			})
		}
	})

	t.Run("signed mode requires a valid token", func(t *testing.T) {
		f := newRelayFixture(t, withSecret("secret"))
		sender := f.connect("sender")
		created := f.createRoom(t, sender)

		r1 := f.connect("r1")
		f.emit(t, r1, EventJoinRoom, created.ShareID)
		env := expectOne(t, r1, EventJoinRoomError)
		assert.Equal(t, ErrorPayload{Reason: ReasonInvalidToken}, env.Data)

		f.emit(t, r1, EventJoinRoom, map[string]any{"shareId": created.ShareID, "roomToken": "1.bogus"})
		expectOne(t, r1, EventJoinRoomError)

		f.emit(t, r1, EventJoinRoom, map[string]any{"shareId": created.ShareID, "roomToken": created.RoomToken})
		expectOne(t, r1, EventRoomJoinOK)
	})

	t.Run("joiner receives current lan peers", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		created := f.createRoom(t, sender)

		f.emit(t, sender, EventLANAnnounce, map[string]any{
			"shareId": created.ShareID,
			"addrs":   []string{"192.168.1.10:7000"},
		})
		drain(sender)

		r1 := f.connect("r1")
		f.emit(t, r1, EventJoinRoom, created.ShareID)
		env := expectOne(t, r1, EventLANPeers)
		assert.Equal(t, LANPeersPayload{{PeerID: "sender", Addrs: []string{"192.168.1.10:7000"}}}, env.Data)
	})
}

func TestRelayNegotiation(t *testing.T) {
	f := newRelayFixture(t)
	a := f.connect("a")
	b := f.connect("b")

	t.Run("forwards with sender id", func(t *testing.T) {
		for _, event := range []string{EventNegotiationOffer, EventNegotiationAnswer, EventNegotiationCand} {
			f.emit(t, a, event, map[string]any{"targetId": "b", "sdp": "v=0"})

			env := expectOne(t, b, event)
			msg := env.Data.(map[string]any)
			assert.Equal(t, "a", msg["senderId"])
			assert.Equal(t, "b", msg["targetId"])
			assert.Equal(t, "v=0", msg["sdp"])
			assert.Empty(t, drain(a))
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		f.emit(t, a, EventNegotiationOffer, map[string]any{"targetId": "ghost"})
		env := expectOne(t, a, EventNegotiationError)
		assert.Equal(t, ErrorPayload{Reason: ReasonTargetNotFound, TargetID: "ghost"}, env.Data)
	})

	t.Run("missing target", func(t *testing.T) {
		f.emit(t, a, EventNegotiationCand, map[string]any{"candidate": "x"})
		env := expectOne(t, a, EventNegotiationError)
		assert.Equal(t, ErrorPayload{Reason: ReasonInvalidPayload}, env.Data)
	})
}

func TestRelayCredentialRefresh(t *testing.T) {
	f := newRelayFixture(t)
	c := f.connect("c")

	f.emit(t, c, EventCredentialRefresh, nil)
	env := expectOne(t, c, EventCredentialRefreshResult)
	servers := env.Data.(service.AssistServers)
	require.Len(t, servers.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, servers.ICEServers[0].URLs)
}

func TestRelayRoomLifecycle(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)

	r1 := f.connect("r1")
	r2 := f.connect("r2")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	f.emit(t, r2, EventJoinRoom, created.ShareID)
	drain(sender)
	drain(r1)
	drain(r2)

	f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": 400})

	want := model.AggregateProgress{
		PerReceiverBytes: map[string]int64{"r1": 400},
		TotalBytes:       400,
		ReceiverCount:    1,
		TotalSize:        1000,
	}
	for _, c := range []*Client{sender, r1, r2} {
		env := expectOne(t, c, EventAggregateProgress)
		assert.Equal(t, AggregateProgressPayload{ShareID: created.ShareID, AggregateProgress: want}, env.Data)
	}

	f.relay.Depart(sender)

	for _, c := range []*Client{r1, r2} {
		env := expectOne(t, c, EventRoomClosed)
		assert.Equal(t, RoomClosedPayload{ShareID: created.ShareID}, env.Data)
	}
	assert.Empty(t, drain(sender))

	_, ok := f.store.Room(created.ShareID)
	assert.False(t, ok)
	assert.False(t, f.store.CloseByDeletionKey(created.DeletionKey).Closed)
	for _, id := range []string{"sender", "r1", "r2"} {
		_, bound := f.store.ShareIDOf(id)
		assert.False(t, bound, id)
	}

	f.emit(t, r1, EventJoinRoom, created.ShareID)
	env := expectOne(t, r1, EventJoinRoomError)
	assert.Equal(t, ErrorPayload{Reason: ReasonRoomNotFound}, env.Data)
}

func TestRelayProgressReport(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)
	r1 := f.connect("r1")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	drain(sender)
	drain(r1)

	t.Run("malformed and out of range reports are ignored", func(t *testing.T) {
		f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID})
		f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": -1})
		f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": 1e300})
		f.emit(t, r1, EventProgressReport, "nope")
		assert.Empty(t, drain(r1))
		assert.Empty(t, drain(sender))
	})

	t.Run("latest report wins", func(t *testing.T) {
		f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": 400})
		f.emit(t, r1, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": 100})
		envs := drain(sender)
		require.Len(t, envs, 2)
		last := envs[1].Data.(AggregateProgressPayload)
		assert.Equal(t, int64(100), last.TotalBytes)
		assert.Equal(t, map[string]int64{"r1": 100}, last.PerReceiverBytes)
		drain(r1)
	})

	t.Run("sender reports are recorded", func(t *testing.T) {
		f.emit(t, sender, EventProgressReport, map[string]any{"shareId": created.ShareID, "bytes": 10})
		env := expectOne(t, r1, EventAggregateProgress)
		agg := env.Data.(AggregateProgressPayload)
		assert.Equal(t, int64(110), agg.TotalBytes)
		drain(sender)
	})
}

func TestRelayBackpressure(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)
	r1 := f.connect("r1")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	drain(sender)
	drain(r1)

	f.emit(t, r1, EventBackpressure, map[string]any{"shareId": created.ShareID})
	env := expectOne(t, sender, EventSenderThrottle)
	assert.Equal(t, SenderThrottlePayload{ReceiverID: "r1", Level: 1}, env.Data)

	f.emit(t, r1, EventBackpressure, map[string]any{"shareId": created.ShareID, "level": 3})
	env = expectOne(t, sender, EventSenderThrottle)
	assert.Equal(t, SenderThrottlePayload{ReceiverID: "r1", Level: 3}, env.Data)
	assert.Empty(t, drain(r1))

	outsider := f.connect("outsider")
	f.emit(t, outsider, EventBackpressure, map[string]any{"shareId": created.ShareID})
	assert.Empty(t, drain(sender))
}

func TestRelayConfigUpdate(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)
	r1 := f.connect("r1")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	drain(sender)
	drain(r1)

	f.emit(t, sender, EventConfigUpdate, map[string]any{
		"shareId": created.ShareID,
		"config":  map[string]any{"multiplexing": map[string]any{"maxInFlight": 8}},
	})
	for _, c := range []*Client{sender, r1} {
		env := expectOne(t, c, EventConfigUpdated)
		payload := env.Data.(ConfigUpdatedPayload)
		assert.Equal(t, created.ShareID, payload.ShareID)
		require.NotNil(t, payload.Config.Multiplexing)
		assert.Equal(t, 8.0, *payload.Config.Multiplexing.MaxInFlight)
	}

	t.Run("invalid config is ignored", func(t *testing.T) {
		f.emit(t, sender, EventConfigUpdate, map[string]any{
			"shareId": created.ShareID,
			"config":  map[string]any{"multiplexing": map[string]any{"maxInFlight": 0}},
		})
		assert.Empty(t, drain(sender))
		assert.Empty(t, drain(r1))
	})

	t.Run("outsiders cannot update", func(t *testing.T) {
		outsider := f.connect("outsider")
		f.emit(t, outsider, EventConfigUpdate, map[string]any{
			"shareId": created.ShareID,
			"config":  map[string]any{"transportHints": map[string]any{"allowQUIC": true}},
		})
		assert.Empty(t, drain(sender))

		room, _ := f.store.Room(created.ShareID)
		assert.Nil(t, room.TransferConfig.TransportHints)
	})
}

func TestRelayKeepAlive(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)

	f.emit(t, sender, EventKeepAlive, created.ShareID)
	env := expectOne(t, sender, EventKeepAliveAck)
	assert.Equal(t, KeepAliveAckPayload{OK: true}, env.Data)

	f.emit(t, sender, EventKeepAlive, map[string]any{"shareId": created.ShareID})
	expectOne(t, sender, EventKeepAliveAck)

	f.emit(t, sender, EventKeepAlive, "zzzzzz")
	assert.Empty(t, drain(sender))
}

func TestRelayDeparture(t *testing.T) {
	t.Run("receiver leave notifies the rest and closes the connection", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		created := f.createRoom(t, sender)
		r1 := f.connect("r1")
		r2 := f.connect("r2")
		f.emit(t, r1, EventJoinRoom, created.ShareID)
		f.emit(t, r2, EventJoinRoom, created.ShareID)
		drain(sender)
		drain(r2)

		f.emit(t, r1, EventLeave, nil)

		for _, c := range []*Client{sender, r2} {
			env := expectOne(t, c, EventPeerLeft)
			assert.Equal(t, PeerPayload{PeerID: "r1"}, env.Data)
		}
		select {
		case <-r1.done:
		default:
			t.Fatal("leave should close the connection")
		}

		// The read loop ending afterwards must not run departure again.
		f.relay.Depart(r1)
		assert.Empty(t, drain(sender))
		assert.Equal(t, []string{"r2", "sender"}, f.store.PeersExcept(created.ShareID, ""))
		assert.Equal(t, 2, f.relay.Count())
	})

	t.Run("departure releases lan registrations", func(t *testing.T) {
		f := newRelayFixture(t)
		sender := f.connect("sender")
		created := f.createRoom(t, sender)
		r1 := f.connect("r1")
		f.emit(t, r1, EventJoinRoom, created.ShareID)
		f.emit(t, r1, EventLANAnnounce, map[string]any{
			"shareId": created.ShareID,
			"addrs":   []string{"10.0.0.5:9000"},
		})
		drain(sender)

		f.relay.Depart(r1)

		got := drain(sender)
		assert.Equal(t, []string{EventPeerLeft, EventLANPeers}, events(got))
		assert.Equal(t, LANPeersPayload{}, got[1].Data)
	})

	t.Run("unbound connection", func(t *testing.T) {
		f := newRelayFixture(t)
		c := f.connect("c")
		f.relay.Depart(c)
		assert.Equal(t, 0, f.relay.Count())
	})
}

func TestRelayLAN(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)
	r1 := f.connect("r1")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	drain(sender)
	drain(r1)

	f.emit(t, sender, EventLANAnnounce, map[string]any{
		"shareId": created.ShareID,
		"addrs":   []string{"192.168.1.2:4000", " ", "192.168.1.2:4000"},
	})
	want := LANPeersPayload{{PeerID: "sender", Addrs: []string{"192.168.1.2:4000"}}}
	for _, c := range []*Client{sender, r1} {
		env := expectOne(t, c, EventLANPeers)
		assert.Equal(t, want, env.Data)
	}

	t.Run("outsiders cannot announce", func(t *testing.T) {
		outsider := f.connect("outsider")
		f.emit(t, outsider, EventLANAnnounce, map[string]any{
			"shareId": created.ShareID,
			"addrs":   []string{"10.1.1.1:1"},
		})
		assert.Empty(t, drain(r1))
	})

	t.Run("reset", func(t *testing.T) {
		f.emit(t, sender, EventLANReset, created.ShareID)
		for _, c := range []*Client{sender, r1} {
			env := expectOne(t, c, EventLANPeers)
			assert.Equal(t, LANPeersPayload{}, env.Data)
		}
	})
}

func TestRelayNotifyClosed(t *testing.T) {
	f := newRelayFixture(t)
	sender := f.connect("sender")
	created := f.createRoom(t, sender)
	r1 := f.connect("r1")
	f.emit(t, r1, EventJoinRoom, created.ShareID)
	drain(sender)

	res := f.store.CloseByDeletionKey(created.DeletionKey)
	f.relay.NotifyClosed(res, "")

	for _, c := range []*Client{sender, r1} {
		env := expectOne(t, c, EventRoomClosed)
		assert.Equal(t, RoomClosedPayload{ShareID: created.ShareID}, env.Data)
	}

	f.relay.NotifyClosed(store.CloseResult{}, "")
	assert.Empty(t, drain(r1))
}

func TestRelayUnknownEvent(t *testing.T) {
	f := newRelayFixture(t)
	c := f.connect("c")
	f.relay.Handle(c, Frame{Event: "does-not-exist", Data: json.RawMessage(`{}`)})
	f.emit(t, c, EventICESelected, map[string]any{"candidateType": "host"})
	assert.Empty(t, drain(c))
}
