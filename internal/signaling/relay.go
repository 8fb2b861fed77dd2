package signaling

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/audit"
	"github.com/oneshare/signal-server-go/internal/lan"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/service"
	"github.com/oneshare/signal-server-go/internal/store"
	"github.com/oneshare/signal-server-go/internal/util"
)

type handlerFunc func(c *Client, data json.RawMessage)

// Relay maps inbound session events onto the room store and routes the
// resulting events to connected peers.
type Relay struct {
	hub    *Hub
	store  *store.RoomStore
	limits *service.RateLimits
	tokens *service.TokenService
	creds  *service.CredentialService
	lan    *lan.Registry

	handlers map[string]handlerFunc
}

func NewRelay(
	hub *Hub,
	rooms *store.RoomStore,
	limits *service.RateLimits,
	tokens *service.TokenService,
	creds *service.CredentialService,
	lanPeers *lan.Registry,
) *Relay {
	r := &Relay{
		hub:    hub,
		store:  rooms,
		limits: limits,
		tokens: tokens,
		creds:  creds,
		lan:    lanPeers,
	}
	r.handlers = map[string]handlerFunc{
		EventCreateRoom:        r.handleCreateRoom,
		EventJoinRoom:          r.handleJoinRoom,
		EventNegotiationOffer:  r.negotiationForwarder(EventNegotiationOffer),
		EventNegotiationAnswer: r.negotiationForwarder(EventNegotiationAnswer),
		EventNegotiationCand:   r.negotiationForwarder(EventNegotiationCand),
		EventCredentialRefresh: r.handleCredentialRefresh,
		EventProgressReport:    r.handleProgressReport,
		EventBackpressure:      r.handleBackpressure,
		EventConfigUpdate:      r.handleConfigUpdate,
		EventKeepAlive:         r.handleKeepAlive,
		EventLeave:             r.handleLeave,
		EventLANAnnounce:       r.handleLANAnnounce,
		EventLANReset:          r.handleLANReset,
		EventICESelected:       r.handleICESelected,
	}
	return r
}

// Connect registers c so it can be addressed by its id.
func (r *Relay) Connect(c *Client) {
	r.hub.Register(c)
	audit.Log(c.Context(), audit.Event{
		Type:   audit.EventWSConnected,
		ConnID: c.ID,
		IP:     c.Addr,
	})
}

// Handle dispatches one inbound frame.
func (r *Relay) Handle(c *Client, frame Frame) {
	h, ok := r.handlers[frame.Event]
	if !ok {
		log.Debug().
			Str("connId", c.ID).
			Str("event", frame.Event).
			Msg("ignoring unknown event")
		return
	}
	h(c, frame.Data)
}

// Depart runs the departure path for c at most once, whether triggered by
// an explicit leave or by the connection going away.
func (r *Relay) Depart(c *Client) {
	c.departOnce.Do(func() {
		r.hub.Unregister(c)
		lanRooms := r.lan.Release(c.ID)

		res := r.store.Leave(c.ID)
		switch res.Role {
		case model.RoleSender:
			r.NotifyClosed(res.Closed, c.ID)
		case model.RoleReceiver:
			r.hub.SendAll(r.store.PeersExcept(res.ShareID, c.ID), Envelope{
				Event: EventPeerLeft,
				Data:  PeerPayload{PeerID: c.ID},
			})
		}

		for _, shareID := range lanRooms {
			if _, ok := r.store.Room(shareID); ok {
				r.broadcastLANPeers(shareID)
			}
		}
	})
}

// NotifyClosed tells everyone who was in a closed room except exceptID
// and drops the room's LAN registrations.
func (r *Relay) NotifyClosed(res store.CloseResult, exceptID string) {
	if !res.Closed {
		return
	}

	targets := make([]string, 0, len(res.Receivers)+1)
	for _, id := range res.Participants() {
		if id != exceptID {
			targets = append(targets, id)
		}
	}
	r.hub.SendAll(targets, Envelope{
		Event: EventRoomClosed,
		Data:  RoomClosedPayload{ShareID: res.ShareID},
	})
	r.lan.DropRoom(res.ShareID)

	log.Info().
		Str("shareId", res.ShareID).
		Int("notified", len(targets)).
		Msg("room closed")
	audit.Log(context.Background(), audit.Event{
		Type:    audit.EventRoomClosed,
		ShareID: res.ShareID,
		Details: map[string]interface{}{"participants": len(targets)},
	})
}

// NotifyConfig sends the room's merged transfer config to every participant.
func (r *Relay) NotifyConfig(shareID string, cfg model.TransferConfig) {
	r.hub.SendAll(r.store.PeersExcept(shareID, ""), Envelope{
		Event: EventConfigUpdated,
		Data:  ConfigUpdatedPayload{ShareID: shareID, Config: cfg},
	})
}

// RoomCreated builds the reply handed to a room creator.
func (r *Relay) RoomCreated(keys store.RoomKeys) (RoomCreatedPayload, error) {
	servers, err := r.creds.Build()
	if err != nil {
		return RoomCreatedPayload{}, err
	}
	token, _ := r.tokens.Issue(keys.ShareID)
	return RoomCreatedPayload{
		ShareID:       keys.ShareID,
		DeletionKey:   keys.DeletionKey,
		RoomToken:     token,
		AssistServers: servers,
	}, nil
}

// Count returns the number of connected clients.
func (r *Relay) Count() int {
	return r.hub.Count()
}

// Shutdown closes every connection.
func (r *Relay) Shutdown() {
	r.hub.Close()
}

func (r *Relay) handleCreateRoom(c *Client, data json.RawMessage) {
	if !r.allow(c, service.ActionWSCreate) {
		c.Send(createError(ReasonRateLimited))
		return
	}

	req, err := decodeCreateRoom(data)
	if err != nil || (req.ShareID == "" && len(req.Files) == 0) {
		c.Send(createError(ReasonInvalidPayload))
		return
	}
	cfg, err := util.ValidateTransferConfig(req.Config)
	if err != nil {
		c.Send(createError(err.Error()))
		return
	}

	var keys store.RoomKeys
	if req.ShareID != "" {
		room, err := r.store.AttachSender(req.ShareID, c.ID)
		if err != nil {
			c.Send(createError(storeReason(err)))
			return
		}
		keys = store.RoomKeys{ShareID: room.ShareID, DeletionKey: room.DeletionKey}

		if !cfg.IsZero() {
			if merged, ok := r.store.UpdateTransferConfig(keys.ShareID, *cfg); ok {
				r.NotifyConfig(keys.ShareID, merged)
			}
		}
		r.hub.SendAll(r.store.PeersExcept(keys.ShareID, c.ID), Envelope{
			Event: EventPeerJoined,
			Data:  PeerPayload{PeerID: c.ID},
		})
	} else {
		if err := util.ValidateFiles(req.Files); err != nil {
			c.Send(createError(err.Error()))
			return
		}
		keys, err = r.store.CreateRoomWithSender(c.ID, req.Files, cfg)
		if err != nil {
			c.Send(createError(storeReason(err)))
			return
		}
	}

	payload, err := r.RoomCreated(keys)
	if err != nil {
		audit.ReportError(err, "failed to build ice servers", map[string]interface{}{"shareId": keys.ShareID})
		c.Send(createError(ReasonInternal))
		return
	}
	c.Send(Envelope{Event: EventRoomCreated, Data: payload})

	audit.Log(c.Context(), audit.Event{
		Type:    audit.EventRoomCreated,
		ShareID: keys.ShareID,
		ConnID:  c.ID,
		IP:      c.Addr,
		Details: map[string]interface{}{"attached": req.ShareID != ""},
	})
}

func (r *Relay) handleJoinRoom(c *Client, data json.RawMessage) {
	if !r.allow(c, service.ActionWSJoin) {
		c.Send(joinError(ReasonRateLimited))
		return
	}

	req, err := decodeJoinRoom(data)
	if err != nil || req.ShareID == "" {
		c.Send(joinError(ReasonInvalidPayload))
		return
	}

	if !r.tokens.Verify(req.ShareID, req.RoomToken) {
		audit.Log(c.Context(), audit.Event{
			Type:    audit.EventInvalidToken,
			ShareID: req.ShareID,
			ConnID:  c.ID,
			IP:      c.Addr,
		})
		c.Send(joinError(ReasonInvalidToken))
		return
	}

	room, err := r.store.JoinRoom(req.ShareID, c.ID)
	if err != nil {
		c.Send(joinError(storeReason(err)))
		return
	}

	c.Send(Envelope{
		Event: EventRoomJoinOK,
		Data: RoomJoinOKPayload{
			ShareID:        room.ShareID,
			FileMetadata:   room.Files,
			TransferConfig: room.TransferConfig,
			Peers:          r.store.PeersExcept(room.ShareID, c.ID),
		},
	})
	r.hub.SendAll(r.store.PeersExcept(room.ShareID, c.ID), Envelope{
		Event: EventPeerJoined,
		Data:  PeerPayload{PeerID: c.ID},
	})
	if peers := r.lan.Peers(room.ShareID); len(peers) > 0 {
		c.Send(Envelope{Event: EventLANPeers, Data: LANPeersPayload(peers)})
	}

	audit.Log(c.Context(), audit.Event{
		Type:    audit.EventRoomJoined,
		ShareID: room.ShareID,
		ConnID:  c.ID,
		IP:      c.Addr,
	})
}

// negotiationForwarder relays an offer, answer or candidate to its target
// unchanged apart from the added senderId.
func (r *Relay) negotiationForwarder(event string) handlerFunc {
	return func(c *Client, data json.RawMessage) {
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
			c.Send(Envelope{Event: EventNegotiationError, Data: ErrorPayload{Reason: ReasonInvalidPayload}})
			return
		}
		targetID, _ := msg["targetId"].(string)
		if targetID == "" {
			c.Send(Envelope{Event: EventNegotiationError, Data: ErrorPayload{Reason: ReasonInvalidPayload}})
			return
		}

		msg["senderId"] = c.ID
		if !r.hub.Send(targetID, Envelope{Event: event, Data: msg}) {
			c.Send(Envelope{
				Event: EventNegotiationError,
				Data:  ErrorPayload{Reason: ReasonTargetNotFound, TargetID: targetID},
			})
		}
	}
}

func (r *Relay) handleCredentialRefresh(c *Client, _ json.RawMessage) {
	servers, err := r.creds.Build()
	if err != nil {
		audit.ReportError(err, "failed to refresh credentials", map[string]interface{}{"connId": c.ID})
		return
	}
	c.Send(Envelope{Event: EventCredentialRefreshResult, Data: servers})
}

func (r *Relay) handleProgressReport(c *Client, data json.RawMessage) {
	var req progressRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ShareID == "" || req.Bytes == nil {
		return
	}
	if b := *req.Bytes; b < 0 || b > float64(store.MaxProgressBytes) {
		return
	}
	if !r.store.UpdateProgress(req.ShareID, c.ID, int64(*req.Bytes)) {
		return
	}

	agg, ok := r.store.AggregateProgress(req.ShareID)
	if !ok {
		return
	}
	r.hub.SendAll(r.store.PeersExcept(req.ShareID, ""), Envelope{
		Event: EventAggregateProgress,
		Data:  AggregateProgressPayload{ShareID: req.ShareID, AggregateProgress: agg},
	})
}

func (r *Relay) handleBackpressure(c *Client, data json.RawMessage) {
	var req backpressureRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ShareID == "" {
		return
	}
	if !r.boundTo(c, req.ShareID) {
		return
	}
	room, ok := r.store.Room(req.ShareID)
	if !ok || room.SenderID == "" || room.SenderID == c.ID {
		return
	}

	level := 1.0
	if req.Level != nil {
		level = *req.Level
	}
	r.hub.Send(room.SenderID, Envelope{
		Event: EventSenderThrottle,
		Data:  SenderThrottlePayload{ReceiverID: c.ID, Level: level},
	})
}

func (r *Relay) handleConfigUpdate(c *Client, data json.RawMessage) {
	var req configUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ShareID == "" {
		return
	}
	if !r.boundTo(c, req.ShareID) {
		return
	}
	cfg, err := util.ValidateTransferConfig(req.Config)
	if err != nil {
		log.Debug().Err(err).Str("connId", c.ID).Msg("ignoring invalid config update")
		return
	}
	merged, ok := r.store.UpdateTransferConfig(req.ShareID, *cfg)
	if !ok {
		return
	}
	r.NotifyConfig(req.ShareID, merged)
}

func (r *Relay) handleKeepAlive(c *Client, data json.RawMessage) {
	shareID, err := decodeShareID(data)
	if err != nil || shareID == "" {
		return
	}
	if !r.store.RefreshTTL(shareID) {
		return
	}
	c.Send(Envelope{Event: EventKeepAliveAck, Data: KeepAliveAckPayload{OK: true}})
}

func (r *Relay) handleLeave(c *Client, _ json.RawMessage) {
	r.Depart(c)
	c.Close()
}

func (r *Relay) handleLANAnnounce(c *Client, data json.RawMessage) {
	var req lanAnnounceRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ShareID == "" {
		return
	}
	if !r.boundTo(c, req.ShareID) {
		return
	}
	if r.lan.Announce(req.ShareID, c.ID, req.Addrs) {
		r.broadcastLANPeers(req.ShareID)
	}
}

func (r *Relay) handleLANReset(c *Client, data json.RawMessage) {
	shareID, err := decodeShareID(data)
	if err != nil || shareID == "" {
		return
	}
	if !r.boundTo(c, shareID) {
		return
	}
	r.lan.Reset(shareID, c.ID)
	r.broadcastLANPeers(shareID)
}

func (r *Relay) handleICESelected(c *Client, data json.RawMessage) {
	var req iceSelectedRequest
	if err := json.Unmarshal(data, &req); err != nil || req.CandidateType == "" {
		return
	}
	shareID, _ := r.store.ShareIDOf(c.ID)
	audit.Log(c.Context(), audit.Event{
		Type:    audit.EventICESelected,
		ShareID: shareID,
		ConnID:  c.ID,
		Details: map[string]interface{}{"candidateType": req.CandidateType},
	})
}

func (r *Relay) broadcastLANPeers(shareID string) {
	r.hub.SendAll(r.store.PeersExcept(shareID, ""), Envelope{
		Event: EventLANPeers,
		Data:  LANPeersPayload(r.lan.Peers(shareID)),
	})
}

func (r *Relay) boundTo(c *Client, shareID string) bool {
	bound, ok := r.store.ShareIDOf(c.ID)
	return ok && bound == shareID
}

func (r *Relay) allow(c *Client, action service.Action) bool {
	if r.limits.Allow(c.Context(), action, c.Addr) {
		return true
	}
	audit.Log(c.Context(), audit.Event{
		Type:    audit.EventRateLimitExceed,
		ConnID:  c.ID,
		IP:      c.Addr,
		Details: map[string]interface{}{"action": string(action)},
	})
	return false
}

func storeReason(err error) string {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, store.ErrConnectionInRoom):
		return ReasonAlreadyInRoom
	default:
		audit.ReportError(err, "unexpected room store error", nil)
		return ReasonInternal
	}
}

func createError(reason string) Envelope {
	return Envelope{Event: EventCreateRoomError, Data: ErrorPayload{Reason: reason}}
}

func joinError(reason string) Envelope {
	return Envelope{Event: EventJoinRoomError, Data: ErrorPayload{Reason: reason}}
}
