package signaling

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/oneshare/signal-server-go/internal/lan"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/service"
)

// Inbound events.
const (
	EventCreateRoom        = "create-room"
	EventJoinRoom          = "join-room"
	EventNegotiationOffer  = "negotiation-offer"
	EventNegotiationAnswer = "negotiation-answer"
	EventNegotiationCand   = "negotiation-candidate"
	EventCredentialRefresh = "credential-refresh"
	EventProgressReport    = "progress-report"
	EventBackpressure      = "backpressure"
	EventConfigUpdate      = "config-update"
	EventKeepAlive         = "keep-alive"
	EventLeave             = "leave"
	EventLANAnnounce       = "lan-announce"
	EventLANReset          = "lan-reset"
	EventICESelected       = "ice-selected"
)

// Outbound events.
const (
	EventRoomCreated             = "room-created"
	EventCreateRoomError         = "create-room-error"
	EventRoomJoinOK              = "room-join-ok"
	EventJoinRoomError           = "join-room-error"
	EventPeerJoined              = "peer-joined"
	EventPeerLeft                = "peer-left"
	EventRoomClosed              = "room-closed"
	EventNegotiationError        = "negotiation-error"
	EventCredentialRefreshResult = "credential-refresh-result"
	EventAggregateProgress       = "aggregate-progress"
	EventSenderThrottle          = "sender-throttle"
	EventConfigUpdated           = "config-updated"
	EventKeepAliveAck            = "keep-alive-ack"
	EventLANPeers                = "lan-peers"
)

// Error reasons.
const (
	ReasonRateLimited    = "rate-limited"
	ReasonInvalidPayload = "invalid-payload"
	ReasonInvalidToken   = "invalid-token"
	ReasonRoomNotFound   = "room-not-found"
	ReasonAlreadyInRoom  = "already-in-room"
	ReasonTargetNotFound = "target-not-found"
	ReasonInternal       = "internal-error"
)

var errInvalidPayload = errors.New(ReasonInvalidPayload)

type ErrorPayload struct {
	Reason   string `json:"reason"`
	TargetID string `json:"targetId,omitempty"`
}

type createRoomRequest struct {
	ShareID string           `json:"shareId"`
	Files   []model.FileMeta `json:"files"`
	Config  json.RawMessage  `json:"config"`
}

type RoomCreatedPayload struct {
	ShareID     string `json:"shareId"`
	DeletionKey string `json:"deletionKey"`
	RoomToken   string `json:"roomToken,omitempty"`
	service.AssistServers
}

type joinRoomRequest struct {
	ShareID   string `json:"shareId"`
	RoomToken string `json:"roomToken"`
}

type RoomJoinOKPayload struct {
	ShareID        string               `json:"shareId"`
	FileMetadata   []model.FileMeta     `json:"fileMetadata"`
	TransferConfig model.TransferConfig `json:"transferConfig"`
	Peers          []string             `json:"peers"`
}

type PeerPayload struct {
	PeerID string `json:"peerId"`
}

type progressRequest struct {
	ShareID string   `json:"shareId"`
	Bytes   *float64 `json:"bytes"`
}

type AggregateProgressPayload struct {
	ShareID string `json:"shareId"`
	model.AggregateProgress
}

type backpressureRequest struct {
	ShareID string   `json:"shareId"`
	Level   *float64 `json:"level"`
}

type SenderThrottlePayload struct {
	ReceiverID string  `json:"receiverId"`
	Level      float64 `json:"level"`
}

type configUpdateRequest struct {
	ShareID string          `json:"shareId"`
	Config  json.RawMessage `json:"config"`
}

type ConfigUpdatedPayload struct {
	ShareID string               `json:"shareId"`
	Config  model.TransferConfig `json:"config"`
}

type RoomClosedPayload struct {
	ShareID string `json:"shareId"`
}

type KeepAliveAckPayload struct {
	OK bool `json:"ok"`
}

type lanAnnounceRequest struct {
	ShareID string   `json:"shareId"`
	Addrs   []string `json:"addrs"`
}

type LANPeersPayload []lan.Peer

type iceSelectedRequest struct {
	CandidateType string `json:"candidateType"`
}

type shareIDRequest struct {
	ShareID string `json:"shareId"`
}

// decodeShareID accepts either a bare JSON string or {"shareId": "..."}.
func decodeShareID(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errInvalidPayload
	}
	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", errInvalidPayload
		}
		return id, nil
	}
	var req shareIDRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return "", errInvalidPayload
	}
	return req.ShareID, nil
}

// decodeCreateRoom accepts a bare file list or a createRoomRequest object.
func decodeCreateRoom(data json.RawMessage) (createRoomRequest, error) {
	var req createRoomRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return req, errInvalidPayload
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Files); err != nil {
			return req, errInvalidPayload
		}
		return req, nil
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, errInvalidPayload
	}
	return req, nil
}

func decodeJoinRoom(data json.RawMessage) (joinRoomRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		id, err := decodeShareID(trimmed)
		return joinRoomRequest{ShareID: id}, err
	}
	var req joinRoomRequest
	if len(trimmed) == 0 || json.Unmarshal(trimmed, &req) != nil {
		return req, errInvalidPayload
	}
	return req, nil
}
