package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Mime string `json:"mime,omitempty"`
}

// Room is a point-in-time copy of a room held by the store. Mutating it has
// no effect on the store.
type Room struct {
	ShareID        string         `json:"shareId"`
	DeletionKey    string         `json:"-"`
	SenderID       string         `json:"senderId,omitempty"`
	ReceiverIDs    []string       `json:"receiverIds"`
	Files          []FileMeta     `json:"fileMetadata"`
	TransferConfig TransferConfig `json:"transferConfig"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// TotalSize is the sum of the advertised file sizes.
func TotalSize(files []FileMeta) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

type AggregateProgress struct {
	PerReceiverBytes map[string]int64 `json:"perReceiverBytes"`
	TotalBytes       int64            `json:"totalBytes"`
	ReceiverCount    int              `json:"receiverCount"`
	TotalSize        int64            `json:"totalSize"`
}

type Stats struct {
	Rooms     int `json:"rooms"`
	Senders   int `json:"senders"`
	Receivers int `json:"receivers"`
	Peers     int `json:"peers"`
}

// RoomRecord is the row shape of the share_rooms mirror table. Only a hash of
// the deletion key is stored.
type RoomRecord struct {
	ShareID         string          `db:"share_id"`
	DeletionKeyHash string          `db:"deletion_key_hash"`
	SenderID        *string         `db:"sender_id"`
	ReceiverIDs     pq.StringArray  `db:"receiver_ids"`
	Files           json.RawMessage `db:"files"`
	TransferConfig  json.RawMessage `db:"transfer_config"`
	CreatedAt       time.Time       `db:"created_at"`
	ExpiresAt       time.Time       `db:"expires_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// HealthSnapshot is the periodic liveness summary published by the health
// reporter.
type HealthSnapshot struct {
	Stats
	Sockets    int       `json:"sockets"`
	ReportedAt time.Time `json:"reportedAt"`
}
