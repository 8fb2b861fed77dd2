package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/oneshare/signal-server-go/internal/database"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/util"
)

const roomMirrorSchema = `
CREATE TABLE IF NOT EXISTS share_rooms (
	share_id          TEXT PRIMARY KEY,
	deletion_key_hash TEXT NOT NULL,
	sender_id         TEXT,
	receiver_ids      TEXT[] NOT NULL DEFAULT '{}',
	files             JSONB NOT NULL,
	transfer_config   JSONB,
	created_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS share_rooms_expires_at_idx ON share_rooms (expires_at);
`

// RoomMirrorRepository is the write side of the room mirror plus the lookup
// behind the inspect-room command and the expiry sweep. The broker never
// reads room state back from it.
type RoomMirrorRepository interface {
	EnsureSchema(ctx context.Context) error
	UpsertRoom(ctx context.Context, room model.Room) error
	DeleteRoom(ctx context.Context, shareID string) error
	FindByShareID(ctx context.Context, shareID string) (*model.RoomRecord, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type roomMirrorRepo struct {
	db database.DBTX
}

func NewRoomMirrorRepository(db database.DBTX) RoomMirrorRepository {
	return &roomMirrorRepo{db: db}
}

func (r *roomMirrorRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, roomMirrorSchema)
	return err
}

func (r *roomMirrorRepo) UpsertRoom(ctx context.Context, room model.Room) error {
	files, err := json.Marshal(room.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	var cfg []byte
	if !room.TransferConfig.IsZero() {
		if cfg, err = json.Marshal(room.TransferConfig); err != nil {
			return fmt.Errorf("encode transfer config: %w", err)
		}
	}
	var senderID *string
	if room.SenderID != "" {
		senderID = &room.SenderID
	}
	receivers := room.ReceiverIDs
	if receivers == nil {
		receivers = []string{}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO share_rooms (
			share_id, deletion_key_hash, sender_id, receiver_ids,
			files, transfer_config, created_at, expires_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (share_id) DO UPDATE SET
			sender_id = EXCLUDED.sender_id,
			receiver_ids = EXCLUDED.receiver_ids,
			files = EXCLUDED.files,
			transfer_config = EXCLUDED.transfer_config,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`, room.ShareID, util.HashToken(room.DeletionKey), senderID, pq.Array(receivers),
		string(files), nullableJSON(cfg), room.CreatedAt, room.ExpiresAt)
	return err
}

func (r *roomMirrorRepo) DeleteRoom(ctx context.Context, shareID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM share_rooms WHERE share_id = $1`, shareID)
	return err
}

func (r *roomMirrorRepo) FindByShareID(ctx context.Context, shareID string) (*model.RoomRecord, error) {
	var rec model.RoomRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT share_id, deletion_key_hash, sender_id, receiver_ids,
			files, transfer_config, created_at, expires_at, updated_at
		FROM share_rooms
		WHERE share_id = $1
	`, shareID)
	return HandleNotFound(&rec, err)
}

// DeleteExpired removes rows whose room can no longer exist, e.g. because the
// delete was dropped or the process stopped before writing it.
func (r *roomMirrorRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM share_rooms WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
