package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/oneshare/signal-server-go/internal/config"
	"github.com/oneshare/signal-server-go/internal/database"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/repository"
)

var inspectRoomCmd = &cobra.Command{
	Use:   "inspect-room <shareId>",
	Short: "Print the mirrored copy of a room",
	Long: `Print the room row kept in the Postgres mirror as JSON.
Requires DATABASE_URL. The mirror lags the live broker and keeps only a hash
of the deletion key.

Example:
  oneshare-signal inspect-room Ab3_x9`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set: the room mirror is disabled")
		}
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), config.PingTimeout)
		defer cancel()
		return inspectRoom(ctx, repository.NewRoomMirrorRepository(db.DB), args[0], cmd.OutOrStdout())
	},
}

type roomFinder interface {
	FindByShareID(ctx context.Context, shareID string) (*model.RoomRecord, error)
}

type roomView struct {
	ShareID        string          `json:"shareId"`
	SenderID       *string         `json:"senderId"`
	ReceiverIDs    []string        `json:"receiverIds"`
	Files          json.RawMessage `json:"files"`
	TransferConfig json.RawMessage `json:"transferConfig"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func inspectRoom(ctx context.Context, rooms roomFinder, shareID string, out io.Writer) error {
	rec, err := rooms.FindByShareID(ctx, shareID)
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("room %s is not in the mirror", shareID)
	}

	view := roomView{
		ShareID:        rec.ShareID,
		SenderID:       rec.SenderID,
		ReceiverIDs:    []string(rec.ReceiverIDs),
		Files:          rec.Files,
		TransferConfig: rec.TransferConfig,
		CreatedAt:      rec.CreatedAt,
		ExpiresAt:      rec.ExpiresAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if view.ReceiverIDs == nil {
		view.ReceiverIDs = []string{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
