package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneshare/signal-server-go/internal/service"
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <shareId>",
	Short: "Print a room token for a share id",
	Long: `Print a capability token that lets a receiver join the given room.
Requires SIGNING_SECRET; the token lives for ROOM_TOKEN_TTL_SECONDS.

Example:
  oneshare-signal issue-token Ab3_x9`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := service.NewTokenService(cfg.SigningSecret, cfg.RoomTokenTTL())
		token, ok := tokens.Issue(args[0])
		if !ok {
			return errors.New("SIGNING_SECRET is not set: rooms are open and need no token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
