package handler

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/httputil"
	"github.com/oneshare/signal-server-go/internal/signaling"
)

// Session is what the websocket endpoint needs from the relay.
type Session interface {
	Connect(c *signaling.Client)
	Handle(c *signaling.Client, frame signaling.Frame)
	Depart(c *signaling.Client)
}

type WSHandler struct {
	session  Session
	upgrader websocket.Upgrader
}

// NewWSHandler accepts browser connections from allowedOrigin, or from any
// origin when it is "*".
func NewWSHandler(session Session, allowedOrigin string) *WSHandler {
	return &WSHandler{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    signaling.Subprotocols,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

// GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	codec := signaling.CodecFor(conn.Subprotocol())
	client := signaling.NewClient(uuid.NewString(), httputil.ClientIP(r), conn, codec)
	h.session.Connect(client)

	log.Info().
		Str("connId", client.ID).
		Str("subprotocol", codec.Subprotocol()).
		Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.session.Handle, h.session.Depart)
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		want, err := url.Parse(allowed)
		if err != nil {
			return false
		}
		return u.Scheme == want.Scheme && u.Host == want.Host
	}
}
