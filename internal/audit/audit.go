package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/httputil"
)

type EventType string

const (
	EventRoomCreated     EventType = "room_created"
	EventRoomJoined      EventType = "room_joined"
	EventRoomClosed      EventType = "room_closed"
	EventWSConnected     EventType = "ws_connected"
	EventICESelected     EventType = "ice_selected"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventInvalidToken    EventType = "invalid_token"
)

type Event struct {
	Type    EventType
	ShareID string
	ConnID  string
	IP      string
	Details map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "session").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ShareID != "" {
		logger = logger.With().Str("share_id", event.ShareID).Logger()
	}
	if event.ConnID != "" {
		logger = logger.With().Str("conn_id", event.ConnID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("session audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case float64:
		return e.Float64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = httputil.ClientIP(r)
	Log(r.Context(), event)
}

// ReportError records an unexpected failure. Expected outcomes such as
// unknown rooms or rejected tokens are not errors and do not belong here.
func ReportError(err error, msg string, fields map[string]interface{}) {
	logEvent := log.Error().Err(err).Str("audit", "error")
	for k, v := range fields {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg(msg)
}
