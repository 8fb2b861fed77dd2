package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/audit"
	apperrors "github.com/oneshare/signal-server-go/internal/errors"
	"github.com/oneshare/signal-server-go/internal/httputil"
	"github.com/oneshare/signal-server-go/internal/middleware"
	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/service"
	"github.com/oneshare/signal-server-go/internal/signaling"
	"github.com/oneshare/signal-server-go/internal/store"
	"github.com/oneshare/signal-server-go/internal/util"
)

// RoomNotifier pushes room changes made over HTTP to connected peers.
type RoomNotifier interface {
	RoomCreated(keys store.RoomKeys) (signaling.RoomCreatedPayload, error)
	NotifyClosed(res store.CloseResult, exceptID string)
	NotifyConfig(shareID string, cfg model.TransferConfig)
}

type ShareHandler struct {
	rooms    *store.RoomStore
	notifier RoomNotifier
	limits   *service.RateLimits
}

func NewShareHandler(rooms *store.RoomStore, notifier RoomNotifier, limits *service.RateLimits) *ShareHandler {
	return &ShareHandler{
		rooms:    rooms,
		notifier: notifier,
		limits:   limits,
	}
}

func (h *ShareHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.NewRateLimitMiddleware(h.limits, service.ActionAPICreate).Handler).
		Post("/create", h.CreateShare)
	r.With(middleware.NewRateLimitMiddleware(h.limits, service.ActionAPIClose).Handler).
		Post("/close", h.CloseShare)
	r.Post("/{shareId}/config", h.UpdateConfig)
	r.Get("/{shareId}/progress", h.GetProgress)

	return r
}

type createShareRequest struct {
	Files  json.RawMessage `json:"files"`
	Config json.RawMessage `json:"config"`
}

// POST /v1/share/create
func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var files []model.FileMeta
	if len(req.Files) > 0 {
		if err := json.Unmarshal(req.Files, &files); err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("files", "must be array of {name, size}"))
			return
		}
	}
	if err := util.ValidateFiles(files); err != nil {
		httputil.WriteError(w, validationError(err))
		return
	}
	cfg, err := util.ValidateTransferConfig(req.Config)
	if err != nil {
		httputil.WriteError(w, validationError(err))
		return
	}

	keys, err := h.rooms.CreateRoom(files, cfg)
	if err != nil {
		audit.ReportError(err, "failed to create room", nil)
		httputil.WriteError(w, apperrors.Internal("Failed to create share").WithCause(err))
		return
	}

	payload, err := h.notifier.RoomCreated(keys)
	if err != nil {
		audit.ReportError(err, "failed to build ice servers", map[string]interface{}{"shareId": keys.ShareID})
		h.rooms.Close(keys.ShareID)
		httputil.WriteError(w, apperrors.Internal("Failed to create share").WithCause(err))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventRoomCreated,
		ShareID: keys.ShareID,
		Details: map[string]interface{}{"source": "http", "files": len(files)},
	})
	writeJSON(w, http.StatusOK, payload)
}

type closeShareRequest struct {
	DeletionKey string `json:"deletionKey"`
}

// POST /v1/share/close
func (h *ShareHandler) CloseShare(w http.ResponseWriter, r *http.Request) {
	var req closeShareRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.DeletionKey == "" {
		httputil.WriteError(w, apperrors.MissingRequired("deletionKey"))
		return
	}

	res := h.rooms.CloseByDeletionKey(req.DeletionKey)
	if !res.Closed {
		httputil.WriteError(w, apperrors.NotFound("Share"))
		return
	}
	h.notifier.NotifyClosed(res, "")

	log.Info().Str("shareId", res.ShareID).Msg("share closed by deletion key")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "shareId": res.ShareID})
}

type updateConfigRequest struct {
	Config json.RawMessage `json:"config"`
}

// POST /v1/share/{shareId}/config
func (h *ShareHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareId")

	var req updateConfigRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if isAbsent(req.Config) {
		httputil.WriteError(w, apperrors.MissingRequired("config"))
		return
	}
	cfg, err := util.ValidateTransferConfig(req.Config)
	if err != nil {
		httputil.WriteError(w, validationError(err))
		return
	}

	merged, ok := h.rooms.UpdateTransferConfig(shareID, *cfg)
	if !ok {
		httputil.WriteError(w, apperrors.NotFound("Share"))
		return
	}
	h.notifier.NotifyConfig(shareID, merged)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /v1/share/{shareId}/progress
func (h *ShareHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareId")

	agg, ok := h.rooms.AggregateProgress(shareID)
	if !ok {
		httputil.WriteError(w, apperrors.NotFound("Share"))
		return
	}

	writeJSON(w, http.StatusOK, agg)
}
