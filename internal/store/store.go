package store

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/model"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrConnectionInRoom = errors.New("connection already belongs to a room")
)

type RoomKeys struct {
	ShareID     string `json:"shareId"`
	DeletionKey string `json:"deletionKey"`
}

// CloseResult lists who was in a room when it was destroyed. Closed is false
// when there was nothing to close.
type CloseResult struct {
	Closed    bool
	ShareID   string
	Receivers []string
	Sender    string
}

// Participants returns the sender (if any) followed by the receivers.
func (c CloseResult) Participants() []string {
	out := make([]string, 0, len(c.Receivers)+1)
	if c.Sender != "" {
		out = append(out, c.Sender)
	}
	return append(out, c.Receivers...)
}

type LeaveResult struct {
	Role    model.Role
	ShareID string
	Closed  CloseResult
}

type handle uint64

type room struct {
	handle      handle
	shareID     string
	deletionKey string
	senderID    string
	receivers   map[string]struct{}
	files       []model.FileMeta
	config      model.TransferConfig
	progress    map[string]int64
	createdAt   time.Time
	expiresAt   time.Time

	stopTimer  func() bool
	generation uint64
}

// RoomStore owns every live room. Rooms live in an arena keyed by an internal
// handle; share id, deletion key and connection id are secondary indices
// that are only ever changed together with the arena under mu.
type RoomStore struct {
	mu            sync.Mutex
	rooms         map[handle]*room
	byShareID     map[string]handle
	byDeletionKey map[string]handle
	byConn        map[string]handle
	lastHandle    handle

	// retired holds closed share ids until the given time so a new room
	// cannot take over an id whose tokens may still be valid.
	retired     map[string]time.Time
	idRetention time.Duration

	ttl        time.Duration
	mirror     Mirror
	now        func() time.Time
	schedule   Scheduler
	newShareID func() (string, error)
	newDelKey  func() (string, error)

	expireMu sync.RWMutex
	onExpire func(CloseResult)
}

func New(ttl time.Duration, opts ...Option) *RoomStore {
	s := &RoomStore{
		rooms:         make(map[handle]*room),
		byShareID:     make(map[string]handle),
		byDeletionKey: make(map[string]handle),
		byConn:        make(map[string]handle),
		retired:       make(map[string]time.Time),
		idRetention:   DefaultIDRetention,
		ttl:           ttl,
		mirror:        NopMirror{},
		now:           time.Now,
		schedule:      timeScheduler,
		newShareID:    randomShareID,
		newDelKey:     randomDeletionKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnExpire registers fn to be called, outside the store lock, after a room
// has been closed by its TTL.
func (s *RoomStore) OnExpire(fn func(CloseResult)) {
	s.expireMu.Lock()
	defer s.expireMu.Unlock()
	s.onExpire = fn
}

func (s *RoomStore) CreateRoom(files []model.FileMeta, cfg *model.TransferConfig) (RoomKeys, error) {
	return s.create("", files, cfg)
}

func (s *RoomStore) CreateRoomWithSender(senderID string, files []model.FileMeta, cfg *model.TransferConfig) (RoomKeys, error) {
	if senderID == "" {
		return RoomKeys{}, errors.New("sender id is required")
	}
	return s.create(senderID, files, cfg)
}

func (s *RoomStore) create(senderID string, files []model.FileMeta, cfg *model.TransferConfig) (RoomKeys, error) {
	if len(files) == 0 {
		return RoomKeys{}, errors.New("at least one file is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if senderID != "" {
		if _, bound := s.byConn[senderID]; bound {
			return RoomKeys{}, ErrConnectionInRoom
		}
	}

	s.pruneRetiredLocked()
	shareID, err := s.uniqueID(s.newShareID, func(id string) bool {
		_, live := s.byShareID[id]
		_, retired := s.retired[id]
		return live || retired
	})
	if err != nil {
		return RoomKeys{}, fmt.Errorf("generate share id: %w", err)
	}
	deletionKey, err := s.uniqueID(s.newDelKey, func(key string) bool {
		_, live := s.byDeletionKey[key]
		return live
	})
	if err != nil {
		return RoomKeys{}, fmt.Errorf("generate deletion key: %w", err)
	}

	s.lastHandle++
	r := &room{
		handle:      s.lastHandle,
		shareID:     shareID,
		deletionKey: deletionKey,
		senderID:    senderID,
		receivers:   make(map[string]struct{}),
		files:       slices.Clone(files),
		progress:    make(map[string]int64),
		createdAt:   s.now(),
	}
	if cfg != nil {
		r.config = *cfg
	}

	s.rooms[r.handle] = r
	s.byShareID[shareID] = r.handle
	s.byDeletionKey[deletionKey] = r.handle
	if senderID != "" {
		s.byConn[senderID] = r.handle
	}
	s.scheduleLocked(r)
	s.mirror.Upsert(r.snapshot())

	return RoomKeys{ShareID: shareID, DeletionKey: deletionKey}, nil
}

func (s *RoomStore) uniqueID(gen func() (string, error), taken func(string) bool) (string, error) {
	for i := 0; i < maxIDGeneration; i++ {
		id, err := gen()
		if err != nil {
			return "", err
		}
		if id != "" && !taken(id) {
			return id, nil
		}
	}
	return "", errors.New("no free identifier after retries")
}

func (s *RoomStore) pruneRetiredLocked() {
	now := s.now()
	for id, until := range s.retired {
		if !now.Before(until) {
			delete(s.retired, id)
		}
	}
}

// AttachSender makes senderID the sender of the room. A previous sender is
// replaced and loses its binding to the room.
func (s *RoomStore) AttachSender(shareID, senderID string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	if h, bound := s.byConn[senderID]; bound && h != r.handle {
		return model.Room{}, ErrConnectionInRoom
	}

	if r.senderID != "" && r.senderID != senderID {
		delete(s.byConn, r.senderID)
	}
	delete(r.receivers, senderID)
	delete(r.progress, senderID)

	r.senderID = senderID
	s.byConn[senderID] = r.handle
	s.scheduleLocked(r)
	snap := r.snapshot()
	s.mirror.Upsert(snap)

	return snap, nil
}

// JoinRoom adds receiverID to the room. Joining the same room twice is a
// no-op apart from the TTL refresh.
func (s *RoomStore) JoinRoom(shareID, receiverID string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	if h, bound := s.byConn[receiverID]; bound && (h != r.handle || r.senderID == receiverID) {
		return model.Room{}, ErrConnectionInRoom
	}

	r.receivers[receiverID] = struct{}{}
	s.byConn[receiverID] = r.handle
	s.scheduleLocked(r)
	snap := r.snapshot()
	s.mirror.Upsert(snap)

	return snap, nil
}

// Leave removes connID from whatever room it is bound to. A departing sender
// closes the room.
func (s *RoomStore) Leave(connID string) LeaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, bound := s.byConn[connID]
	if !bound {
		return LeaveResult{Role: model.RoleUnknown}
	}
	r := s.rooms[h]

	if r.senderID == connID {
		closed := s.closeLocked(r)
		return LeaveResult{Role: model.RoleSender, ShareID: r.shareID, Closed: closed}
	}

	delete(s.byConn, connID)
	delete(r.receivers, connID)
	delete(r.progress, connID)
	s.scheduleLocked(r)
	s.mirror.Upsert(r.snapshot())

	return LeaveResult{Role: model.RoleReceiver, ShareID: r.shareID}
}

func (s *RoomStore) Close(shareID string) CloseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return CloseResult{}
	}
	return s.closeLocked(r)
}

func (s *RoomStore) CloseByDeletionKey(deletionKey string) CloseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byDeletionKey[deletionKey]
	if !ok {
		return CloseResult{}
	}
	return s.closeLocked(s.rooms[h])
}

func (s *RoomStore) closeLocked(r *room) CloseResult {
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
	r.generation++

	delete(s.rooms, r.handle)
	delete(s.byShareID, r.shareID)
	delete(s.byDeletionKey, r.deletionKey)
	if r.senderID != "" {
		delete(s.byConn, r.senderID)
	}
	for id := range r.receivers {
		delete(s.byConn, id)
	}
	s.mirror.Delete(r.shareID)
	if s.idRetention > 0 {
		s.retired[r.shareID] = s.now().Add(s.idRetention)
	}

	return CloseResult{
		Closed:    true,
		ShareID:   r.shareID,
		Receivers: sortedKeys(r.receivers),
		Sender:    r.senderID,
	}
}

func (s *RoomStore) RefreshTTL(shareID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return false
	}
	s.scheduleLocked(r)
	return true
}

// scheduleLocked replaces the room's expiry timer. The generation guards
// against a timer that fired while being replaced.
func (s *RoomStore) scheduleLocked(r *room) {
	if r.stopTimer != nil {
		r.stopTimer()
	}
	r.generation++
	gen, h := r.generation, r.handle
	r.expiresAt = s.now().Add(s.ttl)
	r.stopTimer = s.schedule(s.ttl, func() { s.expire(h, gen) })
}

func (s *RoomStore) expire(h handle, gen uint64) {
	s.mu.Lock()
	r, ok := s.rooms[h]
	if !ok || r.generation != gen {
		s.mu.Unlock()
		return
	}
	r.stopTimer = nil
	result := s.closeLocked(r)
	s.mu.Unlock()

	log.Info().Str("shareId", result.ShareID).Msg("room ttl expired")

	s.expireMu.RLock()
	fn := s.onExpire
	s.expireMu.RUnlock()
	if fn != nil {
		fn(result)
	}
}

// PeersExcept lists the room's participants other than exceptID, sorted.
func (s *RoomStore) PeersExcept(shareID, exceptID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return []string{}
	}
	peers := make([]string, 0, len(r.receivers)+1)
	if r.senderID != "" && r.senderID != exceptID {
		peers = append(peers, r.senderID)
	}
	for id := range r.receivers {
		if id != exceptID {
			peers = append(peers, id)
		}
	}
	slices.Sort(peers)
	return peers
}

// UpdateProgress records the cumulative bytes connID reports for the room.
// The latest report wins. Values outside [0, MaxProgressBytes] are rejected.
func (s *RoomStore) UpdateProgress(shareID, connID string, bytes int64) bool {
	if bytes < 0 || bytes > MaxProgressBytes {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return false
	}
	r.progress[connID] = bytes
	return true
}

func (s *RoomStore) AggregateProgress(shareID string) (model.AggregateProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return model.AggregateProgress{PerReceiverBytes: map[string]int64{}}, false
	}

	agg := model.AggregateProgress{
		PerReceiverBytes: make(map[string]int64, len(r.progress)),
		ReceiverCount:    len(r.progress),
	}
	for id, bytes := range r.progress {
		agg.PerReceiverBytes[id] = bytes
		if agg.TotalBytes > math.MaxInt64-bytes {
			agg.TotalBytes = math.MaxInt64
		} else {
			agg.TotalBytes += bytes
		}
	}
	agg.TotalSize = model.TotalSize(r.files)
	return agg, true
}

// UpdateTransferConfig merges patch into the room's config group by group
// and returns the result.
func (s *RoomStore) UpdateTransferConfig(shareID string, patch model.TransferConfig) (model.TransferConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return model.TransferConfig{}, false
	}
	r.config = r.config.Merge(patch)
	s.mirror.Upsert(r.snapshot())
	return r.config, true
}

func (s *RoomStore) Room(shareID string) (model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookupLocked(shareID)
	if !ok {
		return model.Room{}, false
	}
	return r.snapshot(), true
}

// ShareIDOf returns the room connID is bound to.
func (s *RoomStore) ShareIDOf(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	return s.rooms[h].shareID, true
}

func (s *RoomStore) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.Stats{Rooms: len(s.rooms)}
	for _, r := range s.rooms {
		stats.Receivers += len(r.receivers)
		if r.senderID != "" {
			stats.Senders++
		}
	}
	stats.Peers = stats.Senders + stats.Receivers
	return stats
}

// Stop cancels every pending expiry. Rooms stay readable.
func (s *RoomStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r.stopTimer != nil {
			r.stopTimer()
			r.stopTimer = nil
		}
		r.generation++
	}
}

func (s *RoomStore) lookupLocked(shareID string) (*room, bool) {
	h, ok := s.byShareID[shareID]
	if !ok {
		return nil, false
	}
	return s.rooms[h], true
}

func (r *room) snapshot() model.Room {
	receivers := sortedKeys(r.receivers)
	return model.Room{
		ShareID:        r.shareID,
		DeletionKey:    r.deletionKey,
		SenderID:       r.senderID,
		ReceiverIDs:    receivers,
		Files:          slices.Clone(r.files),
		TransferConfig: r.config,
		CreatedAt:      r.createdAt,
		ExpiresAt:      r.expiresAt,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
