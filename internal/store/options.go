package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/util"
)

const (
	shareIDLength   = 6
	maxIDGeneration = 16

	// MaxProgressBytes is the largest progress value accepted, the largest
	// integer a JSON number carries exactly.
	MaxProgressBytes int64 = 1 << 53

	// DefaultIDRetention matches the default room token lifetime.
	DefaultIDRetention = 15 * time.Minute
)

// Mirror receives a copy of every room mutation. Calls are made while the
// store lock is held, so implementations must not block or call back into
// the store.
type Mirror interface {
	Upsert(room model.Room)
	Delete(shareID string)
}

// NopMirror discards everything.
type NopMirror struct{}

func (NopMirror) Upsert(model.Room) {}
func (NopMirror) Delete(string)     {}

// Scheduler runs fn once after d. The returned func cancels it.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func timeScheduler(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type Option func(*RoomStore)

func WithMirror(m Mirror) Option {
	return func(s *RoomStore) {
		s.mirror = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *RoomStore) {
		s.now = now
	}
}

func WithScheduler(sched Scheduler) Option {
	return func(s *RoomStore) {
		s.schedule = sched
	}
}

// WithIDRetention sets how long a closed room's share id stays reserved.
// It should be at least the room token lifetime.
func WithIDRetention(d time.Duration) Option {
	return func(s *RoomStore) {
		s.idRetention = d
	}
}

// WithShareIDGenerator replaces the random share id source.
func WithShareIDGenerator(gen func() (string, error)) Option {
	return func(s *RoomStore) {
		s.newShareID = gen
	}
}

func randomShareID() (string, error) {
	return util.RandomString(util.URLAlphabet, shareIDLength)
}

func randomDeletionKey() (string, error) {
	return uuid.NewString(), nil
}
