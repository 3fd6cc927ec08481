// Package memory keeps messages and rides in process memory. It backs tests
// and the STORAGE_BACKEND=memory development mode; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rideshare/internal/chat"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	rooms  map[string][]chat.Message
	rides  map[string]chat.Ride
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string][]chat.Message),
		rides: make(map[string]chat.Ride),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Append(ctx context.Context, d chat.Draft) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	log := s.rooms[d.Room]
	msg := chat.Message{
		ID:        s.nextID,
		Seq:       int64(len(log)) + 1,
		Room:      d.Room,
		Sender:    d.Sender,
		Text:      d.Text,
		Timestamp: s.now(),
	}
	s.rooms[d.Room] = append(log, msg)
	return msg, nil
}

func (s *Store) History(ctx context.Context, room string, q chat.HistoryQuery) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.rooms[room]
	// Seq n lives at index n-1.
	start := q.After
	if start > int64(len(log)) {
		start = int64(len(log))
	}
	tail := log[start:]
	if q.Limit > 0 && len(tail) > q.Limit {
		tail = tail[:q.Limit]
	}
	out := make([]chat.Message, len(tail))
	copy(out, tail)
	return out, nil
}

func (s *Store) Lookup(ctx context.Context, rideID string) (chat.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ride, ok := s.rides[rideID]
	if !ok {
		return chat.Ride{}, fmt.Errorf("ride %s: %w", rideID, chat.ErrNotFound)
	}
	return ride, nil
}

// PutRide inserts or replaces a ride.
func (s *Store) PutRide(ctx context.Context, ride chat.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[ride.ID] = ride
	return nil
}
