// Package chat implements ride-room messaging: room membership, ordered
// persistence, live fan-out and history replay for the passengers and driver
// of a ride.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Sender identifies who wrote a message. Anonymous senders carry only a
// display name chosen by the client and are not verified.
type Sender struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// Message is a persisted chat message. Seq is assigned by the store and is
// the authoritative order within a room; ID is unique across rooms.
type Message struct {
	ID        int64     `json:"id"`
	Seq       int64     `json:"seq"`
	Room      string    `json:"room"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Draft is an accepted send request waiting for the store to assign id,
// sequence and timestamp.
type Draft struct {
	Room   string
	Sender Sender
	Text   string
}

// HistoryQuery selects messages with Seq > After, ascending, at most Limit.
type HistoryQuery struct {
	After int64
	Limit int
}

// Store is the durable, ordered message log.
//
// Append must either persist the message and return it, or fail without
// persisting it. Callers serialize Append per room, so implementations may
// derive Seq from the current tail of the room.
//
// A context that expires after the write commits but before the row is read
// back surfaces as a failure for a message that is stored. Such errors are
// retryable, so a client that retries may store the text twice; it should
// first reconcile against History, where the earlier copy is visible.
type Store interface {
	Append(ctx context.Context, d Draft) (Message, error)
	History(ctx context.Context, room string, q HistoryQuery) ([]Message, error)
}

type RideStatus string

const (
	RidePending   RideStatus = "pending"
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCanceled  RideStatus = "canceled"
)

// Joinable reports whether sessions may still enter the ride's room.
func (s RideStatus) Joinable() bool {
	return s == RidePending || s == RideActive
}

type Ride struct {
	ID     string     `json:"id"`
	Status RideStatus `json:"status"`
}

// RideRegistry resolves a room id to the ride it belongs to. Lookup returns
// an error wrapping ErrNotFound when no such ride exists.
type RideRegistry interface {
	Lookup(ctx context.Context, rideID string) (Ride, error)
}

// Directory resolves an authentication token to a sender identity. It
// returns an error wrapping ErrUnauthorized for invalid tokens.
type Directory interface {
	Resolve(ctx context.Context, token string) (Sender, error)
}

const (
	maxRoomIDLen     = 64
	maxSenderNameLen = 64
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// ValidateRoom checks the shape of a room id.
func ValidateRoom(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room is required", ErrValidation)
	}
	if len(room) > maxRoomIDLen || !roomIDPattern.MatchString(room) {
		return fmt.Errorf("%w: malformed room id %q", ErrValidation, room)
	}
	return nil
}

func normalizeText(text string, maxRunes int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: text is empty", ErrValidation)
	}
	if maxRunes > 0 && utf8.RuneCountInString(trimmed) > maxRunes {
		return "", fmt.Errorf("%w: text exceeds %d characters", ErrValidation, maxRunes)
	}
	return trimmed, nil
}

// AnonymousName cleans a client-chosen display name, falling back to def.
func AnonymousName(name, def string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return def
	}
	if utf8.RuneCountInString(name) > maxSenderNameLen {
		name = string([]rune(name)[:maxSenderNameLen])
	}
	return name
}
