// Package sqlite provides a single-file SQLite message store and ride
// registry.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rideshare/internal/chat"
	"rideshare/internal/storage/sqlite/migrations"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens (creating if needed) the database at path and applies embedded
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: SQLite has a single writer, and a stale WAL snapshot on a
	// second connection fails an append without consulting busy_timeout.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts the message with the next sequence number of its room in a
// single statement.
func (s *Store) Append(ctx context.Context, d chat.Draft) (chat.Message, error) {
	created := toMillis(s.now())
	msg := chat.Message{Room: d.Room, Sender: d.Sender, Text: d.Text, Timestamp: fromMillis(created)}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (room_id, seq, sender_id, sender_name, anonymous, body, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
		FROM messages WHERE room_id = ?
		RETURNING id, seq`,
		d.Room, d.Sender.ID, d.Sender.Name, d.Sender.Anonymous, d.Text, created, d.Room,
	).Scan(&msg.ID, &msg.Seq)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Store) History(ctx context.Context, room string, q chat.HistoryQuery) ([]chat.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, sender_id, sender_name, anonymous, body, created_at
		FROM messages
		WHERE room_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?`, room, q.After, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		m := chat.Message{Room: room}
		var created int64
		if err := rows.Scan(&m.ID, &m.Seq, &m.Sender.ID, &m.Sender.Name, &m.Sender.Anonymous, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = fromMillis(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (s *Store) Lookup(ctx context.Context, rideID string) (chat.Ride, error) {
	ride := chat.Ride{ID: rideID}
	err := s.db.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = ?`, rideID).Scan(&ride.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Ride{}, fmt.Errorf("ride %s: %w", rideID, chat.ErrNotFound)
	}
	if err != nil {
		return chat.Ride{}, fmt.Errorf("query ride: %w", err)
	}
	return ride, nil
}

// PutRide inserts a ride or updates its status.
func (s *Store) PutRide(ctx context.Context, ride chat.Ride) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rides (id, status, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status`,
		ride.ID, string(ride.Status), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("upsert ride: %w", err)
	}
	return nil
}
