// Package postgres stores chat messages and looks up rides in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideshare/internal/chat"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Append inserts the message with the next sequence number of its room. The
// (room_id, seq) unique constraint rejects a competing writer outside this
// process instead of letting two messages share a position.
func (s *Store) Append(ctx context.Context, d chat.Draft) (chat.Message, error) {
	msg := chat.Message{Room: d.Room, Sender: d.Sender, Text: d.Text}
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages(room_id, seq, sender_id, sender_name, anonymous, body)
		SELECT $1::text, COALESCE(MAX(seq), 0) + 1, $2::text, $3::text, $4::boolean, $5::text
		FROM messages WHERE room_id = $1::text
		RETURNING id, seq, created_at
	`, d.Room, d.Sender.ID, d.Sender.Name, d.Sender.Anonymous, d.Text).Scan(&msg.ID, &msg.Seq, &msg.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return chat.Message{}, fmt.Errorf("insert message: sequence conflict in %s: %w", d.Room, err)
		}
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func (s *Store) History(ctx context.Context, room string, q chat.HistoryQuery) ([]chat.Message, error) {
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, seq, sender_id, sender_name, anonymous, body, created_at
		FROM messages
		WHERE room_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, room, q.After, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		m := chat.Message{Room: room}
		if err := rows.Scan(&m.ID, &m.Seq, &m.Sender.ID, &m.Sender.Name, &m.Sender.Anonymous, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (s *Store) Lookup(ctx context.Context, rideID string) (chat.Ride, error) {
	ride := chat.Ride{ID: rideID}
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM rides WHERE id=$1`, rideID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Ride{}, fmt.Errorf("ride %s: %w", rideID, chat.ErrNotFound)
	}
	if err != nil {
		return chat.Ride{}, fmt.Errorf("query ride: %w", err)
	}
	ride.Status = chat.RideStatus(status)
	return ride, nil
}

func (s *Store) PutRide(ctx context.Context, ride chat.Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides(id, status) VALUES($1,$2)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status
	`, ride.ID, string(ride.Status))
	if err != nil {
		return fmt.Errorf("upsert ride: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
