package chat

import (
	"context"
	"fmt"
)

// History serves a room's ordered backlog from the store.
type History struct {
	store    Store
	maxLimit int
}

// Page is one window of a room's backlog. NextAfter is the cursor for the
// following page; HasMore reports whether that page is non-empty.
type Page struct {
	Messages  []Message
	NextAfter int64
	HasMore   bool
}

func NewHistory(store Store, maxLimit int) *History {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	return &History{store: store, maxLimit: maxLimit}
}

// Fetch returns messages of room with Seq > q.After in ascending order. A
// zero or oversized limit is clamped to the configured maximum.
func (h *History) Fetch(ctx context.Context, room string, q HistoryQuery) (Page, error) {
	if err := ValidateRoom(room); err != nil {
		return Page{}, err
	}
	if q.After < 0 {
		return Page{}, fmt.Errorf("%w: after must not be negative", ErrValidation)
	}
	if q.Limit <= 0 || q.Limit > h.maxLimit {
		q.Limit = h.maxLimit
	}
	limit := q.Limit
	// One extra row tells whether another page follows.
	q.Limit++
	msgs, err := h.store.History(ctx, room, q)
	if err != nil {
		return Page{}, fmt.Errorf("%w: read history of %s: %w", ErrPersistence, room, err)
	}
	p := Page{Messages: msgs, NextAfter: q.After}
	if len(msgs) > limit {
		p.Messages, p.HasMore = msgs[:limit], true
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	if n := len(p.Messages); n > 0 {
		p.NextAfter = p.Messages[n-1].Seq
	}
	return p, nil
}

// All returns the whole backlog of room, reading it page by page.
func (h *History) All(ctx context.Context, room string) ([]Message, error) {
	var (
		out []Message
		q   HistoryQuery
	)
	for {
		p, err := h.Fetch(ctx, room, q)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Messages...)
		if !p.HasMore {
			break
		}
		q.After = p.NextAfter
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}
