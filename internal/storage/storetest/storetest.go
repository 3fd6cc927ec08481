// Package storetest holds the behaviour every chat storage backend must
// share. Backend test files call Run with a constructor for a fresh store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
)

type Backend interface {
	chat.Store
	chat.RideRegistry
	PutRide(ctx context.Context, ride chat.Ride) error
}

func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("AppendAssignsSequence", func(t *testing.T) { testAppendAssignsSequence(t, newBackend(t)) })
	t.Run("HistoryPaging", func(t *testing.T) { testHistoryPaging(t, newBackend(t)) })
	t.Run("HistoryEmptyRoom", func(t *testing.T) { testHistoryEmptyRoom(t, newBackend(t)) })
	t.Run("SenderRoundTrip", func(t *testing.T) { testSenderRoundTrip(t, newBackend(t)) })
	t.Run("ParallelRooms", func(t *testing.T) { testParallelRooms(t, newBackend(t)) })
	t.Run("Rides", func(t *testing.T) { testRides(t, newBackend(t)) })
}

func appendText(t *testing.T, b Backend, room, text string) chat.Message {
	t.Helper()
	m, err := b.Append(context.Background(), chat.Draft{Room: room, Sender: chat.Sender{ID: "u-1", Name: "Driver"}, Text: text})
	require.NoError(t, err)
	return m
}

func testAppendAssignsSequence(t *testing.T, b Backend) {
	m1 := appendText(t, b, "ride-1", "one")
	m2 := appendText(t, b, "ride-1", "two")
	other := appendText(t, b, "ride-2", "elsewhere")

	assert.EqualValues(t, 1, m1.Seq)
	assert.EqualValues(t, 2, m2.Seq)
	assert.EqualValues(t, 1, other.Seq)
	assert.NotEqual(t, m1.ID, m2.ID)
	assert.NotEqual(t, m2.ID, other.ID)
	assert.Equal(t, "ride-1", m1.Room)
	assert.Equal(t, "one", m1.Text)
	assert.False(t, m1.Timestamp.IsZero())
	assert.False(t, m2.Timestamp.Before(m1.Timestamp))
}

func testHistoryPaging(t *testing.T, b Backend) {
	var sent []chat.Message
	for i := 1; i <= 5; i++ {
		sent = append(sent, appendText(t, b, "ride-1", fmt.Sprintf("m%d", i)))
	}
	ctx := context.Background()

	all, err := b.History(ctx, "ride-1", chat.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		assert.Equal(t, sent[i].ID, m.ID)
		assert.Equal(t, sent[i].Seq, m.Seq)
		assert.True(t, sent[i].Timestamp.Equal(m.Timestamp))
	}

	page, err := b.History(ctx, "ride-1", chat.HistoryQuery{After: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m3", page[0].Text)
	assert.Equal(t, "m4", page[1].Text)

	tail, err := b.History(ctx, "ride-1", chat.HistoryQuery{After: 5})
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func testHistoryEmptyRoom(t *testing.T, b Backend) {
	msgs, err := b.History(context.Background(), "ride-empty", chat.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testSenderRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	_, err := b.Append(ctx, chat.Draft{Room: "ride-1", Sender: chat.Sender{Name: "Rider", Anonymous: true}, Text: "héllo 👋"})
	require.NoError(t, err)

	msgs, err := b.History(ctx, "ride-1", chat.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.Sender{Name: "Rider", Anonymous: true}, msgs[0].Sender)
	assert.Equal(t, "héllo 👋", msgs[0].Text)
}

// Appends to different rooms may run concurrently; each room still gets a
// gap-free sequence.
func testParallelRooms(t *testing.T, b Backend) {
	const rooms, each = 3, 10
	var wg sync.WaitGroup
	for r := 0; r < rooms; r++ {
		wg.Add(1)
		go func(room string) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := b.Append(context.Background(), chat.Draft{Room: room, Sender: chat.Sender{Name: "a"}, Text: "x"})
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("ride-%d", r))
	}
	wg.Wait()

	for r := 0; r < rooms; r++ {
		msgs, err := b.History(context.Background(), fmt.Sprintf("ride-%d", r), chat.HistoryQuery{})
		require.NoError(t, err)
		require.Len(t, msgs, each)
		for i, m := range msgs {
			assert.EqualValues(t, i+1, m.Seq)
		}
	}
}

func testRides(t *testing.T, b Backend) {
	ctx := context.Background()

	_, err := b.Lookup(ctx, "ride-404")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	require.NoError(t, b.PutRide(ctx, chat.Ride{ID: "ride-1", Status: chat.RidePending}))
	ride, err := b.Lookup(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.Ride{ID: "ride-1", Status: chat.RidePending}, ride)

	require.NoError(t, b.PutRide(ctx, chat.Ride{ID: "ride-1", Status: chat.RideCanceled}))
	ride, err = b.Lookup(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RideCanceled, ride.Status)
}
