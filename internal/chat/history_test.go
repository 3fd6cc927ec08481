package chat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
	"rideshare/internal/storage/memory"
)

type brokenHistory struct{ chat.Store }

func (brokenHistory) History(ctx context.Context, room string, q chat.HistoryQuery) ([]chat.Message, error) {
	return nil, errors.New("connection reset")
}

func seed(t *testing.T, st chat.Store, room string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := st.Append(context.Background(), chat.Draft{Room: room, Sender: chat.Sender{Name: "a"}, Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
}

func TestHistoryFetch(t *testing.T) {
	st := memory.NewStore()
	seed(t, st, "ride-1", 10)
	seed(t, st, "ride-2", 2)
	h := chat.NewHistory(st, 4)
	ctx := context.Background()

	t.Run("clamps to max", func(t *testing.T) {
		page, err := h.Fetch(ctx, "ride-1", chat.HistoryQuery{})
		require.NoError(t, err)
		require.Len(t, page.Messages, 4)
		assert.EqualValues(t, 1, page.Messages[0].Seq)
		assert.EqualValues(t, 4, page.Messages[3].Seq)
		assert.True(t, page.HasMore)
		assert.EqualValues(t, 4, page.NextAfter)
	})

	t.Run("after", func(t *testing.T) {
		page, err := h.Fetch(ctx, "ride-1", chat.HistoryQuery{After: 8, Limit: 3})
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
		assert.Equal(t, "m9", page.Messages[0].Text)
		assert.Equal(t, "m10", page.Messages[1].Text)
		assert.False(t, page.HasMore)
		assert.EqualValues(t, 10, page.NextAfter)
	})

	t.Run("exact fit", func(t *testing.T) {
		page, err := h.Fetch(ctx, "ride-1", chat.HistoryQuery{After: 6})
		require.NoError(t, err)
		require.Len(t, page.Messages, 4)
		assert.False(t, page.HasMore)
	})

	t.Run("past the end", func(t *testing.T) {
		page, err := h.Fetch(ctx, "ride-1", chat.HistoryQuery{After: 50})
		require.NoError(t, err)
		assert.NotNil(t, page.Messages)
		assert.Empty(t, page.Messages)
		assert.False(t, page.HasMore)
		assert.EqualValues(t, 50, page.NextAfter)
	})

	t.Run("rooms are separate", func(t *testing.T) {
		page, err := h.Fetch(ctx, "ride-2", chat.HistoryQuery{})
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
		for _, m := range page.Messages {
			assert.Equal(t, "ride-2", m.Room)
		}
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := h.Fetch(ctx, "", chat.HistoryQuery{})
		assert.ErrorIs(t, err, chat.ErrValidation)
		_, err = h.Fetch(ctx, "ride-1", chat.HistoryQuery{After: -1})
		assert.ErrorIs(t, err, chat.ErrValidation)
	})
}

func TestHistoryAllReadsEveryPage(t *testing.T) {
	st := memory.NewStore()
	seed(t, st, "ride-1", 10)
	h := chat.NewHistory(st, 3)

	msgs, err := h.All(context.Background(), "ride-1")
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.EqualValues(t, i+1, m.Seq)
	}

	empty, err := h.All(context.Background(), "ride-9")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestHistoryFetchStoreFailure(t *testing.T) {
	h := chat.NewHistory(brokenHistory{memory.NewStore()}, 0)

	_, err := h.Fetch(context.Background(), "ride-1", chat.HistoryQuery{})
	assert.ErrorIs(t, err, chat.ErrPersistence)
}

func TestHistoryAllStoreFailure(t *testing.T) {
	h := chat.NewHistory(brokenHistory{memory.NewStore()}, 0)

	_, err := h.All(context.Background(), "ride-1")
	assert.ErrorIs(t, err, chat.ErrPersistence)
}
