package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
	"rideshare/internal/storage/storetest"
)

func openTemp(t *testing.T, path string) *Store {
	t.Helper()
	st, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return openTemp(t, filepath.Join(t.TempDir(), "chat.db"))
	})
}

func TestReopenKeepsMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	st, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = st.Append(ctx, chat.Draft{Room: "ride-1", Sender: chat.Sender{Name: "a"}, Text: "persisted"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Migrations are recorded, so reopening does not re-apply them.
	reopened := openTemp(t, path)
	msgs, err := reopened.History(ctx, "ride-1", chat.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "persisted", msgs[0].Text)

	next, err := reopened.Append(ctx, chat.Draft{Room: "ride-1", Sender: chat.Sender{Name: "a"}, Text: "again"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Seq)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}
