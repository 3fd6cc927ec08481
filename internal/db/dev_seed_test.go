package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
	"rideshare/internal/storage/memory"
)

func TestRunDevSeed(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, RunDevSeed(ctx, st))
	require.NoError(t, RunDevSeed(ctx, st))

	active, err := st.Lookup(ctx, "ride-1")
	require.NoError(t, err)
	assert.True(t, active.Status.Joinable())

	done, err := st.Lookup(ctx, "ride-2")
	require.NoError(t, err)
	assert.Equal(t, chat.RideCompleted, done.Status)
}
