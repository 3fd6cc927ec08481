package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoom(t *testing.T) {
	for _, room := range []string{"ride-1", "R42", "ride:2024.10_a"} {
		assert.NoError(t, ValidateRoom(room), room)
	}
	for _, room := range []string{"", "-ride", "ride 1", "ride/1", strings.Repeat("a", 65)} {
		assert.ErrorIs(t, ValidateRoom(room), ErrValidation, room)
	}
}

func TestNormalizeText(t *testing.T) {
	got, err := normalizeText("  hello \n", 10)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = normalizeText(" \t\n", 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = normalizeText("héllo wörld", 5)
	assert.ErrorIs(t, err, ErrValidation)

	got, err = normalizeText("héllo", 5)
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)
}

func TestAnonymousName(t *testing.T) {
	assert.Equal(t, "guest", AnonymousName("   ", "guest"))
	assert.Equal(t, "Ana Maria", AnonymousName("  Ana \t Maria ", "guest"))
	assert.Len(t, []rune(AnonymousName(strings.Repeat("é", 100), "guest")), 64)
}

func TestRideStatusJoinable(t *testing.T) {
	assert.True(t, RidePending.Joinable())
	assert.True(t, RideActive.Joinable())
	assert.False(t, RideCompleted.Joinable())
	assert.False(t, RideCanceled.Joinable())
}
