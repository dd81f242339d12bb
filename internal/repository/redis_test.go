package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSequence(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	seq := NewRedisSequence(client, "")
	ctx := context.Background()

	t.Run("SeedsFromFloor", func(t *testing.T) {
		n, err := seq.Next(ctx, "Booking:BK", 7)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)

		n, err = seq.Next(ctx, "Booking:BK", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(9), n)
	})

	t.Run("FloorNeverMovesBackwards", func(t *testing.T) {
		n, err := seq.Next(ctx, "Booking:BK", 3)
		require.NoError(t, err)
		assert.Equal(t, int64(10), n)

		cur, err := seq.Current(ctx, "Booking:BK")
		require.NoError(t, err)
		assert.Equal(t, int64(10), cur)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		n, err := seq.Next(ctx, "Payment:PA", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		cur, err := seq.Current(ctx, "User:USR")
		require.NoError(t, err)
		assert.Equal(t, int64(0), cur)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, err := seq.Next(ctx, "Booking:BK", 0)
		assert.Error(t, err)
	})
}
