package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSequence struct {
	mock.Mock
}

func (m *mockSequence) Next(ctx context.Context, key string, floor int64) (int64, error) {
	args := m.Called(ctx, key, floor)
	return args.Get(0).(int64), args.Error(1)
}

func TestFailoverSequence(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	t.Run("PrimaryHealthy", func(t *testing.T) {
		primary, fallback := new(mockSequence), new(mockSequence)
		seq := NewFailoverSequence(primary, fallback, &logger)

		primary.On("Next", ctx, "Booking:BK", int64(0)).Return(int64(1), nil).Once()
		n, err := seq.Next(ctx, "Booking:BK", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		fallback.AssertNotCalled(t, "Next", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FallsBackAndStaysDown", func(t *testing.T) {
		primary, fallback := new(mockSequence), new(mockSequence)
		seq := NewFailoverSequence(primary, fallback, &logger)

		primary.On("Next", ctx, "Booking:BK", int64(4)).Return(int64(0), errors.New("connection refused")).Once()
		fallback.On("Next", ctx, "Booking:BK", int64(4)).Return(int64(5), nil).Once()
		fallback.On("Next", ctx, "Booking:BK", int64(5)).Return(int64(6), nil).Once()

		n, err := seq.Next(ctx, "Booking:BK", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = seq.Next(ctx, "Booking:BK", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
		primary.AssertNumberOfCalls(t, "Next", 1)
	})

	t.Run("Recovers", func(t *testing.T) {
		primary, fallback := new(mockSequence), new(mockSequence)
		seq := NewFailoverSequence(primary, fallback, &logger)
		seq.recheckAfter = time.Millisecond

		primary.On("Next", ctx, "User:USR", int64(0)).Return(int64(0), errors.New("timeout")).Once()
		fallback.On("Next", ctx, "User:USR", int64(0)).Return(int64(1), nil).Once()
		_, err := seq.Next(ctx, "User:USR", 0)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		primary.On("Next", ctx, "User:USR", int64(1)).Return(int64(2), nil).Once()
		n, err := seq.Next(ctx, "User:USR", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.False(t, seq.isDown.Load())
	})
}
