package allocator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func noSleep(context.Context, time.Duration) error { return nil }

func appendID(t *testing.T, store domain.RowStore, spec models.IDSpec, id string) {
	t.Helper()
	width := len(models.Columns[spec.Table])
	values := make([]interface{}, width)
	values[0] = id
	require.NoError(t, store.AppendRow(context.Background(), spec.Table, values))
}

func TestHighWaterMark(t *testing.T) {
	header := models.Columns[models.TablePayment]
	rows := []models.Row{
		models.NewRow(0, header, []string{"PA00003"}),
		models.NewRow(1, header, []string{"PA0x7"}),
		models.NewRow(2, header, []string{"PAX0099"}),
		models.NewRow(3, header, []string{""}),
		models.NewRow(4, header, []string{"PA00011"}),
		models.NewRow(5, header, []string{"BK0500"}),
	}

	observed, maxNum := HighWaterMark(rows, models.TablePayment, "PA")
	assert.Equal(t, int64(11), maxNum)
	assert.Contains(t, observed, "PA00003")
	assert.Contains(t, observed, "PA0x7")
	assert.NotContains(t, observed, "BK0500")
}

func TestScan_SequentialAllocationsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	a := NewScan(store, testLogger())
	a.sleep = noSleep

	var previous int64
	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		id, err := a.Allocate(ctx, models.BookingIDs)
		require.NoError(t, err)
		n, ok := models.ParseIDNumber(id, "BK")
		require.True(t, ok)
		assert.Greater(t, n, previous)
		assert.False(t, seen[id])
		previous = n
		seen[id] = true
		appendID(t, store, models.BookingIDs, id)
	}
	assert.Equal(t, "BK0025", models.FormatID("BK", previous, 4))
}

func TestScan_StartsAfterExistingRows(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	appendID(t, store, models.PaymentIDs, "PA00007")
	appendID(t, store, models.PaymentIDs, "PA00002")

	a := NewScan(store, testLogger())
	id, err := a.Allocate(ctx, models.PaymentIDs)
	require.NoError(t, err)
	assert.Equal(t, "PA00008", id)
}

func TestScan_UnwrittenReservationLeavesGap(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	a := NewScan(store, testLogger(), WithMaxRetries(1))
	a.sleep = func(context.Context, time.Duration) error {
		t.Fatal("allocation should not back off")
		return nil
	}

	first, err := a.Allocate(ctx, models.BookingIDs)
	require.NoError(t, err)
	assert.Equal(t, "BK0001", first)

	// BK0001 is never written; later callers skip past it.
	second, err := a.Allocate(ctx, models.BookingIDs)
	require.NoError(t, err)
	assert.Equal(t, "BK0002", second)

	third, err := a.Allocate(ctx, models.BookingIDs)
	require.NoError(t, err)
	assert.Equal(t, "BK0003", third)

	appendID(t, store, models.BookingIDs, second)
	fourth, err := a.Allocate(ctx, models.BookingIDs)
	require.NoError(t, err)
	assert.Equal(t, "BK0004", fourth)

	appendID(t, store, models.BookingIDs, "BK0009")
	next, err := a.Allocate(ctx, models.BookingIDs)
	require.NoError(t, err)
	assert.Equal(t, "BK0010", next)
}

func TestScan_ConcurrentAllocationsAreDistinct(t *testing.T) {
	ctx := context.Background()
	a := NewScan(repository.NewMemoryStore(), testLogger())
	a.sleep = noSleep

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[string]bool)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.Allocate(ctx, models.PaymentIDs)
			assert.NoError(t, err)
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 20)
}

func TestScan_ReservationExpires(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Now()

	a := NewScan(store, testLogger(), WithMaxRetries(1))
	a.now = func() time.Time { return now }

	id, err := a.Allocate(ctx, models.UserIDs)
	require.NoError(t, err)
	assert.Equal(t, "USR0001", id)

	now = now.Add(reservationTTL + time.Second)
	id, err = a.Allocate(ctx, models.UserIDs)
	require.NoError(t, err)
	assert.Equal(t, "USR0001", id)
}

func TestScan_StoreError(t *testing.T) {
	a := NewScan(repository.NewMemoryStore(), testLogger())
	_, err := a.Allocate(context.Background(), models.IDSpec{Table: "Missing", Prefix: "MS", Width: 4})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestLocalSequence(t *testing.T) {
	ctx := context.Background()
	seq := NewLocalSequence()
	defer seq.Close()

	n, err := seq.Next(ctx, "Booking:BK", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = seq.Next(ctx, "Booking:BK", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	var wg sync.WaitGroup
	var mu sync.Mutex
	got := make(map[int64]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, "User:USR", 0)
			assert.NoError(t, err)
			mu.Lock()
			got[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, got, 50)

	seq.Close()
	_, err = seq.Next(ctx, "User:USR", 0)
	assert.ErrorIs(t, err, ErrSequenceClosed)
}

type brokenSequence struct{}

func (brokenSequence) Next(context.Context, string, int64) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func TestCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedsFromTableOnce", func(t *testing.T) {
		store := repository.NewMemoryStore()
		appendID(t, store, models.BookingIDs, "BK0041")
		seq := NewLocalSequence()
		defer seq.Close()
		c := NewCounter(seq, NewScan(store, testLogger()), testLogger())

		id, err := c.Allocate(ctx, models.BookingIDs)
		require.NoError(t, err)
		assert.Equal(t, "BK0042", id)

		// No append happened; the counter still moves forward.
		id, err = c.Allocate(ctx, models.BookingIDs)
		require.NoError(t, err)
		assert.Equal(t, "BK0043", id)
	})

	t.Run("ConcurrentAllocationsAreDistinct", func(t *testing.T) {
		store := repository.NewMemoryStore()
		seq := NewLocalSequence()
		defer seq.Close()
		c := NewCounter(seq, NewScan(store, testLogger()), testLogger())

		var wg sync.WaitGroup
		var mu sync.Mutex
		ids := make(map[string]bool)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := c.Allocate(ctx, models.PassengerIDs)
				assert.NoError(t, err)
				mu.Lock()
				ids[id] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, ids, 40)
	})

	t.Run("ReconcileReseedsFromTable", func(t *testing.T) {
		store := repository.NewMemoryStore()
		seq := NewLocalSequence()
		defer seq.Close()
		c := NewCounter(seq, NewScan(store, testLogger()), testLogger())

		id, err := c.Allocate(ctx, models.PaymentIDs)
		require.NoError(t, err)
		assert.Equal(t, "PA00001", id)

		appendID(t, store, models.PaymentIDs, "PA00090")
		c.Reconcile()
		id, err = c.Allocate(ctx, models.PaymentIDs)
		require.NoError(t, err)
		assert.Equal(t, "PA00091", id)
	})

	t.Run("FallsBackToScan", func(t *testing.T) {
		store := repository.NewMemoryStore()
		appendID(t, store, models.UserIDs, "USR0009")
		c := NewCounter(brokenSequence{}, NewScan(store, testLogger()), testLogger())

		id, err := c.Allocate(ctx, models.UserIDs)
		require.NoError(t, err)
		assert.Equal(t, "USR0010", id)
	})
}
