package repository

import (
	"context"
	"errors"
	"io"
	"testing"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTables(t *testing.T) (*Tables, *MemoryStore) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := NewMemoryStore()
	return NewTables(store, &logger), store
}

func TestTables_FindRowByID(t *testing.T) {
	ctx := context.Background()
	tables, store := newTestTables(t)

	require.NoError(t, store.AppendRow(ctx, models.TableAirport, models.Airport{Code: "LIS", Name: "Humberto Delgado", CityID: "CT0001"}.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TableAirport, models.Airport{Code: "OPO", Name: "Francisco Sá Carneiro", CityID: "CT0002"}.Values()))

	row, err := tables.FindRowByID(ctx, models.TableAirport, "OPO")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Index)

	_, err = tables.FindRowByID(ctx, models.TableAirport, "MAD")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTables_SkipsMalformedAndClearedRows(t *testing.T) {
	ctx := context.Background()
	tables, store := newTestTables(t)

	require.NoError(t, store.AppendRow(ctx, models.TableRoom, []interface{}{"RM0001", "HT0001", "single", "1", "80.00"}))
	require.NoError(t, store.AppendRow(ctx, models.TableRoom, []interface{}{"RM0002", "HT0001", "double", "two", "120.00"}))
	require.NoError(t, store.AppendRow(ctx, models.TableRoom, []interface{}{"RM0003", "HT0001", "suite", "4", "300.00"}))
	require.NoError(t, store.DeleteRow(ctx, models.TableRoom, 2))

	rooms, err := tables.Rooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "RM0001", rooms[0].ID)

	_, err = tables.FindRoom(ctx, "RM0002")
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestTables_MalformedReservationFailsRead(t *testing.T) {
	ctx := context.Background()
	tables, store := newTestTables(t)

	require.NoError(t, store.AppendRow(ctx, models.TableFlightBooking, []interface{}{"FBK0001", "BK0001", "FL0001", "economy", "2"}))
	require.NoError(t, store.AppendRow(ctx, models.TableFlightBooking, []interface{}{"FBK0002", "BK0002", "FL0001", "economy", "lots"}))

	_, err := tables.FlightBookings(ctx)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	require.NoError(t, store.DeleteRow(ctx, models.TableFlightBooking, 1))
	bookings, err := tables.FlightBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, 2, bookings[0].Passengers)
}

func TestTables_UpdateAndDeleteByID(t *testing.T) {
	ctx := context.Background()
	tables, store := newTestTables(t)

	b := models.Booking{ID: "BK0001", UserID: "USR0001", Status: models.StatusPending, TotalPrice: 700}
	require.NoError(t, store.AppendRow(ctx, models.TableBooking, b.Values()))

	b.Status = models.StatusConfirmed
	require.NoError(t, tables.UpdateByID(ctx, models.TableBooking, b.ID, b.Values()))
	got, err := tables.FindBooking(ctx, "BK0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	require.NoError(t, tables.DeleteByID(ctx, models.TableBooking, "BK0001"))
	_, err = tables.FindBooking(ctx, "BK0001")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTables_Details(t *testing.T) {
	ctx := context.Background()
	tables, store := newTestTables(t)

	b := models.Booking{ID: "BK0001", UserID: "USR0001", Status: models.StatusConfirmed, TotalPrice: 700}
	require.NoError(t, store.AppendRow(ctx, models.TableBooking, b.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TableFlightBooking, models.FlightBooking{ID: "FBK0001", BookingID: "BK0001", FlightID: "FL0001", SeatClass: models.SeatEconomy, Passengers: 2}.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TableFlightBooking, models.FlightBooking{ID: "FBK0002", BookingID: "BK0002", FlightID: "FL0001", SeatClass: models.SeatEconomy, Passengers: 1}.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TablePassenger, models.Passenger{ID: "PAX0001", BookingID: "BK0001", FirstName: "Ana"}.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TablePayment, models.Payment{ID: "PA00001", BookingID: "BK0001", Amount: 700, Status: models.PaymentSuccess}.Values()))
	require.NoError(t, store.AppendRow(ctx, models.TablePayment, models.Payment{ID: "PA00002", BookingID: "BK0001", Amount: 700, Status: models.PaymentFailed}.Values()))

	d, err := tables.Details(ctx, b)
	require.NoError(t, err)
	assert.Len(t, d.Flights, 1)
	assert.Len(t, d.Passengers, 1)
	assert.Empty(t, d.Hotels)
	require.NotNil(t, d.Payment)
	assert.Equal(t, "PA00001", d.Payment.ID)
}
