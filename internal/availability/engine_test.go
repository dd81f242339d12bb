package availability

import (
	"context"
	"io"
	"testing"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type valuer interface {
	Values() []interface{}
}

type fixture struct {
	store  *repository.MemoryStore
	tables *repository.Tables
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := repository.NewMemoryStore()
	fx := &fixture{store: store, tables: repository.NewTables(store, &logger)}

	fx.add(t, models.TableCity, models.City{ID: "CT0001", Name: "Lisbon", Country: "Portugal"})
	fx.add(t, models.TableAirport, models.Airport{Code: "LIS", Name: "Humberto Delgado", CityID: "CT0001"})
	fx.add(t, models.TableAirport, models.Airport{Code: "OPO", Name: "Francisco Sa Carneiro", CityID: "CT0002"})
	fx.add(t, models.TableFlight, models.Flight{
		ID: "FL0001", FlightNumber: "TP100", OriginCode: "LIS", DestinationCode: "OPO",
		DepartureTime: day(2025, 12, 1).Add(9 * time.Hour), ArrivalTime: day(2025, 12, 1).Add(10 * time.Hour),
		BasePrice: 350,
	})
	fx.add(t, models.TableHotel, models.Hotel{ID: "HT0001", Name: "Baixa Inn", CityID: "CT0001"})
	fx.add(t, models.TableRoom, models.Room{ID: "RM0001", HotelID: "HT0001", RoomType: "single", Capacity: 1, PricePerNight: 80})
	fx.add(t, models.TableRoom, models.Room{ID: "RM0002", HotelID: "HT0001", RoomType: "double", Capacity: 2, PricePerNight: 120})
	fx.add(t, models.TableCar, models.Car{ID: "CR0001", CityID: "CT0001", Model: "Clio", Brand: "Renault", PricePerDay: 40})
	return fx
}

func (fx *fixture) add(t *testing.T, table string, v valuer) {
	t.Helper()
	require.NoError(t, fx.store.AppendRow(context.Background(), table, v.Values()))
}

func (fx *fixture) booking(t *testing.T, id, status string) {
	fx.add(t, models.TableBooking, models.Booking{ID: id, UserID: "USR0001", Status: status, BookedAt: time.Now(), TotalPrice: 1})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	a, b, c, d := day(2025, 12, 1), day(2025, 12, 3), day(2025, 12, 3), day(2025, 12, 5)

	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"touching after", a, b, c, d, false},
		{"touching before", c, d, a, b, false},
		{"partial", a, b, day(2025, 12, 2), day(2025, 12, 4), true},
		{"contained", a, d, day(2025, 12, 2), b, true},
		{"identical", a, b, a, b, true},
		{"disjoint", a, day(2025, 12, 2), c, d, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(day(2025, 1, 1), day(2025, 1, 2)))
	assert.ErrorIs(t, ValidateRange(day(2025, 1, 2), day(2025, 1, 2)), domain.ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(day(2025, 1, 3), day(2025, 1, 2)), domain.ErrValidation)
	assert.ErrorIs(t, ValidateRange(time.Time{}, day(2025, 1, 2)), domain.ErrInvalidRange)
}

func TestNightsAndDays(t *testing.T) {
	assert.Equal(t, 2, Nights(day(2025, 12, 1), day(2025, 12, 3)))
	assert.Equal(t, 1, CarDays(day(2025, 12, 1), day(2025, 12, 1).Add(3*time.Hour)))
	assert.Equal(t, 2, CarDays(day(2025, 12, 1), day(2025, 12, 3).Add(5*time.Hour)))
}

func TestAvailableSeats(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	engine := NewEngine(fx.tables, true)

	seats, err := engine.AvailableSeats(ctx, "FL0001", models.SeatEconomy)
	require.NoError(t, err)
	assert.Equal(t, 100, seats)

	fx.booking(t, "BK0001", models.StatusPending)
	fx.add(t, models.TableFlightBooking, models.FlightBooking{ID: "FBK0001", BookingID: "BK0001", FlightID: "FL0001", SeatClass: models.SeatEconomy, Passengers: 2})
	fx.booking(t, "BK0002", models.StatusConfirmed)
	fx.add(t, models.TableFlightBooking, models.FlightBooking{ID: "FBK0002", BookingID: "BK0002", FlightID: "FL0001", SeatClass: models.SeatBusiness, Passengers: 3})

	seats, err = engine.AvailableSeats(ctx, "FL0001", models.SeatEconomy)
	require.NoError(t, err)
	assert.Equal(t, 98, seats)

	seats, err = engine.AvailableSeats(ctx, "FL0001", models.SeatBusiness)
	require.NoError(t, err)
	assert.Equal(t, 97, seats)

	_, err = engine.AvailableSeats(ctx, "FL9999", models.SeatEconomy)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.AvailableSeats(ctx, "FL0001", "first")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAvailableSeats_CancelledPolicy(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.booking(t, "BK0001", models.StatusCancelled)
	fx.add(t, models.TableFlightBooking, models.FlightBooking{ID: "FBK0001", BookingID: "BK0001", FlightID: "FL0001", SeatClass: models.SeatEconomy, Passengers: 4})

	released, err := NewEngine(fx.tables, true).AvailableSeats(ctx, "FL0001", models.SeatEconomy)
	require.NoError(t, err)
	assert.Equal(t, 100, released)

	held, err := NewEngine(fx.tables, false).AvailableSeats(ctx, "FL0001", models.SeatEconomy)
	require.NoError(t, err)
	assert.Equal(t, 96, held)
}

func TestRoomAvailable(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	engine := NewEngine(fx.tables, true)

	fx.booking(t, "BK0001", models.StatusConfirmed)
	fx.add(t, models.TableHotelBooking, models.HotelBooking{
		ID: "HBK0001", BookingID: "BK0001", RoomID: "RM0001",
		CheckIn: day(2025, 12, 1), CheckOut: day(2025, 12, 3), Guests: 1,
	})

	ok, err := engine.RoomAvailable(ctx, "RM0001", day(2025, 12, 3), day(2025, 12, 5), 1)
	require.NoError(t, err)
	assert.True(t, ok, "touching stay must be accepted")

	ok, err = engine.RoomAvailable(ctx, "RM0001", day(2025, 12, 2), day(2025, 12, 4), 1)
	require.NoError(t, err)
	assert.False(t, ok, "overlapping stay must be rejected")

	ok, err = engine.RoomAvailable(ctx, "RM0001", day(2025, 12, 10), day(2025, 12, 12), 2)
	require.NoError(t, err)
	assert.False(t, ok, "room too small")

	_, err = engine.RoomAvailable(ctx, "RM0001", day(2025, 12, 5), day(2025, 12, 5), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = engine.RoomAvailable(ctx, "RM0404", day(2025, 12, 5), day(2025, 12, 6), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCarAvailable(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	engine := NewEngine(fx.tables, true)

	pickup := day(2025, 12, 1).Add(10 * time.Hour)
	dropoff := day(2025, 12, 3).Add(10 * time.Hour)
	fx.booking(t, "BK0001", models.StatusPending)
	fx.add(t, models.TableCarBooking, models.CarBooking{ID: "CBK0001", BookingID: "BK0001", CarID: "CR0001", PickupTime: pickup, DropoffTime: dropoff})

	ok, err := engine.CarAvailable(ctx, "CR0001", dropoff, dropoff.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.CarAvailable(ctx, "CR0001", pickup.Add(time.Hour), dropoff.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = engine.CarAvailable(ctx, "CR0001", dropoff, pickup)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	engine := NewEngine(fx.tables, true)

	fx.booking(t, "BK0001", models.StatusConfirmed)
	fx.add(t, models.TableHotelBooking, models.HotelBooking{
		ID: "HBK0001", BookingID: "BK0001", RoomID: "RM0002",
		CheckIn: day(2025, 12, 1), CheckOut: day(2025, 12, 3), Guests: 2,
	})

	t.Run("Flights", func(t *testing.T) {
		offers, err := engine.SearchFlights(ctx, FlightQuery{Origin: "lis", Destination: "OPO", Date: day(2025, 12, 1), Passengers: 2})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, "FL0001", offers[0].ID)
		assert.Equal(t, models.SeatEconomy, offers[0].SeatClass)
		assert.InDelta(t, 700.0, offers[0].TotalPrice, 0.001)

		offers, err = engine.SearchFlights(ctx, FlightQuery{Origin: "LIS", Date: day(2025, 12, 2)})
		require.NoError(t, err)
		assert.Empty(t, offers)
	})

	t.Run("Rooms", func(t *testing.T) {
		offers, err := engine.SearchRooms(ctx, RoomQuery{CityID: "CT0001", CheckIn: day(2025, 12, 2), CheckOut: day(2025, 12, 4)})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, "RM0001", offers[0].ID)
		assert.Equal(t, "Baixa Inn", offers[0].Hotel.Name)
		assert.Equal(t, 2, offers[0].Nights)
		assert.InDelta(t, 160.0, offers[0].TotalPrice, 0.001)
	})

	t.Run("Cars", func(t *testing.T) {
		offers, err := engine.SearchCars(ctx, CarQuery{CityID: "CT0001", Pickup: day(2025, 12, 1), Dropoff: day(2025, 12, 4)})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, 3, offers[0].Days)
		assert.InDelta(t, 120.0, offers[0].TotalPrice, 0.001)
	})

	t.Run("Airports", func(t *testing.T) {
		all, err := engine.Airports(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		lisbon, err := engine.Airports(ctx, "CT0001")
		require.NoError(t, err)
		require.Len(t, lisbon, 1)
		assert.Equal(t, "LIS", lisbon[0].Code)
	})
}
