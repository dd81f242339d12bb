package repository

import (
	"context"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

// Tables parses row store rows into typed records. Core components read
// through it and never touch raw field maps.
type Tables struct {
	store  domain.RowStore
	logger *zerolog.Logger
}

func NewTables(store domain.RowStore, logger *zerolog.Logger) *Tables {
	return &Tables{store: store, logger: logger}
}

func (t *Tables) Store() domain.RowStore {
	return t.store
}

// FindRowByID returns the row whose key column equals id.
func (t *Tables) FindRowByID(ctx context.Context, table, id string) (models.Row, error) {
	rows, err := t.store.ReadTable(ctx, table)
	if err != nil {
		return models.Row{}, err
	}
	key := models.KeyColumn(table)
	for _, r := range rows {
		if r.Get(key) == id {
			return r, nil
		}
	}
	return models.Row{}, domain.Errorf(domain.ErrNotFound, "%s %s not found", table, id)
}

// UpdateByID rewrites the row whose key column equals id.
func (t *Tables) UpdateByID(ctx context.Context, table, id string, values []interface{}) error {
	row, err := t.FindRowByID(ctx, table, id)
	if err != nil {
		return err
	}
	return t.store.UpdateRow(ctx, table, row.Index, values)
}

// DeleteByID clears the row whose key column equals id.
func (t *Tables) DeleteByID(ctx context.Context, table, id string) error {
	row, err := t.FindRowByID(ctx, table, id)
	if err != nil {
		return err
	}
	return t.store.DeleteRow(ctx, table, row.Index)
}

// reservationTables feed availability; a row there that cannot be parsed
// would understate what is taken, so reads fail instead of skipping it.
var reservationTables = map[string]bool{
	models.TableFlightBooking: true,
	models.TableHotelBooking:  true,
	models.TableCarBooking:    true,
}

func readAll[T any](ctx context.Context, t *Tables, table string, parse func(models.Row) (T, error)) ([]T, error) {
	rows, err := t.store.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.Empty() {
			continue
		}
		v, err := parse(r)
		if err != nil && reservationTables[table] {
			return nil, domain.StoreError("parse", table, err)
		}
		if err != nil {
			t.logger.Warn().Err(err).Str("table", table).Msg("skipping malformed row")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, t *Tables, table, id string, parse func(models.Row) (T, error)) (T, models.Row, error) {
	var zero T
	row, err := t.FindRowByID(ctx, table, id)
	if err != nil {
		return zero, models.Row{}, err
	}
	v, err := parse(row)
	if err != nil {
		return zero, row, domain.StoreError("parse", table, err)
	}
	return v, row, nil
}

func (t *Tables) Users(ctx context.Context) ([]models.User, error) {
	return readAll(ctx, t, models.TableUser, models.UserFromRow)
}

func (t *Tables) Sessions(ctx context.Context) ([]models.Session, error) {
	return readAll(ctx, t, models.TableSession, models.SessionFromRow)
}

func (t *Tables) Cities(ctx context.Context) ([]models.City, error) {
	return readAll(ctx, t, models.TableCity, models.CityFromRow)
}

func (t *Tables) Airports(ctx context.Context) ([]models.Airport, error) {
	return readAll(ctx, t, models.TableAirport, models.AirportFromRow)
}

func (t *Tables) Flights(ctx context.Context) ([]models.Flight, error) {
	return readAll(ctx, t, models.TableFlight, models.FlightFromRow)
}

func (t *Tables) Hotels(ctx context.Context) ([]models.Hotel, error) {
	return readAll(ctx, t, models.TableHotel, models.HotelFromRow)
}

func (t *Tables) Rooms(ctx context.Context) ([]models.Room, error) {
	return readAll(ctx, t, models.TableRoom, models.RoomFromRow)
}

func (t *Tables) Cars(ctx context.Context) ([]models.Car, error) {
	return readAll(ctx, t, models.TableCar, models.CarFromRow)
}

func (t *Tables) Bookings(ctx context.Context) ([]models.Booking, error) {
	return readAll(ctx, t, models.TableBooking, models.BookingFromRow)
}

func (t *Tables) FlightBookings(ctx context.Context) ([]models.FlightBooking, error) {
	return readAll(ctx, t, models.TableFlightBooking, models.FlightBookingFromRow)
}

func (t *Tables) HotelBookings(ctx context.Context) ([]models.HotelBooking, error) {
	return readAll(ctx, t, models.TableHotelBooking, models.HotelBookingFromRow)
}

func (t *Tables) CarBookings(ctx context.Context) ([]models.CarBooking, error) {
	return readAll(ctx, t, models.TableCarBooking, models.CarBookingFromRow)
}

func (t *Tables) Passengers(ctx context.Context) ([]models.Passenger, error) {
	return readAll(ctx, t, models.TablePassenger, models.PassengerFromRow)
}

func (t *Tables) Payments(ctx context.Context) ([]models.Payment, error) {
	return readAll(ctx, t, models.TablePayment, models.PaymentFromRow)
}

func (t *Tables) FindUser(ctx context.Context, id string) (models.User, error) {
	u, _, err := findOne(ctx, t, models.TableUser, id, models.UserFromRow)
	return u, err
}

func (t *Tables) FindFlight(ctx context.Context, id string) (models.Flight, error) {
	f, _, err := findOne(ctx, t, models.TableFlight, id, models.FlightFromRow)
	return f, err
}

func (t *Tables) FindRoom(ctx context.Context, id string) (models.Room, error) {
	r, _, err := findOne(ctx, t, models.TableRoom, id, models.RoomFromRow)
	return r, err
}

func (t *Tables) FindCar(ctx context.Context, id string) (models.Car, error) {
	c, _, err := findOne(ctx, t, models.TableCar, id, models.CarFromRow)
	return c, err
}

func (t *Tables) FindBooking(ctx context.Context, id string) (models.Booking, error) {
	b, _, err := findOne(ctx, t, models.TableBooking, id, models.BookingFromRow)
	return b, err
}

func (t *Tables) FindPassenger(ctx context.Context, id string) (models.Passenger, error) {
	p, _, err := findOne(ctx, t, models.TablePassenger, id, models.PassengerFromRow)
	return p, err
}

// CancelledBookingIDs returns the IDs of every cancelled booking.
func (t *Tables) CancelledBookingIDs(ctx context.Context) (map[string]struct{}, error) {
	bookings, err := t.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			ids[b.ID] = struct{}{}
		}
	}
	return ids, nil
}

// Details joins a booking with its reservations, passengers and payment.
func (t *Tables) Details(ctx context.Context, b models.Booking) (*models.BookingDetails, error) {
	all, err := t.DetailsMany(ctx, []models.Booking{b})
	if err != nil {
		return nil, err
	}
	return &all[0], nil
}

// DetailsMany joins several bookings, reading each child table once. When a
// booking has several payments the latest successful one wins.
func (t *Tables) DetailsMany(ctx context.Context, bookings []models.Booking) ([]models.BookingDetails, error) {
	out := make([]models.BookingDetails, len(bookings))
	pos := make(map[string]int, len(bookings))
	for i, b := range bookings {
		out[i] = models.BookingDetails{
			Booking:    b,
			Flights:    []models.FlightBooking{},
			Hotels:     []models.HotelBooking{},
			Cars:       []models.CarBooking{},
			Passengers: []models.Passenger{},
		}
		pos[b.ID] = i
	}
	if len(bookings) == 0 {
		return out, nil
	}

	flights, err := t.FlightBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, fb := range flights {
		if i, ok := pos[fb.BookingID]; ok {
			out[i].Flights = append(out[i].Flights, fb)
		}
	}

	hotels, err := t.HotelBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, hb := range hotels {
		if i, ok := pos[hb.BookingID]; ok {
			out[i].Hotels = append(out[i].Hotels, hb)
		}
	}

	cars, err := t.CarBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, cb := range cars {
		if i, ok := pos[cb.BookingID]; ok {
			out[i].Cars = append(out[i].Cars, cb)
		}
	}

	passengers, err := t.Passengers(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range passengers {
		if i, ok := pos[p.BookingID]; ok {
			out[i].Passengers = append(out[i].Passengers, p)
		}
	}

	payments, err := t.Payments(ctx)
	if err != nil {
		return nil, err
	}
	for j := range payments {
		p := payments[j]
		i, ok := pos[p.BookingID]
		if !ok {
			continue
		}
		cur := out[i].Payment
		if cur == nil || p.Status == models.PaymentSuccess || cur.Status != models.PaymentSuccess {
			out[i].Payment = &p
		}
	}
	return out, nil
}
