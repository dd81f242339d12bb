package availability

import (
	"context"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/repository"
)

// Engine answers capacity questions for seats, room-nights and car-days by
// summing the reservations that conflict with a request.
type Engine struct {
	tables           *repository.Tables
	releaseCancelled bool
}

// NewEngine builds an engine. With releaseCancelled set, reservations whose
// booking was cancelled no longer hold inventory.
func NewEngine(tables *repository.Tables, releaseCancelled bool) *Engine {
	return &Engine{tables: tables, releaseCancelled: releaseCancelled}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !(!aEnd.After(bStart) || !aStart.Before(bEnd))
}

// ValidateRange rejects empty and inverted intervals.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.Errorf(domain.ErrInvalidRange, "both ends of the interval are required")
	}
	if !start.Before(end) {
		return domain.Errorf(domain.ErrInvalidRange, "interval start %s must precede end %s",
			models.FormatTime(start), models.FormatTime(end))
	}
	return nil
}

// SeatsTaken sums passengers booked on a flight in a seat class, ignoring
// reservations that belong to a booking in skip.
func SeatsTaken(bookings []models.FlightBooking, flightID, seatClass string, skip map[string]struct{}) int {
	taken := 0
	for _, fb := range bookings {
		if fb.FlightID != flightID || fb.SeatClass != seatClass {
			continue
		}
		if _, ok := skip[fb.BookingID]; ok {
			continue
		}
		taken += fb.Passengers
	}
	return taken
}

// Nights counts whole calendar days between check-in and check-out.
func Nights(checkIn, checkOut time.Time) int {
	in := time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(checkOut.Year(), checkOut.Month(), checkOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

// CarDays counts whole 24h rental periods, with a minimum of one.
func CarDays(pickup, dropoff time.Time) int {
	days := int(dropoff.Sub(pickup) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

func (e *Engine) AvailableSeats(ctx context.Context, flightID, seatClass string) (int, error) {
	if !models.ValidSeatClass(seatClass) {
		return 0, domain.Errorf(domain.ErrValidation, "unknown seat class %q", seatClass)
	}
	if _, err := e.tables.FindFlight(ctx, flightID); err != nil {
		return 0, err
	}
	bookings, err := e.tables.FlightBookings(ctx)
	if err != nil {
		return 0, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return 0, err
	}
	return models.SeatsPerClass - SeatsTaken(bookings, flightID, seatClass, skip), nil
}

func (e *Engine) RoomAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time, guests int) (bool, error) {
	if err := ValidateRange(checkIn, checkOut); err != nil {
		return false, err
	}
	if guests < 1 {
		return false, domain.Errorf(domain.ErrValidation, "guests must be at least 1")
	}
	room, err := e.tables.FindRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Capacity < guests {
		return false, nil
	}
	bookings, err := e.tables.HotelBookings(ctx)
	if err != nil {
		return false, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return false, err
	}
	return roomFree(bookings, roomID, checkIn, checkOut, skip), nil
}

func (e *Engine) CarAvailable(ctx context.Context, carID string, pickup, dropoff time.Time) (bool, error) {
	if err := ValidateRange(pickup, dropoff); err != nil {
		return false, err
	}
	if _, err := e.tables.FindCar(ctx, carID); err != nil {
		return false, err
	}
	bookings, err := e.tables.CarBookings(ctx)
	if err != nil {
		return false, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return false, err
	}
	return carFree(bookings, carID, pickup, dropoff, skip), nil
}

func roomFree(bookings []models.HotelBooking, roomID string, checkIn, checkOut time.Time, skip map[string]struct{}) bool {
	for _, hb := range bookings {
		if hb.RoomID != roomID {
			continue
		}
		if _, ok := skip[hb.BookingID]; ok {
			continue
		}
		if Overlaps(checkIn, checkOut, hb.CheckIn, hb.CheckOut) {
			return false
		}
	}
	return true
}

func carFree(bookings []models.CarBooking, carID string, pickup, dropoff time.Time, skip map[string]struct{}) bool {
	for _, cb := range bookings {
		if cb.CarID != carID {
			continue
		}
		if _, ok := skip[cb.BookingID]; ok {
			continue
		}
		if Overlaps(pickup, dropoff, cb.PickupTime, cb.DropoffTime) {
			return false
		}
	}
	return true
}

// skipped returns the bookings whose reservations do not hold inventory.
func (e *Engine) skipped(ctx context.Context) (map[string]struct{}, error) {
	if !e.releaseCancelled {
		return map[string]struct{}{}, nil
	}
	return e.tables.CancelledBookingIDs(ctx)
}
