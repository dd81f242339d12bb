package availability

import (
	"context"
	"strings"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
)

type FlightQuery struct {
	Origin      string
	Destination string
	Date        time.Time
	SeatClass   string
	Passengers  int
}

type FlightOffer struct {
	models.Flight
	SeatClass      string  `json:"seat_class"`
	AvailableSeats int     `json:"available_seats"`
	TotalPrice     float64 `json:"total_price"`
}

type RoomQuery struct {
	CityID   string
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

type RoomOffer struct {
	models.Room
	Hotel      models.Hotel `json:"hotel"`
	Nights     int          `json:"nights"`
	TotalPrice float64      `json:"total_price"`
}

type CarQuery struct {
	CityID  string
	Pickup  time.Time
	Dropoff time.Time
}

type CarOffer struct {
	models.Car
	Days       int     `json:"days"`
	TotalPrice float64 `json:"total_price"`
}

// SearchFlights lists flights on a route, optionally on one departure date,
// that still have enough seats in the requested class.
func (e *Engine) SearchFlights(ctx context.Context, q FlightQuery) ([]FlightOffer, error) {
	if q.SeatClass == "" {
		q.SeatClass = models.SeatEconomy
	}
	if !models.ValidSeatClass(q.SeatClass) {
		return nil, domain.Errorf(domain.ErrValidation, "unknown seat class %q", q.SeatClass)
	}
	if q.Passengers < 1 {
		q.Passengers = 1
	}

	flights, err := e.tables.Flights(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := e.tables.FlightBookings(ctx)
	if err != nil {
		return nil, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return nil, err
	}

	offers := []FlightOffer{}
	for _, fl := range flights {
		if q.Origin != "" && !strings.EqualFold(fl.OriginCode, q.Origin) {
			continue
		}
		if q.Destination != "" && !strings.EqualFold(fl.DestinationCode, q.Destination) {
			continue
		}
		if !q.Date.IsZero() && models.FormatDate(fl.DepartureTime) != models.FormatDate(q.Date) {
			continue
		}
		seats := models.SeatsPerClass - SeatsTaken(bookings, fl.ID, q.SeatClass, skip)
		if seats < q.Passengers {
			continue
		}
		offers = append(offers, FlightOffer{
			Flight:         fl,
			SeatClass:      q.SeatClass,
			AvailableSeats: seats,
			TotalPrice:     models.RoundMoney(fl.BasePrice * float64(q.Passengers)),
		})
	}
	return offers, nil
}

// SearchRooms lists rooms in a city that are free for the whole stay and
// large enough for the party.
func (e *Engine) SearchRooms(ctx context.Context, q RoomQuery) ([]RoomOffer, error) {
	if err := ValidateRange(q.CheckIn, q.CheckOut); err != nil {
		return nil, err
	}
	if q.Guests < 1 {
		q.Guests = 1
	}

	hotels, err := e.tables.Hotels(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Hotel, len(hotels))
	for _, h := range hotels {
		if q.CityID == "" || h.CityID == q.CityID {
			byID[h.ID] = h
		}
	}

	rooms, err := e.tables.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := e.tables.HotelBookings(ctx)
	if err != nil {
		return nil, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return nil, err
	}

	nights := Nights(q.CheckIn, q.CheckOut)
	offers := []RoomOffer{}
	for _, rm := range rooms {
		hotel, ok := byID[rm.HotelID]
		if !ok || rm.Capacity < q.Guests {
			continue
		}
		if !roomFree(bookings, rm.ID, q.CheckIn, q.CheckOut, skip) {
			continue
		}
		offers = append(offers, RoomOffer{
			Room:       rm,
			Hotel:      hotel,
			Nights:     nights,
			TotalPrice: models.RoundMoney(rm.PricePerNight * float64(nights)),
		})
	}
	return offers, nil
}

// SearchCars lists cars in a city that are free for the rental window.
func (e *Engine) SearchCars(ctx context.Context, q CarQuery) ([]CarOffer, error) {
	if err := ValidateRange(q.Pickup, q.Dropoff); err != nil {
		return nil, err
	}

	cars, err := e.tables.Cars(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := e.tables.CarBookings(ctx)
	if err != nil {
		return nil, err
	}
	skip, err := e.skipped(ctx)
	if err != nil {
		return nil, err
	}

	days := CarDays(q.Pickup, q.Dropoff)
	offers := []CarOffer{}
	for _, c := range cars {
		if q.CityID != "" && c.CityID != q.CityID {
			continue
		}
		if !carFree(bookings, c.ID, q.Pickup, q.Dropoff, skip) {
			continue
		}
		offers = append(offers, CarOffer{
			Car:        c,
			Days:       days,
			TotalPrice: models.RoundMoney(c.PricePerDay * float64(days)),
		})
	}
	return offers, nil
}

func (e *Engine) Cities(ctx context.Context) ([]models.City, error) {
	return e.tables.Cities(ctx)
}

// Airports lists airports, narrowed to one city when cityID is set.
func (e *Engine) Airports(ctx context.Context, cityID string) ([]models.Airport, error) {
	airports, err := e.tables.Airports(ctx)
	if err != nil {
		return nil, err
	}
	if cityID == "" {
		return airports, nil
	}
	out := []models.Airport{}
	for _, a := range airports {
		if a.CityID == cityID {
			out = append(out, a)
		}
	}
	return out, nil
}
