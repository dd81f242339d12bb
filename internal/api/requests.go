package api

import (
	"strconv"
	"strings"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/service"
)

// Request payloads carry timestamps as strings: RFC 3339 or YYYY-MM-DD.
// A flight's passenger count defaults to the number of passenger_details.

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type flightRequest struct {
	FlightID   string `json:"flight_id" binding:"required"`
	SeatClass  string `json:"seat_class"`
	Passengers *int   `json:"passengers"`
}

type hotelRequest struct {
	RoomID   string `json:"room_id" binding:"required"`
	CheckIn  string `json:"check_in" binding:"required"`
	CheckOut string `json:"check_out" binding:"required"`
	Guests   int    `json:"guests"`
}

type carRequest struct {
	CarID           string `json:"car_id" binding:"required"`
	PickupTime      string `json:"pickup_time" binding:"required"`
	DropoffTime     string `json:"dropoff_time" binding:"required"`
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
}

type passengerRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Gender     string `json:"gender"`
	DOB        string `json:"dob"`
	PassportNo string `json:"passport_no"`
}

type createBookingRequest struct {
	Flight     *flightRequest     `json:"flight"`
	Hotel      *hotelRequest      `json:"hotel"`
	Car        *carRequest        `json:"car"`
	Passengers []passengerRequest `json:"passenger_details"`
}

type bookFlightRequest struct {
	flightRequest
	Passengers []passengerRequest `json:"passenger_details"`
}

type bookHotelRequest struct {
	hotelRequest
	Passengers []passengerRequest `json:"passenger_details"`
}

type bookCarRequest struct {
	carRequest
	Passengers []passengerRequest `json:"passenger_details"`
}

type paymentRequest struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount" binding:"required"`
}

type passengerUpdateRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Gender     *string `json:"gender"`
	DOB        *string `json:"dob"`
	PassportNo *string `json:"passport_no"`
}

func parseField(name, value string) (time.Time, error) {
	t, err := models.ParseTime(value)
	if err != nil {
		return time.Time{}, domain.Errorf(domain.ErrValidation, "%s: expected RFC 3339 or YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

// toService falls back to the number of passenger details only when the
// count is absent; an explicit value is left for the service to validate.
func (r *flightRequest) toService(details int) service.FlightRequest {
	n := details
	if r.Passengers != nil {
		n = *r.Passengers
	}
	return service.FlightRequest{FlightID: r.FlightID, SeatClass: r.SeatClass, Passengers: n}
}

func (r *hotelRequest) toService() (service.HotelRequest, error) {
	in, err := parseField("check_in", r.CheckIn)
	if err != nil {
		return service.HotelRequest{}, err
	}
	out, err := parseField("check_out", r.CheckOut)
	if err != nil {
		return service.HotelRequest{}, err
	}
	return service.HotelRequest{RoomID: r.RoomID, CheckIn: in, CheckOut: out, Guests: r.Guests}, nil
}

func (r *carRequest) toService() (service.CarRequest, error) {
	pickup, err := parseField("pickup_time", r.PickupTime)
	if err != nil {
		return service.CarRequest{}, err
	}
	dropoff, err := parseField("dropoff_time", r.DropoffTime)
	if err != nil {
		return service.CarRequest{}, err
	}
	return service.CarRequest{
		CarID: r.CarID, PickupTime: pickup, DropoffTime: dropoff,
		PickupLocation: r.PickupLocation, DropoffLocation: r.DropoffLocation,
	}, nil
}

func passengersToService(in []passengerRequest) ([]service.PassengerInput, error) {
	out := make([]service.PassengerInput, 0, len(in))
	for i, p := range in {
		var dob time.Time
		if strings.TrimSpace(p.DOB) != "" {
			var err error
			if dob, err = parseField("passenger_details["+strconv.Itoa(i)+"].dob", p.DOB); err != nil {
				return nil, err
			}
		}
		out = append(out, service.PassengerInput{
			FirstName: p.FirstName, LastName: p.LastName, Gender: p.Gender, DOB: dob, PassportNo: p.PassportNo,
		})
	}
	return out, nil
}

func (r *createBookingRequest) toService() (service.CreateBookingInput, error) {
	var in service.CreateBookingInput
	if r.Flight != nil {
		f := r.Flight.toService(len(r.Passengers))
		in.Flight = &f
	}
	if r.Hotel != nil {
		h, err := r.Hotel.toService()
		if err != nil {
			return in, err
		}
		in.Hotel = &h
	}
	if r.Car != nil {
		c, err := r.Car.toService()
		if err != nil {
			return in, err
		}
		in.Car = &c
	}
	passengers, err := passengersToService(r.Passengers)
	if err != nil {
		return in, err
	}
	in.Passengers = passengers
	return in, nil
}

func (r *passengerUpdateRequest) toService() (service.PassengerUpdate, error) {
	upd := service.PassengerUpdate{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Gender:     r.Gender,
		PassportNo: r.PassportNo,
	}
	if r.DOB != nil {
		dob, err := parseField("dob", *r.DOB)
		if err != nil {
			return upd, err
		}
		upd.DOB = &dob
	}
	return upd, nil
}
