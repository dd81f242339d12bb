package models

import "time"

// Booking is the aggregate root owning reservations, passengers and a payment.
type Booking struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	BookedAt   time.Time `json:"booked_at"`
	TotalPrice float64   `json:"total_price"`
}

type FlightBooking struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	FlightID   string `json:"flight_id"`
	SeatClass  string `json:"seat_class"`
	Passengers int    `json:"passengers"`
}

type HotelBooking struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	RoomID    string    `json:"room_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Guests    int       `json:"guests"`
}

type CarBooking struct {
	ID              string    `json:"id"`
	BookingID       string    `json:"booking_id"`
	CarID           string    `json:"car_id"`
	PickupTime      time.Time `json:"pickup_time"`
	DropoffTime     time.Time `json:"dropoff_time"`
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
}

type Passenger struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Gender     string    `json:"gender"`
	DOB        time.Time `json:"dob"`
	PassportNo string    `json:"passport_no"`
}

type Payment struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"booking_id"`
	Method         string    `json:"method"`
	Amount         float64   `json:"amount"`
	PaidAt         time.Time `json:"paid_at"`
	Status         string    `json:"status"`
	TransactionRef string    `json:"transaction_ref"`
}

// BookingDetails joins a booking with its child rows.
type BookingDetails struct {
	Booking
	Flights    []FlightBooking `json:"flights"`
	Hotels     []HotelBooking  `json:"hotels"`
	Cars       []CarBooking    `json:"cars"`
	Passengers []Passenger     `json:"passengers"`
	Payment    *Payment        `json:"payment,omitempty"`
}

func BookingFromRow(r Row) (Booking, error) {
	f := newReader(r)
	b := Booking{
		ID:         f.required("id"),
		UserID:     f.required("user_id"),
		Status:     f.required("status"),
		BookedAt:   f.time("booked_at"),
		TotalPrice: f.float("total_price"),
	}
	return b, f.err
}

func (b Booking) Values() []interface{} {
	return []interface{}{b.ID, b.UserID, b.Status, FormatTime(b.BookedAt), FormatMoney(b.TotalPrice)}
}

func FlightBookingFromRow(r Row) (FlightBooking, error) {
	f := newReader(r)
	fb := FlightBooking{
		ID:         f.required("id"),
		BookingID:  f.required("booking_id"),
		FlightID:   f.required("flight_id"),
		SeatClass:  f.str("seat_class"),
		Passengers: f.int("passengers"),
	}
	if fb.SeatClass == "" {
		fb.SeatClass = SeatEconomy
	}
	return fb, f.err
}

func (fb FlightBooking) Values() []interface{} {
	return []interface{}{fb.ID, fb.BookingID, fb.FlightID, fb.SeatClass, itoa(fb.Passengers)}
}

func HotelBookingFromRow(r Row) (HotelBooking, error) {
	f := newReader(r)
	hb := HotelBooking{
		ID:        f.required("id"),
		BookingID: f.required("booking_id"),
		RoomID:    f.required("room_id"),
		CheckIn:   f.time("check_in"),
		CheckOut:  f.time("check_out"),
		Guests:    f.optInt("guests"),
	}
	return hb, f.err
}

func (hb HotelBooking) Values() []interface{} {
	return []interface{}{hb.ID, hb.BookingID, hb.RoomID, FormatDate(hb.CheckIn), FormatDate(hb.CheckOut), itoa(hb.Guests)}
}

func CarBookingFromRow(r Row) (CarBooking, error) {
	f := newReader(r)
	cb := CarBooking{
		ID:              f.required("id"),
		BookingID:       f.required("booking_id"),
		CarID:           f.required("car_id"),
		PickupTime:      f.time("pickup_time"),
		DropoffTime:     f.time("dropoff_time"),
		PickupLocation:  f.str("pickup_location"),
		DropoffLocation: f.str("dropoff_location"),
	}
	return cb, f.err
}

func (cb CarBooking) Values() []interface{} {
	return []interface{}{
		cb.ID, cb.BookingID, cb.CarID,
		FormatTime(cb.PickupTime), FormatTime(cb.DropoffTime),
		cb.PickupLocation, cb.DropoffLocation,
	}
}

func PassengerFromRow(r Row) (Passenger, error) {
	f := newReader(r)
	p := Passenger{
		ID:         f.required("id"),
		BookingID:  f.required("booking_id"),
		FirstName:  f.str("first_name"),
		LastName:   f.str("last_name"),
		Gender:     f.str("gender"),
		PassportNo: f.str("passport_no"),
	}
	if dob := f.optTime("dob"); dob != nil {
		p.DOB = *dob
	}
	return p, f.err
}

func (p Passenger) Values() []interface{} {
	return []interface{}{p.ID, p.BookingID, p.FirstName, p.LastName, p.Gender, FormatDate(p.DOB), p.PassportNo}
}

func PaymentFromRow(r Row) (Payment, error) {
	f := newReader(r)
	p := Payment{
		ID:             f.required("id"),
		BookingID:      f.required("booking_id"),
		Method:         f.str("method"),
		Amount:         f.float("amount"),
		PaidAt:         f.time("paid_at"),
		Status:         f.required("status"),
		TransactionRef: f.str("transaction_ref"),
	}
	return p, f.err
}

func (p Payment) Values() []interface{} {
	return []interface{}{p.ID, p.BookingID, p.Method, FormatMoney(p.Amount), FormatTime(p.PaidAt), p.Status, p.TransactionRef}
}
