package models

import (
	"strconv"
	"time"
)

type City struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Country string `json:"country" yaml:"country"`
	Region  string `json:"region" yaml:"region"`
}

type Airport struct {
	Code   string `json:"code" yaml:"code"`
	Name   string `json:"name" yaml:"name"`
	CityID string `json:"city_id" yaml:"city_id"`
}

type Flight struct {
	ID              string    `json:"id" yaml:"id"`
	FlightNumber    string    `json:"flight_number" yaml:"flight_number"`
	AirlineName     string    `json:"airline_name" yaml:"airline_name"`
	AircraftModel   string    `json:"aircraft_model" yaml:"aircraft_model"`
	OriginCode      string    `json:"origin_code" yaml:"origin_code"`
	DestinationCode string    `json:"destination_code" yaml:"destination_code"`
	DepartureTime   time.Time `json:"departure_time" yaml:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time" yaml:"arrival_time"`
	BasePrice       float64   `json:"base_price" yaml:"base_price"`
}

type Hotel struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	CityID        string  `json:"city_id" yaml:"city_id"`
	Address       string  `json:"address" yaml:"address"`
	Rating        float64 `json:"rating" yaml:"rating"`
	ContactNumber string  `json:"contact_number" yaml:"contact_number"`
	Description   string  `json:"description" yaml:"description"`
}

type Room struct {
	ID            string  `json:"id" yaml:"id"`
	HotelID       string  `json:"hotel_id" yaml:"hotel_id"`
	RoomType      string  `json:"room_type" yaml:"room_type"`
	Capacity      int     `json:"capacity" yaml:"capacity"`
	PricePerNight float64 `json:"price_per_night" yaml:"price_per_night"`
}

type Car struct {
	ID           string  `json:"id" yaml:"id"`
	CityID       string  `json:"city_id" yaml:"city_id"`
	Model        string  `json:"model" yaml:"model"`
	Brand        string  `json:"brand" yaml:"brand"`
	Year         int     `json:"year" yaml:"year"`
	Seats        int     `json:"seats" yaml:"seats"`
	Transmission string  `json:"transmission" yaml:"transmission"`
	FuelType     string  `json:"fuel_type" yaml:"fuel_type"`
	PricePerDay  float64 `json:"price_per_day" yaml:"price_per_day"`
}

func CityFromRow(r Row) (City, error) {
	f := newReader(r)
	c := City{ID: f.required("id"), Name: f.str("name"), Country: f.str("country"), Region: f.str("region")}
	return c, f.err
}

func (c City) Values() []interface{} {
	return []interface{}{c.ID, c.Name, c.Country, c.Region}
}

func AirportFromRow(r Row) (Airport, error) {
	f := newReader(r)
	a := Airport{Code: f.required("code"), Name: f.str("name"), CityID: f.str("city_id")}
	return a, f.err
}

func (a Airport) Values() []interface{} {
	return []interface{}{a.Code, a.Name, a.CityID}
}

func FlightFromRow(r Row) (Flight, error) {
	f := newReader(r)
	fl := Flight{
		ID:              f.required("id"),
		FlightNumber:    f.str("flight_number"),
		AirlineName:     f.str("airline_name"),
		AircraftModel:   f.str("aircraft_model"),
		OriginCode:      f.str("origin_code"),
		DestinationCode: f.str("destination_code"),
		DepartureTime:   f.time("departure_time"),
		ArrivalTime:     f.time("arrival_time"),
		BasePrice:       f.float("base_price"),
	}
	return fl, f.err
}

func (fl Flight) Values() []interface{} {
	return []interface{}{
		fl.ID, fl.FlightNumber, fl.AirlineName, fl.AircraftModel, fl.OriginCode, fl.DestinationCode,
		FormatTime(fl.DepartureTime), FormatTime(fl.ArrivalTime), FormatMoney(fl.BasePrice),
	}
}

func HotelFromRow(r Row) (Hotel, error) {
	f := newReader(r)
	h := Hotel{
		ID:            f.required("id"),
		Name:          f.str("name"),
		CityID:        f.str("city_id"),
		Address:       f.str("address"),
		Rating:        f.optFloat("rating"),
		ContactNumber: f.str("contact_number"),
		Description:   f.str("description"),
	}
	return h, f.err
}

func (h Hotel) Values() []interface{} {
	return []interface{}{
		h.ID, h.Name, h.CityID, h.Address,
		strconv.FormatFloat(h.Rating, 'f', -1, 64), h.ContactNumber, h.Description,
	}
}

func RoomFromRow(r Row) (Room, error) {
	f := newReader(r)
	rm := Room{
		ID:            f.required("id"),
		HotelID:       f.str("hotel_id"),
		RoomType:      f.str("room_type"),
		Capacity:      f.int("capacity"),
		PricePerNight: f.float("price_per_night"),
	}
	return rm, f.err
}

func (rm Room) Values() []interface{} {
	return []interface{}{rm.ID, rm.HotelID, rm.RoomType, itoa(rm.Capacity), FormatMoney(rm.PricePerNight)}
}

func CarFromRow(r Row) (Car, error) {
	f := newReader(r)
	c := Car{
		ID:           f.required("id"),
		CityID:       f.str("city_id"),
		Model:        f.str("model"),
		Brand:        f.str("brand"),
		Year:         f.optInt("year"),
		Seats:        f.optInt("seats"),
		Transmission: f.str("transmission"),
		FuelType:     f.str("fuel_type"),
		PricePerDay:  f.float("price_per_day"),
	}
	return c, f.err
}

func (c Car) Values() []interface{} {
	return []interface{}{
		c.ID, c.CityID, c.Model, c.Brand, itoa(c.Year), itoa(c.Seats),
		c.Transmission, c.FuelType, FormatMoney(c.PricePerDay),
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
