package models

// Table names. Each table is one sheet of the row store.
const (
	TableUser          = "User"
	TableSession       = "Session"
	TableCity          = "City"
	TableAirport       = "Airport"
	TableFlight        = "Flight"
	TableHotel         = "Hotel"
	TableRoom          = "Room"
	TableCar           = "Car"
	TableBooking       = "Booking"
	TableFlightBooking = "FlightBooking"
	TableHotelBooking  = "HotelBooking"
	TableCarBooking    = "CarBooking"
	TablePassenger     = "Passenger"
	TablePayment       = "Payment"
)

// HeaderRows is the number of header rows at the top of every sheet.
const HeaderRows = 1

// IDSpec describes how identifiers of a table are formed.
type IDSpec struct {
	Table  string
	Prefix string
	Width  int
}

var (
	UserIDs          = IDSpec{Table: TableUser, Prefix: "USR", Width: 4}
	SessionIDs       = IDSpec{Table: TableSession, Prefix: "SES", Width: 4}
	CityIDs          = IDSpec{Table: TableCity, Prefix: "CT", Width: 4}
	FlightIDs        = IDSpec{Table: TableFlight, Prefix: "FL", Width: 4}
	HotelIDs         = IDSpec{Table: TableHotel, Prefix: "HT", Width: 4}
	RoomIDs          = IDSpec{Table: TableRoom, Prefix: "RM", Width: 4}
	CarIDs           = IDSpec{Table: TableCar, Prefix: "CR", Width: 4}
	BookingIDs       = IDSpec{Table: TableBooking, Prefix: "BK", Width: 4}
	FlightBookingIDs = IDSpec{Table: TableFlightBooking, Prefix: "FBK", Width: 4}
	HotelBookingIDs  = IDSpec{Table: TableHotelBooking, Prefix: "HBK", Width: 4}
	CarBookingIDs    = IDSpec{Table: TableCarBooking, Prefix: "CBK", Width: 4}
	PassengerIDs     = IDSpec{Table: TablePassenger, Prefix: "PAX", Width: 4}
	PaymentIDs       = IDSpec{Table: TablePayment, Prefix: "PA", Width: 5}
)

// Columns lists the header of every table in sheet order.
var Columns = map[string][]string{
	TableUser:          {"id", "email", "password_hash", "full_name", "role", "created_at", "last_login"},
	TableSession:       {"id", "user_id", "auth_token", "created_at", "expires_at"},
	TableCity:          {"id", "name", "country", "region"},
	TableAirport:       {"code", "name", "city_id"},
	TableFlight:        {"id", "flight_number", "airline_name", "aircraft_model", "origin_code", "destination_code", "departure_time", "arrival_time", "base_price"},
	TableHotel:         {"id", "name", "city_id", "address", "rating", "contact_number", "description"},
	TableRoom:          {"id", "hotel_id", "room_type", "capacity", "price_per_night"},
	TableCar:           {"id", "city_id", "model", "brand", "year", "seats", "transmission", "fuel_type", "price_per_day"},
	TableBooking:       {"id", "user_id", "status", "booked_at", "total_price"},
	TableFlightBooking: {"id", "booking_id", "flight_id", "seat_class", "passengers"},
	TableHotelBooking:  {"id", "booking_id", "room_id", "check_in", "check_out", "guests"},
	TableCarBooking:    {"id", "booking_id", "car_id", "pickup_time", "dropoff_time", "pickup_location", "dropoff_location"},
	TablePassenger:     {"id", "booking_id", "first_name", "last_name", "gender", "dob", "passport_no"},
	TablePayment:       {"id", "booking_id", "method", "amount", "paid_at", "status", "transaction_ref"},
}

// TableNames returns every table in a stable order.
func TableNames() []string {
	return []string{
		TableUser, TableSession, TableCity, TableAirport, TableFlight, TableHotel, TableRoom, TableCar,
		TableBooking, TableFlightBooking, TableHotelBooking, TableCarBooking, TablePassenger, TablePayment,
	}
}

// KeyColumn returns the column holding a table's identifier.
func KeyColumn(table string) string {
	if table == TableAirport {
		return "code"
	}
	return "id"
}

// SheetRow converts a 0-based data row index to the 1-based absolute sheet row.
// It is the only place the header offset is applied.
func SheetRow(index int) int {
	return index + HeaderRows + 1
}
