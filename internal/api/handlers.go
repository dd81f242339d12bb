package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"travelbook/internal/availability"
	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/service"

	"github.com/gin-gonic/gin"
)

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Principal, error)
}

type handlers struct {
	auth     *service.AuthService
	bookings *service.BookingService
	search   *availability.Engine
}

// bind decodes the JSON body into dst and reports failures as validation errors.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, domain.Errorf(domain.ErrValidation, "invalid request body: %v", err))
		return false
	}
	return true
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email: req.Email, Password: req.Password, FirstName: req.FirstName, LastName: req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) searchFlights(c *gin.Context) {
	q := availability.FlightQuery{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		SeatClass:   c.Query("seat_class"),
	}
	if raw := c.Query("date"); raw != "" {
		d, err := parseField("date", raw)
		if err != nil {
			respondError(c, err)
			return
		}
		q.Date = d
	}
	n, err := queryInt(c, "passengers", 1)
	if err != nil {
		respondError(c, err)
		return
	}
	q.Passengers = n

	offers, err := h.search.SearchFlights(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": offers})
}

func (h *handlers) searchRooms(c *gin.Context) {
	checkIn, checkOut, err := queryRange(c, "check_in", "check_out")
	if err != nil {
		respondError(c, err)
		return
	}
	guests, err := queryInt(c, "guests", 1)
	if err != nil {
		respondError(c, err)
		return
	}
	offers, err := h.search.SearchRooms(c.Request.Context(), availability.RoomQuery{
		CityID: c.Query("city_id"), CheckIn: checkIn, CheckOut: checkOut, Guests: guests,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": offers})
}

func (h *handlers) searchCars(c *gin.Context) {
	pickup, dropoff, err := queryRange(c, "pickup_time", "dropoff_time")
	if err != nil {
		respondError(c, err)
		return
	}
	offers, err := h.search.SearchCars(c.Request.Context(), availability.CarQuery{
		CityID: c.Query("city_id"), Pickup: pickup, Dropoff: dropoff,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cars": offers})
}

func (h *handlers) cities(c *gin.Context) {
	cities, err := h.search.Cities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

func (h *handlers) airports(c *gin.Context) {
	airports, err := h.search.Airports(c.Request.Context(), c.Query("city_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"airports": airports})
}

func (h *handlers) createBooking(c *gin.Context) {
	var req createBookingRequest
	if !bind(c, &req) {
		return
	}
	in, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondBooking(c, func() (*models.BookingDetails, error) {
		return h.bookings.CreateBooking(c.Request.Context(), userID(c), in)
	})
}

func (h *handlers) bookFlight(c *gin.Context) {
	var req bookFlightRequest
	if !bind(c, &req) {
		return
	}
	passengers, err := passengersToService(req.Passengers)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondBooking(c, func() (*models.BookingDetails, error) {
		return h.bookings.BookFlight(c.Request.Context(), userID(c), req.flightRequest.toService(len(passengers)), passengers)
	})
}

func (h *handlers) bookHotel(c *gin.Context) {
	var req bookHotelRequest
	if !bind(c, &req) {
		return
	}
	hotel, err := req.hotelRequest.toService()
	if err != nil {
		respondError(c, err)
		return
	}
	passengers, err := passengersToService(req.Passengers)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondBooking(c, func() (*models.BookingDetails, error) {
		return h.bookings.BookHotel(c.Request.Context(), userID(c), hotel, passengers)
	})
}

func (h *handlers) bookCar(c *gin.Context) {
	var req bookCarRequest
	if !bind(c, &req) {
		return
	}
	car, err := req.carRequest.toService()
	if err != nil {
		respondError(c, err)
		return
	}
	passengers, err := passengersToService(req.Passengers)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondBooking(c, func() (*models.BookingDetails, error) {
		return h.bookings.BookCar(c.Request.Context(), userID(c), car, passengers)
	})
}

func (h *handlers) respondBooking(c *gin.Context, create func() (*models.BookingDetails, error)) {
	d, err := create()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *handlers) getBooking(c *gin.Context) {
	d, err := h.bookings.GetBooking(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) listBookings(c *gin.Context) {
	list, err := h.bookings.ListBookings(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

func (h *handlers) pay(c *gin.Context) {
	var req paymentRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.bookings.ProcessPayment(c.Request.Context(), userID(c), c.Param("id"), service.PaymentInput{
		Method: req.Method, Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) cancel(c *gin.Context) {
	res, err := h.bookings.CancelBooking(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) updatePassenger(c *gin.Context) {
	var req passengerUpdateRequest
	if !bind(c, &req) {
		return
	}
	upd, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.bookings.UpdatePassenger(c.Request.Context(), userID(c), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func queryRange(c *gin.Context, startKey, endKey string) (time.Time, time.Time, error) {
	rawStart, rawEnd := c.Query(startKey), c.Query(endKey)
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, domain.Errorf(domain.ErrValidation, "%s and %s are required", startKey, endKey)
	}
	start, err := parseField(startKey, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseField(endKey, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Errorf(domain.ErrValidation, "%s must be a positive integer", key)
	}
	if n < 1 {
		return 0, domain.Errorf(domain.ErrValidation, "%s must be a positive integer", key)
	}
	return n, nil
}
