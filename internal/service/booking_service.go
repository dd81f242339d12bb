package service

import (
	"context"
	"math"
	"strings"
	"time"

	"travelbook/internal/availability"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/logging"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/rs/zerolog"
)

type FlightRequest struct {
	FlightID   string
	SeatClass  string
	Passengers int
}

type HotelRequest struct {
	RoomID   string
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

type CarRequest struct {
	CarID           string
	PickupTime      time.Time
	DropoffTime     time.Time
	PickupLocation  string
	DropoffLocation string
}

type PassengerInput struct {
	FirstName  string
	LastName   string
	Gender     string
	DOB        time.Time
	PassportNo string
}

// CreateBookingInput carries at least one of Flight, Hotel or Car.
type CreateBookingInput struct {
	Flight     *FlightRequest
	Hotel      *HotelRequest
	Car        *CarRequest
	Passengers []PassengerInput
}

type PaymentInput struct {
	Method string
	Amount float64
}

type PaymentResult struct {
	BookingID      string    `json:"booking_id"`
	PaymentID      string    `json:"payment_id"`
	TransactionRef string    `json:"transaction_ref"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	PaidAt         time.Time `json:"paid_at"`
}

type CancelResult struct {
	BookingID    string  `json:"booking_id"`
	Status       string  `json:"status"`
	Refunded     bool    `json:"refunded"`
	RefundAmount float64 `json:"refund_amount,omitempty"`
}

// PassengerUpdate holds the fields to change; nil fields are left alone.
type PassengerUpdate struct {
	FirstName  *string
	LastName   *string
	Gender     *string
	DOB        *time.Time
	PassportNo *string
}

// BookingService drives bookings through pending, confirmed and cancelled.
type BookingService struct {
	tables *repository.Tables
	store  domain.RowStore
	ids    domain.IDAllocator
	avail  *availability.Engine
	events domain.EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBookingService(tables *repository.Tables, ids domain.IDAllocator, avail *availability.Engine, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		tables: tables,
		store:  tables.Store(),
		ids:    ids,
		avail:  avail,
		events: eventBus,
		logger: logger,
		now:    time.Now,
	}
}

// plannedRow is a row waiting to be appended once every check has passed.
type plannedRow struct {
	spec   models.IDSpec
	values func(id, bookingID string) []interface{}
}

func (s *BookingService) CreateBooking(ctx context.Context, userID string, in CreateBookingInput) (*models.BookingDetails, error) {
	if userID == "" {
		return nil, domain.Errorf(domain.ErrUnauthorized, "authentication required")
	}
	if in.Flight == nil && in.Hotel == nil && in.Car == nil {
		return nil, domain.Errorf(domain.ErrValidation, "a booking needs a flight, a hotel or a car")
	}
	if err := validatePassengers(in); err != nil {
		return nil, err
	}

	var (
		total float64
		rows  []plannedRow
	)

	if in.Flight != nil {
		price, row, err := s.planFlight(ctx, in.Flight)
		if err != nil {
			return nil, err
		}
		total += price
		rows = append(rows, row)
	}
	if in.Hotel != nil {
		price, row, err := s.planHotel(ctx, in.Hotel)
		if err != nil {
			return nil, err
		}
		total += price
		rows = append(rows, row)
	}
	if in.Car != nil {
		price, row, err := s.planCar(ctx, in.Car)
		if err != nil {
			return nil, err
		}
		total += price
		rows = append(rows, row)
	}
	for _, p := range in.Passengers {
		p := p
		rows = append(rows, plannedRow{spec: models.PassengerIDs, values: func(id, bookingID string) []interface{} {
			return models.Passenger{
				ID: id, BookingID: bookingID, FirstName: strings.TrimSpace(p.FirstName), LastName: strings.TrimSpace(p.LastName),
				Gender: p.Gender, DOB: p.DOB, PassportNo: p.PassportNo,
			}.Values()
		}})
	}

	bookingID, err := s.ids.Allocate(ctx, models.BookingIDs)
	if err != nil {
		return nil, err
	}
	booking := models.Booking{
		ID:         bookingID,
		UserID:     userID,
		Status:     models.StatusPending,
		BookedAt:   s.now().UTC(),
		TotalPrice: models.RoundMoney(total),
	}

	written := []writtenRow{}
	if err := s.store.AppendRow(ctx, models.TableBooking, booking.Values()); err != nil {
		return nil, err
	}
	written = append(written, writtenRow{models.TableBooking, bookingID})

	for _, r := range rows {
		id, err := s.ids.Allocate(ctx, r.spec)
		if err == nil {
			err = s.store.AppendRow(ctx, r.spec.Table, r.values(id, bookingID))
		}
		if err != nil {
			s.compensate(ctx, written)
			return nil, err
		}
		written = append(written, writtenRow{r.spec.Table, id})
	}

	metrics.IncBookingTransition(models.StatusPending)
	s.publish(events.EventBookingCreated, events.BookingEventPayload{
		BookingID: booking.ID, UserID: userID, Status: booking.Status, TotalPrice: booking.TotalPrice, At: booking.BookedAt,
	})
	logging.For(ctx, s.logger).Info().Str("booking_id", bookingID).Str("user_id", userID).Float64("total", booking.TotalPrice).Msg("booking created")

	return s.tables.Details(ctx, booking)
}

func (s *BookingService) BookFlight(ctx context.Context, userID string, req FlightRequest, passengers []PassengerInput) (*models.BookingDetails, error) {
	return s.CreateBooking(ctx, userID, CreateBookingInput{Flight: &req, Passengers: passengers})
}

func (s *BookingService) BookHotel(ctx context.Context, userID string, req HotelRequest, passengers []PassengerInput) (*models.BookingDetails, error) {
	return s.CreateBooking(ctx, userID, CreateBookingInput{Hotel: &req, Passengers: passengers})
}

func (s *BookingService) BookCar(ctx context.Context, userID string, req CarRequest, passengers []PassengerInput) (*models.BookingDetails, error) {
	return s.CreateBooking(ctx, userID, CreateBookingInput{Car: &req, Passengers: passengers})
}

func validatePassengers(in CreateBookingInput) error {
	if in.Flight != nil {
		if in.Flight.Passengers < 1 {
			return domain.Errorf(domain.ErrValidation, "a flight booking needs at least one passenger")
		}
		if in.Flight.Passengers != len(in.Passengers) {
			return domain.Errorf(domain.ErrValidation, "passenger count %d does not match %d passenger records",
				in.Flight.Passengers, len(in.Passengers))
		}
	}
	for i, p := range in.Passengers {
		if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
			return domain.Errorf(domain.ErrValidation, "passenger %d needs a first and last name", i+1)
		}
	}
	return nil
}

func (s *BookingService) planFlight(ctx context.Context, req *FlightRequest) (float64, plannedRow, error) {
	seatClass := strings.ToLower(strings.TrimSpace(req.SeatClass))
	if seatClass == "" {
		seatClass = models.SeatEconomy
	}
	flight, err := s.tables.FindFlight(ctx, req.FlightID)
	if err != nil {
		return 0, plannedRow{}, err
	}
	seats, err := s.avail.AvailableSeats(ctx, flight.ID, seatClass)
	if err != nil {
		return 0, plannedRow{}, err
	}
	if seats < req.Passengers {
		return 0, plannedRow{}, domain.Errorf(domain.ErrUnavailable, "flight %s has %d %s seats left, %d requested",
			flight.ID, seats, seatClass, req.Passengers)
	}

	row := plannedRow{spec: models.FlightBookingIDs, values: func(id, bookingID string) []interface{} {
		return models.FlightBooking{ID: id, BookingID: bookingID, FlightID: flight.ID, SeatClass: seatClass, Passengers: req.Passengers}.Values()
	}}
	return flight.BasePrice * float64(req.Passengers), row, nil
}

func (s *BookingService) planHotel(ctx context.Context, req *HotelRequest) (float64, plannedRow, error) {
	checkIn, checkOut := dateOnly(req.CheckIn), dateOnly(req.CheckOut)
	if err := availability.ValidateRange(checkIn, checkOut); err != nil {
		return 0, plannedRow{}, domain.Errorf(domain.ErrInvalidRange, "check-in must be before check-out")
	}
	guests := req.Guests
	if guests == 0 {
		guests = 1
	}

	room, err := s.tables.FindRoom(ctx, req.RoomID)
	if err != nil {
		return 0, plannedRow{}, err
	}
	ok, err := s.avail.RoomAvailable(ctx, room.ID, checkIn, checkOut, guests)
	if err != nil {
		return 0, plannedRow{}, err
	}
	if !ok {
		return 0, plannedRow{}, domain.Errorf(domain.ErrUnavailable, "room %s is not available for %s to %s for %d guests",
			room.ID, models.FormatDate(checkIn), models.FormatDate(checkOut), guests)
	}

	row := plannedRow{spec: models.HotelBookingIDs, values: func(id, bookingID string) []interface{} {
		return models.HotelBooking{ID: id, BookingID: bookingID, RoomID: room.ID, CheckIn: checkIn, CheckOut: checkOut, Guests: guests}.Values()
	}}
	return room.PricePerNight * float64(availability.Nights(checkIn, checkOut)), row, nil
}

func (s *BookingService) planCar(ctx context.Context, req *CarRequest) (float64, plannedRow, error) {
	if err := availability.ValidateRange(req.PickupTime, req.DropoffTime); err != nil {
		return 0, plannedRow{}, domain.Errorf(domain.ErrInvalidRange, "pickup must be before dropoff")
	}
	car, err := s.tables.FindCar(ctx, req.CarID)
	if err != nil {
		return 0, plannedRow{}, err
	}
	ok, err := s.avail.CarAvailable(ctx, car.ID, req.PickupTime, req.DropoffTime)
	if err != nil {
		return 0, plannedRow{}, err
	}
	if !ok {
		return 0, plannedRow{}, domain.Errorf(domain.ErrUnavailable, "car %s is already booked in that window", car.ID)
	}

	row := plannedRow{spec: models.CarBookingIDs, values: func(id, bookingID string) []interface{} {
		return models.CarBooking{
			ID: id, BookingID: bookingID, CarID: car.ID, PickupTime: req.PickupTime, DropoffTime: req.DropoffTime,
			PickupLocation: req.PickupLocation, DropoffLocation: req.DropoffLocation,
		}.Values()
	}}
	return car.PricePerDay * float64(availability.CarDays(req.PickupTime, req.DropoffTime)), row, nil
}

func (s *BookingService) ProcessPayment(ctx context.Context, userID, bookingID string, in PaymentInput) (*PaymentResult, error) {
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		method = models.MethodCard
	}
	if !models.ValidPaymentMethod(method) {
		return nil, domain.Errorf(domain.ErrValidation, "unsupported payment method %q", in.Method)
	}

	d, err := s.owned(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case models.StatusCancelled:
		return nil, domain.Errorf(domain.ErrInvalidTransition, "booking %s is cancelled and cannot be paid", bookingID)
	case models.StatusConfirmed:
		return nil, domain.Errorf(domain.ErrInvalidTransition, "booking %s is already confirmed", bookingID)
	}
	if !AmountMatches(in.Amount, d.TotalPrice) {
		metrics.IncPayment("amount_mismatch")
		return nil, domain.Errorf(domain.ErrAmountMismatch, "payment amount %s does not match booking total %s",
			models.FormatMoney(in.Amount), models.FormatMoney(d.TotalPrice))
	}

	paymentID, err := s.ids.Allocate(ctx, models.PaymentIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	payment := models.Payment{
		ID:             paymentID,
		BookingID:      bookingID,
		Method:         method,
		Amount:         d.TotalPrice,
		PaidAt:         now,
		Status:         models.PaymentSuccess,
		TransactionRef: TransactionRef(now, bookingID),
	}
	if err := s.store.AppendRow(ctx, models.TablePayment, payment.Values()); err != nil {
		metrics.IncPayment("store_error")
		return nil, err
	}
	metrics.IncPayment(models.PaymentSuccess)

	// The payment row already makes the booking confirmed on read; a failed
	// flip is repaired by the reconciler.
	confirmed := d.Booking
	confirmed.Status = models.StatusConfirmed
	if err := s.tables.UpdateByID(ctx, models.TableBooking, bookingID, confirmed.Values()); err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("booking_id", bookingID).Msg("payment recorded but status flip failed")
	} else {
		metrics.IncBookingTransition(models.StatusConfirmed)
	}

	s.publish(events.EventBookingConfirmed, events.BookingEventPayload{
		BookingID: bookingID, UserID: d.UserID, Status: models.StatusConfirmed, TotalPrice: d.TotalPrice,
		PaymentID: paymentID, Amount: payment.Amount, At: now,
	})
	logging.For(ctx, s.logger).Info().Str("booking_id", bookingID).Str("payment_id", paymentID).Msg("booking confirmed")

	return &PaymentResult{
		BookingID:      bookingID,
		PaymentID:      paymentID,
		TransactionRef: payment.TransactionRef,
		Amount:         payment.Amount,
		Status:         models.StatusConfirmed,
		PaymentStatus:  payment.Status,
		PaidAt:         now,
	}, nil
}

// CancelBooking refunds a successful payment first and then flips the
// booking, so a failure in between leaves a state a retried cancel can
// finish. A cancelled booking whose payment is still successful only gets
// its refund.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID string) (*CancelResult, error) {
	d, err := s.owned(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	p := d.Payment
	owesRefund := p != nil && p.Status == models.PaymentSuccess
	if d.Status == models.StatusCancelled && !owesRefund {
		return nil, domain.Errorf(domain.ErrInvalidTransition, "booking %s is already cancelled", bookingID)
	}

	now := s.now().UTC()
	result := &CancelResult{BookingID: bookingID, Status: models.StatusCancelled}
	if owesRefund {
		refunded := *p
		refunded.Status = models.PaymentRefunded
		if err := s.tables.UpdateByID(ctx, models.TablePayment, p.ID, refunded.Values()); err != nil {
			return nil, err
		}
		metrics.IncPayment(models.PaymentRefunded)
		result.Refunded = true
		result.RefundAmount = p.Amount
		s.publish(events.EventPaymentRefunded, events.BookingEventPayload{
			BookingID: bookingID, UserID: d.UserID, Status: models.StatusCancelled, TotalPrice: d.TotalPrice,
			PaymentID: p.ID, Amount: p.Amount, At: now,
		})
	}

	if d.Booking.Status != models.StatusCancelled {
		cancelled := d.Booking
		cancelled.Status = models.StatusCancelled
		if err := s.tables.UpdateByID(ctx, models.TableBooking, bookingID, cancelled.Values()); err != nil {
			return nil, err
		}
		metrics.IncBookingTransition(models.StatusCancelled)
		s.publish(events.EventBookingCancelled, events.BookingEventPayload{
			BookingID: bookingID, UserID: d.UserID, Status: models.StatusCancelled, TotalPrice: d.TotalPrice, At: now,
		})
	}

	logging.For(ctx, s.logger).Info().Str("booking_id", bookingID).Bool("refunded", result.Refunded).Msg("booking cancelled")
	return result, nil
}

func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID string) (*models.BookingDetails, error) {
	return s.owned(ctx, userID, bookingID)
}

// ListBookings returns every booking of a user, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID string) ([]models.BookingDetails, error) {
	if userID == "" {
		return nil, domain.Errorf(domain.ErrUnauthorized, "authentication required")
	}
	all, err := s.tables.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	mine := []models.Booking{}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == userID {
			mine = append(mine, all[i])
		}
	}
	details, err := s.tables.DetailsMany(ctx, mine)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Status = EffectiveStatus(details[i].Booking, details[i].Payment)
	}
	return details, nil
}

func (s *BookingService) UpdatePassenger(ctx context.Context, userID, passengerID string, upd PassengerUpdate) (*models.Passenger, error) {
	p, err := s.tables.FindPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	b, err := s.tables.FindBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.Errorf(domain.ErrNotFound, "passenger %s not found", passengerID)
	}
	if b.Status == models.StatusCancelled {
		return nil, domain.Errorf(domain.ErrInvalidTransition, "booking %s is cancelled", b.ID)
	}

	if upd.FirstName != nil {
		p.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		p.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Gender != nil {
		p.Gender = *upd.Gender
	}
	if upd.DOB != nil {
		p.DOB = *upd.DOB
	}
	if upd.PassportNo != nil {
		p.PassportNo = strings.TrimSpace(*upd.PassportNo)
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, domain.Errorf(domain.ErrValidation, "passenger needs a first and last name")
	}

	if err := s.tables.UpdateByID(ctx, models.TablePassenger, p.ID, p.Values()); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfirmPaid persists confirmed for pending bookings that already carry a
// successful payment and returns how many rows it fixed.
func (s *BookingService) ConfirmPaid(ctx context.Context) (int, error) {
	bookings, err := s.tables.Bookings(ctx)
	if err != nil {
		return 0, err
	}
	pending := []models.Booking{}
	for _, b := range bookings {
		if b.Status == models.StatusPending {
			pending = append(pending, b)
		}
	}
	details, err := s.tables.DetailsMany(ctx, pending)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, d := range details {
		if EffectiveStatus(d.Booking, d.Payment) != models.StatusConfirmed {
			continue
		}
		b := d.Booking
		b.Status = models.StatusConfirmed
		if err := s.tables.UpdateByID(ctx, models.TableBooking, b.ID, b.Values()); err != nil {
			return fixed, err
		}
		metrics.IncBookingTransition(models.StatusConfirmed)
		logging.For(ctx, s.logger).Info().Str("booking_id", b.ID).Msg("persisted confirmation of paid booking")
		fixed++
	}
	return fixed, nil
}

// owned loads a booking of userID with its children and effective status.
// Bookings of other users are reported as missing.
func (s *BookingService) owned(ctx context.Context, userID, bookingID string) (*models.BookingDetails, error) {
	if userID == "" {
		return nil, domain.Errorf(domain.ErrUnauthorized, "authentication required")
	}
	b, err := s.tables.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.Errorf(domain.ErrNotFound, "booking %s not found", bookingID)
	}
	d, err := s.tables.Details(ctx, b)
	if err != nil {
		return nil, err
	}
	d.Status = EffectiveStatus(d.Booking, d.Payment)
	return d, nil
}

type writtenRow struct {
	table string
	id    string
}

// compensate clears rows written by a create that failed halfway.
func (s *BookingService) compensate(ctx context.Context, rows []writtenRow) {
	ctx = context.WithoutCancel(ctx)
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if err := s.tables.DeleteByID(ctx, r.table, r.id); err != nil {
			logging.For(ctx, s.logger).Error().Err(err).Str("table", r.table).Str("id", r.id).Msg("failed to clear partial booking row")
		}
	}
}

func (s *BookingService) publish(eventType string, payload events.BookingEventPayload) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", payload.BookingID).Msg("publish event error")
	}
}

// EffectiveStatus treats a pending booking with a successful payment as
// confirmed.
func EffectiveStatus(b models.Booking, payment *models.Payment) string {
	if b.Status == models.StatusPending && payment != nil && payment.Status == models.PaymentSuccess {
		return models.StatusConfirmed
	}
	return b.Status
}

// AmountMatches compares amounts to the cent.
func AmountMatches(amount, total float64) bool {
	return math.Round(amount*100) == math.Round(total*100)
}

// TransactionRef is TXN, the payment time and the booking's numeric suffix.
func TransactionRef(at time.Time, bookingID string) string {
	suffix := strings.TrimPrefix(bookingID, models.BookingIDs.Prefix)
	return "TXN" + at.UTC().Format("20060102150405") + suffix
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
