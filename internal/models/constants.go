package models

import "time"

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentSuccess  = "success"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Payment methods.
const (
	MethodCard   = "card"
	MethodWallet = "wallet"
	MethodUPI    = "upi"
)

// Seat classes. Every flight carries SeatsPerClass seats in each class.
const (
	SeatEconomy  = "economy"
	SeatBusiness = "business"

	SeatsPerClass = 100
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

const (
	// PaymentTolerance is the accepted absolute difference between a payment and the booking total.
	PaymentTolerance = 0.01

	// DefaultSessionTTL is the lifetime of a freshly issued session.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// DefaultAllocationRetries bounds the scan allocator's collision retries.
	DefaultAllocationRetries = 5

	// MinPasswordLength applies to registration.
	MinPasswordLength = 8

	// WorkerQueueSize is the buffered capacity of in-memory task channels.
	WorkerQueueSize = 1000
)

// ValidSeatClass reports whether class is a known seat class.
func ValidSeatClass(class string) bool {
	return class == SeatEconomy || class == SeatBusiness
}

// ValidPaymentMethod reports whether method is accepted for payments.
func ValidPaymentMethod(method string) bool {
	switch method {
	case MethodCard, MethodWallet, MethodUPI:
		return true
	}
	return false
}
