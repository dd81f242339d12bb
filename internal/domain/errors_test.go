package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := Errorf(ErrInvalidRange, "check-in %s must precede check-out %s", "2025-12-03", "2025-12-01")
	assert.True(t, errors.Is(err, ErrInvalidRange))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "check-in 2025-12-03 must precede check-out 2025-12-01", err.Error())

	mismatch := Errorf(ErrAmountMismatch, "amount 699.99 does not match total 700.00")
	assert.True(t, errors.Is(mismatch, ErrValidation))
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError("append", "Booking", nil))

	err := StoreError("append", "Booking", errors.New("quota exceeded"))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "append Booking")

	assert.Same(t, err, StoreError("read", "Booking", err))
}
