package api

import (
	"errors"
	"net/http"

	"travelbook/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorKinds is checked in order; the narrower validation kinds come first.
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{domain.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{domain.ErrUnavailable, http.StatusConflict, "unavailable"},
	{domain.ErrSyncFailure, http.StatusBadGateway, "sync_failure"},
	{domain.ErrAllocationExhausted, http.StatusServiceUnavailable, "allocation_exhausted"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// statusFor maps an error to its HTTP status and public code.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err in the common error envelope. Infrastructure
// failures keep their detail in the log only.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}
