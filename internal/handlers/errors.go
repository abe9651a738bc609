package handlers

import (
	"errors"
	"net/http"

	"wendao-market/internal/models"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidBet),
		errors.Is(err, models.ErrInvalidOutcome),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrMalformedSpec),
		errors.Is(err, models.ErrInvalidDraft):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrMarketNotActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
