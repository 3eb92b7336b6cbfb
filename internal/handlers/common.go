package handlers

import (
	"errors"
	"net/http"

	"github.com/Cramiac/SyncTunes/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// statusFor maps coordinator errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrRoomNotFound), errors.Is(err, services.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, services.ErrRoomClosed):
		return http.StatusGone
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrCodeExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
