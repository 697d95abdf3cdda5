package handlers

import (
	"errors"
	"net/http"
	"time"

	"gudang-system/internal/inventory"
	"gudang-system/internal/ledger"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// statusFromError maps the domain error taxonomy onto HTTP statuses. Missing
// entities are 404, business-rule rejections 409, lock contention 503 so the
// client knows a retry with backoff may help.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrItemNotFound), errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientStock), errors.Is(err, inventory.ErrDuplicateCode),
		errors.Is(err, inventory.ErrItemHasMovements):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrZeroDelta), errors.Is(err, ledger.ErrInvalidReason):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const dateLayout = "2006-01-02"

// parseDateRange reads start/end query params. The end bound is pushed to the
// last instant of its day so a same-day range matches that day's rows.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	return start, end, nil
}
