package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// ErrorResponse はエラー時のレスポンスです
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeSlotUnavailable   = "SLOT_UNAVAILABLE"
	CodeConflict          = "CONFLICT"
	CodeReservationFailed = "RESERVATION_FAILED"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeServiceError はサービス層のエラーをHTTPステータスに変換します
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, model.ErrorMessage(err), CodeInvalidInput)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ErrorMessage(err), CodeNotFound)
	case errors.Is(err, model.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, model.ErrSlotUnavailable.Error(), CodeSlotUnavailable)
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, model.ErrorMessage(err), CodeConflict)
	case errors.Is(err, model.ErrReservationFailed):
		logger.ErrorContext(r.Context(), "reservation failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, model.ErrReservationFailed.Error(), CodeReservationFailed)
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", CodeInternalError)
	}
}
