package handler

import (
	"net/http"
	"strings"

	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
)

// ListPublicBookings は閲覧者のロールに応じて伏せ字にした予約を返します
func (h *Handler) ListPublicBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var viewer *model.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("asRole")); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		viewer = &role
	}

	dev := developerFrom(r.Context())
	bookings, err := h.bookings.ListPublic(r.Context(), dev.ID, from, to, viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// CreateBooking はHR側からの予約リクエストを受け付けます
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	booking, err := h.bookings.Create(r.Context(), dev, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}
