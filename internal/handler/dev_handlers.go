package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// BookingResponse は開発者・作成者向けの予約表示です
type BookingResponse struct {
	ID              uuid.UUID           `json:"id"`
	DeveloperID     uuid.UUID           `json:"developerId"`
	CreatedByRole   model.Role          `json:"createdByRole"`
	EventTypeName   string              `json:"eventTypeName"`
	StartAt         time.Time           `json:"startAt"`
	DurationMinutes int                 `json:"durationMinutes"`
	Status          model.BookingStatus `json:"status"`
	Company         string              `json:"company"`
	HRName          string              `json:"hrName"`
	HREmail         string              `json:"hrEmail"`
	MeetingLink     *string             `json:"meetingLink"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func toBookingResponse(b model.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		DeveloperID:     b.DeveloperID,
		CreatedByRole:   b.CreatedByRole,
		EventTypeName:   b.EventTypeName,
		StartAt:         b.StartAt,
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		Company:         b.Company,
		HRName:          b.HRName,
		HREmail:         b.HREmail,
		MeetingLink:     b.MeetingLink,
		CreatedAt:       b.CreatedAt,
	}
}

type createEventTypeRequest struct {
	Name string `json:"name" validate:"required"`
}

type addAvailabilityRequest struct {
	StartAt time.Time `json:"startAt" validate:"required"`
}

type bulkAvailabilityRequest struct {
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"required,datetime=2006-01-02"`
	DailyStart string `json:"dailyStart" validate:"required"`
	DailyEnd   string `json:"dailyEnd" validate:"required"`
}

// ListEventTypes は面接種別の一覧を返します
func (h *Handler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	dev := developerFrom(r.Context())
	eventTypes, err := h.eventTypes.List(r.Context(), dev.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventTypes)
}

// CreateEventType は面接種別を作成します
func (h *Handler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	var req createEventTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	eventType, err := h.eventTypes.Create(r.Context(), dev.ID, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventType)
}

// ListAvailability は指定期間の空き枠を返します
func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	slots, err := h.availability.List(r.Context(), dev.ID, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// AddAvailability は空き枠を1件公開します
func (h *Handler) AddAvailability(w http.ResponseWriter, r *http.Request) {
	var req addAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	slot, err := h.availability.Add(r.Context(), dev.ID, req.StartAt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// RemoveAvailability は startAt の空き枠を削除します
func (h *Handler) RemoveAvailability(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "startAt")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	if err := h.availability.Remove(r.Context(), dev.ID, start); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkAddAvailability は日付範囲と時間帯から空き枠をまとめて作成します
func (h *Handler) BulkAddAvailability(w http.ResponseWriter, r *http.Request) {
	var req bulkAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	bulk, err := req.toServiceRequest()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	created, err := h.availability.BulkAdd(r.Context(), dev.ID, bulk)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (req bulkAvailabilityRequest) toServiceRequest() (service.BulkAvailabilityRequest, error) {
	startDate, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return service.BulkAvailabilityRequest{}, model.InvalidArgument("startDate must be YYYY-MM-DD")
	}
	endDate, err := time.ParseInLocation(dateLayout, req.EndDate, time.UTC)
	if err != nil {
		return service.BulkAvailabilityRequest{}, model.InvalidArgument("endDate must be YYYY-MM-DD")
	}
	dailyStart, err := parseClock(req.DailyStart)
	if err != nil {
		return service.BulkAvailabilityRequest{}, model.InvalidArgument("dailyStart must be HH:MM")
	}
	dailyEnd, err := parseClock(req.DailyEnd)
	if err != nil {
		return service.BulkAvailabilityRequest{}, model.InvalidArgument("dailyEnd must be HH:MM")
	}
	return service.BulkAvailabilityRequest{
		StartDate:  startDate,
		EndDate:    endDate,
		DailyStart: dailyStart,
		DailyEnd:   dailyEnd,
	}, nil
}

// ListDeveloperBookings は開発者の予約を全項目付きで返します
func (h *Handler) ListDeveloperBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	dev := developerFrom(r.Context())
	bookings, err := h.bookings.ListForDeveloper(r.Context(), dev.ID, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.bookings.Approve)
}

func (h *Handler) UnapproveBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.bookings.Unapprove)
}

func (h *Handler) DeclineBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.bookings.Decline)
}

type bookingActionFunc func(ctx context.Context, developerID, bookingID uuid.UUID) (model.Booking, error)

func (h *Handler) bookingAction(w http.ResponseWriter, r *http.Request, action bookingActionFunc) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id", CodeInvalidInput)
		return
	}
	dev := developerFrom(r.Context())
	booking, err := action(r.Context(), dev.ID, bookingID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// decodeJSON は本文を読み込み、タグで検証します
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.InvalidArgument("request body is required")
		}
		return model.InvalidArgument("invalid request body")
	}
	return service.ValidateStruct(v)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return time.Time{}, model.InvalidArgument("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, model.InvalidArgument("%s must be RFC3339", name)
	}
	return t, nil
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		// 24:00 は1日の終わりとして扱う
		if value == "24:00" {
			return 24 * time.Hour, nil
		}
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
