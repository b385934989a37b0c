package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository/memory"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
)

var testNow = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

type nopNotifier struct{}

func (nopNotifier) NotifyCreated(ctx context.Context, developer model.Developer, booking model.Booking) error {
	return nil
}

func (nopNotifier) SendReminder(ctx context.Context, developer model.Developer, booking model.Booking, untilStart time.Duration) error {
	return nil
}

type testServer struct {
	router    http.Handler
	developer model.Developer
	hr        model.Developer
}

// newTestServer はメモリストアでルーターを組み立てます
func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	return newTestServerWithOptions(t, limiter, RouterOptions{AllowedOrigins: []string{"*"}})
}

func newTestServerWithOptions(t *testing.T, limiter *RateLimiter, opts RouterOptions) *testServer {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewFixed(testNow)
	dev := model.Developer{ID: uuid.New(), Role: model.RoleDev, DisplayName: "Dev", Email: "dev@example.com", PublicToken: "tok-dev"}
	hr := model.Developer{ID: uuid.New(), Role: model.RoleHR, DisplayName: "HR", Email: "hr@example.com", PublicToken: "tok-hr"}
	store.AddDeveloper(dev)
	store.AddDeveloper(hr)

	svc := service.NewServices(store.Stores(), nopNotifier{}, clk)
	h := New(svc.Developers, svc.Availability, svc.Bookings, svc.EventTypes, limiter)
	return &testServer{
		router:    h.Router(opts),
		developer: dev,
		hr:        hr,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, devID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if devID != "" {
		req.Header.Set(DevIDHeader, devID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) devPath(suffix string) string {
	return fmt.Sprintf("/api/dev/%s%s", s.developer.ID, suffix)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const dayRange = "?from=2030-01-02T00:00:00Z&to=2030-01-02T23:30:00Z"

func bookingBody(start string, duration int, role string) map[string]any {
	return map[string]any{
		"createdByRole":   role,
		"eventTypeName":   "tech",
		"startAt":         start,
		"durationMinutes": duration,
		"company":         "Acme",
		"hrName":          "Alice",
		"hrEmail":         "alice@acme.example",
	}
}

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_DeveloperAuth(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "ヘッダーなし", path: s.devPath("/event-types"), header: "", want: http.StatusForbidden},
		{name: "ヘッダー不一致", path: s.devPath("/event-types"), header: uuid.NewString(), want: http.StatusForbidden},
		{name: "開発者以外", path: fmt.Sprintf("/api/dev/%s/event-types", s.hr.ID), header: s.hr.ID.String(), want: http.StatusForbidden},
		{name: "存在しない利用者", path: fmt.Sprintf("/api/dev/%s/event-types", uuid.Nil), header: uuid.Nil.String(), want: http.StatusForbidden},
		{name: "本人", path: s.devPath("/event-types"), header: s.developer.ID.String(), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_BookingFlow(t *testing.T) {
	s := newTestServer(t, nil)
	devID := s.developer.ID.String()

	if rec := s.do(t, http.MethodPost, s.devPath("/event-types"), map[string]string{"name": "Tech"}, devID); rec.Code != http.StatusCreated {
		t.Fatalf("create event type status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, s.devPath("/event-types"), map[string]string{"name": "tech"}, devID); rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate event type status = %d, want 400", rec.Code)
	}
	for _, start := range []string{"2030-01-02T09:00:00Z", "2030-01-02T09:30:00Z"} {
		if rec := s.do(t, http.MethodPost, s.devPath("/availability"), map[string]string{"startAt": start}, devID); rec.Code != http.StatusCreated {
			t.Fatalf("add availability status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodPost, "/api/public/tok-dev/bookings", bookingBody("2030-01-02T09:00:00Z", 60, "hr1"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[BookingResponse](t, rec)
	if created.Status != model.BookingStatusPending || created.CreatedByRole != model.RoleHR1 {
		t.Errorf("created = %+v", created)
	}

	rec = s.do(t, http.MethodPost, "/api/public/tok-dev/bookings", bookingBody("2030-01-02T09:00:00Z", 60, "HR2"), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want 409", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "requested time is no longer available" {
		t.Errorf("error = %q", got.Error)
	}

	t.Run("公開一覧の伏せ字", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/public/tok-dev/bookings"+dayRange+"&asRole=HR2", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		hidden := decode[[]model.PublicBooking](t, rec)
		if len(hidden) != 1 || hidden[0].Company != nil || !hidden[0].Occupied {
			t.Errorf("HR2 view = %+v", hidden)
		}

		rec = s.do(t, http.MethodGet, "/api/public/tok-dev/bookings"+dayRange+"&asRole=HR1", nil, "")
		visible := decode[[]model.PublicBooking](t, rec)
		if len(visible) != 1 || visible[0].Company == nil || *visible[0].Company != "Acme" || visible[0].Occupied {
			t.Errorf("HR1 view = %+v", visible)
		}
	})

	rec = s.do(t, http.MethodPost, s.devPath("/bookings/"+created.ID.String()+"/approve"), nil, devID)
	if rec.Code != http.StatusOK || decode[BookingResponse](t, rec).Status != model.BookingStatusApproved {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, s.devPath("/bookings/"+created.ID.String()+"/decline"), nil, devID)
	if rec.Code != http.StatusOK || decode[BookingResponse](t, rec).Status != model.BookingStatusDeclined {
		t.Fatalf("decline status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, s.devPath("/bookings/"+created.ID.String()+"/approve"), nil, devID)
	if rec.Code != http.StatusBadRequest || decode[ErrorResponse](t, rec).Error != "booking already declined" {
		t.Errorf("approve after decline status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/public/tok-dev/availability"+dayRange, nil, "")
	if slots := decode[[]model.AvailabilitySlot](t, rec); len(slots) != 2 {
		t.Errorf("availability after decline = %d, want 2", len(slots))
	}

	rec = s.do(t, http.MethodGet, s.devPath("/bookings"+dayRange), nil, devID)
	if list := decode[[]BookingResponse](t, rec); len(list) != 1 || list[0].HREmail != "alice@acme.example" {
		t.Errorf("developer bookings = %+v", list)
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	devID := s.developer.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		header string
		want   int
	}{
		{name: "範囲指定なし", method: http.MethodGet, path: s.devPath("/availability"), header: devID, want: http.StatusBadRequest},
		{name: "不正な本文", method: http.MethodPost, path: s.devPath("/availability"), body: map[string]string{"unknown": "x"}, header: devID, want: http.StatusBadRequest},
		{name: "境界外の開始時刻", method: http.MethodPost, path: s.devPath("/availability"), body: map[string]string{"startAt": "2030-01-02T09:10:00Z"}, header: devID, want: http.StatusBadRequest},
		{name: "存在しない予約", method: http.MethodPost, path: s.devPath("/bookings/" + uuid.NewString() + "/approve"), header: devID, want: http.StatusNotFound},
		{name: "不正な予約ID", method: http.MethodPost, path: s.devPath("/bookings/abc/approve"), header: devID, want: http.StatusBadRequest},
		{name: "不明なトークン", method: http.MethodGet, path: "/api/public/nope/availability" + dayRange, want: http.StatusNotFound},
		{name: "開発者以外のトークン", method: http.MethodGet, path: "/api/public/tok-hr/availability" + dayRange, want: http.StatusNotFound},
		{name: "不明なロール", method: http.MethodGet, path: "/api/public/tok-dev/bookings" + dayRange + "&asRole=CEO", want: http.StatusBadRequest},
		{name: "不明な面接種別", method: http.MethodPost, path: "/api/public/tok-dev/bookings", body: bookingBody("2030-01-02T09:00:00Z", 30, "HR"), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: model.InvalidArgument("bad"), want: http.StatusBadRequest},
		{err: model.NotFound("missing"), want: http.StatusNotFound},
		{err: model.ErrSlotUnavailable, want: http.StatusConflict},
		{err: fmt.Errorf("%w: dup", model.ErrConflict), want: http.StatusConflict},
		{err: fmt.Errorf("%w: %w", model.ErrReservationFailed, errors.New("io")), want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRouter_BulkAvailability(t *testing.T) {
	s := newTestServer(t, nil)
	devID := s.developer.ID.String()

	body := map[string]string{
		"startDate":  "2030-01-02",
		"endDate":    "2030-01-03",
		"dailyStart": "09:00",
		"dailyEnd":   "10:00",
	}
	rec := s.do(t, http.MethodPost, s.devPath("/availability/bulk"), body, devID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if created := decode[[]model.AvailabilitySlot](t, rec); len(created) != 4 {
		t.Errorf("created = %d, want 4", len(created))
	}

	body["dailyStart"] = "9am"
	if rec := s.do(t, http.MethodPost, s.devPath("/availability/bulk"), body, devID); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid clock status = %d, want 400", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, s.devPath("/availability?startAt=2030-01-02T09:00:00Z"), nil, devID)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	s := newTestServer(t, limiter)

	first := s.do(t, http.MethodPost, "/api/public/tok-dev/bookings", bookingBody("2030-01-02T09:00:00Z", 30, "HR"), "")
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request was throttled")
	}
	second := s.do(t, http.MethodPost, "/api/public/tok-dev/bookings", bookingBody("2030-01-02T09:00:00Z", 30, "HR"), "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
	// 読み取りは制限しない
	if rec := s.do(t, http.MethodGet, "/api/public/tok-dev/availability"+dayRange, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}

	limiter.now = func() time.Time { return time.Now().Add(time.Hour) }
	limiter.Cleanup()
	if len(limiter.entries) != 0 {
		t.Errorf("entries after cleanup = %d, want 0", len(limiter.entries))
	}
}

func TestRateLimiter_ProxyHeaders(t *testing.T) {
	tests := []struct {
		name         string
		trustProxy   bool
		header       string
		wantThrottle bool
	}{
		{
			name:         "既定ではX-Forwarded-Forを変えても同じバケット",
			header:       "X-Forwarded-For",
			wantThrottle: true,
		},
		{
			name:         "既定ではX-Real-IPを変えても同じバケット",
			header:       "X-Real-IP",
			wantThrottle: true,
		},
		{
			name:         "信頼する設定ではヘッダーのIPごとにバケットを分ける",
			trustProxy:   true,
			header:       "X-Real-IP",
			wantThrottle: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRateLimiter(0.001, 1)
			s := newTestServerWithOptions(t, limiter, RouterOptions{
				AllowedOrigins:    []string{"*"},
				TrustProxyHeaders: tt.trustProxy,
			})

			post := func(ip string) int {
				var buf bytes.Buffer
				if err := json.NewEncoder(&buf).Encode(bookingBody("2030-01-02T09:00:00Z", 30, "HR")); err != nil {
					t.Fatalf("failed to encode body: %v", err)
				}
				req := httptest.NewRequest(http.MethodPost, "/api/public/tok-dev/bookings", &buf)
				req.Header.Set("Content-Type", "application/json")
				req.RemoteAddr = "192.0.2.10:4321"
				req.Header.Set(tt.header, ip)
				rec := httptest.NewRecorder()
				s.router.ServeHTTP(rec, req)
				return rec.Code
			}

			if code := post("203.0.113.1"); code == http.StatusTooManyRequests {
				t.Fatalf("first request was throttled")
			}
			second := post("203.0.113.2")
			if (second == http.StatusTooManyRequests) != tt.wantThrottle {
				t.Errorf("second status = %d, throttle want %v", second, tt.wantThrottle)
			}
		})
	}
}
