// Package handler はカレンダーAPIのHTTP境界です。
// リクエストの解析と検証のみを行い、業務ロジックはサービス層に委譲します。
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
)

// Handler はHTTPハンドラの集合です
type Handler struct {
	developers   *service.DeveloperService
	availability *service.AvailabilityService
	bookings     *service.BookingService
	eventTypes   *service.EventTypeService
	limiter      *RateLimiter
}

// New は新しいHandlerを作成します
func New(
	developers *service.DeveloperService,
	availability *service.AvailabilityService,
	bookings *service.BookingService,
	eventTypes *service.EventTypeService,
	limiter *RateLimiter,
) *Handler {
	return &Handler{
		developers:   developers,
		availability: availability,
		bookings:     bookings,
		eventTypes:   eventTypes,
		limiter:      limiter,
	}
}

// RouterOptions はルーター全体の設定です
type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// TrustProxyHeaders が true の場合のみ X-Forwarded-For / X-Real-IP を送信元として扱います
	// 信頼できるロードバランサーの背後でのみ有効にしてください
	TrustProxyHeaders bool
}

// Router はルーティングを構成します
func (h *Handler) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", DevIDHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/dev/{developerId}", func(r chi.Router) {
		r.Use(h.requireDeveloper)

		r.Get("/event-types", h.ListEventTypes)
		r.Post("/event-types", h.CreateEventType)

		r.Get("/availability", h.ListAvailability)
		r.Post("/availability", h.AddAvailability)
		r.Delete("/availability", h.RemoveAvailability)
		r.Post("/availability/bulk", h.BulkAddAvailability)

		r.Get("/bookings", h.ListDeveloperBookings)
		r.Post("/bookings/{bookingId}/approve", h.ApproveBooking)
		r.Post("/bookings/{bookingId}/unapprove", h.UnapproveBooking)
		r.Post("/bookings/{bookingId}/decline", h.DeclineBooking)
	})

	r.Route("/api/public/{token}", func(r chi.Router) {
		r.Use(h.resolvePublicToken)

		r.Get("/availability", h.ListAvailability)
		r.Get("/event-types", h.ListEventTypes)
		r.Get("/bookings", h.ListPublicBookings)
		if h.limiter != nil {
			r.With(h.limiter.Middleware).Post("/bookings", h.CreateBooking)
		} else {
			r.Post("/bookings", h.CreateBooking)
		}
	})

	return r
}
