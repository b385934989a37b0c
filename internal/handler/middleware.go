package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// DevIDHeader は開発者本人であることを示すヘッダーです
const DevIDHeader = "X-Dev-Id"

type ctxKey string

const developerCtxKey ctxKey = "developer"

// requestID はリクエストIDをログ用のコンテキストに載せます
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithValue(r.Context(), logger.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return middleware.RequestLogger(&structuredLogger{})(next)
}

type structuredLogger struct{}

func (l *structuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &structuredLogEntry{request: r}
}

type structuredLogEntry struct {
	request *http.Request
}

func (l *structuredLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	logger.InfoContext(l.request.Context(), "HTTP request completed",
		"method", l.request.Method,
		"path", l.request.URL.Path,
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *structuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "HTTP request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", l.request.URL.Path,
	)
}

// requireDeveloper は X-Dev-Id がパスの開発者IDと一致し、その利用者が開発者であることを確認します
func (h *Handler) requireDeveloper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathID, err := uuid.Parse(chi.URLParam(r, "developerId"))
		if err != nil {
			writeError(w, http.StatusForbidden, "forbidden", CodeForbidden)
			return
		}
		headerID, err := uuid.Parse(r.Header.Get(DevIDHeader))
		if err != nil || headerID != pathID {
			writeError(w, http.StatusForbidden, "forbidden", CodeForbidden)
			return
		}

		dev, err := h.developers.GetDeveloper(r.Context(), pathID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidArgument) {
				writeError(w, http.StatusForbidden, "forbidden", CodeForbidden)
				return
			}
			writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), developerCtxKey, dev)
		ctx = logger.WithValue(ctx, logger.DeveloperIDKey, dev.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolvePublicToken は公開トークンから開発者を解決します
func (h *Handler) resolvePublicToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dev, err := h.developers.GetDeveloperByToken(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			if errors.Is(err, model.ErrInvalidArgument) {
				writeError(w, http.StatusNotFound, "developer not found", CodeNotFound)
				return
			}
			writeServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), developerCtxKey, dev)
		ctx = logger.WithValue(ctx, logger.DeveloperIDKey, dev.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func developerFrom(ctx context.Context) model.Developer {
	dev, _ := ctx.Value(developerCtxKey).(model.Developer)
	return dev
}
