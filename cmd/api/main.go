package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/config"
	"github.com/uma-arai/sbcntr-calendar/internal/common/database"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/handler"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/notification"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
	"github.com/uma-arai/sbcntr-calendar/internal/repository/memory"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
	"github.com/uma-arai/sbcntr-calendar/internal/service/batch"
)

const (
	projectName = "sbcntr-calendar-api"
)

func main() {
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "グレースフルシャットダウンの待ち時間")
	requestTimeout := flag.Duration("request-timeout", 30*time.Second, "1リクエストあたりのタイムアウト時間")
	flag.Parse()

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Printf("Failed to configure X-Ray: %v", err)
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatalf("Failed to configure default X-Ray settings: %v", configErr)
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.System{}

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer closeStores()

	notifier, closeNotifier, err := notification.NewFromConfig(ctx, cfg, clk)
	if err != nil {
		log.Fatalf("Failed to create notifier: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer closeNotifier()

	services := service.NewServices(stores, notifier, clk)

	limiter := handler.NewRateLimiter(cfg.HTTP.PublicRateRPS, cfg.HTTP.PublicRateBurst)
	limiter.StartJanitor(ctx, time.Minute)

	h := handler.New(services.Developers, services.Availability, services.Bookings, services.EventTypes, limiter)
	var router http.Handler = h.Router(handler.RouterOptions{
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		RequestTimeout:    *requestTimeout,
		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
	})
	if cfg.EnableTracing {
		router = xray.Handler(xray.NewFixedSegmentNamer(projectName), router)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// リマインドをAPIプロセス内で動かす場合
	var scheduler *batch.Scheduler
	if cfg.Reminder.Embedded {
		reminders := batch.NewReminderBatchService(services.Bookings, services.Developers, notifier, clk)
		scheduler, err = batch.NewScheduler("reminder", cfg.Reminder.Schedule, cfg.Reminder.Timeout, cfg.EnableTracing, reminders)
		if err != nil {
			log.Fatalf("Failed to create reminder scheduler: %v", err)
		}
		scheduler.Start()
	}

	// シグナルハンドリング
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("api server started", "addr", cfg.HTTP.Addr, "store", cfg.StoreDriver, "reminder_embedded", cfg.Reminder.Embedded)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server failed: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			log.Printf("Failed to stop scheduler: %v", err)
		}
	}
	log.Println("Server stopped")
}

// openStores は設定されたドライバのリポジトリを開きます
func openStores(cfg *config.Config) (repository.Stores, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		store := memory.NewStore()
		dev, err := seedDeveloper(cfg.Seed)
		if err != nil {
			return repository.Stores{}, nil, err
		}
		store.AddDeveloper(dev)
		logger.Info("memory store seeded", "developer_id", dev.ID, "public_token", dev.PublicToken)
		return store.Stores(), func() {}, nil
	}

	conn, err := database.Open(cfg.DB)
	if err != nil {
		return repository.Stores{}, nil, err
	}
	db := repository.NewDB(conn)
	return repository.NewStores(db), func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}, nil
}

func seedDeveloper(seed config.SeedConfig) (model.Developer, error) {
	id := uuid.New()
	if seed.DeveloperID != "" {
		parsed, err := uuid.Parse(seed.DeveloperID)
		if err != nil {
			return model.Developer{}, model.InvalidArgument("SEED_DEVELOPER_ID must be a UUID")
		}
		id = parsed
	}
	dev := model.Developer{
		ID:          id,
		Role:        model.RoleDev,
		DisplayName: seed.DisplayName,
		Email:       seed.Email,
		PublicToken: seed.PublicToken,
		CreatedAt:   time.Now().UTC(),
	}
	if seed.TelegramChatID != "" {
		chatID := seed.TelegramChatID
		dev.TelegramChatID = &chatID
	}
	return dev, nil
}
