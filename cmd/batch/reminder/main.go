package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/config"
	"github.com/uma-arai/sbcntr-calendar/internal/common/database"
	"github.com/uma-arai/sbcntr-calendar/internal/common/utils"
	"github.com/uma-arai/sbcntr-calendar/internal/notification"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
	"github.com/uma-arai/sbcntr-calendar/internal/service"
	"github.com/uma-arai/sbcntr-calendar/internal/service/batch"
)

const (
	projectName = "sbcntr-calendar-reminder"
)

func main() {
	once := flag.Bool("once", false, "1回だけ実行して終了する")
	stopTimeout := flag.Duration("stop-timeout", 30*time.Second, "停止時に実行中の処理を待つ時間")
	flag.Parse()

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	// メモリストアはAPIプロセス内でしか共有できない
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatalf("Reminder batch requires STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, cfg.StoreDriver)
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

	conn, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v\nStack trace:\n%s", err, debug.Stack())
	}
	db := repository.NewDB(conn)
	defer db.Close()

	clk := clock.System{}
	notifier, closeNotifier, err := notification.NewFromConfig(ctx, cfg, clk)
	if err != nil {
		log.Fatalf("Failed to create notifier: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer closeNotifier()

	services := service.NewServices(repository.NewStores(db), notifier, clk)
	reminders := batch.NewReminderBatchService(services.Bookings, services.Developers, notifier, clk)

	scheduler, err := batch.NewScheduler(projectName, cfg.Reminder.Schedule, cfg.Reminder.Timeout, cfg.EnableTracing, reminders)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// シグナルハンドリング
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *once {
		errChan := make(chan error, 1)
		go func() {
			errChan <- scheduler.RunOnce(ctx)
		}()

		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v", sig)
			cancel()
		case err := <-errChan:
			if err != nil {
				log.Printf("Batch process failed: %v", utils.GetStackWithError(err))
				os.Exit(1)
			}
			log.Println("Batch process completed successfully")
		}
		return
	}

	scheduler.Start()
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), *stopTimeout)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop scheduler: %v", err)
	}
	log.Println("Reminder batch stopped")
}
