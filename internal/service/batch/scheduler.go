package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/robfig/cron/v3"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/common/utils"
)

// Job はスケジューラから定期実行される処理です
type Job interface {
	Run(ctx context.Context) error
}

// Scheduler は cron 式に従って Job を実行します
// 前回の実行が終わっていない場合、その回はスキップします
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	name    string
	timeout time.Duration
	tracing bool
}

// NewScheduler は新しいSchedulerを作成します
func NewScheduler(name, schedule string, timeout time.Duration, tracing bool, job Job) (*Scheduler, error) {
	cronLogger := cron.VerbosePrintfLogger(slogPrintf{})
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{
		cron:    c,
		job:     job,
		name:    name,
		timeout: timeout,
		tracing: tracing,
	}
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start はスケジューラを開始します
func (s *Scheduler) Start() {
	logger.Info("scheduler started", "job", s.name)
	s.cron.Start()
}

// Stop はスケジューラを停止し、実行中の処理の完了を待ちます
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("scheduler stopped", "job", s.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler %s did not stop: %w", s.name, ctx.Err())
	}
}

// RunOnce は1回だけ Job を実行します
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.tracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, s.name)
		defer seg.Close(nil)
	}
	ctx = logger.WithValue(ctx, logger.ServiceKey, s.name)
	return utils.RunWithTimeout(ctx, s.timeout, s.job.Run)
}

func (s *Scheduler) tick() {
	if err := s.RunOnce(context.Background()); err != nil {
		logger.Error("scheduled job failed", "job", s.name, "error", err)
	}
}

// slogPrintf は cron のログを構造化ログに流します
type slogPrintf struct{}

func (slogPrintf) Printf(format string, args ...interface{}) {
	logger.Default().Debug(fmt.Sprintf(format, args...), "component", "cron")
}
